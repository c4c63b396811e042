package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newListFrameworksCmd(st *state) *cobra.Command {
	var versions bool

	cmd := &cobra.Command{
		Use:   "list-frameworks",
		Short: "List supported Big Data frameworks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := st.packages()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Supported frameworks:")
			for _, p := range reg.List() {
				if !versions {
					fmt.Fprintln(out, p.ID)
					continue
				}
				for _, v := range p.Versions() {
					fmt.Fprintf(out, "%s %s\n", p.ID, v.Version)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&versions, "versions", false, "List all supported versions")
	return cmd
}

func newInstallCmd(st *state) *cobra.Command {
	var (
		reinstall  bool
		preserveID string
	)

	cmd := &cobra.Command{
		Use:   "install FRAMEWORK VERSION",
		Short: "Install a Big Data framework",
		Long: `Downloads and extracts an archive distribution into the framework
directory, or installs a Conda-based framework into the environment of a
reservation. Installing an installed version again is a no-op unless
--reinstall is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.load(); err != nil {
				return err
			}
			_, v, err := lookup(st, args[0], args[1])
			if err != nil {
				return err
			}

			req := models.InstallRequest{PackageID: args[0], Version: args[1], Reinstall: reinstall}
			if v.Backend() == deploy.BackendEnvironment {
				r, err := st.reservation(cmd.Context(), preserveID)
				if err != nil {
					return err
				}
				req.ReservationID = r.ID
			}

			dir, err := st.manager.Install(cmd.Context(), req)
			if err != nil {
				return err
			}
			logrus.Debugf("Installed into %s", dir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reinstall, "reinstall", false, "Force a clean reinstallation of the framework")
	cmd.Flags().StringVar(&preserveID, "preserve-id", "LAST", "Reservation id for Conda-based frameworks, or 'LAST' for the last reservation made by the user")
	return cmd
}

func newSettingsCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "settings FRAMEWORK VERSION",
		Short: "List the deployment settings a framework accepts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := lookup(st, args[0], args[1])
			if err != nil {
				return err
			}
			settings := p.Component.Settings()
			out := cmd.OutOrStdout()
			if len(settings) == 0 {
				fmt.Fprintf(out, "%s %s has no deployment settings.\n", p.Name, args[1])
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SETTING\tDEFAULT\tDESCRIPTION")
			for _, s := range settings {
				def := s.Default
				if def == "" {
					def = `""`
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Key, def, s.Description)
			}
			return w.Flush()
		},
	}
}

func lookup(st *state, id, version string) (*deploy.Package, *deploy.Version, error) {
	reg, err := st.packages()
	if err != nil {
		return nil, nil, err
	}
	p, err := reg.Get(id)
	if err != nil {
		return nil, nil, err
	}
	v, err := p.Version(version)
	if err != nil {
		return nil, nil, err
	}
	return p, v, nil
}
