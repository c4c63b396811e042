package cli

import (
	"fmt"

	"github.com/ralt/clusterdeploy/internal/conda"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/spf13/cobra"
)

func newCondaCmd(st *state) *cobra.Command {
	var preserveID string

	cmd := &cobra.Command{
		Use:   "conda",
		Short: "Set up and configure the Conda environment of a reservation",
	}
	cmd.PersistentFlags().StringVar(&preserveID, "preserve-id", "LAST", "Reservation id whose environment to use, or 'LAST' for the last reservation made by the user")

	env := func(cmd *cobra.Command) (*conda.Env, error) {
		r, err := st.reservation(cmd.Context(), preserveID)
		if err != nil {
			return nil, err
		}
		return st.conda.Env(r.ID)
	}

	cmd.AddCommand(
		newCondaCreateCmd(st, env),
		newCondaInstallCmd(env),
		newCondaPipInstallCmd(env),
		newCondaActivateCmd(env),
	)
	return cmd
}

type envResolver func(cmd *cobra.Command) (*conda.Env, error)

func newCondaCreateCmd(st *state, resolve envResolver) *cobra.Command {
	var python, pip string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a Conda environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := resolve(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if env.Exists() {
				fmt.Fprintf(out, "Conda environment at '%s' already exists.\n", env.Root())
				return nil
			}
			if !cmd.Flags().Changed("python") {
				python = st.cfg.Conda.Python
			}
			if !cmd.Flags().Changed("pip") {
				pip = st.cfg.Conda.Pip
			}
			if err := env.Create(cmd.Context(), python, pip, outputOptions(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(out, "Conda environment created at '%s'.\n", env.Root())
			fmt.Fprintln(out, conda.Describe(env))
			return nil
		},
	}

	cmd.Flags().StringVar(&python, "python", conda.DefaultPython, "Python version to install")
	cmd.Flags().StringVar(&pip, "pip", conda.DefaultPip, "Pip version to install")
	return cmd
}

func newCondaInstallCmd(resolve envResolver) *cobra.Command {
	var channels []string

	cmd := &cobra.Command{
		Use:   "install PACKAGE...",
		Short: "Install Conda packages ('name=version')",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := resolve(cmd)
			if err != nil {
				return err
			}
			return env.Install(cmd.Context(), args, channels, outputOptions(cmd))
		},
	}

	cmd.Flags().StringArrayVarP(&channels, "channel", "c", nil, "Additional Conda channel to install from (repeatable)")
	return cmd
}

func newCondaPipInstallCmd(resolve envResolver) *cobra.Command {
	return &cobra.Command{
		Use:   "pip-install PACKAGE...",
		Short: "Install PyPI packages ('name==version')",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := resolve(cmd)
			if err != nil {
				return err
			}
			return env.PipInstall(cmd.Context(), args, outputOptions(cmd))
		},
	}
}

func newCondaActivateCmd(resolve envResolver) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "get-activate-command",
		Short: "Print the command that activates the Conda environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := resolve(cmd)
			if err != nil {
				return err
			}
			if !env.Exists() {
				return models.NewError(models.ErrNotFound, "conda",
					"Conda environment has not yet been created at '%s'", env.Root())
			}
			if quiet {
				fmt.Fprintln(cmd.OutOrStdout(), env.ActivateCommand())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), conda.Describe(env))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Output the command without additional explanation")
	return cmd
}
