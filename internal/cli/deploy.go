package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDeployCmd(st *state) *cobra.Command {
	var (
		preserveID   string
		settingArgs  []string
		settingsFile string
		reinstall    bool
	)

	cmd := &cobra.Command{
		Use:   "deploy FRAMEWORK VERSION",
		Short: "Install a framework if needed and deploy it onto a reservation",
		Long: `Deploys a framework onto the machines of a reservation. The first
machine is the master, the others are workers. Settings are given as
--setting key=value or in a YAML settings file; run "clusterdeploy settings"
to list the keys a framework accepts.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := collectSettings(args[0], settingsFile, settingArgs)
			if err != nil {
				return err
			}
			r, err := st.reservation(cmd.Context(), preserveID)
			if err != nil {
				return err
			}
			return st.manager.Deploy(cmd.Context(), models.DeployRequest{
				PackageID:     args[0],
				Version:       args[1],
				ReservationID: r.ID,
				Machines:      r.Machines,
				Settings:      settings,
				Reinstall:     reinstall,
			})
		},
	}

	cmd.Flags().StringVar(&preserveID, "preserve-id", "LAST", "Reservation id to deploy to, or 'LAST' for the last reservation made by the user")
	cmd.Flags().StringArrayVarP(&settingArgs, "setting", "s", nil, "Deployment setting as key=value (repeatable)")
	cmd.Flags().StringVar(&settingsFile, "settings-file", "", "YAML file mapping setting keys to values")
	cmd.Flags().BoolVar(&reinstall, "reinstall", false, "Force a clean reinstallation of the framework")
	return cmd
}

// collectSettings merges the settings file with key=value arguments, the
// arguments taking precedence.
func collectSettings(pkg, file string, pairs []string) (map[string]string, error) {
	settings := make(map[string]string)
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, &models.DeployError{Type: models.ErrInvalidSetup, Package: pkg, Err: err}
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
			return nil, &models.DeployError{
				Type:    models.ErrInvalidSetup,
				Package: pkg,
				Err:     fmt.Errorf("failed to parse settings file %s: %w", file, err),
			}
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, models.NewError(models.ErrInvalidSetup, pkg, "setting %q is not of the form key=value", pair)
		}
		settings[key] = value
	}
	return settings, nil
}
