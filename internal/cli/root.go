package cli

import (
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/reservation"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Option customizes the collaborators the commands use
type Option func(*state)

// WithExecutor replaces the ssh-based executor
func WithExecutor(e remote.Executor) Option {
	return func(s *state) {
		s.exec = e
	}
}

// WithReservations replaces the configured reservation provider
func WithReservations(p reservation.Provider) Option {
	return func(s *state) {
		s.reservations = p
	}
}

// NewRootCmd creates the root command
func NewRootCmd(opts ...Option) *cobra.Command {
	st := newState(opts...)

	rootCmd := &cobra.Command{
		Use:   "clusterdeploy",
		Short: "Install and deploy distributed data-processing frameworks",
		Long: `Clusterdeploy installs Big Data frameworks into a shared framework
directory and deploys them onto the machines of a reservation.

Supported frameworks:
  - Archive distributions (ZooKeeper, Kafka, Spark, Hadoop, InfluxDB,
    Resource Monitor)
  - Conda environments (PostgreSQL, Airflow)`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
			return st.bind(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging and show command output")
	flags.StringP("framework-dir", "f", "", "Directory to store Big Data frameworks in (default \"frameworks\")")
	flags.String("template-dir", "", "Directory holding configuration templates (default \"conf\")")
	flags.String("config", "", "Config file (default is ./clusterdeploy.yaml or $HOME/.clusterdeploy/clusterdeploy.yaml)")

	rootCmd.AddCommand(
		newListFrameworksCmd(st),
		newInstallCmd(st),
		newDeployCmd(st),
		newSettingsCmd(st),
		newCondaCmd(st),
		newReservationCmd(st),
	)

	return rootCmd
}
