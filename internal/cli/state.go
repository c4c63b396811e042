package cli

import (
	"context"
	"strings"

	"github.com/ralt/clusterdeploy/internal/archive"
	"github.com/ralt/clusterdeploy/internal/components"
	"github.com/ralt/clusterdeploy/internal/conda"
	"github.com/ralt/clusterdeploy/internal/config"
	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/reservation"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// state lazily builds everything a command needs from the configuration
type state struct {
	v       *viper.Viper
	initErr error

	exec         remote.Executor
	reservations reservation.Provider

	cfg      *config.Config
	registry *deploy.Registry
	manager  *deploy.Manager
	conda    *conda.Manager
}

func newState(opts ...Option) *state {
	v, err := config.New()
	st := &state{v: v, initErr: err}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// bind connects the root persistent flags to the configuration
func (s *state) bind(cmd *cobra.Command) error {
	if s.initErr != nil {
		return s.initErr
	}
	flags := cmd.Root().PersistentFlags()
	if err := s.v.BindPFlag("framework_dir", flags.Lookup("framework-dir")); err != nil {
		return err
	}
	if err := s.v.BindPFlag("template_dir", flags.Lookup("template-dir")); err != nil {
		return err
	}
	if path, _ := flags.GetString("config"); path != "" {
		s.v.SetConfigFile(path)
	}
	return nil
}

// Registry needs no configuration, so listing works without a valid setup.
func (s *state) packages() (*deploy.Registry, error) {
	if s.registry == nil {
		reg, err := components.NewRegistry()
		if err != nil {
			return nil, err
		}
		s.registry = reg
	}
	return s.registry, nil
}

func (s *state) load() error {
	if s.cfg != nil {
		return nil
	}
	cfg, err := config.Load(s.v)
	if err != nil {
		return err
	}
	logrus.Debugf("Loaded configuration: %+v", *cfg)

	if s.exec == nil {
		s.exec = remote.NewSSHExecutor(cfg.SSHCommand, cfg.SSHOptions)
	}
	if s.reservations == nil {
		p, err := reservation.New(cfg.Reservation.Provider, cfg.Reservation.File, cfg.User)
		if err != nil {
			return err
		}
		s.reservations = p
	}

	var installerOpts []archive.Option
	if cfg.Keyring != "" {
		keyring, err := archive.LoadKeyring(cfg.Keyring)
		if err != nil {
			return err
		}
		installerOpts = append(installerOpts, archive.WithKeyring(keyring))
	}

	reg, err := s.packages()
	if err != nil {
		return err
	}
	s.conda = conda.NewManager(cfg.FrameworkDir, s.exec,
		conda.WithBinary(cfg.Conda.Binary),
		conda.WithVersions(cfg.Conda.Python, cfg.Conda.Pip))
	s.manager = deploy.NewManager(deploy.Options{
		Registry:  reg,
		Archives:  archive.NewInstaller(cfg.FrameworkDir, cfg.DownloadTimeout, installerOpts...),
		Conda:     s.conda,
		Executor:  s.exec,
		Templates: cfg.TemplateDir,
		User:      cfg.User,
	})
	s.cfg = cfg
	return nil
}

func (s *state) reservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	r, err := s.reservations.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("Using %s: %s", r, strings.Join(r.Machines, " "))
	return r, nil
}

func outputOptions(cmd *cobra.Command) remote.Options {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return remote.Options{Verbose: verbose}
}
