// Package config loads clusterdeploy settings from flags, the environment
// and an optional clusterdeploy.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds every resolved setting
type Config struct {
	FrameworkDir    string        `mapstructure:"framework_dir"`
	TemplateDir     string        `mapstructure:"template_dir"`
	User            string        `mapstructure:"user"`
	SSHCommand      string        `mapstructure:"ssh_command"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	Keyring         string        `mapstructure:"keyring"`

	Conda       CondaConfig       `mapstructure:"conda"`
	Reservation ReservationConfig `mapstructure:"reservation"`

	// SSHOptions is parsed from the shell-quoted ssh_options string
	SSHOptions []string `mapstructure:"-"`
}

// CondaConfig pins what new environments are created with
type CondaConfig struct {
	Binary string `mapstructure:"binary"`
	Python string `mapstructure:"python"`
	Pip    string `mapstructure:"pip"`
}

// ReservationConfig selects the reservation provider
type ReservationConfig struct {
	Provider string `mapstructure:"provider"`
	File     string `mapstructure:"file"`
}

// New returns a viper instance with defaults, environment bindings and
// config file search paths set up.
func New() (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("framework_dir", "frameworks")
	v.SetDefault("template_dir", "conf")
	v.SetDefault("ssh_command", "ssh")
	v.SetDefault("ssh_options", "-o BatchMode=yes")
	v.SetDefault("download_timeout", "1000s")
	v.SetDefault("keyring", "")
	v.SetDefault("conda.binary", "conda")
	v.SetDefault("conda.python", "3.7.10")
	v.SetDefault("conda.pip", "21.0.1")
	v.SetDefault("reservation.provider", "preserve")
	v.SetDefault("reservation.file", "")

	bindings := map[string][]string{
		"framework_dir":    {"CLUSTERDEPLOY_FRAMEWORK_DIR"},
		"template_dir":     {"CLUSTERDEPLOY_TEMPLATE_DIR"},
		"user":             {"CLUSTERDEPLOY_USER", "USER"},
		"ssh_command":      {"CLUSTERDEPLOY_SSH_COMMAND"},
		"ssh_options":      {"CLUSTERDEPLOY_SSH_OPTIONS"},
		"download_timeout": {"CLUSTERDEPLOY_DOWNLOAD_TIMEOUT"},
		"keyring":          {"CLUSTERDEPLOY_KEYRING"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, err
		}
	}

	v.SetConfigName("clusterdeploy")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.clusterdeploy")
	return v, nil
}

// Load reads the optional config file and resolves v into a Config
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, invalid(fmt.Errorf("failed to read config file: %w", err))
		}
	} else {
		logrus.Debugf("Using config file %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, invalid(err)
	}

	opts, err := shellquote.Split(v.GetString("ssh_options"))
	if err != nil {
		return nil, invalid(fmt.Errorf("ssh_options: %w", err))
	}
	cfg.SSHOptions = opts
	cfg.TemplateDir = templateDir(cfg.TemplateDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings every command depends on
func (c *Config) Validate() error {
	if c.FrameworkDir == "" {
		return invalid(errors.New("framework_dir must not be empty"))
	}
	if c.User == "" {
		return invalid(errors.New("user is not set; export USER or set user in clusterdeploy.yaml"))
	}
	if c.SSHCommand == "" {
		return invalid(errors.New("ssh_command must not be empty"))
	}
	if c.DownloadTimeout <= 0 {
		return invalid(fmt.Errorf("download_timeout must be positive, got %s", c.DownloadTimeout))
	}
	return nil
}

// executable locates the running binary
var executable = os.Executable

// templateDir keeps a relative dir that exists under the working directory
// and otherwise looks for it next to the binary, where releases ship conf/.
func templateDir(dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	exe, err := executable()
	if err != nil {
		return dir
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	candidate := filepath.Join(filepath.Dir(exe), dir)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		logrus.Debugf("Using templates next to the executable in %s", candidate)
		return candidate
	}
	return dir
}

func invalid(err error) error {
	return &models.DeployError{Type: models.ErrInvalidConfig, Package: "config", Err: err}
}
