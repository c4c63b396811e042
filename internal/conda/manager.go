package conda

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPython = "3.7.10"
	DefaultPip    = "21.0.1"
	DefaultBinary = "conda"
)

// Manager maps reservations to environments below a framework directory
type Manager struct {
	root   string
	exec   remote.Executor
	binary string
	python string
	pip    string
}

// Option configures a Manager
type Option func(*Manager)

// WithBinary sets the conda executable
func WithBinary(binary string) Option {
	return func(m *Manager) {
		if binary != "" {
			m.binary = binary
		}
	}
}

// WithVersions pins the Python and pip versions of new environments
func WithVersions(python, pip string) Option {
	return func(m *Manager) {
		m.python = python
		m.pip = pip
	}
}

// NewManager creates a Manager rooted at the framework directory root
func NewManager(root string, exec remote.Executor, opts ...Option) *Manager {
	m := &Manager{
		root:   root,
		exec:   exec,
		binary: DefaultBinary,
		python: DefaultPython,
		pip:    DefaultPip,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Env returns the handle for reservationID without creating anything
func (m *Manager) Env(reservationID string) (*Env, error) {
	root, err := m.Root(reservationID)
	if err != nil {
		return nil, err
	}
	return &Env{root: root, binary: m.binary, exec: m.exec}, nil
}

// Root returns the absolute environment root for reservationID
func (m *Manager) Root(reservationID string) (string, error) {
	if reservationID == "" {
		return "", models.NewError(models.ErrEnvironmentCreateFailed, "conda", "empty reservation id")
	}
	base, err := filepath.Abs(m.root)
	if err != nil {
		return "", &models.DeployError{Type: models.ErrEnvironmentCreateFailed, Package: "conda", Err: err}
	}
	if resolved, err := filepath.EvalSymlinks(base); err == nil {
		base = resolved
	}
	return filepath.Join(base, "conda-"+reservationID), nil
}

// Ensure returns the environment for reservationID, creating it with the
// manager's pinned versions when its root does not exist.
func (m *Manager) Ensure(ctx context.Context, reservationID string, opts remote.Options) (*Env, error) {
	env, err := m.Env(reservationID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("path", env.Root())
	log.Info("Looking for Conda environment...")

	exists, isDir, err := statRoot(env.Root())
	if err != nil {
		return nil, &models.DeployError{Type: models.ErrEnvironmentCreateFailed, Package: "conda", Err: err}
	}
	if exists && !isDir {
		return nil, models.NewError(models.ErrEnvironmentCreateFailed, "conda",
			"%s exists and is not a directory", env.Root())
	}
	if exists {
		log.Debug("Found existing environment")
		return env, nil
	}

	log.Info("Creating new Conda environment...")
	if err := env.Create(ctx, m.python, m.pip, opts); err != nil {
		return nil, err
	}
	log.Debug("Conda environment successfully created")
	return env, nil
}

// Describe renders the human-readable activation hint
func Describe(env *Env) string {
	return fmt.Sprintf("Activate the environment using '%s'.", env.ActivateCommand())
}
