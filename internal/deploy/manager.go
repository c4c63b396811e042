package deploy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ralt/clusterdeploy/internal/archive"
	"github.com/ralt/clusterdeploy/internal/conda"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/template"
	"github.com/ralt/clusterdeploy/internal/utils"
	"github.com/sirupsen/logrus"
)

// Options wires a Manager to its collaborators
type Options struct {
	Registry  *Registry
	Archives  *archive.Installer
	Conda     *conda.Manager
	Executor  remote.Executor
	Templates string // root of conf/<package>/<line>/
	User      string
}

// Manager resolves packages and drives install then bring-up
type Manager struct {
	registry  *Registry
	archives  *archive.Installer
	conda     *conda.Manager
	exec      remote.Executor
	renderer  *template.Renderer
	templates string
	user      string
}

// NewManager creates a Manager
func NewManager(opts Options) *Manager {
	return &Manager{
		registry:  opts.Registry,
		archives:  opts.Archives,
		conda:     opts.Conda,
		exec:      opts.Executor,
		renderer:  template.NewRenderer(opts.Executor),
		templates: opts.Templates,
		user:      opts.User,
	}
}

// Registry returns the registry the manager resolves packages from
func (m *Manager) Registry() *Registry {
	return m.registry
}

func (m *Manager) resolve(id, version string) (*Package, *Version, error) {
	p, err := m.registry.Get(id)
	if err != nil {
		return nil, nil, err
	}
	v, err := p.Version(version)
	if err != nil {
		return nil, nil, err
	}
	return p, v, nil
}

// SupportedSettings lists the settings a package version accepts
func (m *Manager) SupportedSettings(id, version string) ([]Setting, error) {
	p, _, err := m.resolve(id, version)
	if err != nil {
		return nil, err
	}
	return p.Component.Settings(), nil
}

// Deploy installs the requested version if needed and brings it up on the
// request's machines. Settings and machine count are validated before
// anything touches the filesystem or the network.
func (m *Manager) Deploy(ctx context.Context, req models.DeployRequest) error {
	p, v, err := m.resolve(req.PackageID, req.Version)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{
		"package": p.ID,
		"version": v.Version,
	})

	if need := p.Component.MinMachines(); len(req.Machines) < need {
		return models.NewError(models.ErrInvalidSetup, p.ID,
			"%s requires at least %d machine(s), got %d", p.Name, need, len(req.Machines))
	}
	settings, err := ParseSettings(p.ID, p.Component.Settings(), req.Settings)
	if err != nil {
		return err
	}
	bringup, err := p.Component.Configure(v, settings, req.Machines)
	if err != nil {
		return err
	}
	templates, err := m.templateDir(p, v)
	if err != nil {
		return err
	}

	log.WithField("settings", settings.Values()).Infof("Deploying %s version %s to cluster of %d machine(s)...", p.Name, v.Version, len(req.Machines))

	inst, err := m.install(ctx, p, v, req.ReservationID, req.Reinstall)
	if err != nil {
		return err
	}
	inst.Machines = req.Machines
	inst.TemplateDir = templates
	inst.Log = log

	if err := bringup.DeployInstalled(ctx, inst); err != nil {
		return err
	}
	log.Infof("%s deployed", p.Name)
	return nil
}

// Install installs the requested version without bringing it up and returns
// the install location: the install directory or the environment root.
func (m *Manager) Install(ctx context.Context, req models.InstallRequest) (string, error) {
	p, v, err := m.resolve(req.PackageID, req.Version)
	if err != nil {
		return "", err
	}
	inst, err := m.install(ctx, p, v, req.ReservationID, req.Reinstall)
	if err != nil {
		return "", err
	}
	if inst.Env != nil {
		return inst.Env.Root(), nil
	}
	return inst.Home, nil
}

func (m *Manager) install(ctx context.Context, p *Package, v *Version, reservationID string, force bool) (*Installation, error) {
	inst := &Installation{
		Package:  p,
		Version:  v,
		User:     m.user,
		Exec:     m.exec,
		Renderer: m.renderer,
		Log:      logrus.WithFields(logrus.Fields{"package": p.ID, "version": v.Version}),
	}
	switch v.Backend() {
	case BackendArchive:
		home, err := m.archives.Install(ctx, Artifact(p, v), force)
		if err != nil {
			return nil, err
		}
		inst.Home = home
	case BackendEnvironment:
		if force {
			inst.Log.Debug("Reinstall has no effect on environment-backed packages")
		}
		env, err := m.conda.Ensure(ctx, reservationID, remote.Quiet)
		if err != nil {
			return nil, err
		}
		if !v.Environment.Empty() {
			inst.Log.Infof("Installing Conda package and dependencies for %s version %s...", p.Name, v.Version)
			if err := env.Populate(ctx, *v.Environment, remote.Quiet); err != nil {
				return nil, err
			}
		}
		inst.Env = env
	default:
		return nil, fmt.Errorf("unsupported backend %s", v.Backend())
	}
	return inst, nil
}

// templateDir locates the configuration templates of v. A version without
// templates yields "".
func (m *Manager) templateDir(p *Package, v *Version) (string, error) {
	if v.TemplateDir == "" {
		return "", nil
	}
	dir, err := filepath.Abs(filepath.Join(m.templates, p.ID, v.TemplateDir))
	if err != nil {
		return "", &models.DeployError{Type: models.ErrTemplateNotFound, Package: p.ID, Err: err}
	}
	if !utils.IsDir(dir) {
		return "", models.NewError(models.ErrTemplateNotFound, p.ID,
			"no configuration templates for %s version %s in %s", p.Name, v.Version, dir)
	}
	return dir, nil
}

// Artifact describes the archive of an archive-backed version
func Artifact(p *Package, v *Version) archive.Artifact {
	return archive.Artifact{
		ID:      p.ID,
		Name:    p.Name,
		Version: v.Version,
		Spec:    *v.Archive,
	}
}
