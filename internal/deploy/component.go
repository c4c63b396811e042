package deploy

import (
	"context"
	"path"

	"github.com/ralt/clusterdeploy/internal/conda"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/template"
	"github.com/sirupsen/logrus"
)

// Component is the per-package bring-up logic.
//
// Configure runs before anything is installed and must reject invalid
// settings or topologies without side effects. The returned Bringup starts
// the service on an installed version.
type Component interface {
	Settings() []Setting
	MinMachines() int
	Configure(v *Version, s Settings, machines []string) (Bringup, error)
}

// Bringup starts an installed version on the target machines
type Bringup interface {
	DeployInstalled(ctx context.Context, inst *Installation) error
}

// Installation describes an installed version ready to be brought up
type Installation struct {
	Package *Package
	Version *Version

	// Home is the absolute install directory of archive-backed versions
	Home string
	// Env is the environment of environment-backed versions
	Env *conda.Env

	Machines []string
	User     string
	// TemplateDir is the absolute template root for this version, or empty
	TemplateDir string

	Exec     remote.Executor
	Renderer *template.Renderer
	Log      *logrus.Entry
}

// Master returns the first machine
func (i *Installation) Master() string {
	return i.Machines[0]
}

// Workers returns every machine after the master
func (i *Installation) Workers() []string {
	return i.Machines[1:]
}

// LocalDir returns /local/<user>/<name>, the per-user scratch directory used
// on every machine.
func (i *Installation) LocalDir(name string) string {
	return path.Join("/local", i.User, name)
}

// Render renders the version's templates into dst with the user token set.
func (i *Installation) Render(ctx context.Context, vars template.Vars, dst template.Destination) error {
	if i.TemplateDir == "" {
		return nil
	}
	vars = vars.With(template.User, i.User)
	_, err := i.Renderer.Render(ctx, i.TemplateDir, vars, dst)
	return err
}

// Purge removes and recreates dir on every host, one host at a time.
func (i *Installation) Purge(ctx context.Context, hosts []string, dir string, subdirs ...string) error {
	if err := remote.RunAll(ctx, i.Exec, hosts, remote.Shellf("rm -rf %s", dir), remote.Quiet); err != nil {
		return err
	}
	targets := []string{dir}
	for _, s := range subdirs {
		targets = append(targets, path.Join(dir, s))
	}
	return remote.RunAll(ctx, i.Exec, hosts, remote.Args(append([]string{"mkdir", "-p"}, targets...)...), remote.Quiet)
}
