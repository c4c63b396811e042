// Package conda manages reservation-scoped Conda environments.
//
// An environment lives at <frameworkDir>/conda-<reservationId> and is shared
// by every environment-backed package deployed on that reservation.
package conda

import (
	"context"
	"fmt"
	"os"

	"github.com/kballard/go-shellquote"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/utils"
)

// Env is a handle to one Conda environment root. The root may not exist yet.
type Env struct {
	root   string
	binary string
	exec   remote.Executor
}

// Root returns the absolute environment root
func (e *Env) Root() string {
	return e.root
}

// Exists reports whether the environment root is a directory
func (e *Env) Exists() bool {
	return utils.IsDir(e.root)
}

// Create runs "conda create" for the root. It refuses to touch a path that
// already exists. Empty versions let conda pick the latest release.
func (e *Env) Create(ctx context.Context, python, pip string, opts remote.Options) error {
	if ok, _ := utils.Exists(e.root); ok {
		return models.NewError(models.ErrEnvironmentCreateFailed, "conda",
			"cannot create Conda environment: path %s already exists", e.root)
	}

	args := []string{e.binary, "create", "-y", "--prefix", e.root, pin("python", python), pin("pip", pip)}
	if err := e.exec.Run(ctx, "", remote.Args(args...), opts); err != nil {
		return &models.DeployError{
			Type:    models.ErrEnvironmentCreateFailed,
			Package: "conda",
			Err:     fmt.Errorf("failed to create environment at %s: %w", e.root, err),
		}
	}
	return nil
}

// Install installs Conda packages into the environment, optionally from
// extra channels.
func (e *Env) Install(ctx context.Context, packages, channels []string, opts remote.Options) error {
	if len(packages) == 0 {
		return nil
	}
	args := []string{e.binary, "install", "-y"}
	for _, ch := range channels {
		args = append(args, "--channel", ch)
	}
	args = append(args, packages...)
	return e.Command(ctx, remote.Args(args...), opts)
}

// PipInstall installs PyPI packages with the environment's pip
func (e *Env) PipInstall(ctx context.Context, packages []string, opts remote.Options) error {
	if len(packages) == 0 {
		return nil
	}
	return e.Command(ctx, remote.Args(append([]string{"pip", "install"}, packages...)...), opts)
}

// Populate applies spec's Conda packages and then its pip packages. The two
// steps are not atomic: when the pip step fails the Conda packages stay
// installed, so an existing environment does not imply a complete one.
func (e *Env) Populate(ctx context.Context, spec Spec, opts remote.Options) error {
	if err := e.Install(ctx, spec.Packages, spec.Channels, opts); err != nil {
		return err
	}
	return e.PipInstall(ctx, spec.PipPackages, opts)
}

// Command runs cmd locally inside the activated environment
func (e *Env) Command(ctx context.Context, cmd remote.Command, opts remote.Options) error {
	return e.exec.Run(ctx, "", e.Activated(cmd), opts)
}

// RemoteCommand runs cmd on host inside the activated environment. The
// environment root must be reachable from host under the same path.
func (e *Env) RemoteCommand(ctx context.Context, host string, cmd remote.Command, opts remote.Options) error {
	return e.exec.Run(ctx, host, e.Activated(cmd), opts)
}

// Activated wraps cmd in a login shell that activates the environment first.
func (e *Env) Activated(cmd remote.Command) remote.Command {
	line := e.ActivateCommand() + " && " + cmd.String()
	return remote.Shell("bash --login -c " + shellquote.Join(line))
}

// ActivateCommand returns the shell line a user runs to enter the environment
func (e *Env) ActivateCommand() string {
	return "conda activate " + shellquote.Join(e.root)
}

// Spec lists what an environment-backed package version needs installed
type Spec struct {
	Packages    []string
	Channels    []string
	PipPackages []string
}

// Empty reports whether s installs nothing
func (s Spec) Empty() bool {
	return len(s.Packages) == 0 && len(s.PipPackages) == 0
}

func pin(name, version string) string {
	if version == "" {
		return name
	}
	return name + "=" + version
}

// statRoot distinguishes a missing root from one that is not a directory
func statRoot(root string) (exists, isDir bool, err error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, info.IsDir(), nil
}
