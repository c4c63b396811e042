package components

import (
	"context"
	"path/filepath"

	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/template"
	"github.com/ralt/clusterdeploy/internal/utils"
)

// PostgreSQL runs a database server on the master from the reservation's
// Conda environment.
type PostgreSQL struct {
	noSettings
}

func (PostgreSQL) MinMachines() int { return 1 }

func (PostgreSQL) Configure(_ *deploy.Version, _ deploy.Settings, _ []string) (deploy.Bringup, error) {
	return bringupFunc(deployPostgreSQL), nil
}

func deployPostgreSQL(ctx context.Context, inst *deploy.Installation) error {
	master := inst.Master()
	dataDir := inst.LocalDir("postgresql")
	env := inst.Env
	inst.Log.Infof("Deploying PostgreSQL on machine %q...", master)

	inst.Log.Info("Removing old environment on the PostgreSQL machine...")
	if err := inst.Exec.Run(ctx, master, remote.Args("rm", "-rf", dataDir), remote.Quiet); err != nil {
		return err
	}

	inst.Log.Info("Initializing PostgreSQL database...")
	if err := env.RemoteCommand(ctx, master, remote.Args("initdb", "-D", dataDir), remote.Quiet); err != nil {
		return err
	}

	inst.Log.Info("Generating configuration files...")
	vars := template.Vars{
		template.Host:      master,
		template.CondaRoot: env.Root(),
		template.DataDir:   dataDir,
	}
	if err := inst.Render(ctx, vars, template.Remote(master, dataDir)); err != nil {
		return err
	}

	logDir := filepath.Join(env.Root(), "var", "log")
	if err := utils.EnsureDir(logDir); err != nil {
		return &models.DeployError{Type: models.ErrInstallFailed, Package: "postgresql", Err: err}
	}

	inst.Log.Info("Starting PostgreSQL daemon...")
	start := remote.Args("pg_ctl", "-D", dataDir, "-l", filepath.Join(logDir, "postgres"), "start")
	if err := env.RemoteCommand(ctx, master, start, remote.Quiet); err != nil {
		return err
	}
	inst.Log.Infof("PostgreSQL is now listening on %s:5432", master)
	return nil
}
