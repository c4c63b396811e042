package components

import (
	"context"
	"path/filepath"

	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/template"
)

// Zookeeper runs a single ZooKeeper server on the master
type Zookeeper struct {
	noSettings
}

func (Zookeeper) MinMachines() int { return 1 }

func (Zookeeper) Configure(_ *deploy.Version, _ deploy.Settings, _ []string) (deploy.Bringup, error) {
	return bringupFunc(deployZookeeper), nil
}

func deployZookeeper(ctx context.Context, inst *deploy.Installation) error {
	master := inst.Master()
	inst.Log.Infof("Selected ZooKeeper machine %q", master)

	inst.Log.Info("Generating configuration files...")
	if err := inst.Render(ctx, template.Vars{}, template.Local(filepath.Join(inst.Home, "conf"))); err != nil {
		return err
	}

	inst.Log.Info("Creating a clean environment on the ZooKeeper machine...")
	if err := inst.Purge(ctx, []string{master}, inst.LocalDir("zookeeper")); err != nil {
		return err
	}

	inst.Log.Info("Deploying ZooKeeper...")
	if err := inst.Exec.Run(ctx, master, remote.Args(filepath.Join(inst.Home, "bin", "zkServer.sh"), "start"), remote.Quiet); err != nil {
		return err
	}
	inst.Log.Infof("ZooKeeper is now listening on %s:2181", master)
	return nil
}
