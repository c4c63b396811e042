package components

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/template"
)

// ResourceMonitor collects metrics on every machine of the reservation.
// Versions listed in Build ship as source and are compiled with make after
// installation.
type ResourceMonitor struct {
	noSettings
	Build map[string]bool
}

func (ResourceMonitor) MinMachines() int { return 1 }

func (r ResourceMonitor) Configure(v *deploy.Version, _ deploy.Settings, _ []string) (deploy.Bringup, error) {
	return resourceMonitorBringup{build: r.Build[v.Version]}, nil
}

type resourceMonitorBringup struct {
	build bool
}

func (b resourceMonitorBringup) DeployInstalled(ctx context.Context, inst *deploy.Installation) error {
	inst.Log.Info("Generating configuration files...")
	vars := template.Vars{template.Machines: strings.Join(inst.Machines, " ")}
	if err := inst.Render(ctx, vars, template.Local(inst.Home)); err != nil {
		return err
	}

	if b.build {
		inst.Log.Info("Compiling Resource Monitor binaries...")
		if err := inst.Exec.Run(ctx, "", remote.Args("make", "-C", inst.Home), remote.Quiet); err != nil {
			return err
		}
	}

	inst.Log.Info("Creating a clean environment on each machine...")
	if err := inst.Purge(ctx, inst.Machines, inst.LocalDir("resource-monitor"), "metrics", "logs"); err != nil {
		return err
	}

	inst.Log.Info("Deploying Resource Monitor to every machine in the reservation...")
	if err := inst.Exec.Run(ctx, "", remote.Args(filepath.Join(inst.Home, "sbin", "start-all.sh")), remote.Quiet); err != nil {
		return err
	}
	inst.Log.Info("Resource Monitor is now running on all machines")
	return nil
}
