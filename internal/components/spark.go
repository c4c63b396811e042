package components

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/template"
)

var memoryPattern = regexp.MustCompile(`^[0-9]+[kKmMgGtT]?$`)

// Spark runs a standalone cluster: the master on the first machine and
// workers on the rest.
type Spark struct{}

// SparkConfig is the validated Spark configuration
type SparkConfig struct {
	WorkerInstances int
	WorkerCores     int
	WorkerMemory    string
	PreloadScript   string
}

func (Spark) Settings() []deploy.Setting {
	return []deploy.Setting{
		{Key: "worker_instances", Description: "worker instances to launch per node", Default: "1"},
		{Key: "worker_cores", Description: "cores available per worker instance to Spark", Default: "1"},
		{Key: "worker_memory", Description: "memory available per worker instance to Spark", Default: "1g"},
		{Key: "preload_script", Description: "script to run before any Spark command to set up environment", Default: ""},
	}
}

func (Spark) MinMachines() int { return 2 }

func (Spark) Configure(_ *deploy.Version, s deploy.Settings, _ []string) (deploy.Bringup, error) {
	var c SparkConfig
	var err error
	if c.WorkerInstances, err = s.Int("worker_instances"); err != nil {
		return nil, err
	}
	if c.WorkerCores, err = s.Int("worker_cores"); err != nil {
		return nil, err
	}
	c.WorkerMemory = s.String("worker_memory")
	if !memoryPattern.MatchString(c.WorkerMemory) {
		return nil, models.NewError(models.ErrInvalidSetup, "spark",
			"setting worker_memory must look like 512m or 4g, got %q", c.WorkerMemory)
	}
	c.PreloadScript = s.String("preload_script")
	return c, nil
}

func (c SparkConfig) vars(master string) template.Vars {
	preload := ""
	if c.PreloadScript != "" {
		preload = ". " + c.PreloadScript
	}
	return template.Vars{
		template.Master:                    master,
		template.Token("worker_instances"): strconv.Itoa(c.WorkerInstances),
		template.Token("worker_cores"):     strconv.Itoa(c.WorkerCores),
		template.Token("worker_memory"):    c.WorkerMemory,
		template.Token("preload_cmd"):      preload,
	}
}

func (c SparkConfig) DeployInstalled(ctx context.Context, inst *deploy.Installation) error {
	master := inst.Master()
	workers := inst.Workers()
	inst.Log.Infof("Deploying Spark driver on %q, with %d workers", master, len(workers))

	inst.Log.Info("Generating configuration files...")
	confDir := filepath.Join(inst.Home, "conf")
	if err := inst.Render(ctx, c.vars(master), template.Local(confDir)); err != nil {
		return err
	}
	if err := writeHostList(filepath.Join(confDir, "master"), []string{master}); err != nil {
		return err
	}
	if err := writeHostList(filepath.Join(confDir, "slaves"), workers); err != nil {
		return err
	}

	inst.Log.Info("Creating a clean environment on the master and workers...")
	if err := inst.Purge(ctx, inst.Machines, inst.LocalDir("spark")); err != nil {
		return err
	}

	inst.Log.Info("Deploying Spark...")
	if err := inst.Exec.Run(ctx, master, remote.Args(filepath.Join(inst.Home, "sbin", "start-all.sh")), remote.Quiet); err != nil {
		return err
	}
	inst.Log.Info("Spark cluster deployed")
	return nil
}
