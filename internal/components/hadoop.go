package components

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/template"
)

// Hadoop runs HDFS and YARN: the namenode and resource manager on the first
// machine, datanodes and node managers on the rest.
type Hadoop struct{}

// HadoopConfig is the validated Hadoop configuration
type HadoopConfig struct {
	YarnMemoryMB int
	JavaHome     string
}

func (Hadoop) Settings() []deploy.Setting {
	return []deploy.Setting{
		{Key: "yarn_memory_mb", Description: "memory available per node to YARN containers, in MiB", Default: "4096"},
		{Key: "java_home", Description: "JAVA_HOME to configure in hadoop-env.sh (empty keeps the environment's)", Default: ""},
	}
}

func (Hadoop) MinMachines() int { return 2 }

func (Hadoop) Configure(_ *deploy.Version, s deploy.Settings, _ []string) (deploy.Bringup, error) {
	mb, err := s.Int("yarn_memory_mb")
	if err != nil {
		return nil, err
	}
	return HadoopConfig{YarnMemoryMB: mb, JavaHome: s.String("java_home")}, nil
}

func (c HadoopConfig) DeployInstalled(ctx context.Context, inst *deploy.Installation) error {
	master := inst.Master()
	workers := inst.Workers()
	localDir := inst.LocalDir("hadoop")
	inst.Log.Infof("Deploying Hadoop master on %q, with %d workers", master, len(workers))

	inst.Log.Info("Generating configuration files...")
	confDir := filepath.Join(inst.Home, "etc", "hadoop")
	vars := template.Vars{
		template.Master:           master,
		template.Token("yarn_mb"): strconv.Itoa(c.YarnMemoryMB),
	}
	if c.JavaHome != "" {
		vars["${JAVA_HOME}"] = c.JavaHome
	}
	if err := inst.Render(ctx, vars, template.Local(confDir)); err != nil {
		return err
	}
	if err := writeHostList(filepath.Join(confDir, "masters"), []string{master}); err != nil {
		return err
	}
	if err := writeHostList(filepath.Join(confDir, "slaves"), workers); err != nil {
		return err
	}

	inst.Log.Info("Creating a clean environment on the master and workers...")
	if err := inst.Purge(ctx, []string{master}, localDir); err != nil {
		return err
	}
	if err := inst.Purge(ctx, workers, localDir, "tmp", "datanode"); err != nil {
		return err
	}

	inst.Log.Info("Formatting the namenode...")
	steps := []remote.Command{
		remote.Args(filepath.Join(inst.Home, "bin", "hadoop"), "namenode", "-format"),
		remote.Args(filepath.Join(inst.Home, "sbin", "start-dfs.sh")),
		remote.Args(filepath.Join(inst.Home, "sbin", "start-yarn.sh")),
	}
	for _, cmd := range steps {
		if err := inst.Exec.Run(ctx, master, cmd, remote.Quiet); err != nil {
			return err
		}
	}
	inst.Log.Info("Hadoop cluster deployed")
	return nil
}
