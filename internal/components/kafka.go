package components

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/template"
)

var zookeeperURL = template.Token("zookeeper_url")

// Kafka runs a single broker on the master
type Kafka struct{}

// KafkaConfig is the validated Kafka configuration
type KafkaConfig struct {
	Port         int
	ZookeeperURL string
}

func (Kafka) Settings() []deploy.Setting {
	return []deploy.Setting{
		{Key: "port", Description: "port to bind Kafka to", Default: "9092"},
		{Key: "zookeeper_url", Description: "URL of Zookeeper instance to connect to", Default: "127.0.0.1:2181"},
	}
}

func (Kafka) MinMachines() int { return 1 }

func (Kafka) Configure(_ *deploy.Version, s deploy.Settings, _ []string) (deploy.Bringup, error) {
	port, err := s.Port("port")
	if err != nil {
		return nil, err
	}
	return KafkaConfig{Port: port, ZookeeperURL: s.String("zookeeper_url")}, nil
}

func (c KafkaConfig) DeployInstalled(ctx context.Context, inst *deploy.Installation) error {
	master := inst.Master()
	dataDir := inst.LocalDir("kafka")
	inst.Log.Infof("Selected Kafka machine %q", master)

	inst.Log.Info("Generating configuration files...")
	vars := template.Vars{
		template.Host:    master,
		template.HomeDir: inst.Home,
		template.DataDir: dataDir,
		template.Port:    strconv.Itoa(c.Port),
		zookeeperURL:     c.ZookeeperURL,
	}
	if err := inst.Render(ctx, vars, template.Local(inst.Home)); err != nil {
		return err
	}

	inst.Log.Info("Creating a clean environment on the Kafka machine...")
	if err := inst.Purge(ctx, []string{master}, dataDir); err != nil {
		return err
	}

	inst.Log.Info("Starting Kafka broker...")
	start := remote.Args(
		filepath.Join(inst.Home, "bin", "kafka-server-start.sh"),
		"-daemon",
		filepath.Join(inst.Home, "config", "server.properties"),
	)
	if err := inst.Exec.Run(ctx, master, start, remote.Quiet); err != nil {
		return err
	}
	inst.Log.Infof("Kafka is now listening on %s:%d", master, c.Port)
	return nil
}
