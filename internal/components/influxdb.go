package components

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/template"
)

// InfluxDB runs a single InfluxDB daemon on the master
type InfluxDB struct{}

// InfluxDBConfig is the validated InfluxDB configuration
type InfluxDBConfig struct {
	HTTPPort int
	RPCPort  int
}

func (InfluxDB) Settings() []deploy.Setting {
	return []deploy.Setting{
		{Key: "http_port", Description: "port to bind InfluxDB HTTP interface to", Default: "8086"},
		{Key: "rpc_port", Description: "port to bind InfluxDB RPC interface to", Default: "8088"},
	}
}

func (InfluxDB) MinMachines() int { return 1 }

func (InfluxDB) Configure(_ *deploy.Version, s deploy.Settings, _ []string) (deploy.Bringup, error) {
	httpPort, err := s.Port("http_port")
	if err != nil {
		return nil, err
	}
	rpcPort, err := s.Port("rpc_port")
	if err != nil {
		return nil, err
	}
	if httpPort == rpcPort {
		return nil, models.NewError(models.ErrInvalidSetup, "influxdb", "http_port and rpc_port must differ")
	}
	return InfluxDBConfig{HTTPPort: httpPort, RPCPort: rpcPort}, nil
}

func (c InfluxDBConfig) DeployInstalled(ctx context.Context, inst *deploy.Installation) error {
	master := inst.Master()
	dataDir := inst.LocalDir("influxdb")
	inst.Log.Infof("Selected InfluxDB machine %q", master)

	inst.Log.Info("Generating configuration files...")
	vars := template.Vars{
		template.Host:               master,
		template.HomeDir:            inst.Home,
		template.DataDir:            dataDir,
		template.Token("http_port"): strconv.Itoa(c.HTTPPort),
		template.Token("rpc_port"):  strconv.Itoa(c.RPCPort),
	}
	if err := inst.Render(ctx, vars, template.Local(inst.Home)); err != nil {
		return err
	}

	inst.Log.Info("Creating a clean environment on the InfluxDB machine...")
	if err := inst.Purge(ctx, []string{master}, dataDir); err != nil {
		return err
	}

	inst.Log.Info("Starting InfluxDB daemon...")
	if err := inst.Exec.Run(ctx, master, remote.Args(filepath.Join(inst.Home, "sbin", "start-influxdb")), remote.Quiet); err != nil {
		return err
	}
	inst.Log.Infof("InfluxDB is now listening on %s:%d (HTTP) and %s:%d (RPC)", master, c.HTTPPort, master, c.RPCPort)
	return nil
}
