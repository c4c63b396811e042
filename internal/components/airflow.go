package components

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/kballard/go-shellquote"
	"github.com/ralt/clusterdeploy/internal/deploy"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/template"
)

var (
	airflowHomeToken = template.Token("airflow_home")
	airflowDagsToken = template.Token("airflow_dags")
)

// Airflow runs the Airflow webserver and scheduler on the master. It expects
// PostgreSQL to be running there from the same Conda environment.
type Airflow struct{}

// AirflowConfig is the validated Airflow configuration
type AirflowConfig struct {
	WebserverPort int
}

func (Airflow) Settings() []deploy.Setting {
	return []deploy.Setting{
		{Key: "webserver_port", Description: "port to bind the Airflow webserver to", Default: "10800"},
	}
}

func (Airflow) MinMachines() int { return 1 }

func (Airflow) Configure(_ *deploy.Version, s deploy.Settings, _ []string) (deploy.Bringup, error) {
	port, err := s.Port("webserver_port")
	if err != nil {
		return nil, err
	}
	return AirflowConfig{WebserverPort: port}, nil
}

func (c AirflowConfig) DeployInstalled(ctx context.Context, inst *deploy.Installation) error {
	master := inst.Master()
	env := inst.Env
	home := inst.LocalDir("airflow")
	dags := filepath.Join(env.Root(), "var", "airflow", "dags")
	inst.Log.Infof("Deploying Airflow on machine %q...", master)

	inst.Log.Info("Removing old environment on the Airflow machine...")
	for _, dir := range []string{home, dags} {
		if err := inst.Exec.Run(ctx, master, remote.Args("rm", "-rf", dir), remote.Quiet); err != nil {
			return err
		}
	}

	inst.Log.Info("Generating configuration files...")
	vars := template.Vars{
		template.Host:      master,
		template.CondaRoot: env.Root(),
		airflowHomeToken:   home,
		airflowDagsToken:   dags,
	}
	if err := inst.Render(ctx, vars, template.Remote(master, home)); err != nil {
		return err
	}

	airflow := func(args ...string) remote.Command {
		return remote.Shell("AIRFLOW_HOME=" + shellquote.Join(home) + " " + shellquote.Join(append([]string{"airflow"}, args...)...))
	}
	user := inst.User
	steps := []struct {
		msg string
		cmd remote.Command
	}{
		{"Creating PostgreSQL user and database for Airflow...", remote.Args("createuser", "airflow")},
		{"", remote.Args("createdb", "--owner=airflow", "airflow")},
		{"Initializing Airflow...", airflow("db", "init")},
		{"", airflow("users", "create", "-u", user, "-p", user, "-f", "Default", "-l", "User", "-r", "Admin", "-e", user+"@localhost")},
	}
	for _, step := range steps {
		if step.msg != "" {
			inst.Log.Info(step.msg)
		}
		if err := env.RemoteCommand(ctx, master, step.cmd, remote.Quiet); err != nil {
			return err
		}
	}
	if err := inst.Exec.Run(ctx, master, remote.Args("mkdir", "-p", dags), remote.Quiet); err != nil {
		return err
	}

	inst.Log.Info("Starting Airflow daemons...")
	daemons := []remote.Command{
		airflow("webserver", "-H", master, "-p", strconv.Itoa(c.WebserverPort), "-D"),
		airflow("scheduler", "-D"),
	}
	for _, cmd := range daemons {
		if err := env.RemoteCommand(ctx, master, cmd, remote.Quiet); err != nil {
			return err
		}
	}
	inst.Log.Infof("Airflow is now listening on %s:%d", master, c.WebserverPort)
	return nil
}
