package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/remote/remotetest"
	"github.com/ralt/clusterdeploy/internal/reservation"
	"github.com/stretchr/testify/require"
)

const reservations = `reservations:
  - id: "41"
    machines: [node01]
  - id: "42"
    state: R
    start: "2021-03-01 10:00:00"
    end: "2021-03-01 12:00:00"
    machines: [node01, node02, node03]
`

type harness struct {
	rec          *remotetest.Recorder
	frameworkDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("USER", "alice")
	t.Setenv("HOME", t.TempDir())
	return &harness{rec: &remotetest.Recorder{}, frameworkDir: t.TempDir()}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reservations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(reservations), 0644))

	cmd := NewRootCmd(WithExecutor(h.rec), WithReservations(reservation.NewFile(path)))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--framework-dir", h.frameworkDir, "--template-dir", "../../conf"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestListFrameworks(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "list-frameworks")
	require.NoError(t, err)
	require.Equal(t, "Supported frameworks:\nairflow\nhadoop\ninfluxdb\nkafka\npostgresql\nresource-monitor\nspark\nzookeeper\n", out)

	out, err = h.run(t, "list-frameworks", "--versions")
	require.NoError(t, err)
	require.Contains(t, out, "spark 2.4.0\nspark 3.1.1\n")
	require.Contains(t, out, "kafka 2.13-2.7.0\n")
}

func TestSettings(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "settings", "kafka", "2.13-2.7.0")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, []string{"SETTING", "DEFAULT", "DESCRIPTION"}, strings.Fields(lines[0])[:3])
	require.Equal(t, []string{"port", "9092"}, strings.Fields(lines[1])[:2])
	require.Equal(t, []string{"zookeeper_url", "127.0.0.1:2181"}, strings.Fields(lines[2])[:2])

	out, err = h.run(t, "settings", "zookeeper", "3.4.8")
	require.NoError(t, err)
	require.Equal(t, "ZooKeeper 3.4.8 has no deployment settings.\n", out)

	_, err = h.run(t, "settings", "kafka", "0.1")
	require.True(t, models.IsType(err, models.ErrUnknownVersion))

	_, err = h.run(t, "settings", "cassandra", "4.0")
	require.True(t, models.IsType(err, models.ErrNotFound))
}

func TestDeployRejectsUnknownSettingWithoutSideEffects(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "deploy", "kafka", "2.13-2.7.0", "--preserve-id", "42", "--setting", "bogus=1")
	require.True(t, models.IsType(err, models.ErrInvalidSetup))
	require.Contains(t, err.Error(), "'bogus'")
	require.True(t, h.rec.Empty())

	entries, err := os.ReadDir(h.frameworkDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDeployRejectsTooFewMachines(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "deploy", "spark", "3.1.1", "--preserve-id", "41")
	require.True(t, models.IsType(err, models.ErrInvalidSetup))
	require.True(t, h.rec.Empty())
}

func TestDeployUnknownReservation(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "deploy", "kafka", "2.13-2.7.0", "--preserve-id", "99")
	require.True(t, models.IsType(err, models.ErrReservation))
}

func TestCollectSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9093\"\nzookeeper_url: zk:2181\n"), 0644))

	settings, err := collectSettings("kafka", path, []string{"port=9094", "extra=a=b"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"port":          "9094",
		"zookeeper_url": "zk:2181",
		"extra":         "a=b",
	}, settings)

	_, err = collectSettings("kafka", "", []string{"port"})
	require.True(t, models.IsType(err, models.ErrInvalidSetup))

	_, err = collectSettings("kafka", filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.True(t, models.IsType(err, models.ErrInvalidSetup))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- port\n"), 0644))
	_, err = collectSettings("kafka", bad, nil)
	require.True(t, models.IsType(err, models.ErrInvalidSetup))
}

func TestReservationShow(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "reservation", "show")
	require.NoError(t, err)
	require.Equal(t, "Reservation ID: 42\n"+
		"State:          R\n"+
		"Start time:     2021-03-01 10:00:00\n"+
		"End time:       2021-03-01 12:00:00\n"+
		"Machines:       node01 node02 node03\n", out)

	out, err = h.run(t, "reservation", "show", "41")
	require.NoError(t, err)
	require.Equal(t, "Reservation ID: 41\nMachines:       node01\n", out)
}

func TestCondaCreate(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "conda", "create", "--preserve-id", "42", "--python", "3.8")
	require.NoError(t, err)
	require.Contains(t, out, "Conda environment created at '")
	require.Contains(t, out, "conda-42")
	require.Len(t, h.rec.Calls, 1)
	require.Contains(t, h.rec.Calls[0].Command, "conda create -y --prefix ")
	require.Contains(t, h.rec.Calls[0].Command, "python=3.8 pip=21.0.1")

	require.NoError(t, os.Mkdir(filepath.Join(h.frameworkDir, "conda-42"), 0755))
	out, err = h.run(t, "conda", "create")
	require.NoError(t, err)
	require.Contains(t, out, "already exists.")
	require.Len(t, h.rec.Calls, 1)
}

func TestCondaInstall(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "conda", "install", "-c", "conda-forge", "numpy=1.20")
	require.NoError(t, err)
	require.Len(t, h.rec.Calls, 1)
	require.Contains(t, h.rec.Calls[0].Command, "conda install -y --channel conda-forge numpy=1.20")

	_, err = h.run(t, "conda", "pip-install", "requests==2.25.1")
	require.NoError(t, err)
	require.Len(t, h.rec.Calls, 2)
	require.Contains(t, h.rec.Calls[1].Command, "pip install requests==2.25.1")

	_, err = h.run(t, "conda", "install")
	require.Error(t, err)
}

func TestCondaActivateCommand(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "conda", "get-activate-command")
	require.True(t, models.IsType(err, models.ErrNotFound))

	require.NoError(t, os.Mkdir(filepath.Join(h.frameworkDir, "conda-42"), 0755))
	out, err := h.run(t, "conda", "get-activate-command", "-q")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "conda activate /"))
	require.True(t, strings.HasSuffix(out, "conda-42\n"))

	out, err = h.run(t, "conda", "get-activate-command")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Activate the environment using 'conda activate "))
}
