package remote

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeSSH writes a script that drops the host argument and runs the remote
// command line with the local shell, like ssh would on the remote side.
func fakeSSH(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ssh")
	script := "#!/bin/sh\nshift\nexec /bin/sh -c \"$*\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestCommandString(t *testing.T) {
	require.Equal(t, "rm -rf '/local/alice/kafka dir'", Args("rm", "-rf", "/local/alice/kafka dir").String())
	require.Equal(t, "mkdir -p /local/x && true", Shell("mkdir -p /local/x && true").String())
	require.Equal(t, "rm -rf '/local/a b'/", Shellf("rm -rf %s/", "/local/a b").String())
}

func TestRunLocalSuccessAndFailure(t *testing.T) {
	e := NewSSHExecutor("ssh", nil)
	ctx := context.Background()

	require.NoError(t, e.Run(ctx, "", Args("true"), Quiet))

	err := e.Run(ctx, "", Shell("echo boom >&2; exit 3"), Quiet)
	require.Error(t, err)
	require.True(t, models.IsType(err, models.ErrCommandFailed))

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	require.Equal(t, 3, cmdErr.ExitCode)
	require.Equal(t, "boom", cmdErr.Stderr)
	require.Contains(t, err.Error(), "exit code 3")
}

func TestRunLocalMissingBinary(t *testing.T) {
	e := NewSSHExecutor("ssh", nil)
	err := e.Run(context.Background(), "", Args("/nonexistent/binary"), Quiet)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	require.Equal(t, -1, cmdErr.ExitCode)
}

func TestRunVerboseForwardsOutput(t *testing.T) {
	e := NewSSHExecutor("ssh", nil)
	var stdout, stderr bytes.Buffer
	e.SetOutput(&stdout, &stderr)

	require.NoError(t, e.Run(context.Background(), "", Shell("echo out; echo err >&2"), Verbose))
	require.Equal(t, "out\n", stdout.String())
	require.Equal(t, "err\n", stderr.String())

	stdout.Reset()
	require.NoError(t, e.Run(context.Background(), "", Shell("echo hidden"), Quiet))
	require.Empty(t, stdout.String())
}

func TestRunRemoteGoesThroughSSH(t *testing.T) {
	e := NewSSHExecutor(fakeSSH(t), nil)
	marker := filepath.Join(t.TempDir(), "dir with space", "marker")

	err := e.Run(context.Background(), "node01", Args("mkdir", "-p", filepath.Dir(marker)), Quiet)
	require.NoError(t, err)
	require.DirExists(t, filepath.Dir(marker))

	err = e.Run(context.Background(), "node01", Shell("exit 7"), Quiet)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	require.Equal(t, 7, cmdErr.ExitCode)
	require.Equal(t, "node01", cmdErr.Host)
}

func TestWriteFileRemoteCreatesParentsAndChmods(t *testing.T) {
	e := NewSSHExecutor(fakeSSH(t), nil)
	dst := filepath.Join(t.TempDir(), "airflow", "conf", "airflow.cfg")

	err := e.WriteFile(context.Background(), "node01", dst, []byte("[core]\nload_examples = False"), 0750)
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "[core]\nload_examples = False", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0750), info.Mode().Perm())
}

func TestWriteFileLocal(t *testing.T) {
	e := NewSSHExecutor("ssh", nil)
	dst := filepath.Join(t.TempDir(), "a", "b.conf")

	require.NoError(t, e.WriteFile(context.Background(), "", dst, []byte("x"), 0))
	info, err := os.Stat(dst)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestRunAllStopsAtFirstFailure(t *testing.T) {
	e := NewSSHExecutor(fakeSSH(t), nil)
	dir := t.TempDir()

	err := RunAll(context.Background(), e, []string{"node01", "node02"}, Shellf("test ! -e %s && touch %s", filepath.Join(dir, "once"), filepath.Join(dir, "once")), Quiet)
	require.Error(t, err)
	require.FileExists(t, filepath.Join(dir, "once"))
}

func TestSSHCommandLine(t *testing.T) {
	e := NewSSHExecutor("ssh", []string{"-o", "BatchMode=yes"})
	require.Equal(t, "ssh -o BatchMode=yes node01 'rm -rf /local/alice/spark/'",
		e.SSHCommandLine("node01", Args("rm", "-rf", "/local/alice/spark/")))
	require.Equal(t, "true", e.SSHCommandLine("", Args("true")))
}
