package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"

	"github.com/kballard/go-shellquote"
	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/utils"
	"github.com/sirupsen/logrus"
)

const stderrTailSize = 4096

// CommandError describes a command that exited unsuccessfully
type CommandError struct {
	Command  string
	Host     string
	ExitCode int
	Stderr   string
	Err      error
}

// Error implements the error interface
func (e *CommandError) Error() string {
	where := "locally"
	if e.Host != "" {
		where = "on " + e.Host
	}
	msg := fmt.Sprintf("command %q failed %s with exit code %d", e.Command, where, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.ExitCode < 0 && e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying process error
func (e *CommandError) Unwrap() error {
	return e.Err
}

// SSHExecutor runs local commands with os/exec and remote commands through
// an ssh client binary.
type SSHExecutor struct {
	ssh     string
	options []string
	stdout  io.Writer
	stderr  io.Writer
}

// NewSSHExecutor creates an executor using the given ssh binary and options
func NewSSHExecutor(sshCommand string, sshOptions []string) *SSHExecutor {
	if sshCommand == "" {
		sshCommand = "ssh"
	}
	return &SSHExecutor{
		ssh:     sshCommand,
		options: sshOptions,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
}

// SetOutput redirects the streams used in verbose mode
func (e *SSHExecutor) SetOutput(stdout, stderr io.Writer) {
	e.stdout = stdout
	e.stderr = stderr
}

// Run implements Executor
func (e *SSHExecutor) Run(ctx context.Context, host string, cmd Command, opts Options) error {
	return e.run(ctx, host, cmd, opts, nil)
}

// WriteFile implements Executor
func (e *SSHExecutor) WriteFile(ctx context.Context, host, filename string, data []byte, mode os.FileMode) error {
	if host == "" {
		perm := mode
		if perm == 0 {
			perm = 0644
		}
		if err := utils.WriteFile(filename, data, perm); err != nil {
			return &models.DeployError{
				Type: models.ErrCommandFailed,
				Err:  fmt.Errorf("failed to write %s: %w", filename, err),
			}
		}
		return nil
	}

	write := Shellf("mkdir -p %s && cat > %s", path.Dir(filename), filename)
	if err := e.run(ctx, host, write, Quiet, bytes.NewReader(data)); err != nil {
		return err
	}

	if mode != 0 {
		chmod := Shellf(fmt.Sprintf("chmod %04o %%s", mode.Perm()), filename)
		if err := e.run(ctx, host, chmod, Quiet, nil); err != nil {
			return err
		}
	}
	return nil
}

func (e *SSHExecutor) run(ctx context.Context, host string, cmd Command, opts Options, stdin io.Reader) error {
	c, err := e.command(ctx, host, cmd)
	if err != nil {
		return err
	}

	logrus.WithField("host", hostLabel(host)).Debugf("Running: %s", e.SSHCommandLine(host, cmd))

	tail := &tailBuffer{limit: stderrTailSize}
	if opts.Verbose {
		c.Stdout = e.stdout
		c.Stderr = e.stderr
	} else {
		c.Stdout = io.Discard
		c.Stderr = tail
	}
	if stdin != nil {
		c.Stdin = stdin
	}

	if err := c.Run(); err != nil {
		cmdErr := &CommandError{
			Command:  cmd.String(),
			Host:     host,
			ExitCode: -1,
			Stderr:   string(bytes.TrimSpace(tail.Bytes())),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		}
		return &models.DeployError{Type: models.ErrCommandFailed, Err: cmdErr}
	}
	return nil
}

func (e *SSHExecutor) command(ctx context.Context, host string, cmd Command) (*exec.Cmd, error) {
	if !cmd.IsShell() && len(cmd.Args) == 0 {
		return nil, &models.DeployError{
			Type: models.ErrCommandFailed,
			Err:  errors.New("empty command"),
		}
	}

	if host != "" {
		args := append(append([]string{}, e.options...), host, cmd.String())
		return exec.CommandContext(ctx, e.ssh, args...), nil
	}
	if cmd.IsShell() {
		return exec.CommandContext(ctx, "/bin/sh", "-c", cmd.Line), nil
	}
	return exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...), nil
}

// SSHCommandLine renders the full local command line used to reach host,
// suitable for showing to a user.
func (e *SSHExecutor) SSHCommandLine(host string, cmd Command) string {
	if host == "" {
		return cmd.String()
	}
	args := append(append([]string{e.ssh}, e.options...), host, cmd.String())
	return shellquote.Join(args...)
}

func hostLabel(host string) string {
	if host == "" {
		return "localhost"
	}
	return host
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte {
	return t.buf
}
