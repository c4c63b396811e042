// Package remote runs commands locally or on remote hosts over ssh and writes
// files onto remote hosts.
package remote

import (
	"context"
	"fmt"
	"os"

	"github.com/kballard/go-shellquote"
)

// Command is a single command line. Exactly one of Args or Line is used:
// Args is executed directly, Line is handed to a shell.
type Command struct {
	Args []string
	Line string
}

// Args builds a Command executed without a shell
func Args(args ...string) Command {
	return Command{Args: args}
}

// Shell builds a Command interpreted by a shell
func Shell(line string) Command {
	return Command{Line: line}
}

// Shellf builds a shell Command, quoting every argument
func Shellf(format string, args ...string) Command {
	quoted := make([]interface{}, len(args))
	for i, arg := range args {
		quoted[i] = shellquote.Join(arg)
	}
	return Command{Line: fmt.Sprintf(format, quoted...)}
}

// IsShell reports whether the command must be run through a shell
func (c Command) IsShell() bool {
	return c.Line != ""
}

// String renders the command as a single shell line
func (c Command) String() string {
	if c.IsShell() {
		return c.Line
	}
	return shellquote.Join(c.Args...)
}

// Options controls how a command is run
type Options struct {
	// Verbose forwards the child's stdout and stderr to the caller's streams
	Verbose bool
}

// Executor runs commands on the local machine (host == "") or on a remote host.
type Executor interface {
	// Run executes cmd and blocks until it exits. A non-zero exit status is
	// reported as a *CommandError.
	Run(ctx context.Context, host string, cmd Command, opts Options) error

	// WriteFile writes data to path on host, creating parent directories.
	// A non-zero mode is applied to the file after the content is written.
	WriteFile(ctx context.Context, host, path string, data []byte, mode os.FileMode) error
}

// Quiet is the zero Options value
var Quiet = Options{}

// Verbose forwards output
var Verbose = Options{Verbose: true}

// RunAll runs cmd on every host in order, stopping at the first failure.
func RunAll(ctx context.Context, exec Executor, hosts []string, cmd Command, opts Options) error {
	for _, host := range hosts {
		if err := exec.Run(ctx, host, cmd, opts); err != nil {
			return err
		}
	}
	return nil
}
