// Package remotetest provides an in-memory remote.Executor for tests.
package remotetest

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/ralt/clusterdeploy/internal/remote"
)

// Call is a single recorded Run invocation
type Call struct {
	Host    string
	Command string
	Verbose bool
}

// File is a single recorded WriteFile invocation
type File struct {
	Host string
	Path string
	Data []byte
	Mode os.FileMode
}

// Recorder records every command and file write instead of executing it.
type Recorder struct {
	mu    sync.Mutex
	Calls []Call
	Files []File

	// FailOn, when set, is consulted before recording a Run call; a non-nil
	// result is returned to the caller.
	FailOn func(host, command string) error
}

var _ remote.Executor = (*Recorder)(nil)

// Run implements remote.Executor
func (r *Recorder) Run(ctx context.Context, host string, cmd remote.Command, opts remote.Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := cmd.String()
	if r.FailOn != nil {
		if err := r.FailOn(host, line); err != nil {
			return err
		}
	}
	r.Calls = append(r.Calls, Call{Host: host, Command: line, Verbose: opts.Verbose})
	return nil
}

// WriteFile implements remote.Executor
func (r *Recorder) WriteFile(ctx context.Context, host, path string, data []byte, mode os.FileMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Files = append(r.Files, File{Host: host, Path: path, Data: append([]byte(nil), data...), Mode: mode})
	return nil
}

// Commands returns the recorded command lines for host, in order
func (r *Recorder) Commands(host string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, c := range r.Calls {
		if c.Host == host {
			out = append(out, c.Command)
		}
	}
	return out
}

// Find returns the first recorded call whose command contains substr
func (r *Recorder) Find(substr string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.Calls {
		if strings.Contains(c.Command, substr) {
			return c, true
		}
	}
	return Call{}, false
}

// File returns the last write recorded for host and path
func (r *Recorder) File(host, path string) (File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.Files) - 1; i >= 0; i-- {
		if r.Files[i].Host == host && r.Files[i].Path == path {
			return r.Files[i], true
		}
	}
	return File{}, false
}

// Empty reports whether nothing was run or written
func (r *Recorder) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.Calls) == 0 && len(r.Files) == 0
}
