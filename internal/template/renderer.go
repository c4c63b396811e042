// Package template renders configuration templates by substituting
// double-underscore placeholders such as __HOST__.
package template

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/ralt/clusterdeploy/internal/remote"
	"github.com/ralt/clusterdeploy/internal/utils"
	"github.com/sirupsen/logrus"
)

// Suffix marks a file as a template
const Suffix = ".template"

// Destination selects where rendered files are written. An empty Host
// writes to the local filesystem.
type Destination struct {
	Host string
	Dir  string
}

// Local returns a Destination on the local filesystem
func Local(dir string) Destination {
	return Destination{Dir: dir}
}

// Remote returns a Destination on host
func Remote(host, dir string) Destination {
	return Destination{Host: host, Dir: dir}
}

// Renderer writes rendered templates, remotely through an Executor
type Renderer struct {
	exec remote.Executor
}

// NewRenderer creates a Renderer. exec is only used for remote destinations.
func NewRenderer(exec remote.Executor) *Renderer {
	return &Renderer{exec: exec}
}

// Find returns the template files under root, relative to root, sorted
func Find(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.NewError(models.ErrTemplateNotFound, "", "template directory %s does not exist", root)
		}
		return nil, &models.DeployError{Type: models.ErrRenderFailed, Err: err}
	}
	if !info.IsDir() {
		return nil, models.NewError(models.ErrTemplateNotFound, "", "template path %s is not a directory", root)
	}

	var templates []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), Suffix) || d.Name() == Suffix {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		templates = append(templates, rel)
		return nil
	})
	if err != nil {
		return nil, &models.DeployError{
			Type: models.ErrRenderFailed,
			Err:  fmt.Errorf("failed to scan template directory %s: %w", root, err),
		}
	}

	sort.Strings(templates)
	return templates, nil
}

// Render substitutes vars into every template under root and writes the
// results below dst.Dir, mirroring the directory structure and dropping the
// template suffix. It returns the rendered paths relative to dst.Dir.
func (r *Renderer) Render(ctx context.Context, root string, vars Vars, dst Destination) ([]string, error) {
	templates, err := Find(root)
	if err != nil {
		return nil, err
	}

	sub := newSubstituter(vars)
	var rendered []string
	for _, rel := range templates {
		select {
		case <-ctx.Done():
			return rendered, ctx.Err()
		default:
		}

		src := filepath.Join(root, rel)
		relDst := strings.TrimSuffix(rel, Suffix)
		logrus.WithField("host", dst.Host).Debugf("Generating file %s", relDst)

		info, err := os.Stat(src)
		if err != nil {
			return rendered, renderFailed(src, err)
		}
		content, err := os.ReadFile(src)
		if err != nil {
			return rendered, renderFailed(src, err)
		}

		out := []byte(sub.render(string(content)))
		mode := info.Mode().Perm()

		if dst.Host == "" {
			target := filepath.Join(dst.Dir, relDst)
			if err := utils.WriteFile(target, out, mode); err != nil {
				return rendered, renderFailed(target, err)
			}
		} else {
			target := filepath.ToSlash(filepath.Join(dst.Dir, relDst))
			if err := r.exec.WriteFile(ctx, dst.Host, target, out, mode); err != nil {
				return rendered, renderFailed(dst.Host+":"+target, err)
			}
		}
		rendered = append(rendered, relDst)
	}

	return rendered, nil
}

func renderFailed(path string, err error) error {
	return &models.DeployError{
		Type: models.ErrRenderFailed,
		Err:  fmt.Errorf("%s: %w", path, err),
	}
}

// substituter replaces every placeholder in a single pass; replacement
// values are never rescanned.
type substituter struct {
	vars    Vars
	pattern *regexp.Regexp
}

func newSubstituter(vars Vars) *substituter {
	if len(vars) == 0 {
		return &substituter{vars: vars}
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	// Longest first so that a token which prefixes another never wins.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return &substituter{
		vars:    vars,
		pattern: regexp.MustCompile(strings.Join(quoted, "|")),
	}
}

func (s *substituter) render(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		line = strings.TrimRightFunc(line, isSpace)
		if s.pattern != nil {
			line = s.pattern.ReplaceAllStringFunc(line, func(m string) string {
				return s.vars[m]
			})
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\v', '\f':
		return true
	}
	return false
}
