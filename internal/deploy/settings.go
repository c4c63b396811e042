package deploy

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ralt/clusterdeploy/internal/models"
)

// Setting is one recognized deployment option
type Setting struct {
	Key         string
	Description string
	Default     string
}

// Settings holds validated option values, with defaults applied
type Settings struct {
	pkg    string
	values map[string]string
}

// ParseSettings checks given against the allow-list declared and fills in
// defaults. Any key outside declared is rejected.
func ParseSettings(pkg string, declared []Setting, given map[string]string) (Settings, error) {
	values := make(map[string]string, len(declared))
	for _, s := range declared {
		values[s.Key] = s.Default
	}

	var unknown []string
	for k, v := range given {
		if _, ok := values[k]; !ok {
			unknown = append(unknown, k)
			continue
		}
		values[k] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Settings{}, models.NewError(models.ErrInvalidSetup, pkg,
			"found unknown settings: '%s'", strings.Join(unknown, "','"))
	}
	return Settings{pkg: pkg, values: values}, nil
}

// String returns the value of key
func (s Settings) String(key string) string {
	return s.values[key]
}

// Int parses the value of key as a non-negative integer
func (s Settings) Int(key string) (int, error) {
	raw := s.values[key]
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, models.NewError(models.ErrInvalidSetup, s.pkg,
			"setting %s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}

// Port parses the value of key as a TCP port
func (s Settings) Port(key string) (int, error) {
	n, err := s.Int(key)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > 65535 {
		return 0, models.NewError(models.ErrInvalidSetup, s.pkg, "setting %s is not a valid port: %d", key, n)
	}
	return n, nil
}

// Values returns a copy of every value
func (s Settings) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
