package reservation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File reads static reservations from a YAML file:
//
//	reservations:
//	  - id: "42"
//	    machines: [node01, node02]
//
// Last resolves to the final entry.
type File struct {
	path string
}

type fileContents struct {
	Reservations []Reservation `yaml:"reservations"`
}

// NewFile creates a File provider
func NewFile(path string) *File {
	return &File{path: path}
}

// Fetch implements Provider
func (f *File) Fetch(_ context.Context, id string) (*Reservation, error) {
	all, err := f.load()
	if err != nil {
		return nil, failed(err)
	}
	if id == Last {
		if len(all) == 0 {
			return nil, notFound(id)
		}
		return &all[len(all)-1], nil
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, notFound(id)
}

func (f *File) load() ([]Reservation, error) {
	r, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var contents fileContents
	if err := dec.Decode(&contents); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}

	seen := make(map[string]bool)
	for _, res := range contents.Reservations {
		if res.ID == "" {
			return nil, fmt.Errorf("%s: reservation without id", f.path)
		}
		if seen[res.ID] {
			return nil, fmt.Errorf("%s: duplicate reservation id %q", f.path, res.ID)
		}
		seen[res.ID] = true
	}
	return contents.Reservations, nil
}
