package reservation

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Runner runs a command and returns its standard output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Preserve reads reservations from the preserve cluster scheduler
type Preserve struct {
	user string
	run  Runner
}

// NewPreserve creates a Preserve provider acting as user
func NewPreserve(user string) *Preserve {
	return &Preserve{user: user, run: runCommand}
}

// WithRunner replaces the command runner
func (p *Preserve) WithRunner(run Runner) *Preserve {
	p.run = run
	return p
}

// Fetch implements Provider
func (p *Preserve) Fetch(ctx context.Context, id string) (*Reservation, error) {
	out, err := p.run(ctx, "preserve", "-llist")
	if err != nil {
		return nil, failed(fmt.Errorf("preserve -llist: %w", err))
	}
	all, err := ParseList(bytes.NewReader(out))
	if err != nil {
		return nil, failed(err)
	}

	if id == Last {
		var latest *Reservation
		for i := range all {
			r := &all[i]
			if r.User != p.user {
				continue
			}
			if latest == nil || newer(r.ID, latest.ID) {
				latest = r
			}
		}
		if latest == nil {
			return nil, notFound(id)
		}
		return latest, nil
	}

	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, notFound(id)
}

// ParseList parses the table printed by "preserve -llist". Lines before the
// header row, which starts with "id", are ignored.
func ParseList(r io.Reader) ([]Reservation, error) {
	var out []Reservation
	header := false
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if !header {
			header = strings.HasPrefix(line, "id")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 8 {
			return nil, fmt.Errorf("malformed reservation line %q", line)
		}
		out = append(out, Reservation{
			ID:       fields[0],
			User:     fields[1],
			Start:    fields[2] + " " + fields[3],
			End:      fields[4] + " " + fields[5],
			State:    fields[6],
			Machines: append([]string(nil), fields[8:]...),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !header {
		return nil, fmt.Errorf("no reservation table header in preserve output")
	}
	return out, nil
}

// newer orders preserve ids numerically, which follows creation order
func newer(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return a > b
	}
	return na > nb
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
