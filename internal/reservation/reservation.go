// Package reservation resolves reservation identifiers to machine lists.
package reservation

import (
	"context"
	"fmt"

	"github.com/ralt/clusterdeploy/internal/models"
)

// Last selects the most recent reservation of the acting user
const Last = "LAST"

// Reservation is an allocation of machines. Machines[0] is the master.
type Reservation struct {
	ID       string   `yaml:"id"`
	User     string   `yaml:"user,omitempty"`
	State    string   `yaml:"state,omitempty"`
	Start    string   `yaml:"start,omitempty"`
	End      string   `yaml:"end,omitempty"`
	Machines []string `yaml:"machines"`
}

// Provider looks reservations up. Implementations never modify them.
type Provider interface {
	Fetch(ctx context.Context, id string) (*Reservation, error)
}

// Provider kinds accepted by New
const (
	KindPreserve = "preserve"
	KindFile     = "file"
)

// New returns the provider of the given kind
func New(kind, file, user string) (Provider, error) {
	switch kind {
	case "", KindPreserve:
		return NewPreserve(user), nil
	case KindFile:
		if file == "" {
			return nil, models.NewError(models.ErrInvalidConfig, "reservation", "reservation.file must be set for the file provider")
		}
		return NewFile(file), nil
	default:
		return nil, models.NewError(models.ErrInvalidConfig, "reservation", "unknown reservation provider %q", kind)
	}
}

func notFound(id string) error {
	return models.NewError(models.ErrReservation, "reservation", "could not find reservation for id %q", id)
}

func failed(err error) error {
	return &models.DeployError{Type: models.ErrReservation, Package: "reservation", Err: err}
}

// String renders r for humans
func (r *Reservation) String() string {
	return fmt.Sprintf("Reservation %s (%d machines)", r.ID, len(r.Machines))
}
