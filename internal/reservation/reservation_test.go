package reservation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ralt/clusterdeploy/internal/models"
	"github.com/stretchr/testify/require"
)

const llist = `Thu Mar 11 10:22:13 2021

id     user    start           stop            state nhosts
1021   bob     03/11 09:00:00  03/11 11:00:00  R     1      node070
1024   alice   03/11 09:15:00  03/11 10:30:00  R     2      node071 node072
1031   alice   03/11 10:20:00  03/11 10:35:00  R     3      node073 node074 node075
998    alice   03/10 15:00:00  03/11 15:00:00  R     1      node076

`

func fakePreserve(out string, err error) *Preserve {
	return NewPreserve("alice").WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name != "preserve" || strings.Join(args, " ") != "-llist" {
			return nil, errors.New("unexpected command")
		}
		return []byte(out), err
	})
}

func TestParseList(t *testing.T) {
	all, err := ParseList(strings.NewReader(llist))
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, Reservation{
		ID:       "1024",
		User:     "alice",
		Start:    "03/11 09:15:00",
		End:      "03/11 10:30:00",
		State:    "R",
		Machines: []string{"node071", "node072"},
	}, all[1])

	_, err = ParseList(strings.NewReader("nothing here\n"))
	require.Error(t, err)

	_, err = ParseList(strings.NewReader("id user\n12 alice R\n"))
	require.Error(t, err)
}

func TestPreserveFetch(t *testing.T) {
	p := fakePreserve(llist, nil)

	r, err := p.Fetch(context.Background(), "1021")
	require.NoError(t, err)
	require.Equal(t, []string{"node070"}, r.Machines)

	r, err = p.Fetch(context.Background(), Last)
	require.NoError(t, err)
	require.Equal(t, "1031", r.ID)
	require.Equal(t, []string{"node073", "node074", "node075"}, r.Machines)

	_, err = p.Fetch(context.Background(), "7")
	require.True(t, models.IsType(err, models.ErrReservation))
}

func TestPreserveLastWithoutReservations(t *testing.T) {
	p := NewPreserve("carol").WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(llist), nil
	})
	_, err := p.Fetch(context.Background(), Last)
	require.True(t, models.IsType(err, models.ErrReservation))
}

func TestPreserveCommandFailure(t *testing.T) {
	_, err := fakePreserve("", errors.New("preserve: not found")).Fetch(context.Background(), Last)
	require.True(t, models.IsType(err, models.ErrReservation))
	require.Contains(t, err.Error(), "preserve: not found")
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reservations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileFetch(t *testing.T) {
	path := writeFile(t, `reservations:
  - id: "42"
    machines: [node01, node02]
  - id: "43"
    user: alice
    machines:
      - node03
`)
	f := NewFile(path)

	r, err := f.Fetch(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, []string{"node01", "node02"}, r.Machines)

	r, err = f.Fetch(context.Background(), Last)
	require.NoError(t, err)
	require.Equal(t, "43", r.ID)
	require.Equal(t, "Reservation 43 (1 machines)", r.String())

	_, err = f.Fetch(context.Background(), "44")
	require.True(t, models.IsType(err, models.ErrReservation))
}

func TestFileRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, `reservations:
  - id: "42"
    hosts: [node01]
`)
	_, err := NewFile(path).Fetch(context.Background(), "42")
	require.True(t, models.IsType(err, models.ErrReservation))
	require.Contains(t, err.Error(), "hosts")
}

func TestFileRejectsDuplicates(t *testing.T) {
	path := writeFile(t, `reservations:
  - {id: "1", machines: [a]}
  - {id: "1", machines: [b]}
`)
	_, err := NewFile(path).Fetch(context.Background(), Last)
	require.True(t, models.IsType(err, models.ErrReservation))
}

func TestEmptyFile(t *testing.T) {
	_, err := NewFile(writeFile(t, "")).Fetch(context.Background(), Last)
	require.True(t, models.IsType(err, models.ErrReservation))
}

func TestNew(t *testing.T) {
	p, err := New("", "", "alice")
	require.NoError(t, err)
	require.IsType(t, &Preserve{}, p)

	p, err = New(KindFile, "/tmp/r.yaml", "alice")
	require.NoError(t, err)
	require.IsType(t, &File{}, p)

	_, err = New(KindFile, "", "alice")
	require.True(t, models.IsType(err, models.ErrInvalidConfig))

	_, err = New("slurm", "", "alice")
	require.True(t, models.IsType(err, models.ErrInvalidConfig))
}
