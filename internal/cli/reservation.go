package cli

import (
	"fmt"
	"strings"

	"github.com/ralt/clusterdeploy/internal/reservation"
	"github.com/spf13/cobra"
)

func newReservationCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reservation",
		Short: "Inspect machine reservations",
	}

	show := &cobra.Command{
		Use:   "show [ID]",
		Short: "Display a reservation (default: the last one made by the user)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := reservation.Last
			if len(args) == 1 {
				id = args[0]
			}
			r, err := st.reservation(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reservation ID: %s\n", r.ID)
			if r.State != "" {
				fmt.Fprintf(out, "State:          %s\n", r.State)
			}
			if r.Start != "" {
				fmt.Fprintf(out, "Start time:     %s\n", r.Start)
			}
			if r.End != "" {
				fmt.Fprintf(out, "End time:       %s\n", r.End)
			}
			fmt.Fprintf(out, "Machines:       %s\n", strings.Join(r.Machines, " "))
			return nil
		},
	}

	cmd.AddCommand(show)
	return cmd
}
