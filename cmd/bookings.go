package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/export"
)

func newBookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List, change and cancel your bookings",
	}
	cmd.AddCommand(newBookingsListCmd())
	cmd.AddCommand(newBookingsShowCmd())
	cmd.AddCommand(newBookingsEditCmd())
	cmd.AddCommand(newBookingsCancelCmd())
	cmd.AddCommand(newBookingsExportCmd())
	return cmd
}

// loadManager signs in from the state file and fetches the booking list.
func loadManager(cmd *cobra.Command) (*cliEnv, *booking.Manager, error) {
	env, err := openCLI(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := env.requireLogin(); err != nil {
		env.Close()
		return nil, nil, err
	}
	m := booking.NewManager(env.api, env.sess, env.cfg.Location, env.log)
	if err := m.Load(cmd.Context()); err != nil {
		err = managerErr(cmd, env, m, err)
		env.Close()
		return nil, nil, err
	}
	return env, m, nil
}

func managerErr(cmd *cobra.Command, env *cliEnv, m *booking.Manager, err error) error {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return err
	case errors.Is(err, booking.ErrNotEditable):
		return errors.New("bookings can only be changed up to the day before the visit")
	case errors.Is(err, booking.ErrNotCancellable):
		return errors.New("cancellations must be made at least 24 hours in advance")
	case errors.Is(err, booking.ErrInvalid):
		return errors.New("party size must be at least 1")
	}
	if err := env.apiErr(cmd.Context(), err); errors.Is(err, errSessionExpired) {
		return err
	}
	return userMessage(m.LastError(), err)
}

func printBooking(w io.Writer, m *booking.Manager, r booking.Record) {
	var flags []string
	if m.Editable(r) {
		flags = append(flags, "editable")
	}
	if m.Cancellable(r) {
		flags = append(flags, "cancellable")
	}
	fmt.Fprintf(w, "ref=%s restaurant=%q date=%s time=%s party=%d status=%s",
		r.Reference, r.RestaurantName, r.Date, booking.FormatTime(r.Time), r.PartySize, r.Status)
	if r.SpecialRequests != "" {
		fmt.Fprintf(w, " requests=%q", r.SpecialRequests)
	}
	if len(flags) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(flags, ","))
	}
	fmt.Fprintln(w)
}

func newBookingsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, m, err := loadManager(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			recs := m.Records()
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no bookings")
				return nil
			}
			for _, r := range recs {
				printBooking(cmd.OutOrStdout(), m, r)
			}
			return nil
		},
	}
}

func newBookingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show MICROSITE REF",
		Short: "Fetch one booking from the booking service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openCLI(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.requireLogin(); err != nil {
				return err
			}

			m := booking.NewManager(env.api, env.sess, env.cfg.Location, env.log)
			r, err := m.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return managerErr(cmd, env, m, err)
			}
			printBooking(cmd.OutOrStdout(), m, r)
			return nil
		},
	}
}

func newBookingsEditCmd() *cobra.Command {
	var (
		partySize int
		requests  string
	)

	c := &cobra.Command{
		Use:   "edit REF",
		Short: "Change party size or special requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("party-size") && !cmd.Flags().Changed("requests") {
				return errors.New("nothing to change, pass --party-size and/or --requests")
			}
			env, m, err := loadManager(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ref := args[0]
			rec, ok := m.Find(ref)
			if !ok {
				return fmt.Errorf("booking %s not found", ref)
			}
			if !cmd.Flags().Changed("party-size") {
				partySize = rec.PartySize
			}
			if !cmd.Flags().Changed("requests") {
				requests = rec.SpecialRequests
			}
			if err := m.Edit(cmd.Context(), ref, partySize, requests); err != nil {
				return managerErr(cmd, env, m, err)
			}
			rec, _ = m.Find(ref)
			printBooking(cmd.OutOrStdout(), m, rec)
			return nil
		},
	}

	c.Flags().IntVar(&partySize, "party-size", 0, "new party size")
	c.Flags().StringVar(&requests, "requests", "", "new special requests")
	return c
}

func newBookingsCancelCmd() *cobra.Command {
	var yes bool

	c := &cobra.Command{
		Use:   "cancel REF",
		Short: "Cancel a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, m, err := loadManager(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			rec, err := m.RequestCancel(args[0])
			if err != nil {
				if errors.Is(err, booking.ErrNotFound) {
					return fmt.Errorf("booking %s not found", args[0])
				}
				return managerErr(cmd, env, m, err)
			}
			if !yes {
				answer, err := readLine(cmd, fmt.Sprintf("Cancel your reservation at %s on %s at %s? This cannot be undone. [y/N] ",
					rec.RestaurantName, rec.Date, booking.FormatTime(rec.Time)))
				if err != nil {
					return err
				}
				if a := strings.ToLower(answer); a != "y" && a != "yes" {
					m.AbortCancel()
					fmt.Fprintln(cmd.OutOrStdout(), "kept booking", rec.Reference)
					return nil
				}
			}
			if err := m.ConfirmCancel(cmd.Context()); err != nil {
				return managerErr(cmd, env, m, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancelled booking", rec.Reference)
			return nil
		},
	}

	c.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return c
}

func newBookingsExportCmd() *cobra.Command {
	var (
		out   string
		force bool
	)

	c := &cobra.Command{
		Use:   "export",
		Short: "Write your bookings to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fileExists(out) && !force {
				return fmt.Errorf("%s exists, pass --force to overwrite", out)
			}
			env, m, err := loadManager(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export.Bookings(f, m.Records()); err != nil {
				_ = f.Close()
				return fmt.Errorf("export bookings: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bookings to %s\n", len(m.Records()), out)
			return nil
		},
	}

	c.Flags().StringVarP(&out, "out", "o", "bookings.xlsx", "output file")
	c.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return c
}
