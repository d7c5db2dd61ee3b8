package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/tablebook/internal/booking"
)

func newBookCmd() *cobra.Command {
	var (
		restaurantID string
		date         string
		slot         string
		partySize    int
		details      booking.Details
	)

	c := &cobra.Command{
		Use:   "book",
		Short: "Check availability and book a table",
		Long: `Without --time, book lists the times available for the date and party size.
With --time, it books that slot. Contact details default to the signed-in profile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openCLI(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			rest, err := env.findRestaurant(ctx, restaurantID)
			if err != nil {
				return err
			}

			wiz := booking.NewWizard(env.api, env.sess, env.log)
			wiz.SelectRestaurant(rest)
			if err := errors.Join(wiz.SetDate(date), wiz.SetPartySize(partySize)); err != nil {
				return err
			}
			if err := wiz.CheckAvailability(ctx); err != nil {
				return wizardErr(cmd, env, wiz, err)
			}

			if len(wiz.Slots()) == 0 {
				return fmt.Errorf("no tables at %s on %s for %d", rest.Name, date, partySize)
			}
			if slot == "" {
				fmt.Fprintf(w, "%s on %s for %d:\n", rest.Name, date, partySize)
				for _, g := range booking.GroupSlots(wiz.Slots()) {
					labels := make([]string, 0, len(g.Slots))
					for _, s := range g.Slots {
						labels = append(labels, booking.FormatTime(s))
					}
					fmt.Fprintf(w, "  %-6s %s\n", g.Label+":", strings.Join(labels, ", "))
				}
				fmt.Fprintln(w, "pass --time HH:MM to book one of these")
				return nil
			}

			if err := wiz.SelectSlot(slot); err != nil {
				if errors.Is(err, booking.ErrUnknownSlot) {
					return fmt.Errorf("%s is not available on %s", booking.FormatTime(slot), date)
				}
				return err
			}
			if err := wiz.Continue(); err != nil {
				return wizardErr(cmd, env, wiz, err)
			}

			if u, ok := env.sess.User(); ok {
				details = withProfileDefaults(details, u)
			}
			wiz.SetDetails(details)
			if err := wiz.Submit(ctx); err != nil {
				return wizardErr(cmd, env, wiz, err)
			}

			rec, _ := wiz.Record()
			fmt.Fprintf(w, "booked ref=%s restaurant=%q date=%s time=%s party=%d\n",
				rec.Reference, rec.RestaurantName, rec.Date, booking.FormatTime(rec.Time), rec.PartySize)
			return nil
		},
	}

	c.Flags().StringVar(&restaurantID, "restaurant", "", "restaurant id or microsite name")
	c.Flags().StringVar(&date, "date", "", "visit date (YYYY-MM-DD)")
	c.Flags().IntVar(&partySize, "party-size", 2, "number of guests")
	c.Flags().StringVar(&slot, "time", "", "time to book (HH:MM); omit to list available times")
	c.Flags().StringVar(&details.FirstName, "first-name", "", "first name (defaults to profile)")
	c.Flags().StringVar(&details.Surname, "surname", "", "surname (defaults to profile)")
	c.Flags().StringVar(&details.Email, "email", "", "email (defaults to profile)")
	c.Flags().StringVar(&details.Mobile, "mobile", "", "mobile number (defaults to profile)")
	c.Flags().StringVar(&details.SpecialRequests, "requests", "", "special requests")
	_ = c.MarkFlagRequired("restaurant")
	_ = c.MarkFlagRequired("date")
	return c
}

func withProfileDefaults(d booking.Details, u booking.Customer) booking.Details {
	if d.FirstName == "" {
		d.FirstName = u.FirstName
	}
	if d.Surname == "" {
		d.Surname = u.LastName
	}
	if d.Email == "" {
		d.Email = u.Email
	}
	if d.Mobile == "" {
		d.Mobile = u.Phone
	}
	return d
}

func wizardErr(cmd *cobra.Command, env *cliEnv, wiz *booking.Wizard, err error) error {
	if errors.Is(err, booking.ErrInvalid) {
		return fmt.Errorf("invalid booking: %s", describeInvalid(wiz.Errors()))
	}
	if err := env.apiErr(cmd.Context(), err); errors.Is(err, errSessionExpired) {
		return err
	}
	return userMessage(wiz.LastError(), err)
}
