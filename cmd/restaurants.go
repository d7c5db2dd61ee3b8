package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/tablebook/internal/booking"
)

func newRestaurantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restaurants",
		Short: "Browse restaurants that take bookings",
	}
	cmd.AddCommand(newRestaurantsListCmd())
	cmd.AddCommand(newRestaurantsShowCmd())
	return cmd
}

func newRestaurantsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List restaurants",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openCLI(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.requireLogin(); err != nil {
				return err
			}

			rs, err := env.api.ListRestaurants(cmd.Context(), env.sess.Token())
			if err != nil {
				return env.apiErr(cmd.Context(), err)
			}
			for _, r := range rs {
				fmt.Fprintf(cmd.OutOrStdout(), "id=%s microsite=%s name=%q\n", r.ID, r.MicrositeName, r.Name)
			}
			return nil
		},
	}
}

func newRestaurantsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one restaurant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openCLI(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.requireLogin(); err != nil {
				return err
			}

			r, err := env.findRestaurant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRestaurant(cmd.OutOrStdout(), r)
			return nil
		},
	}
}

func printRestaurant(w io.Writer, r booking.Restaurant) {
	fmt.Fprintf(w, "%s (%s)\n", r.Name, r.MicrositeName)
	fmt.Fprintf(w, "  address: %s\n", r.Address)
	fmt.Fprintf(w, "  hours:   Mon-Fri %s, Sat-Sun %s\n", r.Hours.Weekday, r.Hours.Weekend)
	fmt.Fprintf(w, "  rating:  %.1f\n", r.Rating)
	fmt.Fprintf(w, "  contact: %s, %s\n", r.Phone, r.Email)
}
