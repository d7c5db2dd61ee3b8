package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/tablebook/internal/api"
	"github.com/example/tablebook/internal/session"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	c := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the booking service",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openCLI(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if password == "" {
				if password, err = readLine(cmd, "Password: "); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			if err := env.sess.Login(cmd.Context(), strings.TrimSpace(email), password); err != nil {
				if errors.Is(err, session.ErrInvalidCredentials) {
					return session.ErrInvalidCredentials
				}
				return session.ErrLoginFailed
			}
			u, _ := env.sess.User()
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s <%s>\n", u.DisplayName(), u.Email)
			return nil
		},
	}

	c.Flags().StringVar(&email, "email", "", "account email")
	c.Flags().StringVar(&password, "password", "", "password (read from stdin when omitted)")
	_ = c.MarkFlagRequired("email")
	return c
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openCLI(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			env.sess.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var reg api.Registration

	c := &cobra.Command{
		Use:   "register",
		Short: "Create an account with the booking service",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openCLI(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if reg.Password == "" {
				if reg.Password, err = readLine(cmd, "Password: "); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			if reg.ConfirmPassword == "" {
				reg.ConfirmPassword = reg.Password
			}
			if err := env.sess.Register(cmd.Context(), reg); err != nil {
				if errors.Is(err, session.ErrPasswordMismatch) {
					return session.ErrPasswordMismatch
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s, run `tablebook login --email %s` to sign in\n", reg.Email, reg.Email)
			return nil
		},
	}

	c.Flags().StringVar(&reg.Email, "email", "", "account email")
	c.Flags().StringVar(&reg.Password, "password", "", "password (read from stdin when omitted)")
	c.Flags().StringVar(&reg.ConfirmPassword, "confirm-password", "", "password again (defaults to --password)")
	c.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	c.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	c.Flags().StringVar(&reg.Phone, "phone", "", "phone number")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("first-name")
	_ = c.MarkFlagRequired("last-name")
	return c
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in customer's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openCLI(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.requireLogin(); err != nil {
				return err
			}

			u, err := env.sess.RefreshProfile(cmd.Context())
			if err != nil {
				if err := env.apiErr(cmd.Context(), err); errors.Is(err, errSessionExpired) {
					return err
				}
				env.log.Warn().Err(err).Msg("refresh profile failed, showing cached profile")
				u, _ = env.sess.User()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "name=%q email=%s phone=%s\n", u.DisplayName(), u.Email, u.Phone)
			return nil
		},
	}
}
