package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/example/condo-portal/internal/auth"
	"github.com/example/condo-portal/internal/booking"
	"github.com/example/condo-portal/internal/config"
	"github.com/example/condo-portal/internal/db"
	"github.com/example/condo-portal/internal/migrate"
	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage portal users",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var username, password, role string

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a user (username/password/role)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := booking.ParseRole(role)
			if err != nil {
				return err
			}

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			store := auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
			if err := store.CreateUser(ctx, username, password, r); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created %s user %q\n", r, username)
			return nil
		},
	}

	c.Flags().StringVar(&username, "username", "", "username")
	c.Flags().StringVar(&password, "password", "", "password")
	c.Flags().StringVar(&role, "role", string(booking.RoleResident), "RESIDENT, DOORKEEPER or MANAGER")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}
