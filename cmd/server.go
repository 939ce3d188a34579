package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/condo-portal/internal/auth"
	"github.com/example/condo-portal/internal/booking"
	"github.com/example/condo-portal/internal/config"
	"github.com/example/condo-portal/internal/db"
	"github.com/example/condo-portal/internal/migrate"
	"github.com/example/condo-portal/internal/store"
	"github.com/example/condo-portal/internal/sweeper"
	"github.com/example/condo-portal/internal/web"
	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the portal web UI + reservation sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			amenities := store.NewAmenities(d)
			reservations := store.NewReservations(d)
			svc := booking.NewService(amenities, reservations, booking.RealClock{})

			sw := &sweeper.Sweeper{Store: reservations, Interval: cfg.SweepInterval}
			go func() { _ = sw.Run(ctx) }()

			authStore := auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
			ws := &web.Server{
				Auth:     authStore,
				Booking:  svc,
				BaseURL:  cfg.BaseURL,
				SlotSize: cfg.SlotSize,
			}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
