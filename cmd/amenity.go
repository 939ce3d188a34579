package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/example/condo-portal/internal/booking"
	"github.com/example/condo-portal/internal/config"
	"github.com/example/condo-portal/internal/db"
	"github.com/example/condo-portal/internal/migrate"
	"github.com/example/condo-portal/internal/store"
	"github.com/spf13/cobra"
)

func newAmenityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amenity",
		Short: "Manage the amenity catalog",
	}
	cmd.AddCommand(newAmenityAddCmd())
	cmd.AddCommand(newAmenityBlockCmd())
	return cmd
}

func openCatalog(ctx context.Context) (*db.DB, *store.Amenities, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, store.NewAmenities(d), nil
}

func newAmenityAddCmd() *cobra.Command {
	var (
		propertyID  int64
		name        string
		description string
		weekdays    []int
		open, close string
		timezone    string
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Register a reservable amenity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := booking.Amenity{
				PropertyID:      propertyID,
				Name:            name,
				Description:     description,
				AllowedWeekdays: weekdays,
				Timezone:        timezone,
			}
			var err error
			if open != "" {
				var t booking.TimeOfDay
				if t, err = booking.ParseTimeOfDay(open); err != nil {
					return fmt.Errorf("--open: %w", err)
				}
				a.OpenTime = &t
			}
			if close != "" {
				var t booking.TimeOfDay
				if t, err = booking.ParseTimeOfDay(close); err != nil {
					return fmt.Errorf("--close: %w", err)
				}
				a.CloseTime = &t
			}
			if a.OpenTime != nil && a.CloseTime != nil && *a.OpenTime >= *a.CloseTime {
				return fmt.Errorf("--open must be before --close")
			}
			if _, err := time.LoadLocation(a.Timezone); err != nil {
				return fmt.Errorf("--timezone: %w", err)
			}

			ctx := context.Background()
			d, amenities, err := openCatalog(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			id, err := amenities.Create(ctx, a)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created amenity %d (%s)\n", id, name)
			return nil
		},
	}

	c.Flags().Int64Var(&propertyID, "property", 0, "property id")
	c.Flags().StringVar(&name, "name", "", "amenity name")
	c.Flags().StringVar(&description, "description", "", "description")
	c.Flags().IntSliceVar(&weekdays, "weekdays", nil, "allowed weekdays, 0=Mon .. 6=Sun (empty = all)")
	c.Flags().StringVar(&open, "open", "", "opening time HH:MM (empty = unbounded)")
	c.Flags().StringVar(&close, "close", "", "closing time HH:MM (empty = unbounded)")
	c.Flags().StringVar(&timezone, "timezone", "America/Sao_Paulo", "IANA zone for local-time rules")
	_ = c.MarkFlagRequired("property")
	_ = c.MarkFlagRequired("name")
	return c
}

func newAmenityBlockCmd() *cobra.Command {
	var amenityID int64
	var date string

	c := &cobra.Command{
		Use:   "block",
		Short: "Add a blackout date to an amenity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("--date: %w", err)
			}

			ctx := context.Background()
			d, amenities, err := openCatalog(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := amenities.BlockDate(ctx, amenityID, date); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "blocked %s on amenity %d\n", date, amenityID)
			return nil
		},
	}

	c.Flags().Int64Var(&amenityID, "amenity", 0, "amenity id")
	c.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD")
	_ = c.MarkFlagRequired("amenity")
	_ = c.MarkFlagRequired("date")
	return c
}
