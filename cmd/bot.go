package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/visa-rescheduler/internal/appointment"
	"github.com/example/visa-rescheduler/internal/bot"
	"github.com/example/visa-rescheduler/internal/config"
	"github.com/example/visa-rescheduler/internal/db"
	"github.com/example/visa-rescheduler/internal/migrate"
	"github.com/example/visa-rescheduler/internal/state"
	"github.com/example/visa-rescheduler/internal/visa"
	"github.com/example/visa-rescheduler/internal/web"
	"github.com/spf13/cobra"
)

func newBotCmd() *cobra.Command {
	var (
		currentStr string
		targetStr  string
		floorStr   string
		dryRun     bool
	)

	c := &cobra.Command{
		Use:   "bot",
		Short: "Monitor facilities for earlier appointment dates and rebook automatically",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			log := slog.New(slog.NewTextHandler(os.Stderr, nil))

			current, err := appointment.ParseDate(currentStr)
			if err != nil {
				return fmt.Errorf("--current: %w", err)
			}
			var target, floor *appointment.Date
			if targetStr != "" {
				d, err := appointment.ParseDate(targetStr)
				if err != nil {
					return fmt.Errorf("--target: %w", err)
				}
				target = &d
			}
			if floorStr != "" {
				d, err := appointment.ParseDate(floorStr)
				if err != nil {
					return fmt.Errorf("--floor: %w", err)
				}
				floor = &d
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			store, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			// A snapshot from a previous graceful shutdown resumes the run;
			// it only ever moves the starting point earlier.
			if snap, ok, err := store.LoadSnapshot(ctx); err != nil {
				log.Warn("loading shutdown snapshot failed", "err", err)
			} else if ok && snap.CurrentBookedDate.Before(current) {
				log.Info("resuming from shutdown snapshot", "current", snap.CurrentBookedDate, "flag", current)
				current = snap.CurrentBookedDate
			}

			b := &bot.Bot{
				Client:       visa.New(cfg.CountryCode, cfg.Email, cfg.Password),
				Store:        store,
				Log:          log,
				ScheduleID:   cfg.ScheduleID,
				Facilities:   cfg.Facilities,
				Target:       target,
				Floor:        floor,
				DryRun:       dryRun,
				RefreshDelay: cfg.RefreshDelay(),
				Cooldown:     cfg.Cooldown(),
				KeepPolling:  cfg.KeepPolling,
			}

			if cfg.HealthAddr != "" {
				go func() {
					if err := web.Start(ctx, cfg.HealthAddr, web.Routes(b.Status), log); err != nil {
						log.Error("health endpoint failed", "err", err)
					}
				}()
			}

			outcome, err := b.Run(ctx, current)
			if err != nil {
				return err
			}
			log.Info("bot finished", "outcome", outcome.String(), "current", b.Current())
			return nil
		},
	}

	c.Flags().StringVarP(&currentStr, "current", "c", "", "currently booked date YYYY-MM-DD")
	c.Flags().StringVarP(&targetStr, "target", "t", "", "stop once a booking lands at or before this date")
	c.Flags().StringVarP(&floorStr, "floor", "m", "", "latest date still acceptable to book")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "log what would be booked without booking")
	_ = c.MarkFlagRequired("current")
	return c
}

// openStore picks Postgres when DATABASE_URL is set, otherwise the file
// store. The cleanup func closes whatever was opened.
func openStore(ctx context.Context, cfg config.Config) (state.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return state.NewFileStore(cfg.ResultFile, cfg.SnapshotFile), func() {}, nil
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, nil, err
	}
	return state.NewPostgresStore(d), d.Close, nil
}
