package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/example/visa-rescheduler/internal/config"
	"github.com/example/visa-rescheduler/internal/db"
	"github.com/example/visa-rescheduler/internal/migrate"
	"github.com/example/visa-rescheduler/internal/state"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "history",
		Short: "List persisted booking records (requires DATABASE_URL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("history requires DATABASE_URL")
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

			results, err := state.NewPostgresStore(d).ListResults(ctx, limit)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(os.Stdout, "id=%s date=%s facility=%s time=%s dry_run=%t booked_at=%s\n",
					r.ID, r.Date, r.FacilityID, r.Time, r.DryRun, r.BookedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	c.Flags().IntVar(&limit, "limit", 20, "maximum records to list")
	return c
}
