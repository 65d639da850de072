package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/example/visa-rescheduler/internal/config"
	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the last shutdown snapshot, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			ctx := context.Background()
			store, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			snap, ok, err := store.LoadSnapshot(ctx)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(os.Stdout, "no snapshot")
				return nil
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
}
