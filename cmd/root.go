package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "visasched",
		Short: "Unattended visa appointment rescheduling bot: polls for earlier slots and rebooks automatically",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newBotCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newSnapshotCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
