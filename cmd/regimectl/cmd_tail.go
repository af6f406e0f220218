package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"regimegov/internal/ledger"
)

var tailFlags struct {
	n int
}

var tailCmd = &cobra.Command{
	Use:   "tail <ledger.log>",
	Short: "Show the most recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runTail,
}

func init() {
	tailCmd.Flags().IntVarP(&tailFlags.n, "lines", "n", 10, "Number of entries to show")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	entries, err := ledger.ReadLog(args[0])
	if err != nil {
		return err
	}
	start := len(entries) - tailFlags.n
	if start < 0 {
		start = 0
	}
	for i, e := range entries[start:] {
		marker := " "
		if e.DriftDetected {
			marker = "!"
		}
		fmt.Printf("%s %4d  %s  %-23s score=%.4f action=%-18s entry=%.12s\n",
			marker, start+i, e.Timestamp.Format(time.RFC3339), e.ORPRegime,
			e.ORPRegimeScore, e.DecisionAction, e.EntryID)
	}
	return nil
}
