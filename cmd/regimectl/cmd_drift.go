package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"regimegov/internal/ledger"
)

var driftCmd = &cobra.Command{
	Use:   "drift <ledger.log>",
	Short: "List every drift event recorded in a segment",
	Args:  cobra.ExactArgs(1),
	RunE:  runDrift,
}

func init() {
	rootCmd.AddCommand(driftCmd)
}

func runDrift(cmd *cobra.Command, args []string) error {
	entries, err := ledger.ReadLog(args[0])
	if err != nil {
		return err
	}
	count := 0
	for i, e := range entries {
		if !e.DriftDetected {
			continue
		}
		count++
		fmt.Printf("%4d  %s  orp=%s oracle=%s reasons=%v\n",
			i, e.Timestamp.Format(time.RFC3339), e.ORPRegime, e.OracleRegime, e.DriftReasons)
	}
	fmt.Printf("%d drift event(s) in %d entries\n", count, len(entries))
	return nil
}
