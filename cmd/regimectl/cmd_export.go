package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"regimegov/internal/ledger"
)

var exportFlags struct {
	start string
	end   string
}

var exportCmd = &cobra.Command{
	Use:   "export <ledger.log>",
	Short: "Export entries in a time window as a JSON array",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.start, "start", "", "Window start (RFC3339, default: beginning)")
	f.StringVar(&exportFlags.end, "end", "", "Window end (RFC3339, default: now)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	entries, err := ledger.ReadLog(args[0])
	if err != nil {
		return err
	}

	start := time.Time{}
	end := time.Now().UTC()
	if exportFlags.start != "" {
		if start, err = time.Parse(time.RFC3339, exportFlags.start); err != nil {
			return fmt.Errorf("parse --start: %w", err)
		}
	}
	if exportFlags.end != "" {
		if end, err = time.Parse(time.RFC3339, exportFlags.end); err != nil {
			return fmt.Errorf("parse --end: %w", err)
		}
	}

	var out []ledger.Entry
	for _, e := range entries {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			out = append(out, e)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
