// regimectl is the audit CLI for the regime verification ledger:
// hash-chain verification, continuity proofs, drift listings, and fixture
// replay.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "regimectl",
	Short:         "Audit the regime-governance verification ledger",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
