package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"regimegov/internal/replay"
)

var replayFlags struct {
	timeout time.Duration
	verbose bool
}

var replayCmd = &cobra.Command{
	Use:   "replay <fixture.json>",
	Short: "Replay a sample fixture through the pipeline and check expectations",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.DurationVar(&replayFlags.timeout, "timeout", 30*time.Second, "Abort the replay after this long")
	f.BoolVarP(&replayFlags.verbose, "verbose", "v", false, "Print every cycle")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	fixture, err := replay.LoadFixture(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), replayFlags.timeout)
	defer cancel()

	cfg := replay.Config{Engine: fixture.EngineConfig()}
	results, err := replay.Run(ctx, cfg, fixture.BuildSamples())
	if err != nil {
		return fmt.Errorf("replay aborted after %d cycles: %w", len(results), err)
	}

	if replayFlags.verbose {
		for _, r := range results {
			fmt.Printf("%4d  %-23s score=%.4f action=%-18s drift=%v\n",
				r.Index, r.Regime, r.Score, r.Action, r.Verdict.DriftDetected)
		}
	}

	if err := fixture.Check(results); err != nil {
		return err
	}

	s := replay.Summarize(results)
	fmt.Printf("%s: %d cycles OK\n", fixture.Description, s.TotalCycles)
	fmt.Printf("  upgrades=%d downgrades=%d holds=%d blocked=%d drift=%d final=%s\n",
		s.Upgrades, s.Downgrades, s.Holds, s.Blocked, s.DriftEvents, s.FinalRegime)
	fmt.Printf("  score mean=%.4f median=%.4f stddev=%.4f p95=%.4f\n",
		s.MeanScore, s.MedianScore, s.StdDevScore, s.P95Score)
	return nil
}
