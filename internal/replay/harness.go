// Package replay re-runs historical factor samples through the full
// evaluate→cross-check pipeline entirely in memory. Used for audits,
// migration dry-runs, and golden-trajectory tests; a run may cover
// thousands of cycles, so it honors context cancellation.
package replay

import (
	"context"

	"regimegov/internal/contract"
	"regimegov/internal/drift"
	"regimegov/internal/engine"
	"regimegov/internal/factors"
	"regimegov/internal/oracle"
)

// #region types
// Config bundles the engine configuration for a replay run.
type Config struct {
	Engine engine.Config
}

// DefaultConfig replays under the canonical contract.
func DefaultConfig() Config {
	return Config{Engine: engine.DefaultConfig()}
}

// Result captures the outcome of replaying one sample.
type Result struct {
	Index  int
	Action string
	Reason string

	Regime contract.Regime
	Score  float64

	OracleRegime contract.Regime
	Verdict      drift.Verdict

	OscillationDetected bool
}

// #endregion types

// #region run
// Run replays samples in order through a fresh engine, cross-checking every
// cycle against the oracle. Returns the results produced so far together
// with ctx.Err() when cancelled mid-run.
func Run(ctx context.Context, cfg Config, samples []factors.Sample) ([]Result, error) {
	if cfg.Engine.Contract == nil {
		cfg.Engine = engine.DefaultConfig()
	}
	c := cfg.Engine.Contract
	eng := engine.NewEngine(cfg.Engine)
	guard := drift.NewGuard(c)

	results := make([]Result, 0, len(samples))
	for i, sample := range samples {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		snap, err := eng.Evaluate(sample)
		if err != nil {
			return results, err
		}
		eng.Commit(snap)

		score := oracle.Score(c, snap.Factors)
		oracleRegime := oracle.Classify(c, score, snap.Factors.ContinuityIndex,
			snap.PreviousRegime, snap.PreviousDuration())
		verdict := guard.Check(snap, oracleRegime, false, nil, "")

		results = append(results, Result{
			Index:               i,
			Action:              snap.Decision.Action,
			Reason:              snap.Decision.Reason,
			Regime:              snap.Regime,
			Score:               snap.Score,
			OracleRegime:        oracleRegime,
			Verdict:             verdict,
			OscillationDetected: snap.OscillationDetected,
		})
	}
	return results, nil
}

// #endregion run
