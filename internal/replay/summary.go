package replay

import (
	"github.com/montanaflynn/stats"

	"regimegov/internal/contract"
	"regimegov/internal/engine"
)

// #region summary
// Summary provides aggregate statistics from a replay run.
type Summary struct {
	TotalCycles int
	Upgrades    int
	Downgrades  int
	Holds       int
	Blocked     int
	DriftEvents int
	Oscillating int

	FinalRegime contract.Regime
	DriftRate   float64

	MeanScore   float64
	MedianScore float64
	StdDevScore float64
	P95Score    float64
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{TotalCycles: len(results)}
	if len(results) == 0 {
		return s
	}

	scores := make([]float64, 0, len(results))
	for _, r := range results {
		scores = append(scores, r.Score)
		switch r.Action {
		case engine.ActionUpgrade:
			s.Upgrades++
		case engine.ActionDowngrade:
			s.Downgrades++
		case engine.ActionHold:
			s.Holds++
		case engine.ActionDowngradeBlocked, engine.ActionFrozenHold:
			s.Blocked++
		}
		if r.Verdict.DriftDetected {
			s.DriftEvents++
		}
		if r.OscillationDetected {
			s.Oscillating++
		}
	}
	s.FinalRegime = results[len(results)-1].Regime
	s.DriftRate = float64(s.DriftEvents) / float64(s.TotalCycles)

	s.MeanScore, _ = stats.Mean(scores)
	s.MedianScore, _ = stats.Median(scores)
	s.StdDevScore, _ = stats.StandardDeviation(scores)
	s.P95Score, _ = stats.Percentile(scores, 95)
	return s
}

// #endregion summary
