package replay

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"regimegov/internal/contract"
	"regimegov/internal/engine"
	"regimegov/internal/factors"
)

var base = time.Unix(1700000000, 0).UTC()

func sampleScore(offset time.Duration, score float64) factors.Sample {
	k := score / 0.85
	return factors.Sample{
		Timestamp:              base.Add(offset),
		CompositeRisk:          k,
		MetaInstability:        k,
		PredictiveCollapseRisk: k,
		ConsistencyGap:         k,
		ContinuityIndex:        1.0,
	}
}

func goldenSamples() []factors.Sample {
	return []factors.Sample{
		sampleScore(0, 0.10),               // hold in normal
		sampleScore(10*time.Second, 0.35),  // upgrade to heightened
		sampleScore(100*time.Second, 0.20), // blocked: held 90s of 300s
		sampleScore(320*time.Second, 0.20), // downgrade back to normal
	}
}

func TestRunGoldenTrajectory(t *testing.T) {
	results, err := Run(context.Background(), DefaultConfig(), goldenSamples())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}

	wantActions := []string{
		engine.ActionHold,
		engine.ActionUpgrade,
		engine.ActionDowngradeBlocked,
		engine.ActionDowngrade,
	}
	wantRegimes := []contract.Regime{
		contract.RegimeNormal,
		contract.RegimeHeightened,
		contract.RegimeHeightened,
		contract.RegimeNormal,
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d carries index %d", i, r.Index)
		}
		if r.Action != wantActions[i] {
			t.Errorf("cycle %d: action %s, want %s (%s)", i, r.Action, wantActions[i], r.Reason)
		}
		if r.Regime != wantRegimes[i] {
			t.Errorf("cycle %d: regime %s, want %s", i, r.Regime, wantRegimes[i])
		}
		if r.Verdict.DriftDetected {
			t.Errorf("cycle %d: unexpected drift %v", i, r.Verdict.Reasons)
		}
		if r.OracleRegime != r.Regime {
			t.Errorf("cycle %d: oracle %s disagrees with engine %s", i, r.OracleRegime, r.Regime)
		}
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := Run(ctx, DefaultConfig(), goldenSamples())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if len(results) != 0 {
		t.Fatalf("cancelled run produced %d results before starting", len(results))
	}
}

func TestRunStopsOnInvalidSample(t *testing.T) {
	samples := goldenSamples()
	samples[2].CompositeRisk = 2.0

	results, err := Run(context.Background(), DefaultConfig(), samples)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(results) != 2 {
		t.Fatalf("got %d partial results, want 2", len(results))
	}
}

func TestSummarize(t *testing.T) {
	results, err := Run(context.Background(), DefaultConfig(), goldenSamples())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := Summarize(results)

	if s.TotalCycles != 4 {
		t.Fatalf("total %d, want 4", s.TotalCycles)
	}
	if s.Upgrades != 1 || s.Downgrades != 1 || s.Holds != 1 || s.Blocked != 1 {
		t.Fatalf("counts up=%d down=%d hold=%d blocked=%d, want 1 each",
			s.Upgrades, s.Downgrades, s.Holds, s.Blocked)
	}
	if s.DriftEvents != 0 || s.DriftRate != 0 {
		t.Fatalf("drift events %d rate %.2f, want none", s.DriftEvents, s.DriftRate)
	}
	if s.FinalRegime != contract.RegimeNormal {
		t.Fatalf("final regime %s, want normal", s.FinalRegime)
	}

	// (0.10 + 0.35 + 0.20 + 0.20) / 4 = 0.2125
	if math.Abs(s.MeanScore-0.2125) > 1e-6 {
		t.Fatalf("mean score %.6f, want 0.2125", s.MeanScore)
	}
	if s.P95Score < s.MedianScore {
		t.Fatalf("p95 %.4f below median %.4f", s.P95Score, s.MedianScore)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalCycles != 0 || s.DriftRate != 0 {
		t.Fatalf("empty summary %+v", s)
	}
}

func TestLoadFixtureBaseline(t *testing.T) {
	fixture, err := LoadFixture(filepath.Join("testdata", "baseline.json"))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	samples := fixture.BuildSamples()
	if len(samples) == 0 {
		t.Fatal("fixture has no samples")
	}

	results, err := Run(context.Background(), Config{Engine: fixture.EngineConfig()}, samples)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := fixture.Check(results); err != nil {
		t.Fatalf("fixture expectations: %v", err)
	}
}

func TestFixtureCheckReportsMismatch(t *testing.T) {
	f := Fixture{
		Expected: []FixtureExpected{{Index: 0, Action: engine.ActionUpgrade}},
	}
	results := []Result{{Index: 0, Action: engine.ActionHold, Regime: contract.RegimeNormal}}
	if err := f.Check(results); err == nil {
		t.Fatal("expected mismatch error")
	}
	f.Expected[0] = FixtureExpected{Index: 5}
	if err := f.Check(results); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
