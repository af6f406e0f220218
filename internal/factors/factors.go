package factors

import (
	"fmt"
	"math"
	"time"
)

// #region sample
// Sample is one contributing-factor observation from upstream
// instrumentation. All signal values are bounded to [0,1].
type Sample struct {
	Timestamp              time.Time `json:"timestamp"`
	CompositeRisk          float64   `json:"composite_risk"`
	MetaInstability        float64   `json:"meta_instability"`
	PredictiveCollapseRisk float64   `json:"predictive_collapse_risk"`
	ConsistencyGap         float64   `json:"consistency_gap"`
	ContinuityIndex        float64   `json:"continuity_index"`
}

// Map returns the named signal→value view used for audit serialization.
func (s Sample) Map() map[string]float64 {
	return map[string]float64{
		"composite_risk":           s.CompositeRisk,
		"meta_instability":         s.MetaInstability,
		"predictive_collapse_risk": s.PredictiveCollapseRisk,
		"consistency_gap":          s.ConsistencyGap,
		"continuity_index":         s.ContinuityIndex,
	}
}

// #endregion sample

// #region validation-error
// ValidationError reports a malformed or out-of-range factor value.
// Out-of-range input is always rejected, never silently clamped.
type ValidationError struct {
	Field string
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("factor %s=%v out of range [0,1]", e.Field, e.Value)
}

// #endregion validation-error

// #region validate
// Validate checks every signal against its declared bound and that the
// sample carries a timestamp.
func (s Sample) Validate() error {
	if s.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Value: 0}
	}
	for name, v := range s.Map() {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return &ValidationError{Field: name, Value: v}
		}
	}
	return nil
}

// #endregion validate
