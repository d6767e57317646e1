// Package stats aggregates trial outcomes into experiment-level decoder
// performance figures.
package stats

import (
	"fmt"
	"io"
	"math"

	"anyon/internal/model"
)

type ExperimentStats struct {
	Trials        int     `json:"trials"`
	Cleared       int     `json:"cleared"`
	ClearRate     float64 `json:"clear_rate"`
	LogicalErrors int     `json:"logical_errors"`
	LogicalRate   float64 `json:"logical_rate"`

	// Steps-to-clear statistics over the cleared trials only.
	AvgClearSteps float64 `json:"avg_clear_steps"`
	StdClearSteps float64 `json:"std_clear_steps"`
	MinClearSteps int     `json:"min_clear_steps"`
	MaxClearSteps int     `json:"max_clear_steps"`

	AvgResidualSyndrome float64 `json:"avg_residual_syndrome"`
	AvgInjectedErrors   float64 `json:"avg_injected_errors"`
}

// Build aggregates a full set of trial outcomes.
func Build(outcomes []model.TrialOutcome) ExperimentStats {
	result := ExperimentStats{Trials: len(outcomes)}
	if len(outcomes) == 0 {
		return result
	}

	clearSteps := make([]float64, 0, len(outcomes))
	residual := 0
	injected := 0
	for _, outcome := range outcomes {
		residual += outcome.ResidualSyndrome
		injected += outcome.InjectedErrors
		if outcome.LogicalError {
			result.LogicalErrors++
		}
		if outcome.Cleared {
			result.Cleared++
			clearSteps = append(clearSteps, float64(outcome.ClearedStep))
		}
	}
	result.ClearRate = float64(result.Cleared) / float64(result.Trials)
	result.LogicalRate = float64(result.LogicalErrors) / float64(result.Trials)
	result.AvgResidualSyndrome = float64(residual) / float64(result.Trials)
	result.AvgInjectedErrors = float64(injected) / float64(result.Trials)

	if len(clearSteps) > 0 {
		result.AvgClearSteps, result.StdClearSteps = meanStd(clearSteps)
		min, max := clearSteps[0], clearSteps[0]
		for _, v := range clearSteps[1:] {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		result.MinClearSteps = int(min)
		result.MaxClearSteps = int(max)
	}
	return result
}

// WriteReport renders a plain-text summary of one experiment.
func WriteReport(w io.Writer, experiment model.ExperimentRecord, s ExperimentStats) error {
	p := experiment.Decoder
	if _, err := fmt.Fprintf(w, "experiment %s\n", experiment.ID); err != nil {
		return err
	}
	fmt.Fprintf(w, "  lattice L=%d Q=%d U=%d fC=%.2f fN=%.2f depth=%d\n",
		p.Size, p.Colony, p.Period, p.SelfThreshold, p.NeighborThreshold, hierarchyDepth(p))
	fmt.Fprintf(w, "  error rate p=%.4f, %d trials x %d max steps, seed %d\n",
		experiment.ErrorRate, experiment.Trials, experiment.MaxSteps, experiment.Seed)
	fmt.Fprintf(w, "  cleared       %d/%d (%.1f%%)\n", s.Cleared, s.Trials, 100*s.ClearRate)
	fmt.Fprintf(w, "  logical error %d/%d (%.1f%%)\n", s.LogicalErrors, s.Trials, 100*s.LogicalRate)
	if s.Cleared > 0 {
		fmt.Fprintf(w, "  steps to clear avg=%.1f std=%.1f min=%d max=%d\n",
			s.AvgClearSteps, s.StdClearSteps, s.MinClearSteps, s.MaxClearSteps)
	}
	fmt.Fprintf(w, "  avg injected errors %.1f, avg residual syndrome %.2f\n",
		s.AvgInjectedErrors, s.AvgResidualSyndrome)
	return nil
}

func hierarchyDepth(p model.DecoderParams) int {
	if p.Colony < 2 {
		return 0
	}
	depth := 0
	for side := p.Colony; side < p.Size; side *= p.Colony {
		depth++
	}
	return depth
}

func meanStd(values []float64) (float64, float64) {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
