package stats

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"anyon/internal/model"
)

func TestBuildEmpty(t *testing.T) {
	s := Build(nil)
	if s.Trials != 0 || s.ClearRate != 0 || s.LogicalRate != 0 {
		t.Fatalf("empty outcomes must yield zero stats, got %+v", s)
	}
}

func TestBuildAggregates(t *testing.T) {
	outcomes := []model.TrialOutcome{
		{Cleared: true, ClearedStep: 10, StepsRun: 10, InjectedErrors: 2},
		{Cleared: true, ClearedStep: 20, StepsRun: 20, InjectedErrors: 4},
		{Cleared: false, StepsRun: 100, ResidualSyndrome: 4, LogicalError: true, InjectedErrors: 6},
		{Cleared: true, ClearedStep: 30, StepsRun: 30, InjectedErrors: 4},
	}
	s := Build(outcomes)

	if s.Trials != 4 || s.Cleared != 3 || s.LogicalErrors != 1 {
		t.Fatalf("counts wrong: %+v", s)
	}
	if s.ClearRate != 0.75 || s.LogicalRate != 0.25 {
		t.Fatalf("rates wrong: clear=%v logical=%v", s.ClearRate, s.LogicalRate)
	}
	if s.AvgClearSteps != 20 {
		t.Fatalf("avg clear steps: got %v, want 20", s.AvgClearSteps)
	}
	wantStd := math.Sqrt(200.0 / 3.0)
	if math.Abs(s.StdClearSteps-wantStd) > 1e-9 {
		t.Fatalf("std clear steps: got %v, want %v", s.StdClearSteps, wantStd)
	}
	if s.MinClearSteps != 10 || s.MaxClearSteps != 30 {
		t.Fatalf("min/max clear steps: got %d/%d", s.MinClearSteps, s.MaxClearSteps)
	}
	if s.AvgResidualSyndrome != 1 {
		t.Fatalf("avg residual syndrome: got %v, want 1", s.AvgResidualSyndrome)
	}
	if s.AvgInjectedErrors != 4 {
		t.Fatalf("avg injected errors: got %v, want 4", s.AvgInjectedErrors)
	}
}

func TestWriteReport(t *testing.T) {
	exp := model.ExperimentRecord{
		ID:        "exp-1",
		Decoder:   model.DecoderParams{Size: 9, Colony: 3, Period: 4, SelfThreshold: 0.7, NeighborThreshold: 0.2},
		ErrorRate: 0.01,
		Trials:    4,
		MaxSteps:  100,
		Seed:      42,
	}
	s := Build([]model.TrialOutcome{
		{Cleared: true, ClearedStep: 8, StepsRun: 8},
		{Cleared: false, StepsRun: 100, LogicalError: true},
	})

	var buf bytes.Buffer
	if err := WriteReport(&buf, exp, s); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"experiment exp-1", "L=9 Q=3 U=4", "depth=1", "cleared       1/2", "logical error 1/2", "steps to clear"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
