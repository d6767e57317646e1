package storage

import (
	"context"
	"testing"

	"anyon/internal/model"
)

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	run := model.RunRecord{
		VersionedRecord: Stamp(),
		ID:              "run-1",
		CreatedAtUTC:    "2026-01-01T00:00:00Z",
		Decoder:         model.DecoderParams{Size: 9, Colony: 3, Period: 4},
		Seed:            7,
		Outcome:         model.TrialOutcome{Cleared: true, ClearedStep: 3},
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	got, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if got.Outcome.ClearedStep != 3 || got.Decoder.Size != 9 {
		t.Fatalf("unexpected run: %+v", got)
	}
}

func TestMemoryStoreListRunsSortsByCreation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, r := range []model.RunRecord{
		{VersionedRecord: Stamp(), ID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z"},
		{VersionedRecord: Stamp(), ID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"},
	} {
		if err := store.SaveRun(ctx, r); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "a" || runs[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", runs)
	}
}

func TestMemoryStoreStepSeriesIsCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	steps := []model.StepRecord{{Step: 1, SyndromeWeight: 2, PendingByLevel: []int{1, 0}}}
	if err := store.SaveStepSeries(ctx, "run-1", steps); err != nil {
		t.Fatalf("save steps: %v", err)
	}
	steps[0].PendingByLevel[0] = 99

	got, ok, err := store.GetStepSeries(ctx, "run-1")
	if err != nil {
		t.Fatalf("get steps: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted step series")
	}
	if got[0].PendingByLevel[0] != 1 {
		t.Fatalf("store leaked caller's slice: %+v", got)
	}
}

func TestMemoryStoreExperimentRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	experiment := model.ExperimentRecord{
		VersionedRecord: Stamp(),
		ID:              "exp-1",
		CreatedAtUTC:    "2026-01-01T00:00:00Z",
		Trials:          2,
		Outcomes: []model.TrialOutcome{
			{Cleared: true},
			{LogicalError: true},
		},
	}
	if err := store.SaveExperiment(ctx, experiment); err != nil {
		t.Fatalf("save experiment: %v", err)
	}
	got, ok, err := store.GetExperiment(ctx, "exp-1")
	if err != nil {
		t.Fatalf("get experiment: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted experiment")
	}
	if len(got.Outcomes) != 2 || !got.Outcomes[1].LogicalError {
		t.Fatalf("unexpected experiment: %+v", got)
	}
}

func TestMemoryStoreReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveCodeSummary(ctx, model.CodeSummary{VersionedRecord: Stamp(), Name: "L9"}); err != nil {
		t.Fatalf("save summary: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	_, ok, err := store.GetCodeSummary(ctx, "L9")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if ok {
		t.Fatal("reset must drop persisted state")
	}
}
