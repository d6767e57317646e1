package anyon

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"anyon/internal/code"
	"anyon/internal/model"
	"anyon/internal/platform"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:  "memory",
		ExportsDir: filepath.Join(t.TempDir(), "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientRunRunsAndExport(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{
		Flips:       []platform.QubitFlip{{Row: 2, Col: 2, Orientation: code.Horizontal}},
		MaxSteps:    40,
		RecordSteps: true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected generated run id")
	}
	if !summary.Outcome.Cleared {
		t.Fatalf("single-qubit error must clear, got %+v", summary.Outcome)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID {
		t.Fatalf("expected run %s in runs list, got %+v", summary.RunID, runs)
	}

	steps, err := client.Steps(ctx, StepsRequest{Latest: true})
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	if len(steps) != summary.Outcome.StepsRun {
		t.Fatalf("step series length: got %d, want %d", len(steps), summary.Outcome.StepsRun)
	}

	exported, err := client.Export(ctx, ExportRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(exported.Directory, "run.json"))
	if err != nil {
		t.Fatalf("read exported run: %v", err)
	}
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("decode exported run: %v", err)
	}
	if run.ID != summary.RunID || run.Outcome != summary.Outcome {
		t.Fatalf("exported run mismatch: %+v", run)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "steps.json")); err != nil {
		t.Fatalf("exported steps missing: %v", err)
	}
}

func TestClientExperimentAndReport(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Experiment(ctx, ExperimentRequest{
		ExperimentID: "exp-bad",
		ErrorRate:    -1,
		Trials:       4,
		MaxSteps:     20,
	}); err == nil {
		t.Fatal("expected error for negative error rate")
	}

	summary, err := client.Experiment(ctx, ExperimentRequest{
		ExperimentID: "exp-1",
		Trials:       4,
		MaxSteps:     200,
		Workers:      2,
		Seed:         3,
	})
	if err != nil {
		t.Fatalf("experiment: %v", err)
	}
	if summary.ExperimentID != "exp-1" || summary.Stats.Trials != 4 {
		t.Fatalf("experiment summary mismatch: %+v", summary)
	}

	var report bytes.Buffer
	if err := client.Report(ctx, "exp-1", &report); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(report.String(), "experiment exp-1") {
		t.Fatalf("report missing header:\n%s", report.String())
	}

	cs, err := client.CodeSummary(ctx, "L9-Q3")
	if err != nil {
		t.Fatalf("code summary: %v", err)
	}
	if cs.Name != "L9-Q3" {
		t.Fatalf("code summary name: %+v", cs)
	}
}

func TestClientExportValidation(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected error for export without selector")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "a", Latest: true}); err == nil {
		t.Fatal("expected error for conflicting selectors")
	}
	if _, err := client.Export(ctx, ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected error when no runs exist")
	}
}
