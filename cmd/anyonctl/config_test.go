package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunRequestFromYAML(t *testing.T) {
	path := writeConfig(t, `
run_id: run-7
size: 27
colony: 3
period: 9
self_threshold: 0.6
neighbor_threshold: 0.3
error_rate: 0.02
seed: 11
max_steps: 500
record_steps: true
flips:
  - {row: 2, col: 2, orientation: 0}
  - {row: 4, col: 1, orientation: 1}
`)

	req, err := loadOrDefaultRunRequest(path)
	if err != nil {
		t.Fatalf("load run config: %v", err)
	}
	if req.RunID != "run-7" || req.Size != 27 || req.Colony != 3 || req.Period != 9 {
		t.Fatalf("lattice fields mismatch: %+v", req)
	}
	if req.SelfThreshold != 0.6 || req.NeighborThreshold != 0.3 || req.ErrorRate != 0.02 {
		t.Fatalf("threshold fields mismatch: %+v", req)
	}
	if req.Seed != 11 || req.MaxSteps != 500 || !req.RecordSteps {
		t.Fatalf("run fields mismatch: %+v", req)
	}
	if len(req.Flips) != 2 || req.Flips[0].Row != 2 || req.Flips[1].Orientation != 1 {
		t.Fatalf("flips mismatch: %+v", req.Flips)
	}
}

func TestLoadRunRequestRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "size: [not an int\n")
	if _, err := loadOrDefaultRunRequest(path); err == nil {
		t.Fatal("expected parse error for malformed YAML")
	}
}

func TestLoadRunRequestEmptyPath(t *testing.T) {
	req, err := loadOrDefaultRunRequest("")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if req.Size != 0 || req.RunID != "" {
		t.Fatalf("empty path must yield zero request: %+v", req)
	}
}

func TestOverrideRunFlags(t *testing.T) {
	req, err := loadOrDefaultRunRequest(writeConfig(t, "size: 27\nseed: 11\nperiod: 9\n"))
	if err != nil {
		t.Fatalf("load run config: %v", err)
	}

	overrideRunFlags(&req, map[string]bool{"seed": true, "max-steps": true}, runFlagValues{
		seed:     99,
		maxSteps: 50,
		size:     3, // not in the set map, must not apply
	})
	if req.Seed != 99 || req.MaxSteps != 50 {
		t.Fatalf("explicit flags must override config: %+v", req)
	}
	if req.Size != 27 || req.Period != 9 {
		t.Fatalf("unset flags must not override config: %+v", req)
	}
}

func TestLoadExperimentRequestFromYAML(t *testing.T) {
	path := writeConfig(t, `
experiment_id: exp-3
size: 9
colony: 3
period: 9
error_rate: 0.01
trials: 200
max_steps: 1000
workers: 8
seed: 5
`)

	req, err := loadOrDefaultExperimentRequest(path)
	if err != nil {
		t.Fatalf("load experiment config: %v", err)
	}
	if req.ExperimentID != "exp-3" || req.Trials != 200 || req.Workers != 8 {
		t.Fatalf("experiment fields mismatch: %+v", req)
	}

	overrideExperimentFlags(&req, map[string]bool{"trials": true}, experimentFlagValues{trials: 50})
	if req.Trials != 50 || req.Workers != 8 {
		t.Fatalf("override mismatch: %+v", req)
	}
}
