package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"anyon/internal/platform"
	anyonapi "anyon/pkg/anyon"
)

// runConfigFile is the YAML shape accepted by `anyonctl run -config`.
type runConfigFile struct {
	RunID             string               `yaml:"run_id"`
	Size              int                  `yaml:"size"`
	Colony            int                  `yaml:"colony"`
	Period            int                  `yaml:"period"`
	SelfThreshold     float64              `yaml:"self_threshold"`
	NeighborThreshold float64              `yaml:"neighbor_threshold"`
	ErrorRate         float64              `yaml:"error_rate"`
	Flips             []platform.QubitFlip `yaml:"flips"`
	Seed              int64                `yaml:"seed"`
	MaxSteps          int                  `yaml:"max_steps"`
	RecordSteps       bool                 `yaml:"record_steps"`
}

type experimentConfigFile struct {
	ExperimentID      string  `yaml:"experiment_id"`
	Size              int     `yaml:"size"`
	Colony            int     `yaml:"colony"`
	Period            int     `yaml:"period"`
	SelfThreshold     float64 `yaml:"self_threshold"`
	NeighborThreshold float64 `yaml:"neighbor_threshold"`
	ErrorRate         float64 `yaml:"error_rate"`
	Trials            int     `yaml:"trials"`
	MaxSteps          int     `yaml:"max_steps"`
	Workers           int     `yaml:"workers"`
	Seed              int64   `yaml:"seed"`
}

func loadOrDefaultRunRequest(path string) (anyonapi.RunRequest, error) {
	if path == "" {
		return anyonapi.RunRequest{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return anyonapi.RunRequest{}, err
	}
	var cfg runConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return anyonapi.RunRequest{}, fmt.Errorf("parse run config %s: %w", path, err)
	}
	return anyonapi.RunRequest{
		RunID:             cfg.RunID,
		Size:              cfg.Size,
		Colony:            cfg.Colony,
		Period:            cfg.Period,
		SelfThreshold:     cfg.SelfThreshold,
		NeighborThreshold: cfg.NeighborThreshold,
		ErrorRate:         cfg.ErrorRate,
		Flips:             cfg.Flips,
		Seed:              cfg.Seed,
		MaxSteps:          cfg.MaxSteps,
		RecordSteps:       cfg.RecordSteps,
	}, nil
}

func loadOrDefaultExperimentRequest(path string) (anyonapi.ExperimentRequest, error) {
	if path == "" {
		return anyonapi.ExperimentRequest{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return anyonapi.ExperimentRequest{}, err
	}
	var cfg experimentConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return anyonapi.ExperimentRequest{}, fmt.Errorf("parse experiment config %s: %w", path, err)
	}
	return anyonapi.ExperimentRequest{
		ExperimentID:      cfg.ExperimentID,
		Size:              cfg.Size,
		Colony:            cfg.Colony,
		Period:            cfg.Period,
		SelfThreshold:     cfg.SelfThreshold,
		NeighborThreshold: cfg.NeighborThreshold,
		ErrorRate:         cfg.ErrorRate,
		Trials:            cfg.Trials,
		MaxSteps:          cfg.MaxSteps,
		Workers:           cfg.Workers,
		Seed:              cfg.Seed,
	}, nil
}

type runFlagValues struct {
	runID             string
	size              int
	colony            int
	period            int
	selfThreshold     float64
	neighborThreshold float64
	errorRate         float64
	seed              int64
	maxSteps          int
	recordSteps       bool
}

// overrideRunFlags applies flags that were set explicitly on top of a
// config-file request.
func overrideRunFlags(req *anyonapi.RunRequest, set map[string]bool, v runFlagValues) {
	if set["run-id"] {
		req.RunID = v.runID
	}
	if set["size"] {
		req.Size = v.size
	}
	if set["colony"] {
		req.Colony = v.colony
	}
	if set["period"] {
		req.Period = v.period
	}
	if set["fc"] {
		req.SelfThreshold = v.selfThreshold
	}
	if set["fn"] {
		req.NeighborThreshold = v.neighborThreshold
	}
	if set["p"] {
		req.ErrorRate = v.errorRate
	}
	if set["seed"] {
		req.Seed = v.seed
	}
	if set["max-steps"] {
		req.MaxSteps = v.maxSteps
	}
	if set["record-steps"] {
		req.RecordSteps = v.recordSteps
	}
}

type experimentFlagValues struct {
	experimentID      string
	size              int
	colony            int
	period            int
	selfThreshold     float64
	neighborThreshold float64
	errorRate         float64
	trials            int
	maxSteps          int
	workers           int
	seed              int64
}

func overrideExperimentFlags(req *anyonapi.ExperimentRequest, set map[string]bool, v experimentFlagValues) {
	if set["experiment-id"] {
		req.ExperimentID = v.experimentID
	}
	if set["size"] {
		req.Size = v.size
	}
	if set["colony"] {
		req.Colony = v.colony
	}
	if set["period"] {
		req.Period = v.period
	}
	if set["fc"] {
		req.SelfThreshold = v.selfThreshold
	}
	if set["fn"] {
		req.NeighborThreshold = v.neighborThreshold
	}
	if set["p"] {
		req.ErrorRate = v.errorRate
	}
	if set["trials"] {
		req.Trials = v.trials
	}
	if set["max-steps"] {
		req.MaxSteps = v.maxSteps
	}
	if set["workers"] {
		req.Workers = v.workers
	}
	if set["seed"] {
		req.Seed = v.seed
	}
}
