package storage

import (
	"context"

	"anyon/internal/model"
)

// Store defines persistence operations for decoding runs and experiments.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveStepSeries(ctx context.Context, runID string, steps []model.StepRecord) error
	GetStepSeries(ctx context.Context, runID string) ([]model.StepRecord, bool, error)
	SaveExperiment(ctx context.Context, experiment model.ExperimentRecord) error
	GetExperiment(ctx context.Context, id string) (model.ExperimentRecord, bool, error)
	ListExperiments(ctx context.Context) ([]model.ExperimentRecord, error)
	SaveCodeSummary(ctx context.Context, summary model.CodeSummary) error
	GetCodeSummary(ctx context.Context, name string) (model.CodeSummary, bool, error)
}

// Resetter is implemented by stores that can drop all persisted state.
type Resetter interface {
	Reset(ctx context.Context) error
}
