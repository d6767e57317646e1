package storage

import (
	"context"
	"sort"
	"sync"

	"anyon/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	steps       map[string][]model.StepRecord
	experiments map[string]model.ExperimentRecord
	summaries   map[string]model.CodeSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.steps = make(map[string][]model.StepRecord)
	s.experiments = make(map[string]model.ExperimentRecord)
	s.summaries = make(map[string]model.CodeSummary)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUTC != out[j].CreatedAtUTC {
			return out[i].CreatedAtUTC < out[j].CreatedAtUTC
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveStepSeries(_ context.Context, runID string, steps []model.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.StepRecord, len(steps))
	copy(copied, steps)
	for i := range copied {
		copied[i].PendingByLevel = append([]int(nil), steps[i].PendingByLevel...)
	}
	s.steps[runID] = copied
	return nil
}

func (s *MemoryStore) GetStepSeries(_ context.Context, runID string) ([]model.StepRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps, ok := s.steps[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.StepRecord, len(steps))
	copy(copied, steps)
	for i := range copied {
		copied[i].PendingByLevel = append([]int(nil), steps[i].PendingByLevel...)
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveExperiment(_ context.Context, experiment model.ExperimentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	experiment.Outcomes = append([]model.TrialOutcome(nil), experiment.Outcomes...)
	experiment.RunIDs = append([]string(nil), experiment.RunIDs...)
	s.experiments[experiment.ID] = experiment
	return nil
}

func (s *MemoryStore) GetExperiment(_ context.Context, id string) (model.ExperimentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	experiment, ok := s.experiments[id]
	if !ok {
		return model.ExperimentRecord{}, false, nil
	}
	experiment.Outcomes = append([]model.TrialOutcome(nil), experiment.Outcomes...)
	experiment.RunIDs = append([]string(nil), experiment.RunIDs...)
	return experiment, true, nil
}

func (s *MemoryStore) ListExperiments(_ context.Context) ([]model.ExperimentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ExperimentRecord, 0, len(s.experiments))
	for _, experiment := range s.experiments {
		experiment.Outcomes = append([]model.TrialOutcome(nil), experiment.Outcomes...)
		experiment.RunIDs = append([]string(nil), experiment.RunIDs...)
		out = append(out, experiment)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUTC != out[j].CreatedAtUTC {
			return out[i].CreatedAtUTC < out[j].CreatedAtUTC
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveCodeSummary(_ context.Context, summary model.CodeSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries[summary.Name] = summary
	return nil
}

func (s *MemoryStore) GetCodeSummary(_ context.Context, name string) (model.CodeSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[name]
	return summary, ok, nil
}
