// Package anyon is the embeddable client API: one Client owns a store and a
// station and exposes runs, experiments, reports and exports.
package anyon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"anyon/internal/decoder"
	"anyon/internal/model"
	"anyon/internal/platform"
	"anyon/internal/stats"
	"anyon/internal/storage"
)

const (
	defaultExportsDir = "exports"
	defaultDBPath     = "anyon.db"

	defaultSize              = 9
	defaultColony            = 3
	defaultPeriod            = 9
	defaultSelfThreshold     = 0.7
	defaultNeighborThreshold = 0.2
	defaultErrorRate         = 0.01
	defaultMaxSteps          = 1000
	defaultTrials            = 100
	defaultWorkers           = 4
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
}

type Client struct {
	store   storage.Store
	station *platform.Station

	exportsDir string
}

type RunRequest struct {
	RunID             string
	Size              int
	Colony            int
	Period            int
	SelfThreshold     float64
	NeighborThreshold float64
	ErrorRate         float64
	Flips             []platform.QubitFlip
	Seed              int64
	MaxSteps          int
	RecordSteps       bool
}

type RunSummary struct {
	RunID   string
	Outcome model.TrialOutcome
	Steps   []model.StepRecord
}

type ExperimentRequest struct {
	ExperimentID      string
	Size              int
	Colony            int
	Period            int
	SelfThreshold     float64
	NeighborThreshold float64
	ErrorRate         float64
	Trials            int
	MaxSteps          int
	Workers           int
	Seed              int64
}

type ExperimentSummary struct {
	ExperimentID string
	Stats        stats.ExperimentStats
}

type RunsRequest struct {
	Limit int
}

type StepsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID        string
	ExperimentID string
	Latest       bool
	OutDir       string
}

type ExportSummary struct {
	ID        string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureStation(ctx)
	return err
}

func (c *Client) Reset(ctx context.Context) error {
	s, err := c.ensureStation(ctx)
	if err != nil {
		return err
	}
	return s.Reset(ctx)
}

// Run decodes one error pattern and persists the outcome.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	applyDecoderDefaults(&req.Size, &req.Colony, &req.Period, &req.SelfThreshold, &req.NeighborThreshold)
	if req.ErrorRate == 0 && len(req.Flips) == 0 {
		req.ErrorRate = defaultErrorRate
	}
	if req.MaxSteps <= 0 {
		req.MaxSteps = defaultMaxSteps
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	s, err := c.ensureStation(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	result, err := s.RunTrial(ctx, platform.TrialConfig{
		RunID: runID,
		Decoder: decoder.Config{
			Size:              req.Size,
			Colony:            req.Colony,
			Period:            req.Period,
			SelfThreshold:     req.SelfThreshold,
			NeighborThreshold: req.NeighborThreshold,
		},
		ErrorRate:   req.ErrorRate,
		Flips:       req.Flips,
		Seed:        req.Seed,
		MaxSteps:    req.MaxSteps,
		RecordSteps: req.RecordSteps,
	})
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:   result.Run.ID,
		Outcome: result.Run.Outcome,
		Steps:   result.Steps,
	}, nil
}

// Experiment evaluates many trials of one decoder configuration and
// persists the aggregate.
func (c *Client) Experiment(ctx context.Context, req ExperimentRequest) (ExperimentSummary, error) {
	applyDecoderDefaults(&req.Size, &req.Colony, &req.Period, &req.SelfThreshold, &req.NeighborThreshold)
	if req.ErrorRate == 0 {
		req.ErrorRate = defaultErrorRate
	}
	if req.MaxSteps <= 0 {
		req.MaxSteps = defaultMaxSteps
	}
	if req.Trials <= 0 {
		req.Trials = defaultTrials
	}
	if req.Workers <= 0 {
		req.Workers = defaultWorkers
	}
	experimentID := req.ExperimentID
	if experimentID == "" {
		experimentID = uuid.NewString()
	}

	s, err := c.ensureStation(ctx)
	if err != nil {
		return ExperimentSummary{}, err
	}
	result, err := s.RunExperiment(ctx, platform.ExperimentConfig{
		ExperimentID: experimentID,
		Decoder: decoder.Config{
			Size:              req.Size,
			Colony:            req.Colony,
			Period:            req.Period,
			SelfThreshold:     req.SelfThreshold,
			NeighborThreshold: req.NeighborThreshold,
		},
		ErrorRate: req.ErrorRate,
		Trials:    req.Trials,
		MaxSteps:  req.MaxSteps,
		Workers:   req.Workers,
		Seed:      req.Seed,
	})
	if err != nil {
		return ExperimentSummary{}, err
	}
	return ExperimentSummary{
		ExperimentID: result.Experiment.ID,
		Stats:        result.Stats,
	}, nil
}

// Runs lists persisted runs, newest last, up to the limit.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if _, err := c.ensureStation(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[len(runs)-req.Limit:]
	}
	return runs, nil
}

// Steps returns the per-step series of a recorded run.
func (c *Client) Steps(ctx context.Context, req StepsRequest) ([]model.StepRecord, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if _, err := c.ensureStation(ctx); err != nil {
		return nil, err
	}

	runID := req.RunID
	if req.Latest {
		latest, err := c.latestRunID(ctx)
		if err != nil {
			return nil, err
		}
		runID = latest
	}
	if runID == "" {
		return nil, errors.New("steps requires run id or latest")
	}

	steps, ok, err := c.store.GetStepSeries(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("step series not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(steps) > req.Limit {
		steps = steps[:req.Limit]
	}
	return steps, nil
}

// Report writes a plain-text summary of a persisted experiment.
func (c *Client) Report(ctx context.Context, experimentID string, w io.Writer) error {
	if experimentID == "" {
		return errors.New("experiment id is required")
	}
	if _, err := c.ensureStation(ctx); err != nil {
		return err
	}
	experiment, ok, err := c.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("experiment not found: %s", experimentID)
	}
	return stats.WriteReport(w, experiment, stats.Build(experiment.Outcomes))
}

// Export writes the persisted record of a run or experiment as JSON files
// under the exports directory.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	selectors := 0
	if req.RunID != "" {
		selectors++
	}
	if req.ExperimentID != "" {
		selectors++
	}
	if req.Latest {
		selectors++
	}
	if selectors != 1 {
		return ExportSummary{}, errors.New("export requires exactly one of run id, experiment id, or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	if _, err := c.ensureStation(ctx); err != nil {
		return ExportSummary{}, err
	}

	if req.ExperimentID != "" {
		return c.exportExperiment(ctx, req.ExperimentID, req.OutDir)
	}
	runID := req.RunID
	if req.Latest {
		latest, err := c.latestRunID(ctx)
		if err != nil {
			return ExportSummary{}, err
		}
		runID = latest
	}
	return c.exportRun(ctx, runID, req.OutDir)
}

func (c *Client) exportRun(ctx context.Context, runID, outDir string) (ExportSummary, error) {
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("run not found: %s", runID)
	}

	dir := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportSummary{}, err
	}
	if err := writeJSONFile(filepath.Join(dir, "run.json"), run); err != nil {
		return ExportSummary{}, err
	}
	if steps, ok, err := c.store.GetStepSeries(ctx, runID); err != nil {
		return ExportSummary{}, err
	} else if ok {
		if err := writeJSONFile(filepath.Join(dir, "steps.json"), steps); err != nil {
			return ExportSummary{}, err
		}
	}
	return ExportSummary{ID: runID, Directory: filepath.Clean(dir)}, nil
}

func (c *Client) exportExperiment(ctx context.Context, experimentID, outDir string) (ExportSummary, error) {
	experiment, ok, err := c.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("experiment not found: %s", experimentID)
	}

	dir := filepath.Join(outDir, experimentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportSummary{}, err
	}
	if err := writeJSONFile(filepath.Join(dir, "experiment.json"), experiment); err != nil {
		return ExportSummary{}, err
	}
	report, err := os.Create(filepath.Join(dir, "report.txt"))
	if err != nil {
		return ExportSummary{}, err
	}
	defer report.Close()
	if err := stats.WriteReport(report, experiment, stats.Build(experiment.Outcomes)); err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{ID: experimentID, Directory: filepath.Clean(dir)}, nil
}

// CodeSummary returns the best observed decoding performance for a lattice
// shape, named L<size>-Q<colony>.
func (c *Client) CodeSummary(ctx context.Context, name string) (model.CodeSummary, error) {
	if name == "" {
		return model.CodeSummary{}, errors.New("code summary name is required")
	}
	if _, err := c.ensureStation(ctx); err != nil {
		return model.CodeSummary{}, err
	}
	summary, ok, err := c.store.GetCodeSummary(ctx, name)
	if err != nil {
		return model.CodeSummary{}, err
	}
	if !ok {
		return model.CodeSummary{}, fmt.Errorf("code summary not found: %s", name)
	}
	return summary, nil
}

func (c *Client) PauseRun(ctx context.Context, runID string) error {
	s, err := c.ensureStation(ctx)
	if err != nil {
		return err
	}
	return s.PauseRun(runID)
}

func (c *Client) ContinueRun(ctx context.Context, runID string) error {
	s, err := c.ensureStation(ctx)
	if err != nil {
		return err
	}
	return s.ContinueRun(runID)
}

func (c *Client) StopRun(ctx context.Context, runID string) error {
	s, err := c.ensureStation(ctx)
	if err != nil {
		return err
	}
	return s.StopRun(runID)
}

func (c *Client) ensureStation(ctx context.Context) (*platform.Station, error) {
	if c.station != nil {
		return c.station, nil
	}
	s := platform.NewStation(platform.Config{Store: c.store})
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	c.station = s
	return c.station, nil
}

func (c *Client) latestRunID(ctx context.Context) (string, error) {
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[len(runs)-1].ID, nil
}

func applyDecoderDefaults(size, colony, period *int, selfThreshold, neighborThreshold *float64) {
	if *size <= 0 {
		*size = defaultSize
	}
	if *colony <= 0 {
		*colony = defaultColony
	}
	if *period <= 0 {
		*period = defaultPeriod
	}
	if *selfThreshold <= 0 {
		*selfThreshold = defaultSelfThreshold
	}
	if *neighborThreshold <= 0 {
		*neighborThreshold = defaultNeighborThreshold
	}
}

func writeJSONFile(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
