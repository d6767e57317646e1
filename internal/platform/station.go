// Package platform hosts the Station, the long-lived environment that owns
// the persistent store and executes decoding trials and experiments on it.
package platform

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"anyon/internal/code"
	"anyon/internal/decoder"
	"anyon/internal/model"
	"anyon/internal/stats"
	"anyon/internal/storage"
)

type Config struct {
	Store storage.Store
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

// RunCommand is a control message delivered to a running trial or
// experiment between lattice steps.
type RunCommand string

const (
	CommandPause    RunCommand = "pause"
	CommandContinue RunCommand = "continue"
	CommandStop     RunCommand = "stop"
)

// QubitFlip names one qubit to flip before decoding starts. Used to set up
// deterministic error patterns instead of random injection.
type QubitFlip struct {
	Row         int `json:"row" yaml:"row"`
	Col         int `json:"col" yaml:"col"`
	Orientation int `json:"orientation" yaml:"orientation"`
}

type TrialConfig struct {
	RunID       string
	Decoder     decoder.Config
	ErrorRate   float64
	Flips       []QubitFlip
	Seed        int64
	MaxSteps    int
	RecordSteps bool
	Control     chan RunCommand
}

type TrialResult struct {
	Run   model.RunRecord
	Steps []model.StepRecord
}

type ExperimentConfig struct {
	ExperimentID string
	Decoder      decoder.Config
	ErrorRate    float64
	Trials       int
	MaxSteps     int
	Workers      int
	Seed         int64
	Control      chan RunCommand
}

type ExperimentResult struct {
	Experiment model.ExperimentRecord
	Stats      stats.ExperimentStats
}

type Station struct {
	store storage.Store

	mu sync.RWMutex

	started        bool
	lastStopReason StopReason
	runs           map[string]chan RunCommand

	config Config
}

var (
	defaultStationMu sync.Mutex
	defaultStation   *Station
)

func NewStation(cfg Config) *Station {
	return &Station{
		store:          cfg.Store,
		runs:           make(map[string]chan RunCommand),
		config:         cfg,
		lastStopReason: StopReasonNormal,
	}
}

func StartDefault(ctx context.Context, cfg Config) (*Station, error) {
	defaultStationMu.Lock()
	defer defaultStationMu.Unlock()

	if defaultStation != nil && defaultStation.Started() {
		return defaultStation, nil
	}

	s := NewStation(cfg)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	defaultStation = s
	return defaultStation, nil
}

func Default() (*Station, bool) {
	defaultStationMu.Lock()
	s := defaultStation
	defaultStationMu.Unlock()

	if s == nil || !s.Started() {
		return nil, false
	}
	return s, true
}

func StopDefault(reason StopReason) error {
	defaultStationMu.Lock()
	s := defaultStation
	defaultStationMu.Unlock()
	if s == nil {
		return nil
	}
	if err := s.StopWithReason(reason); err != nil {
		return err
	}
	defaultStationMu.Lock()
	if defaultStation == s {
		defaultStation = nil
	}
	defaultStationMu.Unlock()
	return nil
}

func (s *Station) Init(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("store is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.store.Init(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *Station) Reset(ctx context.Context) error {
	_ = s.StopWithReason(StopReasonShutdown)
	if resetter, ok := s.store.(storage.Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	return s.Init(ctx)
}

func (s *Station) Stop() {
	_ = s.StopWithReason(StopReasonNormal)
}

func (s *Station) Shutdown() {
	_ = s.StopWithReason(StopReasonShutdown)
}

func (s *Station) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if !isValidStopReason(reason) {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, control := range s.runs {
		select {
		case control <- CommandStop:
		default:
		}
	}
	s.started = false
	s.lastStopReason = reason
	s.runs = make(map[string]chan RunCommand)
	return nil
}

func (s *Station) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Station) LastStopReason() StopReason {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStopReason
}

func (s *Station) Store() storage.Store {
	return s.store
}

// RunTrial decodes one error pattern to completion or until the step budget
// runs out, then persists the run record and, when requested, its per-step
// series.
func (s *Station) RunTrial(ctx context.Context, cfg TrialConfig) (TrialResult, error) {
	if err := cfg.Decoder.Validate(); err != nil {
		return TrialResult{}, err
	}
	if cfg.MaxSteps <= 0 {
		return TrialResult{}, fmt.Errorf("max steps must be > 0, got %d", cfg.MaxSteps)
	}
	if cfg.ErrorRate < 0 || cfg.ErrorRate > 1 {
		return TrialResult{}, fmt.Errorf("error rate must be in [0, 1], got %v", cfg.ErrorRate)
	}
	if !s.Started() {
		return TrialResult{}, fmt.Errorf("station is not initialized")
	}

	runID := cfg.RunID
	if runID == "" {
		runID = fmt.Sprintf("trial:L%d:%d", cfg.Decoder.Size, cfg.Seed)
	}
	control := cfg.Control
	if control == nil {
		control = make(chan RunCommand, 16)
	}
	if err := s.registerRunControl(runID, control); err != nil {
		return TrialResult{}, err
	}
	defer s.unregisterRunControl(runID)

	outcome, steps, err := s.decodeTrial(ctx, cfg, control)
	if err != nil {
		return TrialResult{}, err
	}

	run := model.RunRecord{
		VersionedRecord: storage.Stamp(),
		ID:              runID,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339),
		Decoder:         paramsFromConfig(cfg.Decoder),
		ErrorRate:       cfg.ErrorRate,
		Seed:            cfg.Seed,
		MaxSteps:        cfg.MaxSteps,
		Outcome:         outcome,
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return TrialResult{}, err
	}
	if cfg.RecordSteps {
		if err := s.store.SaveStepSeries(ctx, runID, steps); err != nil {
			return TrialResult{}, err
		}
	}
	return TrialResult{Run: run, Steps: steps}, nil
}

// decodeTrial runs the synchronous step loop. Control commands are honored
// between steps only, so the lattice is never observed mid-step.
func (s *Station) decodeTrial(ctx context.Context, cfg TrialConfig, control chan RunCommand) (model.TrialOutcome, []model.StepRecord, error) {
	substrate, err := code.New(cfg.Decoder.Size)
	if err != nil {
		return model.TrialOutcome{}, nil, err
	}
	grid, err := decoder.NewGrid(cfg.Decoder)
	if err != nil {
		return model.TrialOutcome{}, nil, err
	}

	if len(cfg.Flips) > 0 {
		for _, flip := range cfg.Flips {
			substrate.FlipQubit(flip.Row, flip.Col, flip.Orientation)
		}
	} else {
		rng := rand.New(rand.NewSource(cfg.Seed))
		substrate.InjectErrors(cfg.ErrorRate, rng)
	}

	outcome := model.TrialOutcome{InjectedErrors: substrate.ErrorWeight()}
	var steps []model.StepRecord
	if cfg.RecordSteps {
		steps = make([]model.StepRecord, 0, cfg.MaxSteps)
	}

	for step := 1; step <= cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return model.TrialOutcome{}, nil, err
		}
		stopped, err := waitControl(ctx, control)
		if err != nil {
			return model.TrialOutcome{}, nil, err
		}
		if stopped {
			break
		}

		grid.Step(substrate)
		outcome.StepsRun = step

		if cfg.RecordSteps {
			steps = append(steps, model.StepRecord{
				Step:           step,
				SyndromeWeight: substrate.SyndromeWeight(),
				ErrorWeight:    substrate.ErrorWeight(),
				RuleFlips:      grid.RuleFlips(),
				FiredFlips:     grid.FiredFlips(),
				PendingByLevel: grid.PendingFlipSignals(),
				LogicalError:   substrate.HasLogicalError(),
			})
		}

		if substrate.SyndromeWeight() == 0 && quiescent(grid) {
			outcome.Cleared = true
			outcome.ClearedStep = step
			break
		}
	}

	outcome.ResidualSyndrome = substrate.SyndromeWeight()
	outcome.ResidualErrors = substrate.ErrorWeight()
	outcome.LogicalError = substrate.HasLogicalError()
	return outcome, steps, nil
}

// quiescent reports whether no flip signals remain in flight at any level.
func quiescent(grid *decoder.Grid) bool {
	for _, pending := range grid.PendingFlipSignals() {
		if pending > 0 {
			return false
		}
	}
	return true
}

// RunExperiment evaluates many independent trials of the same decoder over
// a worker pool, then persists the aggregate record and the per-lattice
// summary.
func (s *Station) RunExperiment(ctx context.Context, cfg ExperimentConfig) (ExperimentResult, error) {
	if err := cfg.Decoder.Validate(); err != nil {
		return ExperimentResult{}, err
	}
	if cfg.Trials <= 0 {
		return ExperimentResult{}, fmt.Errorf("trial count must be > 0, got %d", cfg.Trials)
	}
	if cfg.MaxSteps <= 0 {
		return ExperimentResult{}, fmt.Errorf("max steps must be > 0, got %d", cfg.MaxSteps)
	}
	if cfg.ErrorRate < 0 || cfg.ErrorRate > 1 {
		return ExperimentResult{}, fmt.Errorf("error rate must be in [0, 1], got %v", cfg.ErrorRate)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if !s.Started() {
		return ExperimentResult{}, fmt.Errorf("station is not initialized")
	}

	experimentID := cfg.ExperimentID
	if experimentID == "" {
		experimentID = fmt.Sprintf("exp:L%d:p%v:%d", cfg.Decoder.Size, cfg.ErrorRate, cfg.Seed)
	}
	control := cfg.Control
	if control == nil {
		control = make(chan RunCommand, 16)
	}
	if err := s.registerRunControl(experimentID, control); err != nil {
		return ExperimentResult{}, err
	}
	defer s.unregisterRunControl(experimentID)

	outcomes, err := s.evaluateTrials(ctx, cfg, control)
	if err != nil {
		return ExperimentResult{}, err
	}

	aggregate := stats.Build(outcomes)
	experiment := model.ExperimentRecord{
		VersionedRecord: storage.Stamp(),
		ID:              experimentID,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339),
		Decoder:         paramsFromConfig(cfg.Decoder),
		ErrorRate:       cfg.ErrorRate,
		Seed:            cfg.Seed,
		MaxSteps:        cfg.MaxSteps,
		Trials:          len(outcomes),
		Outcomes:        outcomes,
	}
	if err := s.store.SaveExperiment(ctx, experiment); err != nil {
		return ExperimentResult{}, err
	}
	if err := s.updateCodeSummary(ctx, cfg, aggregate); err != nil {
		return ExperimentResult{}, err
	}
	return ExperimentResult{Experiment: experiment, Stats: aggregate}, nil
}

// evaluateTrials fans trial indices out to a fixed pool of workers and
// collects outcomes back in index order.
func (s *Station) evaluateTrials(ctx context.Context, cfg ExperimentConfig, control chan RunCommand) ([]model.TrialOutcome, error) {
	type job struct {
		idx  int
		seed int64
	}
	type result struct {
		idx     int
		outcome model.TrialOutcome
		err     error
	}

	jobs := make(chan job)
	results := make(chan result, cfg.Trials)

	workerCount := cfg.Workers
	if workerCount > cfg.Trials {
		workerCount = cfg.Trials
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				outcome, _, err := s.decodeTrial(ctx, TrialConfig{
					Decoder:   cfg.Decoder,
					ErrorRate: cfg.ErrorRate,
					Seed:      j.seed,
					MaxSteps:  cfg.MaxSteps,
				}, nil)
				if err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				results <- result{idx: j.idx, outcome: outcome}
			}
		}()
	}

	submitted := 0
	stopped := false
	for i := 0; i < cfg.Trials; i++ {
		stop, err := waitControl(ctx, control)
		if err != nil {
			close(jobs)
			wg.Wait()
			close(results)
			return nil, err
		}
		if stop {
			stopped = true
			break
		}
		jobs <- job{idx: i, seed: trialSeed(cfg.Seed, i)}
		submitted++
	}
	close(jobs)

	wg.Wait()
	close(results)

	outcomes := make([]model.TrialOutcome, cfg.Trials)
	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		outcomes[res.idx] = res.outcome
	}
	if stopped {
		outcomes = outcomes[:submitted]
	}
	return outcomes, nil
}

// trialSeed derives an independent per-trial seed from the experiment seed.
func trialSeed(seed int64, idx int) int64 {
	return seed + int64(idx)*0x9E3779B9
}

func (s *Station) updateCodeSummary(ctx context.Context, cfg ExperimentConfig, aggregate stats.ExperimentStats) error {
	name := fmt.Sprintf("L%d-Q%d", cfg.Decoder.Size, cfg.Decoder.Colony)
	summary, ok, err := s.store.GetCodeSummary(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		summary = model.CodeSummary{
			VersionedRecord: storage.Stamp(),
			Name:            name,
			Description:     fmt.Sprintf("best observed decoding performance for the %s lattice", name),
			BestLogicalRate: 1,
		}
	}
	if aggregate.ClearRate >= summary.BestClearRate && aggregate.LogicalRate <= summary.BestLogicalRate {
		summary.BestClearRate = aggregate.ClearRate
		summary.BestLogicalRate = aggregate.LogicalRate
		summary.ObservedAtPError = cfg.ErrorRate
	}
	return s.store.SaveCodeSummary(ctx, summary)
}

func paramsFromConfig(cfg decoder.Config) model.DecoderParams {
	return model.DecoderParams{
		Size:              cfg.Size,
		Colony:            cfg.Colony,
		Period:            cfg.Period,
		SelfThreshold:     cfg.SelfThreshold,
		NeighborThreshold: cfg.NeighborThreshold,
	}
}

func (s *Station) PauseRun(runID string) error {
	return s.sendRunCommand(runID, CommandPause)
}

func (s *Station) ContinueRun(runID string) error {
	return s.sendRunCommand(runID, CommandContinue)
}

func (s *Station) StopRun(runID string) error {
	return s.sendRunCommand(runID, CommandStop)
}

func (s *Station) registerRunControl(runID string, control chan RunCommand) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("station is not initialized")
	}
	if _, exists := s.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	s.runs[runID] = control
	return nil
}

func (s *Station) unregisterRunControl(runID string) {
	if runID == "" {
		return
	}
	s.mu.Lock()
	delete(s.runs, runID)
	s.mu.Unlock()
}

func (s *Station) sendRunCommand(runID string, cmd RunCommand) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	s.mu.RLock()
	control, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	select {
	case control <- cmd:
		return nil
	default:
		return fmt.Errorf("run control channel is full: %s", runID)
	}
}

// waitControl drains pending control commands. A pause blocks until a
// continue or stop arrives.
func waitControl(ctx context.Context, control chan RunCommand) (bool, error) {
	if control == nil {
		return false, nil
	}
	for {
		select {
		case cmd := <-control:
			switch cmd {
			case CommandStop:
				return true, nil
			case CommandPause:
				paused := true
				for paused {
					select {
					case cmd := <-control:
						switch cmd {
						case CommandStop:
							return true, nil
						case CommandContinue:
							paused = false
						}
					case <-ctx.Done():
						return false, ctx.Err()
					}
				}
			}
		case <-ctx.Done():
			return false, ctx.Err()
		default:
			return false, nil
		}
	}
}

func isValidStopReason(reason StopReason) bool {
	switch reason {
	case StopReasonNormal, StopReasonShutdown:
		return true
	default:
		return false
	}
}
