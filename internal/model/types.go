package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// DecoderParams is the persisted form of a decoder configuration.
type DecoderParams struct {
	Size              int     `json:"size"`
	Colony            int     `json:"colony"`
	Period            int     `json:"period"`
	SelfThreshold     float64 `json:"self_threshold"`
	NeighborThreshold float64 `json:"neighbor_threshold"`
}

// TrialOutcome is the observable result of one decoding run. A logical
// error is a statistical outcome of the algorithm, never a software error.
type TrialOutcome struct {
	Cleared          bool `json:"cleared"`
	ClearedStep      int  `json:"cleared_step,omitempty"`
	StepsRun         int  `json:"steps_run"`
	ResidualSyndrome int  `json:"residual_syndrome"`
	ResidualErrors   int  `json:"residual_errors"`
	LogicalError     bool `json:"logical_error"`
	InjectedErrors   int  `json:"injected_errors"`
}

type RunRecord struct {
	VersionedRecord
	ID           string        `json:"id"`
	CreatedAtUTC string        `json:"created_at_utc"`
	Decoder      DecoderParams `json:"decoder"`
	ErrorRate    float64       `json:"error_rate"`
	Seed         int64         `json:"seed"`
	MaxSteps     int           `json:"max_steps"`
	Outcome      TrialOutcome  `json:"outcome"`
}

// StepRecord is one row of per-step diagnostics for a recorded run.
type StepRecord struct {
	Step           int   `json:"step"`
	SyndromeWeight int   `json:"syndrome_weight"`
	ErrorWeight    int   `json:"error_weight"`
	RuleFlips      int   `json:"rule_flips"`
	FiredFlips     int   `json:"fired_flips"`
	PendingByLevel []int `json:"pending_by_level,omitempty"`
	LogicalError   bool  `json:"logical_error"`
}

type ExperimentRecord struct {
	VersionedRecord
	ID           string         `json:"id"`
	CreatedAtUTC string         `json:"created_at_utc"`
	Decoder      DecoderParams  `json:"decoder"`
	ErrorRate    float64        `json:"error_rate"`
	Seed         int64          `json:"seed"`
	MaxSteps     int            `json:"max_steps"`
	Trials       int            `json:"trials"`
	Outcomes     []TrialOutcome `json:"outcomes"`
	RunIDs       []string       `json:"run_ids,omitempty"`
}

// CodeSummary tracks the best observed decoding performance per lattice
// shape.
type CodeSummary struct {
	VersionedRecord
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	BestLogicalRate  float64 `json:"best_logical_rate"`
	BestClearRate    float64 `json:"best_clear_rate"`
	ObservedAtPError float64 `json:"observed_at_p_error"`
}
