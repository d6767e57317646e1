package storage

import (
	"errors"
	"testing"

	"anyon/internal/model"
)

func TestRunCodecRejectsVersionMismatch(t *testing.T) {
	run := model.RunRecord{VersionedRecord: Stamp(), ID: "run-1"}
	payload, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(payload); err != nil {
		t.Fatalf("decode current version: %v", err)
	}

	stale := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		ID:              "run-2",
	}
	payload, err = EncodeRun(stale)
	if err != nil {
		t.Fatalf("encode stale: %v", err)
	}
	if _, err := DecodeRun(payload); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestExperimentCodecRoundTrip(t *testing.T) {
	experiment := model.ExperimentRecord{
		VersionedRecord: Stamp(),
		ID:              "exp-1",
		Decoder:         model.DecoderParams{Size: 27, Colony: 3, Period: 4, SelfThreshold: 0.7, NeighborThreshold: 0.2},
		ErrorRate:       0.01,
		Trials:          3,
		Outcomes:        []model.TrialOutcome{{Cleared: true, ClearedStep: 12}},
	}
	payload, err := EncodeExperiment(experiment)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeExperiment(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Decoder.Colony != 3 || got.Outcomes[0].ClearedStep != 12 {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

func TestNewStoreUnknownBackend(t *testing.T) {
	if _, err := NewStore("etcd", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	store, err := NewStore("", "")
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("empty kind must map to memory store, got %T", store)
	}
}
