package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"plantsim/pkg/domain"
)

const (
	ledgerObject  = "ledger.jsonl"
	summaryObject = "summary.json"
)

// Summary is written next to an exported run's ledger.
type Summary struct {
	RunID              string    `json:"run_id"`
	Steps              int       `json:"steps"`
	FirstStep          int64     `json:"first_step"`
	LastStep           int64     `json:"last_step"`
	UnledgeredSteps    int       `json:"unledgered_steps"`
	ComparatorFailures int       `json:"comparator_failures"`
	SimTimeStartSec    float64   `json:"sim_time_start_sec"`
	SimTimeEndSec      float64   `json:"sim_time_end_sec"`
	LedgerKey          string    `json:"ledger_key"`
	ExportedAt         time.Time `json:"exported_at"`
}

// Exporter copies runs out of a ledger store.
type Exporter struct {
	store  Store
	ledger domain.LedgerStore
	now    func() time.Time
}

// NewExporter returns an exporter writing to store.
func NewExporter(store Store, ledger domain.LedgerStore) (*Exporter, error) {
	if store == nil || ledger == nil {
		return nil, fmt.Errorf("%w: archive exporter needs a store and a ledger", domain.ErrNilArgument)
	}
	return &Exporter{store: store, ledger: ledger, now: func() time.Time { return time.Now().UTC() }}, nil
}

// RunPrefix is the key prefix of a run's archived objects.
func RunPrefix(runID string) string { return path.Join("runs", runID) + "/" }

// ExportRun writes runs/<id>/ledger.jsonl, one step record per line in step
// order, then runs/<id>/summary.json. Archives are write-once: exporting the
// same run twice fails with ErrExists.
func (e *Exporter) ExportRun(ctx context.Context, runID string) (Summary, error) {
	if runID == "" {
		return Summary{}, fmt.Errorf("%w: empty run id", domain.ErrInvalidArgument)
	}
	records, err := e.ledger.ListSteps(ctx, runID)
	if err != nil {
		return Summary{}, fmt.Errorf("list steps for %s: %w", runID, err)
	}
	if len(records) == 0 {
		return Summary{}, fmt.Errorf("%w: run %s has no steps", domain.ErrInvalidArgument, runID)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	summary := Summary{
		RunID:           runID,
		Steps:           len(records),
		FirstStep:       records[0].Ledger.Step,
		LastStep:        records[len(records)-1].Ledger.Step,
		SimTimeStartSec: records[0].Ledger.SimTimeSec,
		SimTimeEndSec:   records[len(records)-1].Ledger.SimTimeSec,
		LedgerKey:       RunPrefix(runID) + ledgerObject,
		ExportedAt:      e.now(),
	}
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return Summary{}, fmt.Errorf("encode step %d: %w", rec.Ledger.Step, err)
		}
		if rec.Ledger.UnledgeredMutationDetected {
			summary.UnledgeredSteps++
		}
		for _, cmp := range rec.Comparisons {
			if !cmp.Pass {
				summary.ComparatorFailures++
			}
		}
	}

	if _, err := e.store.Put(ctx, summary.LedgerKey, &buf, PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"run-id": runID, "steps": strconv.Itoa(summary.Steps)},
	}); err != nil {
		return Summary{}, fmt.Errorf("write ledger for %s: %w", runID, err)
	}
	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return Summary{}, err
	}
	if _, err := e.store.Put(ctx, RunPrefix(runID)+summaryObject, bytes.NewReader(raw), PutOptions{ContentType: "application/json"}); err != nil {
		return Summary{}, fmt.Errorf("write summary for %s: %w", runID, err)
	}
	return summary, nil
}

// ReadRun decodes an archived run's step records.
func ReadRun(ctx context.Context, store Store, runID string) ([]domain.StepRecord, error) {
	_, rc, err := store.Get(ctx, RunPrefix(runID)+ledgerObject)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	var out []domain.StepRecord
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec domain.StepRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode record %d of %s: %w", len(out)+1, runID, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadSummary decodes an archived run's summary.
func ReadSummary(ctx context.Context, store Store, runID string) (Summary, error) {
	_, rc, err := store.Get(ctx, RunPrefix(runID)+summaryObject)
	if err != nil {
		return Summary{}, err
	}
	defer func() { _ = rc.Close() }()
	var s Summary
	if err := json.NewDecoder(rc).Decode(&s); err != nil {
		return Summary{}, fmt.Errorf("decode summary of %s: %w", runID, err)
	}
	return s, nil
}
