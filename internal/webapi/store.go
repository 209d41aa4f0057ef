package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kensa-dev/kensa/internal/csvio"
	"github.com/kensa-dev/kensa/internal/fieldpath"
	"github.com/kensa-dev/kensa/internal/models"
	"github.com/kensa-dev/kensa/internal/persist"
	"github.com/kensa-dev/kensa/internal/render"
	"github.com/kensa-dev/kensa/internal/shape"
	"github.com/kensa-dev/kensa/internal/sheets"
	"github.com/kensa-dev/kensa/internal/sqliteio"
	"github.com/kensa-dev/kensa/internal/stats"
	"github.com/kensa-dev/kensa/internal/traceio"
	"github.com/kensa-dev/kensa/internal/validation"
	"github.com/kensa-dev/kensa/internal/workingset"
)

// ErrRecordNotFound is returned when a record id does not match.
var ErrRecordNotFound = workingset.ErrNotFound

// ErrNoData is returned when an operation needs a loaded working set.
var ErrNoData = errors.New("no data loaded")

// ErrWrongMode is returned for operations that only apply to the other
// review mode, like eval statistics against a curate session.
var ErrWrongMode = errors.New("operation not available in this mode")

// ErrNoTrace is returned when a record has no companion trace.
var ErrNoTrace = errors.New("no trace data for record")

// SessionStore provides access to the review session behind the API.
type SessionStore interface {
	Info() SessionInfo
	ListRecords() []RecordSummary
	GetRecord(id string) (*RecordDetail, error)
	UpdateFields(id string, fields map[string]any) error
	ApplyEdit(id string, edit EditRequest) error
	DeleteRecord(id string) error
	RestoreRecord(id string) error
	Selection() string
	SetSelection(id string) error
	Stats() (*StatsResponse, error)
	StatsFields() ([]string, error)
	StatsGrouping(field string) (*stats.FieldGrouping, error)
	ImportCSV(filename string, data []byte) (*ImportResponse, error)
	ImportSheet(ctx context.Context, url string) (*ImportResponse, error)
	ImportSQLite(ctx context.Context, filename string, data []byte) (*ImportResponse, error)
	ImportTraces(filename string, data []byte) (*ImportResponse, error)
	GetTrace(id string) (*models.TraceRecord, error)
	ExportCSV(w io.Writer) error
	ExportSQLite(ctx context.Context) ([]byte, error)
	Clear() error
}

// Session is the live review session: one working set in one mode, with
// snapshots persisted after every mutation.
type Session struct {
	mu     sync.Mutex
	mode   persist.Mode
	eval   *workingset.Manager[*models.EvalRecord]
	curate *workingset.Manager[*models.CurateRecord]
	traces []*models.TraceRecord

	snapshots *persist.Store
	sheets    *sheets.Client
	logger    *slog.Logger
}

// NewSession creates an empty session. The snapshot store may be disabled
// (empty directory); the logger must not be nil.
func NewSession(snapshots *persist.Store, sheetsClient *sheets.Client, logger *slog.Logger) *Session {
	return &Session{
		mode:      persist.ModeEval,
		eval:      workingset.New[*models.EvalRecord](),
		curate:    workingset.New[*models.CurateRecord](),
		snapshots: snapshots,
		sheets:    sheetsClient,
		logger:    logger,
	}
}

// Resume reloads the most recent snapshot for a mode, if one exists.
func (s *Session) Resume(mode persist.Mode) bool {
	snap, err := s.snapshots.Load(mode)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	switch mode {
	case persist.ModeCurate:
		s.curate.Load(snap.CurateRecords)
		s.curate.SetFilename(snap.Filename)
		s.curate.SetSchema(snap.Schema)
		if snap.SelectedID != "" {
			_ = s.curate.Select(snap.SelectedID)
		}
	default:
		s.eval.Load(snap.EvalRecords)
		s.eval.SetFilename(snap.Filename)
		s.traces = snap.TraceRecords
		if snap.SelectedID != "" {
			_ = s.eval.Select(snap.SelectedID)
		}
	}
	s.logger.Info("resumed session", "mode", mode, "records", len(snap.EvalRecords)+len(snap.CurateRecords))
	return true
}

func (s *Session) currentMode() persist.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) setMode(mode persist.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

func (s *Session) setTraces(traces []*models.TraceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = traces
}

func (s *Session) currentTraces() []*models.TraceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traces
}

// Info reports the session headline counters.
func (s *Session) Info() SessionInfo {
	if s.currentMode() == persist.ModeCurate {
		return SessionInfo{
			Mode:          string(persist.ModeCurate),
			Filename:      s.curate.Filename(),
			Total:         s.curate.Len(),
			ModifiedCount: s.curate.ModifiedCount(),
			DeletedCount:  s.curate.DeletedCount(),
			SelectedID:    s.curate.SelectedID(),
		}
	}
	return SessionInfo{
		Mode:          string(persist.ModeEval),
		Filename:      s.eval.Filename(),
		Total:         s.eval.Len(),
		ModifiedCount: s.eval.ModifiedCount(),
		DeletedCount:  s.eval.DeletedCount(),
		SelectedID:    s.eval.SelectedID(),
	}
}

// ListRecords returns summaries for every record, deleted included, in
// original order.
func (s *Session) ListRecords() []RecordSummary {
	if s.currentMode() == persist.ModeCurate {
		records := s.curate.All()
		out := make([]RecordSummary, len(records))
		for i, r := range records {
			out[i] = curateSummary(r)
		}
		return out
	}
	records := s.eval.All()
	out := make([]RecordSummary, len(records))
	for i, r := range records {
		out[i] = evalSummary(r)
	}
	return out
}

func evalSummary(r *models.EvalRecord) RecordSummary {
	return RecordSummary{
		ID:           r.ID,
		Modified:     r.Modified,
		Deleted:      r.Deleted,
		ModelOutcome: string(r.ModelOutcome),
		HumanOutcome: string(r.HumanOutcome),
	}
}

func curateSummary(r *models.CurateRecord) RecordSummary {
	return RecordSummary{
		ID:         r.ExampleID,
		Modified:   r.Modified,
		Deleted:    r.Deleted,
		NodeType:   r.NodeType,
		Topic:      r.Topic,
		Difficulty: r.Difficulty,
	}
}

// GetRecord returns the full record with its rendered view tree. Eval
// payloads are classified by shape; curate payloads dispatch on the record's
// node type.
func (s *Session) GetRecord(id string) (*RecordDetail, error) {
	if s.currentMode() == persist.ModeCurate {
		r, ok := s.curate.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		return &RecordDetail{
			RecordSummary: curateSummary(r),
			Shape:         r.NodeType,
			Record:        raw,
			View:          render.RenderNodeType(r.Output, r.NodeType),
		}, nil
	}

	r, ok := s.eval.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	kind := shape.Classify(r.Output)
	return &RecordDetail{
		RecordSummary: evalSummary(r),
		Shape:         string(kind),
		Record:        raw,
		View:          render.Render(r.Output, kind),
	}, nil
}

// UpdateFields merges top-level field values into a record.
func (s *Session) UpdateFields(id string, fields map[string]any) error {
	var err error
	if s.currentMode() == persist.ModeCurate {
		err = s.curate.UpdateFields(id, fields)
	} else {
		err = s.eval.UpdateFields(id, fields)
	}
	if err != nil {
		return err
	}
	s.saveSnapshot()
	return nil
}

// ApplyEdit writes a value at a path inside a record payload.
func (s *Session) ApplyEdit(id string, edit EditRequest) error {
	kind := models.PayloadOutput
	if edit.Payload == string(models.PayloadInput) {
		kind = models.PayloadInput
	}

	var err error
	if s.currentMode() == persist.ModeCurate {
		err = s.curate.UpdateAtPath(id, kind, fieldpath.Path(edit.Path), edit.Value)
	} else {
		err = s.eval.UpdateAtPath(id, kind, fieldpath.Path(edit.Path), edit.Value)
	}
	if err != nil {
		return err
	}
	s.saveSnapshot()
	return nil
}

// DeleteRecord soft-deletes a record.
func (s *Session) DeleteRecord(id string) error {
	var err error
	if s.currentMode() == persist.ModeCurate {
		err = s.curate.SoftDelete(id)
	} else {
		err = s.eval.SoftDelete(id)
	}
	if err != nil {
		return err
	}
	s.saveSnapshot()
	return nil
}

// RestoreRecord reverses a soft delete.
func (s *Session) RestoreRecord(id string) error {
	var err error
	if s.currentMode() == persist.ModeCurate {
		err = s.curate.Restore(id)
	} else {
		err = s.eval.Restore(id)
	}
	if err != nil {
		return err
	}
	s.saveSnapshot()
	return nil
}

// Selection returns the selected record id.
func (s *Session) Selection() string {
	if s.currentMode() == persist.ModeCurate {
		return s.curate.SelectedID()
	}
	return s.eval.SelectedID()
}

// SetSelection changes the selected record.
func (s *Session) SetSelection(id string) error {
	var err error
	if s.currentMode() == persist.ModeCurate {
		err = s.curate.Select(id)
	} else {
		err = s.eval.Select(id)
	}
	if err != nil {
		return err
	}
	s.saveSnapshot()
	return nil
}

// Stats computes the eval dashboard aggregates over non-deleted records.
func (s *Session) Stats() (*StatsResponse, error) {
	if s.currentMode() != persist.ModeEval {
		return nil, ErrWrongMode
	}
	records := s.eval.Active()
	if len(records) == 0 {
		return nil, ErrNoData
	}
	return &StatsResponse{
		Overview:     stats.ComputeOverview(records),
		Distribution: stats.ComputeOutcomeDistribution(records),
		Confusion:    stats.ComputeConfusionMatrix(records),
		PassRateCI:   stats.PassRateCI(records, 0.95),
	}, nil
}

// StatsFields lists the input fields worth grouping by.
func (s *Session) StatsFields() ([]string, error) {
	if s.currentMode() != persist.ModeEval {
		return nil, ErrWrongMode
	}
	return stats.DiscoverInputFields(s.eval.Active()), nil
}

// StatsGrouping breaks outcomes down by one input field.
func (s *Session) StatsGrouping(field string) (*stats.FieldGrouping, error) {
	if s.currentMode() != persist.ModeEval {
		return nil, ErrWrongMode
	}
	g := stats.ComputeFieldGrouping(s.eval.Active(), field)
	return &g, nil
}

// ImportCSV replaces the working set with records parsed from CSV text and
// switches the session to eval mode.
func (s *Session) ImportCSV(filename string, data []byte) (*ImportResponse, error) {
	records, err := csvio.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	findings := validation.ValidateEvalRecords(records)
	s.setMode(persist.ModeEval)
	s.eval.Load(records)
	s.eval.SetFilename(filename)
	s.setTraces(nil)
	s.saveSnapshot()

	s.logger.Info("imported csv", "filename", filename, "records", len(records), "findings", len(findings))
	return &ImportResponse{
		Mode:     string(persist.ModeEval),
		Filename: filename,
		Count:    len(records),
		Findings: findings,
	}, nil
}

// ImportTraces attaches a parquet trace file to the current eval working
// set. Traces are keyed by record id and held read-only alongside the
// records they describe.
func (s *Session) ImportTraces(filename string, data []byte) (*ImportResponse, error) {
	if s.currentMode() != persist.ModeEval {
		return nil, ErrWrongMode
	}
	if s.eval.Len() == 0 {
		return nil, ErrNoData
	}

	tmp, err := os.CreateTemp("", "kensa-traces-*.parquet")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	traces, err := traceio.Import(tmp.Name())
	if err != nil {
		return nil, err
	}

	s.setTraces(traces)
	s.saveSnapshot()

	s.logger.Info("imported traces", "filename", filename, "traces", len(traces))
	return &ImportResponse{
		Mode:     string(persist.ModeEval),
		Filename: filename,
		Count:    len(traces),
	}, nil
}

// GetTrace returns the trace attached to an eval record. A record without a
// matching trace row reports ErrNoTrace.
func (s *Session) GetTrace(id string) (*models.TraceRecord, error) {
	if s.currentMode() != persist.ModeEval {
		return nil, ErrWrongMode
	}
	if _, ok := s.eval.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	for _, tr := range s.currentTraces() {
		if tr.ID == id {
			return tr, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoTrace, id)
}

// ImportSheet fetches a published Google Sheet and imports it as CSV.
func (s *Session) ImportSheet(ctx context.Context, url string) (*ImportResponse, error) {
	data, err := s.sheets.FetchCSV(ctx, url)
	if err != nil {
		return nil, err
	}
	ref, _ := sheets.ParseURL(url)
	return s.ImportCSV("sheet-"+ref.SheetID+".csv", data)
}

// ImportSQLite replaces the working set with curated examples from an
// uploaded database and switches the session to curate mode.
func (s *Session) ImportSQLite(ctx context.Context, filename string, data []byte) (*ImportResponse, error) {
	tmp, err := os.CreateTemp("", "kensa-import-*.db")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	res, err := sqliteio.Import(ctx, tmp.Name())
	if err != nil {
		return nil, err
	}

	findings := validation.ValidateCurateRecords(res.Records)
	s.setMode(persist.ModeCurate)
	s.curate.Load(res.Records)
	s.curate.SetFilename(filename)
	s.curate.SetSchema(res.Schema)
	s.saveSnapshot()

	s.logger.Info("imported sqlite", "filename", filename, "records", len(res.Records), "findings", len(findings))
	return &ImportResponse{
		Mode:     string(persist.ModeCurate),
		Filename: filename,
		Count:    len(res.Records),
		Findings: findings,
	}, nil
}

// ExportCSV writes the eval working set as CSV, deleted records excluded.
func (s *Session) ExportCSV(w io.Writer) error {
	if s.currentMode() != persist.ModeEval {
		return ErrWrongMode
	}
	records := s.eval.All()
	if len(records) == 0 {
		return ErrNoData
	}
	return csvio.Export(w, records)
}

// ExportSQLite builds a database with the curate working set, deleted
// records excluded, reproducing the imported schema.
func (s *Session) ExportSQLite(ctx context.Context) ([]byte, error) {
	if s.currentMode() != persist.ModeCurate {
		return nil, ErrWrongMode
	}
	records := s.curate.All()
	if len(records) == 0 {
		return nil, ErrNoData
	}

	tmp, err := os.CreateTemp("", "kensa-export-*.db")
	if err != nil {
		return nil, err
	}
	tmp.Close()
	defer os.Remove(tmp.Name())
	// The driver needs a path that does not exist yet.
	if err := os.Remove(tmp.Name()); err != nil {
		return nil, err
	}

	if err := sqliteio.Export(ctx, tmp.Name(), records, s.curate.Schema()); err != nil {
		return nil, err
	}
	return os.ReadFile(tmp.Name())
}

// Clear drops the working set and its snapshot.
func (s *Session) Clear() error {
	mode := s.currentMode()
	if mode == persist.ModeCurate {
		s.curate.Clear()
	} else {
		s.eval.Clear()
		s.setTraces(nil)
	}
	if err := s.snapshots.Clear(mode); err != nil {
		s.logger.Warn("clearing snapshot failed", "error", err)
	}
	return nil
}

// saveSnapshot persists the current state. Snapshot failures are logged and
// swallowed; they must never fail the mutation that triggered them.
func (s *Session) saveSnapshot() {
	mode := s.currentMode()
	snap := &persist.Snapshot{Mode: mode, SavedAt: time.Now().UTC()}
	if mode == persist.ModeCurate {
		snap.CurateRecords = s.curate.All()
		snap.Filename = s.curate.Filename()
		snap.Schema = s.curate.Schema()
		snap.SelectedID = s.curate.SelectedID()
	} else {
		snap.EvalRecords = s.eval.All()
		snap.Filename = s.eval.Filename()
		snap.SelectedID = s.eval.SelectedID()
		snap.TraceRecords = s.currentTraces()
	}
	if err := s.snapshots.Save(snap); err != nil {
		s.logger.Warn("saving snapshot failed", "mode", mode, "error", err)
	}
}
