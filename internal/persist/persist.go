// Package persist snapshots the working set to disk between sessions, one
// snapshot per review mode. Snapshots are best-effort convenience state; the
// authoritative data is always the exported file, so callers treat failures
// here as non-fatal.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kensa-dev/kensa/internal/models"
)

// ErrNoSnapshot is returned when no snapshot exists for the mode.
var ErrNoSnapshot = errors.New("no saved session")

// Mode names the two review datasets.
type Mode string

const (
	ModeEval   Mode = "eval"
	ModeCurate Mode = "curate"
)

// Snapshot is everything needed to resume a review session. Exactly one of
// EvalRecords and CurateRecords is populated, matching Mode.
type Snapshot struct {
	Mode       Mode      `json:"mode"`
	Filename   string    `json:"filename,omitempty"`
	Schema     string    `json:"schema,omitempty"`
	SelectedID string    `json:"selected_id,omitempty"`
	SavedAt    time.Time `json:"saved_at"`

	EvalRecords   []*models.EvalRecord   `json:"eval_records,omitempty"`
	CurateRecords []*models.CurateRecord `json:"curate_records,omitempty"`

	// TraceRecords ride along with an eval snapshot when a companion trace
	// file was loaded.
	TraceRecords []*models.TraceRecord `json:"trace_records,omitempty"`
}

// Store reads and writes snapshots under a directory. A store with an empty
// directory is a no-op, mirroring a disabled cache.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes the snapshot for its mode, replacing any previous one. The
// write goes through a temp file so a crash cannot leave a torn snapshot.
func (s *Store) Save(snap *Snapshot) error {
	if s.dir == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	compressed := enc.EncodeAll(data, nil)
	enc.Close()

	path := s.snapshotPath(snap.Mode)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads the snapshot for a mode. A missing or unreadable snapshot is
// reported as ErrNoSnapshot; corrupt state should never block a new session.
func (s *Store) Load(mode Mode) (*Snapshot, error) {
	if s.dir == "" {
		return nil, ErrNoSnapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	compressed, err := os.ReadFile(s.snapshotPath(mode))
	if err != nil {
		return nil, ErrNoSnapshot
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, ErrNoSnapshot
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, ErrNoSnapshot
	}
	return &snap, nil
}

// Clear removes the snapshot for a mode. Clearing a mode that has no
// snapshot is not an error.
func (s *Store) Clear(mode Mode) error {
	if s.dir == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.snapshotPath(mode))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) snapshotPath(mode Mode) string {
	return filepath.Join(s.dir, string(mode)+".json.zst")
}
