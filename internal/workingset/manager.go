// Package workingset holds the in-memory collection under review: the
// ordered records, the current selection, and the per-record modified and
// deleted flags. Every mutation goes through the Manager; there is no other
// owner of collection state.
package workingset

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/kensa-dev/kensa/internal/fieldpath"
	"github.com/kensa-dev/kensa/internal/models"
)

// ErrNotFound is returned when an id does not match any record.
var ErrNotFound = errors.New("record not found")

// Record is the contract a reviewable record satisfies. Both
// *models.EvalRecord and *models.CurateRecord implement it.
type Record[T any] interface {
	RecordID() string
	IsDeleted() bool
	SetDeleted(bool)
	IsModified() bool
	MarkModified()
	Clone() T
	Payload(models.PayloadKind) (map[string]any, bool)
	SetPayload(models.PayloadKind, map[string]any)
	ApplyFields(map[string]any) error
}

// Manager owns one working set. It is safe for concurrent use; all
// operations are synchronous read-modify-write against the latest state, so
// two edits committed in quick succession each observe the other's result.
type Manager[T Record[T]] struct {
	mu       sync.Mutex
	records  []T
	selected string

	filename string
	schema   string
}

// New returns an empty manager.
func New[T Record[T]]() *Manager[T] {
	return &Manager[T]{}
}

// Load replaces the whole collection and selects the first non-deleted
// record, or nothing when the collection is empty.
func (m *Manager[T]) Load(records []T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = records
	m.selected = ""
	for _, r := range records {
		if !r.IsDeleted() {
			m.selected = r.RecordID()
			break
		}
	}
}

// Select changes the selected record.
func (m *Manager[T]) Select(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.find(id); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.selected = id
	return nil
}

// SelectedID returns the current selection, or "" when nothing is selected.
func (m *Manager[T]) SelectedID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Selected returns the currently selected record.
func (m *Manager[T]) Selected() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if m.selected == "" {
		return zero, false
	}
	i, ok := m.find(m.selected)
	if !ok {
		return zero, false
	}
	return m.records[i], true
}

// Get returns the record with the given id.
func (m *Manager[T]) Get(id string) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	i, ok := m.find(id)
	if !ok {
		return zero, false
	}
	return m.records[i], true
}

// UpdateFields merges top-level field values into the record and marks it
// modified.
func (m *Manager[T]) UpdateFields(id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := m.records[i].Clone()
	if err := next.ApplyFields(fields); err != nil {
		return err
	}
	next.MarkModified()
	m.records[i] = next
	return nil
}

// UpdateAtPath writes value at path inside the record's payload, replacing
// the record with a mutated clone. Writing a value identical to the current
// one is a no-op and does not mark the record modified.
func (m *Manager[T]) UpdateAtPath(id string, kind models.PayloadKind, path fieldpath.Path, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	payload, ok := m.records[i].Payload(kind)
	if !ok {
		return fmt.Errorf("record %s has no %s payload", id, kind)
	}

	if cur, err := fieldpath.Get(payload, path); err == nil && reflect.DeepEqual(cur, value) {
		return nil
	}

	updated, err := fieldpath.Set(payload, path, value)
	if err != nil {
		return err
	}
	updatedMap, ok := updated.(map[string]any)
	if !ok {
		return fmt.Errorf("edit at %s replaced the %s payload with a non-object", path, kind)
	}

	next := m.records[i].Clone()
	next.SetPayload(kind, updatedMap)
	next.MarkModified()
	m.records[i] = next
	return nil
}

// SoftDelete flags the record as deleted. If it was selected, selection
// advances to the next non-deleted record after it in original order, then
// the first non-deleted record overall, then none. The modified flag is not
// touched; restore fully reverses a delete.
func (m *Manager[T]) SoftDelete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	// Flip the flag on a clone, like every other mutation: records already
	// handed out by Get or All must never change under the caller.
	next := m.records[i].Clone()
	next.SetDeleted(true)
	m.records[i] = next

	if m.selected == id {
		m.selected = ""
		for j := i + 1; j < len(m.records); j++ {
			if !m.records[j].IsDeleted() {
				m.selected = m.records[j].RecordID()
				break
			}
		}
		if m.selected == "" {
			for _, r := range m.records {
				if !r.IsDeleted() {
					m.selected = r.RecordID()
					break
				}
			}
		}
	}
	return nil
}

// Restore clears the deleted flag.
func (m *Manager[T]) Restore(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := m.records[i].Clone()
	next.SetDeleted(false)
	m.records[i] = next
	if m.selected == "" {
		m.selected = id
	}
	return nil
}

// Clear empties the collection, the selection, and the source metadata.
func (m *Manager[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = nil
	m.selected = ""
	m.filename = ""
	m.schema = ""
}

// All returns the full collection in original order, deleted included.
func (m *Manager[T]) All() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.records...)
}

// Active returns the non-deleted records in original order.
func (m *Manager[T]) Active() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []T
	for _, r := range m.records {
		if !r.IsDeleted() {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the total collection size, deleted included.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// DeletedCount returns how many records are soft-deleted.
func (m *Manager[T]) DeletedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, r := range m.records {
		if r.IsDeleted() {
			n++
		}
	}
	return n
}

// ModifiedCount returns how many non-deleted records have been modified.
func (m *Manager[T]) ModifiedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, r := range m.records {
		if r.IsModified() && !r.IsDeleted() {
			n++
		}
	}
	return n
}

// Filename reports the source file the collection was imported from.
func (m *Manager[T]) Filename() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filename
}

func (m *Manager[T]) SetFilename(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filename = name
}

// Schema reports the opaque source schema string captured at import, used
// for faithful re-export of SQLite datasets.
func (m *Manager[T]) Schema() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schema
}

func (m *Manager[T]) SetSchema(schema string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schema = schema
}

// find returns the index of id. Caller holds the lock.
func (m *Manager[T]) find(id string) (int, bool) {
	for i, r := range m.records {
		if r.RecordID() == id {
			return i, true
		}
	}
	return 0, false
}
