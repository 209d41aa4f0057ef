package workingset

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kensa-dev/kensa/internal/fieldpath"
	"github.com/kensa-dev/kensa/internal/models"
)

func evalRec(id string, output map[string]any) *models.EvalRecord {
	return &models.EvalRecord{ID: id, Output: output}
}

func loadPair(t *testing.T) *Manager[*models.EvalRecord] {
	t.Helper()
	m := New[*models.EvalRecord]()
	m.Load([]*models.EvalRecord{
		evalRec("A", map[string]any{"question": "2+2?", "answer": "4"}),
		evalRec("B", map[string]any{
			"easy":   map[string]any{"question": "1+1?", "answer": "2"},
			"medium": map[string]any{"question": "3+3?", "answer": "6"},
		}),
	})
	return m
}

func TestLoad_SelectsFirstActive(t *testing.T) {
	m := loadPair(t)
	if m.SelectedID() != "A" {
		t.Fatalf("selected = %q, want A", m.SelectedID())
	}

	deleted := evalRec("X", nil)
	deleted.Deleted = true
	m.Load([]*models.EvalRecord{deleted, evalRec("Y", nil)})
	if m.SelectedID() != "Y" {
		t.Fatalf("selected = %q, want Y", m.SelectedID())
	}

	m.Load(nil)
	if m.SelectedID() != "" {
		t.Fatalf("selected = %q, want none", m.SelectedID())
	}
}

func TestUpdateAtPath_EditAndCounts(t *testing.T) {
	m := loadPair(t)

	if err := m.UpdateAtPath("A", models.PayloadOutput, fieldpath.Path{"answer"}, "five"); err != nil {
		t.Fatalf("UpdateAtPath: %v", err)
	}

	a, _ := m.Get("A")
	if a.Output["answer"] != "five" {
		t.Fatalf("answer = %v, want five", a.Output["answer"])
	}
	if a.Output["question"] != "2+2?" {
		t.Fatalf("sibling field changed: %v", a.Output["question"])
	}
	if !a.Modified {
		t.Fatal("record not marked modified")
	}
	if m.ModifiedCount() != 1 {
		t.Fatalf("ModifiedCount = %d, want 1", m.ModifiedCount())
	}
}

func TestUpdateAtPath_NestedPath(t *testing.T) {
	m := loadPair(t)

	if err := m.UpdateAtPath("B", models.PayloadOutput, fieldpath.Path{"easy", "answer"}, "two"); err != nil {
		t.Fatalf("UpdateAtPath: %v", err)
	}
	b, _ := m.Get("B")
	got, err := fieldpath.Get(b.Output, fieldpath.Path{"easy", "answer"})
	if err != nil || got != "two" {
		t.Fatalf("easy.answer = %v, %v", got, err)
	}
	med, _ := fieldpath.Get(b.Output, fieldpath.Path{"medium", "answer"})
	if med != "6" {
		t.Fatalf("medium.answer = %v, want 6", med)
	}
}

func TestUpdateAtPath_NoOpDoesNotMarkModified(t *testing.T) {
	m := loadPair(t)

	if err := m.UpdateAtPath("A", models.PayloadOutput, fieldpath.Path{"answer"}, "4"); err != nil {
		t.Fatalf("UpdateAtPath: %v", err)
	}
	a, _ := m.Get("A")
	if a.Modified {
		t.Fatal("identical value marked the record modified")
	}
	if m.ModifiedCount() != 0 {
		t.Fatalf("ModifiedCount = %d, want 0", m.ModifiedCount())
	}
}

func TestUpdateAtPath_WholeListReplacement(t *testing.T) {
	m := New[*models.EvalRecord]()
	m.Load([]*models.EvalRecord{
		evalRec("A", map[string]any{"answerOptions": []any{"3", "4", "5"}}),
	})

	if err := m.UpdateAtPath("A", models.PayloadOutput, fieldpath.Path{"answerOptions"}, []any{"3", "4"}); err != nil {
		t.Fatalf("UpdateAtPath: %v", err)
	}
	a, _ := m.Get("A")
	if !reflect.DeepEqual(a.Output["answerOptions"], []any{"3", "4"}) {
		t.Fatalf("answerOptions = %v", a.Output["answerOptions"])
	}
}

func TestUpdateAtPath_BadPathLeavesRecordUntouched(t *testing.T) {
	m := loadPair(t)

	err := m.UpdateAtPath("A", models.PayloadOutput, fieldpath.Path{"missing", "deep"}, "x")
	if !errors.Is(err, fieldpath.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	a, _ := m.Get("A")
	if a.Modified {
		t.Fatal("failed edit marked the record modified")
	}
}

func TestUpdateAtPath_UnknownRecord(t *testing.T) {
	m := loadPair(t)
	if err := m.UpdateAtPath("nope", models.PayloadOutput, fieldpath.Path{"answer"}, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateFields_MarksModified(t *testing.T) {
	m := loadPair(t)

	err := m.UpdateFields("A", map[string]any{
		"human_outcome":  "FAIL",
		"human_critique": "wrong arithmetic",
	})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	a, _ := m.Get("A")
	if a.HumanOutcome != models.OutcomeFail || a.HumanCritique != "wrong arithmetic" {
		t.Fatalf("record = %+v", a)
	}
	if !a.Modified {
		t.Fatal("record not marked modified")
	}
}

func TestUpdateFields_InvalidValueRejected(t *testing.T) {
	m := loadPair(t)

	if err := m.UpdateFields("A", map[string]any{"human_outcome": "MAYBE"}); err == nil {
		t.Fatal("invalid outcome accepted")
	}
	a, _ := m.Get("A")
	if a.Modified {
		t.Fatal("rejected update marked the record modified")
	}
}

func TestSoftDelete_AdvancesSelection(t *testing.T) {
	m := New[*models.EvalRecord]()
	m.Load([]*models.EvalRecord{evalRec("A", nil), evalRec("B", nil), evalRec("C", nil)})

	// Deleting the selected record moves to the next active one after it.
	if err := m.SoftDelete("A"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if m.SelectedID() != "B" {
		t.Fatalf("selected = %q, want B", m.SelectedID())
	}

	// Deleting the last active record in order wraps to the first active.
	if err := m.Select("C"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := m.SoftDelete("C"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if m.SelectedID() != "B" {
		t.Fatalf("selected = %q, want B", m.SelectedID())
	}

	// Deleting the final active record leaves nothing selected.
	if err := m.SoftDelete("B"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if m.SelectedID() != "" {
		t.Fatalf("selected = %q, want none", m.SelectedID())
	}
	if m.DeletedCount() != 3 {
		t.Fatalf("DeletedCount = %d, want 3", m.DeletedCount())
	}
}

func TestSoftDelete_UnselectedKeepsSelection(t *testing.T) {
	m := loadPair(t)

	if err := m.SoftDelete("B"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if m.SelectedID() != "A" {
		t.Fatalf("selected = %q, want A", m.SelectedID())
	}
	b, _ := m.Get("B")
	if !b.Deleted {
		t.Fatal("record not flagged deleted")
	}
	if b.Modified {
		t.Fatal("soft delete set the modified flag")
	}
}

// Delete and restore must replace the record, not flip the flag on the
// stored pointer: records already returned by Get or All are read without
// the manager's lock and must stay frozen.
func TestSoftDelete_DoesNotMutateHandedOutRecords(t *testing.T) {
	m := loadPair(t)

	before, _ := m.Get("A")
	if err := m.SoftDelete("A"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if before.Deleted {
		t.Fatal("delete mutated a previously returned record")
	}
	after, _ := m.Get("A")
	if !after.Deleted {
		t.Fatal("delete not visible on a fresh Get")
	}

	if err := m.Restore("A"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !after.Deleted {
		t.Fatal("restore mutated a previously returned record")
	}
	restored, _ := m.Get("A")
	if restored.Deleted {
		t.Fatal("restore not visible on a fresh Get")
	}
}

func TestRestore_ReversesDelete(t *testing.T) {
	m := loadPair(t)

	if err := m.SoftDelete("B"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := m.Restore("B"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	b, _ := m.Get("B")
	if b.Deleted {
		t.Fatal("record still deleted after restore")
	}
	if b.Modified {
		t.Fatal("restore set the modified flag")
	}
	if m.DeletedCount() != 0 {
		t.Fatalf("DeletedCount = %d, want 0", m.DeletedCount())
	}

	// Restoring an already-active record is harmless.
	if err := m.Restore("B"); err != nil {
		t.Fatalf("Restore again: %v", err)
	}
}

func TestRestore_ReclaimsEmptySelection(t *testing.T) {
	m := New[*models.EvalRecord]()
	m.Load([]*models.EvalRecord{evalRec("A", nil)})

	if err := m.SoftDelete("A"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if m.SelectedID() != "" {
		t.Fatalf("selected = %q, want none", m.SelectedID())
	}
	if err := m.Restore("A"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if m.SelectedID() != "A" {
		t.Fatalf("selected = %q, want A", m.SelectedID())
	}
}

func TestModifiedCount_ExcludesDeleted(t *testing.T) {
	m := loadPair(t)

	if err := m.UpdateAtPath("A", models.PayloadOutput, fieldpath.Path{"answer"}, "five"); err != nil {
		t.Fatalf("UpdateAtPath: %v", err)
	}
	if err := m.SoftDelete("A"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if m.ModifiedCount() != 0 {
		t.Fatalf("ModifiedCount = %d, want 0 (modified record is deleted)", m.ModifiedCount())
	}
	if err := m.Restore("A"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if m.ModifiedCount() != 1 {
		t.Fatalf("ModifiedCount = %d, want 1 after restore", m.ModifiedCount())
	}
}

func TestClear_ResetsEverything(t *testing.T) {
	m := loadPair(t)
	m.SetFilename("batch.csv")
	m.SetSchema("CREATE TABLE t (x)")

	m.Clear()
	if m.Len() != 0 || m.SelectedID() != "" || m.Filename() != "" || m.Schema() != "" {
		t.Fatalf("state after clear: len=%d sel=%q file=%q schema=%q",
			m.Len(), m.SelectedID(), m.Filename(), m.Schema())
	}
}

func TestActiveAndAll(t *testing.T) {
	m := loadPair(t)
	if err := m.SoftDelete("A"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	if got := len(m.All()); got != 2 {
		t.Fatalf("All = %d records, want 2", got)
	}
	active := m.Active()
	if len(active) != 1 || active[0].ID != "B" {
		t.Fatalf("Active = %v", active)
	}
}

func TestManager_CurateRecords(t *testing.T) {
	m := New[*models.CurateRecord]()
	m.Load([]*models.CurateRecord{
		{ExampleID: "ex-1", Output: map[string]any{"question": "q", "answer": "a"}, NodeType: "MULTIPLE_CHOICE_QUESTION"},
	})

	if err := m.UpdateAtPath("ex-1", models.PayloadOutput, fieldpath.Path{"answer"}, "b"); err != nil {
		t.Fatalf("UpdateAtPath: %v", err)
	}
	if err := m.UpdateFields("ex-1", map[string]any{"difficulty": "hard", "skills": []any{"fractions"}}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	r, _ := m.Get("ex-1")
	if r.Output["answer"] != "b" || r.Difficulty != "hard" || len(r.Skills) != 1 {
		t.Fatalf("record = %+v", r)
	}

	// Curated examples have no input payload.
	err := m.UpdateAtPath("ex-1", models.PayloadInput, fieldpath.Path{"x"}, "y")
	if err == nil {
		t.Fatal("input-payload edit on a curate record accepted")
	}
}
