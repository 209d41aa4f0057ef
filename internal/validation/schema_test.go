package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kensa-dev/kensa/internal/models"
)

func TestValidateEvalRecord_Clean(t *testing.T) {
	r := &models.EvalRecord{
		ID:           "A",
		Input:        map[string]any{"topic": "sums"},
		Output:       map[string]any{"question": "2+2?", "answer": "4"},
		ModelOutcome: models.OutcomePass,
	}
	require.Empty(t, ValidateEvalRecord(r))
}

func TestValidateEvalRecord_MissingID(t *testing.T) {
	errs := ValidateEvalRecord(&models.EvalRecord{Output: map[string]any{}})
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0], "/id")
}

func TestValidateEvalRecord_NilPayloadsAllowed(t *testing.T) {
	require.Empty(t, ValidateEvalRecord(&models.EvalRecord{ID: "A"}))
}

func TestValidateCurateRecord_Clean(t *testing.T) {
	r := &models.CurateRecord{
		ExampleID: "ex-1",
		Output:    map[string]any{"question": "q"},
		Skills:    []string{"addition"},
		NodeType:  "MULTIPLE_CHOICE_QUESTION",
	}
	require.Empty(t, ValidateCurateRecord(r))
}

func TestValidateCurateRecord_MissingID(t *testing.T) {
	errs := ValidateCurateRecord(&models.CurateRecord{Topic: "sums"})
	require.NotEmpty(t, errs)
}

func TestValidateEvalRecords_KeysFindings(t *testing.T) {
	records := []*models.EvalRecord{
		{ID: "good", Output: map[string]any{}},
		{Output: map[string]any{}},
	}
	findings := ValidateEvalRecords(records)
	require.Len(t, findings, 1)
	require.Contains(t, findings, "row 2")
}

func TestValidateCurateRecords_CleanSetHasNoFindings(t *testing.T) {
	records := []*models.CurateRecord{
		{ExampleID: "ex-1"},
		{ExampleID: "ex-2", Subtopics: []string{"fractions"}},
	}
	require.Empty(t, ValidateCurateRecords(records))
}
