// Package csvio reads and writes the evaluation CSV format: one record per
// row, with the input and output payloads stored as JSON strings in their
// columns.
package csvio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kensa-dev/kensa/internal/models"
)

// ErrNoIDColumn is returned when the header row has no id column.
var ErrNoIDColumn = errors.New("csv has no id column")

// Parse reads a full CSV document into eval records. The first row is the
// header; columns are matched by name, so order and extra columns do not
// matter. The import is all-or-nothing: a malformed row fails the whole
// parse and nothing is loaded.
func Parse(r io.Reader) ([]*models.EvalRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, ErrNoIDColumn
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []*models.EvalRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		records = append(records, &models.EvalRecord{
			ID:              field(row, "id"),
			Input:           parsePayload(field(row, "input")),
			Output:          parsePayload(field(row, "output")),
			ModelCritique:   field(row, "model_critique"),
			ModelOutcome:    models.Outcome(field(row, "model_outcome")),
			HumanCritique:   field(row, "human_critique"),
			HumanOutcome:    models.Outcome(field(row, "human_outcome")),
			RevisedResponse: field(row, "human_revised_response"),
			Agreement:       field(row, "agreement"),
		})
	}
	return records, nil
}

// parsePayload decodes a JSON object column. Empty cells and malformed JSON
// degrade to an empty payload rather than failing the import; the cell text
// is still visible through the generic renderer when the payload is a JSON
// scalar, because those also fail the object decode.
func parsePayload(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// Export writes records as CSV in the canonical column order. Soft-deleted
// records are dropped; the session-local flags are never written.
func Export(w io.Writer, records []*models.EvalRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.EvalColumns); err != nil {
		return err
	}

	for _, r := range records {
		if r.Deleted {
			continue
		}
		input, err := json.Marshal(payloadOrEmpty(r.Input))
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		output, err := json.Marshal(payloadOrEmpty(r.Output))
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		row := []string{
			r.ID,
			string(input),
			string(output),
			r.ModelCritique,
			string(r.ModelOutcome),
			r.HumanCritique,
			string(r.HumanOutcome),
			r.RevisedResponse,
			r.Agreement,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func payloadOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
