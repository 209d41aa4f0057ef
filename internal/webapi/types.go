package webapi

import (
	"encoding/json"

	"github.com/kensa-dev/kensa/internal/render"
	"github.com/kensa-dev/kensa/internal/stats"
)

// SessionInfo describes the loaded working set.
type SessionInfo struct {
	Mode          string `json:"mode"`
	Filename      string `json:"filename,omitempty"`
	Total         int    `json:"total"`
	ModifiedCount int    `json:"modifiedCount"`
	DeletedCount  int    `json:"deletedCount"`
	SelectedID    string `json:"selectedId,omitempty"`
}

// RecordSummary is one row of the record list. The mode-specific fields are
// omitted when empty.
type RecordSummary struct {
	ID       string `json:"id"`
	Modified bool   `json:"modified"`
	Deleted  bool   `json:"deleted"`

	// Eval mode.
	ModelOutcome string `json:"modelOutcome,omitempty"`
	HumanOutcome string `json:"humanOutcome,omitempty"`

	// Curate mode.
	NodeType   string `json:"nodeType,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// RecordDetail is the full record plus its rendered view tree.
type RecordDetail struct {
	RecordSummary
	Shape  string          `json:"shape"`
	Record json.RawMessage `json:"record"`
	View   *render.Node    `json:"view"`
}

// FieldsUpdateRequest merges top-level field values into a record.
type FieldsUpdateRequest struct {
	Fields map[string]any `json:"fields"`
}

// EditRequest is one path-addressed edit inside a record payload.
type EditRequest struct {
	// Payload selects the target payload, "output" (default) or "input".
	Payload string   `json:"payload,omitempty"`
	Path    []string `json:"path"`
	Value   any      `json:"value"`
}

// SelectionRequest changes the selected record.
type SelectionRequest struct {
	ID string `json:"id"`
}

// SelectionResponse reports the current selection.
type SelectionResponse struct {
	ID string `json:"id"`
}

// ImportSheetRequest loads a published Google Sheet.
type ImportSheetRequest struct {
	URL string `json:"url"`
}

// ImportResponse summarizes an import. Findings are advisory schema
// warnings keyed by record id.
type ImportResponse struct {
	Mode     string              `json:"mode"`
	Filename string              `json:"filename,omitempty"`
	Count    int                 `json:"count"`
	Findings map[string][]string `json:"findings,omitempty"`
}

// StatsResponse is the full eval-mode dashboard payload.
type StatsResponse struct {
	Overview     stats.Overview            `json:"overview"`
	Distribution stats.OutcomeDistribution `json:"distribution"`
	Confusion    stats.ConfusionMatrix     `json:"confusion"`
	PassRateCI   stats.ConfidenceInterval  `json:"passRateCi"`
}

// RenderRequest asks for a critique to be rendered to HTML.
type RenderRequest struct {
	Text string `json:"text"`
}

// RenderResponse carries the rendered HTML.
type RenderResponse struct {
	HTML string `json:"html"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
