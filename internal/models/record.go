// Package models defines the record types that flow through kensa: evaluation
// records under human review, and curated prompt examples imported from a
// SQLite table.
package models

// Outcome is a human or model judgment on a record. The empty string means
// the record has not been judged yet.
type Outcome string

const (
	OutcomeUnset Outcome = ""
	OutcomePass  Outcome = "PASS"
	OutcomeFail  Outcome = "FAIL"
)

// Set reports whether the outcome carries a judgment.
func (o Outcome) Set() bool {
	return o == OutcomePass || o == OutcomeFail
}

// EvalRecord is one reviewable evaluation example. Input and Output hold the
// parsed JSON payloads from the source file; their shape is arbitrary and
// only inspected at render time.
type EvalRecord struct {
	ID              string         `json:"id"`
	Input           map[string]any `json:"input"`
	Output          map[string]any `json:"output"`
	ModelCritique   string         `json:"model_critique"`
	ModelOutcome    Outcome        `json:"model_outcome"`
	HumanCritique   string         `json:"human_critique"`
	HumanOutcome    Outcome        `json:"human_outcome"`
	RevisedResponse string         `json:"human_revised_response"`
	Agreement       string         `json:"agreement"`

	// Session-local flags, never written back to the source file.
	Modified bool `json:"_modified,omitempty"`
	Deleted  bool `json:"_deleted,omitempty"`
}

// EvalColumns is the CSV column set, in export order.
var EvalColumns = []string{
	"id",
	"input",
	"output",
	"model_critique",
	"model_outcome",
	"human_critique",
	"human_outcome",
	"human_revised_response",
	"agreement",
}
