package models

// TraceRecord is one row of the parquet companion file that can ride along
// with a CSV dataset: the raw model interaction behind an evaluation record,
// keyed by the same id. The trace columns usually hold JSON text but are
// treated as opaque strings; they are shown, never edited.
type TraceRecord struct {
	ID          string `json:"id" parquet:"id"`
	InputTrace  string `json:"input_trace" parquet:"input_trace"`
	OutputTrace string `json:"output_trace" parquet:"output_trace"`
}
