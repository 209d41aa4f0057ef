// Package traceio reads the parquet companion files that carry model
// interaction traces for a CSV dataset.
package traceio

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/kensa-dev/kensa/internal/models"
)

// Import reads every trace row from a parquet file. The file must carry the
// id, input_trace and output_trace columns.
func Import(path string) ([]*models.TraceRecord, error) {
	rows, err := parquet.ReadFile[models.TraceRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading traces from %s: %w", path, err)
	}
	out := make([]*models.TraceRecord, 0, len(rows))
	for i := range rows {
		r := rows[i]
		out = append(out, &r)
	}
	return out, nil
}

// CompanionPath returns the trace file expected next to a CSV dataset:
// dataset.csv pairs with dataset.traces.parquet. Paths without a .csv
// suffix have no companion and are returned unchanged.
func CompanionPath(csvPath string) string {
	if !strings.HasSuffix(csvPath, ".csv") {
		return csvPath
	}
	return strings.TrimSuffix(csvPath, ".csv") + ".traces.parquet"
}
