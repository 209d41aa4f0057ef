// Package sqliteio imports curated prompt examples from a SQLite database
// and exports the working set back into a fresh database with the source
// schema reproduced.
package sqliteio

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kensa-dev/kensa/internal/models"
)

// ErrNoTables is returned when the database holds no user tables.
var ErrNoTables = errors.New("no tables found in sqlite file")

// ImportResult is the parsed working set plus the DDL needed to re-export a
// structurally identical database.
type ImportResult struct {
	Records []*models.CurateRecord
	// Schema is the source CREATE TABLE statement followed by any view
	// definitions, semicolon-separated. It is carried opaquely until export.
	Schema string
}

// Import reads curated examples from the first user table of the database at
// path. The table name is discovered rather than assumed, and its CREATE
// statement is captured so exports keep the original shape.
func Import(ctx context.Context, path string) (*ImportResult, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer db.Close()

	table, err := discoverTable(ctx, db)
	if err != nil {
		return nil, err
	}

	schema, err := captureSchema(ctx, db, table)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []*models.CurateRecord
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		records = append(records, rowToRecord(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ImportResult{Records: records, Schema: schema}, nil
}

// discoverTable returns the first non-internal table name.
func discoverTable(ctx context.Context, db *sql.DB) (string, error) {
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' LIMIT 1",
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", ErrNoTables
	}
	if err != nil {
		return "", fmt.Errorf("discovering table: %w", err)
	}
	return name, nil
}

// captureSchema collects the table's CREATE statement plus all view DDL.
func captureSchema(ctx context.Context, db *sql.DB, table string) (string, error) {
	var ddl sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&ddl)
	if err != nil {
		return "", fmt.Errorf("reading schema for %s: %w", table, err)
	}

	parts := []string{}
	if ddl.Valid && ddl.String != "" {
		parts = append(parts, ddl.String)
	}

	rows, err := db.QueryContext(ctx, "SELECT sql FROM sqlite_master WHERE type='view'")
	if err != nil {
		return "", fmt.Errorf("reading views: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var view sql.NullString
		if err := rows.Scan(&view); err != nil {
			return "", err
		}
		if view.Valid && view.String != "" {
			parts = append(parts, view.String)
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, ";\n") + ";", nil
}

func rowToRecord(row map[string]any) *models.CurateRecord {
	return &models.CurateRecord{
		ExampleID:    asText(row["example_id"]),
		Output:       asPayload(row["example_output_json"]),
		Skills:       asStringArray(row["skills"]),
		SkillIDs:     asStringArray(row["skill_ids"]),
		Subtopics:    asStringArray(row["subtopics"]),
		SubtopicIDs:  asStringArray(row["subtopic_ids"]),
		Topic:        asText(row["topic"]),
		TopicID:      asText(row["topic_id"]),
		Context:      asText(row["context"]),
		ClassYear:    asText(row["class_year"]),
		Country:      asText(row["country"]),
		PeriodNumber: asText(row["period_number"]),
		NodeType:     asText(row["node_type"]),
		Difficulty:   asText(row["difficulty"]),
	}
}

func asText(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case []byte:
		return string(vv)
	case int64:
		return fmt.Sprintf("%d", vv)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", vv), "0"), ".")
	default:
		return fmt.Sprint(vv)
	}
}

// asPayload decodes a JSON object column; non-object or malformed values
// degrade to an empty payload.
func asPayload(v any) map[string]any {
	raw := asText(v)
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// asStringArray decodes a column that holds either a JSON array or a plain
// string. A plain non-empty string becomes a single-element array.
func asStringArray(v any) []string {
	raw := asText(v)
	if raw == "" {
		return nil
	}
	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		out := make([]string, len(arr))
		for i, item := range arr {
			out[i] = asText(item)
		}
		return out
	}
	return []string{raw}
}

var createTableName = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?["` + "`" + `]?([^"` + "`" + `(\s]+)`)

// Export writes the records into a new database at path, replaying the
// captured schema first. Soft-deleted records are dropped; the table name is
// taken from the schema DDL, falling back to prompt_examples when the schema
// is absent.
func Export(ctx context.Context, path string, records []*models.CurateRecord, schema string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer db.Close()

	table := "prompt_examples"
	if m := createTableName.FindStringSubmatch(schema); m != nil {
		table = m[1]
	}

	if schema == "" {
		schema = defaultSchema(table)
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// Views may reference objects that do not exist yet; the table
			// itself must be created.
			if strings.HasPrefix(strings.ToUpper(stmt), "CREATE TABLE") {
				return fmt.Errorf("replaying schema: %w", err)
			}
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(models.CurateColumns)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(models.CurateColumns, ", "), placeholders)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range records {
		if r.Deleted {
			continue
		}
		row, err := recordToRow(r)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ExampleID, err)
		}
		if _, err := tx.ExecContext(ctx, insert, row...); err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ExampleID, err)
		}
	}
	return tx.Commit()
}

func recordToRow(r *models.CurateRecord) ([]any, error) {
	row := make([]any, 0, len(models.CurateColumns))
	for _, col := range models.CurateColumns {
		switch col {
		case "example_output_json":
			data, err := json.Marshal(payloadOrEmpty(r.Output))
			if err != nil {
				return nil, err
			}
			row = append(row, string(data))
		case "skills", "skill_ids", "subtopics", "subtopic_ids":
			data, err := json.Marshal(sliceOrEmpty(arrayColumn(r, col)))
			if err != nil {
				return nil, err
			}
			row = append(row, string(data))
		default:
			row = append(row, r.Field(col))
		}
	}
	return row, nil
}

func payloadOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func arrayColumn(r *models.CurateRecord, col string) []string {
	switch col {
	case "skills":
		return r.Skills
	case "skill_ids":
		return r.SkillIDs
	case "subtopics":
		return r.Subtopics
	case "subtopic_ids":
		return r.SubtopicIDs
	}
	return nil
}

func defaultSchema(table string) string {
	cols := make([]string, len(models.CurateColumns))
	for i, c := range models.CurateColumns {
		cols[i] = c + " TEXT"
	}
	return "CREATE TABLE " + quoteIdent(table) + " (" + strings.Join(cols, ", ") + ");"
}

// quoteIdent double-quotes an identifier so hyphenated table names work.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
