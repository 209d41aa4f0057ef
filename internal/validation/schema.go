// Package validation checks imported records against the embedded JSON
// Schemas. Findings are advisory: an import proceeds with warnings rather
// than rejecting a whole file over one odd row.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kensa-dev/kensa/internal/models"
	"github.com/kensa-dev/kensa/schemas"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

var (
	evalSchema   *jsonschema.Schema
	curateSchema *jsonschema.Schema
)

func init() {
	evalSchema = mustCompileSchema(schemas.EvalRecordSchemaJSON, "eval.record.schema.json")
	curateSchema = mustCompileSchema(schemas.CurateRecordSchemaJSON, "curate.record.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateEvalRecord returns the schema findings for one record, empty when
// the record is clean.
func ValidateEvalRecord(r *models.EvalRecord) []string {
	return validateRecord(evalSchema, r)
}

// ValidateCurateRecord returns the schema findings for one record.
func ValidateCurateRecord(r *models.CurateRecord) []string {
	return validateRecord(curateSchema, r)
}

// ValidateEvalRecords aggregates findings across an import, keyed by record
// id. Records with an empty id are keyed by position.
func ValidateEvalRecords(records []*models.EvalRecord) map[string][]string {
	findings := make(map[string][]string)
	for i, r := range records {
		if errs := ValidateEvalRecord(r); len(errs) > 0 {
			findings[recordKey(r.ID, i)] = errs
		}
	}
	return findings
}

// ValidateCurateRecords aggregates findings across an import.
func ValidateCurateRecords(records []*models.CurateRecord) map[string][]string {
	findings := make(map[string][]string)
	for i, r := range records {
		if errs := ValidateCurateRecord(r); len(errs) > 0 {
			findings[recordKey(r.ExampleID, i)] = errs
		}
	}
	return findings
}

func recordKey(id string, index int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("row %d", index+1)
}

// validateRecord round-trips the typed record through JSON so the schema
// sees exactly what an export would contain.
func validateRecord(schema *jsonschema.Schema, record any) []string {
	data, err := json.Marshal(record)
	if err != nil {
		return []string{fmt.Sprintf("marshaling record: %v", err)}
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return []string{fmt.Sprintf("decoding record: %v", err)}
	}
	return validateAgainstSchema(schema, instance)
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}
