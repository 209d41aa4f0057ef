// Package schemas embeds the JSON Schemas for the two record formats.
package schemas

import _ "embed"

//go:embed eval.record.schema.json
var EvalRecordSchemaJSON string

//go:embed curate.record.schema.json
var CurateRecordSchemaJSON string
