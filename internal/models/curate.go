package models

// CurateRecord is one curated prompt example, imported from a SQLite table.
// The column layout is fixed (see CurateColumns); the output payload is the
// only free-form field.
type CurateRecord struct {
	ExampleID    string         `json:"example_id"`
	Output       map[string]any `json:"example_output_json"`
	Skills       []string       `json:"skills"`
	SkillIDs     []string       `json:"skill_ids"`
	Subtopics    []string       `json:"subtopics"`
	SubtopicIDs  []string       `json:"subtopic_ids"`
	Topic        string         `json:"topic"`
	TopicID      string         `json:"topic_id"`
	Context      string         `json:"context"`
	ClassYear    string         `json:"class_year"`
	Country      string         `json:"country"`
	PeriodNumber string         `json:"period_number"`
	NodeType     string         `json:"node_type"`
	Difficulty   string         `json:"difficulty"`

	Modified bool `json:"_modified,omitempty"`
	Deleted  bool `json:"_deleted,omitempty"`
}

// CurateColumns is the raw column order of the source table. Export writes
// columns in exactly this order so round-tripped files diff cleanly.
var CurateColumns = []string{
	"example_id",
	"example_output_json",
	"skills",
	"skill_ids",
	"subtopics",
	"subtopic_ids",
	"topic",
	"topic_id",
	"context",
	"class_year",
	"country",
	"period_number",
	"node_type",
	"difficulty",
}

// CurateMetadataFields are the columns shown in the side panel, everything
// except the id and the output payload.
var CurateMetadataFields = []string{
	"topic",
	"skills",
	"subtopics",
	"node_type",
	"difficulty",
	"class_year",
	"country",
	"context",
	"period_number",
	"topic_id",
	"skill_ids",
	"subtopic_ids",
}

// CurateGroupableFields are the columns that make sense as sidebar filters.
var CurateGroupableFields = []string{
	"node_type",
	"topic",
	"difficulty",
	"class_year",
	"country",
}

// Field returns the named scalar column as a string. Array-valued and
// payload columns return the empty string.
func (c *CurateRecord) Field(name string) string {
	switch name {
	case "example_id":
		return c.ExampleID
	case "topic":
		return c.Topic
	case "topic_id":
		return c.TopicID
	case "context":
		return c.Context
	case "class_year":
		return c.ClassYear
	case "country":
		return c.Country
	case "period_number":
		return c.PeriodNumber
	case "node_type":
		return c.NodeType
	case "difficulty":
		return c.Difficulty
	default:
		return ""
	}
}
