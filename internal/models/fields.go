package models

import (
	"encoding/json"
	"fmt"
)

// PayloadKind names the two nested-JSON payloads a record can carry.
type PayloadKind string

const (
	PayloadOutput PayloadKind = "output"
	PayloadInput  PayloadKind = "input"
)

// The methods below satisfy the workingset.Record contract for both record
// types: stable identity, soft-delete and modified flags, payload access for
// path-addressed edits, and whole-field merges.

func (r *EvalRecord) RecordID() string  { return r.ID }
func (r *EvalRecord) IsDeleted() bool   { return r.Deleted }
func (r *EvalRecord) SetDeleted(d bool) { r.Deleted = d }
func (r *EvalRecord) IsModified() bool  { return r.Modified }
func (r *EvalRecord) MarkModified()     { r.Modified = true }

// Clone returns a deep copy via a JSON round trip; the payloads are
// arbitrary nested values, so a field-by-field copy would not be safe.
func (r *EvalRecord) Clone() *EvalRecord {
	cp := *r
	cp.Input = clonePayload(r.Input)
	cp.Output = clonePayload(r.Output)
	return &cp
}

func (r *EvalRecord) Payload(kind PayloadKind) (map[string]any, bool) {
	switch kind {
	case PayloadOutput:
		return r.Output, true
	case PayloadInput:
		return r.Input, true
	}
	return nil, false
}

func (r *EvalRecord) SetPayload(kind PayloadKind, m map[string]any) {
	switch kind {
	case PayloadOutput:
		r.Output = m
	case PayloadInput:
		r.Input = m
	}
}

// ApplyFields merges top-level judgment fields into the record. The
// identifier and the payloads are not addressable this way.
func (r *EvalRecord) ApplyFields(fields map[string]any) error {
	for key, v := range fields {
		switch key {
		case "human_outcome":
			o, err := toOutcome(v)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			r.HumanOutcome = o
		case "model_outcome":
			o, err := toOutcome(v)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			r.ModelOutcome = o
		case "human_critique":
			r.HumanCritique = toString(v)
		case "model_critique":
			r.ModelCritique = toString(v)
		case "human_revised_response":
			r.RevisedResponse = toString(v)
		case "agreement":
			r.Agreement = toString(v)
		default:
			return fmt.Errorf("unknown field %q", key)
		}
	}
	return nil
}

func (c *CurateRecord) RecordID() string  { return c.ExampleID }
func (c *CurateRecord) IsDeleted() bool   { return c.Deleted }
func (c *CurateRecord) SetDeleted(d bool) { c.Deleted = d }
func (c *CurateRecord) IsModified() bool  { return c.Modified }
func (c *CurateRecord) MarkModified()     { c.Modified = true }

func (c *CurateRecord) Clone() *CurateRecord {
	cp := *c
	cp.Output = clonePayload(c.Output)
	cp.Skills = append([]string(nil), c.Skills...)
	cp.SkillIDs = append([]string(nil), c.SkillIDs...)
	cp.Subtopics = append([]string(nil), c.Subtopics...)
	cp.SubtopicIDs = append([]string(nil), c.SubtopicIDs...)
	return &cp
}

func (c *CurateRecord) Payload(kind PayloadKind) (map[string]any, bool) {
	if kind == PayloadOutput {
		return c.Output, true
	}
	// Curated examples have no separate input payload; the metadata columns
	// fill that role and are edited as whole fields.
	return nil, false
}

func (c *CurateRecord) SetPayload(kind PayloadKind, m map[string]any) {
	if kind == PayloadOutput {
		c.Output = m
	}
}

func (c *CurateRecord) ApplyFields(fields map[string]any) error {
	for key, v := range fields {
		switch key {
		case "topic":
			c.Topic = toString(v)
		case "topic_id":
			c.TopicID = toString(v)
		case "context":
			c.Context = toString(v)
		case "class_year":
			c.ClassYear = toString(v)
		case "country":
			c.Country = toString(v)
		case "period_number":
			c.PeriodNumber = toString(v)
		case "node_type":
			c.NodeType = toString(v)
		case "difficulty":
			c.Difficulty = toString(v)
		case "skills":
			c.Skills = toStringSlice(v)
		case "skill_ids":
			c.SkillIDs = toStringSlice(v)
		case "subtopics":
			c.Subtopics = toStringSlice(v)
		case "subtopic_ids":
			c.SubtopicIDs = toStringSlice(v)
		default:
			return fmt.Errorf("unknown field %q", key)
		}
	}
	return nil
}

func clonePayload(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return m
	}
	return out
}

func toOutcome(v any) (Outcome, error) {
	s, ok := v.(string)
	if !ok {
		return OutcomeUnset, fmt.Errorf("expected string, got %T", v)
	}
	switch Outcome(s) {
	case OutcomeUnset, OutcomePass, OutcomeFail:
		return Outcome(s), nil
	}
	return OutcomeUnset, fmt.Errorf("invalid outcome %q", s)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, len(vv))
		for i, item := range vv {
			out[i] = toString(item)
		}
		return out
	case nil:
		return nil
	default:
		return []string{toString(v)}
	}
}
