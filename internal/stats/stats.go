// Package stats aggregates review progress over a working set: overview
// counters, human outcome distribution, the model-vs-human confusion matrix,
// and pass/fail breakdowns grouped by input fields.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/kensa-dev/kensa/internal/models"
)

// Overview is the headline progress block.
type Overview struct {
	Total         int     `json:"total"`
	Reviewed      int     `json:"reviewed"`
	CompletionPct float64 `json:"completion_pct"`
	PassRate      float64 `json:"pass_rate"`
	AgreementRate float64 `json:"agreement_rate"`
}

// OutcomeDistribution counts human judgments.
type OutcomeDistribution struct {
	Pass      int `json:"pass"`
	Fail      int `json:"fail"`
	Unlabeled int `json:"unlabeled"`
}

// ConfusionMatrix compares model and human outcomes over the records where
// both exist.
type ConfusionMatrix struct {
	ModelPassHumanPass int `json:"model_pass_human_pass"`
	ModelPassHumanFail int `json:"model_pass_human_fail"`
	ModelFailHumanPass int `json:"model_fail_human_pass"`
	ModelFailHumanFail int `json:"model_fail_human_fail"`
	Total              int `json:"total"`
}

// FieldGroupEntry is one value of a grouping field with its outcome counts.
type FieldGroupEntry struct {
	Value     string `json:"value"`
	Pass      int    `json:"pass"`
	Fail      int    `json:"fail"`
	Unlabeled int    `json:"unlabeled"`
	Total     int    `json:"total"`
}

// FieldGrouping is the per-value breakdown for one input field.
type FieldGrouping struct {
	FieldKey string            `json:"field_key"`
	Groups   []FieldGroupEntry `json:"groups"`
}

// ComputeOverview aggregates the headline counters. Rates are percentages;
// a rate with an empty denominator is 0, not NaN.
func ComputeOverview(records []*models.EvalRecord) Overview {
	var reviewed, passed, agreed, both int
	for _, r := range records {
		if r.HumanOutcome.Set() {
			reviewed++
			if r.HumanOutcome == models.OutcomePass {
				passed++
			}
		}
		if r.ModelOutcome.Set() && r.HumanOutcome.Set() {
			both++
			if r.ModelOutcome == r.HumanOutcome {
				agreed++
			}
		}
	}

	o := Overview{Total: len(records), Reviewed: reviewed}
	if o.Total > 0 {
		o.CompletionPct = float64(reviewed) / float64(o.Total) * 100
	}
	if reviewed > 0 {
		o.PassRate = float64(passed) / float64(reviewed) * 100
	}
	if both > 0 {
		o.AgreementRate = float64(agreed) / float64(both) * 100
	}
	return o
}

// ComputeOutcomeDistribution counts human judgments across all records.
func ComputeOutcomeDistribution(records []*models.EvalRecord) OutcomeDistribution {
	var d OutcomeDistribution
	for _, r := range records {
		switch r.HumanOutcome {
		case models.OutcomePass:
			d.Pass++
		case models.OutcomeFail:
			d.Fail++
		default:
			d.Unlabeled++
		}
	}
	return d
}

// ComputeConfusionMatrix tallies model-vs-human agreement over the records
// where both outcomes are set.
func ComputeConfusionMatrix(records []*models.EvalRecord) ConfusionMatrix {
	var m ConfusionMatrix
	for _, r := range records {
		if !r.ModelOutcome.Set() || !r.HumanOutcome.Set() {
			continue
		}
		switch {
		case r.ModelOutcome == models.OutcomePass && r.HumanOutcome == models.OutcomePass:
			m.ModelPassHumanPass++
		case r.ModelOutcome == models.OutcomePass && r.HumanOutcome == models.OutcomeFail:
			m.ModelPassHumanFail++
		case r.ModelOutcome == models.OutcomeFail && r.HumanOutcome == models.OutcomePass:
			m.ModelFailHumanPass++
		default:
			m.ModelFailHumanFail++
		}
	}
	m.Total = m.ModelPassHumanPass + m.ModelPassHumanFail + m.ModelFailHumanPass + m.ModelFailHumanFail
	return m
}

// DiscoverInputFields returns the input keys worth grouping by, most common
// first. Keys that appear on fewer than two records are dropped, as are keys
// whose values are over 80% unique, which are almost always identifiers.
func DiscoverInputFields(records []*models.EvalRecord) []string {
	if len(records) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, r := range records {
		for key := range r.Input {
			counts[key]++
		}
	}

	minCount := 2
	if len(records) < minCount {
		minCount = len(records)
	}

	type candidate struct {
		key   string
		count int
	}
	var fields []candidate
	for key, count := range counts {
		if count < minCount {
			continue
		}
		unique := make(map[string]struct{})
		for _, r := range records {
			unique[fieldValue(r, key)] = struct{}{}
		}
		if float64(len(unique))/float64(len(records)) > 0.8 {
			continue
		}
		fields = append(fields, candidate{key, count})
	}

	sort.Slice(fields, func(i, j int) bool {
		if fields[i].count != fields[j].count {
			return fields[i].count > fields[j].count
		}
		return fields[i].key < fields[j].key
	})

	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.key
	}
	return out
}

const maxGroups = 15

// ComputeFieldGrouping breaks outcomes down by the value of one input field.
// Groups beyond the top fifteen collapse into an Other bucket.
func ComputeFieldGrouping(records []*models.EvalRecord, fieldKey string) FieldGrouping {
	byValue := make(map[string]*FieldGroupEntry)
	var order []string

	for _, r := range records {
		value := "(empty)"
		if v, ok := r.Input[fieldKey]; ok && v != nil {
			value = toDisplay(v)
		}
		entry, ok := byValue[value]
		if !ok {
			entry = &FieldGroupEntry{Value: value}
			byValue[value] = entry
			order = append(order, value)
		}
		switch r.HumanOutcome {
		case models.OutcomePass:
			entry.Pass++
		case models.OutcomeFail:
			entry.Fail++
		default:
			entry.Unlabeled++
		}
		entry.Total++
	}

	groups := make([]FieldGroupEntry, 0, len(order))
	for _, v := range order {
		groups = append(groups, *byValue[v])
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Total > groups[j].Total })

	if len(groups) > maxGroups {
		other := FieldGroupEntry{Value: "Other"}
		for _, g := range groups[maxGroups:] {
			other.Pass += g.Pass
			other.Fail += g.Fail
			other.Unlabeled += g.Unlabeled
			other.Total += g.Total
		}
		groups = append(groups[:maxGroups:maxGroups], other)
	}

	return FieldGrouping{FieldKey: fieldKey, Groups: groups}
}

func fieldValue(r *models.EvalRecord, key string) string {
	v, ok := r.Input[key]
	if !ok || v == nil {
		return ""
	}
	return toDisplay(v)
}

func toDisplay(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		if vv == float64(int64(vv)) {
			return fmt.Sprintf("%d", int64(vv))
		}
		return fmt.Sprintf("%v", vv)
	default:
		return fmt.Sprintf("%v", vv)
	}
}

// FormatFieldKey turns a camelCase or snake_case key into a display heading.
func FormatFieldKey(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		if r == '_' {
			b.WriteByte(' ')
			continue
		}
		if unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	s := b.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
