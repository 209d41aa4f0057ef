// Package shape classifies an output payload's key set into one of a small
// closed set of known rendering shapes. Classification is a pure function of
// the keys and shallow value shapes; ambiguity is resolved by a fixed
// priority order, most specific signature first.
package shape

import "strings"

// Kind is the rendering shape of an output payload.
type Kind string

const (
	// KindMisconception is the five-field misconception card: a question, a
	// misconception statement, an incorrect example, a correct concept and a
	// correct example. Matched on normalized key names with a minimum-match
	// threshold, since producers disagree on naming conventions.
	KindMisconception Kind = "misconception"

	// KindQuestionSet keys question/answer pairs by difficulty bucket
	// (easy/medium/hard).
	KindQuestionSet Kind = "question_set"

	// KindExitTicket is a list of question/answer pairs under a "questions"
	// key.
	KindExitTicket Kind = "exit_ticket"

	// KindMultipleChoice is a question with answerOptions and a correct
	// answer.
	KindMultipleChoice Kind = "multiple_choice"

	// KindQuestionAnswer is a bare question/answer pair.
	KindQuestionAnswer Kind = "question_answer"

	// KindGeneric is the structural fallback for everything else.
	KindGeneric Kind = "generic"
)

// DifficultyBuckets are the keys that mark a payload as a question set.
var DifficultyBuckets = []string{"easy", "medium", "hard"}

// misconceptionSignature are the normalized keys that, together, identify a
// misconception card when the "misconception" key itself is absent.
var misconceptionSignature = []string{"incorrectexample", "correctconcept", "correctexample"}

// Classify decides which rendering shape the payload matches. The checks run
// in a fixed priority order and the first match wins; a payload satisfying
// both the misconception signature and a difficulty bucket classifies as
// KindMisconception.
func Classify(output map[string]any) Kind {
	if len(output) == 0 {
		return KindGeneric
	}

	if isMisconception(output) {
		return KindMisconception
	}

	// Presence of any difficulty key is enough; the renderer degrades a
	// wrong-shaped bucket to the generic pass on its own.
	for _, bucket := range DifficultyBuckets {
		if _, ok := output[bucket]; ok {
			return KindQuestionSet
		}
	}

	if qs, ok := output["questions"].([]any); ok && len(qs) > 0 {
		allQA := true
		for _, q := range qs {
			if !IsQuestionAnswer(q) {
				allQA = false
				break
			}
		}
		if allQA {
			return KindExitTicket
		}
	}

	if IsQuestionAnswer(output) {
		if _, ok := output["answerOptions"].([]any); ok {
			return KindMultipleChoice
		}
		return KindQuestionAnswer
	}

	return KindGeneric
}

// IsQuestionAnswer reports whether v is an object carrying both a question
// and an answer key.
func IsQuestionAnswer(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, hasQ := m["question"]
	_, hasA := m["answer"]
	return hasQ && hasA
}

// NormalizeKey strips underscores and whitespace and lower-cases, so that
// snake_case and camelCase spellings of the same field compare equal.
func NormalizeKey(key string) string {
	key = strings.ReplaceAll(key, "_", "")
	key = strings.Join(strings.Fields(key), "")
	return strings.ToLower(key)
}

// NormalizedLookup returns the value for any of the candidate keys, matching
// on normalized names.
func NormalizedLookup(output map[string]any, candidates ...string) (any, bool) {
	byNorm := make(map[string]any, len(output))
	for k, v := range output {
		byNorm[NormalizeKey(k)] = v
	}
	for _, c := range candidates {
		if v, ok := byNorm[NormalizeKey(c)]; ok {
			return v, true
		}
	}
	return nil, false
}

func isMisconception(output map[string]any) bool {
	norm := make(map[string]struct{}, len(output))
	for k := range output {
		norm[NormalizeKey(k)] = struct{}{}
	}

	// Presence of the misconception field is the strongest signal.
	if _, ok := norm["misconception"]; ok {
		return true
	}

	matches := 0
	for _, field := range misconceptionSignature {
		if _, ok := norm[field]; ok {
			matches++
		}
	}
	return matches >= 2
}
