package render

import (
	"strconv"

	"github.com/kensa-dev/kensa/internal/fieldpath"
	"github.com/kensa-dev/kensa/internal/shape"
)

// qaCard renders one question/answer object at base. It also picks up the
// optional answerOptions list and nodeType marker some producers attach.
func qaCard(label string, qa map[string]any, base fieldpath.Path) *Node {
	card := group(badge(label))

	if nt, ok := qa["nodeType"].(string); ok && nt != "" {
		card.Children = append(card.Children, badge(FormatLabel(nt)))
	}

	card.Children = append(card.Children,
		section("Question", text("", asString(qa["question"]), childPath(base, "question"))))

	if opts, ok := qa["answerOptions"].([]any); ok {
		card.Children = append(card.Children, section("Answer Options", &Node{
			Kind:     NodeList,
			Items:    stringItems(opts),
			Path:     childPath(base, "answerOptions"),
			Lettered: true,
			Correct:  asString(qa["answer"]),
		}))
	}

	card.Children = append(card.Children,
		section("Answer", text("", asString(qa["answer"]), childPath(base, "answer"))))

	// Anything else in the pair object still gets rendered.
	claimed := map[string]bool{"question": true, "answer": true, "answerOptions": true, "nodeType": true}
	for _, key := range sortedKeys(qa) {
		if claimed[key] {
			continue
		}
		card.Children = append(card.Children,
			section(FormatLabel(key), renderValue(qa[key], childPath(base, key))))
	}

	return card
}

func renderQuestionAnswer(output map[string]any) *Node {
	root := group(qaCard("Question", output, nil))
	root.Children = append(root.Children, renderRest(output, map[string]bool{
		"question": true, "answer": true, "answerOptions": true, "nodeType": true,
	})...)
	return root
}

func renderMultipleChoice(output map[string]any) *Node {
	root := group()

	head := group()
	if d, ok := output["difficulty"].(string); ok && d != "" {
		head.Children = append(head.Children, badge(d))
	}
	head.Children = append(head.Children,
		section("Question", text("", asString(output["question"]), fieldpath.Path{"question"})))
	root.Children = append(root.Children, head)

	opts, _ := output["answerOptions"].([]any)
	root.Children = append(root.Children, section("Answer Options", &Node{
		Kind:     NodeList,
		Items:    stringItems(opts),
		Path:     fieldpath.Path{"answerOptions"},
		Lettered: true,
		Correct:  asString(output["answer"]),
	}))

	root.Children = append(root.Children,
		section("Correct Answer", line("", asString(output["answer"]), fieldpath.Path{"answer"})))

	if _, ok := output["difficulty"]; ok {
		root.Children = append(root.Children,
			section("Difficulty", line("", asString(output["difficulty"]), fieldpath.Path{"difficulty"})))
	}

	root.Children = append(root.Children, renderRest(output, map[string]bool{
		"question": true, "answer": true, "answerOptions": true, "difficulty": true,
	})...)
	return root
}

func renderQuestionSet(output map[string]any) *Node {
	claimed := make(map[string]bool, len(shape.DifficultyBuckets))
	var cards []*Node
	for _, bucket := range shape.DifficultyBuckets {
		v, ok := output[bucket]
		if !ok {
			continue
		}
		qa, isQA := v.(map[string]any)
		if !isQA || !shape.IsQuestionAnswer(v) {
			// Wrong shape under a difficulty key; leave it to the generic pass.
			continue
		}
		claimed[bucket] = true
		cards = append(cards, qaCard(FormatLabel(bucket), qa, fieldpath.Path{bucket}))
	}

	// Non-question fields (prerequisitesChosen and friends) come first, the
	// graded question cards after.
	root := group(renderRest(output, claimed)...)
	root.Children = append(root.Children, cards...)
	return root
}

func renderExitTicket(output map[string]any) *Node {
	questions, _ := output["questions"].([]any)

	root := group()
	for i, q := range questions {
		base := fieldpath.Path{"questions", strconv.Itoa(i)}
		if qa, ok := q.(map[string]any); ok && shape.IsQuestionAnswer(q) {
			root.Children = append(root.Children, qaCard("Question "+strconv.Itoa(i+1), qa, base))
		} else {
			root.Children = append(root.Children, group(renderValue(q, base)))
		}
	}

	root.Children = append(root.Children, renderRest(output, map[string]bool{"questions": true})...)
	return root
}

// misconceptionFieldSets maps each card slot to the key spellings producers
// use for it, in lookup order.
var misconceptionFieldSets = map[string][]string{
	"question":         {"question", "exampleQuestion"},
	"misconception":    {"misconception"},
	"incorrectExample": {"incorrectExample", "incorrect_example"},
	"correctConcept":   {"correctConcept", "correct_concept"},
	"correctExample":   {"correctExample", "correct_example"},
}

// reasoningFields are the internal model-reasoning fields rendered in a
// collapsed trailing section.
var reasoningFields = []string{"pickedMisconception", "candidateBrainstorm", "reasoning"}

func renderMisconception(output map[string]any) *Node {
	claimed := make(map[string]bool)

	slot := func(name string) *Node {
		key, ok := actualKey(output, misconceptionFieldSets[name]...)
		if !ok {
			return empty("—")
		}
		claimed[key] = true
		return text("", asString(output[key]), fieldpath.Path{key})
	}

	root := group(
		section("Question", slot("question")),
		group(
			section("Correct Answer", slot("correctExample")),
			section("Incorrect Answer", slot("incorrectExample")),
			section("Correct Concept", slot("correctConcept")),
			section("Misconception", slot("misconception")),
		),
	)

	var reasoning []*Node
	for _, name := range reasoningFields {
		key, ok := actualKey(output, name)
		if !ok {
			continue
		}
		claimed[key] = true
		reasoning = append(reasoning,
			section(FormatLabel(name), text("", asString(output[key]), fieldpath.Path{key})))
	}

	root.Children = append(root.Children, renderRest(output, claimed)...)
	if len(reasoning) > 0 {
		root.Children = append(root.Children, section("AI Reasoning Details", reasoning...))
	}
	return root
}

// actualKey resolves candidate spellings against the payload's real key set,
// so edit paths always address a key that exists.
func actualKey(output map[string]any, candidates ...string) (string, bool) {
	byNorm := make(map[string]string, len(output))
	for k := range output {
		byNorm[shape.NormalizeKey(k)] = k
	}
	for _, c := range candidates {
		if k, ok := byNorm[shape.NormalizeKey(c)]; ok {
			return k, true
		}
	}
	return "", false
}

func asString(v any) string {
	return formatScalar(v)
}

func childPath(base fieldpath.Path, seg string) fieldpath.Path {
	return append(append(fieldpath.Path{}, base...), seg)
}
