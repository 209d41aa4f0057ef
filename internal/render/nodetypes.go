package render

import (
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	"github.com/kensa-dev/kensa/internal/fieldpath"
)

// RenderNodeType renders a curated example's output payload using the layout
// for its node_type column. Unknown node types, and payloads that do not
// decode into the expected layout, fall back to the generic renderer so a
// record always renders.
func RenderNodeType(output map[string]any, nodeType string) *Node {
	if len(output) == 0 {
		return empty("No output")
	}

	switch nodeType {
	case "THOUGHT_SPARKER":
		return renderThoughtSparker(output)
	case "APPLICATION":
		return renderApplication(output)
	case "CONTEMPLATIVE_QUESTION":
		return renderContemplative(output)
	case "EXIT_TICKET":
		return renderQuestionList(output, nil, map[string]bool{"questions": true})
	case "ACTIVITY":
		return renderActivity(output)
	case "WARM_UP_QUESTIONS_WITH_CONTEXT":
		return renderWarmUp(output)
	case "MULTIPLE_CHOICE_QUESTION":
		return renderMultipleChoice(output)
	case "SCAFFOLDED_QUESTION":
		return renderScaffolded(output)
	default:
		return RenderGeneric(output)
	}
}

// decode fills layout from output. A decode failure means the payload does
// not match the node type's expected shape; callers degrade to generic.
func decode(output map[string]any, layout any) bool {
	return mapstructure.Decode(output, layout) == nil
}

type qaPair struct {
	Question string `mapstructure:"question"`
	Answer   string `mapstructure:"answer"`
}

type thoughtSparkerLayout struct {
	FirstSentenceHeader  string   `mapstructure:"firstSentenceHeader"`
	FirstSentence        string   `mapstructure:"firstSentence"`
	SecondSentenceHeader string   `mapstructure:"secondSentenceHeader"`
	SecondSentence       string   `mapstructure:"secondSentence"`
	TeacherTips          []string `mapstructure:"teacherTips"`
}

func renderThoughtSparker(output map[string]any) *Node {
	var v thoughtSparkerLayout
	if !decode(output, &v) {
		return RenderGeneric(output)
	}

	root := group(group(
		section("Header", line("", v.FirstSentenceHeader, fieldpath.Path{"firstSentenceHeader"})),
		section("Prompt", text("", v.FirstSentence, fieldpath.Path{"firstSentence"})),
	))

	if v.SecondSentenceHeader != "" || v.SecondSentence != "" {
		root.Children = append(root.Children, group(
			section("Second Header", line("", v.SecondSentenceHeader, fieldpath.Path{"secondSentenceHeader"})),
			section("Second Sentence", text("", v.SecondSentence, fieldpath.Path{"secondSentence"})),
		))
	}

	root.Children = append(root.Children,
		section("Teacher Tips", scalarList(v.TeacherTips, fieldpath.Path{"teacherTips"})))

	root.Children = append(root.Children, renderRest(output, map[string]bool{
		"firstSentenceHeader": true, "firstSentence": true,
		"secondSentenceHeader": true, "secondSentence": true,
		"teacherTips": true,
	})...)
	return root
}

type applicationLayout struct {
	Title          string `mapstructure:"title"`
	Example1Header string `mapstructure:"example1Header"`
	Example1Body   string `mapstructure:"example1Body"`
	Example2Header string `mapstructure:"example2Header"`
	Example2Body   string `mapstructure:"example2Body"`
}

func renderApplication(output map[string]any) *Node {
	var v applicationLayout
	if !decode(output, &v) {
		return RenderGeneric(output)
	}

	root := group(
		section("Title", line("", v.Title, fieldpath.Path{"title"})),
		group(
			section("Example 1 — Header", line("", v.Example1Header, fieldpath.Path{"example1Header"})),
			section("Example 1 — Body", text("", v.Example1Body, fieldpath.Path{"example1Body"})),
		),
	)

	if v.Example2Header != "" || v.Example2Body != "" {
		root.Children = append(root.Children, group(
			section("Example 2 — Header", line("", v.Example2Header, fieldpath.Path{"example2Header"})),
			section("Example 2 — Body", text("", v.Example2Body, fieldpath.Path{"example2Body"})),
		))
	}

	root.Children = append(root.Children, renderRest(output, map[string]bool{
		"title": true, "example1Header": true, "example1Body": true,
		"example2Header": true, "example2Body": true,
	})...)
	return root
}

type contemplativeLayout struct {
	Question    string   `mapstructure:"question"`
	TeacherTips []string `mapstructure:"teacherTips"`
	Difficulty  string   `mapstructure:"difficulty"`
}

func renderContemplative(output map[string]any) *Node {
	var v contemplativeLayout
	if !decode(output, &v) {
		return RenderGeneric(output)
	}

	head := group()
	if v.Difficulty != "" {
		head.Children = append(head.Children, badge(v.Difficulty))
	}
	head.Children = append(head.Children,
		section("Question", text("", v.Question, fieldpath.Path{"question"})))
	if _, ok := output["difficulty"]; ok {
		head.Children = append(head.Children,
			section("Difficulty", line("", v.Difficulty, fieldpath.Path{"difficulty"})))
	}

	root := group(head,
		section("Teacher Tips", scalarList(v.TeacherTips, fieldpath.Path{"teacherTips"})))

	root.Children = append(root.Children, renderRest(output, map[string]bool{
		"question": true, "teacherTips": true, "difficulty": true,
	})...)
	return root
}

type activityLayout struct {
	Header          string   `mapstructure:"header"`
	Scenario        string   `mapstructure:"scenario"`
	Steps           []string `mapstructure:"steps"`
	Discussion      []string `mapstructure:"discussion"`
	Differentiation struct {
		Support string `mapstructure:"support"`
		Extend  string `mapstructure:"extend"`
	} `mapstructure:"differentiation"`
}

func renderActivity(output map[string]any) *Node {
	var v activityLayout
	if !decode(output, &v) {
		return RenderGeneric(output)
	}

	root := group(
		section("Header", line("", v.Header, fieldpath.Path{"header"})),
		section("Scenario", text("", v.Scenario, fieldpath.Path{"scenario"})),
		section("Steps", scalarList(v.Steps, fieldpath.Path{"steps"})),
	)

	if len(v.Discussion) > 0 {
		root.Children = append(root.Children,
			section("Discussion", scalarList(v.Discussion, fieldpath.Path{"discussion"})))
	}

	if v.Differentiation.Support != "" || v.Differentiation.Extend != "" {
		root.Children = append(root.Children, section("Differentiation",
			section("Support", text("", v.Differentiation.Support, fieldpath.Path{"differentiation", "support"})),
			section("Extend", text("", v.Differentiation.Extend, fieldpath.Path{"differentiation", "extend"})),
		))
	}

	root.Children = append(root.Children, renderRest(output, map[string]bool{
		"header": true, "scenario": true, "steps": true,
		"discussion": true, "differentiation": true,
	})...)
	return root
}

type warmUpLayout struct {
	Situation string   `mapstructure:"situation"`
	Questions []qaPair `mapstructure:"questions"`
}

func renderWarmUp(output map[string]any) *Node {
	var v warmUpLayout
	if !decode(output, &v) {
		return RenderGeneric(output)
	}

	head := section("Situation", text("", v.Situation, fieldpath.Path{"situation"}))
	return renderQuestionList(output, head, map[string]bool{"questions": true, "situation": true})
}

type scaffoldedLayout struct {
	Headline   string   `mapstructure:"headline"`
	Questions  []qaPair `mapstructure:"questions"`
	Difficulty string   `mapstructure:"difficulty"`
}

func renderScaffolded(output map[string]any) *Node {
	var v scaffoldedLayout
	if !decode(output, &v) {
		return RenderGeneric(output)
	}

	head := group()
	if v.Difficulty != "" {
		head.Children = append(head.Children, badge(v.Difficulty))
	}
	head.Children = append(head.Children,
		section("Headline", line("", v.Headline, fieldpath.Path{"headline"})))
	if _, ok := output["difficulty"]; ok {
		head.Children = append(head.Children,
			section("Difficulty", line("", v.Difficulty, fieldpath.Path{"difficulty"})))
	}

	return renderQuestionList(output, head, map[string]bool{
		"questions": true, "headline": true, "difficulty": true,
	})
}

// renderQuestionList renders the shared "questions" list of Q/A pair cards
// used by exit tickets, warm-ups and scaffolded questions. head, if non-nil,
// is rendered before the cards; claimed names the head fields the caller
// already rendered.
func renderQuestionList(output map[string]any, head *Node, claimed map[string]bool) *Node {
	root := group()
	if head != nil {
		root.Children = append(root.Children, head)
	}

	questions, _ := output["questions"].([]any)
	for i, q := range questions {
		base := fieldpath.Path{"questions", strconv.Itoa(i)}
		if qa, ok := q.(map[string]any); ok {
			root.Children = append(root.Children, qaCard("Question "+strconv.Itoa(i+1), qa, base))
		} else {
			root.Children = append(root.Children, group(renderValue(q, base)))
		}
	}

	root.Children = append(root.Children, renderRest(output, claimed)...)
	return root
}

func scalarList(items []string, path fieldpath.Path) *Node {
	return &Node{Kind: NodeList, Items: items, Path: path}
}
