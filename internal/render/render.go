package render

import (
	"sort"
	"strconv"

	"github.com/kensa-dev/kensa/internal/fieldpath"
	"github.com/kensa-dev/kensa/internal/shape"
)

// Render produces the view tree for an output payload classified as kind.
// Layouts never fail: a payload whose values do not fit the expected shape
// degrades to the generic structural renderer for the subtree in question.
func Render(output map[string]any, kind shape.Kind) *Node {
	if len(output) == 0 {
		return empty("No output")
	}

	switch kind {
	case shape.KindMisconception:
		return renderMisconception(output)
	case shape.KindQuestionSet:
		return renderQuestionSet(output)
	case shape.KindExitTicket:
		return renderExitTicket(output)
	case shape.KindMultipleChoice:
		return renderMultipleChoice(output)
	case shape.KindQuestionAnswer:
		return renderQuestionAnswer(output)
	default:
		return RenderGeneric(output)
	}
}

// RenderGeneric renders a payload purely structurally: every key becomes a
// labeled section, scalars become editable text, arrays of scalars become
// editable lists, and objects recurse. Every leaf value in the payload
// surfaces somewhere in the tree.
func RenderGeneric(output map[string]any) *Node {
	root := group()
	for _, key := range sortedKeys(output) {
		root.Children = append(root.Children,
			section(FormatLabel(key), renderValue(output[key], fieldpath.Path{key})))
	}
	return root
}

// renderRest renders every key of output not present in claimed, in the
// generic style, so dedicated layouts never silently drop data.
func renderRest(output map[string]any, claimed map[string]bool) []*Node {
	var nodes []*Node
	for _, key := range sortedKeys(output) {
		if claimed[key] {
			continue
		}
		nodes = append(nodes,
			section(FormatLabel(key), renderValue(output[key], fieldpath.Path{key})))
	}
	return nodes
}

func renderValue(v any, path fieldpath.Path) *Node {
	switch val := v.(type) {
	case nil:
		return empty("—")

	case []any:
		if len(val) > 0 {
			if _, ok := val[0].(map[string]any); ok {
				return renderObjectList(val, path)
			}
		}
		return &Node{Kind: NodeList, Items: stringItems(val), Path: path}

	case map[string]any:
		nested := group()
		for _, key := range sortedKeys(val) {
			child := renderValue(val[key], append(append(fieldpath.Path{}, path...), key))
			nested.Children = append(nested.Children, section(FormatLabel(key), child))
		}
		return nested

	default:
		return text("", formatScalar(val), path)
	}
}

// renderObjectList renders an array whose elements are objects: each element
// becomes its own group, recursed structurally with index-addressed paths.
func renderObjectList(items []any, path fieldpath.Path) *Node {
	wrapper := group()
	for i, item := range items {
		itemPath := append(append(fieldpath.Path{}, path...), strconv.Itoa(i))
		obj, ok := item.(map[string]any)
		if !ok {
			// Mixed array; render the odd element on its own.
			wrapper.Children = append(wrapper.Children, group(renderValue(item, itemPath)))
			continue
		}
		card := group()
		for _, key := range sortedKeys(obj) {
			child := renderValue(obj[key], append(append(fieldpath.Path{}, itemPath...), key))
			card.Children = append(card.Children, section(FormatLabel(key), child))
		}
		wrapper.Children = append(wrapper.Children, card)
	}
	return wrapper
}

func stringItems(items []any) []string {
	out := make([]string, len(items))
	for i, v := range items {
		out[i] = formatScalar(v)
	}
	return out
}

func formatScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case nil:
		return ""
	default:
		// Composite value where a scalar was expected; keep it visible.
		return FormatLabel("unrenderable value")
	}
}

// sortedKeys gives deterministic rendering order for map-shaped payloads.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
