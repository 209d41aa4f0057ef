// Package render turns an output payload into a tree of display and edit
// widgets. Dedicated layouts exist for each known shape; anything they do not
// claim, and any payload with no recognizable shape at all, goes through the
// generic structural renderer so no data is ever dropped from view. Every
// editable leaf carries its full path from the payload root, which is the
// contract the field-path mutator relies on.
package render

import (
	"strings"
	"unicode"

	"github.com/kensa-dev/kensa/internal/fieldpath"
)

// NodeKind discriminates the widget types in a view tree.
type NodeKind string

const (
	// NodeSection is a labeled container of child nodes.
	NodeSection NodeKind = "section"
	// NodeGroup is an unlabeled container (a card, an array element).
	NodeGroup NodeKind = "group"
	// NodeText is an editable scalar leaf.
	NodeText NodeKind = "text"
	// NodeList is an editable ordered list of scalars, edited as a whole at
	// the list's own path.
	NodeList NodeKind = "list"
	// NodeBadge is a presentation-only marker (difficulty, node type).
	NodeBadge NodeKind = "badge"
	// NodeEmpty is the explicit empty-state marker for null values.
	NodeEmpty NodeKind = "empty"
)

// Node is one widget in the rendered view tree. The tree is serialized to
// JSON as-is for the dashboard.
type Node struct {
	Kind  NodeKind `json:"kind"`
	Label string   `json:"label,omitempty"`

	// Value is the current text of a NodeText leaf.
	Value string `json:"value,omitempty"`
	// Items are the current entries of a NodeList.
	Items []string `json:"items,omitempty"`

	// Path locates this widget's value inside the output payload. Set on
	// NodeText and NodeList; empty on presentation-only nodes.
	Path fieldpath.Path `json:"path,omitempty"`

	// Multiline requests a textarea instead of a single-line input.
	Multiline bool `json:"multiline,omitempty"`
	// Math marks text that may contain inline math markup.
	Math bool `json:"math,omitempty"`
	// Lettered renders list items with A/B/C labels instead of numbers.
	// Presentation only; paths stay index-addressed.
	Lettered bool `json:"lettered,omitempty"`
	// Correct highlights the list item whose text matches this value.
	Correct string `json:"correct,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

func section(label string, children ...*Node) *Node {
	return &Node{Kind: NodeSection, Label: label, Children: children}
}

func group(children ...*Node) *Node {
	return &Node{Kind: NodeGroup, Children: children}
}

func text(label, value string, path fieldpath.Path) *Node {
	return &Node{Kind: NodeText, Label: label, Value: value, Path: path, Multiline: true, Math: true}
}

func line(label, value string, path fieldpath.Path) *Node {
	return &Node{Kind: NodeText, Label: label, Value: value, Path: path, Math: true}
}

func badge(label string) *Node {
	return &Node{Kind: NodeBadge, Label: label}
}

func empty(label string) *Node {
	return &Node{Kind: NodeEmpty, Label: label}
}

// Walk visits every node in the tree, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Leaves returns every editable node (text or list) in the tree.
func (n *Node) Leaves() []*Node {
	var out []*Node
	n.Walk(func(c *Node) {
		if c.Kind == NodeText || c.Kind == NodeList {
			out = append(out, c)
		}
	})
	return out
}

// FormatLabel turns a camelCase or snake_case key into a Title Case label.
func FormatLabel(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == '_':
			b.WriteByte(' ')
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			b.WriteByte(' ')
			b.WriteRune(r)
		case unicode.IsDigit(r) && i > 0 && !unicode.IsDigit(runes[i-1]):
			b.WriteByte(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
