// Package mathtex converts inline math markup embedded in free text into
// renderable HTML spans, and renders markdown critiques. Both are read-path
// transforms; stored values are never rewritten.
package mathtex

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// The four delimiter forms, matched in this order so $$…$$ is consumed
// before $…$ can see its dollar signs. Inline $…$ must not span lines.
var (
	displayDollar = regexp.MustCompile(`(?s)\$\$(.*?)\$\$`)
	inlineDollar  = regexp.MustCompile(`\$([^$\n]+?)\$`)
	inlineParen   = regexp.MustCompile(`\\\(([^)]+?)\\\)`)
	displayBrack  = regexp.MustCompile(`(?s)\\\[(.*?)\\\]`)
)

// Normalize rewrites math delimiters in text into span/div elements the
// dashboard's math renderer picks up. The math body is HTML-escaped and
// trimmed; text with no delimiters, or with unbalanced ones, passes through
// verbatim.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	out := displayDollar.ReplaceAllStringFunc(text, func(m string) string {
		return displaySpan(m[2 : len(m)-2])
	})
	out = inlineDollar.ReplaceAllStringFunc(out, func(m string) string {
		return inlineSpan(m[1 : len(m)-1])
	})
	out = inlineParen.ReplaceAllStringFunc(out, func(m string) string {
		return inlineSpan(m[2 : len(m)-2])
	})
	out = displayBrack.ReplaceAllStringFunc(out, func(m string) string {
		return displaySpan(m[2 : len(m)-2])
	})
	return out
}

func inlineSpan(math string) string {
	return `<span class="math-inline">` + html.EscapeString(strings.TrimSpace(math)) + `</span>`
}

func displaySpan(math string) string {
	return `<div class="math-display">` + html.EscapeString(strings.TrimSpace(math)) + `</div>`
}

// HasMath reports whether text contains any recognized math delimiter.
func HasMath(text string) bool {
	return displayDollar.MatchString(text) ||
		inlineDollar.MatchString(text) ||
		inlineParen.MatchString(text) ||
		displayBrack.MatchString(text)
}

var critiqueMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
)

// RenderMarkdown renders a critique to HTML. Math segments are normalized
// first so their bodies are not mangled by emphasis or other markdown rules;
// the resulting spans survive rendering because raw HTML is allowed.
func RenderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := critiqueMarkdown.Convert([]byte(Normalize(text)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
