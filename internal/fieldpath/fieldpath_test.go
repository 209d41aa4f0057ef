package fieldpath

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func mustParse(t *testing.T, raw string) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return v
}

func TestGet_NestedValues(t *testing.T) {
	root := mustParse(t, `{
		"question": "2+2?",
		"options": ["3", "4", "5"],
		"meta": {"difficulty": "easy", "tags": ["arith", "intro"]}
	}`)

	tests := []struct {
		path Path
		want any
	}{
		{Path{"question"}, "2+2?"},
		{Path{"options", "1"}, "4"},
		{Path{"meta", "difficulty"}, "easy"},
		{Path{"meta", "tags", "0"}, "arith"},
	}
	for _, tt := range tests {
		got, err := Get(root, tt.path)
		if err != nil {
			t.Fatalf("Get(%s): %v", tt.path, err)
		}
		if got != tt.want {
			t.Fatalf("Get(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestGet_EmptyPathReturnsRoot(t *testing.T) {
	root := mustParse(t, `{"a": 1}`)
	got, err := Get(root, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got, root) {
		t.Fatalf("Get(nil) = %v, want root", got)
	}
}

func TestGet_UnresolvablePath(t *testing.T) {
	root := mustParse(t, `{"a": {"b": "c"}, "list": ["x"]}`)

	for _, path := range []Path{
		{"missing"},
		{"a", "nope"},
		{"a", "b", "deeper"},
		{"list", "5"},
		{"list", "-1"},
		{"list", "notanumber"},
	} {
		if _, err := Get(root, path); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(%s) err = %v, want ErrNotFound", path, err)
		}
	}
}

func TestSet_RoundTrip(t *testing.T) {
	root := mustParse(t, `{
		"easy": {"question": "1+1?", "answer": "2"},
		"medium": {"question": "3+3?", "answer": "6"},
		"tags": ["a", "b"]
	}`)

	paths := []Path{
		{"easy", "answer"},
		{"medium", "question"},
		{"tags", "1"},
	}
	for _, p := range paths {
		next, err := Set(root, p, "replaced")
		if err != nil {
			t.Fatalf("Set(%s): %v", p, err)
		}
		got, err := Get(next, p)
		if err != nil {
			t.Fatalf("Get after Set(%s): %v", p, err)
		}
		if got != "replaced" {
			t.Fatalf("round trip at %s = %v, want %q", p, got, "replaced")
		}
	}
}

func TestSet_DoesNotMutateOriginalOrSiblings(t *testing.T) {
	raw := `{"easy": {"question": "1+1?", "answer": "2"}, "hard": {"question": "9*9?", "answer": "81"}}`
	root := mustParse(t, raw)

	next, err := Set(root, Path{"easy", "answer"}, "five")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Original untouched.
	want := mustParse(t, raw)
	if !reflect.DeepEqual(root, want) {
		t.Fatalf("original mutated: %v", root)
	}

	// Sibling subtree in the new root unchanged.
	sib, err := Get(next, Path{"hard", "answer"})
	if err != nil {
		t.Fatalf("Get sibling: %v", err)
	}
	if sib != "81" {
		t.Fatalf("sibling = %v, want 81", sib)
	}
}

func TestSet_EmptyPathReplacesRoot(t *testing.T) {
	root := mustParse(t, `{"a": 1}`)
	next, err := Set(root, nil, map[string]any{"b": "2"})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	m, ok := next.(map[string]any)
	if !ok || m["b"] != "2" {
		t.Fatalf("next = %v, want replacement root", next)
	}
}

func TestSet_WholeListReplacement(t *testing.T) {
	root := mustParse(t, `{"answerOptions": ["a", "b", "c"]}`)

	next, err := Set(root, Path{"answerOptions"}, []any{"a", "c"})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _ := Get(next, Path{"answerOptions"})
	if !reflect.DeepEqual(got, []any{"a", "c"}) {
		t.Fatalf("list = %v, want [a c]", got)
	}
}

func TestSet_FailsFastOnBadIntermediateSegment(t *testing.T) {
	root := mustParse(t, `{"a": {"b": "c"}, "list": ["x"]}`)

	for _, path := range []Path{
		{"missing", "b"},
		{"a", "b", "c"},
		{"list", "3"},
	} {
		if _, err := Set(root, path, "x"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Set(%s) err = %v, want ErrNotFound", path, err)
		}
	}
}

// A final map segment may be created: list fields are editable even when the
// source payload omits the key entirely.
func TestSet_FinalSegmentMayCreateMapKey(t *testing.T) {
	root := mustParse(t, `{"a": {"b": "c"}}`)

	next, err := Set(root, Path{"a", "teacherTips"}, []any{"tip"})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := Get(next, Path{"a", "teacherTips", "0"})
	if err != nil || got != "tip" {
		t.Fatalf("Get created key = %v, %v", got, err)
	}
	if _, err := Get(root, Path{"a", "teacherTips"}); !errors.Is(err, ErrNotFound) {
		t.Fatal("original grew a key")
	}
}

func TestClone_Independence(t *testing.T) {
	root := mustParse(t, `{"a": {"b": ["x"]}}`)
	cp := Clone(root).(map[string]any)
	cp["a"].(map[string]any)["b"].([]any)[0] = "mutated"

	orig, _ := Get(root, Path{"a", "b", "0"})
	if orig != "x" {
		t.Fatalf("clone shares state with original: %v", orig)
	}
}
