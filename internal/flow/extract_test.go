package flow

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	errx "github.com/flowsmith/server/internal/core/error"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "fenced json block",
			text: "Here is your flow:\n```json\n  {\"workspaceId\":\"w1\"}  \n```\nLet me know!",
			want: `{"workspaceId":"w1"}`,
		},
		{
			name: "fenced block without tag",
			text: "```\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "fence tag is case insensitive",
			text: "```JSON\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "fence tagged with another language",
			text: "```javascript\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "json tag preferred over other fences",
			text: "```text\nnot it\n```\n```json\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "backticks inside a fenced string value",
			text: "```json\n{\"name\":\"x```y\",\"n\":1}\n```\ndone",
			want: "{\"name\":\"x```y\",\"n\":1}",
		},
		{
			name: "first fence wins",
			text: "```json\n{\"first\":true}\n```\nand\n```json\n{\"second\":true}\n```",
			want: `{"first":true}`,
		},
		{
			name: "empty fence falls through",
			text: "```\n```\nthen {\"a\":1}",
			want: `{"a":1}`,
		},
		{
			name: "raw json unchanged",
			text: `{"workspaceId":"w1","typebot":{"name":"Bot","groups":[],"edges":[]}}`,
			want: `{"workspaceId":"w1","typebot":{"name":"Bot","groups":[],"edges":[]}}`,
		},
		{
			name: "object in prose",
			text: `Sure, here it is: {"a":{"b":[1,2]}} hope that helps`,
			want: `{"a":{"b":[1,2]}}`,
		},
		{
			name: "brace inside string does not end object",
			text: `Result {"text":"use } carefully"} and a stray } later`,
			want: `{"text":"use } carefully"}`,
		},
		{
			name: "escaped quote inside string",
			text: `x {"q":"say \"}\" now"} y`,
			want: `{"q":"say \"}\" now"}`,
		},
		{
			name: "placeholder in prose is skipped for decodable object",
			text: `Use {name} as variable. {"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "nested object is not returned on its own",
			text: `{"outer": {"inner": 1}, bad}`,
			want: `{"outer": {"inner": 1}, bad}`,
		},
		{
			name: "mismatched brackets fall back to naive span",
			text: `see {"a": [1, 2} } end`,
			want: `{"a": [1, 2} }`,
		},
		{
			name: "mismatch abandons object and scanning resumes",
			text: `{ x ] then {"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "unterminated object falls back to naive span",
			text: `prefix { "a": {"b":1}`,
			want: `{ "a": {"b":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExtractLinearOnHostileInput(t *testing.T) {
	n := DefaultMaxContentLen - 1
	inputs := map[string]string{
		"open braces then mismatch": strings.Repeat("{", n) + "]",
		"alternating mismatches":    strings.Repeat("{[}", n/3),
		"undecodable candidates":    strings.Repeat("{a}", n/3),
		"unclosed fences":           strings.Repeat("```\n{", n/5),
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			_, _ = Extract(in)
			if took := time.Since(start); took > 2*time.Second {
				t.Errorf("extract took %v on %d bytes", took, len(in))
			}
		})
	}
}

func TestExtractIdempotent(t *testing.T) {
	inputs := []string{
		`{"workspaceId":"w1","typebot":{"name":"Bot","groups":[],"edges":[]}}`,
		"```json\n{\"a\":\"b\"}\n```",
		`text {"a":"}"} text`,
	}
	for _, in := range inputs {
		once, err := Extract(in)
		if err != nil {
			t.Fatalf("extract %q: %v", in, err)
		}
		twice, err := Extract(once)
		if err != nil {
			t.Fatalf("re-extract %q: %v", once, err)
		}
		if once != twice {
			t.Errorf("extract not idempotent: %q then %q", once, twice)
		}
	}
}

func TestExtractNoJSON(t *testing.T) {
	for _, in := range []string{"", "   ", "hello world", "only a closing } brace", `{"never closed"`} {
		_, err := Extract(in)
		if !errors.Is(err, errx.ErrNoJSONFound) {
			t.Errorf("Extract(%q): expected NoJSONFound, got %v", in, err)
		}
	}
}

func TestDecode(t *testing.T) {
	v, err := Decode(`{"n": 1.50, "s": "x"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := v.(map[string]any)
	if n, ok := m["n"].(json.Number); !ok || n.String() != "1.50" {
		t.Errorf("expected json.Number 1.50, got %#v", m["n"])
	}
}

func TestDecodeSyntaxError(t *testing.T) {
	tests := []string{
		`{"a": }`,
		`{"a": 1,}`,
		`{"a": 1} {"b": 2}`,
	}
	for _, in := range tests {
		_, err := Decode(in)
		if !errors.Is(err, errx.ErrJSONSyntax) {
			t.Errorf("Decode(%q): expected JSONSyntaxError, got %v", in, err)
			continue
		}
		var appErr *errx.AppError
		if !errors.As(err, &appErr) || appErr.Message == "invalid JSON" {
			t.Errorf("Decode(%q): expected parser message, got %v", in, err)
		}
	}
}
