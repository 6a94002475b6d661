package flow

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	errx "github.com/flowsmith/server/internal/core/error"
)

func TestPipelineProcessAgentReply(t *testing.T) {
	reply := "Great idea! Here's the flow:\n\n```json\n" + wiredFlow + "\n```\n\nImport it and you're done."

	res, err := NewPipeline().Process(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Valid() {
		t.Fatalf("expected valid result, got %v", res.Errors())
	}
	if res.Flow.Name() != "Lead capture" {
		t.Errorf("expected name Lead capture, got %q", res.Flow.Name())
	}
}

func TestPipelineProcessMinimalLiteral(t *testing.T) {
	const minimal = `{"workspaceId":"w1","typebot":{"name":"Bot","groups":[],"edges":[]}}`
	res, err := NewPipeline().Process(minimal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{
		"workspaceId": "w1",
		"typebot": map[string]any{
			"name":   "Bot",
			"groups": []any{},
			"edges":  []any{},
		},
	}
	if !reflect.DeepEqual(map[string]any(res.Flow), want) {
		t.Errorf("expected %#v, got %#v", want, res.Flow)
	}
}

func TestPipelineProcessErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind errx.Kind
	}{
		{name: "no json", text: "I could not build that flow, sorry.", kind: errx.KindNoJSONFound},
		{name: "bad json in fence", text: "```json\n{\"workspaceId\": }\n```", kind: errx.KindJSONSyntax},
		{name: "trailing comma", text: `{"a":1,}`, kind: errx.KindJSONSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline().Process(tt.text)
			if got := errx.KindOf(err); got != tt.kind {
				t.Errorf("expected kind %s, got %s (%v)", tt.kind, got, err)
			}
		})
	}
}

func TestPipelineProcessInvalidShape(t *testing.T) {
	res, err := NewPipeline().Process("```json\n{\"typebot\":{}}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Valid() {
		t.Fatal("expected invalid result")
	}
	if len(res.Errors()) < 4 {
		t.Errorf("expected at least 4 errors, got %v", res.Errors())
	}
	if !errors.Is(res.Err(), errx.ErrSchemaViolation) {
		t.Errorf("expected SchemaViolation, got %v", res.Err())
	}
}

func TestPipelineGraphChecksToggle(t *testing.T) {
	dangling := strings.Replace(wiredFlow, `"to": {"groupId": "g1"}}`, `"to": {"groupId": "missing"}}`, 1)

	res, err := NewPipeline().Process(dangling)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Valid() {
		t.Fatal("expected graph violation with checks enabled")
	}
	if got := res.Errors(); len(got) != 1 || !strings.Contains(got[0], `unknown group "missing"`) {
		t.Errorf("unexpected errors: %v", got)
	}

	res, err = NewPipeline(WithGraphChecks(false)).Process(dangling)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Valid() {
		t.Errorf("expected valid with graph checks disabled, got %v", res.Errors())
	}
}

func TestPipelineMaxContentLen(t *testing.T) {
	p := NewPipeline(WithMaxContentLen(16))
	_, err := p.Process(`{"workspaceId":"w1","typebot":{}}`)
	if got := errx.KindOf(err); got != errx.KindInvalidRequest {
		t.Errorf("expected InvalidRequest, got %s (%v)", got, err)
	}
}
