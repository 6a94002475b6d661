package flow

import (
	"fmt"

	errx "github.com/flowsmith/server/internal/core/error"
)

// Violation kinds.
const (
	KindMissing   = "missing"
	KindType      = "type"
	KindDuplicate = "duplicate_id"
	KindDangling  = "dangling_reference"
)

// Violation describes one problem with a flow document.
type Violation struct {
	Field string // dotted path, e.g. "typebot.groups[0].blocks[1].outgoingEdgeId"
	Kind  string
	Msg   string
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Msg
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Msg)
}

// Document is a decoded flow document. It is the exact object the agent
// produced and is forwarded downstream without re-shaping.
type Document map[string]any

// WorkspaceID returns the target workspace, or "" when absent.
func (d Document) WorkspaceID() string {
	s, _ := d["workspaceId"].(string)
	return s
}

// Typebot returns the bot definition object.
func (d Document) Typebot() map[string]any {
	tb, _ := d["typebot"].(map[string]any)
	return tb
}

// Name returns typebot.name.
func (d Document) Name() string {
	s, _ := d.Typebot()["name"].(string)
	return s
}

// Result is the outcome of validating a candidate document. Exactly one of
// Flow and Violations is populated.
type Result struct {
	Flow       Document
	Violations []Violation
}

// Valid reports whether the document passed every check.
func (r Result) Valid() bool {
	return len(r.Violations) == 0 && r.Flow != nil
}

// Errors returns the human-readable violation messages in order.
func (r Result) Errors() []string {
	if len(r.Violations) == 0 {
		return nil
	}
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.String()
	}
	return out
}

// Err returns a SchemaViolation error for invalid results and nil otherwise.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return errx.SchemaViolation(r.Errors())
}

func valid(doc Document) Result {
	return Result{Flow: doc}
}

func invalid(vs []Violation) Result {
	return Result{Violations: vs}
}
