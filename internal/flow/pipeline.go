package flow

import (
	"fmt"

	errx "github.com/flowsmith/server/internal/core/error"
	logx "github.com/flowsmith/server/pkg/logger"
)

// DefaultMaxContentLen bounds the text accepted by Process.
const DefaultMaxContentLen = 1 << 20 // 1MB

// Pipeline runs extraction, decoding, shape and graph checks in order.
// A Pipeline holds only configuration and is safe for concurrent use.
type Pipeline struct {
	graphChecks   bool
	maxContentLen int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGraphChecks toggles the identifier-wiring pass. When disabled only the
// top-level shape is checked and wiring is left to the Typebot API.
func WithGraphChecks(enabled bool) Option {
	return func(p *Pipeline) {
		p.graphChecks = enabled
	}
}

// WithMaxContentLen sets the largest text Process accepts. Values <= 0 are ignored.
func WithMaxContentLen(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxContentLen = n
		}
	}
}

// NewPipeline returns a pipeline with graph checks enabled.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{graphChecks: true, maxContentLen: DefaultMaxContentLen}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process extracts and validates a flow document from agent text.
// Extraction and syntax failures are returned as errors; shape and graph
// problems are returned in an invalid Result.
func (p *Pipeline) Process(text string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "flow_pipeline").Msgf("panic recovered: %v", r)
			res, err = Result{}, errx.Internal(fmt.Errorf("flow pipeline panic"))
		}
	}()

	if len(text) > p.maxContentLen {
		return Result{}, errx.InvalidRequest(fmt.Sprintf("content exceeds %d bytes", p.maxContentLen))
	}

	raw, err := Extract(text)
	if err != nil {
		logx.Debug().Str("component", "flow_pipeline").Int("content_len", len(text)).Msg("no JSON object in content")
		return Result{}, err
	}
	v, err := Decode(raw)
	if err != nil {
		logx.Debug().Str("component", "flow_pipeline").Err(err).Msg("extracted content is not valid JSON")
		return Result{}, err
	}
	return p.Validate(v), nil
}

// Validate checks an already decoded value.
func (p *Pipeline) Validate(v any) Result {
	if vs := CheckShape(v); len(vs) > 0 {
		logx.Debug().Str("component", "flow_pipeline").Int("violations", len(vs)).Msg("shape check failed")
		return invalid(vs)
	}

	doc := Document(v.(map[string]any))
	if p.graphChecks {
		if vs := CheckGraph(doc.Typebot()); len(vs) > 0 {
			logx.Debug().Str("component", "flow_pipeline").Int("violations", len(vs)).Msg("graph check failed")
			return invalid(vs)
		}
	}
	return valid(doc)
}

// Validate runs the default pipeline over a decoded value.
func Validate(v any) Result {
	return NewPipeline().Validate(v)
}
