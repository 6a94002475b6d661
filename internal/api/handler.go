// Package api exposes chat, validation and publishing over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloudwego/eino/schema"

	"github.com/flowsmith/server/internal/agent/model"
	errx "github.com/flowsmith/server/internal/core/error"
	"github.com/flowsmith/server/internal/flow"
	"github.com/flowsmith/server/internal/typebot"
	logx "github.com/flowsmith/server/pkg/logger"
)

// Relay sends one chat turn to the agent.
type Relay interface {
	Chat(ctx context.Context, in model.ChatInput) (*model.ChatOutput, error)
}

// Publisher creates a bot from a validated flow.
type Publisher interface {
	Publish(ctx context.Context, doc flow.Document) (*typebot.PublishResult, error)
}

// ConversationStore keeps host-owned chat history.
type ConversationStore interface {
	History(ctx context.Context, conversationID string) ([]*schema.Message, error)
	SaveTurn(ctx context.Context, conversationID, userMessage, reply string) error
	Clear(ctx context.Context, conversationID string) error
}

// Pinger reports whether a backing service is reachable.
type Pinger func(ctx context.Context) error

// PublicConfig is the non-secret configuration served at /api/config.
type PublicConfig struct {
	Environment    string `json:"environment"`
	Provider       string `json:"provider"`
	Model          string `json:"model,omitempty"`
	WorkspaceID    string `json:"workspaceId,omitempty"`
	TypebotBaseURL string `json:"typebotBaseUrl"`
	PublishEnabled bool   `json:"publishEnabled"`
	GraphChecks    bool   `json:"graphChecks"`
	HistoryBackend string `json:"historyBackend"`
}

// Handler provides common handler utilities.
type Handler struct {
	relay     Relay
	publisher Publisher
	pipeline  *flow.Pipeline
	store     ConversationStore
	config    PublicConfig
	redisPing Pinger
}

// NewHandler creates a new Handler. A nil pipeline uses the defaults;
// a nil redisPing reports Redis as disabled.
func NewHandler(relay Relay, publisher Publisher, pipeline *flow.Pipeline, store ConversationStore, cfg PublicConfig, redisPing Pinger) *Handler {
	if pipeline == nil {
		pipeline = flow.NewPipeline()
	}
	return &Handler{
		relay:     relay,
		publisher: publisher,
		pipeline:  pipeline,
		store:     store,
		config:    cfg,
		redisPing: redisPing,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Status  int      `json:"status,omitempty"`
	Details []string `json:"details,omitempty"`
}

// Error writes err as a structured JSON error. Unknown errors are reported
// as internal without exposing their text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errx.From(err)
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	ev := logx.Warn()
	if status >= http.StatusInternalServerError && appErr.Kind == errx.KindInternal {
		ev = logx.Error()
	}
	ev.Err(err).
		Str("kind", string(appErr.Kind)).
		Int("status", status).
		Str("path", r.URL.Path).
		Msg("request failed")

	JSON(w, status, ErrorBody{Error: ErrorDetail{
		Kind:    string(appErr.Kind),
		Message: appErr.Message,
		Status:  appErr.UpstreamStatus,
		Details: appErr.Details,
	}})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errx.New(errx.KindInvalidRequest, err, http.StatusRequestEntityTooLarge, "request body too large")
		}
		return errx.New(errx.KindInvalidRequest, err, http.StatusBadRequest, "request body must be a JSON object")
	}
	return nil
}
