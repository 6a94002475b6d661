package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/flowsmith/server/internal/agent/conversations"
	"github.com/flowsmith/server/internal/agent/model"
	errx "github.com/flowsmith/server/internal/core/error"
	"github.com/flowsmith/server/internal/flow"
	logx "github.com/flowsmith/server/pkg/logger"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

type chatResponse struct {
	Reply          string        `json:"reply"`
	ConversationID string        `json:"conversationId,omitempty"`
	Flow           flow.Document `json:"flow,omitempty"`
	Errors         []string      `json:"errors,omitempty"`
}

// Chat relays one message to the agent. When conversationId is set the stored
// history is sent along and the new turn is recorded. A reply carrying a
// valid flow document has it attached; an invalid one has its errors attached.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, r, errx.InvalidRequest("message is required"))
		return
	}

	in := model.ChatInput{ConversationID: req.ConversationID, Message: req.Message}
	if req.ConversationID != "" {
		if err := conversations.ValidateID(req.ConversationID); err != nil {
			Error(w, r, err)
			return
		}
		history, err := h.store.History(r.Context(), req.ConversationID)
		if err != nil {
			Error(w, r, err)
			return
		}
		in.History = history
	}

	out, err := h.relay.Chat(r.Context(), in)
	if err != nil {
		Error(w, r, err)
		return
	}

	if req.ConversationID != "" {
		if err := h.store.SaveTurn(r.Context(), req.ConversationID, req.Message, out.Reply); err != nil {
			logx.Warn().Err(err).Str("conversation_id", req.ConversationID).Msg("failed to save conversation turn")
		}
	}

	resp := chatResponse{Reply: out.Reply, ConversationID: req.ConversationID}
	if res, err := h.pipeline.Process(out.Reply); err == nil {
		if res.Valid() {
			resp.Flow = res.Flow
		} else {
			resp.Errors = res.Errors()
		}
	}
	JSON(w, http.StatusOK, resp)
}

// ClearConversation deletes the stored history of a conversation.
func (h *Handler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationId")
	if err := conversations.ValidateID(id); err != nil {
		Error(w, r, err)
		return
	}
	if err := h.store.Clear(r.Context(), id); err != nil {
		Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
