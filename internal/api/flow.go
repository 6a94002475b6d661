package api

import (
	"encoding/json"
	"net/http"
	"strings"

	errx "github.com/flowsmith/server/internal/core/error"
	"github.com/flowsmith/server/internal/flow"
)

type validateRequest struct {
	Content string `json:"content"`
}

type validateResponse struct {
	Valid  bool          `json:"valid"`
	Errors []string      `json:"errors,omitempty"`
	Flow   flow.Document `json:"flow,omitempty"`
}

// publishRequest carries either agent text or an already decoded flow.
type publishRequest struct {
	Content string          `json:"content,omitempty"`
	Flow    json.RawMessage `json:"flow,omitempty"`
}

// Validate runs the flow pipeline over agent text. Extraction and syntax
// failures are errors; shape and graph problems are a 200 with valid=false.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}

	res, err := h.pipeline.Process(req.Content)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, validateResponse{Valid: res.Valid(), Errors: res.Errors(), Flow: res.Flow})
}

// Publish validates a flow and creates it on Typebot.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}

	var (
		res flow.Result
		err error
	)
	switch {
	case len(req.Flow) > 0 && string(req.Flow) != "null":
		var v any
		if v, err = flow.Decode(string(req.Flow)); err == nil {
			res = h.pipeline.Validate(v)
		}
	case strings.TrimSpace(req.Content) != "":
		res, err = h.pipeline.Process(req.Content)
	default:
		err = errx.InvalidRequest("either content or flow is required")
	}
	if err != nil {
		Error(w, r, err)
		return
	}
	if !res.Valid() {
		Error(w, r, res.Err())
		return
	}

	out, err := h.publisher.Publish(r.Context(), res.Flow)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, out)
}
