// Package relay forwards chat turns to the upstream agent.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/flowsmith/server/internal/agent/llm"
	"github.com/flowsmith/server/internal/agent/model"
	"github.com/flowsmith/server/internal/agent/observers"
	"github.com/flowsmith/server/internal/agent/prompts"
	errx "github.com/flowsmith/server/internal/core/error"
	logx "github.com/flowsmith/server/pkg/logger"
)

const (
	NodeFlowPrompt = "FlowPrompt"
	NodeAgentModel = "AgentModel"
)

// Relay is the chat entry point used by the HTTP host.
type Relay interface {
	Chat(ctx context.Context, in model.ChatInput) (*model.ChatOutput, error)
}

// Config holds everything needed to compose the relay chain.
type Config struct {
	ChatModel   einomodel.BaseChatModel
	ModelName   string
	WorkspaceID string
}

type chainRelay struct {
	runnable    compose.Runnable[map[string]any, *schema.Message]
	modelName   string
	workspaceID string
}

// New compiles prompt template -> chat model into one runnable. Each Chat
// call is a single model request; the relay keeps no state between calls.
func New(ctx context.Context, cfg Config) (Relay, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.
		AppendChatTemplate(prompts.NewChatTemplate(), compose.WithNodeName(NodeFlowPrompt)).
		AppendChatModel(cfg.ChatModel, compose.WithNodeName(NodeAgentModel))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to compile relay chain")
		return nil, fmt.Errorf("failed to compile relay chain: %w", err)
	}

	logx.Debug().Str("model", cfg.ModelName).Msg("Relay chain built successfully")
	return &chainRelay{
		runnable:    runnable,
		modelName:   cfg.ModelName,
		workspaceID: cfg.WorkspaceID,
	}, nil
}

// Chat sends the system prompt, the caller's history and the message, and
// returns the first reply. Failures are returned as errx errors.
func (r *chainRelay) Chat(ctx context.Context, in model.ChatInput) (*model.ChatOutput, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, errx.InvalidRequest("message must not be empty")
	}

	start := time.Now()
	out, err := r.runnable.Invoke(ctx,
		prompts.Variables(r.workspaceID, in.Message, in.History),
		compose.WithCallbacks(observers.NewAllCallbacks()),
	)
	if err != nil {
		mapped := mapError(err)
		logx.Warn().
			Err(err).
			Str("conversation_id", in.ConversationID).
			Str("kind", string(errx.KindOf(mapped))).
			Msg("agent call failed")
		return nil, mapped
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return nil, errx.Upstream(http.StatusOK, llm.NoReplyMessage, "")
	}

	res := &model.ChatOutput{Reply: out.Content}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		usage := out.ResponseMeta.Usage
		inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(r.modelName))
		res.Usage = usage
		res.CostUSD = totalC
		logx.Debug().
			Str("conversation_id", in.ConversationID).
			Str("node", NodeAgentModel).
			Str("model", r.modelName).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Int("total_tokens", usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")
	}

	logx.Info().
		Str("conversation_id", in.ConversationID).
		Int("history", len(in.History)).
		Int("reply_len", len(res.Reply)).
		Dur("took", time.Since(start)).
		Msg("agent replied")
	return res, nil
}

// mapError normalises chain failures. errx errors from the completions
// backend pass through, Gemini API errors become UpstreamHTTPError and
// transport failures become NetworkError.
func mapError(err error) error {
	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return errx.Upstream(apiErr.Code, apiErr.Message, "")
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return errx.Upstream(apiErrPtr.Code, apiErrPtr.Message, "")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errx.Network("agent API", err)
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return errx.Network("agent API", err)
	}
	return errx.Internal(err)
}
