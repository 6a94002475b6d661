package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tidwall/gjson"

	errx "github.com/flowsmith/server/internal/core/error"
)

const (
	completionsPath = "/api/v1/chat/completions"
	maxRespBytes    = 8 << 20
	agentService    = "agent API"

	// NoReplyMessage is reported when the agent answers without content.
	NoReplyMessage = "agent returned no reply"
)

// CompletionsConfig configures an OpenAI-style chat completions agent.
type CompletionsConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	KnowledgeBaseID string
	Temperature     *float32
	MaxTokens       *int
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// CompletionsModel calls POST {BaseURL}/api/v1/chat/completions and returns
// the first choice. It implements model.BaseChatModel.
type CompletionsModel struct {
	endpoint   string
	apiKey     string
	model      string
	kbID       string
	temp       *float32
	maxTokens  *int
	httpClient *http.Client
}

// NewCompletionsModel validates cfg and builds the model.
func NewCompletionsModel(cfg CompletionsConfig) (*CompletionsModel, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("agent base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("agent API key is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &CompletionsModel{
		endpoint:   base + completionsPath,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		kbID:       cfg.KnowledgeBaseID,
		temp:       cfg.Temperature,
		maxTokens:  cfg.MaxTokens,
		httpClient: hc,
	}, nil
}

type completionsMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionsRequest struct {
	Model            string               `json:"model,omitempty"`
	Messages         []completionsMessage `json:"messages"`
	Temperature      *float32             `json:"temperature,omitempty"`
	MaxTokens        *int                 `json:"max_tokens,omitempty"`
	Stream           bool                 `json:"stream"`
	KnowledgeBaseIDs []string             `json:"knowledge_base_ids,omitempty"`
}

// Generate sends the conversation and returns the first choice's message.
func (m *CompletionsModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	o := einomodel.GetCommonOptions(&einomodel.Options{
		Temperature: m.temp,
		MaxTokens:   m.maxTokens,
		Model:       &m.model,
	}, opts...)

	req := completionsRequest{
		Messages:    make([]completionsMessage, 0, len(input)),
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}
	if o.Model != nil {
		req.Model = *o.Model
	}
	if m.kbID != "" {
		req.KnowledgeBaseIDs = []string{m.kbID}
	}
	for _, msg := range input {
		if msg == nil {
			continue
		}
		req.Messages = append(req.Messages, completionsMessage{Role: string(msg.Role), Content: msg.Content})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errx.Internal(fmt.Errorf("encode completions request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errx.Internal(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, errx.Network(agentService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return nil, errx.Network(agentService, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errx.FromResponse(resp.StatusCode, body)
	}

	return parseCompletion(resp.StatusCode, body)
}

// Stream is not used by the relay; it yields the Generate result as a
// single chunk so the model can still sit in stream-capable chains.
func (m *CompletionsModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

// GetType names the component in callback run info.
func (m *CompletionsModel) GetType() string {
	return "Completions"
}

func parseCompletion(status int, body []byte) (*schema.Message, error) {
	if !gjson.ValidBytes(body) {
		return nil, errx.Upstream(status, "agent returned a non-JSON response", string(body))
	}
	res := gjson.ParseBytes(body)

	content := res.Get("choices.0.message.content")
	if !content.Exists() || strings.TrimSpace(content.String()) == "" {
		return nil, errx.Upstream(status, NoReplyMessage, string(body))
	}

	out := schema.AssistantMessage(content.String(), nil)
	meta := &schema.ResponseMeta{
		FinishReason: res.Get("choices.0.finish_reason").String(),
	}
	if usage := res.Get("usage"); usage.Exists() {
		meta.Usage = &schema.TokenUsage{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
		}
	}
	out.ResponseMeta = meta
	return out, nil
}

var _ einomodel.BaseChatModel = (*CompletionsModel)(nil)
