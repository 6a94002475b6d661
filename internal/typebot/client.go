// Package typebot submits validated flow documents to the Typebot API.
package typebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	errx "github.com/flowsmith/server/internal/core/error"
	"github.com/flowsmith/server/internal/flow"
	logx "github.com/flowsmith/server/pkg/logger"
	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the hosted Typebot builder.
	DefaultBaseURL = "https://app.typebot.io"

	// DefaultTimeout bounds a single creation request.
	DefaultTimeout = 30 * time.Second

	createPath   = "/api/v1/typebots"
	maxRespBytes = 4 << 20
	serviceName  = "typebot API"
)

// Config holds the Typebot endpoint and credentials.
type Config struct {
	BaseURL     string        `envconfig:"TYPEBOT_BASE_URL" default:"https://app.typebot.io"`
	APIToken    string        `envconfig:"TYPEBOT_API_TOKEN"`
	WorkspaceID string        `envconfig:"TYPEBOT_WORKSPACE_ID"`
	Timeout     time.Duration `envconfig:"TYPEBOT_TIMEOUT" default:"30s"`
}

// PublishResult identifies a created bot.
type PublishResult struct {
	ID        string `json:"id"`
	EditorURL string `json:"editorUrl"`
}

// Client is an HTTP client for the Typebot creation endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures the Typebot client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout. The client is copied first so a
// shared client passed to WithHTTPClient is left untouched.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			hc := *c.httpClient
			hc.Timeout = timeout
			c.httpClient = &hc
		}
	}
}

// NewClient creates a client for cfg. Zero values fall back to defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    base,
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalised API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Configured reports whether an API token is available.
func (c *Client) Configured() bool {
	return c.token != ""
}

// EditorURL returns the builder URL of the bot with the given id.
func (c *Client) EditorURL(id string) string {
	return c.baseURL + "/typebots/" + id + "/edit"
}

// Publish creates a bot from doc with a single POST. The workspaceId and
// typebot fields are sent exactly as validated.
func (c *Client) Publish(ctx context.Context, doc flow.Document) (*PublishResult, error) {
	if !c.Configured() {
		return nil, errx.New(errx.KindInternal, nil, http.StatusServiceUnavailable, "typebot publishing is not configured")
	}

	payload, err := json.Marshal(map[string]any{
		"workspaceId": doc["workspaceId"],
		"typebot":     doc["typebot"],
	})
	if err != nil {
		return nil, errx.Internal(fmt.Errorf("encode typebot payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createPath, bytes.NewReader(payload))
	if err != nil {
		return nil, errx.Internal(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logx.Warn().Str("component", "typebot").Err(err).Msg("typebot request failed")
		return nil, errx.Network(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return nil, errx.Network(serviceName, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appErr := errx.FromResponse(resp.StatusCode, body)
		logx.Warn().
			Str("component", "typebot").
			Int("status", resp.StatusCode).
			Str("message", appErr.Message).
			Msg("typebot rejected flow")
		return nil, appErr
	}

	id := identifier(body)
	if id == "" {
		return nil, errx.MissingIdentifier(string(body))
	}

	logx.Info().
		Str("component", "typebot").
		Str("typebot_id", id).
		Str("workspace_id", doc.WorkspaceID()).
		Dur("took", time.Since(start)).
		Msg("typebot created")

	return &PublishResult{ID: id, EditorURL: c.EditorURL(id)}, nil
}

// identifier reads typebot.id, falling back to a top-level id.
func identifier(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"typebot.id", "id"} {
		r := gjson.GetBytes(body, path)
		if r.Type == gjson.String || r.Type == gjson.Number {
			if s := strings.TrimSpace(r.String()); s != "" {
				return s
			}
		}
	}
	return ""
}
