package typebot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errx "github.com/flowsmith/server/internal/core/error"
	"github.com/flowsmith/server/internal/flow"
)

func minimalDoc() flow.Document {
	return flow.Document{
		"workspaceId": "w1",
		"typebot": map[string]any{
			"name":   "Bot",
			"groups": []any{},
			"edges":  []any{},
			"score":  json.Number("1.50"),
		},
	}
}

// rewrite sends every request to target while keeping the original URL in
// the Host header, so the client can be configured with a public base URL.
type rewrite struct {
	target string
}

func (r rewrite) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = "http"
	clone.URL.Host = strings.TrimPrefix(r.target, "http://")
	return http.DefaultTransport.RoundTrip(clone)
}

func TestClient_PublishSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"typebot":{"id":"abc123","name":"Bot"}}`))
	}))
	defer server.Close()

	client := NewClient(
		Config{BaseURL: "https://example.com", APIToken: "secret-token"},
		WithHTTPClient(&http.Client{Transport: rewrite{target: server.URL}}),
	)

	res, err := client.Publish(context.Background(), minimalDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ID != "abc123" {
		t.Errorf("expected id abc123, got %s", res.ID)
	}
	if res.EditorURL != "https://example.com/typebots/abc123/edit" {
		t.Errorf("unexpected editor URL %s", res.EditorURL)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("expected bearer token header, got %q", gotAuth)
	}
	if gotPath != "/api/v1/typebots" {
		t.Errorf("expected /api/v1/typebots, got %s", gotPath)
	}
	if gotBody["workspaceId"] != "w1" {
		t.Errorf("expected workspaceId w1, got %v", gotBody["workspaceId"])
	}
	tb, _ := gotBody["typebot"].(map[string]any)
	if tb["name"] != "Bot" || tb["score"] != 1.5 {
		t.Errorf("typebot not forwarded verbatim: %v", tb)
	}
}

func TestClient_PublishTopLevelID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"top-1"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/", APIToken: "t"})
	res, err := client.Publish(context.Background(), minimalDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ID != "top-1" {
		t.Errorf("expected id top-1, got %s", res.ID)
	}
	if res.EditorURL != server.URL+"/typebots/top-1/edit" {
		t.Errorf("unexpected editor URL %s", res.EditorURL)
	}
}

func TestClient_PublishErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		kind       errx.Kind
		wantMsg    string
		wantStatus int
	}{
		{
			name:       "unauthorized message",
			status:     http.StatusUnauthorized,
			body:       `{"message":"unauthorized"}`,
			kind:       errx.KindUpstreamHTTP,
			wantMsg:    "unauthorized",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "error field",
			status:     http.StatusBadRequest,
			body:       `{"error":"workspace not found"}`,
			kind:       errx.KindUpstreamHTTP,
			wantMsg:    "workspace not found",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "json without message is compacted",
			status:     http.StatusBadRequest,
			body:       "{\n  \"issues\": [1, 2]\n}",
			kind:       errx.KindUpstreamHTTP,
			wantMsg:    `{"issues":[1,2]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "plain text body",
			status:     http.StatusInternalServerError,
			body:       "upstream exploded\n",
			kind:       errx.KindUpstreamHTTP,
			wantMsg:    "upstream exploded",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "empty body",
			status:     http.StatusForbidden,
			body:       "",
			kind:       errx.KindUpstreamHTTP,
			wantMsg:    "Forbidden",
			wantStatus: http.StatusForbidden,
		},
		{
			name:    "success without id",
			status:  http.StatusOK,
			body:    `{"typebot":{"name":"Bot"}}`,
			kind:    errx.KindMissingIdentifier,
			wantMsg: errx.MissingIdentifierMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL, APIToken: "super-secret"})
			_, err := client.Publish(context.Background(), minimalDoc())

			var appErr *errx.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, appErr.Kind)
			}
			if appErr.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, appErr.Message)
			}
			if appErr.UpstreamStatus != tt.wantStatus {
				t.Errorf("expected upstream status %d, got %d", tt.wantStatus, appErr.UpstreamStatus)
			}
			if strings.Contains(err.Error(), "super-secret") {
				t.Error("error message leaks the API token")
			}
		})
	}
}

func TestClient_PublishNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url, APIToken: "super-secret"})
	_, err := client.Publish(context.Background(), minimalDoc())
	if !errors.Is(err, errx.ErrNetwork) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Error("error message leaks the API token")
	}
}

func TestClient_PublishNotConfigured(t *testing.T) {
	client := NewClient(Config{})
	if client.BaseURL() != DefaultBaseURL {
		t.Errorf("expected default base URL, got %s", client.BaseURL())
	}
	if _, err := client.Publish(context.Background(), minimalDoc()); errx.StatusOf(err) != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for missing token, got %v", err)
	}
}

func TestClient_WithTimeoutCopiesSharedClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}
	c := NewClient(Config{APIToken: "tok"}, WithHTTPClient(shared), WithTimeout(5*time.Second))

	if shared.Timeout != time.Minute {
		t.Errorf("shared client timeout changed to %v", shared.Timeout)
	}
	if c.httpClient == shared || c.httpClient.Timeout != 5*time.Second {
		t.Errorf("expected a private client with 5s timeout, got %v", c.httpClient.Timeout)
	}
}
