package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"net/http/httptest"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/flowsmith/server/internal/agent/llm"
	"github.com/flowsmith/server/internal/agent/model"
	errx "github.com/flowsmith/server/internal/core/error"
)

// fakeModel records the messages it receives and returns a canned reply.
type fakeModel struct {
	reply *schema.Message
	err   error
	got   []*schema.Message
	calls int
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func newRelay(t *testing.T, cm einomodel.BaseChatModel) Relay {
	t.Helper()
	r, err := New(context.Background(), Config{ChatModel: cm, ModelName: "gemini-2.5-flash", WorkspaceID: "ws-7"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRelayChat(t *testing.T) {
	reply := schema.AssistantMessage("Here is your flow", nil)
	reply.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1000, CompletionTokens: 1000, TotalTokens: 2000}}
	fm := &fakeModel{reply: reply}

	r := newRelay(t, fm)
	history := []*schema.Message{
		schema.UserMessage("I need a survey bot"),
		schema.AssistantMessage("How many questions?", nil),
	}
	out, err := r.Chat(context.Background(), model.ChatInput{ConversationID: "c1", Message: "Three questions", History: history})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Reply != "Here is your flow" {
		t.Errorf("unexpected reply %q", out.Reply)
	}
	if out.Usage == nil || out.Usage.TotalTokens != 2000 {
		t.Errorf("expected usage, got %+v", out.Usage)
	}
	if out.CostUSD <= 0 {
		t.Errorf("expected positive cost for a priced model, got %v", out.CostUSD)
	}

	if fm.calls != 1 {
		t.Errorf("expected exactly one model call, got %d", fm.calls)
	}
	if len(fm.got) != 4 {
		t.Fatalf("expected system + 2 history + user, got %d messages", len(fm.got))
	}
	if fm.got[0].Role != schema.System || !strings.Contains(fm.got[0].Content, `"ws-7"`) {
		t.Errorf("expected system prompt with workspace id, got %+v", fm.got[0])
	}
	if fm.got[3].Role != schema.User || fm.got[3].Content != "Three questions" {
		t.Errorf("expected user message last, got %+v", fm.got[3])
	}
}

func TestRelayChatWithoutHistory(t *testing.T) {
	fm := &fakeModel{reply: schema.AssistantMessage("ok", nil)}
	if _, err := newRelay(t, fm).Chat(context.Background(), model.ChatInput{Message: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fm.got) != 2 {
		t.Errorf("expected system + user, got %d", len(fm.got))
	}
}

func TestRelayChatRejectsEmptyMessage(t *testing.T) {
	fm := &fakeModel{reply: schema.AssistantMessage("ok", nil)}
	_, err := newRelay(t, fm).Chat(context.Background(), model.ChatInput{Message: "   "})
	if errx.KindOf(err) != errx.KindInvalidRequest {
		t.Errorf("expected InvalidRequest, got %v", err)
	}
	if fm.calls != 0 {
		t.Error("model must not be called for empty messages")
	}
}

func TestRelayChatEmptyReply(t *testing.T) {
	fm := &fakeModel{reply: schema.AssistantMessage("", nil)}
	_, err := newRelay(t, fm).Chat(context.Background(), model.ChatInput{Message: "hi"})
	if !errors.Is(err, errx.ErrUpstreamHTTP) {
		t.Errorf("expected UpstreamHTTPError, got %v", err)
	}
}

func TestRelayChatModelFailure(t *testing.T) {
	fm := &fakeModel{err: errors.New("boom")}
	_, err := newRelay(t, fm).Chat(context.Background(), model.ChatInput{Message: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errx.KindOf(err) == "" {
		t.Errorf("expected an errx error, got %v", err)
	}
}

func TestRelayWithCompletionsBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` + "```json\\n{}\\n```" + `"}}]}`))
	}))
	defer server.Close()

	cm, err := llm.NewCompletionsModel(llm.CompletionsConfig{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewCompletionsModel: %v", err)
	}
	out, err := newRelay(t, cm).Chat(context.Background(), model.ChatInput{Message: "build it"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Reply != "```json\n{}\n```" {
		t.Errorf("unexpected reply %q", out.Reply)
	}
}

func TestMapError(t *testing.T) {
	upstream := errx.Upstream(401, "unauthorized", "")
	if got := mapError(upstream); got != upstream {
		t.Errorf("expected errx error to pass through, got %v", got)
	}
	if errx.KindOf(mapError(context.DeadlineExceeded)) != errx.KindNetwork {
		t.Error("expected deadline to map to NetworkError")
	}
	dial := &url.Error{Op: "Post", URL: "https://generativelanguage.googleapis.com", Err: errors.New("dial tcp: connection refused")}
	if errx.KindOf(mapError(fmt.Errorf("generate: %w", dial))) != errx.KindNetwork {
		t.Error("expected transport failure to map to NetworkError")
	}
	dns := &net.DNSError{Err: "no such host", Name: "agent.invalid", IsNotFound: true}
	if errx.KindOf(mapError(dns)) != errx.KindNetwork {
		t.Error("expected DNS failure to map to NetworkError")
	}
	if errx.KindOf(mapError(errors.New("x"))) != errx.KindInternal {
		t.Error("expected unknown errors to map to Internal")
	}
}

func TestNewRequiresModel(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error for nil chat model")
	}
}
