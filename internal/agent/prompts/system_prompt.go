package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/system_prompt.txt
var flowSystemPrompt string

// DefaultWorkspacePlaceholder is written into the prompt when no workspace is configured.
const DefaultWorkspacePlaceholder = "YOUR_WORKSPACE_ID"

// Template variables.
const (
	VarSystem  = "system"
	VarHistory = "history"
	VarInput   = "input"
)

// SystemPrompt returns the flow-designer system prompt for a workspace.
// Only the known token is replaced; the template carries literal JSON braces.
func SystemPrompt(workspaceID string) string {
	if strings.TrimSpace(workspaceID) == "" {
		workspaceID = DefaultWorkspacePlaceholder
	}
	return strings.NewReplacer("{workspace_id}", workspaceID).Replace(flowSystemPrompt)
}

// NewChatTemplate lays out system prompt, optional history and the user turn.
// All parts are placeholders so user text is never interpreted as a template.
func NewChatTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder(VarSystem, false),
		schema.MessagesPlaceholder(VarHistory, true),
		schema.MessagesPlaceholder(VarInput, false),
	)
}

// Variables builds the template input for one relay call.
func Variables(workspaceID, message string, history []*schema.Message) map[string]any {
	return map[string]any{
		VarSystem:  []*schema.Message{schema.SystemMessage(SystemPrompt(workspaceID))},
		VarHistory: history,
		VarInput:   []*schema.Message{schema.UserMessage(message)},
	}
}

// Render formats the full message list without calling a model.
func Render(ctx context.Context, workspaceID, message string, history []*schema.Message) ([]*schema.Message, error) {
	msgs, err := NewChatTemplate().Format(ctx, Variables(workspaceID, message, history))
	if err != nil {
		return nil, fmt.Errorf("flow prompt render: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("flow prompt render: empty result")
	}
	return msgs, nil
}
