// Package conversations assembles and records host-owned chat history.
package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/flowsmith/server/internal/agent/model"
	errx "github.com/flowsmith/server/internal/core/error"
)

// maxConversationIDLen bounds ids accepted from API clients.
const maxConversationIDLen = 128

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxMessages      int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxMessages:      config.MaxMessages(),
	}
}

// ValidateID rejects ids that would be unsafe as storage keys.
func ValidateID(conversationID string) error {
	if conversationID == "" || len(conversationID) > maxConversationIDLen {
		return errx.InvalidRequest("conversationId must be 1-128 characters")
	}
	if strings.ContainsAny(conversationID, " \t\r\n:*?[]") {
		return errx.InvalidRequest("conversationId contains unsupported characters")
	}
	return nil
}

// History returns the most recent turns of a conversation, at most MaxTurns
// of them, to be passed to the relay with the next user message.
func (cm *MessagesManager) History(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return trimTail(history.Messages, cm.maxMessages), nil
}

// SaveTurn records a user message and the agent reply.
func (cm *MessagesManager) SaveTurn(ctx context.Context, conversationID, userMessage, reply string) error {
	if err := cm.conversationRepo.AddMessage(ctx, conversationID, schema.UserMessage(userMessage)); err != nil {
		return err
	}
	return cm.conversationRepo.AddMessage(ctx, conversationID, schema.AssistantMessage(reply, nil))
}

// Clear removes a conversation.
func (cm *MessagesManager) Clear(ctx context.Context, conversationID string) error {
	return cm.conversationRepo.ClearHistory(ctx, conversationID)
}

// trimTail keeps the last maxMessages messages, dropping leading replies so
// the history always opens with a user message. A non-positive limit keeps all.
func trimTail(messages []*schema.Message, maxMessages int) []*schema.Message {
	source := messages
	if maxMessages > 0 && len(source) > maxMessages {
		source = source[len(source)-maxMessages:]
	}
	for len(source) > 0 && source[0].Role != schema.User {
		source = source[1:]
	}
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
