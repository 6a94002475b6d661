package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository stores chat history owned by the HTTP host.
type ConversationRepository interface {
	// AddMessage appends a message to the conversation.
	AddMessage(ctx context.Context, conversationID string, message *schema.Message) error

	// LoadHistory returns every stored message of the conversation, oldest first.
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// ClearHistory removes the conversation.
	ClearHistory(ctx context.Context, conversationID string) error

	// GetMessageCount returns the number of stored messages.
	GetMessageCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}
