package model

import "github.com/cloudwego/eino/schema"

// ChatInput is one relay call: a user message plus optional prior turns.
type ChatInput struct {
	ConversationID string
	Message        string
	History        []*schema.Message
}

// ChatOutput is the agent's first reply.
type ChatOutput struct {
	Reply string
	Usage *schema.TokenUsage
	// CostUSD is zero for models without known pricing.
	CostUSD float64
}
