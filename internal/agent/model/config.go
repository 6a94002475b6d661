package model

import "time"

// ================ Config ================

// Agent providers.
const (
	ProviderCompletions = "completions"
	ProviderGemini      = "gemini"
)

// AgentConfig selects and tunes the upstream agent.
type AgentConfig struct {
	Provider        string        `envconfig:"AGENT_PROVIDER" default:"completions"`
	BaseURL         string        `envconfig:"AGENT_BASE_URL"`
	APIKey          string        `envconfig:"AGENT_API_KEY" required:"true"`
	AgentID         string        `envconfig:"AGENT_ID"`
	KnowledgeBaseID string        `envconfig:"AGENT_KNOWLEDGE_BASE_ID"`
	Model           string        `envconfig:"AGENT_MODEL"`
	Temperature     float32       `envconfig:"AGENT_TEMPERATURE" default:"0.2"`
	MaxTokens       int           `envconfig:"AGENT_MAX_TOKENS" default:"8192"`
	Timeout         time.Duration `envconfig:"AGENT_TIMEOUT" default:"90s"`
}

// ModelName is the model identifier sent upstream and used for pricing.
func (c AgentConfig) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	return c.AgentID
}

// ConversationConfig bounds host-owned chat history.
type ConversationConfig struct {
	TTL      time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	MaxTurns int           `envconfig:"CONVERSATION_MAX_TURNS" default:"20"`
}

// MaxMessages is the number of stored messages MaxTurns allows: one user
// message and one reply per turn. Zero means unbounded.
func (c ConversationConfig) MaxMessages() int {
	if c.MaxTurns <= 0 {
		return 0
	}
	return 2 * c.MaxTurns
}
