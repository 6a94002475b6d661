package repo

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/flowsmith/server/internal/agent/model"
)

const (
	// DefaultMaxConversations bounds how many conversations are held in memory.
	DefaultMaxConversations = 10000
	sweepInterval           = time.Minute
)

type memoryConversation struct {
	messages  []*schema.Message
	expiresAt time.Time
	touchedAt time.Time
}

// MemoryConversationRepository keeps history in process memory. It is used
// when no Redis URL is configured; entries expire after the TTL like Redis keys.
// Each conversation keeps at most maxMessages entries and at most
// maxConversations conversations are held, the least recently used going first.
type MemoryConversationRepository struct {
	mu               sync.Mutex
	ttl              time.Duration
	maxMessages      int
	maxConversations int
	now              func() time.Time
	lastSweep        time.Time
	convs            map[string]*memoryConversation
}

func NewMemoryConversationRepository(ttl time.Duration, maxMessages int) *MemoryConversationRepository {
	return &MemoryConversationRepository{
		ttl:              ttl,
		maxMessages:      maxMessages,
		maxConversations: DefaultMaxConversations,
		now:              time.Now,
		convs:            map[string]*memoryConversation{},
	}
}

func (c *memoryConversation) expired(now time.Time) bool {
	return !c.expiresAt.IsZero() && !now.Before(c.expiresAt)
}

// live returns the conversation unless it has expired. Callers hold mu.
func (r *MemoryConversationRepository) live(conversationID string) *memoryConversation {
	c, ok := r.convs[conversationID]
	if !ok {
		return nil
	}
	if c.expired(r.now()) {
		delete(r.convs, conversationID)
		return nil
	}
	return c
}

// sweep drops expired conversations, at most once per sweepInterval unless
// forced. Callers hold mu.
func (r *MemoryConversationRepository) sweep(force bool) {
	now := r.now()
	if !force && now.Sub(r.lastSweep) < sweepInterval {
		return
	}
	r.lastSweep = now
	for id, c := range r.convs {
		if c.expired(now) {
			delete(r.convs, id)
		}
	}
}

// evictOldest removes the least recently touched conversation. Callers hold mu.
func (r *MemoryConversationRepository) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, c := range r.convs {
		if oldestID == "" || c.touchedAt.Before(oldest) {
			oldestID, oldest = id, c.touchedAt
		}
	}
	delete(r.convs, oldestID)
}

func (r *MemoryConversationRepository) AddMessage(ctx context.Context, conversationID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweep(false)
	c := r.live(conversationID)
	if c == nil {
		if r.maxConversations > 0 && len(r.convs) >= r.maxConversations {
			r.sweep(true)
			for len(r.convs) >= r.maxConversations {
				r.evictOldest()
			}
		}
		c = &memoryConversation{}
		r.convs[conversationID] = c
	}

	cp := *message
	c.messages = append(c.messages, &cp)
	if r.maxMessages > 0 && len(c.messages) > r.maxMessages {
		kept := make([]*schema.Message, r.maxMessages)
		copy(kept, c.messages[len(c.messages)-r.maxMessages:])
		c.messages = kept
	}
	c.touchedAt = r.now()
	if r.ttl > 0 {
		c.expiresAt = c.touchedAt.Add(r.ttl)
	}
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := []*schema.Message{}
	if c := r.live(conversationID); c != nil {
		msgs = make([]*schema.Message, len(c.messages))
		for i, m := range c.messages {
			cp := *m
			msgs[i] = &cp
		}
	}
	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}

func (r *MemoryConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convs, conversationID)
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(ctx context.Context, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.live(conversationID); c != nil {
		return len(c.messages), nil
	}
	return 0, nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
