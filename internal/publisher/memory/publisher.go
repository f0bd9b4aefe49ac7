// Package memory keeps published notices in process. It backs local runs
// and tests where no broker is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// Message captures one publish call.
type Message struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
	logger   *zap.Logger
}

var _ glossary.Publisher = (*Publisher)(nil)

// New returns a memory Publisher. A nil logger disables logging.
func New(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{logger: logger}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	id := fmt.Sprintf("memory-%d", len(p.messages)+1)
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Payload: payload})
	p.mu.Unlock()

	p.logger.Info("notice held in memory", zap.String("topic", topic), zap.String("message_id", id), zap.Any("payload", payload))
	return id, nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// ReindexNotices returns the reindex notices published to topic, oldest first.
func (p *Publisher) ReindexNotices(topic string) []glossary.ReindexNotice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []glossary.ReindexNotice
	for _, m := range p.messages {
		if m.Topic != topic {
			continue
		}
		if n, ok := m.Payload.(glossary.ReindexNotice); ok {
			out = append(out, n)
		}
	}
	return out
}
