package correlation

import (
	"context"
	"log/slog"
	"strings"

	"askbridge/internal/model"
)

// Matcher maps inbound chat messages to outstanding questions and resolves
// them.
type Matcher struct {
	recipient string
	registry  *Registry
	log       *slog.Logger
}

func NewMatcher(recipient string, registry *Registry, log *slog.Logger) *Matcher {
	if log == nil {
		log = slog.Default()
	}
	return &Matcher{
		recipient: recipient,
		registry:  registry,
		log:       log.With("component", "matcher"),
	}
}

// Match returns the outstanding identity msg answers, if any. It has no side
// effects.
func (m *Matcher) Match(msg model.InboundMessage) (string, bool) {
	if msg.Channel != m.recipient || strings.TrimSpace(msg.Text) == "" {
		return "", false
	}
	var quoted string
	if msg.HasQuote {
		if id, ok := ParseTag(msg.QuotedText); ok {
			quoted = id
		}
	}
	id, ok := m.registry.Lookup(quoted)
	if !ok {
		return "", false
	}
	return id, true
}

// Handle matches msg and resolves the question it answers. It reports
// whether a question was resolved.
func (m *Matcher) Handle(msg model.InboundMessage) bool {
	if msg.Channel != m.recipient {
		m.log.Debug("ignoring message from foreign channel", "channel", msg.Channel)
		return false
	}
	id, ok := m.Match(msg)
	if !ok {
		m.logMiss(msg)
		return false
	}
	if !m.registry.Resolve(id, msg.Text) {
		// Answered by a concurrent message between match and resolve.
		m.log.Debug("question already resolved", "question_id", id)
		return false
	}
	m.log.Info("question answered", "question_id", id, "quoted", msg.HasQuote)
	return true
}

func (m *Matcher) logMiss(msg model.InboundMessage) {
	if strings.TrimSpace(msg.Text) == "" {
		m.log.Debug("ignoring message without text")
		return
	}
	if msg.HasQuote {
		if id, ok := ParseTag(msg.QuotedText); ok {
			if m.registry.Retired(id) {
				m.log.Info("reply to already answered question dropped", "question_id", id)
			} else {
				m.log.Info("reply to unknown question dropped", "question_id", id)
			}
			return
		}
	}
	m.log.Debug("message matched no outstanding question")
}

// Run consumes inbound until it is closed or ctx ends. Messages are handled
// in delivery order.
func (m *Matcher) Run(ctx context.Context, inbound <-chan model.InboundMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			m.Handle(msg)
		}
	}
}
