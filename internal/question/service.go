package question

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"askbridge/internal/correlation"
	"askbridge/internal/model"
)

const maxIdentityAttempts = 4

// Service sends questions to the recipient channel and waits for the
// matching reply.
type Service struct {
	recipient string
	sender    model.Sender
	registry  *correlation.Registry
	ids       correlation.IdentitySource
	history   model.HistoryStore
	log       *slog.Logger
}

type Options struct {
	Recipient string
	Sender    model.Sender
	Registry  *correlation.Registry
	IDs       correlation.IdentitySource
	// History is optional.
	History model.HistoryStore
	Logger  *slog.Logger
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		recipient: opts.Recipient,
		sender:    opts.Sender,
		registry:  opts.Registry,
		ids:       opts.IDs,
		history:   opts.History,
		log:       log.With("component", "question"),
	}
}

// Ask sends text tagged with a fresh identity and blocks the caller until the
// recipient answers or the registry is closed. There is no deadline.
func (s *Service) Ask(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", model.ErrEmptyQuestion
	}

	id, waiter, err := s.reserve()
	if err != nil {
		return "", err
	}
	if err := s.sender.SendText(ctx, s.recipient, correlation.Tag(id, text), model.SendOptions{ForceReply: true}); err != nil {
		s.registry.Release(id)
		return "", fmt.Errorf("send question: %w", err)
	}
	s.registry.Activate(id)
	s.log.Info("question sent", "question_id", id)
	s.record(func(h model.HistoryStore) error { return h.RecordAsked(ctx, id, text) })

	answer, err := waiter.Wait(context.WithoutCancel(ctx))
	if err != nil {
		if errors.Is(err, model.ErrInterrupted) {
			s.record(func(h model.HistoryStore) error { return h.RecordInterrupted(context.Background(), id) })
		}
		return "", err
	}
	s.record(func(h model.HistoryStore) error { return h.RecordAnswered(context.Background(), id, answer) })
	return answer, nil
}

// Notify sends a plain message; nothing is registered.
func (s *Service) Notify(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("message text is empty")
	}
	if err := s.sender.SendText(ctx, s.recipient, text, model.SendOptions{}); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// SendFile uploads path to the recipient channel.
func (s *Service) SendFile(ctx context.Context, path string) error {
	if err := s.sender.SendDocument(ctx, s.recipient, path); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// Interrupt releases every waiting Ask with model.ErrInterrupted.
func (s *Service) Interrupt() {
	if ids := s.registry.Close(); len(ids) > 0 {
		s.log.Warn("interrupted pending questions", "count", len(ids))
	}
}

// reserve claims a fresh identity in the registry before anything is sent.
// Snowflake sources never repeat, injected sources might.
func (s *Service) reserve() (string, *correlation.Waiter, error) {
	var lastErr error
	for i := 0; i < maxIdentityAttempts; i++ {
		id := s.ids.Next()
		w, err := s.registry.Reserve(id)
		if err == nil {
			return id, w, nil
		}
		if !errors.Is(err, model.ErrIdentityInUse) {
			return "", nil, fmt.Errorf("register question: %w", err)
		}
		lastErr = err
	}
	return "", nil, fmt.Errorf("register question: %w", lastErr)
}

func (s *Service) record(fn func(model.HistoryStore) error) {
	if s.history == nil {
		return
	}
	if err := fn(s.history); err != nil {
		s.log.Warn("history write failed", "error", err)
	}
}
