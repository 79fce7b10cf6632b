// Package telegram carries questions and answers over a Telegram bot using
// long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"askbridge/internal/model"
)

const (
	DefaultPollTimeout = 30 * time.Second
	inboundBuffer      = 64
)

var ErrClosed = errors.New("telegram transport closed")

type Config struct {
	Token string
	// Endpoint overrides the Bot API URL template. It must contain two %s
	// verbs for the token and the method.
	Endpoint    string
	PollTimeout time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Transport implements model.Transport on top of the Bot API.
type Transport struct {
	bot     *tgbotapi.BotAPI
	log     *slog.Logger
	inbound chan model.InboundMessage

	closeOnce sync.Once
	done      chan struct{}
}

// New authenticates with the Bot API and starts polling for updates. An
// invalid token or unreachable endpoint fails here.
func New(cfg Config) (*Transport, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "telegram")
	_ = tgbotapi.SetLogger(botLogger{log: log})

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	log.Info("connected", "bot", bot.Self.UserName)

	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	t := &Transport{
		bot:     bot,
		log:     log,
		inbound: make(chan model.InboundMessage, inboundBuffer),
		done:    make(chan struct{}),
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(timeout / time.Second)
	go t.pump(bot.GetUpdatesChan(u))
	return t, nil
}

func (t *Transport) Inbound() <-chan model.InboundMessage { return t.inbound }

func (t *Transport) SendText(ctx context.Context, channel, text string, opts model.SendOptions) error {
	if err := t.checkOpen(ctx); err != nil {
		return err
	}
	chatID, err := ParseChatID(channel)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if opts.ForceReply {
		msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true}
	}
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (t *Transport) SendDocument(ctx context.Context, channel, path string) error {
	if err := t.checkOpen(ctx); err != nil {
		return err
	}
	chatID, err := ParseChatID(channel)
	if err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// Close stops polling. The inbound channel is closed once the poller exits.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.bot.StopReceivingUpdates()
	})
	return nil
}

func (t *Transport) checkOpen(ctx context.Context) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	return ctx.Err()
}

func (t *Transport) pump(updates tgbotapi.UpdatesChannel) {
	defer close(t.inbound)
	for {
		select {
		case <-t.done:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg, ok := ToInbound(update)
			if !ok {
				continue
			}
			select {
			case t.inbound <- msg:
			case <-t.done:
				return
			}
		}
	}
}

// ToInbound converts an update into an inbound message. Updates that carry
// no message, such as edits and callbacks, are skipped.
func ToInbound(update tgbotapi.Update) (model.InboundMessage, bool) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return model.InboundMessage{}, false
	}
	msg := model.InboundMessage{
		Channel: strconv.FormatInt(m.Chat.ID, 10),
		Text:    m.Text,
	}
	if m.ReplyToMessage != nil {
		msg.HasQuote = true
		msg.QuotedText = m.ReplyToMessage.Text
		if msg.QuotedText == "" {
			msg.QuotedText = m.ReplyToMessage.Caption
		}
	}
	return msg, true
}

// ParseChatID parses a channel identity as a Telegram chat id.
func ParseChatID(channel string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(channel), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: must be an integer", channel)
	}
	return id, nil
}
