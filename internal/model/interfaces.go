package model

import "context"

// Sender is the outbound half of a chat transport.
type Sender interface {
	SendText(ctx context.Context, channel, text string, opts SendOptions) error
	SendDocument(ctx context.Context, channel, path string) error
}

// Transport is a chat transport: outbound sends plus a stream of inbound
// messages. Inbound is closed when the transport stops.
type Transport interface {
	Sender
	Inbound() <-chan InboundMessage
	Close() error
}

// HistoryStore records question lifecycle events. Implementations must be
// safe for concurrent use.
type HistoryStore interface {
	RecordAsked(ctx context.Context, id, question string) error
	RecordAnswered(ctx context.Context, id, answer string) error
	RecordInterrupted(ctx context.Context, id string) error
	Close() error
}
