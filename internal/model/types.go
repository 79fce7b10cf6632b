package model

import "time"

// InboundMessage is one message delivered by the chat transport.
// QuotedText is only meaningful when HasQuote is true.
type InboundMessage struct {
	Channel    string
	Text       string
	QuotedText string
	HasQuote   bool
}

// SendOptions tune a single outbound text message.
type SendOptions struct {
	// ForceReply asks the client to open a reply box quoting this message.
	ForceReply bool
}

type QuestionStatus string

const (
	StatusPending     QuestionStatus = "pending"
	StatusAnswered    QuestionStatus = "answered"
	StatusInterrupted QuestionStatus = "interrupted"
	StatusAbandoned   QuestionStatus = "abandoned"
)

// QuestionRecord is a history row.
type QuestionRecord struct {
	ID         string
	Question   string
	Answer     string
	Status     QuestionStatus
	AskedAt    time.Time
	AnsweredAt time.Time
}
