// Package transport defines the chat transport the delivery pipeline talks to.
// Adapters (see transport/telegram) implement it for a concrete platform.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProgressFunc receives upload progress as bytes sent and total bytes.
type ProgressFunc func(sent, total int64)

// MessageRef addresses a message previously sent by the bot.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Upload describes a local file handed to the transport.
type Upload struct {
	ChatID  int64
	ReplyTo int
	Path    string
	Caption string
	// HTML enables rich-text parsing of Caption.
	HTML       bool
	OnProgress ProgressFunc
}

// Transport is the subset of chat operations the pipeline consumes.
type Transport interface {
	// SendText sends an HTML formatted message and returns its reference.
	SendText(ctx context.Context, chatID int64, replyTo int, html string) (MessageRef, error)
	// EditText replaces the text of a message sent earlier.
	EditText(ctx context.Context, ref MessageRef, html string) error
	// Delete removes a message.
	Delete(ctx context.Context, ref MessageRef) error
	SendVideo(ctx context.Context, up Upload) error
	SendDocument(ctx context.Context, up Upload) error
	SendPhoto(ctx context.Context, up Upload) error
}

// Inbound is one text message received from a user.
type Inbound struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Text      string
	// Command holds the bot command without slash or mention, if any.
	Command    string
	ReceivedAt time.Time
}

// Handler processes one inbound message.
type Handler func(ctx context.Context, msg Inbound) error

// Receiver delivers inbound messages until ctx is done.
type Receiver interface {
	Listen(ctx context.Context, handler Handler) error
}

// RateLimitError signals that the platform requires waiting RetryAfter
// before the same operation may be retried.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: retry after %s: %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// AsRateLimit reports whether err carries a rate-limit condition.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
