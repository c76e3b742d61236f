// Package bot routes inbound chat messages to command replies or the
// delivery pipeline.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/memohai/mediagrab/internal/pipeline"
	"github.com/memohai/mediagrab/internal/transport"
)

// Pipeline handles a message that is not a known command.
type Pipeline interface {
	Handle(ctx context.Context, msg transport.Inbound) pipeline.Outcome
}

// Router dispatches inbound messages. It satisfies transport.Handler via Handle.
type Router struct {
	transport transport.Transport
	pipeline  Pipeline
	commands  map[string]string
	logger    *slog.Logger
}

// NewRouter creates a router answering /start and /help statically and
// passing everything else to p.
func NewRouter(log *slog.Logger, tr transport.Transport, p Pipeline) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		transport: tr,
		pipeline:  p,
		commands: map[string]string{
			"start": StartText,
			"help":  HelpText,
		},
		logger: log.With(slog.String("service", "bot")),
	}
}

// Handle processes one message. Panics are recovered and answered with a
// generic error so a single bad message never takes the bot down.
func (r *Router) Handle(ctx context.Context, msg transport.Inbound) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic",
				slog.Int64("chat_id", msg.ChatID),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			r.replyGenericError(ctx, msg)
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()

	if text, ok := r.commands[msg.Command]; ok {
		if _, err := r.transport.SendText(ctx, msg.ChatID, msg.MessageID, text); err != nil {
			return fmt.Errorf("reply to /%s: %w", msg.Command, err)
		}
		return nil
	}
	r.pipeline.Handle(ctx, msg)
	return nil
}

func (r *Router) replyGenericError(ctx context.Context, msg transport.Inbound) {
	if _, err := r.transport.SendText(ctx, msg.ChatID, msg.MessageID, GenericErrorText); err != nil {
		r.logger.Warn("generic error reply failed", slog.Int64("chat_id", msg.ChatID), slog.Any("error", err))
	}
}
