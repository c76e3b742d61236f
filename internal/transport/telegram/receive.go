package telegram

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/mediagrab/internal/transport"
)

// Listen long-polls for updates and runs handler for every text message in
// its own goroutine. It returns after ctx is done and in-flight handlers
// have finished, without waiting for the pending getUpdates call.
//
// Updates returned by that last call are discarded. Their offset is never
// confirmed to the Bot API, so the next poller receives them again.
func (a *Adapter) Listen(ctx context.Context, handler transport.Handler) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = a.opts.PollTimeout
	updateConfig.AllowedUpdates = []string{"message"}
	updates := a.bot.GetUpdatesChan(updateConfig)
	a.logger.Info("listening", slog.Int("poll_timeout", a.opts.PollTimeout))

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("stop")
			a.bot.StopReceivingUpdates()
			go a.discard(updates)
			return nil
		case update, ok := <-updates:
			if !ok {
				a.logger.Info("updates channel closed")
				return nil
			}
			in, ok := toInbound(update.Message)
			if !ok {
				continue
			}
			a.logger.Info("inbound received",
				slog.Int64("chat_id", in.ChatID),
				slog.Int64("user_id", in.UserID),
				slog.String("username", in.Username),
				slog.String("command", in.Command),
				slog.String("text", summarizeText(in.Text)))
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := handler(ctx, in); err != nil {
					a.logger.Error("handle inbound failed", slog.Int64("chat_id", in.ChatID), slog.Any("error", err))
				}
			}()
		}
	}
}

// discard lets the polling goroutine finish its in-flight getUpdates and
// close the channel.
func (a *Adapter) discard(updates tgbotapi.UpdatesChannel) {
	n := 0
	for range updates {
		n++
	}
	if n > 0 {
		a.logger.Info("discarded updates received while stopping", slog.Int("count", n))
	}
}

func toInbound(msg *tgbotapi.Message) (transport.Inbound, bool) {
	if msg == nil || msg.Chat == nil {
		return transport.Inbound{}, false
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	if text == "" {
		return transport.Inbound{}, false
	}
	in := transport.Inbound{
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		Text:       text,
		ReceivedAt: time.Unix(int64(msg.Date), 0).UTC(),
	}
	if msg.IsCommand() {
		in.Command = strings.ToLower(msg.Command())
	}
	if msg.From != nil {
		in.UserID = msg.From.ID
		in.Username = strings.TrimSpace(msg.From.UserName)
	}
	return in, true
}

// summarizeText shortens text for log lines.
func summarizeText(text string) string {
	const limit = 120
	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}
