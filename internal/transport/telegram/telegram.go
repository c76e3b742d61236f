// Package telegram implements the chat transport on the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/mediagrab/internal/transport"
)

const (
	telegramMaxMessageLength = 4096
	telegramMaxCaptionLength = 1024

	// DefaultPollTimeout is the long-poll timeout in seconds.
	DefaultPollTimeout = 30
	// fallbackRetryAfter is used when a 429 carries no retry_after.
	fallbackRetryAfter = time.Second
)

// Options configures an Adapter.
type Options struct {
	// PollTimeout is the getUpdates long-poll timeout in seconds.
	PollTimeout int
	// Endpoint overrides tgbotapi.APIEndpoint, e.g. for a self-hosted Bot API server.
	Endpoint string
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// Adapter implements transport.Transport and transport.Receiver.
type Adapter struct {
	bot    *tgbotapi.BotAPI
	opts   Options
	logger *slog.Logger
}

var (
	_ transport.Transport = (*Adapter)(nil)
	_ transport.Receiver  = (*Adapter)(nil)
)

// New authenticates the bot token and returns an adapter.
func New(log *slog.Logger, token string, opts Options) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("adapter", "telegram"))
	_ = tgbotapi.SetLogger(&slogBotLogger{log: log})

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	var client tgbotapi.HTTPClient = http.DefaultClient
	if opts.Client != nil {
		client = opts.Client
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		log.Error("create bot failed", slog.Any("error", err))
		return nil, err
	}
	return &Adapter{bot: bot, opts: opts, logger: log}, nil
}

// Username returns the bot's own username.
func (a *Adapter) Username() string {
	return a.bot.Self.UserName
}

// SendText sends an HTML message, optionally as a reply.
func (a *Adapter) SendText(ctx context.Context, chatID int64, replyTo int, html string) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	msg := tgbotapi.NewMessage(chatID, truncateTelegramText(sanitizeTelegramText(html), telegramMaxMessageLength))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if replyTo > 0 {
		msg.ReplyToMessageID = replyTo
	}
	sent, err := a.bot.Send(msg)
	if err != nil {
		return transport.MessageRef{}, wrapTelegramError(err)
	}
	ref := transport.MessageRef{ChatID: chatID, MessageID: sent.MessageID}
	if sent.Chat != nil {
		ref.ChatID = sent.Chat.ID
	}
	return ref, nil
}

// EditText replaces a message's text. An unchanged text is not an error.
func (a *Adapter) EditText(ctx context.Context, ref transport.MessageRef, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, truncateTelegramText(sanitizeTelegramText(html), telegramMaxMessageLength))
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	if _, err := a.bot.Request(edit); err != nil {
		if isTelegramMessageNotModified(err) {
			return nil
		}
		return wrapTelegramError(err)
	}
	return nil
}

// Delete removes a message.
func (a *Adapter) Delete(ctx context.Context, ref transport.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.bot.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)); err != nil {
		return wrapTelegramError(err)
	}
	return nil
}

// SendVideo uploads a local video file.
func (a *Adapter) SendVideo(ctx context.Context, up transport.Upload) error {
	return a.upload(ctx, up, func(file tgbotapi.RequestFileData) tgbotapi.Chattable {
		video := tgbotapi.NewVideo(up.ChatID, file)
		video.Caption, video.ParseMode = captionFor(up)
		video.ReplyToMessageID = up.ReplyTo
		video.SupportsStreaming = true
		return video
	})
}

// SendDocument uploads a local file as a document.
func (a *Adapter) SendDocument(ctx context.Context, up transport.Upload) error {
	return a.upload(ctx, up, func(file tgbotapi.RequestFileData) tgbotapi.Chattable {
		doc := tgbotapi.NewDocument(up.ChatID, file)
		doc.Caption, doc.ParseMode = captionFor(up)
		doc.ReplyToMessageID = up.ReplyTo
		return doc
	})
}

// SendPhoto uploads a local image.
func (a *Adapter) SendPhoto(ctx context.Context, up transport.Upload) error {
	return a.upload(ctx, up, func(file tgbotapi.RequestFileData) tgbotapi.Chattable {
		photo := tgbotapi.NewPhoto(up.ChatID, file)
		photo.Caption, photo.ParseMode = captionFor(up)
		photo.ReplyToMessageID = up.ReplyTo
		return photo
	})
}

func (a *Adapter) upload(ctx context.Context, up transport.Upload, build func(tgbotapi.RequestFileData) tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(up.Path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat upload: %w", err)
	}
	reader := &progressReader{ctx: ctx, r: f, total: info.Size(), onProgress: up.OnProgress}
	file := tgbotapi.FileReader{Name: filepath.Base(up.Path), Reader: reader}
	if _, err := a.bot.Send(build(file)); err != nil {
		a.logger.Warn("upload failed",
			slog.Int64("chat_id", up.ChatID),
			slog.Int64("sent", reader.sent),
			slog.Int64("total", reader.total),
			slog.Any("error", err))
		return wrapTelegramError(err)
	}
	return nil
}

func captionFor(up transport.Upload) (string, string) {
	caption := truncateTelegramText(sanitizeTelegramText(up.Caption), telegramMaxCaptionLength)
	if up.HTML {
		return caption, tgbotapi.ModeHTML
	}
	return caption, ""
}

// progressReader counts bytes handed to the multipart encoder.
type progressReader struct {
	ctx        context.Context
	r          io.Reader
	sent       int64
	total      int64
	onProgress transport.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.sent, p.total)
		}
	}
	return n, err
}

// wrapTelegramError maps a 429 into transport.RateLimitError so callers can
// wait out the server-mandated interval.
func wrapTelegramError(err error) error {
	if !isTelegramTooManyRequests(err) {
		return err
	}
	wait := getTelegramRetryAfter(err)
	if wait <= 0 {
		wait = fallbackRetryAfter
	}
	return &transport.RateLimitError{RetryAfter: wait, Err: err}
}

func asTelegramAPIError(err error) (tgbotapi.Error, bool) {
	if err == nil {
		return tgbotapi.Error{}, false
	}
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return val, true
	}
	return tgbotapi.Error{}, false
}

func isTelegramMessageNotModified(err error) bool {
	apiErr, ok := asTelegramAPIError(err)
	return ok && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "message is not modified")
}

func isTelegramTooManyRequests(err error) bool {
	apiErr, ok := asTelegramAPIError(err)
	if !ok {
		return false
	}
	// Upload responses carry no error code, only the retry_after parameter.
	return apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0
}

func getTelegramRetryAfter(err error) time.Duration {
	apiErr, ok := asTelegramAPIError(err)
	if !ok || apiErr.RetryAfter <= 0 {
		return 0
	}
	return time.Duration(apiErr.RetryAfter) * time.Second
}

// sanitizeTelegramText strips invalid UTF-8, which the Bot API rejects.
func sanitizeTelegramText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateTelegramText cuts text to limit bytes on a rune boundary, appending
// "..." when it had to cut.
func truncateTelegramText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	const suffix = "..."
	cut := limit - len(suffix)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + suffix
}
