// Package pipeline turns one inbound chat message into delivered media.
//
// A message moves through classification, resolution, fetching, a size check
// and delivery. Every scratch file created along the way is removed before
// Handle returns, whatever the outcome.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/memohai/mediagrab/internal/fetch"
	"github.com/memohai/mediagrab/internal/link"
	"github.com/memohai/mediagrab/internal/progress"
	"github.com/memohai/mediagrab/internal/resolver"
	"github.com/memohai/mediagrab/internal/scratch"
	"github.com/memohai/mediagrab/internal/transport"
)

// DefaultMaxBytes is the largest asset the transport accepts.
const DefaultMaxBytes int64 = 2 * 1024 * 1024 * 1024

// Resolver resolves a classified link through its fallback chain.
type Resolver interface {
	Resolve(ctx context.Context, desc link.Descriptor) (resolver.Resolution, error)
}

// Fetcher streams one asset to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, onProgress fetch.ProgressFunc) (fetch.Result, error)
}

// Observer receives pipeline events for metrics.
type Observer interface {
	ObserveOutcome(provider link.Provider, status Status)
	AddFetchedBytes(n int64)
	ObserveRateLimitWait(wait time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveOutcome(link.Provider, Status) {}
func (nopObserver) AddFetchedBytes(int64)                {}
func (nopObserver) ObserveRateLimitWait(time.Duration)   {}

// Options tunes a Pipeline.
type Options struct {
	// MaxBytes is the delivery size ceiling. Zero means DefaultMaxBytes.
	MaxBytes int64
	// PhotoPause separates consecutive photo-set items. Zero disables it.
	PhotoPause time.Duration
	// ProgressInterval throttles upload progress edits. Zero means
	// progress.DefaultMinInterval, negative disables throttling.
	ProgressInterval time.Duration
	// Classifier defaults to the built-in link patterns.
	Classifier *link.Classifier
	Observer   Observer
}

// Pipeline handles inbound messages. It is safe for concurrent use; each
// call to Handle is independent.
type Pipeline struct {
	transport transport.Transport
	scratch   *scratch.Dir
	resolver  Resolver
	fetcher   Fetcher
	opts      Options
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a Pipeline.
func New(log *slog.Logger, tr transport.Transport, dir *scratch.Dir, res Resolver, fetcher Fetcher, opts Options) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.ProgressInterval == 0 {
		opts.ProgressInterval = progress.DefaultMinInterval
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Pipeline{
		transport: tr,
		scratch:   dir,
		resolver:  res,
		fetcher:   fetcher,
		opts:      opts,
		logger:    log.With(slog.String("service", "pipeline")),
		sleep:     sleepContext,
	}
}

// Handle processes one message end to end. Failures are reported to the user
// through the status message; the returned Outcome is for logs and metrics.
func (p *Pipeline) Handle(ctx context.Context, msg transport.Inbound) Outcome {
	desc, ok := link.Select(p.classify(msg.Text))
	if !ok {
		if _, err := p.transport.SendText(ctx, msg.ChatID, msg.MessageID, NoSupportedURLText); err != nil {
			p.logger.Warn("reply failed", slog.Int64("chat_id", msg.ChatID), slog.Any("error", err))
		}
		return p.finish(msg, Outcome{Status: StatusClassificationEmpty})
	}

	log := p.logger.With(
		slog.Int64("chat_id", msg.ChatID),
		slog.String("provider", desc.Provider.String()),
		slog.String("url", desc.RawURL),
	)
	st := p.openStatus(ctx, log, msg, desc.Provider)

	res, err := p.resolver.Resolve(ctx, desc)
	if err != nil {
		log.Warn("resolve failed", slog.Any("error", err))
		st.set(ctx, resolutionFailedText(desc.Provider))
		return p.finish(msg, Outcome{Status: StatusResolutionFailed, Provider: desc.Provider, Err: err})
	}
	log.Debug("resolved", slog.String("kind", string(res.Kind)), slog.Int("assets", res.Count()))

	var out Outcome
	switch res.Kind {
	case resolver.KindPhotos:
		out = p.deliverPhotos(ctx, log, msg, st, res.Photos)
	case resolver.KindFile:
		out = p.deliverSingle(ctx, log, msg, st, fileAsset(res.File, desc.RawURL))
	default:
		out = p.deliverSingle(ctx, log, msg, st, videoAsset(res.Video, desc.RawURL))
	}
	out.Provider = desc.Provider
	return p.finish(msg, out)
}

func (p *Pipeline) finish(msg transport.Inbound, out Outcome) Outcome {
	p.opts.Observer.ObserveOutcome(out.Provider, out.Status)
	attrs := []any{
		slog.Int64("chat_id", msg.ChatID),
		slog.String("status", string(out.Status)),
		slog.String("provider", out.Provider.String()),
		slog.Int("delivered", out.Delivered),
	}
	if !out.OK() && out.Err != nil {
		p.logger.Warn("message handled", append(attrs, slog.Any("error", out.Err))...)
	} else {
		p.logger.Info("message handled", attrs...)
	}
	return out
}

func (p *Pipeline) classify(text string) []link.Descriptor {
	if p.opts.Classifier != nil {
		return p.opts.Classifier.Classify(text)
	}
	return link.Classify(text)
}

func (p *Pipeline) deliverSingle(ctx context.Context, log *slog.Logger, msg transport.Inbound, st *statusMessage, a asset) Outcome {
	if err := p.deliverAsset(ctx, log, msg, st, a); err != nil {
		status, size := statusFor(err)
		p.reportFailure(ctx, st, a, status, size)
		return Outcome{Status: status, Size: size, Err: err}
	}
	st.delete(ctx)
	return Outcome{Status: StatusDelivered, Delivered: 1}
}

func (p *Pipeline) deliverPhotos(ctx context.Context, log *slog.Logger, msg transport.Inbound, st *statusMessage, items []resolver.PhotoItem) Outcome {
	total := len(items)
	st.set(ctx, photoSetText(total))
	delivered := 0
	for i, item := range items {
		idx := i + 1
		if i > 0 {
			if err := p.sleep(ctx, p.opts.PhotoPause); err != nil {
				return Outcome{Status: StatusDeliveryFailed, Delivered: delivered, Err: err}
			}
		}
		st.set(ctx, photoItemText(idx, total))
		a := photoAsset(item, idx, total)
		if err := p.deliverAsset(ctx, log, msg, st, a); err != nil {
			status, size := statusFor(err)
			log.Warn("photo set aborted", slog.Int("item", idx), slog.Int("total", total), slog.Any("error", err))
			p.reportFailure(ctx, st, a, status, size)
			return Outcome{Status: status, Delivered: delivered, Size: size, Err: err}
		}
		delivered++
	}
	st.delete(ctx)
	return Outcome{Status: StatusDelivered, Delivered: delivered}
}

func (p *Pipeline) reportFailure(ctx context.Context, st *statusMessage, a asset, status Status, size int64) {
	switch status {
	case StatusTooLarge:
		st.set(ctx, tooLargeText(size, p.opts.MaxBytes))
	case StatusFetchFailed:
		st.set(ctx, a.fetchFailText)
	default:
		st.set(ctx, a.deliverFailText)
	}
}

// statusMessage is the single in-flight status message of one request.
type statusMessage struct {
	transport transport.Transport
	ref       transport.MessageRef
	sent      bool
	reporter  *progress.Reporter
	logger    *slog.Logger
}

func (p *Pipeline) openStatus(ctx context.Context, log *slog.Logger, msg transport.Inbound, provider link.Provider) *statusMessage {
	st := &statusMessage{transport: p.transport, logger: log}
	ref, err := p.transport.SendText(ctx, msg.ChatID, msg.MessageID, processingText(provider))
	if err != nil {
		log.Warn("status message failed", slog.Any("error", err))
	} else {
		st.ref = ref
		st.sent = true
	}
	var editor progress.Editor
	if st.sent {
		editor = p.transport
	}
	st.reporter = progress.NewReporter(log, editor, st.ref, p.opts.ProgressInterval)
	return st
}

func (s *statusMessage) set(ctx context.Context, html string) {
	if !s.sent {
		return
	}
	s.reporter.Status(ctx, html)
}

func (s *statusMessage) delete(ctx context.Context) {
	if !s.sent {
		return
	}
	if err := s.transport.Delete(ctx, s.ref); err != nil {
		s.logger.Debug("status delete failed", slog.Any("error", err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
