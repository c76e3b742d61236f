// Package progress renders transfer progress into the in-flight status message.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/memohai/mediagrab/internal/transport"
)

// Phase names the transfer being reported.
type Phase string

const (
	PhaseDownload Phase = "download"
	PhaseUpload   Phase = "upload"
)

// DefaultMinInterval spaces progress edits on the same status message.
const DefaultMinInterval = 2 * time.Second

const bytesPerMB = 1024 * 1024

// Editor is the transport operation the reporter needs.
type Editor interface {
	EditText(ctx context.Context, ref transport.MessageRef, html string) error
}

// Format renders a progress line with one-decimal percentage and megabytes.
func Format(phase Phase, done, total int64) string {
	label := "⏬ <b>Downloading</b>"
	if phase == PhaseUpload {
		label = "📤 <b>Uploading</b>"
	}
	if total <= 0 {
		return fmt.Sprintf("%s... (%.1fMB)", label, float64(done)/bytesPerMB)
	}
	percent := float64(done) / float64(total) * 100
	return fmt.Sprintf("%s... %.1f%%\n(%.1fMB / %.1fMB)", label, percent, float64(done)/bytesPerMB, float64(total)/bytesPerMB)
}

// Reporter edits one status message. Every failure is swallowed: progress
// reporting never aborts a delivery.
type Reporter struct {
	editor  Editor
	ref     transport.MessageRef
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewReporter creates a reporter for the status message ref. minInterval
// bounds how often Progress edits reach the transport; <= 0 disables throttling.
func NewReporter(log *slog.Logger, editor Editor, ref transport.MessageRef, minInterval time.Duration) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Reporter{
		editor:  editor,
		ref:     ref,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log,
	}
}

// Status replaces the status text unconditionally.
func (r *Reporter) Status(ctx context.Context, html string) {
	if r == nil || r.editor == nil {
		return
	}
	if err := r.editor.EditText(ctx, r.ref, html); err != nil {
		r.logger.Debug("status edit failed", slog.Any("error", err))
	}
}

// Progress edits the status with a formatted progress line, dropping updates
// that arrive faster than the configured interval.
func (r *Reporter) Progress(ctx context.Context, phase Phase, done, total int64) {
	if r == nil || r.editor == nil {
		return
	}
	if !r.limiter.Allow() {
		return
	}
	r.Status(ctx, Format(phase, done, total))
}

// Func adapts the reporter into a byte-count callback for phase.
func (r *Reporter) Func(ctx context.Context, phase Phase) func(done, total int64) {
	return func(done, total int64) {
		r.Progress(ctx, phase, done, total)
	}
}
