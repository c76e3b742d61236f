// Package fetch streams remote assets to local scratch files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultTimeout     = 300 * time.Second
	DefaultChunkSize   = 8 * 1024
	DefaultStepPercent = 10.0
)

var (
	// ErrBadStatus indicates the source answered with a non-success status.
	ErrBadStatus = errors.New("unexpected source status")
	// ErrTooLarge indicates the declared content length exceeds the ceiling.
	ErrTooLarge = errors.New("asset too large")
)

// SizeError reports a source whose declared length exceeds the ceiling.
type SizeError struct {
	Declared int64
	Max      int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%v: declared %d bytes, max %d", ErrTooLarge, e.Declared, e.Max)
}

func (e *SizeError) Is(target error) bool {
	return target == ErrTooLarge
}

// ProgressFunc receives the bytes written so far and the declared total.
type ProgressFunc func(done, total int64)

// Result describes a completed download.
type Result struct {
	Path  string
	Bytes int64
}

// Options tunes a Fetcher. Zero values fall back to the defaults.
type Options struct {
	Timeout     time.Duration
	ChunkSize   int
	StepPercent float64
	// MaxBytes rejects sources whose declared length exceeds it. Zero disables the check.
	MaxBytes int64
	// UserAgent is sent with every request when set.
	UserAgent string
}

// Fetcher downloads assets over HTTP.
type Fetcher struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
}

// New creates a Fetcher. A nil client gets one bounded by opts.Timeout.
func New(log *slog.Logger, client *http.Client, opts Options) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.StepPercent <= 0 {
		opts.StepPercent = DefaultStepPercent
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		client: client,
		opts:   opts,
		logger: log.With(slog.String("service", "fetch")),
	}
}

// Fetch streams url into dest. On failure dest may hold a partial file which
// the caller must treat as invalid and remove.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string, onProgress ProgressFunc) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request source: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return Result{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	if f.opts.MaxBytes > 0 && total > f.opts.MaxBytes {
		return Result{}, &SizeError{Declared: total, Max: f.opts.MaxBytes}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{}, fmt.Errorf("create parent dir: %w", err)
	}
	file, err := os.Create(dest)
	if err != nil {
		return Result{}, fmt.Errorf("create file: %w", err)
	}
	tracker := NewTracker(total, f.opts.StepPercent, onProgress)
	copyErr := copyChunks(file, resp.Body, f.opts.ChunkSize, tracker)
	closeErr := file.Close()
	written := tracker.Done()
	if copyErr != nil {
		f.logger.Warn("stream interrupted",
			slog.String("dest", dest),
			slog.Int64("written", written),
			slog.Float64("percent", tracker.Percent()),
			slog.Any("error", copyErr))
		return Result{Path: dest, Bytes: written}, fmt.Errorf("stream body: %w", copyErr)
	}
	if closeErr != nil {
		return Result{Path: dest, Bytes: written}, fmt.Errorf("close file: %w", closeErr)
	}
	f.logger.Debug("fetched", slog.String("dest", dest), slog.Int64("bytes", written))
	return Result{Path: dest, Bytes: written}, nil
}

func copyChunks(dst io.Writer, src io.Reader, chunkSize int, tracker *Tracker) error {
	buf := make([]byte, chunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			tracker.Advance(int64(n))
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
