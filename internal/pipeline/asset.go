package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sethvargo/go-retry"

	"github.com/memohai/mediagrab/internal/fetch"
	"github.com/memohai/mediagrab/internal/progress"
	"github.com/memohai/mediagrab/internal/resolver"
	"github.com/memohai/mediagrab/internal/transport"
)

// DefaultFileExt names file assets that declare no extension.
const DefaultFileExt = ".mp4"

type deliveryKind int

const (
	deliverVideo deliveryKind = iota
	deliverDocument
	deliverPhoto
)

func (k deliveryKind) String() string {
	switch k {
	case deliverVideo:
		return "video"
	case deliverDocument:
		return "document"
	default:
		return "photo"
	}
}

var videoExts = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mkv":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
}

// IsVideoExt reports whether ext (with leading dot) is delivered as video.
func IsVideoExt(ext string) bool {
	_, ok := videoExts[strings.ToLower(ext)]
	return ok
}

// asset is one fetchable item carried across rate-limit retries so a retry
// never re-resolves the link.
type asset struct {
	url    string
	prefix string
	index  int
	ext    string
	kind   deliveryKind
	// sniff refines kind from the fetched bytes when the name had no extension.
	sniff           bool
	caption         string
	progress        bool
	downloadText    string
	uploadText      string
	fetchFailText   string
	deliverFailText string
}

func videoAsset(v resolver.Video, rawURL string) asset {
	return asset{
		url:             v.SourceURL,
		prefix:          "video",
		ext:             ".mp4",
		kind:            deliverVideo,
		caption:         originalURLCaption(rawURL),
		progress:        true,
		downloadText:    "⏬ <b>Downloading video...</b>",
		uploadText:      "📤 <b>Uploading video...</b>",
		fetchFailText:   "❌ <b>Failed to download video</b>",
		deliverFailText: "❌ <b>Failed to process video</b>",
	}
}

func fileAsset(f resolver.File, rawURL string) asset {
	ext := f.Ext()
	sniff := false
	if ext == "" {
		ext = DefaultFileExt
		sniff = true
	}
	kind := deliverDocument
	if IsVideoExt(ext) {
		kind = deliverVideo
	}
	return asset{
		url:             f.SourceURL,
		prefix:          "terabox",
		ext:             ext,
		kind:            kind,
		sniff:           sniff,
		caption:         originalURLCaption(rawURL),
		progress:        true,
		downloadText:    fileDownloadText(f.Name, f.SizeText),
		uploadText:      "📤 <b>Uploading file...</b>",
		fetchFailText:   "❌ <b>Failed to download TeraBox file</b>",
		deliverFailText: "❌ <b>Failed to process TeraBox file</b>",
	}
}

func photoAsset(item resolver.PhotoItem, idx, total int) asset {
	return asset{
		url:             item.SourceURL,
		prefix:          "photo",
		index:           idx,
		ext:             ".jpg",
		kind:            deliverPhoto,
		caption:         photoCaption(idx, total),
		fetchFailText:   fmt.Sprintf("❌ <b>Failed to download image %d/%d</b>", idx, total),
		deliverFailText: "❌ <b>Failed to process images</b>",
	}
}

// deliverAsset runs Fetching through Delivering for one asset. A rate limit
// reported by the transport waits the mandated duration and restarts from
// Fetching with a fresh scratch file; there is no attempt cap.
func (p *Pipeline) deliverAsset(ctx context.Context, log *slog.Logger, msg transport.Inbound, st *statusMessage, a asset) error {
	var wait time.Duration
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		p.opts.Observer.ObserveRateLimitWait(wait)
		return wait, false
	})
	tries := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		err := p.attempt(ctx, msg, st, a)
		if rl, ok := transport.AsRateLimit(err); ok {
			wait = rl.RetryAfter
			log.Info("rate limited, restarting asset",
				slog.Int("item", a.index),
				slog.Int("attempt", tries),
				slog.Duration("retry_after", wait))
			return retry.RetryableError(err)
		}
		return err
	})
}

func (p *Pipeline) attempt(ctx context.Context, msg transport.Inbound, st *statusMessage, a asset) error {
	path := p.scratch.Path(a.prefix, a.index, a.ext)
	defer func() { p.scratch.Cleanup(path) }()

	if a.downloadText != "" {
		st.set(ctx, a.downloadText)
	}
	var onProgress fetch.ProgressFunc
	if a.progress {
		onProgress = func(done, total int64) {
			st.set(ctx, progress.Format(progress.PhaseDownload, done, total))
		}
	}
	res, err := p.fetcher.Fetch(ctx, a.url, path, onProgress)
	if err != nil {
		var sizeErr *fetch.SizeError
		if errors.As(err, &sizeErr) {
			return &tooLargeError{size: sizeErr.Declared, limit: p.opts.MaxBytes}
		}
		return &stageError{stage: stageFetch, err: err}
	}
	p.opts.Observer.AddFetchedBytes(res.Bytes)

	size, err := checkSize(path, p.opts.MaxBytes)
	if err != nil {
		return err
	}

	kind := a.kind
	if a.sniff {
		kind, path = p.refineByContent(path, a.ext, size, kind)
	}
	if a.uploadText != "" {
		st.set(ctx, a.uploadText)
	}
	up := transport.Upload{
		ChatID:  msg.ChatID,
		ReplyTo: msg.MessageID,
		Path:    path,
		Caption: a.caption,
		HTML:    true,
	}
	if a.progress {
		up.OnProgress = st.reporter.Func(ctx, progress.PhaseUpload)
	}
	if err := p.send(ctx, kind, up); err != nil {
		return &stageError{stage: stageDeliver, err: fmt.Errorf("send %s of %d bytes: %w", kind, size, err)}
	}
	return nil
}

func (p *Pipeline) send(ctx context.Context, kind deliveryKind, up transport.Upload) error {
	switch kind {
	case deliverVideo:
		return p.transport.SendVideo(ctx, up)
	case deliverDocument:
		return p.transport.SendDocument(ctx, up)
	default:
		return p.transport.SendPhoto(ctx, up)
	}
}

// checkSize returns the size of the file at path, failing when it exceeds limit.
func checkSize(path string, limit int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, &stageError{stage: stageFetch, err: fmt.Errorf("stat fetched file: %w", err)}
	}
	if limit > 0 && info.Size() > limit {
		return info.Size(), &tooLargeError{size: info.Size(), limit: limit}
	}
	return info.Size(), nil
}

// maxPhotoBytes is the largest image the transport accepts as a photo.
const maxPhotoBytes = 10 * 1024 * 1024

// refineByContent picks the delivery kind of a file that declared no
// extension from its content, renaming it so the upload carries the detected
// extension. Unrecognized content keeps fallback and the default name.
func (p *Pipeline) refineByContent(path, ext string, size int64, fallback deliveryKind) (deliveryKind, string) {
	mt, err := mimetype.DetectFile(path)
	if err != nil || mt.Is("application/octet-stream") || mt.Extension() == "" {
		return fallback, path
	}
	kind := deliverDocument
	switch {
	case strings.HasPrefix(mt.String(), "video/"):
		kind = deliverVideo
	case strings.HasPrefix(mt.String(), "image/") && size <= maxPhotoBytes:
		kind = deliverPhoto
	}
	if strings.EqualFold(mt.Extension(), ext) {
		return kind, path
	}
	renamed := strings.TrimSuffix(path, ext) + mt.Extension()
	if err := os.Rename(path, renamed); err != nil {
		p.logger.Warn("rename sniffed file failed", slog.String("path", path), slog.Any("error", err))
		return kind, path
	}
	return kind, renamed
}
