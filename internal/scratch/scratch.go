// Package scratch manages the transient files that bridge a download and
// its upload. Files live directly under one working directory.
package scratch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const timestampLayout = "20060102_150405"

// Dir is a scratch working directory.
type Dir struct {
	root   string
	now    func() time.Time
	logger *slog.Logger
}

// New creates the directory if needed and returns a handle to it.
func New(log *slog.Logger, root string) (*Dir, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("scratch dir is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Dir{root: abs, now: time.Now, logger: log.With(slog.String("service", "scratch"))}, nil
}

// Root returns the absolute directory path.
func (d *Dir) Root() string {
	return d.root
}

// Path returns a fresh file path for one asset. The name combines prefix,
// timestamp, item index and a random suffix so interleaved deliveries never
// collide. ext should include the leading dot.
func (d *Dir) Path(prefix string, index int, ext string) string {
	prefix = sanitize(prefix)
	if prefix == "" {
		prefix = "asset"
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ext = sanitize(ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	name := fmt.Sprintf("%s_%s_%d_%s%s", prefix, d.now().Format(timestampLayout), index, suffix, ext)
	return filepath.Join(d.root, name)
}

// Remove deletes a scratch file. Missing files are not an error, and paths
// outside the directory are refused.
func (d *Dir) Remove(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	clean := filepath.Clean(path)
	if !strings.HasPrefix(clean, d.root+string(filepath.Separator)) {
		return fmt.Errorf("path escapes scratch dir: %s", path)
	}
	if err := os.Remove(clean); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove scratch file: %w", err)
	}
	return nil
}

// Cleanup removes path and logs instead of failing.
func (d *Dir) Cleanup(path string) {
	if err := d.Remove(path); err != nil {
		d.logger.Warn("scratch cleanup failed", slog.String("path", path), slog.Any("error", err))
	}
}

// Sweep removes regular files last modified more than maxAge ago, which can
// only be leftovers of a crashed process. It returns the number removed.
func (d *Dir) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return 0, fmt.Errorf("read scratch dir: %w", err)
	}
	cutoff := d.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(d.root, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("sweep remove failed", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		d.logger.Info("swept stale scratch files", slog.Int("removed", removed))
	}
	return removed, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		default:
			return -1
		}
	}, s)
}
