package scratchchecker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/memohai/mediagrab/internal/healthcheck"
)

const checkTypeScratchWritable = "scratch.writable"

// Checker verifies that the scratch directory accepts new files.
type Checker struct {
	logger *slog.Logger
	dir    string
}

// NewChecker creates a scratch directory checker.
func NewChecker(log *slog.Logger, dir string) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger: log.With(slog.String("checker", "healthcheck_scratch")),
		dir:    dir,
	}
}

// ListChecks writes and removes a probe file in the scratch directory.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	result := healthcheck.CheckResult{
		ID:   checkTypeScratchWritable,
		Type: checkTypeScratchWritable,
	}
	probe := filepath.Join(c.dir, ".probe-"+uuid.NewString())
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		c.logger.Warn("scratch dir not writable", slog.String("dir", c.dir), slog.Any("error", err))
		result.Status = healthcheck.StatusError
		result.Summary = "Scratch directory is not writable."
		result.Detail = err.Error()
		return []healthcheck.CheckResult{result}
	}
	_ = os.Remove(probe)

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		result.Status = healthcheck.StatusWarn
		result.Summary = "Scratch directory is writable but not listable."
		result.Detail = err.Error()
		return []healthcheck.CheckResult{result}
	}
	result.Status = healthcheck.StatusOK
	result.Summary = fmt.Sprintf("Scratch directory holds %d file(s).", len(entries))
	return []healthcheck.CheckResult{result}
}
