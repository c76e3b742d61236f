package scratch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically removes stale scratch files on a cron schedule.
type Sweeper struct {
	dir     *Dir
	maxAge  time.Duration
	onSwept func(int)
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewSweeper validates schedule (standard cron or descriptors such as
// "@every 30m"). onSwept, if set, receives the count removed by each run.
func NewSweeper(log *slog.Logger, dir *Dir, schedule string, maxAge time.Duration, onSwept func(int)) (*Sweeper, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("service", "scratch_sweeper"))
	cl := cronLogger{log: log}
	s := &Sweeper{
		dir:     dir,
		maxAge:  maxAge,
		onSwept: onSwept,
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  log,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start sweeps once immediately, then on schedule.
func (s *Sweeper) Start() {
	s.run()
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run() {
	n, err := s.dir.Sweep(s.maxAge)
	if err != nil {
		s.logger.Warn("sweep failed", slog.Any("error", err))
		return
	}
	if s.onSwept != nil {
		s.onSwept(n)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
