package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/mediagrab/internal/bot"
	"github.com/memohai/mediagrab/internal/config"
	"github.com/memohai/mediagrab/internal/fetch"
	"github.com/memohai/mediagrab/internal/handlers"
	scratchchecker "github.com/memohai/mediagrab/internal/healthcheck/checkers/scratch"
	"github.com/memohai/mediagrab/internal/logger"
	"github.com/memohai/mediagrab/internal/metrics"
	"github.com/memohai/mediagrab/internal/pipeline"
	"github.com/memohai/mediagrab/internal/resolver"
	"github.com/memohai/mediagrab/internal/scratch"
	"github.com/memohai/mediagrab/internal/server"
	"github.com/memohai/mediagrab/internal/transport"
	"github.com/memohai/mediagrab/internal/transport/telegram"
	"github.com/memohai/mediagrab/internal/version"
)

// stopTimeout bounds shutdown: in-flight deliveries are cancelled and their
// scratch files removed before the process exits.
const stopTimeout = 30 * time.Second

func runServe() error {
	app := fx.New(
		fx.StopTimeout(stopTimeout),
		fx.Provide(
			provideConfig,
			provideLogger,
			metrics.New,
			provideScratchDir,
			provideTelegramAdapter,
			func(a *telegram.Adapter) transport.Transport { return a },
			func(a *telegram.Adapter) transport.Receiver { return a },
			provideResolverChains,
			provideFetcher,
			providePipeline,
			provideRouter,
			providePingHandler,
			provideMetricsHandler,
			provideServer,
		),
		fx.Invoke(
			startSweeper,
			startReceiver,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func provideConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	for _, w := range cfg.Warnings() {
		logger.L.Warn("config", slog.String("warning", w))
	}
	return logger.L
}

func provideScratchDir(log *slog.Logger, cfg config.Config) (*scratch.Dir, error) {
	return scratch.New(log, cfg.Scratch.Dir)
}

func provideTelegramAdapter(log *slog.Logger, cfg config.Config) (*telegram.Adapter, error) {
	a, err := telegram.New(log, cfg.Telegram.BotToken, telegram.Options{
		PollTimeout: cfg.Telegram.PollTimeout,
		Endpoint:    cfg.Telegram.APIEndpoint,
	})
	if err != nil {
		return nil, err
	}
	log.Info("telegram bot authorized", slog.String("username", a.Username()))
	return a, nil
}

func provideResolverChains(cfg config.Config) *resolver.Chains {
	rc := cfg.Resolvers
	opts := func(endpoint string) resolver.ClientOptions {
		return resolver.ClientOptions{
			Endpoint:  endpoint,
			Timeout:   config.ResolveTimeout,
			UserAgent: rc.UserAgent,
		}
	}
	return resolver.DefaultChains(
		resolver.NewVideoResolver(opts(rc.VideoEndpoint)),
		resolver.NewPhotoResolver(opts(rc.PhotoEndpoint)),
		resolver.NewFileResolver(opts(rc.FileEndpoint), rc.FileAPIKey),
	)
}

func provideFetcher(log *slog.Logger, cfg config.Config) *fetch.Fetcher {
	return fetch.New(log, nil, fetch.Options{
		Timeout:     config.FetchTimeout,
		ChunkSize:   config.ChunkSize,
		StepPercent: config.ProgressStepPercent,
		MaxBytes:    config.MaxDeliveryBytes,
		UserAgent:   cfg.Resolvers.UserAgent,
	})
}

func providePipeline(log *slog.Logger, tr transport.Transport, dir *scratch.Dir, chains *resolver.Chains, fetcher *fetch.Fetcher, m *metrics.Metrics) *pipeline.Pipeline {
	return pipeline.New(log, tr, dir, chains, fetcher, pipeline.Options{
		MaxBytes:   config.MaxDeliveryBytes,
		PhotoPause: config.PhotoPause,
		Observer:   m,
	})
}

func provideRouter(log *slog.Logger, tr transport.Transport, p *pipeline.Pipeline) *bot.Router {
	return bot.NewRouter(log, tr, p)
}

func providePingHandler(log *slog.Logger, dir *scratch.Dir) *handlers.PingHandler {
	return handlers.NewPingHandler(log, scratchchecker.NewChecker(log, dir.Root()))
}

func provideMetricsHandler(m *metrics.Metrics) *handlers.MetricsHandler {
	return handlers.NewMetricsHandler(m.Handler())
}

func provideServer(log *slog.Logger, cfg config.Config, ping *handlers.PingHandler, mh *handlers.MetricsHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, ping, mh)
}

func startSweeper(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, dir *scratch.Dir, m *metrics.Metrics) error {
	sweeper, err := scratch.NewSweeper(log, dir, cfg.Scratch.SweepSchedule, cfg.Scratch.MaxAgeDuration(), m.AddSwept)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { sweeper.Start(); return nil },
		OnStop:  func(ctx context.Context) error { return sweeper.Stop(ctx) },
	})
	return nil
}

func startReceiver(lc fx.Lifecycle, log *slog.Logger, receiver transport.Receiver, router *bot.Router, shutdowner fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := receiver.Listen(ctx, router.Handle); err != nil {
					log.Error("receiver stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, srv *server.Server, shutdowner fx.Shutdowner) {
	if cfg.Server.Addr == "" {
		log.Info("ops server disabled")
		return
	}
	log.Info("starting mediagrab", slog.String("version", version.GetInfo()))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
