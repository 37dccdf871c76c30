package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/alnah/propulse/internal/metrics"
	"github.com/alnah/propulse/internal/server"
)

// runServe runs the HTTP service until ctx is cancelled.
func runServe(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags.common, env)
	if err != nil {
		return err
	}
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}
	if flags.workersSet {
		cfg.Render.Workers = flags.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, flags.common)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer setMaxProcs(logger)()

	m := metrics.New()
	p, err := buildPipeline(cfg, logger, m, env)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("closing renderer", zap.Error(err))
		}
	}()

	logger.Info("starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.String("output_dir", p.OutputDir()),
		zap.Int("workers", cfg.Render.Workers))

	srv := server.New(p,
		server.WithLogger(logger),
		server.WithMetricsHandler(m.Handler()),
		server.WithClock(env.Now))
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}
