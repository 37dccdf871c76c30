package main

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/alnah/propulse"
	"github.com/alnah/propulse/internal/config"
	"github.com/alnah/propulse/internal/hints"
	"github.com/alnah/propulse/internal/logging"
)

// loadConfig resolves configuration in order: defaults, config file
// (--config or PROPULSE_CONFIG), environment. Flags are applied by the caller.
// Unknown PROPULSE_* variables are reported on stderr.
func loadConfig(f commonFlags, env *Environment) (*config.Config, error) {
	path := f.config
	if path == "" {
		path = env.getenv(config.EnvConfig)
	}

	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			if errors.Is(err, config.ErrConfigNotFound) && !strings.ContainsAny(path, `/\`) {
				return nil, fmt.Errorf("%w%s", err, hints.ForConfigNotFound(config.SearchPaths(path)))
			}
			return nil, err
		}
	}

	warnings, err := config.ApplyEnv(cfg, env.Environ)
	if !f.quiet {
		for _, w := range warnings {
			fmt.Fprintln(env.Stderr, "warning:", w)
		}
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg *config.Config, f commonFlags) (*zap.Logger, error) {
	level := cfg.Log.Level
	if f.verbose {
		level = "debug"
	}
	return logging.New(level, cfg.Log.Output)
}

// setMaxProcs aligns GOMAXPROCS with the container CPU quota and returns the
// function restoring the previous value.
func setMaxProcs(logger *zap.Logger) func() {
	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))
	if err != nil {
		// Invalid GOMAXPROCS env: runtime defaults apply
		logger.Warn("adjusting GOMAXPROCS", zap.Error(err))
		return func() {}
	}
	return undo
}

// completionConfig maps the llm section to the completer configuration.
func completionConfig(cfg *config.Config) propulse.CompletionConfig {
	return propulse.CompletionConfig{
		Provider:    propulse.Provider(cfg.LLM.Provider),
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Referer:     cfg.LLM.Referer,
		Title:       cfg.LLM.Title,
		Timeout:     cfg.LLM.Timeout,
	}
}

// rendererOptions maps the render section to renderer options.
// Assumes cfg has been validated (positive render timeout).
func rendererOptions(cfg *config.Config, logger *zap.Logger) []propulse.RendererOption {
	opts := []propulse.RendererOption{
		propulse.WithSettleDelay(cfg.Render.SettleDelay),
		propulse.WithReadyTimeout(cfg.Render.ReadyTimeout),
		propulse.WithRenderTimeout(cfg.Render.Timeout),
		propulse.WithBrowserBin(cfg.Render.BrowserBin),
		propulse.WithNoSandbox(cfg.Render.NoSandbox),
		propulse.WithRendererLogger(logger),
	}
	switch {
	case cfg.Render.Workers == config.WorkersAuto:
		opts = append(opts, propulse.WithBrowserPool(propulse.ResolvePoolSize(0)))
	case cfg.Render.Workers > 0:
		opts = append(opts, propulse.WithBrowserPool(propulse.ResolvePoolSize(cfg.Render.Workers)))
	}
	return opts
}

// buildPipeline wires completer, renderer and exemplar from validated config.
// A missing exemplar is logged and the pipeline runs degraded.
func buildPipeline(cfg *config.Config, logger *zap.Logger, observer propulse.Observer, env *Environment) (*propulse.Pipeline, error) {
	completer, err := env.NewCompleter(completionConfig(cfg))
	if err != nil {
		return nil, err
	}

	mode, err := propulse.ParseExtractMode(cfg.Extract.Mode)
	if err != nil {
		return nil, err
	}

	exemplar, err := propulse.LoadStyleExemplar(cfg.Templates.Root)
	if err != nil {
		return nil, err
	}
	if exemplar.Degraded() {
		logger.Warn("style exemplar not found, prompts will ask for a design from scratch",
			zap.String("templates_root", cfg.Templates.Root))
	} else {
		logger.Info("style exemplar loaded", zap.Int("bytes", len(exemplar.Text())))
	}

	renderer := env.NewRenderer(rendererOptions(cfg, logger)...)
	p, err := propulse.NewPipeline(completer, renderer, exemplar,
		propulse.WithOutputDir(cfg.Render.OutputDir),
		propulse.WithExtractMode(mode),
		propulse.WithLogger(logger),
		propulse.WithObserver(observer),
		propulse.WithPrettyHTML(cfg.Inline.Pretty),
	)
	if err != nil {
		_ = renderer.Close()
		return nil, err
	}
	return p, nil
}
