// Package app wires the harness together: it owns the logger, loads the
// pipeline definition, and dispatches to the selected run mode.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/model"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	pipeline *model.Pipeline
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and the pipeline
// definition already loaded and validated. A definition that fails to load
// is a critical startup error and panics; callers recover at the top level
// to produce a clean exit message.
func NewApp(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	pipeline, err := model.LoadPipeline(ctx, cfg.PipelinePath)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline definition: %w", err))
	}
	logger.Debug("Pipeline definition loaded and validated.")

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		pipeline: pipeline,
	}
}

// Pipeline returns the loaded pipeline definition. This is primarily for testing.
func (a *App) Pipeline() *model.Pipeline {
	return a.pipeline
}
