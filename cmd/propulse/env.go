package main

import (
	"io"
	"os"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/alnah/propulse"
	"github.com/alnah/propulse/internal/config"
)

// Environment holds injectable dependencies for testability.
// Includes I/O, time, process environment and the pipeline's outer edges.
type Environment struct {
	Now     func() time.Time
	Stdout  io.Writer
	Stderr  io.Writer
	Environ []string

	NewCompleter func(propulse.CompletionConfig) (propulse.Completer, error)
	NewRenderer  func(opts ...propulse.RendererOption) propulse.Renderer
	LookBrowser  func() (string, bool)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:          time.Now,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Environ:      os.Environ(),
		NewCompleter: propulse.NewCompleter,
		NewRenderer: func(opts ...propulse.RendererOption) propulse.Renderer {
			return propulse.NewRenderer(opts...)
		},
		LookBrowser: launcher.LookPath,
	}
}

// getenv looks up name in the environment snapshot.
func (e *Environment) getenv(name string) string {
	return config.LookupEnv(e.Environ, name)
}
