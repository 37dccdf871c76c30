package main

import (
	"context"
	"errors"

	"github.com/alnah/propulse"
	"github.com/alnah/propulse/internal/config"
	"github.com/alnah/propulse/internal/fileutil"
	"github.com/alnah/propulse/internal/hints"
)

// hintFor returns an actionable hint for err, or "".
func hintFor(err error, env *Environment) string {
	switch {
	case errors.Is(err, propulse.ErrMissingAPIKey),
		errors.Is(err, propulse.ErrMissingBaseURL),
		errors.Is(err, config.ErrMissingAPIKey),
		errors.Is(err, config.ErrMissingBaseURL):
		return hints.ForMissingCredentials()
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	case errors.Is(err, propulse.ErrBrowserConnect),
		errors.Is(err, propulse.ErrPageCreate):
		return hints.ForBrowserConnect(env.getenv)
	case errors.Is(err, propulse.ErrCompletion),
		errors.Is(err, propulse.ErrEmptyCompletion):
		return hints.ForProvider()
	case errors.Is(err, fileutil.ErrNotDirectory):
		return hints.ForOutputDirectory()
	}
	return ""
}
