package main

import (
	"errors"
	"os"

	"github.com/alnah/propulse"
	"github.com/alnah/propulse/internal/config"
	"github.com/alnah/propulse/internal/logging"
)

// Exit codes for the propulse CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess  = 0 // Successful run
	ExitGeneral  = 1 // General/unexpected error
	ExitUsage    = 2 // Invalid flags, config, or validation
	ExitIO       = 3 // File not found, permission denied
	ExitBrowser  = 4 // Browser/Chrome errors
	ExitProvider = 5 // Completion provider errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Provider errors (exit 5)
	if errors.Is(err, propulse.ErrCompletion) ||
		errors.Is(err, propulse.ErrEmptyCompletion) {
		return ExitProvider
	}

	// Browser errors (exit 4)
	if errors.Is(err, propulse.ErrBrowserConnect) ||
		errors.Is(err, propulse.ErrPageCreate) ||
		errors.Is(err, propulse.ErrPageLoad) ||
		errors.Is(err, propulse.ErrPDFGeneration) ||
		errors.Is(err, propulse.ErrPoolClosed) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, propulse.ErrWritePDF) ||
		errors.Is(err, propulse.ErrReadArtifact) ||
		errors.Is(err, propulse.ErrWriteDocument) ||
		errors.Is(err, ErrReadProposal) ||
		errors.Is(err, ErrWriteOutput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrMissingAPIKey) ||
		errors.Is(err, config.ErrMissingBaseURL) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrInvalidEnv) ||
		errors.Is(err, logging.ErrInvalidLevel) ||
		errors.Is(err, propulse.ErrMissingAPIKey) ||
		errors.Is(err, propulse.ErrMissingBaseURL) ||
		errors.Is(err, propulse.ErrUnsupportedProvider) ||
		errors.Is(err, propulse.ErrInvalidExtractMode) ||
		errors.Is(err, propulse.ErrInvalidOutputMode) ||
		errors.Is(err, propulse.ErrEmptyCompanyName) ||
		errors.Is(err, propulse.ErrEmptyTitle) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrBadProposal) ||
		errors.Is(err, ErrUsage) {
		return ExitUsage
	}

	return ExitGeneral
}
