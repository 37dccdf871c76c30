package propulse

import (
	"errors"
	"fmt"
)

// Sentinel errors for library operations.
var (
	// Proposal validation errors.
	ErrEmptyCompanyName = errors.New("company name cannot be empty")
	ErrEmptyTitle       = errors.New("title cannot be empty")

	// Configuration errors (fatal at startup).
	ErrMissingAPIKey       = errors.New("completion provider API key is required")
	ErrMissingBaseURL      = errors.New("completion provider base URL is required")
	ErrUnsupportedProvider = errors.New("unsupported completion provider")

	// Completion errors.
	ErrCompletion      = errors.New("completion request failed")
	ErrEmptyCompletion = errors.New("completion returned no content")

	// Extraction errors.
	ErrMalformedDocument  = errors.New("malformed HTML document")
	ErrInvalidExtractMode = errors.New("invalid extract mode")

	// Rendering errors.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPDFGeneration  = errors.New("PDF generation failed")
	ErrWritePDF       = errors.New("failed to write PDF file")
	ErrPoolClosed     = errors.New("browser pool is closed")

	// Artifact errors.
	ErrArtifactNotCreated = errors.New("artifact has not been created")
	ErrArtifactDeleted    = errors.New("artifact has already been deleted")
	ErrReadArtifact       = errors.New("failed to read PDF artifact")
	ErrWriteDocument      = errors.New("failed to write PDF to destination")

	// Pipeline errors.
	ErrGenerationFailed  = errors.New("generation failed")
	ErrInvalidOutputMode = errors.New("invalid output mode")
)

// Stage identifies the pipeline step where a generation failed.
type Stage string

// Pipeline stages, in execution order.
const (
	StageCompletion Stage = "completion"
	StageExtract    Stage = "extract"
	StageRender     Stage = "render"
	StageEncode     Stage = "encode"
)

// GenerationError is returned by the pipeline for every request-time failure.
// It matches ErrGenerationFailed and unwraps to the underlying cause.
type GenerationError struct {
	Stage Stage
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s at %s stage: %v", ErrGenerationFailed, e.Stage, e.Cause)
}

// Is reports ErrGenerationFailed as a match so callers can classify
// without knowing the stage.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
