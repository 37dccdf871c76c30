package propulse

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Proposal status constants.
const (
	StatusDraft    = "draft"
	StatusSent     = "sent"
	StatusApproved = "approved"
)

// Proposal is the validated input record for one generation.
// The pipeline never mutates it.
type Proposal struct {
	ID            uuid.UUID `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	CompanyName   string    `json:"companyName" yaml:"companyName"`
	ClientName    string    `json:"clientName" yaml:"clientName"`
	Prompt        string    `json:"prompt" yaml:"prompt"`
	Colors        []string  `json:"colors" yaml:"colors"`
	Logo          string    `json:"logo,omitempty" yaml:"logo"`
	ClientLogo    string    `json:"clientLogo,omitempty" yaml:"clientLogo"`
	Status        string    `json:"status" yaml:"status"`
	FinalArtifact string    `json:"finalArtifact,omitempty" yaml:"finalArtifact"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
	LastUpdate    time.Time `json:"lastUpdate" yaml:"lastUpdate"`
}

// Validate checks the invariants the pipeline relies on.
// Colors may be empty (the prompt falls back to default colors) and so may
// ClientName (the prompt uses a placeholder).
func (p *Proposal) Validate() error {
	if strings.TrimSpace(p.CompanyName) == "" {
		return ErrEmptyCompanyName
	}
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// OutputMode selects how a generated proposal is returned.
type OutputMode string

// Output modes.
const (
	// ModeBinary streams the PDF file and deletes it afterwards.
	ModeBinary OutputMode = "binary"
	// ModeInline returns the HTML and the base64-encoded PDF in memory.
	ModeInline OutputMode = "inline"
)

// ParseOutputMode parses a mode name (case-insensitive). Empty means binary.
func ParseOutputMode(s string) (OutputMode, error) {
	switch OutputMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBinary:
		return ModeBinary, nil
	case ModeInline:
		return ModeInline, nil
	default:
		return "", fmt.Errorf("%w: %q (must be binary or inline)", ErrInvalidOutputMode, s)
	}
}

// InlineResult is the inline-mode payload.
type InlineResult struct {
	HTML      string `json:"html"`
	PDFBase64 string `json:"pdf_base64"`
}

// Result holds the outcome of Generate. Exactly one of Document or Inline is set,
// according to the requested mode.
type Result struct {
	Mode     OutputMode
	Document *Document
	Inline   *InlineResult
}

// Page geometry for rendered proposals (A4, 20mm margins).
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
	marginMM       = 20.0
	mmPerInch      = 25.4
)

// marginInches is the print margin applied to all four sides.
const marginInches = marginMM / mmPerInch
