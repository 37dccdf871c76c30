package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alnah/propulse"
	"github.com/alnah/propulse/internal/yamlutil"
)

// Sentinel errors for the generate command.
var (
	ErrNoInput      = errors.New("no proposal file specified")
	ErrReadProposal = errors.New("failed to read proposal file")
	ErrBadProposal  = errors.New("invalid proposal file")
	ErrWriteOutput  = errors.New("failed to write output")
)

// filePermissions applies to generated PDFs and JSON payloads.
const filePermissions = 0o644

// stdoutPath selects standard output for --output.
const stdoutPath = "-"

// runGenerate generates a single proposal from a YAML or JSON file.
func runGenerate(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseGenerateFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("%w: usage: propulse generate <proposal.yaml|json>", ErrNoInput)
	}

	cfg, err := loadConfig(flags.common, env)
	if err != nil {
		return err
	}
	if flags.extractMode != "" {
		cfg.Extract.Mode = strings.ToLower(flags.extractMode)
	}
	if flags.pretty {
		cfg.Inline.Pretty = true
	}
	// Keep stdout free for --inline and "-o -"
	if cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	prop, err := readProposal(positional[0], env.Now)
	if err != nil {
		return err
	}
	if err := prop.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, flags.common)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer setMaxProcs(logger)()

	p, err := buildPipeline(cfg, logger, nil, env)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("closing renderer", zap.Error(err))
		}
	}()

	start := env.Now()
	var written string
	if flags.inline {
		written, err = generateInline(ctx, p, prop, flags.output, env)
	} else {
		written, err = generateFile(ctx, p, prop, flags.output, env)
	}
	if err != nil {
		return err
	}

	if !flags.common.quiet && written != stdoutPath {
		fmt.Fprintf(env.Stderr, "Generated %s (%s)\n", written, env.Now().Sub(start).Round(time.Millisecond))
	}
	return nil
}

// readProposal decodes a proposal file. A missing ID, status or creation
// time is filled in.
func readProposal(path string, now func() time.Time) (propulse.Proposal, error) {
	var prop propulse.Proposal
	if err := yamlutil.ReadFile(path, &prop, true); err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return prop, fmt.Errorf("%w: %w", ErrReadProposal, err)
		}
		return prop, fmt.Errorf("%w: %s: %v", ErrBadProposal, path, err)
	}

	t := now()
	if prop.ID == uuid.Nil {
		prop.ID = uuid.New()
	}
	if prop.Status == "" {
		prop.Status = propulse.StatusDraft
	}
	if prop.CreatedAt.IsZero() {
		prop.CreatedAt = t
	}
	prop.LastUpdate = t
	return prop, nil
}

// generateFile streams the PDF to output (file, directory or stdout) and
// returns where it went.
func generateFile(ctx context.Context, p *propulse.Pipeline, prop propulse.Proposal, output string, env *Environment) (string, error) {
	doc, err := p.GenerateFile(ctx, prop)
	if err != nil {
		return "", err
	}
	defer func() { _ = doc.Close() }()

	if output == stdoutPath {
		if _, err := doc.WriteTo(env.Stdout); err != nil {
			return "", err
		}
		return stdoutPath, nil
	}

	path := resolveOutputPath(output, doc.Filename)
	if err := writeOutput(path, doc.WriteTo); err != nil {
		return "", err
	}
	return path, nil
}

// generateInline writes the {html, pdf_base64} payload as JSON.
func generateInline(ctx context.Context, p *propulse.Pipeline, prop propulse.Proposal, output string, env *Environment) (string, error) {
	result, err := p.GenerateInline(ctx, prop)
	if err != nil {
		return "", err
	}

	encode := func(w io.Writer) (int64, error) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return 0, enc.Encode(result)
	}

	if output == "" || output == stdoutPath {
		if _, err := encode(env.Stdout); err != nil {
			return "", fmt.Errorf("%w: %v", ErrWriteOutput, err)
		}
		return stdoutPath, nil
	}

	path := resolveOutputPath(output, strings.TrimSuffix(propulse.SuggestedFilename(prop), ".pdf")+".json")
	if err := writeOutput(path, encode); err != nil {
		return "", err
	}
	return path, nil
}

// resolveOutputPath returns output, or defaultName inside output when
// output is an existing directory, or defaultName when output is empty.
func resolveOutputPath(output, defaultName string) string {
	if output == "" {
		return defaultName
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, defaultName)
	}
	return output
}

// writeOutput creates path and fills it with write. A failed write removes
// the partial file.
func writeOutput(path string, write func(io.Writer) (int64, error)) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions) // #nosec G302 G304 -- user-chosen output
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	if _, err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		if errors.Is(err, propulse.ErrGenerationFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}
