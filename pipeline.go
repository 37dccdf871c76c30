package propulse

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/yosssi/gohtml"
	"go.uber.org/zap"

	"github.com/alnah/propulse/internal/fileutil"
)

// DefaultOutputDir holds temporary PDFs while they are being served.
const DefaultOutputDir = "temp_pdfs"

// Observer receives pipeline measurements. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveStage(stage Stage, d time.Duration, err error)
	ObserveGeneration(mode OutputMode, d time.Duration, err error)
	ObserveCleanup(err error)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(Stage, time.Duration, error)           {}
func (nopObserver) ObserveGeneration(OutputMode, time.Duration, error) {}
func (nopObserver) ObserveCleanup(error)                               {}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOutputDir sets the directory for temporary PDFs.
func WithOutputDir(dir string) Option {
	return func(p *Pipeline) {
		if dir != "" {
			p.outputDir = dir
		}
	}
}

// WithExtractMode sets how completion text is checked before rendering.
func WithExtractMode(m ExtractMode) Option {
	return func(p *Pipeline) {
		p.extractMode = m
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithPrettyHTML indents the HTML returned in inline mode. The rendered PDF
// is unaffected.
func WithPrettyHTML(v bool) Option {
	return func(p *Pipeline) {
		p.prettyHTML = v
	}
}

// Pipeline turns a Proposal into a PDF: prompt, completion, extraction,
// rendering and delivery. It is safe for concurrent use; invocations share
// only the read-only exemplar and configuration.
type Pipeline struct {
	completer   Completer
	renderer    Renderer
	exemplar    StyleExemplar
	outputDir   string
	extractMode ExtractMode
	prettyHTML  bool
	logger      *zap.Logger
	observer    Observer
}

// NewPipeline wires a pipeline and creates the output directory.
func NewPipeline(completer Completer, renderer Renderer, exemplar StyleExemplar, opts ...Option) (*Pipeline, error) {
	if completer == nil {
		panic("propulse: nil Completer in NewPipeline")
	}
	if renderer == nil {
		panic("propulse: nil Renderer in NewPipeline")
	}

	p := &Pipeline{
		completer:   completer,
		renderer:    renderer,
		exemplar:    exemplar,
		outputDir:   DefaultOutputDir,
		extractMode: DefaultExtractMode,
		logger:      zap.NewNop(),
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if _, err := ParseExtractMode(string(p.extractMode)); err != nil {
		return nil, err
	}
	if err := fileutil.EnsureDir(p.outputDir); err != nil {
		return nil, fmt.Errorf("preparing output directory: %w", err)
	}
	return p, nil
}

// Exemplar returns the style exemplar in use.
func (p *Pipeline) Exemplar() StyleExemplar {
	return p.exemplar
}

// OutputDir returns the directory holding temporary PDFs.
func (p *Pipeline) OutputDir() string {
	return p.outputDir
}

// Close releases renderer resources (pooled browsers).
func (p *Pipeline) Close() error {
	return p.renderer.Close()
}

// Generate runs the pipeline and returns the result in the requested mode.
func (p *Pipeline) Generate(ctx context.Context, prop Proposal, mode OutputMode) (*Result, error) {
	switch mode {
	case ModeBinary, "":
		doc, err := p.GenerateFile(ctx, prop)
		if err != nil {
			return nil, err
		}
		return &Result{Mode: ModeBinary, Document: doc}, nil
	case ModeInline:
		inline, err := p.GenerateInline(ctx, prop)
		if err != nil {
			return nil, err
		}
		return &Result{Mode: ModeInline, Inline: inline}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutputMode, mode)
	}
}

// GenerateFile renders the proposal and hands over the live PDF file.
// The caller streams it with Document.WriteTo and must call Document.Close,
// which deletes the file.
func (p *Pipeline) GenerateFile(ctx context.Context, prop Proposal) (doc *Document, err error) {
	start := time.Now()
	defer func() { p.observer.ObserveGeneration(ModeBinary, time.Since(start), err) }()

	r, err := p.produce(ctx, prop)
	if err != nil {
		return nil, err
	}
	return &Document{
		HTML:     r.html,
		Status:   r.status,
		Filename: SuggestedFilename(prop),
		artifact: r.artifact,
		pipeline: p,
		log:      r.log,
	}, nil
}

// GenerateInline renders the proposal, reads the PDF into memory, deletes
// the file and returns the HTML with the base64-encoded PDF.
func (p *Pipeline) GenerateInline(ctx context.Context, prop Proposal) (result *InlineResult, err error) {
	start := time.Now()
	defer func() { p.observer.ObserveGeneration(ModeInline, time.Since(start), err) }()

	r, err := p.produce(ctx, prop)
	if err != nil {
		return nil, err
	}
	defer p.cleanup(r.log, r.artifact)

	stageStart := time.Now()
	data, err := r.artifact.ReadAll()
	p.observer.ObserveStage(StageEncode, time.Since(stageStart), err)
	if err != nil {
		return nil, p.fail(r.log, StageEncode, err)
	}

	html := r.html
	if p.prettyHTML {
		html = gohtml.Format(html)
	}

	r.log.Debug("inline payload ready", zap.Int("pdf_bytes", len(data)))
	return &InlineResult{
		HTML:      html,
		PDFBase64: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// produced is a rendered proposal whose artifact is in the created state.
type produced struct {
	html     string
	status   DocumentStatus
	artifact *Artifact
	log      *zap.Logger
}

// produce runs prompt, completion, extraction and rendering. On failure the
// artifact (if any) is already cleaned up.
func (p *Pipeline) produce(ctx context.Context, prop Proposal) (*produced, error) {
	if err := prop.Validate(); err != nil {
		return nil, err
	}

	log := p.logger.With(zap.String("proposal_id", prop.ID.String()))

	prompt := BuildPrompt(prop, p.exemplar)
	log.Debug("stage started",
		zap.String("stage", string(StageCompletion)),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Bool("exemplar_degraded", p.exemplar.Degraded()))

	stageStart := time.Now()
	raw, err := p.completer.Complete(ctx, prompt)
	p.observer.ObserveStage(StageCompletion, time.Since(stageStart), err)
	if err != nil {
		return nil, p.fail(log, StageCompletion, err)
	}

	log.Debug("stage started", zap.String("stage", string(StageExtract)), zap.Int("raw_bytes", len(raw)))
	stageStart = time.Now()
	ext, err := ExtractHTML(raw, p.extractMode)
	p.observer.ObserveStage(StageExtract, time.Since(stageStart), err)
	if err != nil {
		return nil, p.fail(log, StageExtract, err)
	}
	if len(ext.Diagnostics) > 0 {
		log.Info("completion output adjusted",
			zap.String("status", string(ext.Status)),
			zap.Strings("diagnostics", ext.Diagnostics))
	}

	art, err := NewArtifact(p.outputDir)
	if err != nil {
		return nil, p.fail(log, StageRender, err)
	}
	log = log.With(zap.String("artifact", art.Path()))

	log.Debug("stage started", zap.String("stage", string(StageRender)))
	stageStart = time.Now()
	err = p.renderer.RenderToFile(ctx, ext.HTML, art.Path())
	if err == nil {
		err = art.MarkCreated()
	}
	p.observer.ObserveStage(StageRender, time.Since(stageStart), err)
	if err != nil {
		p.cleanup(log, art)
		return nil, p.fail(log, StageRender, err)
	}

	return &produced{html: ext.HTML, status: ext.Status, artifact: art, log: log}, nil
}

// fail logs err and wraps it as a GenerationError.
func (p *Pipeline) fail(log *zap.Logger, stage Stage, err error) error {
	fields := []zap.Field{zap.String("stage", string(stage)), zap.Error(err)}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Detail != nil {
		fields = append(fields, zap.NamedError("provider_error", pe.Detail))
	}
	log.Error("generation failed", fields...)
	return &GenerationError{Stage: stage, Cause: err}
}

// cleanup deletes the artifact, logging instead of failing the request.
func (p *Pipeline) cleanup(log *zap.Logger, art *Artifact) {
	err := art.Cleanup()
	p.observer.ObserveCleanup(err)
	if err != nil {
		log.Warn("artifact cleanup failed", zap.Error(err))
		return
	}
	log.Debug("artifact cleaned up")
}

// SuggestedFilename returns the download name for a proposal's PDF.
func SuggestedFilename(prop Proposal) string {
	return "proposal_" + fileutil.SanitizeFilename(prop.CompanyName) + ".pdf"
}

// Document is a rendered proposal backed by a live temporary PDF.
// Close must be called once the caller is done with it.
type Document struct {
	HTML     string
	Status   DocumentStatus
	Filename string

	artifact *Artifact
	pipeline *Pipeline
	log      *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Path returns the temporary PDF path. It is only valid until Close.
func (d *Document) Path() string {
	return d.artifact.Path()
}

// WriteTo streams the PDF to w. Any failure deletes the file and is
// reported as a GenerationError at the encode stage. The cause is
// ErrReadArtifact when the file could not be read and ErrWriteDocument when
// w rejected the bytes (typically a client that went away).
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	start := time.Now()
	n, err := d.stream(w)
	d.pipeline.observer.ObserveStage(StageEncode, time.Since(start), err)
	if err == nil {
		return n, nil
	}
	_ = d.Close()
	if errors.Is(err, ErrWriteDocument) {
		d.log.Warn("document delivery aborted", zap.Int64("bytes_sent", n), zap.Error(err))
		return n, &GenerationError{Stage: StageEncode, Cause: err}
	}
	return n, d.pipeline.fail(d.log, StageEncode, err)
}

func (d *Document) stream(w io.Writer) (int64, error) {
	f, err := d.artifact.Open()
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	dst := &trackingWriter{w: w}
	n, err := io.Copy(dst, f)
	switch {
	case dst.err != nil:
		return n, fmt.Errorf("%w: %v", ErrWriteDocument, dst.err)
	case err != nil:
		return n, fmt.Errorf("%w: %v", ErrReadArtifact, err)
	}
	return n, nil
}

// trackingWriter remembers the first write error so io.Copy failures can be
// attributed to the destination rather than the source.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

// Close deletes the temporary PDF. Safe to call more than once.
func (d *Document) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.artifact.Cleanup()
		d.pipeline.observer.ObserveCleanup(d.closeErr)
		if d.closeErr != nil {
			d.log.Warn("artifact cleanup failed", zap.Error(d.closeErr))
		}
	})
	return d.closeErr
}
