package propulse

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/alnah/propulse/internal/markup"
)

// Renderer writes an HTML document to a PDF file.
type Renderer interface {
	RenderToFile(ctx context.Context, htmlContent, path string) error
	Close() error
}

// Render defaults.
const (
	DefaultSettleDelay   = 2000 * time.Millisecond
	DefaultReadyTimeout  = 5 * time.Second
	DefaultRenderTimeout = 60 * time.Second
)

// printCSS keeps the proposal's palette in print: Chrome drops background
// colors and lightens text unless color adjustment is exact.
const printCSS = `html, body { -webkit-print-color-adjust: exact; print-color-adjust: exact; }`

// readyScript resolves once web fonts have loaded.
const readyScript = `() => document.fonts.ready.then(() => true)`

const pdfMIME = "application/pdf"

// pageCloseTimeout bounds page teardown after a render.
const pageCloseTimeout = 5 * time.Second

// RendererOption configures a RodRenderer.
type RendererOption func(*RodRenderer)

// WithSettleDelay sets the fixed wait after content injection.
// Panics if d < 0 (programmer error).
func WithSettleDelay(d time.Duration) RendererOption {
	if d < 0 {
		panic("propulse: WithSettleDelay duration must not be negative")
	}
	return func(r *RodRenderer) {
		r.settleDelay = d
	}
}

// WithReadyTimeout bounds the wait for document.fonts.ready. Zero skips the wait.
// Panics if d < 0 (programmer error).
func WithReadyTimeout(d time.Duration) RendererOption {
	if d < 0 {
		panic("propulse: WithReadyTimeout duration must not be negative")
	}
	return func(r *RodRenderer) {
		r.readyTimeout = d
	}
}

// WithRenderTimeout bounds one RenderToFile call.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithRenderTimeout(d time.Duration) RendererOption {
	if d <= 0 {
		panic("propulse: WithRenderTimeout duration must be positive")
	}
	return func(r *RodRenderer) {
		r.timeout = d
	}
}

// WithBrowserPool keeps n long-lived browsers instead of launching one per
// render. n <= 0 keeps the default of one fresh browser per call.
func WithBrowserPool(n int) RendererOption {
	return func(r *RodRenderer) {
		r.poolSize = n
	}
}

// WithBrowserBin uses an explicit Chrome/Chromium binary.
func WithBrowserBin(path string) RendererOption {
	return func(r *RodRenderer) {
		r.launch.bin = path
	}
}

// WithNoSandbox disables Chrome's sandbox (containers, CI).
func WithNoSandbox(v bool) RendererOption {
	return func(r *RodRenderer) {
		r.launch.noSandbox = v
	}
}

// WithRendererLogger sets the logger for render diagnostics.
func WithRendererLogger(l *zap.Logger) RendererOption {
	return func(r *RodRenderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// RodRenderer renders HTML to PDF with headless Chrome via go-rod.
// By default every call launches and tears down its own browser.
type RodRenderer struct {
	settleDelay  time.Duration
	readyTimeout time.Duration
	timeout      time.Duration
	poolSize     int
	launch       launchConfig
	logger       *zap.Logger

	pool *browserPool
}

// NewRenderer creates a RodRenderer. No browser is started until the first render.
func NewRenderer(opts ...RendererOption) *RodRenderer {
	r := &RodRenderer{
		settleDelay:  DefaultSettleDelay,
		readyTimeout: DefaultReadyTimeout,
		timeout:      DefaultRenderTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.poolSize > 0 {
		cfg := r.launch
		r.pool = newBrowserPool(r.poolSize, func() (*browserInstance, error) {
			return launchBrowser(cfg)
		})
	}
	return r
}

// RenderToFile loads htmlContent into a fresh page and prints it to path as
// an A4 PDF. The renderer never deletes path; partial files are the caller's.
func (r *RodRenderer) RenderToFile(ctx context.Context, htmlContent, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	inst, release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	healthy := false
	defer func() { release(healthy) }()

	if err := r.renderPage(ctx, inst.browser, htmlContent, path); err != nil {
		healthy = reusableAfterFailure(parent, ctx)
		return err
	}
	healthy = true

	return verifyPDF(path)
}

// renderPage drives one page through load, settle and print.
func (r *RodRenderer) renderPage(ctx context.Context, browser *rod.Browser, htmlContent, path string) error {
	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer closePage(page)

	// Inject markup directly: no navigation, no temp HTML file
	if err := page.SetDocumentContent(markup.InjectCSS(htmlContent, printCSS)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	r.awaitReady(page)

	if err := sleepContext(ctx, r.settleDelay); err != nil {
		return err
	}

	reader, err := page.PDF(pdfOptions())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	return writeStream(reader, path)
}

// reusableAfterFailure reports whether a browser can go back to the pool
// after a failed render. Only the caller's cancellation qualifies: a render
// that hit the renderer's own timeout leaves the browser suspect.
func reusableAfterFailure(parent, renderCtx context.Context) bool {
	return parent.Err() != nil && renderCtx.Err() != nil
}

// closePage closes page even when the render context is already done.
func closePage(page *rod.Page) {
	ctx, cancel := context.WithTimeout(context.Background(), pageCloseTimeout)
	defer cancel()
	_ = page.Context(ctx).Close()
}

// awaitReady waits for web fonts, bounded by readyTimeout.
// A timeout is logged and rendering continues.
func (r *RodRenderer) awaitReady(page *rod.Page) {
	if r.readyTimeout <= 0 {
		return
	}
	start := time.Now()
	if _, err := page.Timeout(r.readyTimeout).Eval(readyScript); err != nil {
		r.logger.Debug("readiness signal not received",
			zap.Duration("waited", time.Since(start)),
			zap.Error(err))
		return
	}
	r.logger.Debug("document ready", zap.Duration("waited", time.Since(start)))
}

// acquire returns a browser and the function that gives it back.
// release(false) discards a pooled browser instead of reusing it.
func (r *RodRenderer) acquire(ctx context.Context) (*browserInstance, func(healthy bool), error) {
	if r.pool != nil {
		inst, err := r.pool.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return inst, func(healthy bool) {
			if healthy {
				r.pool.Release(inst)
				return
			}
			r.pool.Discard(inst)
		}, nil
	}

	inst, err := launchBrowser(r.launch)
	if err != nil {
		return nil, nil, err
	}
	return inst, func(bool) {
		if err := inst.Close(); err != nil {
			r.logger.Warn("closing browser", zap.Error(err))
		}
	}, nil
}

// Close releases pooled browsers. It is a no-op without a pool.
func (r *RodRenderer) Close() error {
	if r.pool != nil {
		return r.pool.Close()
	}
	return nil
}

// pdfOptions returns the print settings: A4, backgrounds on, 20mm margins.
func pdfOptions() *proto.PagePrintToPDF {
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(a4WidthInches),
		PaperHeight:     floatPtr(a4HeightInches),
		MarginTop:       floatPtr(marginInches),
		MarginBottom:    floatPtr(marginInches),
		MarginLeft:      floatPtr(marginInches),
		MarginRight:     floatPtr(marginInches),
		PrintBackground: true,
	}
}

// writeStream copies the PDF stream into path.
func writeStream(r io.Reader, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- path is allocated by Artifact
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWritePDF, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %v", ErrWritePDF, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWritePDF, err)
	}
	return nil
}

// verifyPDF sniffs the written file and rejects anything that is not a PDF.
func verifyPDF(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWritePDF, err)
	}
	if !mtype.Is(pdfMIME) {
		return fmt.Errorf("%w: output is %s, not %s", ErrPDFGeneration, mtype.String(), pdfMIME)
	}
	return nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}

// Compile-time interface check.
var _ Renderer = (*RodRenderer)(nil)
