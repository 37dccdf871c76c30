//go:build integration

package propulse

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// styledDoc exercises backgrounds and web-safe fonts.
const styledDoc = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Proposal</title>
<style>
  body { font-family: Georgia, serif; background: #0a2540; color: #fff; }
  .cover { height: 250mm; display: flex; align-items: center; justify-content: center; }
  .page { page-break-before: always; background: #fff; color: #222; }
</style>
</head>
<body>
  <section class="cover"><h1>Website Redesign</h1></section>
  <section class="page"><h2>Scope</h2><p>Discovery, design and delivery.</p></section>
</body>
</html>`

// assertPDF fails unless path holds a non-trivial PDF.
func assertPDF(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if mtype := mimetype.Detect(data); !mtype.Is(pdfMIME) {
		t.Fatalf("output MIME = %s, want %s", mtype, pdfMIME)
	}
	if len(data) < 1000 {
		t.Errorf("PDF is suspiciously small: %d bytes", len(data))
	}
	return data
}

// ---------------------------------------------------------------------------
// TestRodRenderer_Integration - real Chrome rendering
// ---------------------------------------------------------------------------

func TestRodRenderer_Integration_Fresh(t *testing.T) {
	t.Parallel()

	r := NewRenderer(WithSettleDelay(100*time.Millisecond), WithRenderTimeout(testTimeout))
	defer r.Close()

	path := filepath.Join(t.TempDir(), "fresh.pdf")
	if err := r.RenderToFile(context.Background(), styledDoc, path); err != nil {
		t.Fatalf("RenderToFile() error = %v", err)
	}
	assertPDF(t, path)
}

func TestRodRenderer_Integration_PooledConcurrent(t *testing.T) {
	t.Parallel()

	const renders = 6
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 2*testTimeout)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, renders)
	for i := range renders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := filepath.Join(dir, string(rune('a'+i))+".pdf")
			errs <- testRenderer.RenderToFile(ctx, styledDoc, path)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("RenderToFile() error = %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		assertPDF(t, filepath.Join(dir, e.Name()))
	}
}

func TestRodRenderer_Integration_Cancelled(t *testing.T) {
	t.Parallel()

	r := NewRenderer(WithSettleDelay(10*time.Second), WithRenderTimeout(testTimeout))
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := r.RenderToFile(ctx, styledDoc, filepath.Join(t.TempDir(), "late.pdf"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RenderToFile() error = %v, want context.DeadlineExceeded", err)
	}
}

// ---------------------------------------------------------------------------
// TestPipeline_Integration - both delivery modes against real Chrome
// ---------------------------------------------------------------------------

func TestPipeline_Integration(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	p, err := NewPipeline(&mockCompleter{reply: "```html\n" + styledDoc + "\n```"}, testRenderer, DegradedExemplar(),
		WithOutputDir(outDir))
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	prop := Proposal{Title: "Website redesign", CompanyName: "Acme Corp"}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	t.Run("binary", func(t *testing.T) {
		doc, err := p.GenerateFile(ctx, prop)
		if err != nil {
			t.Fatalf("GenerateFile() error = %v", err)
		}
		path := doc.Path()
		assertPDF(t, path)

		var buf bytes.Buffer
		if _, err := doc.WriteTo(&buf); err != nil {
			t.Fatalf("WriteTo() error = %v", err)
		}
		if err := doc.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("artifact still present after Close: %v", err)
		}
		if !mimetype.Detect(buf.Bytes()).Is(pdfMIME) {
			t.Error("streamed bytes are not a PDF")
		}
	})

	t.Run("inline", func(t *testing.T) {
		res, err := p.GenerateInline(ctx, prop)
		if err != nil {
			t.Fatalf("GenerateInline() error = %v", err)
		}
		data, err := base64.StdEncoding.DecodeString(res.PDFBase64)
		if err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if !mimetype.Detect(data).Is(pdfMIME) {
			t.Error("inline payload is not a PDF")
		}
	})

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("output directory not empty: %d entries", len(entries))
	}
}
