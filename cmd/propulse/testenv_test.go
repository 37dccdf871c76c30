package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alnah/propulse"
)

const (
	testPDF  = "%PDF-1.7\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"
	testHTML = "<!DOCTYPE html>\n<html><head><title>Offer</title></head><body><h1>Offer</h1></body></html>"

	testProposalYAML = `title: Website redesign
companyName: Acme Corp
clientName: Jane Doe
prompt: Redesign the corporate website with a modern, accessible look.
colors: ["#112233", "#abc"]
`
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.reply, f.err
}

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) RenderToFile(_ context.Context, _ string, path string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte(testPDF), 0o600)
}

func (f *fakeRenderer) Close() error { return nil }

// testEnv is an Environment with captured output and fake pipeline edges.
type testEnv struct {
	*Environment
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
	outputDir string
	dir       string
	completer *fakeCompleter
	renderer  *fakeRenderer
}

// newTestEnv returns an environment with credentials set, temporary PDFs
// and logs under t.TempDir, and a completer answering testHTML.
func newTestEnv(t *testing.T, extraEnv ...string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	te := &testEnv{
		stdout:    &bytes.Buffer{},
		stderr:    &bytes.Buffer{},
		outputDir: filepath.Join(dir, "temp_pdfs"),
		dir:       dir,
		completer: &fakeCompleter{reply: testHTML},
		renderer:  &fakeRenderer{},
	}

	environ := []string{
		"OPENROUTER_API_KEY=test-key",
		"OPENROUTER_API_BASE=http://127.0.0.1:1/api/v1",
		"PROPULSE_OUTPUT_DIR=" + te.outputDir,
		"PROPULSE_LOG_OUTPUT=" + filepath.Join(dir, "propulse.log"),
		"PROPULSE_SETTLE_DELAY=0s",
	}
	environ = append(environ, extraEnv...)

	te.Environment = &Environment{
		Now:     func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
		Stdout:  te.stdout,
		Stderr:  te.stderr,
		Environ: environ,
		NewCompleter: func(propulse.CompletionConfig) (propulse.Completer, error) {
			return te.completer, nil
		},
		NewRenderer: func(...propulse.RendererOption) propulse.Renderer {
			return te.renderer
		},
		LookBrowser: func() (string, bool) { return "", false },
	}
	return te
}

// writeFile writes content into the test directory and returns its path.
func (te *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(te.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	return path
}

// assertNoArtifacts fails if temporary PDFs were left behind.
func (te *testEnv) assertNoArtifacts(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(te.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("temporary PDFs left behind: %v", names)
	}
}
