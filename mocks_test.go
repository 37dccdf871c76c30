package propulse

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// mockCompleter
// ---------------------------------------------------------------------------

type mockCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockCompleter) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// ---------------------------------------------------------------------------
// mockRenderer
// ---------------------------------------------------------------------------

// renderBehavior selects how mockRenderer treats the target path.
type renderBehavior int

const (
	renderWritePDF     renderBehavior = iota // write pdf bytes, succeed
	renderPartialFail                        // write a truncated file, then fail
	renderFailNoFile                         // fail without touching disk
	renderUnreadable                         // create a directory at the path, succeed
)

type mockRenderer struct {
	mu       sync.Mutex
	behavior renderBehavior
	pdf      []byte
	delay    time.Duration
	paths    []string
	htmls    []string
	closed   bool
}

var errMockRender = errors.New("mock browser crashed")

func (m *mockRenderer) RenderToFile(ctx context.Context, htmlContent, path string) error {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.htmls = append(m.htmls, htmlContent)
	m.mu.Unlock()

	if m.delay > 0 {
		if err := sleepContext(ctx, m.delay); err != nil {
			return err
		}
	}

	switch m.behavior {
	case renderPartialFail:
		_ = os.WriteFile(path, []byte("%PDF-1.7 trunc"), 0o600)
		return errMockRender
	case renderFailNoFile:
		return errMockRender
	case renderUnreadable:
		return os.Mkdir(path, 0o700)
	default:
		data := m.pdf
		if data == nil {
			data = []byte(minimalPDF)
		}
		return os.WriteFile(path, data, 0o600)
	}
}

func (m *mockRenderer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockRenderer) renderedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// ---------------------------------------------------------------------------
// recordingObserver
// ---------------------------------------------------------------------------

type recordingObserver struct {
	mu          sync.Mutex
	stages      map[Stage]int
	stageErrors map[Stage]int
	generations int
	failures    int
	cleanups    int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{stages: map[Stage]int{}, stageErrors: map[Stage]int{}}
}

func (o *recordingObserver) ObserveStage(stage Stage, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages[stage]++
	if err != nil {
		o.stageErrors[stage]++
	}
}

func (o *recordingObserver) ObserveGeneration(_ OutputMode, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generations++
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) ObserveCleanup(error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleanups++
}
