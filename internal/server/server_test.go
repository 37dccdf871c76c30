package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alnah/propulse"
)

const (
	testPDF  = "%PDF-1.7\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"
	testHTML = "<!DOCTYPE html>\n<html><head><title>P</title></head><body><h1>Offer</h1></body></html>"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.reply, s.err
}

type stubRenderer struct {
	// unreadable creates a directory at the target path so streaming fails.
	unreadable bool
}

func (s *stubRenderer) RenderToFile(_ context.Context, _ string, path string) error {
	if s.unreadable {
		return os.Mkdir(path, 0o700)
	}
	return os.WriteFile(path, []byte(testPDF), 0o600)
}

func (s *stubRenderer) Close() error { return nil }

type fixture struct {
	srv    *Server
	outDir string
}

func newFixture(t *testing.T, c propulse.Completer, r propulse.Renderer, ex propulse.StyleExemplar, opts ...Option) fixture {
	t.Helper()
	dir := t.TempDir()
	p, err := propulse.NewPipeline(c, r, ex, propulse.WithOutputDir(dir))
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return fixture{srv: New(p, opts...), outDir: dir}
}

func (f fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f fixture) assertNoArtifacts(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.outDir)
	if err != nil {
		t.Fatalf("reading output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("output dir holds %d entries, want 0", len(entries))
	}
}

const validBody = `{
  "title": "Website Redesign",
  "companyName": "Acme Corp",
  "clientName": "Globex",
  "prompt": "Redesign the corporate website with a modern look.",
  "colors": ["#003366", "#fff"],
  "logo": "https://acme.example/logo.png"
}`

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

// ---------------------------------------------------------------------------
// GET /healthz
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		exemplar propulse.StyleExemplar
		want     string
	}{
		{"loaded", propulse.NewStyleExemplar("<html>sample</html>"), "loaded"},
		{"degraded", propulse.DegradedExemplar(), "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, &stubCompleter{reply: testHTML}, &stubRenderer{}, tt.exemplar)
			rec := f.do(t, http.MethodGet, "/healthz", "")

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var body healthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != "ok" || body.Exemplar != tt.want {
				t.Errorf("body = %+v, want exemplar %q", body, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// POST /proposals/generate
// ---------------------------------------------------------------------------

func TestGenerate_Binary(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCompleter{reply: testHTML}, &stubRenderer{}, propulse.DegradedExemplar())
	rec := f.do(t, http.MethodPost, "/proposals/generate", validBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="proposal_Acme_Corp.pdf"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != testPDF {
		t.Errorf("body = %q, want PDF bytes", rec.Body.String())
	}
	f.assertNoArtifacts(t)
}

func TestGenerate_Inline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCompleter{reply: testHTML}, &stubRenderer{}, propulse.DegradedExemplar())
	rec := f.do(t, http.MethodPost, "/proposals/generate?mode=inline", validBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["html"] != testHTML {
		t.Errorf("html = %q", body["html"])
	}
	pdf, err := base64.StdEncoding.DecodeString(body["pdf_base64"])
	if err != nil {
		t.Fatalf("pdf_base64: %v", err)
	}
	if !bytes.Equal(pdf, []byte(testPDF)) {
		t.Error("decoded PDF differs from rendered bytes")
	}
	f.assertNoArtifacts(t)
}

func TestGenerate_BadRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"unknown mode", "/proposals/generate?mode=zip", validBody},
		{"malformed JSON", "/proposals/generate", `{"title": `},
		{"wrong type", "/proposals/generate", `{"title": 12}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, &stubCompleter{reply: testHTML}, &stubRenderer{}, propulse.DegradedExemplar())
			rec := f.do(t, http.MethodPost, tt.target, tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decodeError(t, rec); body.Code != CodeBadRequest {
				t.Errorf("code = %q", body.Code)
			}
		})
	}
}

func TestGenerate_ValidationFailed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantField string
		wantRule  string
	}{
		{
			name:      "title too short",
			body:      `{"title":"Hi","companyName":"Acme","prompt":"Twenty characters at least here"}`,
			wantField: "title",
			wantRule:  "min",
		},
		{
			name:      "missing company",
			body:      `{"title":"Website","prompt":"Twenty characters at least here"}`,
			wantField: "companyName",
			wantRule:  "required",
		},
		{
			name:      "short prompt",
			body:      `{"title":"Website","companyName":"Acme","prompt":"too short"}`,
			wantField: "prompt",
			wantRule:  "min",
		},
		{
			name:      "four digit color",
			body:      `{"title":"Website","companyName":"Acme","prompt":"Twenty characters at least here","colors":["#abcd"]}`,
			wantField: "colors[0]",
			wantRule:  "hexcolor",
		},
		{
			name:      "logo not a URL",
			body:      `{"title":"Website","companyName":"Acme","prompt":"Twenty characters at least here","logo":"logo.png"}`,
			wantField: "logo",
			wantRule:  "url",
		},
		{
			name:      "unknown status",
			body:      `{"title":"Website","companyName":"Acme","prompt":"Twenty characters at least here","status":"archived"}`,
			wantField: "status",
			wantRule:  "oneof",
		},
		{
			name:      "bad id",
			body:      `{"id":"42","title":"Website","companyName":"Acme","prompt":"Twenty characters at least here"}`,
			wantField: "id",
			wantRule:  "uuid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			comp := &stubCompleter{reply: testHTML}
			f := newFixture(t, comp, &stubRenderer{}, propulse.DegradedExemplar())
			rec := f.do(t, http.MethodPost, "/proposals/generate", tt.body)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422; body = %s", rec.Code, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Code != CodeValidationFailed {
				t.Errorf("code = %q", body.Code)
			}
			found := false
			for _, fe := range body.Fields {
				if fe.Field == tt.wantField && fe.Rule == tt.wantRule {
					found = true
				}
			}
			if !found {
				t.Errorf("fields = %+v, want %s/%s", body.Fields, tt.wantField, tt.wantRule)
			}
		})
	}
}

func TestGenerate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		comp     *stubCompleter
		renderer *stubRenderer
		mode     string
	}{
		{"completion failure binary", &stubCompleter{err: errors.New("upstream 503")}, &stubRenderer{}, "binary"},
		{"completion failure inline", &stubCompleter{err: errors.New("upstream 503")}, &stubRenderer{}, "inline"},
		{"empty completion", &stubCompleter{reply: ""}, &stubRenderer{}, "binary"},
		{"read failure binary", &stubCompleter{reply: testHTML}, &stubRenderer{unreadable: true}, "binary"},
		{"read failure inline", &stubCompleter{reply: testHTML}, &stubRenderer{unreadable: true}, "inline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.comp, tt.renderer, propulse.DegradedExemplar())
			rec := f.do(t, http.MethodPost, "/proposals/generate?mode="+tt.mode, validBody)

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500; body = %s", rec.Code, rec.Body.String())
			}
			if cd := rec.Header().Get("Content-Disposition"); cd != "" {
				t.Errorf("Content-Disposition = %q on error response", cd)
			}
			body := decodeError(t, rec)
			if body.Code != CodeGenerationFailed {
				t.Errorf("code = %q", body.Code)
			}
			if !strings.HasPrefix(body.Error, "generation failed") {
				t.Errorf("error = %q", body.Error)
			}
			f.assertNoArtifacts(t)
		})
	}
}

// Notes:
//   - Drives a real OpenAI-compatible completer against a fake provider that
//     answers 401 with provider-internal metadata. The 500 body keeps a
//     readable summary only.
func TestGenerate_ProviderErrorBody(t *testing.T) {
	t.Parallel()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"No auth credentials found","code":401,"metadata":{"internal_trace":"abc123"}}}`)
	}))
	t.Cleanup(provider.Close)

	cfg := propulse.DefaultCompletionConfig()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = provider.URL + "/api/v1/"
	comp, err := propulse.NewCompleter(cfg)
	if err != nil {
		t.Fatalf("NewCompleter() error = %v", err)
	}

	for _, mode := range []string{"binary", "inline"} {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, comp, &stubRenderer{}, propulse.DegradedExemplar())
			rec := f.do(t, http.MethodPost, "/proposals/generate?mode="+mode, validBody)

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500; body = %s", rec.Code, rec.Body.String())
			}
			body := decodeError(t, rec)
			if !strings.Contains(body.Error, "401 Unauthorized") || !strings.Contains(body.Error, "No auth credentials found") {
				t.Errorf("error = %q, want status and provider message", body.Error)
			}
			for _, leak := range []string{provider.URL, "chat/completions", "internal_trace", "abc123"} {
				if strings.Contains(body.Error, leak) {
					t.Errorf("error = %q, must not contain %q", body.Error, leak)
				}
			}
			f.assertNoArtifacts(t)
		})
	}
}

// ---------------------------------------------------------------------------
// GET /metrics
// ---------------------------------------------------------------------------

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "propulse_generations_total 0\n")
	})

	f := newFixture(t, &stubCompleter{reply: testHTML}, &stubRenderer{}, propulse.DegradedExemplar(),
		WithMetricsHandler(metrics))
	rec := f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "propulse_generations_total") {
		t.Errorf("GET /metrics = %d %q", rec.Code, rec.Body.String())
	}

	bare := newFixture(t, &stubCompleter{reply: testHTML}, &stubRenderer{}, propulse.DegradedExemplar())
	if rec := bare.do(t, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without handler = %d, want 404", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Serve
// ---------------------------------------------------------------------------

func TestServe_GracefulShutdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCompleter{reply: testHTML}, &stubRenderer{}, propulse.DegradedExemplar())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln, 2*time.Second) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}
}

func TestToProposal_Defaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	req := generateRequest{Title: " Site ", CompanyName: "Acme"}
	prop := req.toProposal(now)

	if prop.Status != propulse.StatusDraft {
		t.Errorf("Status = %q, want draft", prop.Status)
	}
	if prop.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("ID not generated")
	}
	if prop.Title != "Site" || !prop.CreatedAt.Equal(now) {
		t.Errorf("prop = %+v", prop)
	}

	req.ID = "6f1c1c1e-8d7b-4f0e-9b7a-2b1f7f3a9c01"
	if got := req.toProposal(now).ID.String(); got != req.ID {
		t.Errorf("ID = %q, want %q", got, req.ID)
	}
}
