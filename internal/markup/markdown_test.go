package markup

import (
	"context"
	"strings"
	"testing"
)

func TestMarkdownConverter_ToHTML(t *testing.T) {
	t.Parallel()

	conv := NewMarkdownConverter()

	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{
			name:     "heading",
			input:    "# Our Solution",
			contains: []string{"<h1", "Our Solution</h1>"},
		},
		{
			name:     "GFM table",
			input:    "| Phase | Weeks |\n|---|---|\n| Discovery | 2 |",
			contains: []string{"<table>", "<td>Discovery</td>"},
		},
		{
			name:     "fenced code uses classes",
			input:    "```go\nfunc main() {}\n```",
			contains: []string{`class="chroma"`},
		},
		{
			name:     "raw HTML is not passed through",
			input:    "<script>alert(1)</script>\n\ntext",
			contains: []string{"<!-- raw HTML omitted -->"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := conv.ToHTML(context.Background(), "Proposal", tt.input)
			if err != nil {
				t.Fatalf("ToHTML() error = %v", err)
			}
			if !strings.HasPrefix(got, Doctype) {
				t.Errorf("ToHTML() should start with doctype, got %q", got[:min(40, len(got))])
			}
			if !strings.HasSuffix(got, "</html>") {
				t.Error("ToHTML() should end with </html>")
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("ToHTML() missing %q", want)
				}
			}
		})
	}
}

func TestMarkdownConverter_ToHTML_EscapesTitle(t *testing.T) {
	t.Parallel()

	got, err := NewMarkdownConverter().ToHTML(context.Background(), "A & <B>", "body")
	if err != nil {
		t.Fatalf("ToHTML() error = %v", err)
	}
	if !strings.Contains(got, "<title>A &amp; &lt;B&gt;</title>") {
		t.Errorf("title not escaped in %q", got)
	}
}

func TestMarkdownConverter_ToHTML_IncludesHighlightCSS(t *testing.T) {
	t.Parallel()

	got, err := NewMarkdownConverter().ToHTML(context.Background(), "x", "text")
	if err != nil {
		t.Fatalf("ToHTML() error = %v", err)
	}
	if !strings.Contains(got, ".chroma") {
		t.Error("expected chroma stylesheet in document head")
	}
}

func TestMarkdownConverter_ToHTML_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMarkdownConverter().ToHTML(ctx, "x", "# Title")
	if err != context.Canceled {
		t.Errorf("ToHTML() error = %v, want context.Canceled", err)
	}
}

func TestPreprocessMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "CRLF normalized", input: "a\r\nb", want: "a\nb\n"},
		{name: "CR normalized", input: "a\rb", want: "a\nb\n"},
		{name: "blank lines compressed", input: "a\n\n\n\nb", want: "a\n\nb\n"},
		{name: "surrounding space trimmed", input: "\n\n  a  \n\n", want: "a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := preprocessMarkdown(tt.input); got != tt.want {
				t.Errorf("preprocessMarkdown(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
