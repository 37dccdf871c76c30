package propulse

import (
	"context"
	"fmt"
	"strings"

	"github.com/alnah/propulse/internal/markup"
)

// ExtractMode selects how strictly raw completion text is checked before rendering.
type ExtractMode string

// Extraction modes.
const (
	// ExtractRepair trims prose and code fences, fixes a missing doctype and
	// converts Markdown replies to HTML.
	ExtractRepair ExtractMode = "repair"
	// ExtractStrict rejects anything that is not exactly one HTML document.
	ExtractStrict ExtractMode = "strict"
	// ExtractPassthrough forwards the raw text unchanged.
	ExtractPassthrough ExtractMode = "passthrough"
)

// DefaultExtractMode is used when no mode is configured.
const DefaultExtractMode = ExtractRepair

// ParseExtractMode parses a mode name. Empty means DefaultExtractMode.
func ParseExtractMode(s string) (ExtractMode, error) {
	switch ExtractMode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultExtractMode, nil
	case ExtractRepair:
		return ExtractRepair, nil
	case ExtractStrict:
		return ExtractStrict, nil
	case ExtractPassthrough:
		return ExtractPassthrough, nil
	default:
		return "", fmt.Errorf("%w: %q (must be repair, strict or passthrough)", ErrInvalidExtractMode, s)
	}
}

// DocumentStatus describes what extraction did to the raw text.
type DocumentStatus string

// Document statuses.
const (
	// DocumentValid means the text already was one complete HTML document.
	DocumentValid DocumentStatus = "valid"
	// DocumentUnchecked means the text was forwarded without meeting the contract.
	DocumentUnchecked DocumentStatus = "unchecked"
	// DocumentRepaired means the text was modified to form a complete document.
	DocumentRepaired DocumentStatus = "repaired"
)

// Extraction is the result of ExtractHTML.
type Extraction struct {
	HTML        string
	Status      DocumentStatus
	Diagnostics []string
}

const closingHTML = "</html>"

// markdownConverter is shared; goldmark instances are safe for concurrent use.
var markdownConverter = markup.NewMarkdownConverter()

// ExtractHTML turns raw completion text into an HTML document ready to render.
// It never touches the network or the filesystem.
func ExtractHTML(raw string, mode ExtractMode) (Extraction, error) {
	switch mode {
	case ExtractPassthrough:
		return extractPassthrough(raw), nil
	case ExtractStrict:
		return extractStrict(raw)
	case ExtractRepair, "":
		return extractRepair(raw)
	default:
		return Extraction{}, fmt.Errorf("%w: %q", ErrInvalidExtractMode, mode)
	}
}

// isCompleteDocument reports whether s starts with the doctype and ends with </html>.
func isCompleteDocument(s string) bool {
	return hasPrefixFold(s, markup.Doctype) && hasSuffixFold(s, closingHTML)
}

func extractPassthrough(raw string) Extraction {
	if isCompleteDocument(raw) {
		return Extraction{HTML: raw, Status: DocumentValid}
	}
	return Extraction{
		HTML:        raw,
		Status:      DocumentUnchecked,
		Diagnostics: boundaryDiagnostics(raw),
	}
}

func extractStrict(raw string) (Extraction, error) {
	trimmed := strings.TrimSpace(raw)
	if !isCompleteDocument(trimmed) {
		diags := boundaryDiagnostics(trimmed)
		return Extraction{Status: DocumentUnchecked, Diagnostics: diags},
			fmt.Errorf("%w: %s", ErrMalformedDocument, strings.Join(diags, "; "))
	}
	return Extraction{HTML: trimmed, Status: DocumentValid, Diagnostics: structureDiagnostics(trimmed)}, nil
}

func extractRepair(raw string) (Extraction, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Extraction{}, fmt.Errorf("%w: empty completion", ErrMalformedDocument)
	}
	if isCompleteDocument(trimmed) {
		return Extraction{HTML: trimmed, Status: DocumentValid, Diagnostics: structureDiagnostics(trimmed)}, nil
	}

	var diags []string
	start := indexFold(trimmed, markup.Doctype)
	if start < 0 {
		start = indexFold(trimmed, "<html")
	}

	switch {
	case start >= 0:
		doc := trimmed[start:]
		if start > 0 {
			diags = append(diags, fmt.Sprintf("removed %d bytes before the document", start))
		}
		if end := lastIndexFold(doc, closingHTML); end >= 0 {
			cut := end + len(closingHTML)
			if cut < len(doc) {
				diags = append(diags, fmt.Sprintf("removed %d bytes after </html>", len(doc)-cut))
			}
			doc = doc[:cut]
		} else {
			doc += "\n" + closingHTML
			diags = append(diags, "appended missing </html>")
		}
		if !hasPrefixFold(doc, markup.Doctype) {
			doc = markup.Doctype + "\n" + doc
			diags = append(diags, "added missing doctype")
		}
		diags = append(diags, structureDiagnostics(doc)...)
		return Extraction{HTML: doc, Status: DocumentRepaired, Diagnostics: diags}, nil

	case markup.HasElements(stripCodeFences(trimmed)):
		doc, err := markup.WrapFragment(stripCodeFences(trimmed))
		if err != nil {
			return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		diags = append(diags, "wrapped HTML fragment in a document")
		return Extraction{HTML: doc, Status: DocumentRepaired, Diagnostics: diags}, nil

	default:
		doc, err := markdownConverter.ToHTML(context.Background(), firstLine(trimmed), trimmed)
		if err != nil {
			return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		diags = append(diags, "converted Markdown reply to HTML")
		return Extraction{HTML: doc, Status: DocumentRepaired, Diagnostics: diags}, nil
	}
}

// boundaryDiagnostics explains why s fails the document boundary contract.
func boundaryDiagnostics(s string) []string {
	var diags []string
	if strings.TrimSpace(s) == "" {
		return []string{"document is empty"}
	}
	if !hasPrefixFold(s, markup.Doctype) {
		diags = append(diags, fmt.Sprintf("does not begin with %s (starts with %q)", markup.Doctype, preview(s, false)))
	}
	if !hasSuffixFold(s, closingHTML) {
		diags = append(diags, fmt.Sprintf("does not end with %s (ends with %q)", closingHTML, preview(s, true)))
	}
	return diags
}

// structureDiagnostics reports missing structural elements in a bounded document.
// These are warnings: browsers synthesize missing head and body elements.
func structureDiagnostics(doc string) []string {
	s := markup.Inspect(doc)
	var diags []string
	if !s.HasHead {
		diags = append(diags, "document has no <head>")
	}
	if !s.HasBody {
		diags = append(diags, "document has no <body>")
	}
	return diags
}

// stripCodeFences removes a surrounding ``` fence (with optional language tag).
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// firstLine returns the first line of s without Markdown heading markers.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(strings.TrimLeft(line, "# "))
}

// preview returns up to 40 bytes from the start (or end) of s.
func preview(s string, fromEnd bool) string {
	const n = 40
	if len(s) <= n {
		return s
	}
	if fromEnd {
		return s[len(s)-n:]
	}
	return s[:n]
}

// The fold helpers below match ASCII case-insensitively on raw bytes.
// Offsets always index the original string: Unicode case mapping can change
// byte lengths, and the markers searched for are ASCII.

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && equalFoldASCII(s[:len(prefix)], prefix)
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && equalFoldASCII(s[len(s)-len(suffix):], suffix)
}

// indexFold returns the byte offset of the first match of substr in s, or -1.
func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if equalFoldASCII(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

// lastIndexFold returns the byte offset of the last match of substr in s, or -1.
func lastIndexFold(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if equalFoldASCII(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

// equalFoldASCII compares equal-length strings, folding only ASCII letters.
func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
