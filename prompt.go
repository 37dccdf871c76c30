package propulse

import (
	_ "embed"
	"strings"
	"text/template"
)

// Prompt placeholders for missing proposal fields.
const (
	clientNamePlaceholder = "not informed"
	colorsPlaceholder     = "default colors (blue and gray)"
)

//go:embed prompt.tmpl
var promptTemplateText string

// promptTemplate is a text/template: exemplar HTML must reach the model unescaped.
var promptTemplate = template.Must(template.New("prompt").Parse(promptTemplateText))

// promptData is the view passed to the prompt template.
type promptData struct {
	CompanyName string
	ClientName  string
	Title       string
	Prompt      string
	Colors      string
	Logo        string
	ClientLogo  string
	Exemplar    string
}

// BuildPrompt renders the completion prompt for a proposal.
// The output is deterministic: identical inputs produce identical bytes.
func BuildPrompt(p Proposal, ex StyleExemplar) string {
	data := promptData{
		CompanyName: p.CompanyName,
		ClientName:  p.ClientName,
		Title:       p.Title,
		Prompt:      p.Prompt,
		Colors:      strings.Join(p.Colors, ", "),
		Logo:        p.Logo,
		ClientLogo:  p.ClientLogo,
		Exemplar:    ex.Text(),
	}
	if isBlank(data.ClientName) {
		data.ClientName = clientNamePlaceholder
	}
	if len(p.Colors) == 0 {
		data.Colors = colorsPlaceholder
	}

	var sb strings.Builder
	// Cannot fail: fields are plain strings and the template is parsed at init.
	_ = promptTemplate.Execute(&sb, data)
	return sb.String()
}

// isBlank reports whether s is empty or whitespace only.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
