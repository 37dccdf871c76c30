package propulse

import (
	"errors"
	"fmt"

	"github.com/alnah/propulse/internal/assets"
)

// DegradedExemplarText replaces the style exemplar when no template is installed.
const DegradedExemplarText = "No example provided. Create a professional HTML design from scratch."

// StyleExemplar is the HTML document shown to the model as a style reference.
// It is built once at startup and shared read-only by every generation.
type StyleExemplar struct {
	text     string
	degraded bool
}

// NewStyleExemplar wraps exemplar HTML. Blank text yields the degraded exemplar.
func NewStyleExemplar(text string) StyleExemplar {
	if isBlank(text) {
		return DegradedExemplar()
	}
	return StyleExemplar{text: text}
}

// DegradedExemplar returns the placeholder used when no exemplar is available.
func DegradedExemplar() StyleExemplar {
	return StyleExemplar{text: DegradedExemplarText, degraded: true}
}

// Text returns the exemplar content embedded in prompts.
func (e StyleExemplar) Text() string {
	if e.text == "" {
		return DegradedExemplarText
	}
	return e.text
}

// Degraded reports whether the placeholder is in use.
func (e StyleExemplar) Degraded() bool {
	return e.degraded || e.text == ""
}

// LoadStyleExemplar reads {root}/templates/base.html.
// A missing root or template is not an error: the degraded exemplar is
// returned and generation continues with lower quality output.
func LoadStyleExemplar(root string) (StyleExemplar, error) {
	if root == "" {
		return DegradedExemplar(), nil
	}
	loader, err := assets.NewFilesystemLoader(root)
	if err != nil {
		if errors.Is(err, assets.ErrInvalidBasePath) {
			return DegradedExemplar(), nil
		}
		return StyleExemplar{}, err
	}
	return loadStyleExemplar(loader)
}

// loadStyleExemplar loads the exemplar through any template loader.
func loadStyleExemplar(loader assets.TemplateLoader) (StyleExemplar, error) {
	text, err := loader.LoadTemplate(assets.ExemplarTemplateName)
	if err != nil {
		if errors.Is(err, assets.ErrTemplateNotFound) {
			return DegradedExemplar(), nil
		}
		return StyleExemplar{}, fmt.Errorf("loading style exemplar: %w", err)
	}
	return NewStyleExemplar(text), nil
}
