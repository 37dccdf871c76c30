package assets

// TemplateLoader loads HTML templates by name.
type TemplateLoader interface {
	// LoadTemplate loads a template by name (without the .html extension).
	// Returns ErrTemplateNotFound if it doesn't exist and
	// ErrInvalidAssetName if the name is unsafe.
	LoadTemplate(name string) (string, error)
}

// ExemplarTemplateName is the style exemplar read at startup.
const ExemplarTemplateName = "base"
