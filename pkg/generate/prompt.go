package generate

import (
	"fmt"
	"strings"
	"text/template"
)

// Prompt is a named instruction template.
type Prompt struct {
	tmpl *template.Template
}

// MustPrompt parses text as a prompt template and panics on syntax errors.
// Intended for package-level prompt definitions.
func MustPrompt(name, text string) *Prompt {
	return &Prompt{tmpl: template.Must(template.New(name).Option("missingkey=error").Parse(text))}
}

// Render executes the template with data.
func (p *Prompt) Render(data any) (string, error) {
	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", p.tmpl.Name(), err)
	}
	return b.String(), nil
}
