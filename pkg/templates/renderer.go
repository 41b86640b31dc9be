// Package templates provides the prompt templates for each oracle role and the
// built-in problem catalogue.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed *.tpl.md problems.yaml
var templateFS embed.FS

// TemplateData holds the data for template rendering.
type TemplateData struct {
	Problem  string `json:"problem"`
	Artifact string `json:"artifact,omitempty"`
	Critique string `json:"critique,omitempty"`
}

// PromptTemplate names an embedded template file.
type PromptTemplate string

const (
	GenerateSystemTemplate PromptTemplate = "generate_system.tpl.md"
	GenerateUserTemplate   PromptTemplate = "generate_user.tpl.md"
	RefineSystemTemplate   PromptTemplate = "refine_system.tpl.md"
	RefineUserTemplate     PromptTemplate = "refine_user.tpl.md"
	VerifySystemTemplate   PromptTemplate = "verify_system.tpl.md"
	VerifyUserTemplate     PromptTemplate = "verify_user.tpl.md"
	CorrectSystemTemplate  PromptTemplate = "correct_system.tpl.md"
	CorrectUserTemplate    PromptTemplate = "correct_user.tpl.md"

	// Appended to the system prompt when a structured (JSON) answer is requested.
	GenerationFormatTemplate PromptTemplate = "format_generation.tpl.md"
	CritiqueFormatTemplate   PromptTemplate = "format_critique.tpl.md"
)

// AllTemplates lists every template NewRenderer loads.
//
//nolint:gochecknoglobals // fixed registry
var AllTemplates = []PromptTemplate{
	GenerateSystemTemplate,
	GenerateUserTemplate,
	RefineSystemTemplate,
	RefineUserTemplate,
	VerifySystemTemplate,
	VerifyUserTemplate,
	CorrectSystemTemplate,
	CorrectUserTemplate,
	GenerationFormatTemplate,
	CritiqueFormatTemplate,
}

// Renderer handles prompt template rendering.
type Renderer struct {
	templates map[PromptTemplate]*template.Template
}

// NewRenderer parses all embedded templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[PromptTemplate]*template.Template, len(AllTemplates)),
	}

	for _, name := range AllTemplates {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New(string(name)).Option("missingkey=error").Funcs(template.FuncMap{
			"trim": strings.TrimSpace,
		}).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

// Render renders the specified template with the given data.
func (r *Renderer) Render(templateName PromptTemplate, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}
	if data == nil {
		data = &TemplateData{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
