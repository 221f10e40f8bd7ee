package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names
const (
	TemplateVerifyEmail = "verify_email"
	TemplateWelcome     = "welcome"
)

// TemplateData is what every email template can reference
type TemplateData struct {
	FullName        string
	VerificationURL string
	AppName         string
	AppURL          string
	SupportEmail    string
}

// TemplateRenderer renders the embedded HTML email templates
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses the embedded templates
func NewTemplateRenderer() (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &TemplateRenderer{templates: tmpl}, nil
}

// Render executes the named template
func (r *TemplateRenderer) Render(name string, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
