package briefings

import (
	"embed"
	"html/template"

	"github.com/jimdaga/briefdesk/internal/export"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates parses the HTML fragments served to HTMX requests. Pass the
// result to gin's Engine.SetHTMLTemplate.
func Templates() (*template.Template, error) {
	return template.New("").
		Funcs(template.FuncMap{"amount": export.FormatAmount}).
		ParseFS(templatesFS, "templates/*.html")
}

// MustTemplates is like Templates but panics on a parse error.
func MustTemplates() *template.Template {
	return template.Must(Templates())
}
