// Package docs serves the API reference (OpenAPI document, Swagger UI, ReDoc)
// and the project notes published under /spec.
package docs

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	texttemplate "text/template"
)

// ErrUnknownPage is returned for a page name with no embedded notes.
var ErrUnknownPage = errors.New("unknown page")

//go:embed openapi.json
var openAPI []byte

//go:embed pages/*.md
var pagesFS embed.FS

// Pages lists the note pages in the order they are published.
var Pages = []string{"components", "architecture", "team_sync", "progress_report_template"}

// PageData is interpolated into note pages.
type PageData struct {
	Stations int
}

// OpenAPI returns the OpenAPI document.
func OpenAPI() []byte {
	return openAPI
}

// Page renders the named note as plain markdown.
func Page(name string, data PageData) ([]byte, error) {
	raw, err := fs.ReadFile(pagesFS, path.Join("pages", name+".md"))
	if err != nil {
		return nil, fmt.Errorf("page %q: %w", name, ErrUnknownPage)
	}
	if !bytes.Contains(raw, []byte("{{")) {
		return raw, nil
	}
	tmpl, err := texttemplate.New(name).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse page %q: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render page %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

var uiTemplates = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({url: "{{.SpecURL}}", dom_id: "#swagger-ui", deepLinking: true});
  </script>
</body>
</html>
`))

func init() {
	template.Must(uiTemplates.New("redoc").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
</head>
<body>
  <redoc spec-url="{{.SpecURL}}"></redoc>
  <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>
`))
}

// UI renders the Swagger UI ("swagger") or ReDoc ("redoc") page pointing at specURL.
func UI(kind, title, specURL string) ([]byte, error) {
	var buf bytes.Buffer
	err := uiTemplates.ExecuteTemplate(&buf, strings.ToLower(kind), struct{ Title, SpecURL string }{title, specURL})
	if err != nil {
		return nil, fmt.Errorf("render %s page: %w", kind, err)
	}
	return buf.Bytes(), nil
}
