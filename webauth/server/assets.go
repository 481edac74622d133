package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sort"

	"github.com/Masterminds/sprig/v3"
	"github.com/ccontavalli/webauth/lib/khttp/kassets"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// StaticAssets returns the files served under /css, /js and /images.
func StaticAssets() map[string][]byte {
	return kassets.EmbedSubdirToMapOrPanic(staticFS, "static")
}

// Templates renders the html pages.
type Templates struct {
	template *template.Template
}

// ParseTemplates parses the templates in assets, keyed by file name.
func ParseTemplates(assets map[string][]byte) (*Templates, error) {
	names := make([]string, 0, len(assets))
	for name := range assets {
		names = append(names, name)
	}
	sort.Strings(names)

	root := template.New("").Funcs(sprig.FuncMap())
	for _, name := range names {
		if _, err := root.New(name).Parse(string(assets[name])); err != nil {
			return nil, fmt.Errorf("template %s - %w", name, err)
		}
	}
	return &Templates{template: root}, nil
}

// DefaultTemplates returns the templates compiled in the binary.
func DefaultTemplates() (*Templates, error) {
	return ParseTemplates(kassets.EmbedSubdirToMapOrPanic(templatesFS, "templates"))
}

// Render executes the template name with data, and writes the result to w.
func (t *Templates) Render(w http.ResponseWriter, name string, data interface{}) error {
	var buffer bytes.Buffer
	if err := t.template.ExecuteTemplate(&buffer, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, err := buffer.WriteTo(w)
	return err
}
