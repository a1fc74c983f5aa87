package websvc

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/mkrupp/itemcatalog/internal/domain"
	context_ "github.com/mkrupp/itemcatalog/internal/infra/context"
)

const (
	layoutTemplate  = "templates/layout.html"
	partialsPattern = "templates/partials/*.html"
	partialsDir     = "templates/partials"
)

//go:embed templates
var templateFS embed.FS

// page is the data every template receives.
type page struct {
	Title          string
	Actor          *domain.User
	Flashes        []Flash
	GoogleClientID string
	Form           any
	Errors         FieldErrors
	Data           any
}

// renderer holds one template set per page, each combined with the layout.
type renderer struct {
	pages map[string]*template.Template
}

//nolint:gochecknoglobals
var templateFuncs = template.FuncMap{
	"avatarURL": func(name string) string {
		return "/static/avatars/" + name
	},
}

func newRenderer() (*renderer, error) {
	r := &renderer{pages: map[string]*template.Template{}}

	err := fs.WalkDir(templateFS, "templates", func(name string, entry fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case entry.IsDir() && name == partialsDir:
			return fs.SkipDir
		case entry.IsDir() || name == layoutTemplate || path.Ext(name) != ".html":
			return nil
		}

		tmpl, err := template.New(path.Base(layoutTemplate)).
			Funcs(templateFuncs).
			ParseFS(templateFS, layoutTemplate, partialsPattern, name)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}

		r.pages[strings.TrimPrefix(name, "templates/")] = tmpl

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	return r, nil
}

// render writes the named page. Pending flash messages are consumed. The page is
// rendered to a buffer first so template errors still yield a clean 500.
func (ht *HTTPTransport) render(w http.ResponseWriter, r *http.Request, name string, p page) error {
	tmpl, ok := ht.pages.pages[name]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	p.Actor, _ = context_.ActorFromContext(r.Context())
	p.GoogleClientID = ht.cfg.GoogleClientID

	if p.Errors == nil {
		p.Errors = FieldErrors{}
	}

	p.Flashes = readFlashes(r)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return fmt.Errorf("execute %s: %w", name, err)
	}

	if len(p.Flashes) > 0 {
		clearFlashes(w)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	return nil
}
