package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"

	"cashboxes/internal/core"
	applog "cashboxes/internal/log"
)

// Page templates. Each is parsed together with layout.html and may define a
// "list" block that is rendered alone for htmx requests.
const (
	pageOverview     = "index.html"
	pageCashBoxes    = "boxes.html"
	pageInvoices     = "invoices.html"
	pageTransactions = "transactions.html"
	pageSubmit       = "submit.html"
	pageUsers        = "users.html"
)

var templateFuncs = template.FuncMap{
	"euro": func(e core.Euro) string { return e.String() },
	"date": func(d core.Date) string { return d.String() },
	"displayName": func(u core.User) string { return u.DisplayName() },
	"boxURL": func(name string, rest ...string) string {
		parts := make([]string, len(rest))
		for i, p := range rest {
			parts[i] = url.PathEscape(p)
		}
		return "/box/" + url.PathEscape(name) + "/" + strings.Join(parts, "/")
	},
	"fileURL":  func(name string) string { return "/files/" + url.PathEscape(name) },
	"cashFlow": func(k core.TransactionKind) bool { return k == core.KindCashFlow },
}

func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	base, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout template: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{pageOverview, pageCashBoxes, pageInvoices, pageTransactions, pageSubmit, pageUsers} {
		t, err := template.Must(base.Clone()).ParseFS(fsys, path.Join("templates", name))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// pageData is what every page template receives.
type pageData struct {
	Title   string
	User    core.User
	Content any
}

// render writes page with status. htmx requests get only the "list" block
// when the page defines one.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	s.renderWith(w, r, NewHTMXResponse(), status, page, data)
}

// renderWith is render with a caller-prepared response, e.g. one carrying
// HX-Trigger events.
func (s *Server) renderWith(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, status int, page string, data pageData) {
	t, ok := s.templates[page]
	if !ok {
		s.serverError(w, r, fmt.Errorf("template %s not loaded", page))
		return
	}

	name := "layout.html"
	if isHTMX(r) && t.Lookup("list") != nil {
		name = "list"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).Error("Template execution failed",
			applog.FieldOperation, applog.OpRender, "template", page, applog.FieldError, err)
		InternalServerError("Rendering failed").Write(w)
		return
	}

	resp.
		Status(status).
		Header("Content-Type", "text/html; charset=utf-8").
		Body(buf.Bytes()).
		Write(w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
