// Package render draws the HTML pages of the authentication flow from
// embedded templates.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/AAReynosoG/gateward/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names accepted by Render. Each corresponds to a template under
// templates/ sharing the base layout.
const (
	PageSignIn      = "sign_in"
	PageSignUp      = "sign_up"
	PageResend      = "resend"
	PageEmailNotice = "email_notice"
	PageEnroll2FA   = "enable_2fa"
	PageLink        = "totp_link"
	PageChallenge   = "totp_challenge"
	PageDashboard   = "dashboard"
	PageError       = "error"
)

var pages = []string{
	PageSignIn, PageSignUp, PageResend, PageEmailNotice,
	PageEnroll2FA, PageLink, PageChallenge, PageDashboard, PageError,
}

// Data carries everything a page can show. Unused fields stay zero.
type Data struct {
	Title     string
	CSRFToken string
	Flash     domain.Flash

	// Errors maps field names to validation messages; Values echoes
	// submitted form values back into inputs.
	Errors map[string]string
	Values map[string]string

	// Enrollment page payload, shown exactly once.
	QRCodeDataURI template.URL
	SecretKey     string

	// Error page payload.
	ErrorID      string
	ErrorMessage string

	Email string
}

// FieldError returns the validation message for a field, if any.
func (d Data) FieldError(name string) string { return d.Errors[name] }

// Value returns the echoed form value for a field.
func (d Data) Value(name string) string { return d.Values[name] }

// Renderer executes one parsed template set per page.
type Renderer struct {
	templates map[string]*template.Template
}

func New() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		t, err := template.ParseFS(templateFS,
			"templates/layout.html",
			fmt.Sprintf("templates/%s.html", page),
		)
		if err != nil {
			return nil, fmt.Errorf("render: parse %s: %w", page, err)
		}
		r.templates[page] = t
	}
	return r, nil
}

// Render writes the page with the given status. A missing page name is a
// programming error and panics during development rather than failing
// quietly.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Data) {
	t, ok := r.templates[page]
	if !ok {
		panic(fmt.Sprintf("render: unknown page %q", page))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		// Headers are gone at this point; nothing to do but drop it.
		_ = err
	}
}

// RenderTo executes a page into an arbitrary writer, used by tests.
func (r *Renderer) RenderTo(w io.Writer, page string, data Data) error {
	t, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("render: unknown page %q", page)
	}
	return t.ExecuteTemplate(w, "layout", data)
}
