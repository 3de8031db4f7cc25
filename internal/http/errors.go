package http

import (
	"net/http"

	"github.com/AAReynosoG/gateward/internal/render"
	"github.com/AAReynosoG/gateward/internal/session"
	"github.com/AAReynosoG/gateward/pkg/slogx"
)

// httpError is a catalog entry rendered on the generic error page. The
// identifier is stable and shown to the user; the real cause only goes to
// the log.
type httpError struct {
	status  int
	id      string
	message string
}

var (
	errNotFound = httpError{
		status:  http.StatusNotFound,
		id:      "GWERR404",
		message: "The page you are looking for could not be found.",
	}
	errMethodNotAllowed = httpError{
		status:  http.StatusMethodNotAllowed,
		id:      "GWERR405",
		message: "The method is not allowed for the requested URL.",
	}
	errTokenMismatch = httpError{
		status:  419,
		id:      "GWERR419",
		message: "Your session has expired. Please refresh and try again.",
	}
	errInternal = httpError{
		status:  http.StatusInternalServerError,
		id:      "GWERR500",
		message: "An unexpected error occurred. Please try again later.",
	}
)

// base carries the dependencies every handler shares.
type base struct {
	Sessions *session.Manager
	Views    *render.Renderer
}

func (b base) renderError(w http.ResponseWriter, req *http.Request, he httpError, cause error) {
	log := slogx.FromContext(req.Context())
	if he.status >= 500 {
		log.Error("request failed", "identifier", he.id, "error", cause)
	} else if cause != nil {
		log.Warn("request rejected", "identifier", he.id, "error", cause)
	}

	b.Views.Render(w, he.status, render.PageError, render.Data{
		Title:        "Error",
		ErrorID:      he.id,
		ErrorMessage: he.message,
	})
}
