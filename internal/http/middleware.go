package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/AAReynosoG/gateward/internal/session"
	"github.com/AAReynosoG/gateward/pkg/httpx"
)

type ctxKey int

const ctxKeySession ctxKey = iota

// sessionFrom returns the request session injected by withSession.
func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(ctxKeySession).(*session.Session)
	return s
}

// withSession resolves (or starts) the browser session and makes it
// available to every downstream handler.
func (r *Router) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sess, err := r.Sessions.Load(req.Context(), w, req)
		if err != nil {
			r.renderError(w, req, errInternal, err)
			return
		}
		ctx := context.WithValue(req.Context(), ctxKeySession, sess)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// requireGuest bounces signed-in users to the dashboard.
func (r *Router) requireGuest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if sess := sessionFrom(req.Context()); sess != nil && sess.Authenticated() {
			http.Redirect(w, req, "/dashboard", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// requireAuth bounces anonymous users to the sign-in page.
func (r *Router) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if sess := sessionFrom(req.Context()); sess == nil || !sess.Authenticated() {
			http.Redirect(w, req, "/sign_in", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// requireStage gates a stage page behind its single-use token. The token
// must match the stage it was armed for and is consumed before the page
// renders; a request without one goes to the dashboard, which sorts the
// browser out from there. Stage pages are never cacheable.
func (r *Router) requireStage(stage domain.FlowStage) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := sessionFrom(req.Context())
			if sess == nil || !sess.Flow.Token || sess.Flow.Stage != stage {
				http.Redirect(w, req, "/dashboard", http.StatusSeeOther)
				return
			}

			sess.Flow.Token = false
			if err := r.Sessions.Save(req.Context(), sess); err != nil {
				r.renderError(w, req, errInternal, err)
				return
			}

			httpx.NoCache(w)
			next.ServeHTTP(w, req)
		})
	}
}

// requireCSRF compares the hidden _token form field against the session's
// token. A mismatch renders the 419 page, mirroring an expired form.
func (r *Router) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sess := sessionFrom(req.Context())
		token := req.PostFormValue("_token")
		if sess == nil || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(sess.CSRFToken)) != 1 {
			r.renderError(w, req, errTokenMismatch, errors.New("csrf token mismatch"))
			return
		}
		next.ServeHTTP(w, req)
	})
}
