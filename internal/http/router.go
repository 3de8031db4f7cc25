// Package http wires the authentication flow onto net/http: routing,
// session and stage middleware, form handling and page rendering.
package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AAReynosoG/gateward/internal/captcha"
	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/AAReynosoG/gateward/internal/render"
	"github.com/AAReynosoG/gateward/internal/service"
	"github.com/AAReynosoG/gateward/internal/session"
	"github.com/AAReynosoG/gateward/pkg/httpx"
	"github.com/AAReynosoG/gateward/pkg/slogx"
)

// Router holds shared dependencies for the HTTP handlers.
type Router struct {
	base
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger *slog.Logger

	AccountService *service.AccountService
	AuthService    *service.AuthService
	Captcha        captcha.Verifier

	// paths with a method-specific route get a catch-all fallback so the
	// wrong verb renders the 405 page instead of a bare response.
	fallbacks map[string]bool
}

func NewRouter(sessions *session.Manager, views *render.Renderer, logger *slog.Logger) *Router {
	r := &Router{
		base:      base{Sessions: sessions, Views: views},
		Mux:       http.NewServeMux(),
		logger:    logger,
		fallbacks: make(map[string]bool),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.withSession,
	}
	return r
}

// ServeHTTP implements http.Handler and applies the global middleware
// chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) ApplyRoutes() {
	r.registerPages()
	r.registerAccount()
	r.registerAuth()

	// Everything unmatched is a 404 page.
	r.Mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		r.renderError(w, req, errNotFound, nil)
	})
}

// handle registers a method-bound route plus a same-path fallback that
// renders the 405 page for every other verb.
func (r *Router) handle(method, path string, h http.Handler, mws ...httpx.Middleware) {
	r.Mux.Handle(method+" "+path, httpx.Chain(h, mws...))

	if path == "/" || r.fallbacks[path] {
		return
	}
	r.fallbacks[path] = true
	r.Mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		r.renderError(w, req, errMethodNotAllowed,
			errors.New("method "+req.Method+" not allowed for "+path))
	})
}

func (r *Router) registerPages() {
	h := &PagesHandler{base: r.base, Auth: r.AuthService}

	r.handle("GET", "/{$}", http.HandlerFunc(h.HandleRoot), r.requireGuest)
	r.handle("GET", "/sign_in", http.HandlerFunc(h.HandleSignIn), r.requireGuest)
	r.handle("GET", "/sign_up", http.HandlerFunc(h.HandleSignUp), r.requireGuest)
	r.handle("GET", "/resend/verification_email", http.HandlerFunc(h.HandleResendView), r.requireGuest)

	// Stage pages: single-use token, stage identity match, no caching.
	r.handle("GET", "/email_sent_notice", http.HandlerFunc(h.HandleEmailNotice),
		r.requireGuest, r.requireStage(domain.StageEmailNotice))
	r.handle("GET", "/enable/2fa", http.HandlerFunc(h.HandleEnable2FA),
		r.requireGuest, r.requireStage(domain.StageEnroll))
	r.handle("GET", "/totp/link", http.HandlerFunc(h.HandleTOTPLink),
		r.requireGuest, r.requireStage(domain.StageLink))
	r.handle("GET", "/totp/validation", http.HandlerFunc(h.HandleTOTPChallenge),
		r.requireGuest, r.requireStage(domain.StageChallenge))

	r.handle("GET", "/dashboard", http.HandlerFunc(h.HandleDashboard), r.requireAuth)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{base: r.base, Accounts: r.AccountService, Captcha: r.Captcha}

	r.handle("POST", "/user/store", http.HandlerFunc(h.HandleStore),
		r.requireGuest, r.requireCSRF,
		httpx.RateLimitByIP(httpx.StrictLimit))

	r.handle("GET", "/user/verify-email", http.HandlerFunc(h.HandleVerifyEmail),
		r.requireGuest,
		httpx.RateLimitByIP(httpx.ModerateLimit))

	r.handle("POST", "/user/resend/verification_email", http.HandlerFunc(h.HandleResend),
		r.requireGuest, r.requireCSRF,
		httpx.RateLimitByIP(httpx.ModerateLimit))
}

func (r *Router) registerAuth() {
	h := &AuthHandler{base: r.base, Auth: r.AuthService, Captcha: r.Captcha}

	// Keyed by IP and the email being tried so one address cannot be
	// brute forced from a pool of IPs unnoticed.
	r.handle("POST", "/user/validate/data", http.HandlerFunc(h.HandleValidateData),
		r.requireGuest, r.requireCSRF,
		httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "email"))

	r.handle("POST", "/user/auth", http.HandlerFunc(h.HandleAuthenticate),
		r.requireGuest, r.requireCSRF,
		httpx.RateLimitByIP(httpx.StrictLimit))

	r.handle("POST", "/user/link-authenticator", http.HandlerFunc(h.HandleLinkAuthenticator),
		r.requireGuest, r.requireCSRF,
		httpx.RateLimitByIP(httpx.StrictLimit))

	r.handle("POST", "/logout", http.HandlerFunc(h.HandleLogout),
		r.requireAuth, r.requireCSRF)
}
