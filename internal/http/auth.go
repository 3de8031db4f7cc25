package http

import (
	"errors"
	"net/http"

	"github.com/AAReynosoG/gateward/internal/captcha"
	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/AAReynosoG/gateward/internal/render"
	"github.com/AAReynosoG/gateward/internal/service"
)

// genericMismatch matches the sign-in form's field error so neither stage
// reveals which factor failed.
const genericMismatch = "The provided credentials do not match our records."

// AuthHandler covers the staged login and enrollment endpoints.
type AuthHandler struct {
	base
	Auth    *service.AuthService
	Captcha captcha.Verifier
}

// HandleValidateData handles POST /user/validate/data, the email-only
// first stage. Success routes the browser to the challenge or enrollment
// page depending on the account.
func (h *AuthHandler) HandleValidateData(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())

	form := emailForm{
		Email:   req.PostFormValue("email"),
		Captcha: req.PostFormValue(captchaField),
	}
	errs := formErrors(form)
	errs = verifyCaptcha(h.Captcha, req, form.Captcha, errs)
	if len(errs) > 0 {
		h.renderSignIn(w, sess.CSRFToken, form.Email, errs)
		return
	}

	stage, err := h.Auth.ValidateCredentials(req.Context(), sess, form.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownEmail):
			h.renderSignIn(w, sess.CSRFToken, form.Email,
				map[string]string{"email": genericMismatch})
		case errors.Is(err, service.ErrEmailUnverified):
			h.renderSignIn(w, sess.CSRFToken, form.Email,
				map[string]string{"email": "Please verify your email address first."})
		default:
			h.renderError(w, req, errInternal, err)
		}
		return
	}

	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}

	target := "/totp/validation"
	if stage == domain.StageEnroll {
		target = "/enable/2fa"
	}
	http.Redirect(w, req, target, http.StatusSeeOther)
}

// HandleAuthenticate handles POST /user/auth, the combined TOTP+password
// stage. On success the session is regenerated and promoted.
func (h *AuthHandler) HandleAuthenticate(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())

	form := secondFactorForm{
		TOTP:     req.PostFormValue("totp"),
		Password: req.PostFormValue("password"),
		Captcha:  req.PostFormValue(captchaField),
	}
	errs := formErrors(form)
	errs = verifyCaptcha(h.Captcha, req, form.Captcha, errs)
	if len(errs) > 0 {
		h.retryStage(w, req, "/totp/validation", genericMismatch)
		return
	}

	u, err := h.Auth.Authenticate(req.Context(), sess, form.TOTP, form.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionExpired):
			h.redirectExpired(w, req)
		case errors.Is(err, service.ErrCredentialMismatch):
			h.retryStage(w, req, "/totp/validation", genericMismatch)
		default:
			h.renderError(w, req, errInternal, err)
		}
		return
	}

	// New session id across the privilege boundary.
	sess.UserID = u.ID
	if err := h.Sessions.Regenerate(req.Context(), w, sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}
	http.Redirect(w, req, "/dashboard", http.StatusSeeOther)
}

// HandleLinkAuthenticator handles POST /user/link-authenticator, the
// enrollment confirmation. Success flashes a notice and returns to
// sign-in without establishing a session.
func (h *AuthHandler) HandleLinkAuthenticator(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())

	form := secondFactorForm{
		TOTP:     req.PostFormValue("totp"),
		Password: req.PostFormValue("password"),
		Captcha:  req.PostFormValue(captchaField),
	}
	errs := formErrors(form)
	errs = verifyCaptcha(h.Captcha, req, form.Captcha, errs)
	if len(errs) > 0 {
		h.retryStage(w, req, "/totp/link", "Invalid credentials. Please try again.")
		return
	}

	if _, err := h.Auth.LinkEnrollment(req.Context(), sess, form.TOTP, form.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionExpired):
			h.redirectExpired(w, req)
		case errors.Is(err, service.ErrCredentialMismatch):
			h.retryStage(w, req, "/totp/link", "Invalid credentials. Please try again.")
		default:
			h.renderError(w, req, errInternal, err)
		}
		return
	}

	sess.Flash.Message = "Authenticator has been successfully linked."
	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}
	http.Redirect(w, req, "/sign_in", http.StatusSeeOther)
}

// HandleLogout handles POST /logout: the server-side session is dropped
// and a fresh guest session with a new anti-forgery token takes over.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())
	if _, err := h.Sessions.Destroy(req.Context(), w, sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}
	http.Redirect(w, req, "/sign_in", http.StatusSeeOther)
}

// retryStage re-arms the single-use token so the stage page can render
// once more, flashes the error and bounces back to it.
func (h *AuthHandler) retryStage(w http.ResponseWriter, req *http.Request, target, message string) {
	sess := sessionFrom(req.Context())
	if sess.Flow.Stage == domain.StageNone {
		h.redirectExpired(w, req)
		return
	}
	sess.Flow.Token = true
	sess.Flash.Error = message
	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}
	http.Redirect(w, req, target, http.StatusSeeOther)
}

func (h *AuthHandler) redirectExpired(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())
	sess.Flow.Clear()
	sess.Flash.Error = flashSessionExpired
	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}
	http.Redirect(w, req, "/sign_in", http.StatusSeeOther)
}

func (h *AuthHandler) renderSignIn(w http.ResponseWriter, csrf, email string, errs map[string]string) {
	h.Views.Render(w, http.StatusUnprocessableEntity, render.PageSignIn, render.Data{
		Title:     "Sign In",
		CSRFToken: csrf,
		Errors:    errs,
		Values:    map[string]string{"email": email},
	})
}
