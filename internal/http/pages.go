package http

import (
	"bytes"
	"encoding/base64"
	"errors"
	"html/template"
	"image/png"
	"net/http"

	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/AAReynosoG/gateward/internal/render"
	"github.com/AAReynosoG/gateward/internal/service"
	"github.com/AAReynosoG/gateward/internal/store"
	"github.com/pquerna/otp"
)

// flashSessionExpired is shown when a stage POST arrives for a flow the
// session no longer carries.
const flashSessionExpired = "You took too much time, please sign in again."

// PagesHandler serves the GET pages of the flow.
type PagesHandler struct {
	base
	Auth *service.AuthService
}

// HandleRoot redirects the bare origin to the sign-in page.
func (h *PagesHandler) HandleRoot(w http.ResponseWriter, req *http.Request) {
	http.Redirect(w, req, "/sign_in", http.StatusSeeOther)
}

// HandleSignIn renders the email-only first login form.
func (h *PagesHandler) HandleSignIn(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())
	flash := sess.TakeFlash()
	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}

	h.Views.Render(w, http.StatusOK, render.PageSignIn, render.Data{
		Title:     "Sign In",
		CSRFToken: sess.CSRFToken,
		Flash:     flash,
	})
}

// HandleSignUp renders the registration form.
func (h *PagesHandler) HandleSignUp(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())
	h.Views.Render(w, http.StatusOK, render.PageSignUp, render.Data{
		Title:     "Sign Up",
		CSRFToken: sess.CSRFToken,
	})
}

// HandleResendView renders the resend-verification form.
func (h *PagesHandler) HandleResendView(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())
	h.Views.Render(w, http.StatusOK, render.PageResend, render.Data{
		Title:     "Resend Verification Email",
		CSRFToken: sess.CSRFToken,
	})
}

// HandleEmailNotice renders the post-registration notice. The stage guard
// already consumed the token.
func (h *PagesHandler) HandleEmailNotice(w http.ResponseWriter, req *http.Request) {
	h.Views.Render(w, http.StatusOK, render.PageEmailNotice, render.Data{
		Title: "Check Your Inbox",
	})
}

// HandleEnable2FA shows the enrollment QR code and manual key exactly
// once, then arms the link stage so the confirmation form can open.
func (h *PagesHandler) HandleEnable2FA(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())

	key, err := h.Auth.PendingEnrollmentKey(sess)
	if err != nil {
		if errors.Is(err, service.ErrSessionExpired) {
			h.redirectExpired(w, req)
			return
		}
		h.renderError(w, req, errInternal, err)
		return
	}

	qr, err := qrDataURI(key)
	if err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}

	sess.Flow.Stage = domain.StageLink
	sess.Flow.Token = true
	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}

	h.Views.Render(w, http.StatusOK, render.PageEnroll2FA, render.Data{
		Title:         "Enable 2FA",
		QRCodeDataURI: qr,
		SecretKey:     key.Secret(),
	})
}

// HandleTOTPLink renders the enrollment confirmation form.
func (h *PagesHandler) HandleTOTPLink(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())
	flash := sess.TakeFlash()
	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}

	h.Views.Render(w, http.StatusOK, render.PageLink, render.Data{
		Title:     "Link Your Authenticator",
		CSRFToken: sess.CSRFToken,
		Flash:     flash,
	})
}

// HandleTOTPChallenge renders the second-factor login form.
func (h *PagesHandler) HandleTOTPChallenge(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())
	flash := sess.TakeFlash()
	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}

	h.Views.Render(w, http.StatusOK, render.PageChallenge, render.Data{
		Title:     "Two-Factor Verification",
		CSRFToken: sess.CSRFToken,
		Flash:     flash,
	})
}

// HandleDashboard renders the protected landing page.
func (h *PagesHandler) HandleDashboard(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())

	u, err := h.Auth.Store.Users().GetUserByID(req.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Account gone; drop the session.
			if _, derr := h.Sessions.Destroy(req.Context(), w, sess); derr != nil {
				h.renderError(w, req, errInternal, derr)
				return
			}
			http.Redirect(w, req, "/sign_in", http.StatusSeeOther)
			return
		}
		h.renderError(w, req, errInternal, err)
		return
	}

	h.Views.Render(w, http.StatusOK, render.PageDashboard, render.Data{
		Title:     "Dashboard",
		CSRFToken: sess.CSRFToken,
		Email:     u.Email,
	})
}

// redirectExpired flashes the timeout notice and sends the browser back
// to sign-in.
func (h *PagesHandler) redirectExpired(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())
	sess.Flow.Clear()
	sess.Flash.Error = flashSessionExpired
	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}
	http.Redirect(w, req, "/sign_in", http.StatusSeeOther)
}

// qrDataURI renders the provisioning key as an inline PNG so no secret
// material ever hits a URL or a temp file.
func qrDataURI(key *otp.Key) (template.URL, error) {
	img, err := key.Image(200, 200)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}
