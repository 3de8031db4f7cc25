package http

import (
	"errors"
	"net/http"

	"github.com/AAReynosoG/gateward/internal/captcha"
	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/AAReynosoG/gateward/internal/render"
	"github.com/AAReynosoG/gateward/internal/service"
)

// AccountHandler covers registration and email verification endpoints.
type AccountHandler struct {
	base
	Accounts *service.AccountService
	Captcha  captcha.Verifier
}

// HandleStore handles POST /user/store: validates the registration form,
// creates the account and parks the browser on the email-sent notice.
func (h *AccountHandler) HandleStore(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())

	form := signUpForm{
		Email:                req.PostFormValue("email"),
		Password:             req.PostFormValue("password"),
		PasswordConfirmation: req.PostFormValue("password_confirmation"),
		Captcha:              req.PostFormValue(captchaField),
	}
	errs := formErrors(form)
	errs = verifyCaptcha(h.Captcha, req, form.Captcha, errs)
	if len(errs) > 0 {
		h.renderSignUp(w, sess.CSRFToken, form.Email, errs)
		return
	}

	if _, err := h.Accounts.Register(req.Context(), form.Email, form.Password); err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			h.renderSignUp(w, sess.CSRFToken, form.Email,
				map[string]string{"email": "The email has already been taken."})
			return
		}
		h.renderError(w, req, errInternal, err)
		return
	}

	sess.Flow = domain.FlowState{Stage: domain.StageEmailNotice, Token: true}
	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}
	http.Redirect(w, req, "/email_sent_notice", http.StatusSeeOther)
}

// HandleVerifyEmail handles GET /user/verify-email: consumes the signed
// link and lands on sign-in with the outcome flashed.
func (h *AccountHandler) HandleVerifyEmail(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())

	err := h.Accounts.VerifyEmail(req.Context(), req.URL.Query().Get("token"))
	switch {
	case err == nil:
		sess.Flash.Message = "Your email has been successfully verified!"
	case errors.Is(err, service.ErrAlreadyVerified):
		sess.Flash.Message = "Your email is already verified."
	case errors.Is(err, service.ErrInvalidLink):
		sess.Flash.Error = "Invalid verification link"
	default:
		h.renderError(w, req, errInternal, err)
		return
	}

	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}
	http.Redirect(w, req, "/sign_in", http.StatusSeeOther)
}

// HandleResend handles POST /user/resend/verification_email. The flashed
// outcome is the same whether or not a mail actually went out.
func (h *AccountHandler) HandleResend(w http.ResponseWriter, req *http.Request) {
	sess := sessionFrom(req.Context())

	form := emailForm{
		Email:   req.PostFormValue("email"),
		Captcha: req.PostFormValue(captchaField),
	}
	errs := formErrors(form)
	errs = verifyCaptcha(h.Captcha, req, form.Captcha, errs)
	if len(errs) > 0 {
		h.Views.Render(w, http.StatusUnprocessableEntity, render.PageResend, render.Data{
			Title:     "Resend Verification Email",
			CSRFToken: sess.CSRFToken,
			Errors:    errs,
			Values:    map[string]string{"email": form.Email},
		})
		return
	}

	if err := h.Accounts.ResendVerification(req.Context(), form.Email); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}

	sess.Flash.Message = "A new verification email has been sent if your address needs one."
	if err := h.Sessions.Save(req.Context(), sess); err != nil {
		h.renderError(w, req, errInternal, err)
		return
	}
	http.Redirect(w, req, "/sign_in", http.StatusSeeOther)
}

func (h *AccountHandler) renderSignUp(w http.ResponseWriter, csrf, email string, errs map[string]string) {
	h.Views.Render(w, http.StatusUnprocessableEntity, render.PageSignUp, render.Data{
		Title:     "Sign Up",
		CSRFToken: csrf,
		Errors:    errs,
		Values:    map[string]string{"email": email},
	})
}
