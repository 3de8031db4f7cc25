package http

import (
	"errors"
	"net/http"

	"github.com/AAReynosoG/gateward/internal/captcha"
	"github.com/AAReynosoG/gateward/pkg/httpx"
	"github.com/AAReynosoG/gateward/pkg/slogx"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// captchaField is the form field name the reCAPTCHA widget posts.
const captchaField = "g-recaptcha-response"

type signUpForm struct {
	Email                string `validate:"required,email"`
	Password             string `validate:"required,min=8"`
	PasswordConfirmation string `validate:"required,eqfield=Password"`
	Captcha              string `validate:"required"`
}

type emailForm struct {
	Email   string `validate:"required,email"`
	Captcha string `validate:"required"`
}

type secondFactorForm struct {
	TOTP     string `validate:"required,numeric,len=6"`
	Password string `validate:"required"`
	Captcha  string `validate:"required"`
}

// fieldNames maps struct fields to the form field names errors render
// against.
var fieldNames = map[string]string{
	"Email":                "email",
	"Password":             "password",
	"PasswordConfirmation": "password_confirmation",
	"TOTP":                 "totp",
	"Captcha":              captchaField,
}

// messages maps "Field.tag" to the text shown next to the input.
var messages = map[string]string{
	"Email.required":                "Email is required.",
	"Email.email":                   "Enter a valid email address.",
	"Password.required":             "Password is required.",
	"Password.min":                  "Password must be at least 8 characters.",
	"PasswordConfirmation.required": "Password confirmation is required.",
	"PasswordConfirmation.eqfield":  "Password confirmation does not match.",
	"TOTP.required":                 "Authenticator code is required.",
	"TOTP.numeric":                  "Authenticator code must be 6 digits.",
	"TOTP.len":                      "Authenticator code must be 6 digits.",
	"Captcha.required":              "Captcha is required",
}

// formErrors validates the struct and returns per-field messages, empty
// when the form is valid.
func formErrors(form any) map[string]string {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["form"] = "Invalid input."
		return out
	}
	for _, fe := range verrs {
		field, ok := fieldNames[fe.StructField()]
		if !ok {
			field = fe.StructField()
		}
		if _, dup := out[field]; dup {
			continue
		}
		msg, ok := messages[fe.StructField()+"."+fe.Tag()]
		if !ok {
			msg = "Invalid value."
		}
		out[field] = msg
	}
	return out
}

// verifyCaptcha adds a field error when the challenge does not hold up.
// Transport failures toward the verification service count as invalid,
// the form can simply be retried.
func verifyCaptcha(v captcha.Verifier, req *http.Request, response string, errs map[string]string) map[string]string {
	if errs[captchaField] != "" {
		return errs
	}
	ok, err := v.Verify(req.Context(), response, httpx.IPKeyExtractor(req))
	if err != nil {
		slogx.FromContext(req.Context()).Warn("captcha verification unavailable", "error", err)
	}
	if !ok {
		if errs == nil {
			errs = make(map[string]string)
		}
		errs[captchaField] = "Captcha is invalid"
	}
	return errs
}
