package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/AAReynosoG/gateward/internal/session"
	"github.com/AAReynosoG/gateward/internal/store"
	"github.com/AAReynosoG/gateward/pkg/cryptox"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	// ErrCredentialMismatch is the single error for every second-stage
	// failure: wrong code, wrong password, malformed code, or an account
	// in a state that cannot complete the step. Callers must not be able
	// to tell which factor failed.
	ErrCredentialMismatch = errors.New("credentials do not match")

	// ErrUnknownEmail and ErrEmailUnverified are first-stage outcomes of
	// the email-only check; they map to distinct form errors.
	ErrUnknownEmail    = errors.New("no account for email")
	ErrEmailUnverified = errors.New("email not verified")
	ErrSessionExpired  = errors.New("session expired")
)

// totpCodeRE gates what ever reaches the TOTP engine.
var totpCodeRE = regexp.MustCompile(`^[0-9]{6}$`)

// AuthService drives the staged login and 2FA enrollment flow. It mutates
// the session's FlowState in place; persisting the session is the
// caller's job.
type AuthService struct {
	Store  store.Store
	Issuer string
}

// ValidateCredentials runs the first stage of login: the email-only
// check. Enrolled users are routed to the TOTP challenge; users without
// an authenticator get a fresh pending enrollment. Either way the
// returned stage tells the caller which page to send the browser to.
func (s *AuthService) ValidateCredentials(ctx context.Context, sess *session.Session, email string) (domain.FlowStage, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.StageNone, ErrUnknownEmail
		}
		return domain.StageNone, fmt.Errorf("load user: %w", err)
	}
	if !u.EmailVerified {
		return domain.StageNone, ErrEmailUnverified
	}

	if u.Enrolled() {
		sess.Flow = domain.FlowState{
			Stage:        domain.StageChallenge,
			Token:        true,
			PendingEmail: u.Email,
		}
		return domain.StageChallenge, nil
	}
	if err := s.beginEnrollment(sess, u.Email); err != nil {
		return domain.StageNone, err
	}
	return domain.StageEnroll, nil
}

// beginEnrollment mints a fresh TOTP key and parks its provisioning URI,
// encrypted, in the flow state. Nothing is persisted until the user
// proves possession via LinkEnrollment.
func (s *AuthService) beginEnrollment(sess *session.Session, email string) error {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("generate totp key: %w", err)
	}

	enc, err := cryptox.EncryptSecret(key.URL())
	if err != nil {
		return fmt.Errorf("encrypt pending secret: %w", err)
	}
	sess.Flow = domain.FlowState{
		Stage:         domain.StageEnroll,
		Token:         true,
		PendingEmail:  email,
		PendingSecret: enc,
	}
	return nil
}

// PendingEnrollmentKey recovers the in-flight enrollment key for one-time
// display (QR code and manual entry). ErrSessionExpired when the flow no
// longer carries one.
func (s *AuthService) PendingEnrollmentKey(sess *session.Session) (*otp.Key, error) {
	if sess.Flow.PendingSecret == "" || sess.Flow.PendingEmail == "" {
		return nil, ErrSessionExpired
	}
	uri, err := cryptox.DecryptSecret(sess.Flow.PendingSecret)
	if err != nil {
		return nil, fmt.Errorf("decrypt pending secret: %w", err)
	}
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse pending key: %w", err)
	}
	return key, nil
}

// Authenticate runs the second stage of login for an enrolled user: the
// TOTP code and the password are both verified and a single generic
// error covers any failure. The stage token is re-armed on failure so
// the challenge page can render again.
func (s *AuthService) Authenticate(ctx context.Context, sess *session.Session, code, password string) (domain.User, error) {
	if sess.Flow.Stage != domain.StageChallenge || sess.Flow.PendingEmail == "" {
		return domain.User{}, ErrSessionExpired
	}

	fail := func() (domain.User, error) {
		sess.Flow.Token = true
		return domain.User{}, ErrCredentialMismatch
	}

	if !totpCodeRE.MatchString(code) {
		return fail()
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, sess.Flow.PendingEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail()
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !u.Enrolled() {
		return fail()
	}

	secret, err := cryptox.DecryptSecret(*u.TOTPSecret)
	if err != nil {
		return domain.User{}, fmt.Errorf("decrypt totp secret: %w", err)
	}

	// Evaluate both factors before deciding, then report one verdict.
	totpOK := validateTOTP(code, secret)
	passwordOK := cryptox.VerifyPassword(password, u.PasswordHash) == nil
	if !totpOK || !passwordOK {
		return fail()
	}

	sess.Flow.Clear()
	return u, nil
}

// LinkEnrollment completes 2FA setup: the user proves possession of the
// pending authenticator and knowledge of the password, then the secret
// is persisted. An account that already has a secret gets the same
// generic mismatch, the stored secret is never overwritten.
func (s *AuthService) LinkEnrollment(ctx context.Context, sess *session.Session, code, password string) (domain.User, error) {
	if sess.Flow.Stage != domain.StageLink || sess.Flow.PendingEmail == "" || sess.Flow.PendingSecret == "" {
		return domain.User{}, ErrSessionExpired
	}

	fail := func() (domain.User, error) {
		sess.Flow.Token = true
		return domain.User{}, ErrCredentialMismatch
	}

	if !totpCodeRE.MatchString(code) {
		return fail()
	}

	key, err := s.PendingEnrollmentKey(sess)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, sess.Flow.PendingEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail()
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}

	totpOK := validateTOTP(code, key.Secret())
	passwordOK := cryptox.VerifyPassword(password, u.PasswordHash) == nil
	if !totpOK || !passwordOK {
		return fail()
	}

	enc, err := cryptox.EncryptSecret(key.Secret())
	if err != nil {
		return domain.User{}, fmt.Errorf("encrypt totp secret: %w", err)
	}
	if err := s.Store.Users().LinkTOTPSecret(ctx, u.ID, enc); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return fail()
		}
		return domain.User{}, fmt.Errorf("link totp secret: %w", err)
	}

	sess.Flow.Clear()
	return u, nil
}

// validateTOTP accepts one step of clock skew in either direction.
func validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
