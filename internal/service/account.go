package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/AAReynosoG/gateward/internal/mail"
	"github.com/AAReynosoG/gateward/internal/store"
	"github.com/AAReynosoG/gateward/pkg/cryptox"
	"github.com/AAReynosoG/gateward/pkg/idx"
	"github.com/AAReynosoG/gateward/pkg/signurl"
	"github.com/AAReynosoG/gateward/pkg/slogx"
)

const (
	// purposeEmailVerify scopes signed links to address verification so a
	// token minted for one purpose can never satisfy another.
	purposeEmailVerify = "email_verify"

	verifyEmailPath = "/user/verify-email"

	// VerificationLinkTTL bounds how long a verification link stays valid.
	VerificationLinkTTL = 60 * time.Minute

	// ResendInterval throttles how often a fresh link may be mailed.
	ResendInterval = 60 * time.Minute
)

var (
	// ErrEmailTaken is returned by Register when the address already has an
	// account. The sign-up form may surface this as a field error.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidLink is returned by VerifyEmail for any unusable token:
	// bad signature, expired, or pointing at a user that does not exist.
	ErrInvalidLink = errors.New("invalid or expired verification link")

	// ErrAlreadyVerified is returned by VerifyEmail when the link points
	// at an address that already completed verification.
	ErrAlreadyVerified = errors.New("email already verified")
)

// AccountService owns registration and email verification.
type AccountService struct {
	Store   store.Store
	Mailer  mail.Mailer
	Signer  *signurl.Signer
	BaseURL string
}

// Register creates the account and dispatches the verification link.
// Mail delivery is best-effort: a relay failure is logged but does not
// undo the registration, the user can ask for a resend.
func (s *AccountService) Register(ctx context.Context, email, password string) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		ID:           idx.New().String(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.sendVerificationLink(ctx, u); err != nil {
		slogx.FromContext(ctx).Warn("verification mail not sent", "user_id", u.ID, "error", err)
	}
	return u, nil
}

// VerifyEmail consumes a signed link. Signature and expiry are checked
// together and every failure collapses into ErrInvalidLink. Re-using a
// link after verification completed returns ErrAlreadyVerified without
// touching the row again.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.Signer.Verify(token, purposeEmailVerify)
	if err != nil {
		return ErrInvalidLink
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidLink
		}
		return fmt.Errorf("load user: %w", err)
	}
	if u.EmailVerified {
		return ErrAlreadyVerified
	}

	if err := s.Store.Users().MarkEmailVerified(ctx, u.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// ResendVerification mails a fresh link when one is due. The outcome is
// deliberately identical for unknown addresses, already-verified accounts
// and throttled requests, so the endpoint cannot be used to probe which
// emails are registered.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	u, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}
	if u.EmailVerified {
		return nil
	}
	if u.VerificationLinkSentAt != nil && time.Since(*u.VerificationLinkSentAt) < ResendInterval {
		return nil
	}

	if err := s.sendVerificationLink(ctx, u); err != nil {
		return fmt.Errorf("send verification link: %w", err)
	}
	return nil
}

// sendVerificationLink mails a signed link and records the dispatch time
// only after the relay accepts it, so a failed send never starts the
// resend throttle.
func (s *AccountService) sendVerificationLink(ctx context.Context, u domain.User) error {
	link, err := s.Signer.Sign(s.BaseURL, verifyEmailPath, purposeEmailVerify, u.ID, VerificationLinkTTL)
	if err != nil {
		return fmt.Errorf("sign link: %w", err)
	}
	if err := s.Mailer.SendVerificationLink(ctx, u.Email, link); err != nil {
		return err
	}
	if err := s.Store.Users().SetVerificationLinkSentAt(ctx, u.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("record dispatch time: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
