package domain

import "time"

// User is the identity record behind the credential store.
type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2 encoded, never exposed

	EmailVerified          bool
	EmailVerifiedAt        *time.Time // set exactly once, iff EmailVerified
	VerificationLinkSentAt *time.Time // resend throttling only

	// TOTPSecret holds the AES-GCM encrypted base32 secret. Nil means 2FA
	// has not been enrolled yet; enrollment writes it at most once.
	TOTPSecret *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enrolled reports whether the user has a linked authenticator.
func (u User) Enrolled() bool {
	return u.TOTPSecret != nil && *u.TOTPSecret != ""
}
