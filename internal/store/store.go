package store

import (
	"context"
	"errors"
	"time"

	"github.com/AAReynosoG/gateward/internal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today,
// postgres later) implement this.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during credential validation.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// MarkEmailVerified sets email_verified and email_verified_at exactly
	// once. Verifying an already-verified user is a no-op.
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error

	// SetVerificationLinkSentAt records when a verification mail was last
	// dispatched, for resend throttling.
	SetVerificationLinkSentAt(ctx context.Context, userID string, at time.Time) error

	// LinkTOTPSecret persists the encrypted TOTP secret, but only when the
	// user has none yet. Returns ErrAlreadyExists when a secret is already
	// linked; re-enrollment never silently overwrites.
	LinkTOTPSecret(ctx context.Context, userID string, encryptedSecret string) error
}
