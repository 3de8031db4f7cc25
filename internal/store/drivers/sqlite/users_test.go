package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/AAReynosoG/gateward/internal/store"
	"github.com/AAReynosoG/gateward/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTestUser() domain.User {
	return domain.User{
		ID:           idx.New().String(),
		Email:        "a@x.com",
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser()

	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.False(t, got.EmailVerified)
	require.Nil(t, got.EmailVerifiedAt)
	require.Nil(t, got.VerificationLinkSentAt)
	require.Nil(t, got.TOTPSecret)
	require.False(t, got.Enrolled())

	byID, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", byID.Email)
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Users().GetUserByEmail(ctx, "missing@x.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().GetUserByID(ctx, idx.New().String())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateUserEnforcesUniqueEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users().CreateUser(ctx, newTestUser()))

	dup := newTestUser() // same email, fresh id
	err := s.Users().CreateUser(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestMarkEmailVerifiedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser()
	require.NoError(t, s.Users().CreateUser(ctx, u))

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Users().MarkEmailVerified(ctx, u.ID, first))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
	require.NotNil(t, got.EmailVerifiedAt)
	require.Equal(t, first, got.EmailVerifiedAt.UTC())

	// Second verification performs no mutation.
	require.NoError(t, s.Users().MarkEmailVerified(ctx, u.ID, first.Add(time.Hour)))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, first, got.EmailVerifiedAt.UTC())
}

func TestSetVerificationLinkSentAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser()
	require.NoError(t, s.Users().CreateUser(ctx, u))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Users().SetVerificationLinkSentAt(ctx, u.ID, at))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.VerificationLinkSentAt)
	require.Equal(t, at, got.VerificationLinkSentAt.UTC())

	err = s.Users().SetVerificationLinkSentAt(ctx, idx.New().String(), at)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLinkTOTPSecretAtMostOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser()
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Users().LinkTOTPSecret(ctx, u.ID, "ciphertext-one"))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.Enrolled())
	require.Equal(t, "ciphertext-one", *got.TOTPSecret)

	// A second link attempt must not overwrite the first secret.
	err = s.Users().LinkTOTPSecret(ctx, u.ID, "ciphertext-two")
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "ciphertext-one", *got.TOTPSecret)

	// Unknown user is reported as not found, not as already linked.
	err = s.Users().LinkTOTPSecret(ctx, idx.New().String(), "ciphertext")
	require.ErrorIs(t, err, store.ErrNotFound)
}
