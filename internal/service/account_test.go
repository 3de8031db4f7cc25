package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/AAReynosoG/gateward/internal/store"
	"github.com/AAReynosoG/gateward/internal/store/drivers/sqlite"
	"github.com/AAReynosoG/gateward/pkg/cryptox"
	"github.com/AAReynosoG/gateward/pkg/signurl"
	"github.com/stretchr/testify/require"
)

// recordingMailer captures outbound verification mail for assertions.
type recordingMailer struct {
	to    []string
	links []string
	fail  error
}

func (m *recordingMailer) SendVerificationLink(_ context.Context, to, link string) error {
	if m.fail != nil {
		return m.fail
	}
	m.to = append(m.to, to)
	m.links = append(m.links, link)
	return nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newAccountService(t *testing.T, mailer *recordingMailer) *AccountService {
	t.Helper()

	return &AccountService{
		Store:   newTestStore(t),
		Mailer:  mailer,
		Signer:  signurl.New("account-test-key", "gateward-test"),
		BaseURL: "http://localhost:8080",
	}
}

// tokenFromLink pulls the signed token out of a mailed verification URL.
func tokenFromLink(t *testing.T, link string) string {
	t.Helper()

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "/user/verify-email", u.Path)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestRegisterCreatesUserAndSendsLink(t *testing.T) {
	mailer := &recordingMailer{}
	svc := newAccountService(t, mailer)
	ctx := context.Background()

	u, err := svc.Register(ctx, "New.User@Example.COM", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, "new.user@example.com", u.Email, "email is normalized")
	require.NoError(t, cryptox.VerifyPassword("correct horse battery", u.PasswordHash))

	require.Equal(t, []string{"new.user@example.com"}, mailer.to)
	tokenFromLink(t, mailer.links[0])

	stored, err := svc.Store.Users().GetUserByEmail(ctx, "new.user@example.com")
	require.NoError(t, err)
	require.False(t, stored.EmailVerified)
	require.NotNil(t, stored.VerificationLinkSentAt, "dispatch time recorded after send")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newAccountService(t, &recordingMailer{})
	ctx := context.Background()

	_, err := svc.Register(ctx, "dup@example.com", "password-one")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "dup@example.com", "password-two")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	mailer := &recordingMailer{fail: errors.New("relay down")}
	svc := newAccountService(t, mailer)
	ctx := context.Background()

	u, err := svc.Register(ctx, "slow@example.com", "some password")
	require.NoError(t, err, "registration is not undone by a mail failure")

	stored, err := svc.Store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, stored.VerificationLinkSentAt, "no dispatch recorded when the send failed")
}

func TestVerifyEmailIdempotent(t *testing.T) {
	mailer := &recordingMailer{}
	svc := newAccountService(t, mailer)
	ctx := context.Background()

	u, err := svc.Register(ctx, "verify@example.com", "some password")
	require.NoError(t, err)

	token := tokenFromLink(t, mailer.links[0])
	require.NoError(t, svc.VerifyEmail(ctx, token))

	stored, err := svc.Store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, stored.EmailVerified)
	require.NotNil(t, stored.EmailVerifiedAt)
	verifiedAt := *stored.EmailVerifiedAt

	// Clicking the link again reports the address as already verified
	// without touching the row.
	require.ErrorIs(t, svc.VerifyEmail(ctx, token), ErrAlreadyVerified)
	stored, err = svc.Store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, verifiedAt, *stored.EmailVerifiedAt)
}

func TestVerifyEmailFailsClosed(t *testing.T) {
	svc := newAccountService(t, &recordingMailer{})
	ctx := context.Background()

	u, err := svc.Register(ctx, "closed@example.com", "some password")
	require.NoError(t, err)

	cases := map[string]string{
		"garbage": "not-a-token",
		"empty":   "",
	}

	// Signed with a different key.
	other := signurl.New("some-other-key", "gateward-test")
	link, err := other.Sign("http://localhost:8080", "/user/verify-email", "email_verify", u.ID, time.Hour)
	require.NoError(t, err)
	cases["wrong key"] = tokenFromLink(t, link)

	// Valid signature, elapsed expiry.
	link, err = svc.Signer.Sign("http://localhost:8080", "/user/verify-email", "email_verify", u.ID, -time.Minute)
	require.NoError(t, err)
	cases["expired"] = tokenFromLink(t, link)

	// Valid token for a user that does not exist.
	link, err = svc.Signer.Sign("http://localhost:8080", "/user/verify-email", "email_verify", "01JUNKUSERID", time.Hour)
	require.NoError(t, err)
	cases["unknown user"] = tokenFromLink(t, link)

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, svc.VerifyEmail(ctx, token), ErrInvalidLink)
		})
	}

	stored, err := svc.Store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, stored.EmailVerified)
}

func TestResendVerificationThrottleAndEnumeration(t *testing.T) {
	mailer := &recordingMailer{}
	svc := newAccountService(t, mailer)
	ctx := context.Background()

	u, err := svc.Register(ctx, "resend@example.com", "some password")
	require.NoError(t, err)
	require.Len(t, mailer.links, 1)

	// Inside the throttle window nothing is sent, same silent outcome.
	require.NoError(t, svc.ResendVerification(ctx, "resend@example.com"))
	require.Len(t, mailer.links, 1)

	// Age the dispatch past the interval and the resend goes out.
	aged := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, svc.Store.Users().SetVerificationLinkSentAt(ctx, u.ID, aged))
	require.NoError(t, svc.ResendVerification(ctx, "resend@example.com"))
	require.Len(t, mailer.links, 2)

	stored, err := svc.Store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, stored.VerificationLinkSentAt.After(aged))

	// Unknown and already-verified addresses produce the same nil outcome
	// with no mail.
	require.NoError(t, svc.ResendVerification(ctx, "nobody@example.com"))
	require.NoError(t, svc.VerifyEmail(ctx, tokenFromLink(t, mailer.links[1])))
	require.NoError(t, svc.ResendVerification(ctx, "resend@example.com"))
	require.Len(t, mailer.links, 2)
}
