package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, time.Hour), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	s := &Session{
		ID:        "abc",
		CSRFToken: "csrf",
		Flow: domain.FlowState{
			Stage:        domain.StageChallenge,
			Token:        true,
			PendingEmail: "a@x.com",
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", got.ID)
	require.Equal(t, domain.StageChallenge, got.Flow.Stage)
	require.True(t, got.Flow.Token)
	require.Equal(t, "a@x.com", got.Flow.PendingEmail)
	require.False(t, got.Authenticated())
}

func TestRedisStoreMissingAndExpired(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	s := &Session{ID: "abc", CSRFToken: "csrf"}
	require.NoError(t, store.Save(ctx, s))

	mr.FastForward(2 * time.Hour)

	_, err = store.Get(ctx, "abc")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreCorruptBlobTreatedAsAbsent(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(keyPrefix+"abc", "{not json"))

	_, err := store.Get(ctx, "abc")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerLoadStartsGuestSession(t *testing.T) {
	store, _ := newTestStore(t)
	m := NewManager(store, false)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	s, err := m.Load(ctx, rec, req)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	require.NotEmpty(t, s.CSRFToken)
	require.False(t, s.Authenticated())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CookieName, cookies[0].Name)
	require.Equal(t, s.ID, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)

	// A follow-up request with the cookie resumes the same session.
	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])

	resumed, err := m.Load(ctx, rec2, req2)
	require.NoError(t, err)
	require.Equal(t, s.ID, resumed.ID)
	require.Empty(t, rec2.Result().Cookies(), "no new cookie on resume")
}

func TestManagerRegenerateSwapsID(t *testing.T) {
	store, _ := newTestStore(t)
	m := NewManager(store, false)
	ctx := context.Background()

	s := &Session{ID: "old-id", UserID: "user-1", CSRFToken: "csrf"}
	require.NoError(t, store.Save(ctx, s))

	rec := httptest.NewRecorder()
	require.NoError(t, m.Regenerate(ctx, rec, s))
	require.NotEqual(t, "old-id", s.ID)

	_, err := store.Get(ctx, "old-id")
	require.ErrorIs(t, err, ErrNotFound, "old id is gone")

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
}

func TestManagerDestroyIssuesFreshGuestSession(t *testing.T) {
	store, _ := newTestStore(t)
	m := NewManager(store, false)
	ctx := context.Background()

	s := &Session{ID: "old-id", UserID: "user-1", CSRFToken: "old-csrf"}
	require.NoError(t, store.Save(ctx, s))

	rec := httptest.NewRecorder()
	fresh, err := m.Destroy(ctx, rec, s)
	require.NoError(t, err)
	require.NotEqual(t, "old-id", fresh.ID)
	require.NotEqual(t, "old-csrf", fresh.CSRFToken, "anti-forgery token reissued")
	require.False(t, fresh.Authenticated())

	_, err = store.Get(ctx, "old-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTakeFlashIsOneShot(t *testing.T) {
	t.Parallel()

	s := &Session{Flash: domain.Flash{Message: "done", Error: "oops"}}
	f := s.TakeFlash()
	require.Equal(t, "done", f.Message)
	require.Equal(t, "oops", f.Error)
	require.Empty(t, s.TakeFlash())
}
