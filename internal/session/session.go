// Package session implements server-side browser sessions for the staged
// authentication flow. The payload is a typed struct serialized at the
// store boundary; handlers never touch a dynamic bag.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/AAReynosoG/gateward/pkg/cryptox"
)

// ErrNotFound is returned when no session exists for an id (expired,
// deleted or never issued).
var ErrNotFound = errors.New("session: not found")

// CookieName is the browser session cookie.
const CookieName = "gateward_session"

// Session is the server-side state keyed by the browser cookie.
type Session struct {
	ID     string           `json:"-"`
	UserID string           `json:"user_id,omitempty"` // empty until authenticated
	Flow   domain.FlowState `json:"flow"`
	Flash  domain.Flash     `json:"flash"`

	// CSRFToken is compared against the hidden _token form field on every
	// state-changing request.
	CSRFToken string `json:"csrf_token"`

	CreatedAt time.Time `json:"created_at"`
}

// Authenticated reports whether the session carries a signed-in identity.
func (s *Session) Authenticated() bool { return s.UserID != "" }

// TakeFlash returns the one-shot flash and clears it.
func (s *Session) TakeFlash() domain.Flash {
	f := s.Flash
	s.Flash = domain.Flash{}
	return f
}

// Store persists sessions. Write discipline (last write wins) is the
// store's own; each flow transition is safe to retry by the user.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Manager couples a Store with the browser cookie.
type Manager struct {
	store  Store
	secure bool
}

func NewManager(store Store, secure bool) *Manager {
	return &Manager{store: store, secure: secure}
}

func newSession() *Session {
	return &Session{
		ID:        cryptox.MustGenerateToken(cryptox.TokenSize256),
		CSRFToken: cryptox.MustGenerateToken(cryptox.TokenSize128),
		CreatedAt: time.Now().UTC(),
	}
}

// Load returns the session referenced by the request cookie, or starts a
// fresh guest session (and sets its cookie) when there is none.
func (m *Manager) Load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		s, err := m.store.Get(ctx, cookie.Value)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	s := newSession()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	m.setCookie(w, s.ID)
	return s, nil
}

// Save persists session mutations made during a request.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	return m.store.Save(ctx, s)
}

// Regenerate swaps the session id while keeping the payload, defeating
// session fixation across the authentication boundary. The old id is
// deleted before the new one is written.
func (m *Manager) Regenerate(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if err := m.store.Delete(ctx, s.ID); err != nil {
		return err
	}
	s.ID = cryptox.MustGenerateToken(cryptox.TokenSize256)
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	m.setCookie(w, s.ID)
	return nil
}

// Destroy invalidates the session entirely and replaces it with a fresh
// guest session carrying a new anti-forgery token.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) (*Session, error) {
	if err := m.store.Delete(ctx, s.ID); err != nil {
		return nil, err
	}

	fresh := newSession()
	if err := m.store.Save(ctx, fresh); err != nil {
		return nil, err
	}
	m.setCookie(w, fresh.ID)
	return fresh, nil
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
