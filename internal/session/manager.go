// Package session owns the signed-in identity, its tokens and their
// persisted copy in the session cache.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pettime/companion/internal/cache"
	"github.com/pettime/companion/internal/domain"
	"github.com/pettime/companion/internal/gateway"
	"github.com/pettime/companion/internal/state"
	apperrors "github.com/pettime/companion/pkg/errors"
	"github.com/pettime/companion/pkg/validator"
)

// Fallback messages used when a failure carries no displayable text.
const (
	MsgLoginFailed    = "Login failed"
	MsgRegisterFailed = "Registration failed"
	MsgRefreshFailed  = "Session refresh failed"
)

// State is the observable session snapshot. Treat it as read-only.
type State struct {
	User            *domain.User `json:"user"`
	IsAuthenticated bool         `json:"is_authenticated"`
	IsLoading       bool         `json:"is_loading"`
	Error           string       `json:"error,omitempty"`
	// ExpiresAt is the access token horizon when known. It is informational:
	// authentication is decided by cache presence, not by this value.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	inFlight int
}

// Manager mediates login, registration, logout and session restoration.
// It is safe for concurrent use.
type Manager struct {
	api    gateway.AuthAPI
	cache  cache.Cache
	state  *state.Container[State]
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager with an empty, signed-out state.
func NewManager(api gateway.AuthAPI, c cache.Cache, logger *slog.Logger) *Manager {
	return &Manager{
		api:    api,
		cache:  c,
		state:  state.New(State{}),
		logger: logger.With(slog.String("store", "session")),
		now:    time.Now,
	}
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() State {
	return m.state.Snapshot()
}

// Version returns the number of committed transitions.
func (m *Manager) Version() uint64 {
	return m.state.Version()
}

// Subscribe registers fn for every committed transition.
func (m *Manager) Subscribe(fn state.Listener[State]) (unsubscribe func()) {
	return m.state.Subscribe(fn)
}

// Login signs in with email and password. The failure is both returned and
// recorded in the state's Error field.
func (m *Manager) Login(ctx context.Context, req domain.LoginRequest) error {
	if err := validator.Check(req); err != nil {
		return m.fail(ctx, "login", err, MsgLoginFailed)
	}

	m.begin()
	resp, err := m.api.Login(ctx, req)
	if err != nil {
		return m.fail(ctx, "login", err, MsgLoginFailed)
	}
	return m.establish(ctx, "login", resp, MsgLoginFailed)
}

// Register creates an account and signs in. Same contract as Login.
func (m *Manager) Register(ctx context.Context, req domain.RegisterRequest) error {
	if err := validator.Check(req); err != nil {
		return m.fail(ctx, "register", err, MsgRegisterFailed)
	}

	m.begin()
	resp, err := m.api.Register(ctx, req)
	if err != nil {
		return m.fail(ctx, "register", err, MsgRegisterFailed)
	}
	return m.establish(ctx, "register", resp, MsgRegisterFailed)
}

// Refresh exchanges the cached refresh token for a new token pair.
func (m *Manager) Refresh(ctx context.Context) error {
	m.begin()

	refreshToken, ok, err := m.cache.Get(ctx, cache.KeyRefreshToken)
	if err != nil {
		return m.fail(ctx, "refresh", fmt.Errorf("read refresh token: %w", err), MsgRefreshFailed)
	}
	if !ok || refreshToken == "" {
		return m.fail(ctx, "refresh", apperrors.Unauthorized("not signed in"), MsgRefreshFailed)
	}

	tokens, err := m.api.Refresh(ctx, refreshToken)
	if err != nil {
		return m.fail(ctx, "refresh", err, MsgRefreshFailed)
	}

	if err := m.writeTokens(ctx, *tokens); err != nil {
		return m.abandon(ctx, "refresh", err, MsgRefreshFailed)
	}

	expiresAt := m.horizon(*tokens)
	m.state.Update(func(s State) State {
		s = finish(s)
		s.Error = ""
		s.ExpiresAt = expiresAt
		return s
	})
	m.logger.InfoContext(ctx, "session refreshed")
	return nil
}

// Logout revokes the session remotely when possible and always clears the
// cache and the in-memory session. It never fails and is idempotent.
func (m *Manager) Logout(ctx context.Context) {
	refreshToken, ok, err := m.cache.Get(ctx, cache.KeyRefreshToken)
	switch {
	case err != nil:
		m.logger.WarnContext(ctx, "logout: read refresh token", slog.String("error", err.Error()))
	case ok && refreshToken != "":
		if err := m.api.Logout(ctx, refreshToken); err != nil {
			m.logger.WarnContext(ctx, "logout: remote revoke failed", slog.String("error", err.Error()))
		}
	}

	m.discardCache(ctx)
	m.state.Update(func(s State) State {
		s = signedOut(s)
		s.IsLoading = s.inFlight > 0
		return s
	})
	m.logger.InfoContext(ctx, "signed out")
}

// LoadUser restores a session from the cache. A session is restored only
// when both the user record and the access token are present and the record
// decodes. Unreadable cache content counts as absent.
func (m *Manager) LoadUser(ctx context.Context) {
	user, token, ok := m.readSession(ctx)
	if !ok {
		m.state.Update(func(s State) State {
			s.IsAuthenticated = false
			return s
		})
		return
	}

	expiresAt := tokenExpiry(token)
	m.state.Update(func(s State) State {
		s.User = user
		s.IsAuthenticated = true
		s.ExpiresAt = expiresAt
		return s
	})
	m.logger.DebugContext(ctx, "session restored", slog.String("user_id", user.ID))
}

// ClearError drops the last recorded error.
func (m *Manager) ClearError() {
	m.state.Update(func(s State) State {
		s.Error = ""
		return s
	})
}

// AccessToken returns the cached access token, or "" when signed out. It
// satisfies gateway.TokenSource.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	token, ok, err := m.cache.Get(ctx, cache.KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (m *Manager) begin() {
	m.state.Update(func(s State) State {
		s.inFlight++
		s.IsLoading = true
		s.Error = ""
		return s
	})
}

func finish(s State) State {
	if s.inFlight > 0 {
		s.inFlight--
	}
	s.IsLoading = s.inFlight > 0
	return s
}

func signedOut(s State) State {
	s.User = nil
	s.IsAuthenticated = false
	s.ExpiresAt = time.Time{}
	return s
}

func (m *Manager) fail(ctx context.Context, op string, err error, fallback string) error {
	msg := apperrors.UserMessage(err, fallback)
	m.state.Update(func(s State) State {
		s = finish(s)
		s.Error = msg
		return s
	})
	m.logger.WarnContext(ctx, op+" failed", slog.String("error", err.Error()))
	return err
}

// abandon handles a session whose cache write failed: the cache is emptied
// and the in-memory session dropped in the same commit as the error.
func (m *Manager) abandon(ctx context.Context, op string, err error, fallback string) error {
	m.discardCache(ctx)
	msg := apperrors.UserMessage(err, fallback)
	m.state.Update(func(s State) State {
		s = signedOut(finish(s))
		s.Error = msg
		return s
	})
	m.logger.WarnContext(ctx, op+" failed", slog.String("error", err.Error()))
	return err
}

// establish persists a fresh session and commits it. The user record is
// written last so that a partial write never restores.
func (m *Manager) establish(ctx context.Context, op string, resp *domain.AuthResponse, fallback string) error {
	if err := m.persist(ctx, resp); err != nil {
		return m.abandon(ctx, op, err, fallback)
	}

	user := resp.User
	expiresAt := m.horizon(resp.Tokens)
	m.state.Update(func(s State) State {
		s = finish(s)
		s.User = &user
		s.IsAuthenticated = true
		s.Error = ""
		s.ExpiresAt = expiresAt
		return s
	})
	m.logger.InfoContext(ctx, op+" succeeded", slog.String("user_id", user.ID))
	return nil
}

func (m *Manager) persist(ctx context.Context, resp *domain.AuthResponse) error {
	record, err := json.Marshal(resp.User)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	if err := m.writeTokens(ctx, resp.Tokens); err != nil {
		return err
	}
	if err := m.cache.Set(ctx, cache.KeyUser, string(record)); err != nil {
		return fmt.Errorf("cache user record: %w", err)
	}
	return nil
}

func (m *Manager) writeTokens(ctx context.Context, tokens domain.AuthTokens) error {
	if err := m.cache.Set(ctx, cache.KeyRefreshToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("cache refresh token: %w", err)
	}
	if err := m.cache.Set(ctx, cache.KeyAccessToken, tokens.AccessToken); err != nil {
		return fmt.Errorf("cache access token: %w", err)
	}
	return nil
}

func (m *Manager) discardCache(ctx context.Context) {
	if err := m.cache.RemoveMany(ctx, cache.SessionKeys...); err != nil {
		m.logger.WarnContext(ctx, "clear session cache", slog.String("error", err.Error()))
	}
}

func (m *Manager) readSession(ctx context.Context) (*domain.User, string, bool) {
	record, hasUser, err := m.cache.Get(ctx, cache.KeyUser)
	if err != nil {
		m.logger.WarnContext(ctx, "restore: read user record", slog.String("error", err.Error()))
		return nil, "", false
	}
	token, hasToken, err := m.cache.Get(ctx, cache.KeyAccessToken)
	if err != nil {
		m.logger.WarnContext(ctx, "restore: read access token", slog.String("error", err.Error()))
		return nil, "", false
	}
	if !hasUser || !hasToken || token == "" {
		return nil, "", false
	}

	var user domain.User
	if err := json.Unmarshal([]byte(record), &user); err != nil {
		m.logger.WarnContext(ctx, "restore: corrupt user record", slog.String("error", err.Error()))
		return nil, "", false
	}
	if user.ID == "" {
		m.logger.WarnContext(ctx, "restore: user record without id")
		return nil, "", false
	}
	return &user, token, true
}

func (m *Manager) horizon(tokens domain.AuthTokens) time.Time {
	if at := tokens.ExpiresAt(m.now()); !at.IsZero() {
		return at
	}
	return tokenExpiry(tokens.AccessToken)
}
