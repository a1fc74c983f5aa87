package authsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
	"github.com/mkrupp/itemcatalog/internal/repo/session"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
	"github.com/mkrupp/itemcatalog/internal/repo/user"
)

// TokenIssuer is the iss claim of session cookies.
const TokenIssuer = "itemcatalog"

// SessionManager keeps sign-in state in server-side sessions referenced by a
// signed cookie. The cookie is an HS256 JWT whose jti is the session id.
type SessionManager struct {
	cfg      AuthConfig
	secret   []byte
	store    *store.Store
	users    user.RepositoryFactory
	sessions session.Repository
	log      logging.Logger
	now      func() time.Time
}

// NewSessionManager creates a SessionManager signing cookies with cfg.Secret().
func NewSessionManager(
	db *store.Store,
	users user.RepositoryFactory,
	sessions session.Repository,
	cfg AuthConfig,
) (*SessionManager, error) {
	secret, err := cfg.Secret()
	if err != nil {
		return nil, err
	}

	return &SessionManager{
		cfg:      cfg,
		secret:   secret,
		store:    db,
		users:    users,
		sessions: sessions,
		log:      logging.GetLogger("svc.authsvc.session_manager"),
		now:      time.Now,
	}, nil
}

// WithClock replaces the time source. It is meant for tests.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now

	return m
}

// SignIn starts a session for u and sets the session cookie. With remember
// the cookie outlives the browser session.
func (m *SessionManager) SignIn(ctx context.Context, w http.ResponseWriter, u *domain.User, remember bool) (err error) {
	log := m.log.With(logging.Group("user", "id", u.ID), "remember", remember)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "sign in failed", "error", err)
		} else {
			log.InfoContext(ctx, "signed in")
		}
	}()

	now := m.now()

	ttl := m.cfg.SessionDuration
	if remember {
		ttl = m.cfg.RememberDuration
	}

	expiresAt := now.Add(ttl)

	sess := &domain.Session{
		ID:         uuid.NewString(),
		UserID:     u.ID,
		Persistent: remember,
		CreatedAt:  now.Unix(),
		ExpiresAt:  expiresAt.Unix(),
	}

	if err := m.sessions.Create(ctx, sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	//nolint:exhaustruct
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   strconv.FormatInt(u.ID, 10),
		Issuer:    TokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	cookie := m.cookie(signed)
	if remember {
		cookie.Expires = expiresAt
		cookie.MaxAge = int(ttl.Seconds())
	}

	http.SetCookie(w, cookie)

	return nil
}

// Authenticate resolves the user of the request's session cookie.
// Returns domain.ErrSessionNotFound when there is no valid session.
func (m *SessionManager) Authenticate(r *http.Request) (*domain.User, error) {
	ctx := r.Context()

	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}

	sess, err := m.session(ctx, cookie.Value)
	if err != nil {
		return nil, err
	}

	u, err := m.users(m.store.DB()).GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, errors.Join(domain.ErrSessionNotFound, err)
		}

		return nil, fmt.Errorf("get user: %w", err)
	}

	return u, nil
}

func (m *SessionManager) session(ctx context.Context, raw string) (*domain.Session, error) {
	var claims jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, errors.Join(domain.ErrSessionNotFound, domain.ErrInvalidSessionToken, err)
	}

	sess, err := m.sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if strconv.FormatInt(sess.UserID, 10) != claims.Subject {
		return nil, errors.Join(domain.ErrSessionNotFound, domain.ErrInvalidSessionToken)
	}

	return sess, nil
}

// SignOut deletes the request's session and clears the cookie.
func (m *SessionManager) SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if err != nil {
			m.log.ErrorContext(ctx, "sign out failed", "error", err)
		} else {
			m.log.InfoContext(ctx, "signed out")
		}
	}()

	cookie := m.cookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)

	current, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return nil
	}

	var claims jwt.RegisteredClaims

	// An expired cookie still names the session to delete.
	if _, err := jwt.ParseWithClaims(current.Value, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	); err != nil {
		return nil
	}

	if err := m.sessions.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

func (m *SessionManager) cookie(value string) *http.Cookie {
	//nolint:exhaustruct
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
