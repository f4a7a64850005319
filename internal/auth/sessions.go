package auth

import (
	"database/sql"
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/entities"
)

const (
	SessionKeyUserID   = "user_id"
	SessionKeyUsername = "username"
	SessionKeyRole     = "role"
	SessionKeyLoginAt  = "login_at"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "bookie_session"

func init() {
	gob.Register(entities.UserRole(""))
	gob.Register(time.Time{})
}

// SessionManager wraps scs.SessionManager with the user bookkeeping of the app.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager stores sessions in the application database.
// sqlDB is the *sql.DB underneath GORM.
func NewSessionManager(sqlDB *sql.DB, cfg config.Auth) (*SessionManager, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	lifetime := cfg.SessionLifetime
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(sqlDB)
	sm.Lifetime = lifetime
	sm.IdleTimeout = lifetime / 2
	sm.Cookie.Name = SessionCookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

// CreateSession binds user to the request's session after a successful login.
// The token is renewed first to prevent session fixation.
func (sm *SessionManager) CreateSession(r *http.Request, user *entities.User) error {
	ctx := r.Context()
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}

	// Stored as int to match GetInt
	sm.Put(ctx, SessionKeyUserID, int(user.ID))
	sm.Put(ctx, SessionKeyUsername, user.Username)
	sm.Put(ctx, SessionKeyRole, user.Role)
	sm.Put(ctx, SessionKeyLoginAt, time.Now())
	return nil
}

// DestroySession removes all session data and invalidates the token.
func (sm *SessionManager) DestroySession(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// GetUserID returns the session's user, or 0 when anonymous.
func (sm *SessionManager) GetUserID(r *http.Request) uint {
	return uint(sm.GetInt(r.Context(), SessionKeyUserID))
}

func (sm *SessionManager) GetUsername(r *http.Request) string {
	return sm.GetString(r.Context(), SessionKeyUsername)
}

func (sm *SessionManager) GetUserRole(r *http.Request) entities.UserRole {
	role, _ := sm.Get(r.Context(), SessionKeyRole).(entities.UserRole)
	return role
}

func (sm *SessionManager) IsAuthenticated(r *http.Request) bool {
	return sm.GetUserID(r) != 0
}

// LoginTime reports when the current session was established.
func (sm *SessionManager) LoginTime(r *http.Request) time.Time {
	at, _ := sm.Get(r.Context(), SessionKeyLoginAt).(time.Time)
	return at
}
