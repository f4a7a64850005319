package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/entities"
)

func setupSessionManager(t *testing.T, cfg config.Auth) *SessionManager {
	t.Helper()
	db := setupTestDB(t)
	sqlDB, err := db.DB.DB()
	if err != nil {
		t.Fatalf("failed to get SQL DB: %v", err)
	}

	sm, err := NewSessionManager(sqlDB, cfg)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

// serveWithSession runs fn inside scs' own LoadAndSave so the session context is populated.
func serveWithSession(t *testing.T, sm *SessionManager, fn func(r *http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	handler := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn(r)
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	return rr
}

func TestNewSessionManager(t *testing.T) {
	sm := setupSessionManager(t, config.Auth{SessionLifetime: 4 * time.Hour})

	if sm.Cookie.Name != SessionCookieName {
		t.Errorf("Expected cookie name %q, got %q", SessionCookieName, sm.Cookie.Name)
	}
	if !sm.Cookie.HttpOnly {
		t.Error("Cookie should be HttpOnly")
	}
	if sm.Cookie.Secure {
		t.Error("Cookie.Secure should follow SecureCookies")
	}
	if sm.Cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("Expected SameSiteStrictMode, got %v", sm.Cookie.SameSite)
	}
	if sm.Lifetime != 4*time.Hour || sm.IdleTimeout != 2*time.Hour {
		t.Errorf("unexpected lifetime %v / idle %v", sm.Lifetime, sm.IdleTimeout)
	}
}

func TestNewSessionManager_Defaults(t *testing.T) {
	sm := setupSessionManager(t, config.Auth{SecureCookies: true})

	if !sm.Cookie.Secure {
		t.Error("Cookie.Secure should be true when SecureCookies is enabled")
	}
	if sm.Lifetime != 24*time.Hour {
		t.Errorf("Expected default lifetime 24h, got %v", sm.Lifetime)
	}
}

func TestSessionManager_CreateAndRetrieveSession(t *testing.T) {
	sm := setupSessionManager(t, config.Auth{})
	user := &entities.User{ID: 123, Username: "lectrice", Role: entities.UserRoleAdmin}

	rr := serveWithSession(t, sm, func(r *http.Request) {
		if sm.IsAuthenticated(r) {
			t.Error("Should not be authenticated before login")
		}
		if role := sm.GetUserRole(r); role != "" {
			t.Errorf("Expected empty role, got %q", role)
		}

		if err := sm.CreateSession(r, user); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if got := sm.GetUserID(r); got != user.ID {
			t.Errorf("Expected user ID %d, got %d", user.ID, got)
		}
		if got := sm.GetUsername(r); got != user.Username {
			t.Errorf("Expected username %q, got %q", user.Username, got)
		}
		if got := sm.GetUserRole(r); got != user.Role {
			t.Errorf("Expected role %q, got %q", user.Role, got)
		}
		if sm.LoginTime(r).IsZero() {
			t.Error("LoginTime should be set")
		}
	})

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Error("Expected a session cookie to be written")
	}
}

func TestSessionManager_DestroySession(t *testing.T) {
	sm := setupSessionManager(t, config.Auth{})
	user := &entities.User{ID: 789, Username: "lecteur", Role: entities.UserRoleReader}

	serveWithSession(t, sm, func(r *http.Request) {
		if err := sm.CreateSession(r, user); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := sm.DestroySession(r); err != nil {
			t.Fatalf("failed to destroy session: %v", err)
		}
		if sm.IsAuthenticated(r) {
			t.Error("Should not be authenticated after session destroy")
		}
	})
}
