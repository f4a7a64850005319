package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupMiddleware(t *testing.T, authMode config.AuthMode) (*Middleware, *Service) {
	t.Helper()
	service, db := newTestService(t, config.Auth{Mode: authMode})

	var defaultUser *entities.User
	if authMode == config.AuthModeNone {
		u, err := db.EnsureUser("reader")
		if err != nil {
			t.Fatalf("EnsureUser() error = %v", err)
		}
		defaultUser = u
	}
	return NewMiddleware(service, nil, config.Auth{Mode: authMode}, defaultUser), service
}

func whoAmIRouter(m *Middleware) *gin.Engine {
	router := gin.New()
	router.Use(m.Handler())
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   GetUserID(c),
			"username":  GetUsername(c),
			"auth_type": GetAuthType(c),
		})
	}
	router.GET("/api/library", handler)
	router.GET("/health", handler)
	router.GET("/api/auth/status", handler)
	return router
}

type whoAmI struct {
	UserID   uint     `json:"user_id"`
	Username string   `json:"username"`
	AuthType AuthType `json:"auth_type"`
}

func decodeWhoAmI(t *testing.T, rr *httptest.ResponseRecorder) whoAmI {
	t.Helper()
	var body whoAmI
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestMiddleware_NoAuthModeInjectsDefaultUser(t *testing.T) {
	middleware, _ := setupMiddleware(t, config.AuthModeNone)
	router := whoAmIRouter(middleware)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/library", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeWhoAmI(t, rr)
	if body.UserID == 0 || body.Username != "reader" || body.AuthType != AuthTypeNone {
		t.Errorf("unexpected identity: %+v", body)
	}
}

func TestMiddleware_PublicPaths(t *testing.T) {
	middleware, _ := setupMiddleware(t, config.AuthModeLocal)
	router := whoAmIRouter(middleware)

	for _, path := range []string{"/health", "/api/auth/status"} {
		t.Run(path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

			if rr.Code != http.StatusOK {
				t.Errorf("Expected status 200 for public path %s, got %d", path, rr.Code)
			}
			if body := decodeWhoAmI(t, rr); body.UserID != 0 {
				t.Errorf("anonymous request got user %d", body.UserID)
			}
		})
	}
}

func TestMiddleware_ProtectedPathReturns401(t *testing.T) {
	middleware, _ := setupMiddleware(t, config.AuthModeLocal)
	router := whoAmIRouter(middleware)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/library", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rr.Code)
	}
}

func TestMiddleware_BearerAuth_ValidToken(t *testing.T) {
	middleware, service := setupMiddleware(t, config.AuthModeLocal)

	user, err := service.CreateUser("testuser", "", "password12345", entities.UserRoleAdmin)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	token, err := service.GenerateToken(user.ID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	whoAmIRouter(middleware).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeWhoAmI(t, rr)
	if body.UserID != user.ID || body.AuthType != AuthTypeBearer {
		t.Errorf("unexpected identity: %+v", body)
	}
}

func TestMiddleware_BearerAuth_Rejected(t *testing.T) {
	middleware, _ := setupMiddleware(t, config.AuthModeLocal)
	router := whoAmIRouter(middleware)

	for _, header := range []string{
		"Bearer invalidtoken123",
		"Token abc123",
		"Basic abc123",
		"Bearerabc123",
		"Bearer ",
	} {
		t.Run(header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
			req.Header.Set("Authorization", header)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestMiddleware_RequireRole(t *testing.T) {
	middleware, service := setupMiddleware(t, config.AuthModeLocal)

	admin, _ := service.CreateUser("admin", "", "password12345", entities.UserRoleAdmin)
	adminToken, _ := service.GenerateToken(admin.ID)
	reader, _ := service.CreateUser("lecteur", "", "password12345", entities.UserRoleReader)
	readerToken, _ := service.GenerateToken(reader.ID)

	router := gin.New()
	router.Use(middleware.Handler())
	router.GET("/api/audit", middleware.RequireRole(entities.UserRoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		token string
		want  int
	}{
		{adminToken, http.StatusOK},
		{readerToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
		req.Header.Set("Authorization", "Bearer "+tt.token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != tt.want {
			t.Errorf("Expected %d, got %d", tt.want, rr.Code)
		}
	}
}

func TestMiddleware_RequireRole_NoAuthMode(t *testing.T) {
	middleware, _ := setupMiddleware(t, config.AuthModeNone)

	router := gin.New()
	router.Use(middleware.Handler())
	router.GET("/api/audit", middleware.RequireRole(entities.UserRoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/audit", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 when auth is disabled, got %d", rr.Code)
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if GetUserID(c) != 0 {
		t.Errorf("Expected user ID 0, got %d", GetUserID(c))
	}
	if GetUsername(c) != "" {
		t.Errorf("Expected empty username, got %s", GetUsername(c))
	}
	if GetUserRole(c) != "" {
		t.Errorf("Expected empty role, got %s", GetUserRole(c))
	}
	if GetAuthType(c) != AuthTypeNone {
		t.Errorf("Expected AuthTypeNone, got %s", GetAuthType(c))
	}
	if IsAuthenticated(c) {
		t.Error("Expected IsAuthenticated to be false without a user")
	}
}

func TestIsAuthenticated_WithUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(ContextKeyUserID, uint(123))

	if !IsAuthenticated(c) {
		t.Error("Expected IsAuthenticated to return true when user ID is set")
	}
}
