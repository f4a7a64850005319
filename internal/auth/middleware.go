package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/entities"
)

// Context keys for user data
const (
	ContextKeyUserID   = "auth_user_id"
	ContextKeyUsername = "auth_username"
	ContextKeyRole     = "auth_role"
	ContextKeyAuthType = "auth_type"
)

// AuthType indicates how the user was authenticated.
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// Middleware authenticates requests and stores the caller in the gin context.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	config         config.Auth
	defaultUser    *entities.User
	publicPaths    map[string]bool
}

// NewMiddleware creates the authentication middleware. defaultUser is the
// implicit account every request acts as when Mode is none; it is ignored
// in local mode.
func NewMiddleware(service *Service, sessionManager *SessionManager, cfg config.Auth, defaultUser *entities.User) *Middleware {
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		config:         cfg,
		defaultUser:    defaultUser,
		publicPaths: map[string]bool{
			"/health":          true,
			"/api/auth/login":  true,
			"/api/auth/setup":  true,
			"/api/auth/status": true,
			"/api/auth/csrf":   true,
		},
	}
}

// Handler returns a Gin middleware handler that authenticates requests.
func (m *Middleware) Handler() gin.HandlerFunc {
	if m.config.Mode == config.AuthModeNone {
		return m.noAuthHandler()
	}
	return m.authHandler()
}

func (m *Middleware) noAuthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.defaultUser != nil {
			m.setUserContext(c, m.defaultUser, AuthTypeNone)
		} else {
			c.Set(ContextKeyAuthType, AuthTypeNone)
		}
		c.Next()
	}
}

func (m *Middleware) authHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := m.tryBearerAuth(c); user != nil {
			m.setUserContext(c, user, AuthTypeBearer)
			c.Next()
			return
		}

		if user := m.trySessionAuth(c); user != nil {
			m.setUserContext(c, user, AuthTypeSession)
			c.Next()
			return
		}

		if m.isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
		})
	}
}

func (m *Middleware) tryBearerAuth(c *gin.Context) *entities.User {
	token, ok := bearerToken(c)
	if !ok {
		return nil
	}
	user, err := m.service.ValidateToken(token)
	if err != nil {
		return nil
	}
	return user
}

func (m *Middleware) trySessionAuth(c *gin.Context) *entities.User {
	if m.sessionManager == nil {
		return nil
	}

	userID := m.sessionManager.GetUserID(c.Request)
	if userID == 0 {
		return nil
	}

	// Re-read so deleted accounts and role changes take effect immediately
	user, err := m.service.GetUserByID(userID)
	if err != nil {
		return nil
	}
	return user
}

func (m *Middleware) setUserContext(c *gin.Context, user *entities.User, authType AuthType) {
	c.Set(ContextKeyUserID, user.ID)
	c.Set(ContextKeyUsername, user.Username)
	c.Set(ContextKeyRole, user.Role)
	c.Set(ContextKeyAuthType, authType)
}

func (m *Middleware) isPublicPath(path string) bool {
	return m.publicPaths[strings.TrimSuffix(path, "/")] || m.publicPaths[path]
}

// RequireRole rejects callers whose role is not listed. It is a no-op in none mode.
func (m *Middleware) RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	roleSet := make(map[entities.UserRole]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		if m.config.Mode == config.AuthModeNone {
			c.Next()
			return
		}
		if !roleSet[GetUserRole(c)] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient permissions",
			})
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetUserID returns the authenticated user's ID, or 0 for anonymous requests.
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextKeyUserID); exists {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return 0
}

func GetUsername(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}

func GetUserRole(c *gin.Context) entities.UserRole {
	if r, exists := c.Get(ContextKeyRole); exists {
		if role, ok := r.(entities.UserRole); ok {
			return role
		}
	}
	return ""
}

// GetAuthType retrieves the authentication method used.
func GetAuthType(c *gin.Context) AuthType {
	if t, exists := c.Get(ContextKeyAuthType); exists {
		if authType, ok := t.(AuthType); ok {
			return authType
		}
	}
	return AuthTypeNone
}

// IsAuthenticated reports whether a user is attached to the request.
func IsAuthenticated(c *gin.Context) bool {
	return GetUserID(c) != 0
}
