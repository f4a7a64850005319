package auth

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookie/internal/audit"
	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/logging"
)

// LoginAuditor records authentication events. *audit.Service satisfies it.
type LoginAuditor interface {
	LogLogin(userID uint, req audit.RequestInfo, username string, success bool)
	LogLogout(userID uint, req audit.RequestInfo)
}

var _ LoginAuditor = (*audit.Service)(nil)

// AuthController serves the /api/auth endpoints.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	rateLimiter    *RateLimiter
	auditor        LoginAuditor

	// Serializes first-run setup so two requests cannot both create an admin
	setupMu sync.Mutex
}

// NewAuthController creates the controller. auditor may be nil.
func NewAuthController(service *Service, sessionManager *SessionManager, rateLimiter *RateLimiter, auditor LoginAuditor) *AuthController {
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		rateLimiter:    rateLimiter,
		auditor:        auditor,
	}
}

// RegisterRoutes mounts the auth endpoints on group, usually /api/auth.
func (ac *AuthController) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/status", ac.Status)
	group.GET("/csrf", ac.CSRFToken)
	group.POST("/setup", ac.Setup)
	group.POST("/login", ac.Login)
	group.POST("/logout", ac.Logout)
	group.GET("/me", ac.Me)
	group.POST("/password", ac.ChangePassword)
	group.POST("/token", ac.GenerateToken)
	group.DELETE("/token", ac.RevokeToken)
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type setupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type userResponse struct {
	ID       uint              `json:"id"`
	Username string            `json:"username"`
	Email    string            `json:"email,omitempty"`
	Role     entities.UserRole `json:"role"`
}

func newUserResponse(u *entities.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// Status reports the auth mode and whether first-run setup is pending.
func (ac *AuthController) Status(c *gin.Context) {
	hasUsers, err := ac.service.HasUsers()
	if err != nil {
		logging.Error().Err(err).Msg("failed to count users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	body := gin.H{
		"mode":          ac.service.Mode(),
		"setup_needed":  ac.service.IsAuthEnabled() && !hasUsers,
		"authenticated": IsAuthenticated(c),
	}
	if IsAuthenticated(c) {
		body["username"] = GetUsername(c)
	}
	c.JSON(http.StatusOK, body)
}

// CSRFToken returns the token browser clients must echo in X-CSRF-Token.
func (ac *AuthController) CSRFToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"token": GetCSRFToken(c)})
}

// Setup creates the first admin account. It is refused once any user exists.
func (ac *AuthController) Setup(c *gin.Context) {
	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	ac.setupMu.Lock()
	defer ac.setupMu.Unlock()

	hasUsers, err := ac.service.HasUsers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	if hasUsers {
		c.JSON(http.StatusConflict, gin.H{"error": "setup already completed"})
		return
	}

	user, err := ac.service.CreateUser(req.Username, req.Email, req.Password, entities.UserRoleAdmin)
	if err != nil {
		c.JSON(userErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
			logging.Error().Err(err).Msg("failed to create session after setup")
		}
	}
	c.JSON(http.StatusCreated, gin.H{"user": newUserResponse(user)})
}

// Login checks credentials and opens a session.
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "login and password are required"})
		return
	}

	clientIP := c.ClientIP()
	if ac.rateLimiter != nil {
		if allowed, retryAfter := ac.rateLimiter.Allow(clientIP, req.Login); !allowed {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many login attempts",
				"retry_after": retryAfter.String(),
			})
			return
		}
	}

	user, err := ac.service.Authenticate(req.Login, req.Password)
	if err != nil {
		if ac.rateLimiter != nil {
			ac.rateLimiter.RecordFailure(clientIP, req.Login)
		}
		ac.logLogin(c, nil, req.Login, false)

		switch {
		case errors.Is(err, ErrAccountLocked):
			c.JSON(http.StatusLocked, gin.H{"error": "account is locked, try again later"})
		case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid login or password"})
		default:
			logging.Error().Err(err).Msg("authentication failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		}
		return
	}

	if ac.rateLimiter != nil {
		ac.rateLimiter.RecordSuccess(clientIP, req.Login)
	}

	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
			logging.Error().Err(err).Msg("failed to create session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
	}

	ac.logLogin(c, user, req.Login, true)
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// Logout destroys the session.
func (ac *AuthController) Logout(c *gin.Context) {
	userID := GetUserID(c)
	if ac.sessionManager != nil {
		if err := ac.sessionManager.DestroySession(c.Request); err != nil {
			logging.Warn().Err(err).Msg("failed to destroy session")
		}
	}
	if ac.auditor != nil && userID != 0 {
		ac.auditor.LogLogout(userID, audit.RequestInfoFromGin(c))
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated user.
func (ac *AuthController) Me(c *gin.Context) {
	user, ok := ac.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user), "auth_type": GetAuthType(c)})
}

// ChangePassword replaces the caller's password.
func (ac *AuthController) ChangePassword(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "old_password and new_password are required"})
		return
	}

	if err := ac.service.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrInvalidPassword):
			c.JSON(http.StatusForbidden, gin.H{"error": "current password is incorrect"})
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change password"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// GenerateToken creates a new API token for the authenticated user.
func (ac *AuthController) GenerateToken(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	token, err := ac.service.GenerateToken(userID)
	if err != nil {
		logging.Error().Err(err).Uint("user_id", userID).Msg("failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Store this token securely - it will not be shown again",
	})
}

// RevokeToken revokes the API token of the authenticated user.
func (ac *AuthController) RevokeToken(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := ac.service.RevokeToken(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}

func (ac *AuthController) currentUser(c *gin.Context) (*entities.User, bool) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, false
	}
	user, err := ac.service.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, false
	}
	return user, true
}

func (ac *AuthController) logLogin(c *gin.Context, user *entities.User, login string, success bool) {
	if ac.auditor == nil {
		return
	}
	var userID uint
	if user != nil {
		userID = user.ID
		login = user.Username
	}
	ac.auditor.LogLogin(userID, audit.RequestInfoFromGin(c), login, success)
}

func userErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, ErrUsernameRequired),
		errors.Is(err, ErrUsernameInvalid),
		errors.Is(err, ErrEmailInvalid),
		errors.Is(err, ErrPasswordRequired),
		errors.Is(err, ErrPasswordTooShort),
		errors.Is(err, ErrPasswordTooLong),
		errors.Is(err, ErrInvalidRole):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
