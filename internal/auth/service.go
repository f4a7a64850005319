package auth

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/database/users"
	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/logging"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidRole      = errors.New("invalid role")
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrAccountLocked    = errors.New("account is locked due to too many failed login attempts")
	ErrUsernameInvalid  = errors.New("username must be 3-64 characters, alphanumeric and underscore/hyphen only")
	ErrEmailInvalid     = errors.New("invalid email format")
)

// UserRepository is the persistence the service needs. *users.Repository satisfies it.
type UserRepository interface {
	CreateUser(user *entities.User) error
	GetUserByID(id uint) (*entities.User, error)
	GetUserByLogin(login string) (*entities.User, error)
	GetUserByTokenHash(hash string) (*entities.User, error)
	ExistsByUsernameOrEmail(username, email string) (bool, error)
	UpdateFields(id uint, fields map[string]any) error
	Count() (int64, error)
}

var _ UserRepository = (*users.Repository)(nil)

// Service handles authentication and user management.
type Service struct {
	repo   UserRepository
	config config.Auth
	now    func() time.Time
}

// NewService creates a new authentication service.
func NewService(repo UserRepository, cfg config.Auth) *Service {
	return &Service{
		repo:   repo,
		config: cfg,
		now:    time.Now,
	}
}

// CreateUser creates a password-protected account. Email is optional.
func (s *Service) CreateUser(username, email, password string, role entities.UserRole) (*entities.User, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if !usernamePattern.MatchString(username) {
		return nil, ErrUsernameInvalid
	}
	// RFC 5321 caps addresses at 254 bytes
	if email != "" && (len(email) > 254 || !emailPattern.MatchString(email)) {
		return nil, ErrEmailInvalid
	}
	switch role {
	case entities.UserRoleAdmin, entities.UserRoleReader:
	default:
		return nil, ErrInvalidRole
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(username, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	}
	if err := s.repo.CreateUser(user); err != nil {
		if errors.Is(err, users.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	logging.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("user created")
	return user, nil
}

// Authenticate validates credentials and returns the user.
// Accounts lock after MaxFailedLogins consecutive failures.
func (s *Service) Authenticate(login, password string) (*entities.User, error) {
	user, err := s.repo.GetUserByLogin(login)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	// Implicit users created for AUTH_MODE=none have no password
	if user.PasswordHash == "" {
		return nil, ErrInvalidPassword
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		s.recordFailedLogin(user)
		return nil, err
	}

	err = s.repo.UpdateFields(user.ID, map[string]any{
		"last_login_at":      now,
		"failed_login_count": 0,
		"locked_until":       nil,
	})
	if err != nil {
		logging.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record login")
	}
	user.LastLoginAt = &now
	user.FailedLoginCount = 0
	user.LockedUntil = nil

	return user, nil
}

func (s *Service) recordFailedLogin(user *entities.User) {
	user.FailedLoginCount++
	updates := map[string]any{
		"failed_login_count": user.FailedLoginCount,
	}

	maxFailures := s.config.MaxFailedLogins
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if user.FailedLoginCount >= maxFailures {
		lockout := s.config.LockoutDuration
		if lockout <= 0 {
			lockout = 30 * time.Minute
		}
		lockedUntil := s.now().Add(lockout)
		updates["locked_until"] = lockedUntil
		user.LockedUntil = &lockedUntil
		logging.Warn().Str("username", user.Username).Time("locked_until", lockedUntil).Int("failures", user.FailedLoginCount).Msg("account locked")
	}

	if err := s.repo.UpdateFields(user.ID, updates); err != nil {
		logging.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record failed login")
	}
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	user, err := s.repo.GetUserByID(id)
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// ValidateToken checks a plaintext token and returns the associated user.
func (s *Service) ValidateToken(token string) (*entities.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.repo.GetUserByTokenHash(HashToken(token))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if s.config.TokenExpiry > 0 && user.TokenCreatedAt != nil {
		if s.now().Sub(*user.TokenCreatedAt) > s.config.TokenExpiry {
			return nil, ErrTokenExpired
		}
	}

	return user, nil
}

// GenerateToken creates a new API token for a user, replacing any previous one.
// Only the hash is stored; the plaintext is returned once.
func (s *Service) GenerateToken(userID uint) (string, error) {
	plaintext, hash, err := GenerateAPIToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	err = s.repo.UpdateFields(userID, map[string]any{
		"token_hash":       hash,
		"token_created_at": s.now(),
	})
	if errors.Is(err, users.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}

	return plaintext, nil
}

// RevokeToken removes a user's API token.
func (s *Service) RevokeToken(userID uint) error {
	err := s.repo.UpdateFields(userID, map[string]any{
		"token_hash":       "",
		"token_created_at": nil,
	})
	if errors.Is(err, users.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// ChangePassword updates a user's password after verifying the old one.
func (s *Service) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if err := CheckPassword(oldPassword, user.PasswordHash); err != nil {
		return err
	}

	newHash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}
	return s.repo.UpdateFields(userID, map[string]any{"password_hash": newHash})
}

// HasUsers reports whether any account exists.
func (s *Service) HasUsers() (bool, error) {
	count, err := s.repo.Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsAuthEnabled returns true if authentication is required.
func (s *Service) IsAuthEnabled() bool {
	return s.config.Mode == config.AuthModeLocal
}

// Mode returns the configured authentication mode.
func (s *Service) Mode() config.AuthMode {
	return s.config.Mode
}
