// Package users provides database operations for user management.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetUserByLogin("reader")
package users

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/bookie/internal/entities"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("user already exists")
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts user. A taken username yields ErrDuplicate.
func (r *Repository) CreateUser(user *entities.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(id uint) (*entities.User, error) {
	return r.first(r.db.Where("id = ?", id))
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(username string) (*entities.User, error) {
	return r.first(r.db.Where("username = ?", username))
}

// GetUserByLogin accepts either a username or an email address.
func (r *Repository) GetUserByLogin(login string) (*entities.User, error) {
	return r.first(r.db.Where("username = ? OR (email <> '' AND email = ?)", login, login))
}

// GetUserByTokenHash retrieves the owner of a hashed API token.
func (r *Repository) GetUserByTokenHash(hash string) (*entities.User, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	return r.first(r.db.Where("token_hash = ?", hash))
}

// ExistsByUsernameOrEmail reports whether either identifier is taken.
func (r *Repository) ExistsByUsernameOrEmail(username, email string) (bool, error) {
	var count int64
	query := r.db.Model(&entities.User{}).Where("username = ?", username)
	if email != "" {
		query = query.Or("email = ?", email)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateFields applies a partial update. Missing users yield ErrNotFound.
func (r *Repository) UpdateFields(id uint, fields map[string]any) error {
	result := r.db.Model(&entities.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of users.
func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Count(&count).Error
	return count, err
}

func (r *Repository) first(query *gorm.DB) (*entities.User, error) {
	var user entities.User
	err := query.First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
