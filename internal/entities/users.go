package entities

import "time"

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleReader UserRole = "reader"
)

type User struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Username         string     `gorm:"uniqueIndex;size:64" json:"username"`
	Email            string     `gorm:"index;size:254" json:"email,omitempty"`
	PasswordHash     string     `gorm:"size:255" json:"-"`
	Role             UserRole   `gorm:"size:20;default:reader" json:"role"`
	TokenHash        string     `gorm:"index;size:64" json:"-"` // SHA-256 of the API token
	TokenCreatedAt   *time.Time `json:"-"`
	FailedLoginCount int        `json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
