package domain

import "time"

type User struct {
	ID          string
	Name        string
	Email       string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

type UserWithPassword struct {
	User
	PasswordHash string
}

// UserUpdate holds the profile fields a user may change. Nil fields are left alone.
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

type UserPage struct {
	Users []User
	Page  int
	Pages int
}
