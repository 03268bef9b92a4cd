// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, much like classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents a registered account. The email address is the identity
// key used to log in.
//
// PasswordHash is nil when the account has no usable password (registered
// with an empty password). Such a user exists but can never authenticate.
type User struct {
	ID           int64     `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	PasswordHash *string   `json:"-"          db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name"  db:"last_name"`
	DateJoined   time.Time `json:"-"          db:"date_joined"`
	IsActive     bool      `json:"-"          db:"is_active"`
	IsStaff      bool      `json:"-"          db:"is_staff"`
	IsSuperuser  bool      `json:"-"          db:"is_superuser"`
}

// HasUsablePassword reports whether the user can log in with a password.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
