package model

import "time"

// Roles recognized by the authorization layer.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User mirrors the `users` table. UID is a UUID string. Role defaults
// to "user" at signup; IsVerified flips when the email verification
// token is redeemed.
type User struct {
	UID          string
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
