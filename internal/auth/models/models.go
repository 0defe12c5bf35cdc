package models

import (
	"strings"
	"time"

	id "certverify/pkg/domain"
	dErrors "certverify/pkg/domain-errors"
)

// RoleAdmin is the only role issued today; every authenticated user is an administrator.
const RoleAdmin = "admin"

// User is an administrator credential record. Created out of band.
type User struct {
	ID           id.UserID
	Email        string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Public returns the view of u that may leave the service.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID.String(),
		Email:    u.Email,
		Username: u.Username,
		Role:     u.Role,
	}
}

// PublicUser is the user representation returned by login and session endpoints.
type PublicUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
}

// LoginRequest is the body of POST /api/auth/login. Either identifier or email
// may carry the login name.
type LoginRequest struct {
	Identifier string `json:"identifier,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
}

// Normalize trims the identifier and folds email into it.
func (r *LoginRequest) Normalize() {
	r.Identifier = strings.TrimSpace(r.Identifier)
	r.Email = strings.TrimSpace(r.Email)
	if r.Identifier == "" {
		r.Identifier = r.Email
	}
}

func (r *LoginRequest) Validate() error {
	if r.Identifier == "" {
		return dErrors.New(dErrors.CodeValidation, "email or username is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	return nil
}

// LoginResult is returned by a successful authentication.
type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      PublicUser `json:"user"`
}

// Claims is the verified content of a session token.
type Claims struct {
	UserID     id.UserID
	Identifier string
	Role       string
	TokenID    string
	ExpiresAt  time.Time
}
