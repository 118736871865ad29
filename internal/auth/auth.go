// Package auth verifies user credentials against the user directory.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cashboxes/internal/core"
	"cashboxes/internal/ports"
)

// ErrInvalidCredentials hides whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// MinPasswordLength is enforced by Register.
const MinPasswordLength = 8

// HashPassword hashes a plain text password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the bcrypt hash.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticator resolves the current user from submitted credentials.
type Authenticator struct {
	users ports.UserDirectory
}

func NewAuthenticator(users ports.UserDirectory) *Authenticator {
	return &Authenticator{users: users}
}

// Authenticate returns the active user matching username and password.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	u, err := a.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return core.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		return core.User{}, core.ErrInactiveUser
	}
	return u, nil
}

// Register creates an active user with a hashed password.
func (a *Authenticator) Register(ctx context.Context, username, fullName, password string) (core.User, error) {
	if len(password) < MinPasswordLength {
		return core.User{}, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	return a.users.CreateUser(ctx, core.User{
		Username:     strings.TrimSpace(username),
		FullName:     strings.TrimSpace(fullName),
		Active:       true,
		PasswordHash: hash,
	})
}
