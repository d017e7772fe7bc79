package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nebari-dev/taskboard/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// Verifier implements username/password identification against stored
// bcrypt hashes.
type Verifier struct {
	users UserFinder
}

// NewVerifier creates a new password verifier
func NewVerifier(users UserFinder) *Verifier {
	return &Verifier{users: users}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches the hash
func VerifyPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Identify returns the user owning the credentials.
func (v *Verifier) Identify(ctx context.Context, username, password string) (*models.User, error) {
	user, err := v.users.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if user == nil {
		slog.Warn("Identification attempt with non-existent username", "username", username)
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(user.PasswordHash, password) {
		slog.Warn("Identification attempt with incorrect password", "username", username)
		return nil, ErrInvalidCredentials
	}

	slog.Debug("User identified", "user_id", user.ID, "username", user.Username)
	return user, nil
}
