package auth

import (
	"context"
	"errors"

	"github.com/nebari-dev/taskboard/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserFinder looks a user up by username, returning nil if none matches.
type UserFinder interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Identifier turns credentials into a caller identity.
type Identifier interface {
	Identify(ctx context.Context, username, password string) (*models.User, error)
}
