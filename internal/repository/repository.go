package repository

import (
	"context"
	"time"

	"github.com/kbhavake29/Task-flow-WebApp/internal/domain"
)

// UserRepository is the identity store boundary: user records are read by
// the session layer but their lifecycle is owned elsewhere.
type UserRepository interface {
	// Create inserts a new user. Email uniqueness is enforced at write time.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their normalized email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateLastLogin records a successful authentication timestamp.
	UpdateLastLogin(ctx context.Context, id string) error
}

// RefreshTokenRepository is the persistent token ledger: the durable,
// authoritative record of every issued refresh token. The cache in front
// of it is purely an accelerator.
type RefreshTokenRepository interface {
	// Create inserts a ledger row for a newly issued refresh token.
	Create(ctx context.Context, token *domain.RefreshToken) error

	// FindActive returns the record only when the id, owner, and hash all
	// match AND the record is unrevoked and unexpired. Any other state is
	// domain-errors.ErrNotFound; callers cannot distinguish revoked from
	// expired from never-existed.
	FindActive(ctx context.Context, tokenID, userID, tokenHash string) (*domain.RefreshToken, error)

	// Revoke marks one token revoked. Idempotent: revoking an already
	// revoked or nonexistent token is not an error.
	Revoke(ctx context.Context, tokenID, userID string) error

	// RevokeAllForUser marks every non-revoked token of the user revoked.
	RevokeAllForUser(ctx context.Context, userID string) error

	// DeleteExpired removes rows past their expiry, returning the count.
	// This is the only path that ever deletes ledger rows.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
