package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kbhavake29/Task-flow-WebApp/internal/domain"
	apperrors "github.com/kbhavake29/Task-flow-WebApp/pkg/errors"
)

// RefreshTokenRepository implements the persistent token ledger using
// PostgreSQL.
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed token ledger.
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create inserts a ledger row for a newly issued refresh token.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, device_info, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.ExpiresAt,
		t.CreatedAt,
		t.DeviceInfo,
		t.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// FindActive returns the record only when id, owner, and hash all match and
// the record is unrevoked and unexpired. Revoked, expired, mismatched, and
// absent records are all the same ErrNotFound.
func (r *RefreshTokenRepository) FindActive(ctx context.Context, tokenID, userID, tokenHash string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at, device_info, ip_address
		FROM refresh_tokens
		WHERE id = $1 AND user_id = $2 AND token_hash = $3
		  AND expires_at > $4 AND revoked_at IS NULL`

	var t domain.RefreshToken
	err := r.db.QueryRow(ctx, query, tokenID, userID, tokenHash, time.Now().UTC()).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.RevokedAt,
		&t.DeviceInfo,
		&t.IPAddress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &t, nil
}

// Revoke marks one token revoked. Rows already revoked (or absent) are left
// untouched and the call still succeeds.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenID, userID string) error {
	query := `UPDATE refresh_tokens SET revoked_at = $1 WHERE id = $2 AND user_id = $3 AND revoked_at IS NULL`

	if _, err := r.db.Exec(ctx, query, time.Now().UTC(), tokenID, userID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

// RevokeAllForUser marks every non-revoked token of the user revoked.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	query := `UPDATE refresh_tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`

	if _, err := r.db.Exec(ctx, query, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("revoke refresh tokens by user: %w", err)
	}

	return nil
}

// DeleteExpired removes rows past their expiry, returning the count. Revoked
// rows are kept until expiry so the audit trail survives revocation.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`

	ct, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	return ct.RowsAffected(), nil
}
