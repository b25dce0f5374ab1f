package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kbhavake29/Task-flow-WebApp/internal/auth"
	"github.com/kbhavake29/Task-flow-WebApp/internal/cache"
	"github.com/kbhavake29/Task-flow-WebApp/internal/domain"
	"github.com/kbhavake29/Task-flow-WebApp/internal/repository"
)

// blacklistSentinel is the value stored for blacklisted access tokens; the
// key's mere presence is the signal.
const blacklistSentinel = "1"

// TokenService orchestrates issuance, validation, and revocation of token
// pairs across the codec, the revocation cache, and the persistent ledger.
// It holds no mutable in-process state, so all methods are safe for
// concurrent use; the cache and ledger are the only shared resources.
type TokenService struct {
	tokens repository.RefreshTokenRepository
	cache  *cache.Cache
	codec  *auth.TokenCodec
	logger *slog.Logger
}

// NewTokenService creates a new token service.
func NewTokenService(
	tokens repository.RefreshTokenRepository,
	revocations *cache.Cache,
	codec *auth.TokenCodec,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		tokens: tokens,
		cache:  revocations,
		codec:  codec,
		logger: logger,
	}
}

// GenerateTokenPair mints a fresh token identifier, signs an access and a
// refresh token, durably records the refresh token's hash in the ledger,
// and whitelists it in the cache. The ledger insert is the correctness
// write and its failure propagates; the whitelist write is an optimization
// and its failure is only logged. Every call mints a brand-new identifier,
// so retries are safe.
func (s *TokenService) GenerateTokenPair(ctx context.Context, user *domain.User, deviceInfo, ipAddress string) (*domain.TokenPair, error) {
	accessToken, err := s.codec.SignAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID := uuid.New().String()
	refreshToken, err := s.codec.SignRefresh(user.ID, tokenID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	record := &domain.RefreshToken{
		ID:         tokenID,
		UserID:     user.ID,
		TokenHash:  hashToken(refreshToken),
		ExpiresAt:  now.Add(s.codec.RefreshExpiry()),
		CreatedAt:  now,
		DeviceInfo: deviceInfo,
		IPAddress:  ipAddress,
	}

	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	// Whitelist TTL is derived from the record's real remaining lifetime so
	// the cache entry can never outlive the ledger row.
	key := cache.RefreshKey(user.ID, tokenID)
	if err := s.cache.Set(ctx, key, record.TokenHash, time.Until(record.ExpiresAt)); err != nil {
		s.logger.WarnContext(ctx, "failed to whitelist refresh token, ledger remains authoritative",
			slog.String("user_id", user.ID),
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ValidateRefreshToken checks a presented refresh token against the
// whitelist cache first and the ledger second. The ledger is authoritative
// whenever the two disagree: a cached hash that does not match the
// presented token falls through to the ledger rather than being trusted.
// Cache errors are treated as misses. expiresAt comes from the token's own
// verified claims and caps the sliding cache TTL.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, rawToken, userID, tokenID string, expiresAt time.Time) bool {
	tokenHash := hashToken(rawToken)
	key := cache.RefreshKey(userID, tokenID)

	cachedHash, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "whitelist read failed, falling back to ledger",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}

	if found && cachedHash == tokenHash {
		// Slide the cache TTL forward, never past the record's expiry.
		if ttl := s.whitelistTTL(expiresAt); ttl > 0 {
			if err := s.cache.Expire(ctx, key, ttl); err != nil {
				s.logger.WarnContext(ctx, "failed to extend whitelist ttl",
					slog.String("token_id", tokenID),
					slog.String("error", err.Error()),
				)
			}
		}
		return true
	}

	record, err := s.tokens.FindActive(ctx, tokenID, userID, tokenHash)
	if err != nil {
		// Revoked, expired, never issued, and store failure all collapse to
		// the same rejection.
		return false
	}

	if err := s.cache.Set(ctx, key, tokenHash, time.Until(record.ExpiresAt)); err != nil {
		s.logger.WarnContext(ctx, "failed to repopulate whitelist",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}

	return true
}

// RevokeRefreshToken revokes one refresh token in the ledger and clears its
// whitelist entry. The ledger write must succeed for the revocation to
// count; a failed cache clear is tolerated (the entry dies by TTL at worst)
// but still surfaced so the caller can log it.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, userID, tokenID string) error {
	var errs []error

	if err := s.tokens.Revoke(ctx, tokenID, userID); err != nil {
		errs = append(errs, fmt.Errorf("revoke in ledger: %w", err))
	}

	if err := s.cache.Delete(ctx, cache.RefreshKey(userID, tokenID)); err != nil {
		errs = append(errs, fmt.Errorf("clear whitelist: %w", err))
	}

	return errors.Join(errs...)
}

// RevokeAllUserTokens revokes every live refresh token of the user and
// clears all matching whitelist entries. Used for password change, account
// deletion, and suspected compromise.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	var errs []error

	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		errs = append(errs, fmt.Errorf("revoke all in ledger: %w", err))
	}

	if err := s.cache.DeletePattern(ctx, cache.RefreshKeyPattern(userID)); err != nil {
		errs = append(errs, fmt.Errorf("clear whitelist entries: %w", err))
	}

	return errors.Join(errs...)
}

// BlacklistAccessToken rejects a specific, still-valid access token for the
// remainder of its lifetime. The entry self-expires exactly when the token
// would have, bounding blacklist growth.
func (s *TokenService) BlacklistAccessToken(ctx context.Context, rawToken string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	return s.cache.Set(ctx, cache.BlacklistKey(hashToken(rawToken)), blacklistSentinel, remaining)
}

// IsAccessTokenBlacklisted reports whether the exact access token has been
// blacklisted. A transient cache failure fails open to "not blacklisted":
// the token's own signature and expiry checks still gate the request, so
// only the revocation optimization is lost, never authentication itself.
func (s *TokenService) IsAccessTokenBlacklisted(ctx context.Context, rawToken string) bool {
	present, err := s.cache.Exists(ctx, cache.BlacklistKey(hashToken(rawToken)))
	if err != nil {
		s.logger.WarnContext(ctx, "blacklist check failed, proceeding on signature validity",
			slog.String("error", err.Error()),
		)
		return false
	}
	return present
}

// CleanupExpiredTokens deletes ledger rows past their expiry, returning the
// number removed. Run periodically; never on the request path.
func (s *TokenService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	count, err := s.tokens.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired tokens: %w", err)
	}
	return count, nil
}

// whitelistTTL bounds a sliding cache extension by the record's remaining
// lifetime.
func (s *TokenService) whitelistTTL(expiresAt time.Time) time.Duration {
	remaining := time.Until(expiresAt)
	if remaining > s.codec.RefreshExpiry() {
		return s.codec.RefreshExpiry()
	}
	return remaining
}

// hashToken returns the sha256 hex digest used for durable token storage
// and blacklist keys. This is deliberately a fast digest, not the adaptive
// password hash: tokens are high-entropy, passwords are not.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
