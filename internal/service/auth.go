package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kbhavake29/Task-flow-WebApp/internal/auth"
	"github.com/kbhavake29/Task-flow-WebApp/internal/domain"
	"github.com/kbhavake29/Task-flow-WebApp/internal/repository"
	apperrors "github.com/kbhavake29/Task-flow-WebApp/pkg/errors"
)

// SecurityEvents receives authentication lifecycle notifications. All
// publishes are best-effort: a broker outage must never fail a signin.
type SecurityEvents interface {
	UserRegistered(ctx context.Context, user *domain.User)
	UserSignedIn(ctx context.Context, user *domain.User, ipAddress string)
	TokensRevoked(ctx context.Context, userID, reason string)
}

// AuthService implements the account-facing authentication flows: signup,
// signin, access-token refresh, logout, and current-user lookup. Token
// mechanics are delegated to the TokenService.
type AuthService struct {
	users  repository.UserRepository
	tokens *TokenService
	codec  *auth.TokenCodec
	events SecurityEvents
	logger *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	tokens *TokenService,
	codec *auth.TokenCodec,
	events SecurityEvents,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		codec:  codec,
		events: events,
		logger: logger,
	}
}

// Signup registers a new account and signs it in immediately, returning the
// created user together with a fresh token pair. Email uniqueness is
// enforced by the ledger's constraint, not by a racy pre-check.
func (s *AuthService) Signup(ctx context.Context, email, password, deviceInfo, ipAddress string) (*domain.User, *domain.TokenPair, error) {
	if err := auth.ValidatePassword(password); err != nil {
		return nil, nil, err
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        domain.NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         domain.RoleStandard,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.tokens.GenerateTokenPair(ctx, user, deviceInfo, ipAddress)
	if err != nil {
		return nil, nil, err
	}

	s.events.UserRegistered(ctx, user)

	return user, pair, nil
}

// Signin verifies credentials and issues a new token pair. Unknown email,
// wrong password, and deactivated account all produce the same generic
// rejection so the response never confirms whether an address is
// registered.
func (s *AuthService) Signin(ctx context.Context, email, password, deviceInfo, ipAddress string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, nil, err
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	if !user.IsActive {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	pair, err := s.tokens.GenerateTokenPair(ctx, user, deviceInfo, ipAddress)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.events.UserSignedIn(ctx, user, ipAddress)

	return user, pair, nil
}

// RefreshAccess exchanges a valid refresh token for a new access token.
// The refresh token itself is not rotated: its ledger record and expiry
// stay as issued, so a stolen refresh token stays usable until revocation
// or expiry, which is the accepted trade-off for idempotent, retry-safe
// refreshes. Signature, whitelist/ledger state, and account status are all
// checked on every call.
func (s *AuthService) RefreshAccess(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}

	if !s.tokens.ValidateRefreshToken(ctx, refreshToken, claims.UserID, claims.TokenID, claims.ExpiresAt.Time) {
		return "", apperrors.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.ErrInvalidToken
		}
		return "", err
	}

	if !user.IsActive {
		return "", apperrors.ErrInvalidToken
	}

	accessToken, err := s.codec.SignAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}

	return accessToken, nil
}

// Logout ends a session: the refresh token is revoked in the ledger and
// cleared from the whitelist, and the still-valid access token is
// blacklisted for its remaining lifetime. Each step is attempted even if an
// earlier one fails, and every failure is surfaced together. Tokens that no
// longer verify are simply skipped; logging out an already-dead session is
// not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken, accessToken string) error {
	var errs []error

	if refreshToken != "" {
		if claims, err := s.codec.VerifyRefresh(refreshToken); err == nil {
			if err := s.tokens.RevokeRefreshToken(ctx, claims.UserID, claims.TokenID); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if accessToken != "" {
		if claims, err := s.codec.VerifyAccess(accessToken); err == nil {
			remaining := time.Until(claims.ExpiresAt.Time)
			if err := s.tokens.BlacklistAccessToken(ctx, accessToken, remaining); err != nil {
				errs = append(errs, fmt.Errorf("blacklist access token: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

// RevokeAllSessions force-terminates every session of a user, for password
// changes and compromise response.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID, reason string) error {
	if err := s.tokens.RevokeAllUserTokens(ctx, userID); err != nil {
		return err
	}
	s.events.TokensRevoked(ctx, userID, reason)
	return nil
}

// CurrentUser loads the account behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}
