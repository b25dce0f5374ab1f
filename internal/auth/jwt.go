package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbhavake29/Task-flow-WebApp/pkg/errors"
)

// Token claim values fixed for this deployment. Issuer and audience are
// constants, never user-supplied; both are validated on every parse.
const (
	Issuer   = "taskflow-api"
	Audience = "taskflow-client"

	typeAccess  = "access"
	typeRefresh = "refresh"
)

// MinSecretLen is the minimum byte length accepted for a signing secret.
// Shorter secrets are rejected at construction time.
const MinSecretLen = 32

// AccessClaims is the payload of an access token. It exists only inside a
// signed token and is never persisted.
type AccessClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. TokenID is an opaque
// identifier naming the ledger record; it is not the stored secret.
type RefreshClaims struct {
	UserID    string `json:"user_id"`
	TokenID   string `json:"token_id"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access and refresh tokens. The two kinds
// use distinct secrets so that compromise of one key cannot forge the
// other kind.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewTokenCodec creates a codec. Both secrets must be at least MinSecretLen
// bytes; violating this is a configuration error and the process must not
// start.
func NewTokenCodec(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) (*TokenCodec, error) {
	if len(accessSecret) < MinSecretLen {
		return nil, fmt.Errorf("access token secret must be at least %d bytes, got %d", MinSecretLen, len(accessSecret))
	}
	if len(refreshSecret) < MinSecretLen {
		return nil, fmt.Errorf("refresh token secret must be at least %d bytes, got %d", MinSecretLen, len(refreshSecret))
	}
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}, nil
}

// AccessExpiry returns the configured access token lifetime.
func (c *TokenCodec) AccessExpiry() time.Duration { return c.accessExpiry }

// RefreshExpiry returns the configured refresh token lifetime.
func (c *TokenCodec) RefreshExpiry() time.Duration { return c.refreshExpiry }

// SignAccess creates a signed access token for the given user.
func (c *TokenCodec) SignAccess(userID, email, role string) (string, error) {
	now := time.Now().UTC()
	claims := &AccessClaims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessExpiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// SignRefresh creates a signed refresh token naming the ledger record tokenID.
func (c *TokenCodec) SignRefresh(userID, tokenID string) (string, error) {
	now := time.Now().UTC()
	claims := &RefreshClaims{
		UserID:    userID,
		TokenID:   tokenID,
		TokenType: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshExpiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccess parses and validates an access token. Every failure mode
// (bad signature, expired, wrong issuer/audience, wrong kind) collapses to
// apperrors.ErrInvalidToken so the caller cannot be used as an oracle.
func (c *TokenCodec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenString, claims, c.accessSecret); err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.TokenType != typeAccess {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token, collapsing all
// failures like VerifyAccess. A structurally valid access token presented
// here fails the discriminator check.
func (c *TokenCodec) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenString, claims, c.refreshSecret); err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.TokenType != typeRefresh {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// parse verifies signature, expiry, issuer, and audience in that order
// (signature and expiry are enforced by the jwt library before the
// registered-claim options run).
func (c *TokenCodec) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
