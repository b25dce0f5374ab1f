package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kbhavake29/Task-flow-WebApp/internal/auth"
	"github.com/kbhavake29/Task-flow-WebApp/internal/domain"
	"github.com/kbhavake29/Task-flow-WebApp/internal/service"
	apperrors "github.com/kbhavake29/Task-flow-WebApp/pkg/errors"
	"github.com/kbhavake29/Task-flow-WebApp/pkg/health"
	"github.com/kbhavake29/Task-flow-WebApp/pkg/middleware"
)

// Per-IP budget for the credential endpoints. Every attempt counts,
// successful or not.
const (
	credentialRateLimit  = 10
	credentialRateWindow = 15 * time.Minute
)

// RouterConfig carries the knobs the router needs beyond its dependencies.
type RouterConfig struct {
	RefreshExpiry time.Duration
	CookieSecure  bool
	CORS          CORSConfig
}

// NewRouter creates a chi router with all TaskFlow API routes registered.
func NewRouter(
	authService *service.AuthService,
	tokenService *service.TokenService,
	codec *auth.TokenCodec,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("taskflow"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Token validator bridging the gate to the blacklist and codec. The
	// blacklist is consulted before the signature so a logged-out token is
	// rejected even while cryptographically valid.
	tokenValidator := NewTokenValidator(tokenService, codec)

	// Brute-force guard on signup/signin only; refresh and logout carry
	// tokens and are not password-guessing surfaces.
	credentialLimiter := httprate.Limit(
		credentialRateLimit,
		credentialRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimited),
	)

	authHandler := NewAuthHandler(authService, cfg.RefreshExpiry, cfg.CookieSecure, logger)
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(credentialLimiter).Post("/signup", authHandler.Signup)
		r.With(credentialLimiter).Post("/signin", authHandler.Signin)
		r.Post("/refresh", authHandler.Refresh)

		// Logout is optionally authenticated: a client whose access token
		// has already expired can still end its session via the cookie.
		r.With(middleware.OptionalAuth(tokenValidator)).Post("/logout", authHandler.Logout)

		r.With(middleware.Auth(tokenValidator)).Get("/user", authHandler.CurrentUser)
	})

	// Administrator endpoints
	adminHandler := NewAdminHandler(authService, logger)
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))
		r.Use(middleware.RequireRole(domain.RoleAdministrator))

		r.Post("/users/{id}/revoke-tokens", adminHandler.RevokeUserTokens)
	})

	return r
}

func rateLimited(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, response{
		Error: &errorResponse{
			Code:    "RATE_LIMITED",
			Message: "too many attempts, try again later",
		},
	})
}

// NewTokenValidator builds the gate's validation closure: blacklist check
// first, then signature and claim verification. A transient blacklist
// failure fails open inside IsAccessTokenBlacklisted; the signature check
// still gates the request either way.
func NewTokenValidator(tokens *service.TokenService, codec *auth.TokenCodec) middleware.TokenValidator {
	return func(ctx context.Context, token string) (*middleware.Claims, error) {
		if tokens.IsAccessTokenBlacklisted(ctx, token) {
			return nil, apperrors.ErrInvalidToken
		}

		claims, err := codec.VerifyAccess(token)
		if err != nil {
			return nil, err
		}

		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}
}
