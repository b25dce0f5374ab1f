package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kbhavake29/Task-flow-WebApp/internal/auth"
	"github.com/kbhavake29/Task-flow-WebApp/internal/cache"
	"github.com/kbhavake29/Task-flow-WebApp/internal/domain"
	"github.com/kbhavake29/Task-flow-WebApp/internal/service"
	apperrors "github.com/kbhavake29/Task-flow-WebApp/pkg/errors"
	"github.com/kbhavake29/Task-flow-WebApp/pkg/health"
)

// --- Mocks ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) FindActive(ctx context.Context, tokenID, userID, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenID, userID, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, tokenID, userID string) error {
	args := m.Called(ctx, tokenID, userID)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type noopEvents struct{}

func (noopEvents) UserRegistered(context.Context, *domain.User)       {}
func (noopEvents) UserSignedIn(context.Context, *domain.User, string) {}
func (noopEvents) TokensRevoked(context.Context, string, string)      {}

// --- Fixture ---

type routerFixture struct {
	router    http.Handler
	users     *mockUserRepository
	tokenRepo *mockRefreshTokenRepository
	codec     *auth.TokenCodec
	mr        *miniredis.Miniredis
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	codec, err := auth.NewTokenCodec(
		"test-access-secret-0123456789abcdef",
		"test-refresh-secret-0123456789abcdef",
		15*time.Minute,
		7*24*time.Hour,
	)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	users := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	tokens := service.NewTokenService(tokenRepo, cache.New(client), codec, logger)
	authService := service.NewAuthService(users, tokens, codec, noopEvents{}, logger)

	router := NewRouter(authService, tokens, codec, health.NewHandler(), logger, RouterConfig{
		RefreshExpiry: 7 * 24 * time.Hour,
		CookieSecure:  true,
		CORS:          CORSConfig{AllowedOrigins: []string{"*"}, Environment: "development"},
	})

	return &routerFixture{
		router:    router,
		users:     users,
		tokenRepo: tokenRepo,
		codec:     codec,
		mr:        mr,
	}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	return nil
}

func activeUser() *domain.User {
	now := time.Now().UTC()
	hash, _ := bcrypt.GenerateFromPassword([]byte("SecurePass123"), 4)
	return &domain.User{
		ID:           "7cfa6f3e-0d50-4d70-9f22-0fb1e8a10001",
		Email:        "jane@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleStandard,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// --- Signup ---

func TestSignupEndpoint_Success(t *testing.T) {
	f := newRouterFixture(t)

	f.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	f.tokenRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    "jane@example.com",
		"password": "SecurePass123",
	}))

	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Data struct {
			User struct {
				Email string `json:"email"`
			} `json:"user"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "jane@example.com", body.Data.User.Email)
	assert.NotEmpty(t, body.Data.AccessToken)

	// The refresh token travels only in a hardened cookie.
	assert.NotContains(t, rec.Body.String(), "refresh_token")
	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/api/auth", cookie.Path)
}

func TestSignupEndpoint_ValidationError(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    "not-an-email",
		"password": "SecurePass123",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSignupEndpoint_WrongContentType(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString("email=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := f.do(req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// --- Signin ---

func TestSigninEndpoint_Success(t *testing.T) {
	f := newRouterFixture(t)
	user := activeUser()

	f.users.On("GetByEmail", mock.Anything, "jane@example.com").Return(user, nil)
	f.users.On("UpdateLastLogin", mock.Anything, user.ID).Return(nil)
	f.tokenRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    "jane@example.com",
		"password": "SecurePass123",
	}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, refreshCookie(rec))
}

func TestSigninEndpoint_WrongPassword(t *testing.T) {
	f := newRouterFixture(t)
	user := activeUser()

	f.users.On("GetByEmail", mock.Anything, "jane@example.com").Return(user, nil)

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    "jane@example.com",
		"password": "WrongPass123",
	}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")
	assert.Nil(t, refreshCookie(rec))
}

func TestSigninEndpoint_RateLimited(t *testing.T) {
	f := newRouterFixture(t)
	user := activeUser()

	f.users.On("GetByEmail", mock.Anything, "jane@example.com").Return(user, nil)

	body := map[string]string{
		"email":    "jane@example.com",
		"password": "WrongPass123",
	}

	for i := 0; i < 10; i++ {
		rec := f.do(jsonRequest(http.MethodPost, "/api/auth/signin", body))
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/signin", body))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Token-bearing routes are not behind the credential limiter.
	refreshRec := f.do(jsonRequest(http.MethodPost, "/api/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, refreshRec.Code)
}

// --- Refresh ---

func signinThroughAPI(t *testing.T, f *routerFixture, user *domain.User) (accessToken string, cookie *http.Cookie) {
	t.Helper()

	f.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.users.On("UpdateLastLogin", mock.Anything, user.ID).Return(nil)
	f.tokenRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    user.Email,
		"password": "SecurePass123",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	cookie = refreshCookie(rec)
	require.NotNil(t, cookie)
	return body.Data.AccessToken, cookie
}

func TestRefreshEndpoint_Success(t *testing.T) {
	f := newRouterFixture(t)
	user := activeUser()

	_, cookie := signinThroughAPI(t, f, user)
	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	req := jsonRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(cookie)

	rec := f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_token")

	// No rotation: the response does not set a new refresh cookie.
	assert.Nil(t, refreshCookie(rec))
}

func TestRefreshEndpoint_MissingCookie(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpoint_InvalidTokenClearsCookie(t *testing.T) {
	f := newRouterFixture(t)

	req := jsonRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "garbage"})

	rec := f.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

// --- Logout and the gate ---

func TestLogoutEndpoint_BlacklistsAccessToken(t *testing.T) {
	f := newRouterFixture(t)
	user := activeUser()

	accessToken, cookie := signinThroughAPI(t, f, user)
	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.tokenRepo.On("Revoke", mock.Anything, mock.AnythingOfType("string"), user.ID).Return(nil)

	// The access token passes the gate before logout.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	require.Equal(t, http.StatusOK, f.do(req).Code)

	// Logout.
	req = jsonRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.AddCookie(cookie)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := refreshCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	// The same, still-unexpired access token is now rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

// Logout still clears the cookie when no valid tokens accompany the request.
func TestLogoutEndpoint_WithoutTokens(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/logout", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := refreshCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestCurrentUserEndpoint_RequiresAuth(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

// A refresh token is not a bearer credential: the gate rejects it even
// though it is validly signed.
func TestGate_RejectsRefreshTokenAsBearer(t *testing.T) {
	f := newRouterFixture(t)

	refresh, err := f.codec.SignRefresh("user-1", "token-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

// --- Admin ---

func TestAdminRevokeTokens_RequiresAdministrator(t *testing.T) {
	f := newRouterFixture(t)

	standard, err := f.codec.SignAccess("user-1", "jane@example.com", domain.RoleStandard)
	require.NoError(t, err)

	req := jsonRequest(http.MethodPost, "/api/admin/users/7cfa6f3e-0d50-4d70-9f22-0fb1e8a10001/revoke-tokens", nil)
	req.Header.Set("Authorization", "Bearer "+standard)
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
}

func TestAdminRevokeTokens_Success(t *testing.T) {
	f := newRouterFixture(t)

	const targetID = "7cfa6f3e-0d50-4d70-9f22-0fb1e8a10001"

	admin, err := f.codec.SignAccess("admin-1", "root@example.com", domain.RoleAdministrator)
	require.NoError(t, err)

	f.tokenRepo.On("RevokeAllForUser", mock.Anything, targetID).Return(nil)

	req := jsonRequest(http.MethodPost, "/api/admin/users/"+targetID+"/revoke-tokens", nil)
	req.Header.Set("Authorization", "Bearer "+admin)

	rec := f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tokens_revoked")
	f.tokenRepo.AssertExpectations(t)
}

func TestAdminRevokeTokens_InvalidID(t *testing.T) {
	f := newRouterFixture(t)

	admin, err := f.codec.SignAccess("admin-1", "root@example.com", domain.RoleAdministrator)
	require.NoError(t, err)

	req := jsonRequest(http.MethodPost, "/api/admin/users/not-a-uuid/revoke-tokens", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
}

// --- Error mapping ---

func TestErrorMapping_UnavailableStore(t *testing.T) {
	f := newRouterFixture(t)

	f.users.On("GetByEmail", mock.Anything, "jane@example.com").Return(nil,
		apperrors.Unavailable("session store unavailable", assert.AnError))

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    "jane@example.com",
		"password": "SecurePass123",
	}))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
