package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/auth-notification-service/internal/config"
	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/dto"
	"github.com/prperemyshlev/auth-notification-service/internal/repository/memory"
	"github.com/prperemyshlev/auth-notification-service/internal/service"
	"github.com/prperemyshlev/auth-notification-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

type testServer struct {
	router        *gin.Engine
	users         *memory.UserStore
	verifications *memory.VerificationTokenStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := memory.NewUserStore()
	s := &testServer{
		users:         users,
		verifications: memory.NewVerificationTokenStore(users),
	}

	signer := utils.NewJWTManager(testSecret, 15*time.Minute)
	refreshTokens := service.NewRefreshTokenService(memory.NewTokenStore(), s.users, signer, time.Hour, nil, zap.NewNop())
	authService := service.NewAuthService(
		s.users,
		s.verifications,
		refreshTokens,
		signer,
		utils.NewPasswordHasher(4),
		nil,
		time.Second,
		zap.NewNop(),
	)

	s.router = gin.New()
	s.router.Use(CORSMiddleware(config.CORSConfig{
		AllowedOrigins: []string{"http://app.test"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))
	NewAuthHandler(authService, zap.NewNop()).RegisterRoutes(s.router.Group("/api/v1/auth"))

	return s
}

type response struct {
	code    int
	cookies []*http.Cookie
	header  http.Header
	env     struct {
		Status     string          `json:"status"`
		StatusCode int             `json:"statusCode"`
		Message    string          `json:"message"`
		Data       json.RawMessage `json:"data"`
		Error      *dto.ErrorBody  `json:"error"`
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, opts ...func(*http.Request)) *response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	res := &response{code: w.Code, cookies: w.Result().Cookies(), header: w.Header()}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res.env))
	}
	return res
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func (r *response) auth(t *testing.T) dto.AuthResponse {
	t.Helper()
	var auth dto.AuthResponse
	require.NoError(t, json.Unmarshal(r.env.Data, &auth))
	return auth
}

func (s *testServer) register(t *testing.T, email string) dto.AuthResponse {
	t.Helper()
	res := s.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		FullName: "Jane Doe",
		Email:    email,
		Password: "Secret123",
	})
	require.Equal(t, http.StatusCreated, res.code)
	return res.auth(t)
}

func TestRegisterReturnsSessionAndCookie(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		FullName: "Jane Doe",
		Email:    "Jane@Example.com",
		Password: "Secret123",
	})
	require.Equal(t, http.StatusCreated, res.code)
	assert.Equal(t, dto.StatusSuccess, res.env.Status)
	assert.Equal(t, http.StatusCreated, res.env.StatusCode)

	auth := res.auth(t)
	assert.NotEmpty(t, auth.AccessToken)
	assert.NotEmpty(t, auth.RefreshToken)
	assert.Equal(t, "Bearer", auth.TokenType)
	assert.Equal(t, "jane@example.com", *auth.User.Email)
	assert.False(t, auth.User.EmailVerified)

	require.Len(t, res.cookies, 1)
	assert.Equal(t, refreshCookieName, res.cookies[0].Name)
	assert.Equal(t, auth.RefreshToken, res.cookies[0].Value)
	assert.True(t, res.cookies[0].HttpOnly)
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "jane@example.com")

	res := s.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		FullName: "Jane", Email: "jane@example.com", Password: "Secret123",
	})
	assert.Equal(t, http.StatusConflict, res.code)
	assert.Equal(t, string(domain.KindEmailTaken), res.env.Error.Kind)

	res = s.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		FullName: "Jane", Email: "not-an-email", Password: "short",
	})
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, dto.StatusFail, res.env.Status)
	assert.Contains(t, res.env.Error.Fields, "email")
	assert.Contains(t, res.env.Error.Fields, "password")

	res = s.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "x@y.com"})
	assert.Equal(t, http.StatusBadRequest, res.code)
}

func TestLoginFailuresShareOneShape(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "jane@example.com")

	wrongPassword := s.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "jane@example.com", Password: "Wrong1234"})
	unknownEmail := s.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "nobody@example.com", Password: "Secret123"})

	for _, res := range []*response{wrongPassword, unknownEmail} {
		assert.Equal(t, http.StatusUnauthorized, res.code)
		assert.Equal(t, msgInvalidCredentials, res.env.Message)
		assert.Equal(t, string(domain.KindInvalidCredentials), res.env.Error.Kind)
	}

	ok := s.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "jane@example.com", Password: "Secret123"})
	assert.Equal(t, http.StatusOK, ok.code)
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	s := newTestServer(t)
	first := s.register(t, "jane@example.com")

	res := s.do(t, http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: first.RefreshToken})
	require.Equal(t, http.StatusOK, res.code)
	second := res.auth(t)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	replay := s.do(t, http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, replay.code)
	assert.Equal(t, msgInvalidToken, replay.env.Message)
	assert.Equal(t, string(domain.KindInvalidToken), replay.env.Error.Kind)

	// the cookie is accepted when the body is empty
	viaCookie := s.do(t, http.MethodPost, "/api/v1/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: refreshCookieName, Value: second.RefreshToken})
	})
	assert.Equal(t, http.StatusOK, viaCookie.code)

	missing := s.do(t, http.MethodPost, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, missing.code)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	s := newTestServer(t)
	auth := s.register(t, "jane@example.com")

	res := s.do(t, http.MethodPost, "/api/v1/auth/logout", dto.RefreshRequest{RefreshToken: auth.RefreshToken})
	assert.Equal(t, http.StatusOK, res.code)

	// logging out twice is not an error
	res = s.do(t, http.MethodPost, "/api/v1/auth/logout", dto.RefreshRequest{RefreshToken: auth.RefreshToken})
	assert.Equal(t, http.StatusOK, res.code)

	res = s.do(t, http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: auth.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestLogoutAllRequiresBearer(t *testing.T) {
	s := newTestServer(t)
	auth := s.register(t, "jane@example.com")

	res := s.do(t, http.MethodPost, "/api/v1/auth/logout-all", nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)

	res = s.do(t, http.MethodPost, "/api/v1/auth/logout-all", nil, bearer(auth.AccessToken))
	assert.Equal(t, http.StatusOK, res.code)

	res = s.do(t, http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: auth.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestGetMe(t *testing.T) {
	s := newTestServer(t)
	auth := s.register(t, "jane@example.com")

	res := s.do(t, http.MethodGet, "/api/v1/auth/me", nil, bearer(auth.AccessToken))
	require.Equal(t, http.StatusOK, res.code)

	var user dto.UserResponse
	require.NoError(t, json.Unmarshal(res.env.Data, &user))
	assert.Equal(t, auth.User.ID, user.ID)

	res = s.do(t, http.MethodGet, "/api/v1/auth/me", nil, bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, res.code)
	assert.Equal(t, msgInvalidToken, res.env.Message)
}

func TestVerifyEmailByQueryAndBody(t *testing.T) {
	s := newTestServer(t)
	auth := s.register(t, "jane@example.com")
	ctx := context.Background()

	require.NoError(t, s.verifications.Create(ctx, &domain.VerificationToken{
		TokenHash: utils.HashToken("first-token"),
		UserID:    auth.User.ID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}))

	res := s.do(t, http.MethodGet, "/api/v1/auth/verify-email?token=first-token", nil)
	require.Equal(t, http.StatusOK, res.code)
	var user dto.UserResponse
	require.NoError(t, json.Unmarshal(res.env.Data, &user))
	assert.True(t, user.EmailVerified)

	res = s.do(t, http.MethodGet, "/api/v1/auth/verify-email?token=first-token", nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)

	res = s.do(t, http.MethodPost, "/api/v1/auth/verify-email", dto.VerifyEmailRequest{Token: "unknown"})
	assert.Equal(t, http.StatusUnauthorized, res.code)
	assert.Equal(t, msgInvalidToken, res.env.Message)

	res = s.do(t, http.MethodGet, "/api/v1/auth/verify-email", nil)
	assert.Equal(t, http.StatusBadRequest, res.code)
}

func TestListUsersRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	user := s.register(t, "jane@example.com")
	s.register(t, "john@example.com")

	res := s.do(t, http.MethodGet, "/api/v1/auth/users", nil, bearer(user.AccessToken))
	assert.Equal(t, http.StatusForbidden, res.code)

	stored, err := s.users.GetByID(ctx, user.User.ID)
	require.NoError(t, err)
	stored.Role = domain.RoleAdmin
	require.NoError(t, s.users.Update(ctx, stored))

	login := s.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "jane@example.com", Password: "Secret123"})
	require.Equal(t, http.StatusOK, login.code)
	admin := login.auth(t)

	res = s.do(t, http.MethodGet, "/api/v1/auth/users?limit=1&sort_by=email&sort_order=asc", nil, bearer(admin.AccessToken))
	require.Equal(t, http.StatusOK, res.code)

	var page struct {
		Items []dto.UserResponse `json:"items"`
		Meta  dto.PaginationMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(res.env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "jane@example.com", *page.Items[0].Email)
	assert.Equal(t, 2, page.Meta.TotalItems)
	assert.Equal(t, 2, page.Meta.TotalPages)

	res = s.do(t, http.MethodGet, "/api/v1/auth/users?sort_by=password", nil, bearer(admin.AccessToken))
	assert.Equal(t, http.StatusBadRequest, res.code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodOptions, "/api/v1/auth/login", nil, func(r *http.Request) {
		r.Header.Set("Origin", "http://app.test")
	})
	assert.Equal(t, http.StatusNoContent, res.code)
	assert.Equal(t, "http://app.test", res.header.Get("Access-Control-Allow-Origin"))

	res = s.do(t, http.MethodOptions, "/api/v1/auth/login", nil, func(r *http.Request) {
		r.Header.Set("Origin", "http://evil.test")
	})
	assert.Empty(t, res.header.Get("Access-Control-Allow-Origin"))
}
