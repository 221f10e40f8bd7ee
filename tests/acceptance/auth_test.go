package acceptance

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/prperemyshlev/auth-notification-service/internal/dto"
)

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Error      *dto.ErrorBody  `json:"error"`
}

var verificationLink = regexp.MustCompile(`href="([^"]*verify-email\?token=[^"]+)"`)

func (s *Suite) request(method, path string, body interface{}, accessToken string) (*http.Response, envelope) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, s.BaseURL+path, &buf)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var env envelope
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func (s *Suite) authData(env envelope) dto.AuthResponse {
	var auth dto.AuthResponse
	s.Require().NoError(json.Unmarshal(env.Data, &auth))
	return auth
}

func (s *Suite) register(email string) dto.AuthResponse {
	resp, env := s.request(http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		FullName: "Test User",
		Email:    email,
		Password: "Password123",
	}, "")
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	return s.authData(env)
}

func (s *Suite) waitForMail(to, subject string) sentMail {
	var mail sentMail
	s.Require().Eventually(func() bool {
		var ok bool
		mail, ok = s.Mailer.find(to, subject)
		return ok
	}, 5*time.Second, 20*time.Millisecond, "no %q email for %s", subject, to)
	return mail
}

func (s *Suite) TestRegister_Success() {
	resp, env := s.request(http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		FullName: "Test User",
		Email:    "Test@Example.com",
		Password: "Password123",
	}, "")

	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal(dto.StatusSuccess, env.Status)

	auth := s.authData(env)
	s.NotEmpty(auth.AccessToken)
	s.NotEmpty(auth.RefreshToken)
	s.Equal("Bearer", auth.TokenType)
	s.NotZero(auth.ExpiresIn)
	s.Equal("test@example.com", *auth.User.Email)
	s.False(auth.User.EmailVerified)
	s.NotEmpty(resp.Cookies(), "Should have refresh token cookie")
}

func (s *Suite) TestRegister_DuplicateEmail() {
	s.register("duplicate@example.com")

	resp, env := s.request(http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		FullName: "Other",
		Email:    "DUPLICATE@example.com",
		Password: "Password123",
	}, "")

	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Equal("EMAIL_TAKEN", env.Error.Kind)
}

func (s *Suite) TestRegister_Invalid() {
	resp, env := s.request(http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		FullName: "Test User",
		Email:    "invalid-email",
		Password: "short",
	}, "")

	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Contains(env.Error.Fields, "email")
	s.Contains(env.Error.Fields, "password")
}

func (s *Suite) TestLogin_InvalidCredentials() {
	s.register("login@example.com")

	wrong, wrongEnv := s.request(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email: "login@example.com", Password: "WrongPassword1",
	}, "")
	unknown, unknownEnv := s.request(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email: "nobody@example.com", Password: "Password123",
	}, "")

	s.Equal(http.StatusUnauthorized, wrong.StatusCode)
	s.Equal(http.StatusUnauthorized, unknown.StatusCode)
	s.Equal(wrongEnv, unknownEnv)
}

func (s *Suite) TestGetMe() {
	auth := s.register("me@example.com")

	resp, env := s.request(http.MethodGet, "/api/v1/auth/me", nil, auth.AccessToken)
	s.Equal(http.StatusOK, resp.StatusCode)

	var user dto.UserResponse
	s.Require().NoError(json.Unmarshal(env.Data, &user))
	s.Equal(auth.User.ID, user.ID)

	resp, _ = s.request(http.MethodGet, "/api/v1/auth/me", nil, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.request(http.MethodGet, "/api/v1/auth/me", nil, "invalid-token")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestRefresh_RotationAndReplay() {
	auth := s.register("refresh@example.com")

	resp, env := s.request(http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: auth.RefreshToken}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	rotated := s.authData(env)
	s.NotEqual(auth.RefreshToken, rotated.RefreshToken)

	resp, env = s.request(http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: auth.RefreshToken}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("INVALID_TOKEN", env.Error.Kind)

	resp, _ = s.request(http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: rotated.RefreshToken}, "")
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestRefresh_ConcurrentUseSucceedsOnce() {
	auth := s.register("race@example.com")

	const callers = 5
	codes := make(chan int, callers)
	for range callers {
		go func() {
			body, _ := json.Marshal(dto.RefreshRequest{RefreshToken: auth.RefreshToken})
			resp, err := http.Post(s.BaseURL+"/api/v1/auth/refresh", "application/json", bytes.NewReader(body))
			if err != nil {
				codes <- 0
				return
			}
			_ = resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}

	ok := 0
	for range callers {
		if <-codes == http.StatusOK {
			ok++
		}
	}
	s.Equal(1, ok)
}

func (s *Suite) TestLogoutAll() {
	first := s.register("devices@example.com")

	resp, env := s.request(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email: "devices@example.com", Password: "Password123",
	}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	second := s.authData(env)

	resp, _ = s.request(http.MethodPost, "/api/v1/auth/logout-all", nil, second.AccessToken)
	s.Equal(http.StatusOK, resp.StatusCode)

	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		resp, _ = s.request(http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: token}, "")
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	}
}

func (s *Suite) TestVerificationEmailFlow() {
	auth := s.register("verify@example.com")

	mail := s.waitForMail("verify@example.com", "Verify your email address")
	match := verificationLink.FindStringSubmatch(mail.Body)
	s.Require().Len(match, 2)

	link, err := url.Parse(match[1])
	s.Require().NoError(err)
	token := link.Query().Get("token")
	s.Require().NotEmpty(token)

	resp, env := s.request(http.MethodGet, "/api/v1/auth/verify-email?token="+url.QueryEscape(token), nil, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var user dto.UserResponse
	s.Require().NoError(json.Unmarshal(env.Data, &user))
	s.Equal(auth.User.ID, user.ID)
	s.True(user.EmailVerified)

	s.waitForMail("verify@example.com", "Welcome to Acceptance")

	resp, env = s.request(http.MethodPost, "/api/v1/auth/verify-email", dto.VerifyEmailRequest{Token: token}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("Invalid or expired token", env.Message)
}

func (s *Suite) TestCompleteFlow() {
	auth := s.register("flow@example.com")

	resp, env := s.request(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email: "flow@example.com", Password: "Password123",
	}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	login := s.authData(env)

	resp, _ = s.request(http.MethodGet, "/api/v1/auth/me", nil, login.AccessToken)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, env = s.request(http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: login.RefreshToken}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	refreshed := s.authData(env)

	resp, _ = s.request(http.MethodPost, "/api/v1/auth/logout", dto.RefreshRequest{RefreshToken: refreshed.RefreshToken}, "")
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.request(http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: refreshed.RefreshToken}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	// the registration session is independent of the logged-out one
	resp, _ = s.request(http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: auth.RefreshToken}, "")
	s.Equal(http.StatusOK, resp.StatusCode)
}
