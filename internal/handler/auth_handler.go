package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/dto"
	"github.com/prperemyshlev/auth-notification-service/internal/service"
	"go.uber.org/zap"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRoutes mounts the auth endpoints on group
func (h *AuthHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/register", h.Register)
	group.POST("/login", h.Login)
	group.POST("/refresh", h.Refresh)
	group.POST("/logout", h.Logout)
	group.GET("/verify-email", h.VerifyEmail)
	group.POST("/verify-email", h.VerifyEmail)

	protected := group.Group("")
	protected.Use(AuthMiddleware(h.authService))
	protected.POST("/logout-all", h.LogoutAll)
	protected.GET("/me", h.GetMe)
	protected.GET("/users", RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin), h.ListUsers)
}

func clientMeta(c *gin.Context) domain.ClientMeta {
	return domain.ClientMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, session *domain.Session) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, session.RefreshToken, session.RefreshTokenExpiresIn, refreshCookiePath, "", true, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", true, true)
}

// refreshToken reads the token from the JSON body, falling back to the cookie
func refreshToken(c *gin.Context) string {
	var req dto.RefreshRequest
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	cookie, _ := c.Cookie(refreshCookieName)
	return cookie
}

func badRequest(c *gin.Context, err error) {
	respondFail(c, http.StatusBadRequest, "Validation failed", &dto.ErrorBody{
		Kind:   string(domain.KindValidation),
		Fields: map[string]string{"request": err.Error()},
	})
}

// Register handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.Envelope{data=dto.AuthResponse}
// @Failure 400 {object} dto.Envelope
// @Failure 409 {object} dto.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), req.FullName, req.Email, req.Password, clientMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setRefreshCookie(c, result.Session)
	respond(c, http.StatusCreated, "User registered successfully", dto.NewAuthResponse(result.User, result.Session))
}

// Login handles user login
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.Envelope{data=dto.AuthResponse}
// @Failure 401 {object} dto.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, clientMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setRefreshCookie(c, result.Session)
	respond(c, http.StatusOK, "Login successful", dto.NewAuthResponse(result.User, result.Session))
}

// Refresh rotates the refresh token
// @Summary Refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshRequest false "Refresh token, or the refresh_token cookie"
// @Success 200 {object} dto.Envelope{data=dto.AuthResponse}
// @Failure 401 {object} dto.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := refreshToken(c)
	if token == "" {
		respondError(c, h.logger, domain.ErrInvalidToken)
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), token, clientMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setRefreshCookie(c, result.Session)
	respond(c, http.StatusOK, "Token refreshed successfully", dto.NewAuthResponse(result.User, result.Session))
}

// Logout revokes the presented refresh token
// @Summary Logout
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshRequest false "Refresh token, or the refresh_token cookie"
// @Success 200 {object} dto.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), refreshToken(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.clearRefreshCookie(c)
	respond(c, http.StatusOK, "Logged out successfully", nil)
}

// LogoutAll revokes every refresh token of the current user
// @Summary Logout from all devices
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.Envelope
// @Failure 401 {object} dto.Envelope
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		respondError(c, h.logger, domain.ErrInvalidToken)
		return
	}

	if err := h.authService.LogoutAll(c.Request.Context(), claims.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.clearRefreshCookie(c)
	respond(c, http.StatusOK, "Logged out from all devices", nil)
}

// VerifyEmail consumes an email verification token
// @Summary Verify email
// @Tags auth
// @Accept json
// @Produce json
// @Param token query string false "Verification token (GET)"
// @Param request body dto.VerifyEmailRequest false "Verification token (POST)"
// @Success 200 {object} dto.Envelope{data=dto.UserResponse}
// @Failure 401 {object} dto.Envelope
// @Router /auth/verify-email [get]
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.authService.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "Email verified successfully", dto.NewUserResponse(user))
}

// GetMe handles getting current user profile
// @Summary Get current user profile
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.Envelope{data=dto.UserResponse}
// @Failure 401 {object} dto.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		respondError(c, h.logger, domain.ErrInvalidToken)
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "User retrieved successfully", dto.NewUserResponse(user))
}

// ListUsers returns a page of users
// @Summary List users
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Param search query string false "Search in name, email and username"
// @Param sort_by query string false "created_at | updated_at | full_name | email | last_login_at"
// @Param sort_order query string false "asc | desc"
// @Param email_verified query bool false "Filter by verification"
// @Param is_active query bool false "Filter by active flag"
// @Success 200 {object} dto.Envelope{data=dto.Page}
// @Failure 403 {object} dto.Envelope
// @Router /auth/users [get]
func (h *AuthHandler) ListUsers(c *gin.Context) {
	var req dto.ListUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	page, err := h.authService.ListUsers(c.Request.Context(), domain.ListUsersQuery{
		Page:          req.Page,
		Limit:         req.Limit,
		Search:        req.Search,
		SortBy:        req.SortBy,
		SortOrder:     req.SortOrder,
		EmailVerified: req.EmailVerified,
		IsActive:      req.IsActive,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, "Users retrieved successfully", dto.NewUserPage(page))
}
