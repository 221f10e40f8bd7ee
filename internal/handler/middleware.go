package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/service"
)

const claimsKey = "claims"

// AuthMiddleware validates the bearer access token and adds its claims to the context
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from "Bearer <token>"
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			code, message, body := publicError(domain.ErrInvalidToken)
			respondFail(c, code, message, body)
			return
		}

		claims, err := authService.ValidateAccessToken(c.Request.Context(), parts[1])
		if err != nil {
			code, message, body := publicError(err)
			respondFail(c, code, message, body)
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set(claimsKey, claims)

		c.Next()
	}
}

// RequireRole rejects requests whose token role is not one of roles. It must run after AuthMiddleware.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			code, message, body := publicError(domain.ErrInvalidToken)
			respondFail(c, code, message, body)
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		code, message, body := publicError(domain.ErrForbidden)
		respondFail(c, code, message, body)
	}
}

func claimsFrom(c *gin.Context) (*domain.TokenClaims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*domain.TokenClaims)
	return claims, ok
}
