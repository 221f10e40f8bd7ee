package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/dto"
	"go.uber.org/zap"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidToken       = "Invalid or expired token"
	msgInternal           = "Internal server error"
)

func respond(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, dto.Envelope{
		Status:     dto.StatusSuccess,
		StatusCode: code,
		Message:    message,
		Data:       data,
	})
}

func respondFail(c *gin.Context, code int, message string, body *dto.ErrorBody) {
	status := dto.StatusFail
	if code >= http.StatusInternalServerError {
		status = dto.StatusError
	}
	c.AbortWithStatusJSON(code, dto.Envelope{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Error:      body,
	})
}

// publicError maps an error to status code, message and body.
// Credential and token failures collapse to one shape each so callers cannot tell the causes apart.
func publicError(err error) (int, string, *dto.ErrorBody) {
	kind, ok := domain.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, msgInternal, &dto.ErrorBody{Kind: "INTERNAL"}
	}

	switch kind {
	case domain.KindInvalidCredentials:
		return http.StatusUnauthorized, msgInvalidCredentials, &dto.ErrorBody{Kind: string(domain.KindInvalidCredentials)}
	case domain.KindInvalidToken, domain.KindTokenExpiredOrRevoked, domain.KindInvalidOrExpiredToken:
		return http.StatusUnauthorized, msgInvalidToken, &dto.ErrorBody{Kind: string(domain.KindInvalidToken)}
	case domain.KindEmailTaken:
		return http.StatusConflict, "Email is already registered", &dto.ErrorBody{Kind: string(kind)}
	case domain.KindValidation:
		var authErr *domain.AuthError
		body := &dto.ErrorBody{Kind: string(kind)}
		if errors.As(err, &authErr) {
			body.Fields = authErr.Fields
		}
		return http.StatusBadRequest, "Validation failed", body
	case domain.KindForbidden:
		return http.StatusForbidden, "Forbidden", &dto.ErrorBody{Kind: string(kind)}
	case domain.KindNotFound:
		return http.StatusNotFound, "Not found", &dto.ErrorBody{Kind: string(kind)}
	default:
		return http.StatusInternalServerError, msgInternal, &dto.ErrorBody{Kind: "INTERNAL"}
	}
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	code, message, body := publicError(err)
	if code >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	respondFail(c, code, message, body)
}
