package notification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/repository"
	"github.com/prperemyshlev/auth-notification-service/internal/utils"
	"go.uber.org/zap"
)

// AppInfo is the branding passed to every template
type AppInfo struct {
	Name         string
	BaseURL      string
	SupportEmail string
}

// Handlers implements the mail side effects of each lifecycle event
type Handlers struct {
	verificationRepo   repository.VerificationTokenRepository
	mailer             MailSender
	renderer           *TemplateRenderer
	app                AppInfo
	verificationExpiry time.Duration
	clock              func() time.Time
	logger             *zap.Logger
}

// NewHandlers creates the event handlers
func NewHandlers(
	verificationRepo repository.VerificationTokenRepository,
	mailer MailSender,
	renderer *TemplateRenderer,
	app AppInfo,
	verificationExpiry time.Duration,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		verificationRepo:   verificationRepo,
		mailer:             mailer,
		renderer:           renderer,
		app:                app,
		verificationExpiry: verificationExpiry,
		clock:              time.Now,
		logger:             logger,
	}
}

// Subscriptions returns the event-name to handler table
func (h *Handlers) Subscriptions() Subscriptions {
	return Subscriptions{
		domain.EventUserRegistered:    h.UserRegistered,
		domain.EventUserEmailVerified: h.UserEmailVerified,
	}
}

// VerificationURL builds the link embedded in the verification email
func (h *Handlers) VerificationURL(token string) string {
	return strings.TrimRight(h.app.BaseURL, "/") + "/api/v1/auth/verify-email?token=" + url.QueryEscape(token)
}

// UserRegistered issues a verification token and mails the verification link
func (h *Handlers) UserRegistered(ctx context.Context, event domain.NotificationEvent) error {
	if event.Payload.Email == "" || event.Payload.UserID == "" {
		return Permanent(errors.New("event payload has no recipient"))
	}

	raw, err := utils.GenerateOpaqueToken()
	if err != nil {
		return err
	}

	now := h.clock()
	token := &domain.VerificationToken{
		TokenHash: utils.HashToken(raw),
		UserID:    event.Payload.UserID,
		ExpiresAt: now.Add(h.verificationExpiry),
		CreatedAt: now,
	}
	if err := h.verificationRepo.Create(ctx, token); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	data := h.templateData(event)
	data.VerificationURL = h.VerificationURL(raw)

	return h.send(ctx, event, TemplateVerifyEmail, "Verify your email address", data)
}

// UserEmailVerified mails the welcome message
func (h *Handlers) UserEmailVerified(ctx context.Context, event domain.NotificationEvent) error {
	if event.Payload.Email == "" {
		return Permanent(errors.New("event payload has no recipient"))
	}

	return h.send(ctx, event, TemplateWelcome, "Welcome to "+h.app.Name, h.templateData(event))
}

func (h *Handlers) templateData(event domain.NotificationEvent) TemplateData {
	return TemplateData{
		FullName:     event.Payload.FullName,
		AppName:      h.app.Name,
		AppURL:       h.app.BaseURL,
		SupportEmail: h.app.SupportEmail,
	}
}

func (h *Handlers) send(ctx context.Context, event domain.NotificationEvent, template, subject string, data TemplateData) error {
	body, err := h.renderer.Render(template, data)
	if err != nil {
		return Permanent(err)
	}

	if err := h.mailer.Send(ctx, event.Payload.Email, subject, body); err != nil {
		wrapped := domain.WrapError(domain.KindDeliveryFailed, "failed to send "+template+" email", err)
		if IsPermanent(err) {
			return Permanent(wrapped)
		}
		return wrapped
	}

	h.logger.Info("notification sent",
		zap.String("event", event.Name),
		zap.String("event_id", event.ID),
		zap.String("template", template),
	)

	return nil
}
