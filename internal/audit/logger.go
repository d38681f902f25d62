package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vehicle-marketplace/backend/internal/audit/domain"
	auditrepo "vehicle-marketplace/backend/internal/audit/repository"
)

// Actions recorded by the auth and credential services.
const (
	ActionLoginSuccess         = "login_success"
	ActionLoginFailure         = "login_failure"
	ActionLogout               = "logout"
	ActionRefresh              = "refresh"
	ActionSessionRevoked       = "session_revoked"
	ActionSessionEvicted       = "session_evicted"
	ActionPasswordResetRequest = "password_reset_requested"
	ActionPasswordReset        = "password_reset"
	ActionPasswordChanged      = "password_changed"
	ActionEmailChanged         = "email_changed"
	ActionVerificationSent     = "verification_sent"
	ActionEmailVerified        = "email_verified"
	ActionPhoneVerified        = "phone_verified"
	ActionPhoneVerifyFailed    = "phone_verify_failed"
	ActionAuthDenied           = "auth_denied"
	ActionRateLimited          = "rate_limited"
)

// IPExtractor returns the client IP from the request context (e.g. gRPC metadata or peer).
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource. Used by auth and session code paths.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         *zap.Logger
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown". log may be nil.
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
// The write is detached from ctx cancellation so an event recorded at the end of a request still lands.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.Entry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := l.repo.Create(writeCtx, entry); err != nil {
		l.log.Warn("audit: failed to log event",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Error(err),
		)
	}
}

// Nop is an AuditLogger that drops every event.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string) {}
