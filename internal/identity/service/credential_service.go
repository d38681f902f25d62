package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"vehicle-marketplace/backend/internal/audit"
	"vehicle-marketplace/backend/internal/db/store"
	identitydomain "vehicle-marketplace/backend/internal/identity/domain"
	"vehicle-marketplace/backend/internal/notify"
	"vehicle-marketplace/backend/internal/security"
	userdomain "vehicle-marketplace/backend/internal/user/domain"
	userrepo "vehicle-marketplace/backend/internal/user/repository"
)

// MaxPhoneCodeAttempts is the number of wrong codes after which a phone code is discarded.
const MaxPhoneCodeAttempts = 5

// Verification kinds accepted by SendVerification.
const (
	VerificationEmail = "email"
	VerificationPhone = "phone"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// CredentialService implements password reset and change, email change, and email/phone verification.
// Every password change revokes all of the user's sessions in the same transaction.
type CredentialService struct {
	store    store.Store
	hasher   PasswordHasher
	notifier notify.Notifier
	audit    audit.AuditLogger
	log      *zap.Logger
	resetTTL time.Duration
	emailTTL time.Duration
	phoneTTL time.Duration
	now      func() time.Time
	newToken func() (string, error)
	newCode  func() (string, error)
}

// NewCredentialService returns a CredentialService. auditLogger and log may be nil.
func NewCredentialService(
	st store.Store,
	hasher PasswordHasher,
	notifier notify.Notifier,
	auditLogger audit.AuditLogger,
	log *zap.Logger,
	resetTTL, emailTTL, phoneTTL time.Duration,
) *CredentialService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialService{
		store:    st,
		hasher:   hasher,
		notifier: notifier,
		audit:    auditLogger,
		log:      log,
		resetTTL: resetTTL,
		emailTTL: emailTTL,
		phoneTTL: phoneTTL,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: security.NewOpaqueToken,
		newCode:  security.NewNumericCode,
	}
}

// ForgotPassword issues a reset token when an active account has the email and hands it to the
// notifier. The result is the same whether or not the account exists; lookup, token and store
// failures are returned as errors so the caller can retry.
func (s *CredentialService) ForgotPassword(ctx context.Context, email string) error {
	email = userdomain.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return wrap("forgot password", err)
	}
	if !user.CanAuthenticate() {
		return nil
	}
	token, err := s.newToken()
	if err != nil {
		return wrap("forgot password", err)
	}
	now := s.now()
	if err := s.store.Users().SetPasswordResetToken(ctx, user.ID, security.HashToken(token), now.Add(s.resetTTL), now); err != nil {
		return wrap("forgot password", err)
	}
	if err := s.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
		s.log.Warn("forgot password: notify", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionPasswordResetRequest, "password", "")
	return nil
}

// ResetPassword consumes a reset token, sets the new password, and revokes every session of the user.
func (s *CredentialService) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "reset password"
	if err := security.ValidatePassword(newPassword); err != nil {
		return opErr(op, ErrPolicyViolation, err.Error())
	}
	if token == "" {
		return ErrTokenInvalidOrExpired
	}
	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return wrap(op, err)
	}
	var (
		userID  string
		revoked int
	)
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		now := s.now()
		user, err := tx.Users().GetByPasswordResetTokenHash(ctx, security.HashToken(token))
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if !user.CanAuthenticate() || userdomain.Expired(user.PasswordResetExpiresAt, now) {
			return ErrTokenInvalidOrExpired
		}
		if err := tx.Users().SetPassword(ctx, user.ID, hash, now); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		n, err := tx.Sessions().RevokeAllByUser(ctx, user.ID, now)
		if err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		userID, revoked = user.ID, n
		return nil
	})
	if err != nil {
		return wrap(op, err)
	}
	s.audit.LogEvent(ctx, userID, audit.ActionPasswordReset, "password", fmt.Sprintf("revoked=%d", revoked))
	return nil
}

// ChangePassword verifies the current password, sets the new one, and revokes every session of the
// caller, including the one making the request.
func (s *CredentialService) ChangePassword(ctx context.Context, caller identitydomain.CallerIdentity, currentPassword, newPassword string) error {
	const op = "change password"
	user, err := s.store.Users().GetByID(ctx, caller.UserID)
	if err != nil {
		return wrap(op, err)
	}
	if !user.CanAuthenticate() || s.hasher.Compare(user.PasswordHash, []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}
	if err := security.ValidatePassword(newPassword); err != nil {
		return opErr(op, ErrPolicyViolation, err.Error())
	}
	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return wrap(op, err)
	}
	var revoked int
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		now := s.now()
		if err := tx.Users().SetPassword(ctx, user.ID, hash, now); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		n, err := tx.Sessions().RevokeAllByUser(ctx, user.ID, now)
		if err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		revoked = n
		return nil
	})
	if err != nil {
		return wrap(op, err)
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionPasswordChanged, "password", fmt.Sprintf("revoked=%d", revoked))
	return nil
}

// ChangeEmail moves the caller to newEmail after checking the password. The new address starts
// unverified and a verification token is sent to it.
func (s *CredentialService) ChangeEmail(ctx context.Context, caller identitydomain.CallerIdentity, newEmail, password string) error {
	const op = "change email"
	email := userdomain.NormalizeEmail(newEmail)
	if !emailPattern.MatchString(email) {
		return opErr(op, ErrPolicyViolation, "invalid email format")
	}
	user, err := s.store.Users().GetByID(ctx, caller.UserID)
	if err != nil {
		return wrap(op, err)
	}
	if !user.CanAuthenticate() || s.hasher.Compare(user.PasswordHash, []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	if email == userdomain.NormalizeEmail(user.Email) {
		return opErr(op, ErrPolicyViolation, "new email must differ from the current email")
	}
	existing, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return wrap(op, err)
	}
	if existing != nil && existing.ID != user.ID {
		return opErr(op, ErrPolicyViolation, "email already in use")
	}
	token, err := s.newToken()
	if err != nil {
		return wrap(op, err)
	}
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		now := s.now()
		if err := tx.Users().SetEmail(ctx, user.ID, email, now); err != nil {
			if errors.Is(err, userrepo.ErrEmailTaken) {
				return opErr(op, ErrPolicyViolation, "email already in use")
			}
			return fmt.Errorf("set email: %w", err)
		}
		if err := tx.Users().SetEmailVerificationToken(ctx, user.ID, security.HashToken(token), now.Add(s.emailTTL), now); err != nil {
			return fmt.Errorf("set email token: %w", err)
		}
		return nil
	})
	if err != nil {
		return wrap(op, err)
	}
	if err := s.notifier.SendEmailVerification(ctx, email, token); err != nil {
		s.log.Warn("change email: notify", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionEmailChanged, "email", "")
	return nil
}

// SendVerification issues an email verification token or a phone code for the caller.
// kind is VerificationEmail or VerificationPhone.
func (s *CredentialService) SendVerification(ctx context.Context, caller identitydomain.CallerIdentity, kind string) error {
	const op = "send verification"
	if kind != VerificationEmail && kind != VerificationPhone {
		return opErr(op, ErrPolicyViolation, "type must be email or phone")
	}
	user, err := s.store.Users().GetByID(ctx, caller.UserID)
	if err != nil {
		return wrap(op, err)
	}
	if !user.CanAuthenticate() {
		return opErr(op, ErrNotFound, "user not found")
	}
	now := s.now()

	if kind == VerificationEmail {
		if user.EmailVerified {
			return opErr(op, ErrPolicyViolation, "email already verified")
		}
		token, err := s.newToken()
		if err != nil {
			return wrap(op, err)
		}
		if err := s.store.Users().SetEmailVerificationToken(ctx, user.ID, security.HashToken(token), now.Add(s.emailTTL), now); err != nil {
			return wrap(op, err)
		}
		if err := s.notifier.SendEmailVerification(ctx, user.Email, token); err != nil {
			s.log.Warn("send verification: notify email", zap.String("user_id", user.ID), zap.Error(err))
		}
		s.audit.LogEvent(ctx, user.ID, audit.ActionVerificationSent, "email", "")
		return nil
	}

	if user.PhoneVerified {
		return opErr(op, ErrPolicyViolation, "phone already verified")
	}
	if user.Phone == "" {
		return opErr(op, ErrPolicyViolation, "no phone number on file")
	}
	code, err := s.newCode()
	if err != nil {
		return wrap(op, err)
	}
	if err := s.store.Users().SetPhoneCode(ctx, user.ID, security.HashToken(code), now.Add(s.phoneTTL), now); err != nil {
		return wrap(op, err)
	}
	if err := s.notifier.SendPhoneCode(ctx, user.Phone, code); err != nil {
		s.log.Warn("send verification: notify phone", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionVerificationSent, "phone", "")
	return nil
}

// VerifyEmail consumes an email verification token and marks the email verified.
func (s *CredentialService) VerifyEmail(ctx context.Context, token string) error {
	const op = "verify email"
	if token == "" {
		return ErrTokenInvalidOrExpired
	}
	var userID string
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		now := s.now()
		user, err := tx.Users().GetByEmailVerificationTokenHash(ctx, security.HashToken(token))
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if !user.CanAuthenticate() || userdomain.Expired(user.EmailVerificationExpiresAt, now) {
			return ErrTokenInvalidOrExpired
		}
		if err := tx.Users().MarkEmailVerified(ctx, user.ID, now); err != nil {
			return fmt.Errorf("mark email verified: %w", err)
		}
		userID = user.ID
		return nil
	})
	if err != nil {
		return wrap(op, err)
	}
	s.audit.LogEvent(ctx, userID, audit.ActionEmailVerified, "email", "")
	return nil
}

// VerifyPhone checks code against the caller's pending phone code. A wrong code counts as a failed
// attempt and is committed before ErrTokenInvalidOrExpired is returned; after MaxPhoneCodeAttempts
// failures the code is discarded.
func (s *CredentialService) VerifyPhone(ctx context.Context, caller identitydomain.CallerIdentity, code string) error {
	const op = "verify phone"
	if code == "" {
		return ErrTokenInvalidOrExpired
	}
	mismatch := false
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		now := s.now()
		user, err := tx.Users().GetByIDForUpdate(ctx, caller.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if !user.CanAuthenticate() || user.PhoneCodeHash == "" || userdomain.Expired(user.PhoneCodeExpiresAt, now) {
			return ErrTokenInvalidOrExpired
		}
		if !security.TokenHashEqual(code, user.PhoneCodeHash) {
			mismatch = true
			if err := tx.Users().RecordPhoneCodeFailure(ctx, user.ID, MaxPhoneCodeAttempts, now); err != nil {
				return fmt.Errorf("record failure: %w", err)
			}
			return nil
		}
		if err := tx.Users().MarkPhoneVerified(ctx, user.ID, now); err != nil {
			return fmt.Errorf("mark phone verified: %w", err)
		}
		return nil
	})
	if err != nil {
		return wrap(op, err)
	}
	if mismatch {
		s.audit.LogEvent(ctx, caller.UserID, audit.ActionPhoneVerifyFailed, "phone", "")
		return ErrTokenInvalidOrExpired
	}
	s.audit.LogEvent(ctx, caller.UserID, audit.ActionPhoneVerified, "phone", "")
	return nil
}
