package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vehicle-marketplace/backend/internal/audit"
	"vehicle-marketplace/backend/internal/db/store"
	identitydomain "vehicle-marketplace/backend/internal/identity/domain"
	"vehicle-marketplace/backend/internal/security"
	sessiondomain "vehicle-marketplace/backend/internal/session/domain"
	userdomain "vehicle-marketplace/backend/internal/user/domain"
)

// TokenIssuer mints access tokens and opaque refresh tokens. *security.TokenProvider implements it.
type TokenIssuer interface {
	Issue(claims security.Claims, ttl time.Duration) (string, error)
	NewRefreshToken() (string, error)
}

// PasswordHasher hashes and verifies passwords. *security.Hasher implements it.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(hash string, password []byte) error
	CompareDummy(password []byte)
}

// DeviceInfo describes the client that is logging in. Derived from request metadata.
type DeviceInfo struct {
	Device    string
	UserAgent string
	IPAddress string
	Location  string
}

// LoginInput is the input to Login. RememberMe is accepted for API compatibility; the session
// lifetime is always the configured refresh TTL.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	Device     DeviceInfo
}

// UserSummary is the non-secret view of a user returned on login.
type UserSummary struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	EmailVerified bool
	PhoneVerified bool
	CreatedAt     time.Time
	LastLoginAt   *time.Time
	Roles         []userdomain.Role
}

// LoginResult holds the tokens and user summary produced by Login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime in seconds
	SessionID    string
	User         UserSummary
}

// RefreshResult holds the rotated tokens produced by Refresh.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	SessionID    string
}

// SessionInfo is one entry of ListSessions.
type SessionInfo struct {
	ID           string
	Device       string
	UserAgent    string
	IPAddress    string
	Location     string
	CreatedAt    time.Time
	LastActiveAt time.Time
	Current      bool
}

// AuthService implements login, refresh-token rotation, logout, session revocation and listing,
// and the per-user cap on active sessions.
type AuthService struct {
	store      store.Store
	hasher     PasswordHasher
	tokens     TokenIssuer
	audit      audit.AuditLogger
	log        *zap.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
	sessionCap int
	now        func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. auditLogger and log may be nil.
func NewAuthService(
	st store.Store,
	hasher PasswordHasher,
	tokens TokenIssuer,
	auditLogger audit.AuditLogger,
	log *zap.Logger,
	accessTTL, refreshTTL time.Duration,
	sessionCap int,
) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if sessionCap < 1 {
		sessionCap = 1
	}
	return &AuthService{
		store:      st,
		hasher:     hasher,
		tokens:     tokens,
		audit:      auditLogger,
		log:        log,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		sessionCap: sessionCap,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies email and password and opens a new session. Unknown email, wrong password, and a
// non-active account all return ErrInvalidCredentials. When the user already has sessionCap active
// sessions, the oldest ones by creation time are revoked first.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	const op = "login"
	email := userdomain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, wrap(op, err)
	}
	if user == nil {
		s.hasher.CompareDummy([]byte(in.Password))
		s.audit.LogEvent(ctx, "", audit.ActionLoginFailure, "user", email)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(in.Password)); err != nil || !user.CanAuthenticate() {
		s.audit.LogEvent(ctx, user.ID, audit.ActionLoginFailure, "user", email)
		return nil, ErrInvalidCredentials
	}

	refreshToken, err := s.tokens.NewRefreshToken()
	if err != nil {
		return nil, wrap(op, err)
	}
	now := s.now()
	sess := &sessiondomain.Session{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		RefreshTokenHash: security.HashToken(refreshToken),
		Device:           in.Device.Device,
		UserAgent:        in.Device.UserAgent,
		IPAddress:        in.Device.IPAddress,
		Location:         in.Device.Location,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.refreshTTL),
		LastActiveAt:     now,
	}

	var (
		accessToken string
		evicted     []string
	)
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		ids, err := s.enforceSessionCap(ctx, tx, user.ID, now)
		if err != nil {
			return err
		}
		if err := tx.Sessions().Create(ctx, sess); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if err := tx.Users().UpdateLastLogin(ctx, user.ID, now); err != nil {
			return fmt.Errorf("update last login: %w", err)
		}
		accessToken, err = s.tokens.Issue(buildClaims(user, sess.ID), s.accessTTL)
		if err != nil {
			return fmt.Errorf("issue access token: %w", err)
		}
		evicted = ids
		return nil
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	for _, id := range evicted {
		s.audit.LogEvent(ctx, user.ID, audit.ActionSessionEvicted, "session", id)
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionLoginSuccess, "session", sess.ID)
	s.log.Debug("login", zap.String("user_id", user.ID), zap.String("session_id", sess.ID), zap.Int("evicted", len(evicted)))

	user.LastLoginAt = &now
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL / time.Second),
		SessionID:    sess.ID,
		User:         summarize(user),
	}, nil
}

// enforceSessionCap revokes the oldest active sessions so that one more can be created without
// exceeding sessionCap. Returns the revoked session ids.
func (s *AuthService) enforceSessionCap(ctx context.Context, tx store.Store, userID string, now time.Time) ([]string, error) {
	all, err := tx.Sessions().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	active := activeByCreation(all, now)
	excess := len(active) - s.sessionCap + 1
	if excess <= 0 {
		return nil, nil
	}
	evicted := make([]string, 0, excess)
	for _, sess := range active[:excess] {
		if err := tx.Sessions().Revoke(ctx, sess.ID, now); err != nil {
			return nil, fmt.Errorf("evict session: %w", err)
		}
		evicted = append(evicted, sess.ID)
	}
	return evicted, nil
}

// Refresh exchanges a refresh token for a new access token and rotates the refresh token.
// The supplied token stops matching any session once this returns successfully.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	const op = "refresh"
	if refreshToken == "" {
		return nil, ErrTokenInvalidOrExpired
	}
	newToken, err := s.tokens.NewRefreshToken()
	if err != nil {
		return nil, wrap(op, err)
	}

	var result *RefreshResult
	var userID string
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		now := s.now()
		sess, err := tx.Sessions().GetByRefreshTokenHash(ctx, security.HashToken(refreshToken))
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if !sess.IsActive(now) {
			return ErrTokenInvalidOrExpired
		}
		user, err := tx.Users().GetByID(ctx, sess.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if !user.CanAuthenticate() {
			return ErrTokenInvalidOrExpired
		}
		if err := tx.Sessions().Rotate(ctx, sess.ID, security.HashToken(newToken), now.Add(s.refreshTTL), now); err != nil {
			return fmt.Errorf("rotate session: %w", err)
		}
		accessToken, err := s.tokens.Issue(buildClaims(user, sess.ID), s.accessTTL)
		if err != nil {
			return fmt.Errorf("issue access token: %w", err)
		}
		userID = user.ID
		result = &RefreshResult{
			AccessToken:  accessToken,
			RefreshToken: newToken,
			ExpiresIn:    int64(s.accessTTL / time.Second),
			SessionID:    sess.ID,
		}
		return nil
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	s.audit.LogEvent(ctx, userID, audit.ActionRefresh, "session", result.SessionID)
	return result, nil
}

// Logout revokes the caller's current session. It is a no-op when the session is unknown, belongs
// to someone else, or is already revoked.
func (s *AuthService) Logout(ctx context.Context, caller identitydomain.CallerIdentity) error {
	if !caller.Valid() {
		return nil
	}
	revoked := false
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		sess, err := tx.Sessions().GetByID(ctx, caller.SessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if sess == nil || sess.UserID != caller.UserID || sess.Revoked {
			return nil
		}
		if err := tx.Sessions().Revoke(ctx, sess.ID, s.now()); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
		revoked = true
		return nil
	})
	if err != nil {
		return wrap("logout", err)
	}
	if revoked {
		s.audit.LogEvent(ctx, caller.UserID, audit.ActionLogout, "session", caller.SessionID)
	}
	return nil
}

// RevokeSession revokes one of the caller's sessions. A session that does not exist and one owned
// by another user both return ErrNotFound. Revoking an already revoked session succeeds.
func (s *AuthService) RevokeSession(ctx context.Context, caller identitydomain.CallerIdentity, sessionID string) error {
	const op = "revoke session"
	if sessionID == "" {
		return opErr(op, ErrNotFound, "session not found")
	}
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		sess, err := tx.Sessions().GetByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if sess == nil || sess.UserID != caller.UserID {
			return opErr(op, ErrNotFound, "session not found")
		}
		if sess.Revoked {
			return nil
		}
		if err := tx.Sessions().Revoke(ctx, sess.ID, s.now()); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
		return nil
	})
	if err != nil {
		return wrap(op, err)
	}
	s.audit.LogEvent(ctx, caller.UserID, audit.ActionSessionRevoked, "session", sessionID)
	return nil
}

// ListSessions returns the caller's active sessions, most recently active first.
func (s *AuthService) ListSessions(ctx context.Context, caller identitydomain.CallerIdentity) ([]SessionInfo, error) {
	all, err := s.store.Sessions().ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, wrap("list sessions", err)
	}
	now := s.now()
	active := make([]*sessiondomain.Session, 0, len(all))
	for _, sess := range all {
		if sess.IsActive(now) {
			active = append(active, sess)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if !a.LastActiveAt.Equal(b.LastActiveAt) {
			return a.LastActiveAt.After(b.LastActiveAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	out := make([]SessionInfo, len(active))
	for i, sess := range active {
		out[i] = SessionInfo{
			ID:           sess.ID,
			Device:       sess.Device,
			UserAgent:    sess.UserAgent,
			IPAddress:    sess.IPAddress,
			Location:     sess.Location,
			CreatedAt:    sess.CreatedAt,
			LastActiveAt: sess.LastActiveAt,
			Current:      sess.ID == caller.SessionID,
		}
	}
	return out, nil
}

// activeByCreation returns the active sessions ordered oldest first, ties broken by id.
func activeByCreation(all []*sessiondomain.Session, now time.Time) []*sessiondomain.Session {
	active := make([]*sessiondomain.Session, 0, len(all))
	for _, sess := range all {
		if sess.IsActive(now) {
			active = append(active, sess)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})
	return active
}

// buildClaims assembles the access-token claim set for user in session sessionID.
func buildClaims(user *userdomain.User, sessionID string) security.Claims {
	return security.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
		Email:            user.Email,
		SessionID:        sessionID,
		Roles:            user.RoleNames(),
	}
}

func summarize(u *userdomain.User) UserSummary {
	return UserSummary{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		CreatedAt:     u.CreatedAt,
		LastLoginAt:   u.LastLoginAt,
		Roles:         append([]userdomain.Role(nil), u.Roles...),
	}
}

// wrap returns error kinds unchanged and prefixes infrastructure errors with op.
func wrap(op string, err error) error {
	var oe *OpError
	switch {
	case errors.As(err, &oe),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenInvalidOrExpired),
		errors.Is(err, ErrPolicyViolation),
		errors.Is(err, ErrNotFound):
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
