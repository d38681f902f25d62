package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	sessiondomain "vehicle-marketplace/backend/internal/session/domain"
	sessionrepo "vehicle-marketplace/backend/internal/session/repository"
	userdomain "vehicle-marketplace/backend/internal/user/domain"
	userrepo "vehicle-marketplace/backend/internal/user/repository"
)

// Memory is an in-process Store for tests and local runs. Transactions are serialized and a
// failed or cancelled transaction restores the state it started from.
type Memory struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data memData
}

type memData struct {
	users    map[string]*userdomain.User
	sessions map[string]*sessiondomain.Session
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: memData{
		users:    make(map[string]*userdomain.User),
		sessions: make(map[string]*sessiondomain.Session),
	}}
}

func (m *Memory) Users() userrepo.Repository       { return &memUsers{m: m} }
func (m *Memory) Sessions() sessionrepo.Repository { return &memSessions{m: m} }

func (m *Memory) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.data.clone()
	m.mu.Unlock()

	err := fn(memTx{m: m})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// memTx is the Store handed to fn inside WithinTx; nested transactions join it.
type memTx struct{ m *Memory }

func (t memTx) Users() userrepo.Repository       { return t.m.Users() }
func (t memTx) Sessions() sessionrepo.Repository { return t.m.Sessions() }
func (t memTx) WithinTx(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (d memData) clone() memData {
	out := memData{
		users:    make(map[string]*userdomain.User, len(d.users)),
		sessions: make(map[string]*sessiondomain.Session, len(d.sessions)),
	}
	for id, u := range d.users {
		out.users[id] = cloneUser(u)
	}
	for id, s := range d.sessions {
		out.sessions[id] = cloneSession(s)
	}
	return out
}

func cloneUser(u *userdomain.User) *userdomain.User {
	c := *u
	c.Roles = append([]userdomain.Role(nil), u.Roles...)
	return &c
}

func cloneSession(s *sessiondomain.Session) *sessiondomain.Session {
	c := *s
	return &c
}

func timePtr(t time.Time) *time.Time { return &t }

type memUsers struct{ m *Memory }

func (r *memUsers) find(match func(*userdomain.User) bool) *userdomain.User {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.data.users {
		if match(u) {
			return cloneUser(u)
		}
	}
	return nil
}

// update applies fn to the stored user. Missing users are ignored, like an UPDATE matching no row.
func (r *memUsers) update(id string, fn func(*userdomain.User) error) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.data.users[id]
	if !ok {
		return nil
	}
	return fn(u)
}

func (r *memUsers) emailTakenLocked(email, exceptID string) bool {
	for id, u := range r.m.data.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *memUsers) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.data.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

// GetByIDForUpdate needs no row lock: transactions are already serialized.
func (r *memUsers) GetByIDForUpdate(ctx context.Context, id string) (*userdomain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	return r.find(func(u *userdomain.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (r *memUsers) GetByPasswordResetTokenHash(_ context.Context, tokenHash string) (*userdomain.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.find(func(u *userdomain.User) bool { return u.PasswordResetTokenHash == tokenHash }), nil
}

func (r *memUsers) GetByEmailVerificationTokenHash(_ context.Context, tokenHash string) (*userdomain.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.find(func(u *userdomain.User) bool { return u.EmailVerificationTokenHash == tokenHash }), nil
}

func (r *memUsers) Create(_ context.Context, u *userdomain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.data.users[u.ID]; exists || r.emailTakenLocked(u.Email, "") {
		return userrepo.ErrEmailTaken
	}
	r.m.data.users[u.ID] = cloneUser(u)
	return nil
}

func (r *memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *userdomain.User) error {
		u.LastLoginAt = timePtr(at)
		u.UpdatedAt = at
		return nil
	})
}

func (r *memUsers) SetPassword(_ context.Context, id, passwordHash string, at time.Time) error {
	return r.update(id, func(u *userdomain.User) error {
		u.PasswordHash = passwordHash
		u.PasswordResetTokenHash = ""
		u.PasswordResetExpiresAt = nil
		u.UpdatedAt = at
		return nil
	})
}

func (r *memUsers) SetPasswordResetToken(_ context.Context, id, tokenHash string, expiresAt, at time.Time) error {
	return r.update(id, func(u *userdomain.User) error {
		u.PasswordResetTokenHash = tokenHash
		u.PasswordResetExpiresAt = timePtr(expiresAt)
		u.UpdatedAt = at
		return nil
	})
}

func (r *memUsers) SetEmail(_ context.Context, id, email string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.data.users[id]
	if !ok {
		return nil
	}
	if r.emailTakenLocked(email, id) {
		return userrepo.ErrEmailTaken
	}
	u.Email = email
	u.EmailVerified = false
	u.EmailVerificationTokenHash = ""
	u.EmailVerificationExpiresAt = nil
	u.UpdatedAt = at
	return nil
}

func (r *memUsers) SetEmailVerificationToken(_ context.Context, id, tokenHash string, expiresAt, at time.Time) error {
	return r.update(id, func(u *userdomain.User) error {
		u.EmailVerificationTokenHash = tokenHash
		u.EmailVerificationExpiresAt = timePtr(expiresAt)
		u.UpdatedAt = at
		return nil
	})
}

func (r *memUsers) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *userdomain.User) error {
		u.EmailVerified = true
		u.EmailVerificationTokenHash = ""
		u.EmailVerificationExpiresAt = nil
		u.UpdatedAt = at
		return nil
	})
}

func (r *memUsers) SetPhoneCode(_ context.Context, id, codeHash string, expiresAt, at time.Time) error {
	return r.update(id, func(u *userdomain.User) error {
		u.PhoneCodeHash = codeHash
		u.PhoneCodeExpiresAt = timePtr(expiresAt)
		u.PhoneCodeAttempts = 0
		u.UpdatedAt = at
		return nil
	})
}

func (r *memUsers) RecordPhoneCodeFailure(_ context.Context, id string, maxAttempts int, at time.Time) error {
	return r.update(id, func(u *userdomain.User) error {
		u.PhoneCodeAttempts++
		if u.PhoneCodeAttempts >= maxAttempts {
			u.PhoneCodeHash = ""
			u.PhoneCodeExpiresAt = nil
		}
		u.UpdatedAt = at
		return nil
	})
}

func (r *memUsers) MarkPhoneVerified(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *userdomain.User) error {
		u.PhoneVerified = true
		u.PhoneCodeHash = ""
		u.PhoneCodeExpiresAt = nil
		u.PhoneCodeAttempts = 0
		u.UpdatedAt = at
		return nil
	})
}

type memSessions struct{ m *Memory }

func (r *memSessions) GetByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.data.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (r *memSessions) GetByRefreshTokenHash(_ context.Context, tokenHash string) (*sessiondomain.Session, error) {
	if tokenHash == "" {
		return nil, nil
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.data.sessions {
		if s.RefreshTokenHash == tokenHash {
			return cloneSession(s), nil
		}
	}
	return nil, nil
}

func (r *memSessions) ListByUser(_ context.Context, userID string) ([]*sessiondomain.Session, error) {
	r.m.mu.Lock()
	var out []*sessiondomain.Session
	for _, s := range r.m.data.sessions {
		if s.UserID == userID {
			out = append(out, cloneSession(s))
		}
	}
	r.m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memSessions) Create(_ context.Context, s *sessiondomain.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.data.sessions[s.ID]; exists {
		return errDuplicateSession
	}
	for _, other := range r.m.data.sessions {
		if other.RefreshTokenHash == s.RefreshTokenHash {
			return errDuplicateSession
		}
	}
	r.m.data.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *memSessions) Revoke(_ context.Context, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s, ok := r.m.data.sessions[id]; ok && !s.Revoked {
		s.Revoked = true
		s.RevokedAt = timePtr(at)
	}
	return nil
}

func (r *memSessions) RevokeAllByUser(_ context.Context, userID string, at time.Time) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for _, s := range r.m.data.sessions {
		if s.UserID == userID && !s.Revoked {
			s.Revoked = true
			s.RevokedAt = timePtr(at)
			n++
		}
	}
	return n, nil
}

func (r *memSessions) Rotate(_ context.Context, id, refreshTokenHash string, expiresAt, lastActiveAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s, ok := r.m.data.sessions[id]; ok {
		s.RefreshTokenHash = refreshTokenHash
		s.ExpiresAt = expiresAt
		s.LastActiveAt = lastActiveAt
	}
	return nil
}
