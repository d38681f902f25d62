package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"vehicle-marketplace/backend/internal/db/store"
	identitydomain "vehicle-marketplace/backend/internal/identity/domain"
	"vehicle-marketplace/backend/internal/security"
	sessiondomain "vehicle-marketplace/backend/internal/session/domain"
	sessionrepo "vehicle-marketplace/backend/internal/session/repository"
	userdomain "vehicle-marketplace/backend/internal/user/domain"
	userrepo "vehicle-marketplace/backend/internal/user/repository"
)

const testPassword = "Password1"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentSecret struct {
	to, secret string
}

type fakeNotifier struct {
	mu     sync.Mutex
	resets []sentSecret
	emails []sentSecret
	phones []sentSecret
	err    error
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, sentSecret{email, token})
	return n.err
}

func (n *fakeNotifier) SendEmailVerification(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, sentSecret{email, token})
	return n.err
}

func (n *fakeNotifier) SendPhoneCode(_ context.Context, phone, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.phones = append(n.phones, sentSecret{phone, code})
	return n.err
}

type fixture struct {
	store    *store.Memory
	auth     *AuthService
	creds    *CredentialService
	notifier *fakeNotifier
	clock    *fakeClock
	hasher   *security.Hasher
	tokens   *security.TokenProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	f := &fixture{
		store:    store.NewMemory(),
		notifier: &fakeNotifier{},
		clock:    &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
		hasher:   security.NewHasher(bcrypt.MinCost),
		tokens:   tokens,
	}
	f.auth = NewAuthService(f.store, f.hasher, f.tokens, nil, zap.NewNop(), 15*time.Minute, 30*24*time.Hour, 5)
	f.auth.now = f.clock.Now
	f.creds = NewCredentialService(f.store, f.hasher, f.notifier, nil, zap.NewNop(), time.Hour, 24*time.Hour, 10*time.Minute)
	f.creds.now = f.clock.Now
	return f
}

// seedUser creates an active user with testPassword. mutate may adjust fields before insert.
func (f *fixture) seedUser(t *testing.T, id, email string, mutate ...func(*userdomain.User)) *userdomain.User {
	t.Helper()
	hash, err := f.hasher.Hash([]byte(testPassword))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	now := f.clock.Now()
	u := &userdomain.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Status:       userdomain.UserStatusActive,
		Roles:        []userdomain.Role{{ID: "role-buyer", Name: "buyer"}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, m := range mutate {
		m(u)
	}
	if err := f.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return u
}

func (f *fixture) login(t *testing.T, email string) *LoginResult {
	t.Helper()
	res, err := f.auth.Login(context.Background(), LoginInput{Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("Login(%s): %v", email, err)
	}
	return res
}

func (f *fixture) getUser(t *testing.T, id string) *userdomain.User {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), id)
	if err != nil || u == nil {
		t.Fatalf("GetByID(%s) = %v, %v", id, u, err)
	}
	return u
}

func (f *fixture) getSession(t *testing.T, id string) *sessiondomain.Session {
	t.Helper()
	s, err := f.store.Sessions().GetByID(context.Background(), id)
	if err != nil || s == nil {
		t.Fatalf("GetSession(%s) = %v, %v", id, s, err)
	}
	return s
}

func (f *fixture) activeSessionIDs(t *testing.T, userID string) map[string]bool {
	t.Helper()
	all, err := f.store.Sessions().ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	out := make(map[string]bool)
	for _, s := range all {
		if s.IsActive(f.clock.Now()) {
			out[s.ID] = true
		}
	}
	return out
}

func callerFor(userID string, res *LoginResult) identitydomain.CallerIdentity {
	return identitydomain.CallerIdentity{UserID: userID, SessionID: res.SessionID}
}

// hookStore wraps a Store so tests can replace repository behaviour, inside transactions too.
type hookStore struct {
	store.Store
	users    func(userrepo.Repository) userrepo.Repository
	sessions func(sessionrepo.Repository) sessionrepo.Repository
}

func (h hookStore) Users() userrepo.Repository {
	if h.users != nil {
		return h.users(h.Store.Users())
	}
	return h.Store.Users()
}

func (h hookStore) Sessions() sessionrepo.Repository {
	if h.sessions != nil {
		return h.sessions(h.Store.Sessions())
	}
	return h.Store.Sessions()
}

func (h hookStore) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return h.Store.WithinTx(ctx, func(tx store.Store) error {
		return fn(hookStore{Store: tx, users: h.users, sessions: h.sessions})
	})
}

type statusOverrideUsers struct {
	userrepo.Repository
	status userdomain.UserStatus
}

func (r statusOverrideUsers) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	u, err := r.Repository.GetByID(ctx, id)
	if u != nil {
		u.Status = r.status
	}
	return u, err
}

func (r statusOverrideUsers) GetByIDForUpdate(ctx context.Context, id string) (*userdomain.User, error) {
	return r.GetByID(ctx, id)
}

// failingResetTokens fails every write of a password reset token.
type failingResetTokens struct {
	userrepo.Repository
	err error
}

func (r failingResetTokens) SetPasswordResetToken(context.Context, string, string, time.Time, time.Time) error {
	return r.err
}

// concurrentStore runs transactions without serializing them or rolling them back, so tests can
// interleave two transactions the way READ COMMITTED Postgres does without row locks.
type concurrentStore struct {
	*store.Memory
}

func (c concurrentStore) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(c)
}

// readBarrier holds the first parties callers until all of them have arrived. Later callers pass
// straight through. A caller gives up after five seconds so a broken interleaving fails instead of
// hanging.
type readBarrier struct {
	parties int32
	calls   atomic.Int32
	arrived sync.WaitGroup
}

func newReadBarrier(parties int) *readBarrier {
	b := &readBarrier{parties: int32(parties)}
	b.arrived.Add(parties)
	return b
}

func (b *readBarrier) wait() {
	if b.calls.Add(1) > b.parties {
		return
	}
	b.arrived.Done()
	done := make(chan struct{})
	go func() {
		b.arrived.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}

// gatedSessions parks session reads on a barrier after they have read, before the caller writes.
type gatedSessions struct {
	sessionrepo.Repository
	barrier *readBarrier
}

func (r gatedSessions) ListByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	out, err := r.Repository.ListByUser(ctx, userID)
	r.barrier.wait()
	return out, err
}

func (r gatedSessions) GetByRefreshTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error) {
	out, err := r.Repository.GetByRefreshTokenHash(ctx, hash)
	r.barrier.wait()
	return out, err
}

type failingSessions struct {
	sessionrepo.Repository
	err error
}

func (r failingSessions) RevokeAllByUser(context.Context, string, time.Time) (int, error) {
	return 0, r.err
}

func (r failingSessions) ListByUser(context.Context, string) ([]*sessiondomain.Session, error) {
	return nil, r.err
}

// cancellingIssuer cancels the request context while the access token is minted, after the
// session writes of Login have been made.
type cancellingIssuer struct {
	TokenIssuer
	cancel context.CancelFunc
}

func (c cancellingIssuer) Issue(claims security.Claims, ttl time.Duration) (string, error) {
	c.cancel()
	return c.TokenIssuer.Issue(claims, ttl)
}
