package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	identitydomain "vehicle-marketplace/backend/internal/identity/domain"
	"vehicle-marketplace/backend/internal/security"
	sessionrepo "vehicle-marketplace/backend/internal/session/repository"
	userdomain "vehicle-marketplace/backend/internal/user/domain"
	userrepo "vehicle-marketplace/backend/internal/user/repository"
)

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	ctx := context.Background()

	res, err := f.auth.Login(ctx, LoginInput{
		Email:    "  Buyer@Example.COM ",
		Password: testPassword,
		Device:   DeviceInfo{Device: "iPhone", UserAgent: "Safari", IPAddress: "10.0.0.1", Location: "Berlin"},
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" || res.SessionID == "" {
		t.Fatalf("incomplete result: %+v", res)
	}
	if res.ExpiresIn != 900 {
		t.Errorf("ExpiresIn = %d, want 900", res.ExpiresIn)
	}
	if res.User.ID != "u1" || res.User.Email != "buyer@example.com" || res.User.LastLoginAt == nil {
		t.Errorf("user summary = %+v", res.User)
	}
	if len(res.User.Roles) != 1 || res.User.Roles[0].Name != "buyer" {
		t.Errorf("roles = %+v", res.User.Roles)
	}

	claims, err := f.tokens.Verify(res.AccessToken)
	if err != nil {
		t.Fatalf("Verify access token: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "buyer@example.com" || claims.SessionID != res.SessionID {
		t.Errorf("claims = %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "buyer" {
		t.Errorf("role claims = %v", claims.Roles)
	}

	sess := f.getSession(t, res.SessionID)
	now := f.clock.Now()
	if sess.RefreshTokenHash != security.HashToken(res.RefreshToken) {
		t.Error("session should store the refresh token hash, not the token")
	}
	if !sess.CreatedAt.Equal(now) || !sess.LastActiveAt.Equal(now) || !sess.ExpiresAt.Equal(now.Add(30*24*time.Hour)) {
		t.Errorf("session times = %+v", sess)
	}
	if sess.Device != "iPhone" || sess.IPAddress != "10.0.0.1" || sess.Location != "Berlin" || sess.UserAgent != "Safari" {
		t.Errorf("device info = %+v", sess)
	}
	if u := f.getUser(t, "u1"); u.LastLoginAt == nil || !u.LastLoginAt.Equal(now) {
		t.Errorf("LastLoginAt = %v, want %v", u.LastLoginAt, now)
	}
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	f.seedUser(t, "u2", "suspended@example.com", func(u *userdomain.User) { u.Status = userdomain.UserStatusSuspended })
	f.seedUser(t, "u3", "deleted@example.com", func(u *userdomain.User) { u.Status = userdomain.UserStatusDeleted })

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", testPassword},
		{"wrong password", "buyer@example.com", "Wrong1234"},
		{"suspended with correct password", "suspended@example.com", testPassword},
		{"deleted with correct password", "deleted@example.com", testPassword},
		{"empty email", "", testPassword},
		{"empty password", "buyer@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.auth.Login(context.Background(), LoginInput{Email: tt.email, Password: tt.password})
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
			if res != nil {
				t.Error("result should be nil on failure")
			}
		})
	}
	for _, id := range []string{"u1", "u2", "u3"} {
		if n := len(f.activeSessionIDs(t, id)); n != 0 {
			t.Errorf("user %s has %d sessions after failed logins", id, n)
		}
	}
}

func TestLogin_SessionCapNeverExceeded(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	for i := 0; i < 12; i++ {
		f.clock.Advance(time.Second)
		f.login(t, "buyer@example.com")
		if n := len(f.activeSessionIDs(t, "u1")); n > 5 {
			t.Fatalf("after login %d active sessions = %d, want <= 5", i+1, n)
		}
	}
	if n := len(f.activeSessionIDs(t, "u1")); n != 5 {
		t.Errorf("active sessions = %d, want 5", n)
	}
}

func TestLogin_SixthLoginEvictsOldest(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Minute)
		ids = append(ids, f.login(t, "buyer@example.com").SessionID)
	}
	f.clock.Advance(time.Minute)
	s6 := f.login(t, "buyer@example.com")

	if !f.getSession(t, ids[0]).Revoked {
		t.Error("S1 should be revoked")
	}
	for i, id := range ids[1:] {
		if f.getSession(t, id).Revoked {
			t.Errorf("S%d should remain active", i+2)
		}
	}

	list, err := f.auth.ListSessions(ctx, callerFor("u1", s6))
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	want := []string{s6.SessionID, ids[4], ids[3], ids[2], ids[1]}
	if len(list) != len(want) {
		t.Fatalf("ListSessions returned %d sessions, want %d", len(list), len(want))
	}
	for i, info := range list {
		if info.ID != want[i] {
			t.Errorf("list[%d] = %s, want %s", i, info.ID, want[i])
		}
		if info.Current != (info.ID == s6.SessionID) {
			t.Errorf("list[%d].Current = %v", i, info.Current)
		}
	}
}

func TestLogin_EvictionIsByCreationNotActivity(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	ctx := context.Background()

	var first *LoginResult
	var ids []string
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Minute)
		res := f.login(t, "buyer@example.com")
		if i == 0 {
			first = res
		}
		ids = append(ids, res.SessionID)
	}
	f.clock.Advance(time.Minute)
	if _, err := f.auth.Refresh(ctx, first.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	f.clock.Advance(time.Minute)
	f.login(t, "buyer@example.com")

	if !f.getSession(t, ids[0]).Revoked {
		t.Error("oldest-created session should be evicted even though it was just refreshed")
	}
	if f.getSession(t, ids[1]).Revoked {
		t.Error("second session should remain active")
	}
}

func TestLogin_InactiveSessionsDoNotCount(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	ctx := context.Background()

	var kept []string
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Minute)
		res := f.login(t, "buyer@example.com")
		if i < 2 {
			if err := f.auth.RevokeSession(ctx, callerFor("u1", res), res.SessionID); err != nil {
				t.Fatal(err)
			}
			continue
		}
		kept = append(kept, res.SessionID)
	}
	f.clock.Advance(time.Minute)
	f.login(t, "buyer@example.com")
	for _, id := range kept {
		if f.getSession(t, id).Revoked {
			t.Errorf("session %s evicted while only 3 were active", id)
		}
	}
	if n := len(f.activeSessionIDs(t, "u1")); n != 4 {
		t.Errorf("active = %d, want 4", n)
	}
}

func TestLogin_CapIsPerUser(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "a@example.com")
	f.seedUser(t, "u2", "b@example.com")
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Second)
		f.login(t, "a@example.com")
	}
	f.login(t, "b@example.com")
	if n := len(f.activeSessionIDs(t, "u1")); n != 5 {
		t.Errorf("u1 active = %d, want 5", n)
	}
}

// interleavedAuth returns an AuthService over f.store whose transactions are not serialized and
// whose session reads wait on barrier.
func interleavedAuth(f *fixture, barrier *readBarrier) *AuthService {
	st := hookStore{Store: concurrentStore{f.store}, sessions: func(r sessionrepo.Repository) sessionrepo.Repository {
		return gatedSessions{Repository: r, barrier: barrier}
	}}
	svc := NewAuthService(st, f.hasher, f.tokens, nil, zap.NewNop(), 15*time.Minute, 30*24*time.Hour, 5)
	svc.now = f.clock.Now
	return svc
}

func TestLogin_ConcurrentLoginsMayExceedCapUntilNextLogin(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	ctx := context.Background()

	var before []string
	for i := 0; i < 4; i++ {
		f.clock.Advance(time.Minute)
		before = append(before, f.login(t, "buyer@example.com").SessionID)
	}
	f.clock.Advance(time.Minute)

	// Both logins count four active sessions before either inserts.
	svc := interleavedAuth(f, newReadBarrier(2))
	var (
		wg      sync.WaitGroup
		results [2]*LoginResult
		errs    [2]error
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Login(ctx, LoginInput{Email: "buyer@example.com", Password: testPassword})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent login %d: %v", i, err)
		}
	}
	if n := len(f.activeSessionIDs(t, "u1")); n != 6 {
		t.Fatalf("active sessions after concurrent logins = %d, want 6", n)
	}

	f.clock.Advance(time.Minute)
	last := f.login(t, "buyer@example.com")
	active := f.activeSessionIDs(t, "u1")
	if len(active) != 5 {
		t.Fatalf("active sessions after next login = %d, want 5", len(active))
	}
	for _, id := range before[:2] {
		if active[id] {
			t.Errorf("oldest session %s should be evicted", id)
		}
	}
	for _, id := range []string{before[2], before[3], results[0].SessionID, results[1].SessionID, last.SessionID} {
		if !active[id] {
			t.Errorf("session %s should remain active", id)
		}
	}
}

func TestLogin_CancelledMidTransactionLeavesNoWrites(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := NewAuthService(f.store, f.hasher, cancellingIssuer{TokenIssuer: f.tokens, cancel: cancel}, nil, zap.NewNop(), 15*time.Minute, 30*24*time.Hour, 5)
	svc.now = f.clock.Now

	_, err := svc.Login(ctx, LoginInput{Email: "buyer@example.com", Password: testPassword})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n := len(f.activeSessionIDs(t, "u1")); n != 0 {
		t.Errorf("sessions after cancelled login = %d, want 0", n)
	}
	if u := f.getUser(t, "u1"); u.LastLoginAt != nil {
		t.Error("LastLoginAt should not be written by a cancelled login")
	}
}

func TestLogin_StoreFailureIsNotAnErrorKind(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	boom := errors.New("connection reset")
	st := hookStore{Store: f.store, sessions: func(r sessionrepo.Repository) sessionrepo.Repository {
		return failingSessions{Repository: r, err: boom}
	}}
	svc := NewAuthService(st, f.hasher, f.tokens, nil, nil, 15*time.Minute, 30*24*time.Hour, 5)

	_, err := svc.Login(context.Background(), LoginInput{Email: "buyer@example.com", Password: testPassword})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
	for _, kind := range []error{ErrInvalidCredentials, ErrTokenInvalidOrExpired, ErrPolicyViolation, ErrNotFound} {
		if errors.Is(err, kind) {
			t.Errorf("store failure classified as %v", kind)
		}
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	ctx := context.Background()
	login := f.login(t, "buyer@example.com")

	f.clock.Advance(time.Hour)
	res, err := f.auth.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.RefreshToken == login.RefreshToken {
		t.Error("refresh token must change on every refresh")
	}
	if res.SessionID != login.SessionID || res.ExpiresIn != 900 || res.AccessToken == "" {
		t.Errorf("result = %+v", res)
	}
	claims, err := f.tokens.Verify(res.AccessToken)
	if err != nil || claims.SessionID != login.SessionID || claims.Subject != "u1" {
		t.Errorf("claims = %+v, err = %v", claims, err)
	}

	sess := f.getSession(t, login.SessionID)
	now := f.clock.Now()
	if !sess.LastActiveAt.Equal(now) || !sess.ExpiresAt.Equal(now.Add(30*24*time.Hour)) {
		t.Errorf("session not extended: %+v", sess)
	}

	if _, err := f.auth.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrTokenInvalidOrExpired) {
		t.Errorf("old token err = %v, want ErrTokenInvalidOrExpired", err)
	}
	if _, err := f.auth.Refresh(ctx, res.RefreshToken); err != nil {
		t.Errorf("new token should refresh: %v", err)
	}
}

func TestRefresh_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("empty and unknown", func(t *testing.T) {
		f := newFixture(t)
		for _, tok := range []string{"", "not-a-token"} {
			if _, err := f.auth.Refresh(ctx, tok); !errors.Is(err, ErrTokenInvalidOrExpired) {
				t.Errorf("Refresh(%q) err = %v", tok, err)
			}
		}
	})

	t.Run("revoked session", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "buyer@example.com")
		login := f.login(t, "buyer@example.com")
		if err := f.auth.Logout(ctx, callerFor("u1", login)); err != nil {
			t.Fatal(err)
		}
		if _, err := f.auth.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrTokenInvalidOrExpired) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("expired session", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "buyer@example.com")
		login := f.login(t, "buyer@example.com")
		f.clock.Advance(31 * 24 * time.Hour)
		if _, err := f.auth.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrTokenInvalidOrExpired) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("owner no longer active", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser(t, "u1", "buyer@example.com")
		login := f.login(t, "buyer@example.com")
		st := hookStore{Store: f.store, users: func(r userrepo.Repository) userrepo.Repository {
			return statusOverrideUsers{Repository: r, status: userdomain.UserStatusSuspended}
		}}
		svc := NewAuthService(st, f.hasher, f.tokens, nil, nil, 15*time.Minute, 30*24*time.Hour, 5)
		svc.now = f.clock.Now
		if _, err := svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrTokenInvalidOrExpired) {
			t.Errorf("err = %v", err)
		}
		if got := f.getSession(t, login.SessionID); got.RefreshTokenHash != security.HashToken(login.RefreshToken) {
			t.Error("failed refresh must not rotate the token")
		}
	})
}

func TestRefresh_ConcurrentRefreshesKeepLastRotation(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	ctx := context.Background()
	login := f.login(t, "buyer@example.com")
	f.clock.Advance(time.Minute)

	// Both refreshes find the session by the old token before either rotates it.
	svc := interleavedAuth(f, newReadBarrier(2))
	var (
		wg      sync.WaitGroup
		results [2]*RefreshResult
		errs    [2]error
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Refresh(ctx, login.RefreshToken)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent refresh %d: %v", i, err)
		}
	}
	if results[0].RefreshToken == results[1].RefreshToken {
		t.Fatal("concurrent refreshes returned the same token")
	}

	stored := f.getSession(t, login.SessionID).RefreshTokenHash
	winner, loser := results[0], results[1]
	if security.HashToken(loser.RefreshToken) == stored {
		winner, loser = loser, winner
	}
	if security.HashToken(winner.RefreshToken) != stored {
		t.Fatal("stored hash matches neither rotated token")
	}

	if _, err := f.auth.Refresh(ctx, loser.RefreshToken); !errors.Is(err, ErrTokenInvalidOrExpired) {
		t.Errorf("overwritten token err = %v, want ErrTokenInvalidOrExpired", err)
	}
	if _, err := f.auth.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrTokenInvalidOrExpired) {
		t.Errorf("original token err = %v, want ErrTokenInvalidOrExpired", err)
	}
	if _, err := f.auth.Refresh(ctx, winner.RefreshToken); err != nil {
		t.Errorf("persisted token should refresh: %v", err)
	}
}

func TestLogout_RevokesOnlyCallerSession(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "buyer@example.com")
	ctx := context.Background()

	a := f.login(t, "buyer@example.com")
	b := f.login(t, "buyer@example.com")
	c := f.login(t, "buyer@example.com")

	if err := f.auth.Logout(ctx, callerFor("u1", b)); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	active := f.activeSessionIDs(t, "u1")
	if active[b.SessionID] || !active[a.SessionID] || !active[c.SessionID] {
		t.Errorf("active after logout = %v", active)
	}
	if err := f.auth.Logout(ctx, callerFor("u1", b)); err != nil {
		t.Errorf("second Logout should be a no-op, got %v", err)
	}
	if err := f.auth.Logout(ctx, identitydomain.CallerIdentity{}); err != nil {
		t.Errorf("Logout without identity should be a no-op, got %v", err)
	}
	if err := f.auth.Logout(ctx, identitydomain.CallerIdentity{UserID: "u1", SessionID: "missing"}); err != nil {
		t.Errorf("Logout of unknown session should be a no-op, got %v", err)
	}
}

func TestLogout_IgnoresOtherUsersSession(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "a@example.com")
	f.seedUser(t, "u2", "b@example.com")
	victim := f.login(t, "b@example.com")

	err := f.auth.Logout(context.Background(), identitydomain.CallerIdentity{UserID: "u1", SessionID: victim.SessionID})
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if f.getSession(t, victim.SessionID).Revoked {
		t.Error("another user's session must not be revoked")
	}
}

func TestRevokeSession(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "a@example.com")
	f.seedUser(t, "u2", "b@example.com")
	ctx := context.Background()

	current := f.login(t, "a@example.com")
	other := f.login(t, "a@example.com")
	foreign := f.login(t, "b@example.com")
	caller := callerFor("u1", current)

	if err := f.auth.RevokeSession(ctx, caller, other.SessionID); err != nil {
		t.Fatalf("RevokeSession own: %v", err)
	}
	if !f.getSession(t, other.SessionID).Revoked {
		t.Error("own session should be revoked")
	}
	if err := f.auth.RevokeSession(ctx, caller, other.SessionID); err != nil {
		t.Errorf("revoking twice should succeed, got %v", err)
	}

	errForeign := f.auth.RevokeSession(ctx, caller, foreign.SessionID)
	errMissing := f.auth.RevokeSession(ctx, caller, "does-not-exist")
	if !errors.Is(errForeign, ErrNotFound) || !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("foreign err = %v, missing err = %v, want ErrNotFound", errForeign, errMissing)
	}
	if errForeign.Error() != errMissing.Error() {
		t.Errorf("foreign and missing must look identical: %q vs %q", errForeign, errMissing)
	}
	if f.getSession(t, foreign.SessionID).Revoked {
		t.Error("foreign session must stay active")
	}
	if err := f.auth.RevokeSession(ctx, caller, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty id err = %v", err)
	}
}

func TestListSessions_OrderAndCurrent(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1", "a@example.com")
	ctx := context.Background()

	first := f.login(t, "a@example.com")
	f.clock.Advance(time.Minute)
	second := f.login(t, "a@example.com")
	f.clock.Advance(time.Minute)
	third := f.login(t, "a@example.com")
	f.clock.Advance(time.Minute)
	if _, err := f.auth.Refresh(ctx, first.RefreshToken); err != nil {
		t.Fatal(err)
	}
	if err := f.auth.RevokeSession(ctx, callerFor("u1", third), third.SessionID); err != nil {
		t.Fatal(err)
	}

	list, err := f.auth.ListSessions(ctx, callerFor("u1", second))
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != first.SessionID || list[1].ID != second.SessionID {
		t.Errorf("order = [%s %s], want most recently active first", list[0].ID, list[1].ID)
	}
	if list[0].Current || !list[1].Current {
		t.Errorf("Current flags = %v, %v", list[0].Current, list[1].Current)
	}
}

func TestListSessions_Empty(t *testing.T) {
	f := newFixture(t)
	list, err := f.auth.ListSessions(context.Background(), identitydomain.CallerIdentity{UserID: "nobody"})
	if err != nil || len(list) != 0 {
		t.Errorf("list = %v, err = %v", list, err)
	}
}
