package interceptors

import (
	"context"
	"testing"

	identitydomain "vehicle-marketplace/backend/internal/identity/domain"
)

func TestWithCaller_RoundTrip(t *testing.T) {
	want := identitydomain.CallerIdentity{UserID: "user-1", Email: "a@b.co", SessionID: "session-1", Roles: []string{"buyer"}}
	ctx := WithCaller(context.Background(), want)

	got, ok := CallerFromContext(ctx)
	if !ok {
		t.Fatal("CallerFromContext should return true")
	}
	if got.UserID != want.UserID || got.SessionID != want.SessionID || got.Email != want.Email {
		t.Errorf("caller = %+v, want %+v", got, want)
	}
	if userID, ok := GetUserID(ctx); !ok || userID != "user-1" {
		t.Errorf("GetUserID = %q, %v", userID, ok)
	}
	if sessionID, ok := GetSessionID(ctx); !ok || sessionID != "session-1" {
		t.Errorf("GetSessionID = %q, %v", sessionID, ok)
	}
}

func TestCallerFromContext_Missing(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"not set", context.Background()},
		{"no session", WithCaller(context.Background(), identitydomain.CallerIdentity{UserID: "user-1"})},
		{"no user", WithCaller(context.Background(), identitydomain.CallerIdentity{SessionID: "session-1"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := CallerFromContext(tt.ctx); ok {
				t.Error("CallerFromContext should return false")
			}
			if userID, ok := GetUserID(tt.ctx); ok || userID != "" {
				t.Errorf("GetUserID = %q, %v", userID, ok)
			}
		})
	}
}

func TestWithCaller_Overwrites(t *testing.T) {
	ctx := WithCaller(context.Background(), identitydomain.CallerIdentity{UserID: "u1", SessionID: "s1"})
	ctx2 := WithCaller(ctx, identitydomain.CallerIdentity{UserID: "u2", SessionID: "s2"})

	if id, _ := GetUserID(ctx); id != "u1" {
		t.Errorf("parent user = %q, want u1", id)
	}
	if id, _ := GetUserID(ctx2); id != "u2" {
		t.Errorf("child user = %q, want u2", id)
	}
}
