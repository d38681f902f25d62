package interceptors

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"vehicle-marketplace/backend/internal/ratelimit"
)

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	keys     []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func TestRateLimitUnary(t *testing.T) {
	const login = "/marketplace.auth.v1.AuthService/Login"
	methods := map[string]bool{login: true}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-forwarded-for", "10.0.0.7"))
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 4000}})

	tests := []struct {
		name     string
		method   string
		limiter  *stubLimiter
		wantCode codes.Code
		wantKey  bool
	}{
		{"allowed", login, &stubLimiter{decision: ratelimit.Decision{Allowed: true}}, codes.OK, true},
		{"blocked", login, &stubLimiter{decision: ratelimit.Decision{RetryAfter: 90 * time.Second}}, codes.ResourceExhausted, true},
		{"limiter error fails open", login, &stubLimiter{decision: ratelimit.Decision{Allowed: true}, err: errors.New("redis down")}, codes.OK, true},
		{"unthrottled method", "/marketplace.auth.v1.AuthService/Refresh", &stubLimiter{}, codes.OK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interceptor := RateLimitUnary(tt.limiter, methods, false, nil)
			handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
			_, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			if got := status.Code(err); got != tt.wantCode {
				t.Fatalf("code = %v, want %v", got, tt.wantCode)
			}
			if tt.wantKey {
				if len(tt.limiter.keys) != 1 || tt.limiter.keys[0] != login+":ip:10.0.0.7" {
					t.Errorf("keys = %v", tt.limiter.keys)
				}
			} else if len(tt.limiter.keys) != 0 {
				t.Errorf("limiter consulted for unthrottled method: %v", tt.limiter.keys)
			}
		})
	}
}

func TestRateLimitUnary_NilLimiter(t *testing.T) {
	interceptor := RateLimitUnary(nil, map[string]bool{"/x.Y/Z": true}, false, nil)
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
	if _, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}, handler); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestRateLimitUnary_KeySource(t *testing.T) {
	const login = "/marketplace.auth.v1.AuthService/Login"
	methods := map[string]bool{login: true}
	fromPeer := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("192.168.1.9"), Port: 5555}})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	tests := []struct {
		name           string
		trustForwarded bool
		want           []string
	}{
		{"rotating forwarded headers share the peer key", false, []string{
			login + ":ip:192.168.1.9", login + ":ip:192.168.1.9", login + ":ip:192.168.1.9",
		}},
		{"trusted proxy uses the forwarded hop", true, []string{
			login + ":ip:1.2.3.0", login + ":ip:1.2.3.1", login + ":ip:1.2.3.2",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: true}}
			interceptor := RateLimitUnary(limiter, methods, tt.trustForwarded, nil)
			for _, xff := range []string{"1.2.3.0", "1.2.3.1", "1.2.3.2"} {
				ctx := metadata.NewIncomingContext(fromPeer, metadata.Pairs("x-forwarded-for", xff))
				if _, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: login}, handler); err != nil {
					t.Fatalf("err = %v", err)
				}
			}
			if len(limiter.keys) != len(tt.want) {
				t.Fatalf("keys = %v", limiter.keys)
			}
			for i := range tt.want {
				if limiter.keys[i] != tt.want[i] {
					t.Errorf("keys[%d] = %q, want %q", i, limiter.keys[i], tt.want[i])
				}
			}
		})
	}
}

func TestPeerIP_IgnoresForwardedHeaders(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-forwarded-for", "1.2.3.4"))
	if got := PeerIP(ctx); got != "unknown" {
		t.Errorf("PeerIP without peer = %q, want unknown", got)
	}
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.1.1.1"), Port: 80}})
	if got := PeerIP(ctx); got != "10.1.1.1" {
		t.Errorf("PeerIP = %q, want 10.1.1.1", got)
	}
}
