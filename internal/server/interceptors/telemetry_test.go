package interceptors

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	identitydomain "vehicle-marketplace/backend/internal/identity/domain"
	"vehicle-marketplace/backend/internal/telemetry/domain"
)

type chanEmitter chan *domain.Event

func (c chanEmitter) Emit(_ context.Context, ev *domain.Event) error {
	c <- ev
	return nil
}

func TestTelemetryUnary_EmitsRequestEvent(t *testing.T) {
	events := make(chanEmitter, 1)
	interceptor := TelemetryUnary(events, nil, nil)
	ctx := WithCaller(context.Background(), identitydomain.CallerIdentity{UserID: "u1", SessionID: "s1"})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "session not found")
	}

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/marketplace.session.v1.SessionService/RevokeSession"}, handler)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("err = %v", err)
	}

	select {
	case ev := <-events:
		if ev.UserID != "u1" || ev.SessionID != "s1" || ev.EventType != domain.EventTypeRequest {
			t.Errorf("event = %+v", ev)
		}
		var meta domain.RequestMetadata
		if err := json.Unmarshal(ev.Metadata, &meta); err != nil {
			t.Fatalf("metadata: %v", err)
		}
		if meta.FullMethod != "/marketplace.session.v1.SessionService/RevokeSession" || meta.StatusCode != "NotFound" || meta.ClientIP != "unknown" {
			t.Errorf("metadata = %+v", meta)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
	}
}

func TestTelemetryUnary_Skips(t *testing.T) {
	events := make(chanEmitter, 1)
	skip := map[string]bool{"/marketplace.health.v1.HealthService/HealthCheck": true}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	resp, err := TelemetryUnary(events, skip, nil)(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/marketplace.health.v1.HealthService/HealthCheck"}, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("resp = %v, err = %v", resp, err)
	}
	if _, err := TelemetryUnary(nil, nil, nil)(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}, handler); err != nil {
		t.Fatalf("nil emitter: %v", err)
	}
	select {
	case ev := <-events:
		t.Errorf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
