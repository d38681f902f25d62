package interceptors

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"vehicle-marketplace/backend/internal/telemetry"
	"vehicle-marketplace/backend/internal/telemetry/domain"
)

// TelemetryUnary returns a unary server interceptor that emits a grpc_request event after each RPC.
// Best-effort: failures are logged and do not fail the RPC. If emitter is nil, the interceptor no-ops.
// skipMethods is the set of full method names to not emit (e.g. HealthCheck).
// Chain it after AuthUnary so events carry the caller's user and session ids.
func TelemetryUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool, log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		meta, _ := json.Marshal(domain.RequestMetadata{
			FullMethod: info.FullMethod,
			StatusCode: status.Code(err).String(),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   ClientIP(ctx),
		})
		userID, _ := GetUserID(ctx)
		sessionID, _ := GetSessionID(ctx)
		telemetry.EmitAsync(ctx, emitter, &domain.Event{
			UserID:    userID,
			SessionID: sessionID,
			EventType: domain.EventTypeRequest,
			Source:    "grpc_interceptor",
			Metadata:  meta,
			CreatedAt: time.Now().UTC(),
		}, log)
		return resp, err
	}
}
