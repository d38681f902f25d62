package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vehicle-marketplace/backend/internal/audit"
)

// AuditUnary returns a unary server interceptor that records calls rejected before reaching a service.
// Services audit their own outcomes with domain actions, so this only adds:
//   - auth_denied when a method outside publicMethods fails with Unauthenticated or PermissionDenied
//   - rate_limited when any method fails with ResourceExhausted
//
// Methods in quietMethods are never recorded. Chain it first so token and throttle rejections are seen.
func AuditUnary(logger audit.AuditLogger, publicMethods, quietMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil || logger == nil || quietMethods[info.FullMethod] {
			return resp, err
		}
		var action string
		switch status.Code(err) {
		case codes.Unauthenticated, codes.PermissionDenied:
			if !publicMethods[info.FullMethod] {
				action = audit.ActionAuthDenied
			}
		case codes.ResourceExhausted:
			action = audit.ActionRateLimited
		}
		if action != "" {
			logger.LogEvent(ctx, "", action, audit.ParseFullMethod(info.FullMethod).Resource, info.FullMethod)
		}
		return resp, err
	}
}
