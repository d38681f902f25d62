package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	identitydomain "vehicle-marketplace/backend/internal/identity/domain"
	"vehicle-marketplace/backend/internal/security"
)

const bearerPrefix = "bearer "

// TokenVerifier verifies an access token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*security.Claims, error)
}

// AuthUnary returns a unary server interceptor that validates the Bearer (access) token
// from gRPC metadata and stores the CallerIdentity in context for protected RPCs.
// publicMethods is the set of full method names that do not require a Bearer token
// (e.g. Login, Refresh, ForgotPassword, HealthCheck). A valid token on a public method still
// attaches the caller so audit and telemetry can attribute the call.
func AuthUnary(verifier TokenVerifier, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		public := publicMethods[info.FullMethod]
		caller, ok := authenticate(ctx, verifier)
		if !ok {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		return handler(WithCaller(ctx, caller), req)
	}
}

func authenticate(ctx context.Context, verifier TokenVerifier) (identitydomain.CallerIdentity, bool) {
	if verifier == nil {
		return identitydomain.CallerIdentity{}, false
	}
	token := extractBearer(ctx)
	if token == "" {
		return identitydomain.CallerIdentity{}, false
	}
	claims, err := verifier.Verify(token)
	if err != nil || claims == nil {
		return identitydomain.CallerIdentity{}, false
	}
	caller := identitydomain.CallerIdentity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		SessionID: claims.SessionID,
		Roles:     claims.Roles,
	}
	return caller, caller.Valid()
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
