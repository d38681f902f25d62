// Package server assembles the gRPC server: services, JSON codec, interceptor chain, and tracing.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	authv1 "vehicle-marketplace/backend/api/authv1"
	healthv1 "vehicle-marketplace/backend/api/healthv1"
	"vehicle-marketplace/backend/api/rpc"
	sessionv1 "vehicle-marketplace/backend/api/sessionv1"
	"vehicle-marketplace/backend/internal/audit"
	healthhandler "vehicle-marketplace/backend/internal/health/handler"
	identityhandler "vehicle-marketplace/backend/internal/identity/handler"
	"vehicle-marketplace/backend/internal/server/interceptors"
	sessionhandler "vehicle-marketplace/backend/internal/session/handler"
	"vehicle-marketplace/backend/internal/telemetry"
)

// PublicMethods do not require a Bearer token.
var PublicMethods = map[string]bool{
	authv1.AuthService_Login_FullMethodName:           true,
	authv1.AuthService_Refresh_FullMethodName:         true,
	authv1.AuthService_ForgotPassword_FullMethodName:  true,
	authv1.AuthService_ResetPassword_FullMethodName:   true,
	authv1.AuthService_VerifyEmail_FullMethodName:     true,
	healthv1.HealthService_HealthCheck_FullMethodName: true,
}

// ThrottledMethods are rate limited per client IP.
var ThrottledMethods = map[string]bool{
	authv1.AuthService_Login_FullMethodName:            true,
	authv1.AuthService_ForgotPassword_FullMethodName:   true,
	authv1.AuthService_SendVerification_FullMethodName: true,
}

// quietMethods are neither audited nor sent to telemetry.
var quietMethods = map[string]bool{
	healthv1.HealthService_HealthCheck_FullMethodName: true,
}

// Deps holds the dependencies of the gRPC server. Every field is optional: a nil service makes its
// RPCs return Unimplemented, a nil interceptor dependency turns that interceptor into a pass-through.
type Deps struct {
	// Auth backs Login, Refresh, and Logout.
	Auth identityhandler.SessionAuthenticator
	// Credentials backs the password, email, and phone flows of AuthService.
	Credentials identityhandler.CredentialManager
	// Sessions backs SessionService.
	Sessions sessionhandler.SessionManager
	// HealthPingers are checked by HealthCheck (e.g. *sql.DB, Redis).
	HealthPingers []healthhandler.Pinger

	// Tokens verifies access tokens for protected methods. If nil, every protected method is rejected.
	Tokens interceptors.TokenVerifier
	// Audit records rejected calls.
	Audit audit.AuditLogger
	// Limiter throttles ThrottledMethods.
	Limiter interceptors.Limiter
	// TrustProxyHeaders keys throttling on x-forwarded-for / x-real-ip instead of the peer address.
	TrustProxyHeaders bool
	// Telemetry receives one event per RPC.
	Telemetry telemetry.EventEmitter

	Log *zap.Logger
}

// RegisterServices registers AuthService, SessionService, and HealthService on s.
//
// Service → handler mapping:
//   - AuthService    → internal/identity/handler
//   - SessionService → internal/session/handler
//   - HealthService  → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	authv1.RegisterAuthServiceServer(s, identityhandler.NewAuthServer(deps.Auth, deps.Credentials, deps.Log))
	sessionv1.RegisterSessionServiceServer(s, sessionhandler.NewServer(deps.Sessions, deps.Log))
	healthv1.RegisterHealthServiceServer(s, healthhandler.NewServer(deps.Log, deps.HealthPingers...))
}

// NewServer returns a gRPC server with all services registered. Every call uses the JSON codec.
// Interceptors run in this order: audit, rate limit, auth, telemetry.
func NewServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	base := []grpc.ServerOption{
		grpc.ForceServerCodec(rpc.Codec()),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuditUnary(deps.Audit, PublicMethods, quietMethods),
			interceptors.RateLimitUnary(deps.Limiter, ThrottledMethods, deps.TrustProxyHeaders, log),
			interceptors.AuthUnary(deps.Tokens, PublicMethods),
			interceptors.TelemetryUnary(deps.Telemetry, quietMethods, log),
		),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterServices(s, deps)
	return s
}
