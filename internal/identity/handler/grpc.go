package handler

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	authv1 "vehicle-marketplace/backend/api/authv1"
	identitydomain "vehicle-marketplace/backend/internal/identity/domain"
	"vehicle-marketplace/backend/internal/identity/service"
	"vehicle-marketplace/backend/internal/server/interceptors"
)

const forgotPasswordAck = "if an account exists for that email, a reset link has been sent"

// SessionAuthenticator is the session lifecycle the AuthServer exposes. *service.AuthService implements it.
type SessionAuthenticator interface {
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
	Logout(ctx context.Context, caller identitydomain.CallerIdentity) error
}

// CredentialManager is the credential flow the AuthServer exposes. *service.CredentialService implements it.
type CredentialManager interface {
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, caller identitydomain.CallerIdentity, currentPassword, newPassword string) error
	ChangeEmail(ctx context.Context, caller identitydomain.CallerIdentity, newEmail, password string) error
	SendVerification(ctx context.Context, caller identitydomain.CallerIdentity, kind string) error
	VerifyEmail(ctx context.Context, token string) error
	VerifyPhone(ctx context.Context, caller identitydomain.CallerIdentity, code string) error
}

// AuthServer implements AuthService for login, token refresh, logout, and credential management.
type AuthServer struct {
	authv1.UnimplementedAuthServiceServer
	auth  SessionAuthenticator
	creds CredentialManager
	log   *zap.Logger
}

// NewAuthServer returns a new Auth gRPC server. If auth or creds is nil, the methods backed by it
// return Unimplemented.
func NewAuthServer(auth SessionAuthenticator, creds CredentialManager, log *zap.Logger) *AuthServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServer{auth: auth, creds: creds, log: log}
}

// Login authenticates by email and password and opens a session.
func (s *AuthServer) Login(ctx context.Context, req *authv1.LoginRequest) (*authv1.LoginResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Login not implemented")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}
	res, err := s.auth.Login(ctx, service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		Device:     DeviceFromContext(ctx),
	})
	if err != nil {
		return nil, StatusError(s.log, "Login", err)
	}
	return &authv1.LoginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
		User:         userToWire(res.User),
	}, nil
}

// Refresh rotates the refresh token and issues a new access token.
func (s *AuthServer) Refresh(ctx context.Context, req *authv1.RefreshRequest) (*authv1.RefreshResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
	}
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}
	res, err := s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, StatusError(s.log, "Refresh", err)
	}
	return &authv1.RefreshResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	}, nil
}

// Logout revokes the caller's current session.
func (s *AuthServer) Logout(ctx context.Context, _ *authv1.LogoutRequest) (*authv1.Ack, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
	}
	caller, err := RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Logout(ctx, caller); err != nil {
		return nil, StatusError(s.log, "Logout", err)
	}
	return &authv1.Ack{Message: "logged out"}, nil
}

// ForgotPassword starts a password reset. The response does not reveal whether the email exists.
func (s *AuthServer) ForgotPassword(ctx context.Context, req *authv1.ForgotPasswordRequest) (*authv1.Ack, error) {
	if s.creds == nil {
		return nil, status.Error(codes.Unimplemented, "method ForgotPassword not implemented")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}
	if err := s.creds.ForgotPassword(ctx, req.Email); err != nil {
		return nil, StatusError(s.log, "ForgotPassword", err)
	}
	return &authv1.Ack{Message: forgotPasswordAck}, nil
}

func (s *AuthServer) ResetPassword(ctx context.Context, req *authv1.ResetPasswordRequest) (*authv1.Ack, error) {
	if s.creds == nil {
		return nil, status.Error(codes.Unimplemented, "method ResetPassword not implemented")
	}
	if err := s.creds.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		return nil, StatusError(s.log, "ResetPassword", err)
	}
	return &authv1.Ack{Message: "password has been reset"}, nil
}

func (s *AuthServer) ChangePassword(ctx context.Context, req *authv1.ChangePasswordRequest) (*authv1.Ack, error) {
	if s.creds == nil {
		return nil, status.Error(codes.Unimplemented, "method ChangePassword not implemented")
	}
	caller, err := RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.creds.ChangePassword(ctx, caller, req.CurrentPassword, req.NewPassword); err != nil {
		return nil, StatusError(s.log, "ChangePassword", err)
	}
	return &authv1.Ack{Message: "password changed"}, nil
}

func (s *AuthServer) ChangeEmail(ctx context.Context, req *authv1.ChangeEmailRequest) (*authv1.Ack, error) {
	if s.creds == nil {
		return nil, status.Error(codes.Unimplemented, "method ChangeEmail not implemented")
	}
	caller, err := RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.creds.ChangeEmail(ctx, caller, req.NewEmail, req.Password); err != nil {
		return nil, StatusError(s.log, "ChangeEmail", err)
	}
	return &authv1.Ack{Message: "email changed, verification required"}, nil
}

func (s *AuthServer) SendVerification(ctx context.Context, req *authv1.SendVerificationRequest) (*authv1.Ack, error) {
	if s.creds == nil {
		return nil, status.Error(codes.Unimplemented, "method SendVerification not implemented")
	}
	caller, err := RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.creds.SendVerification(ctx, caller, strings.ToLower(strings.TrimSpace(req.Type))); err != nil {
		return nil, StatusError(s.log, "SendVerification", err)
	}
	return &authv1.Ack{Message: "verification sent"}, nil
}

// VerifyEmail is public: the token itself identifies the user.
func (s *AuthServer) VerifyEmail(ctx context.Context, req *authv1.VerifyEmailRequest) (*authv1.Ack, error) {
	if s.creds == nil {
		return nil, status.Error(codes.Unimplemented, "method VerifyEmail not implemented")
	}
	if err := s.creds.VerifyEmail(ctx, req.Token); err != nil {
		return nil, StatusError(s.log, "VerifyEmail", err)
	}
	return &authv1.Ack{Message: "email verified"}, nil
}

func (s *AuthServer) VerifyPhone(ctx context.Context, req *authv1.VerifyPhoneRequest) (*authv1.Ack, error) {
	if s.creds == nil {
		return nil, status.Error(codes.Unimplemented, "method VerifyPhone not implemented")
	}
	caller, err := RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.creds.VerifyPhone(ctx, caller, strings.TrimSpace(req.Code)); err != nil {
		return nil, StatusError(s.log, "VerifyPhone", err)
	}
	return &authv1.Ack{Message: "phone verified"}, nil
}

// RequireCaller returns the caller set by the auth interceptor or an Unauthenticated status.
func RequireCaller(ctx context.Context) (identitydomain.CallerIdentity, error) {
	caller, ok := interceptors.CallerFromContext(ctx)
	if !ok {
		return identitydomain.CallerIdentity{}, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	return caller, nil
}

// DeviceFromContext reads client details from request metadata. Missing values stay empty;
// the device name falls back to the user agent.
func DeviceFromContext(ctx context.Context) service.DeviceInfo {
	info := service.DeviceInfo{IPAddress: interceptors.ClientIP(ctx)}
	if info.IPAddress == "unknown" {
		info.IPAddress = ""
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return info
	}
	info.UserAgent = firstValue(md, "x-user-agent", "user-agent")
	info.Device = firstValue(md, "x-device")
	info.Location = firstValue(md, "x-location")
	if info.Device == "" {
		info.Device = info.UserAgent
	}
	return info
}

func firstValue(md metadata.MD, keys ...string) string {
	for _, k := range keys {
		for _, v := range md.Get(k) {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func userToWire(u service.UserSummary) *authv1.User {
	roles := make([]authv1.Role, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = authv1.Role{ID: r.ID, Name: r.Name}
	}
	return &authv1.User{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		CreatedAt:     u.CreatedAt,
		LastLoginAt:   u.LastLoginAt,
		Roles:         roles,
	}
}
