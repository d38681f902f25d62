// Package authv1 defines the marketplace.auth.v1.AuthService wire messages and service descriptor.
package authv1

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vehicle-marketplace/backend/api/rpc"
)

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	EmailVerified bool       `json:"emailVerified"`
	PhoneVerified bool       `json:"phoneVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	Roles         []Role     `json:"roles"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	User         *User  `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type LogoutRequest struct{}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type ChangeEmailRequest struct {
	NewEmail string `json:"newEmail"`
	Password string `json:"password"`
}

type SendVerificationRequest struct {
	Type string `json:"type"` // "email" or "phone"
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type VerifyPhoneRequest struct {
	Code string `json:"code"`
}

// Ack is the response of every AuthService method that returns no data.
type Ack struct {
	Message string `json:"message,omitempty"`
}

const (
	AuthService_Login_FullMethodName            = "/marketplace.auth.v1.AuthService/Login"
	AuthService_Refresh_FullMethodName          = "/marketplace.auth.v1.AuthService/Refresh"
	AuthService_Logout_FullMethodName           = "/marketplace.auth.v1.AuthService/Logout"
	AuthService_ForgotPassword_FullMethodName   = "/marketplace.auth.v1.AuthService/ForgotPassword"
	AuthService_ResetPassword_FullMethodName    = "/marketplace.auth.v1.AuthService/ResetPassword"
	AuthService_ChangePassword_FullMethodName   = "/marketplace.auth.v1.AuthService/ChangePassword"
	AuthService_ChangeEmail_FullMethodName      = "/marketplace.auth.v1.AuthService/ChangeEmail"
	AuthService_SendVerification_FullMethodName = "/marketplace.auth.v1.AuthService/SendVerification"
	AuthService_VerifyEmail_FullMethodName      = "/marketplace.auth.v1.AuthService/VerifyEmail"
	AuthService_VerifyPhone_FullMethodName      = "/marketplace.auth.v1.AuthService/VerifyPhone"
)

// AuthServiceServer is the server API for AuthService.
type AuthServiceServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Refresh(context.Context, *RefreshRequest) (*RefreshResponse, error)
	Logout(context.Context, *LogoutRequest) (*Ack, error)
	ForgotPassword(context.Context, *ForgotPasswordRequest) (*Ack, error)
	ResetPassword(context.Context, *ResetPasswordRequest) (*Ack, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*Ack, error)
	ChangeEmail(context.Context, *ChangeEmailRequest) (*Ack, error)
	SendVerification(context.Context, *SendVerificationRequest) (*Ack, error)
	VerifyEmail(context.Context, *VerifyEmailRequest) (*Ack, error)
	VerifyPhone(context.Context, *VerifyPhoneRequest) (*Ack, error)
}

// UnimplementedAuthServiceServer returns Unimplemented for every method. Embed it to stay
// forward compatible.
type UnimplementedAuthServiceServer struct{}

func (UnimplementedAuthServiceServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedAuthServiceServer) Refresh(context.Context, *RefreshRequest) (*RefreshResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
}
func (UnimplementedAuthServiceServer) Logout(context.Context, *LogoutRequest) (*Ack, error) {
	return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
}
func (UnimplementedAuthServiceServer) ForgotPassword(context.Context, *ForgotPasswordRequest) (*Ack, error) {
	return nil, status.Error(codes.Unimplemented, "method ForgotPassword not implemented")
}
func (UnimplementedAuthServiceServer) ResetPassword(context.Context, *ResetPasswordRequest) (*Ack, error) {
	return nil, status.Error(codes.Unimplemented, "method ResetPassword not implemented")
}
func (UnimplementedAuthServiceServer) ChangePassword(context.Context, *ChangePasswordRequest) (*Ack, error) {
	return nil, status.Error(codes.Unimplemented, "method ChangePassword not implemented")
}
func (UnimplementedAuthServiceServer) ChangeEmail(context.Context, *ChangeEmailRequest) (*Ack, error) {
	return nil, status.Error(codes.Unimplemented, "method ChangeEmail not implemented")
}
func (UnimplementedAuthServiceServer) SendVerification(context.Context, *SendVerificationRequest) (*Ack, error) {
	return nil, status.Error(codes.Unimplemented, "method SendVerification not implemented")
}
func (UnimplementedAuthServiceServer) VerifyEmail(context.Context, *VerifyEmailRequest) (*Ack, error) {
	return nil, status.Error(codes.Unimplemented, "method VerifyEmail not implemented")
}
func (UnimplementedAuthServiceServer) VerifyPhone(context.Context, *VerifyPhoneRequest) (*Ack, error) {
	return nil, status.Error(codes.Unimplemented, "method VerifyPhone not implemented")
}

// RegisterAuthServiceServer registers srv on s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthService_ServiceDesc, srv)
}

// AuthService_ServiceDesc is the grpc.ServiceDesc for AuthService.
var AuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "marketplace.auth.v1.AuthService",
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: rpc.Unary(AuthService_Login_FullMethodName, AuthServiceServer.Login)},
		{MethodName: "Refresh", Handler: rpc.Unary(AuthService_Refresh_FullMethodName, AuthServiceServer.Refresh)},
		{MethodName: "Logout", Handler: rpc.Unary(AuthService_Logout_FullMethodName, AuthServiceServer.Logout)},
		{MethodName: "ForgotPassword", Handler: rpc.Unary(AuthService_ForgotPassword_FullMethodName, AuthServiceServer.ForgotPassword)},
		{MethodName: "ResetPassword", Handler: rpc.Unary(AuthService_ResetPassword_FullMethodName, AuthServiceServer.ResetPassword)},
		{MethodName: "ChangePassword", Handler: rpc.Unary(AuthService_ChangePassword_FullMethodName, AuthServiceServer.ChangePassword)},
		{MethodName: "ChangeEmail", Handler: rpc.Unary(AuthService_ChangeEmail_FullMethodName, AuthServiceServer.ChangeEmail)},
		{MethodName: "SendVerification", Handler: rpc.Unary(AuthService_SendVerification_FullMethodName, AuthServiceServer.SendVerification)},
		{MethodName: "VerifyEmail", Handler: rpc.Unary(AuthService_VerifyEmail_FullMethodName, AuthServiceServer.VerifyEmail)},
		{MethodName: "VerifyPhone", Handler: rpc.Unary(AuthService_VerifyPhone_FullMethodName, AuthServiceServer.VerifyPhone)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketplace/auth/v1/auth.proto",
}
