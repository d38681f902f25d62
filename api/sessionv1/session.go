// Package sessionv1 defines the marketplace.session.v1.SessionService wire messages and service descriptor.
package sessionv1

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vehicle-marketplace/backend/api/rpc"
)

type Session struct {
	ID         string    `json:"id"`
	Device     string    `json:"device"`
	Location   string    `json:"location,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
	Current    bool      `json:"current"`
}

type ListSessionsRequest struct{}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type RevokeSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type RevokeSessionResponse struct{}

const (
	SessionService_ListSessions_FullMethodName  = "/marketplace.session.v1.SessionService/ListSessions"
	SessionService_RevokeSession_FullMethodName = "/marketplace.session.v1.SessionService/RevokeSession"
)

// SessionServiceServer is the server API for SessionService.
type SessionServiceServer interface {
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	RevokeSession(context.Context, *RevokeSessionRequest) (*RevokeSessionResponse, error)
}

type UnimplementedSessionServiceServer struct{}

func (UnimplementedSessionServiceServer) ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListSessions not implemented")
}
func (UnimplementedSessionServiceServer) RevokeSession(context.Context, *RevokeSessionRequest) (*RevokeSessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RevokeSession not implemented")
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionService_ServiceDesc, srv)
}

var SessionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "marketplace.session.v1.SessionService",
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSessions", Handler: rpc.Unary(SessionService_ListSessions_FullMethodName, SessionServiceServer.ListSessions)},
		{MethodName: "RevokeSession", Handler: rpc.Unary(SessionService_RevokeSession_FullMethodName, SessionServiceServer.RevokeSession)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketplace/session/v1/session.proto",
}
