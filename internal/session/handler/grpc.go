package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	sessionv1 "vehicle-marketplace/backend/api/sessionv1"
	identitydomain "vehicle-marketplace/backend/internal/identity/domain"
	identityhandler "vehicle-marketplace/backend/internal/identity/handler"
	"vehicle-marketplace/backend/internal/identity/service"
)

// SessionManager lists and revokes the caller's sessions. *service.AuthService implements it.
type SessionManager interface {
	ListSessions(ctx context.Context, caller identitydomain.CallerIdentity) ([]service.SessionInfo, error)
	RevokeSession(ctx context.Context, caller identitydomain.CallerIdentity, sessionID string) error
}

// Server implements SessionService: a signed-in user managing their own devices.
type Server struct {
	sessionv1.UnimplementedSessionServiceServer
	sessions SessionManager
	log      *zap.Logger
}

// NewServer returns a new Session gRPC server. If sessions is nil, all RPCs return Unimplemented.
func NewServer(sessions SessionManager, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{sessions: sessions, log: log}
}

// ListSessions returns the caller's active sessions, most recently active first.
func (s *Server) ListSessions(ctx context.Context, _ *sessionv1.ListSessionsRequest) (*sessionv1.ListSessionsResponse, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method ListSessions not implemented")
	}
	caller, err := identityhandler.RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.sessions.ListSessions(ctx, caller)
	if err != nil {
		return nil, identityhandler.StatusError(s.log, "ListSessions", err)
	}
	out := make([]sessionv1.Session, len(list))
	for i, info := range list {
		out[i] = sessionToWire(info)
	}
	return &sessionv1.ListSessionsResponse{Sessions: out}, nil
}

// RevokeSession revokes one of the caller's sessions. Sessions of other users are reported as not found.
func (s *Server) RevokeSession(ctx context.Context, req *sessionv1.RevokeSessionRequest) (*sessionv1.RevokeSessionResponse, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method RevokeSession not implemented")
	}
	caller, err := identityhandler.RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id required")
	}
	if err := s.sessions.RevokeSession(ctx, caller, req.SessionID); err != nil {
		return nil, identityhandler.StatusError(s.log, "RevokeSession", err)
	}
	return &sessionv1.RevokeSessionResponse{}, nil
}

func sessionToWire(info service.SessionInfo) sessionv1.Session {
	device := info.Device
	if device == "" {
		device = info.UserAgent
	}
	if device == "" {
		device = "Unknown device"
	}
	return sessionv1.Session{
		ID:         info.ID,
		Device:     device,
		Location:   info.Location,
		IPAddress:  info.IPAddress,
		CreatedAt:  info.CreatedAt,
		LastActive: info.LastActiveAt,
		Current:    info.Current,
	}
}
