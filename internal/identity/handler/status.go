package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vehicle-marketplace/backend/internal/identity/service"
)

// StatusError maps a service error to a gRPC status. Infrastructure errors are logged and
// reported as Internal without detail.
func StatusError(log *zap.Logger, method string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrTokenInvalidOrExpired):
		return status.Error(codes.Unauthenticated, service.PublicMessage(err))
	case errors.Is(err, service.ErrPolicyViolation):
		return status.Error(codes.InvalidArgument, service.PublicMessage(err))
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, service.PublicMessage(err))
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	if log != nil {
		log.Error("rpc failed", zap.String("method", method), zap.Error(err))
	}
	return status.Error(codes.Internal, "internal error")
}
