// Package healthv1 defines the marketplace.health.v1.HealthService wire messages and service descriptor.
package healthv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vehicle-marketplace/backend/api/rpc"
)

// ServingStatus values reported by HealthCheck.
const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

type HealthCheckRequest struct{}

type HealthCheckResponse struct {
	Status string `json:"status"`
}

const HealthService_HealthCheck_FullMethodName = "/marketplace.health.v1.HealthService/HealthCheck"

type HealthServiceServer interface {
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
}

type UnimplementedHealthServiceServer struct{}

func (UnimplementedHealthServiceServer) HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method HealthCheck not implemented")
}

func RegisterHealthServiceServer(s grpc.ServiceRegistrar, srv HealthServiceServer) {
	s.RegisterService(&HealthService_ServiceDesc, srv)
}

var HealthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "marketplace.health.v1.HealthService",
	HandlerType: (*HealthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "HealthCheck", Handler: rpc.Unary(HealthService_HealthCheck_FullMethodName, HealthServiceServer.HealthCheck)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketplace/health/v1/health.proto",
}
