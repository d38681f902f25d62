package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	healthv1 "vehicle-marketplace/backend/api/healthv1"
)

const pingTimeout = 2 * time.Second

// Pinger checks a dependency. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger (e.g. a Redis client's Ping).
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Server implements HealthService for readiness and liveness probes.
type Server struct {
	healthv1.UnimplementedHealthServiceServer
	pingers []Pinger
	log     *zap.Logger
}

// NewServer returns a Health server that reports NOT_SERVING when any pinger fails. Nil pingers are skipped.
func NewServer(log *zap.Logger, pingers ...Pinger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	live := make([]Pinger, 0, len(pingers))
	for _, p := range pingers {
		if p != nil {
			live = append(live, p)
		}
	}
	return &Server{pingers: live, log: log}
}

// HealthCheck pings every dependency with a short timeout.
func (s *Server) HealthCheck(ctx context.Context, _ *healthv1.HealthCheckRequest) (*healthv1.HealthCheckResponse, error) {
	for _, p := range s.pingers {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := p.PingContext(pingCtx)
		cancel()
		if err != nil {
			s.log.Warn("health: dependency unavailable", zap.Error(err))
			return &healthv1.HealthCheckResponse{Status: healthv1.StatusNotServing}, nil
		}
	}
	return &healthv1.HealthCheckResponse{Status: healthv1.StatusServing}, nil
}
