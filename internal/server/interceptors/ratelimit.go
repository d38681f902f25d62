package interceptors

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"vehicle-marketplace/backend/internal/ratelimit"
)

// Limiter decides whether one more call for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// RateLimitUnary throttles the given methods per client IP. Limiter errors fail open.
// The key is the transport peer's IP; forwarding headers are honored only when trustForwarded is set,
// i.e. when every connection arrives through a proxy that overwrites them.
func RateLimitUnary(limiter Limiter, methods map[string]bool, trustForwarded bool, log *zap.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if limiter == nil || !methods[info.FullMethod] {
			return handler(ctx, req)
		}
		ip := PeerIP(ctx)
		if trustForwarded {
			ip = ClientIP(ctx)
		}
		key := info.FullMethod + ":ip:" + ip
		d, err := limiter.Allow(ctx, key)
		if err != nil {
			log.Warn("ratelimit: limiter unavailable", zap.String("method", info.FullMethod), zap.Error(err))
		}
		if !d.Allowed {
			secs := int(d.RetryAfter.Round(time.Second) / time.Second)
			_ = grpc.SetHeader(ctx, metadata.Pairs("retry-after", strconv.Itoa(secs)))
			return nil, status.Error(codes.ResourceExhausted, fmt.Sprintf("too many requests, retry in %s", d.RetryAfter.Round(time.Second)))
		}
		return handler(ctx, req)
	}
}
