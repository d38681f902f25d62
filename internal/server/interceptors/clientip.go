package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

const unknownIP = "unknown"

// ClientIP returns the first x-forwarded-for hop, then x-real-ip, then the peer host, or "unknown".
// The headers are client-supplied, so use it for attribution (audit, telemetry, session IP) only.
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ip := firstHop(md.Get("x-forwarded-for")); ip != "" {
			return ip
		}
		if ip := firstHop(md.Get("x-real-ip")); ip != "" {
			return ip
		}
	}
	return PeerIP(ctx)
}

// PeerIP returns the host of the transport peer, or "unknown". It ignores forwarding headers.
func PeerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return unknownIP
	}
	if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
		return host
	}
	return p.Addr.String()
}

func firstHop(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	hop, _, _ := strings.Cut(vals[0], ",")
	return strings.TrimSpace(hop)
}
