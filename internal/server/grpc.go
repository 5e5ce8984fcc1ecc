package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/lupppig/deliverynotify/internal/events"
	dngrpc "github.com/lupppig/deliverynotify/internal/grpc"
)

// NewGRPCServer builds the gRPC server carrying the live feed, the
// standard health service and reflection.
func NewGRPCServer(hub *events.Hub, auth *AuthInterceptor) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.UnaryInterceptor(auth.Unary()),
		grpc.StreamInterceptor(auth.Stream()),
	)

	dngrpc.RegisterFeedServer(s, NewFeedServer(hub))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(dngrpc.FeedServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s, hs
}
