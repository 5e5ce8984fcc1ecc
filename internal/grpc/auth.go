package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	APIKeyHeader = "x-api-key"
	UserIDHeader = "x-user-id"
)

func credentials(ctx context.Context, apiKey, userID string) context.Context {
	pairs := []string{}
	if apiKey != "" {
		pairs = append(pairs, APIKeyHeader, apiKey)
	}
	if userID != "" {
		pairs = append(pairs, UserIDHeader, userID)
	}
	md := metadata.Pairs(pairs...)

	if exMD, ok := metadata.FromOutgoingContext(ctx); ok {
		md = metadata.Join(exMD, md)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func UnaryAuthInterceptor(apiKey, userID string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(credentials(ctx, apiKey, userID), method, req, reply, cc, opts...)
	}
}

func StreamAuthInterceptor(apiKey, userID string) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		return streamer(credentials(ctx, apiKey, userID), desc, cc, method, opts...)
	}
}
