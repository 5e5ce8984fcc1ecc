package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestUnaryAuthInterceptor(t *testing.T) {
	interceptor := UnaryAuthInterceptor("dn_key", "user-1")

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, ok := metadata.FromOutgoingContext(ctx)
		if !ok {
			t.Fatal("no metadata found in context")
		}
		if keys := md.Get(APIKeyHeader); len(keys) == 0 || keys[0] != "dn_key" {
			t.Errorf("expected %s dn_key, got %v", APIKeyHeader, keys)
		}
		if ids := md.Get(UserIDHeader); len(ids) == 0 || ids[0] != "user-1" {
			t.Errorf("expected %s user-1, got %v", UserIDHeader, ids)
		}
		return nil
	}

	if err := interceptor(context.Background(), "/test.Method", nil, nil, nil, invoker); err != nil {
		t.Fatalf("interceptor returned error: %v", err)
	}
}

func TestUnaryAuthInterceptorMergesMetadata(t *testing.T) {
	interceptor := UnaryAuthInterceptor("dn_key", "")
	ctx := metadata.NewOutgoingContext(context.Background(), metadata.Pairs("custom-header", "custom-value"))

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		if v := md.Get("custom-header"); len(v) == 0 || v[0] != "custom-value" {
			t.Errorf("expected custom-header custom-value, got %v", v)
		}
		if v := md.Get(UserIDHeader); len(v) != 0 {
			t.Errorf("empty user id should not be sent, got %v", v)
		}
		return nil
	}

	if err := interceptor(ctx, "/test.Method", nil, nil, nil, invoker); err != nil {
		t.Fatalf("interceptor returned error: %v", err)
	}
}

func TestStreamAuthInterceptor(t *testing.T) {
	interceptor := StreamAuthInterceptor("dn_key", "user-2")

	streamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		md, ok := metadata.FromOutgoingContext(ctx)
		if !ok {
			t.Fatal("no metadata found in context")
		}
		if v := md.Get(APIKeyHeader); len(v) == 0 || v[0] != "dn_key" {
			t.Errorf("expected api key, got %v", v)
		}
		if v := md.Get(UserIDHeader); len(v) == 0 || v[0] != "user-2" {
			t.Errorf("expected user id, got %v", v)
		}
		return nil, nil
	}

	if _, err := interceptor(context.Background(), &grpc.StreamDesc{}, nil, WatchMethod, streamer); err != nil {
		t.Fatalf("interceptor returned error: %v", err)
	}
}
