package server

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	dngrpc "github.com/lupppig/deliverynotify/internal/grpc"
	"github.com/lupppig/deliverynotify/internal/security"
)

const healthPrefix = "/grpc.health.v1.Health/"

// AuthInterceptor checks the admin API key on gRPC calls and admin HTTP
// routes. With no key configured every caller is let through.
type AuthInterceptor struct {
	keyHash string
}

func NewAuthInterceptor(adminKey string) *AuthInterceptor {
	a := &AuthInterceptor{}
	if adminKey != "" {
		a.keyHash = security.Digest(adminKey)
	}
	return a
}

func (a *AuthInterceptor) Enabled() bool {
	return a.keyHash != ""
}

func (a *AuthInterceptor) check(key string) bool {
	return !a.Enabled() || (key != "" && security.KeyMatches(key, a.keyHash))
}

func (a *AuthInterceptor) authorize(ctx context.Context) error {
	if !a.Enabled() {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	apiKeys := md.Get(dngrpc.APIKeyHeader)
	if len(apiKeys) == 0 || apiKeys[0] == "" {
		return status.Error(codes.Unauthenticated, "missing API key")
	}
	if !a.check(apiKeys[0]) {
		return status.Error(codes.Unauthenticated, "invalid API key")
	}
	return nil
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		// Skip auth for health checks
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(ctx, req)
		}
		if err := a.authorize(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(srv, ss)
		}
		if err := a.authorize(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

// RequireKey guards admin HTTP routes. The key comes from X-API-Key or a
// bearer token.
func (a *AuthInterceptor) RequireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if !a.check(key) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "valid API key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
