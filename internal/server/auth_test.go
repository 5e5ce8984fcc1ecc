package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestAuthInterceptorUnary(t *testing.T) {
	auth := NewAuthInterceptor("sk_live_123")
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	tests := []struct {
		name     string
		method   string
		md       metadata.MD
		wantCode codes.Code
	}{
		{"valid key", "/deliverynotify.v1.Feed/Watch", metadata.Pairs("x-api-key", "sk_live_123"), codes.OK},
		{"wrong key", "/deliverynotify.v1.Feed/Watch", metadata.Pairs("x-api-key", "nope"), codes.Unauthenticated},
		{"no key", "/deliverynotify.v1.Feed/Watch", metadata.Pairs(), codes.Unauthenticated},
		{"health skips auth", "/grpc.health.v1.Health/Check", nil, codes.OK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			_, err := auth.Unary()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			if status.Code(err) != tt.wantCode {
				t.Errorf("expected %v, got %v", tt.wantCode, status.Code(err))
			}
		})
	}
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	auth := NewAuthInterceptor("")
	if auth.Enabled() {
		t.Fatal("expected auth to be disabled")
	}
	if err := auth.authorize(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRequireKey(t *testing.T) {
	auth := NewAuthInterceptor("sk_live_123")
	h := auth.RequireKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"api key header", "X-API-Key", "sk_live_123", http.StatusNoContent},
		{"bearer token", "Authorization", "Bearer sk_live_123", http.StatusNoContent},
		{"wrong key", "X-API-Key", "other", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/notifications/send", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
