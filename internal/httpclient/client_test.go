package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPostSendsJSONAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %s", ct)
		}
		if key := r.Header.Get("X-API-Key"); key != "secret" {
			t.Errorf("expected api key header, got %q", key)
		}
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write(body)
	}))
	defer server.Close()

	client := New(5 * time.Second).WithHeader("X-API-Key", "secret")
	resp, err := client.PostJSON(context.Background(), server.URL, map[string]string{"endpoint": "e1"})
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if !resp.OK() {
		t.Errorf("expected 2xx, got %d", resp.StatusCode)
	}

	var echoed map[string]string
	if err := resp.Decode(&echoed); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if echoed["endpoint"] != "e1" {
		t.Errorf("unexpected echo %v", echoed)
	}
}

func TestGetReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "" {
			t.Error("GET should not set a content type")
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resp, err := New(time.Second).Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if resp.OK() {
		t.Error("404 should not be OK")
	}
}

func TestWithHeaderDoesNotMutateParent(t *testing.T) {
	parent := New(time.Second)
	child := parent.WithHeader("X-Test", "1")
	if len(parent.headers) != 0 {
		t.Error("parent headers mutated")
	}
	if child.headers["X-Test"] != "1" {
		t.Error("child header missing")
	}
}
