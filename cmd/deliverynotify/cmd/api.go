package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lupppig/deliverynotify/internal/events"
	dngrpc "github.com/lupppig/deliverynotify/internal/grpc"
	"github.com/lupppig/deliverynotify/internal/httpclient"
)

// apiError is the error body returned by the HTTP API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func apiEndpoint(path string) string {
	return strings.TrimRight(cfg.Client.APIURL, "/") + path
}

func newAPIClient() *httpclient.Client {
	c := httpclient.New(timeout)
	if cfg.Client.APIKey != "" {
		c = c.WithHeader("X-API-Key", cfg.Client.APIKey)
	}
	return c
}

// callAPI sends body (if any) as JSON and decodes a 2xx response into out.
func callAPI(ctx context.Context, method, path string, body, out interface{}) error {
	client := newAPIClient()

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var (
		resp *httpclient.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = client.Get(ctx, apiEndpoint(path))
	case http.MethodPut:
		resp, err = client.Put(ctx, apiEndpoint(path), payload)
	default:
		if payload == nil {
			payload = []byte("{}")
		}
		resp, err = client.Post(ctx, apiEndpoint(path), payload)
	}
	if err != nil {
		return err
	}

	if !resp.OK() {
		var e apiError
		if json.Unmarshal(resp.Body, &e) == nil && e.Error != "" {
			if e.Message != "" {
				return fmt.Errorf("%s: %s (status %d)", e.Error, e.Message, resp.StatusCode)
			}
			return fmt.Errorf("%s (status %d)", e.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	if out != nil && len(resp.Body) > 0 {
		return resp.Decode(out)
	}
	return nil
}

type itemStream interface {
	Recv() (events.Item, error)
}

type feedWatcher interface {
	Watch(ctx context.Context, req dngrpc.WatchRequest) (itemStream, error)
}

type grpcFeed struct {
	client *dngrpc.FeedClient
}

func (f grpcFeed) Watch(ctx context.Context, req dngrpc.WatchRequest) (itemStream, error) {
	stream, err := f.client.Watch(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

var feedFactory = func(conn grpc.ClientConnInterface) feedWatcher {
	return grpcFeed{client: dngrpc.NewFeedClient(conn)}
}

func dialFeed() (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(cfg.Client.ServerAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(dngrpc.UnaryAuthInterceptor(cfg.Client.APIKey, cfg.Client.UserID)),
		grpc.WithStreamInterceptor(dngrpc.StreamAuthInterceptor(cfg.Client.APIKey, cfg.Client.UserID)),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Client.ServerAddr, err)
	}
	return conn, nil
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
