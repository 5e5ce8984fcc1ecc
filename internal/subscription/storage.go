package subscription

import (
	"context"
	"fmt"
	"strings"

	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/httpclient"
)

// HTTPStorage talks to the notification API's subscription endpoints.
type HTTPStorage struct {
	client  *httpclient.Client
	baseURL string
}

func NewHTTPStorage(client *httpclient.Client, baseURL string) *HTTPStorage {
	return &HTTPStorage{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *HTTPStorage) Save(ctx context.Context, sub *domain.PushSubscription) error {
	resp, err := s.client.PostJSON(ctx, s.baseURL+"/notifications/subscribe", sub)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("subscribe rejected: status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPStorage) Delete(ctx context.Context, endpoint string) error {
	resp, err := s.client.PostJSON(ctx, s.baseURL+"/notifications/unsubscribe", map[string]string{"endpoint": endpoint})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("unsubscribe rejected: status %d", resp.StatusCode)
	}
	return nil
}
