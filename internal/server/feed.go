package server

import (
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/lupppig/deliverynotify/internal/events"
	dngrpc "github.com/lupppig/deliverynotify/internal/grpc"
	"github.com/lupppig/deliverynotify/internal/logging"
)

// FeedServer streams hub items to gRPC watchers.
type FeedServer struct {
	hub *events.Hub
}

func NewFeedServer(hub *events.Hub) *FeedServer {
	return &FeedServer{hub: hub}
}

func (s *FeedServer) Watch(req dngrpc.WatchRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	if req.UserID == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(dngrpc.UserIDHeader); len(v) > 0 {
				req.UserID = v[0]
			}
		}
	}

	sub := &events.Subscriber{
		ID:      uuid.New().String(),
		UserID:  req.UserID,
		OrderID: req.OrderID,
		Route:   req.Route,
		Items:   make(chan events.Item, 100),
	}
	s.hub.Subscribe(sub)
	defer s.hub.Unsubscribe(sub.ID)

	logger := logging.FromContext(logging.WithUserID(ctx, req.UserID))
	logger.Info("feed watcher connected", slog.String("code", "FEED_CONNECTED"), slog.String("subscriber", sub.ID))
	defer logger.Info("feed watcher disconnected", slog.String("code", "FEED_DISCONNECTED"), slog.String("subscriber", sub.ID))

	for {
		select {
		case <-ctx.Done():
			return nil
		case item, ok := <-sub.Items:
			if !ok {
				return nil
			}
			if err := dngrpc.SendItem(stream, item); err != nil {
				return err
			}
		}
	}
}
