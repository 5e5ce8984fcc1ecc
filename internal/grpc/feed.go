package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lupppig/deliverynotify/internal/events"
)

const (
	FeedServiceName = "deliverynotify.v1.Feed"
	WatchMethod     = "/" + FeedServiceName + "/Watch"
)

// WatchRequest selects what a live feed client receives.
type WatchRequest struct {
	UserID  string `json:"userId,omitempty"`
	OrderID string `json:"orderId,omitempty"`
	Route   string `json:"route,omitempty"`
}

// FeedService streams live feed items to one client.
type FeedService interface {
	Watch(req WatchRequest, stream grpc.ServerStream) error
}

// FeedServiceDesc describes the feed without generated stubs: messages on
// the wire are google.protobuf.Struct values mirroring the JSON forms of
// WatchRequest and events.Item.
var FeedServiceDesc = grpc.ServiceDesc{
	ServiceName: FeedServiceName,
	HandlerType: (*FeedService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "deliverynotify/v1/feed.proto",
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	msg := new(structpb.Struct)
	if err := stream.RecvMsg(msg); err != nil {
		return err
	}
	var req WatchRequest
	if err := fromStruct(msg, &req); err != nil {
		return err
	}
	return srv.(FeedService).Watch(req, stream)
}

func RegisterFeedServer(s grpc.ServiceRegistrar, srv FeedService) {
	s.RegisterService(&FeedServiceDesc, srv)
}

// SendItem writes one feed item on a server stream.
func SendItem(stream grpc.ServerStream, item events.Item) error {
	msg, err := toStruct(item)
	if err != nil {
		return err
	}
	return stream.SendMsg(msg)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode feed message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode feed message: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(msg *structpb.Struct, v any) error {
	data, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("decode feed message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode feed message: %w", err)
	}
	return nil
}

type FeedClient struct {
	cc grpc.ClientConnInterface
}

func NewFeedClient(cc grpc.ClientConnInterface) *FeedClient {
	return &FeedClient{cc: cc}
}

// FeedStream receives items until the server ends the stream or ctx is
// cancelled.
type FeedStream struct {
	stream grpc.ClientStream
}

func (c *FeedClient) Watch(ctx context.Context, req WatchRequest, opts ...grpc.CallOption) (*FeedStream, error) {
	stream, err := c.cc.NewStream(ctx, &FeedServiceDesc.Streams[0], WatchMethod, opts...)
	if err != nil {
		return nil, err
	}
	msg, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(msg); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &FeedStream{stream: stream}, nil
}

func (s *FeedStream) Recv() (events.Item, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return events.Item{}, err
	}
	var item events.Item
	if err := fromStruct(msg, &item); err != nil {
		return events.Item{}, err
	}
	return item, nil
}
