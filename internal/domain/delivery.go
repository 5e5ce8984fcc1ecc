package domain

import "time"

type Position struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// Dispatch records one server-initiated push fan-out.
type Dispatch struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Tag        string    `json:"tag"`
	OrderID    string    `json:"orderId,omitempty"`
	Audience   string    `json:"audience"`
	Recipients int       `json:"recipients"`
	CreatedAt  time.Time `json:"createdAt"`
}
