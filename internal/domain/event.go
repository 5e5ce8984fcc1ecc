package domain

type EventType string

const (
	EventOrderConfirmed    EventType = "order_confirmed"
	EventDriverAssigned    EventType = "driver_assigned"
	EventDriverApproaching EventType = "driver_approaching"
	EventDriverArrived     EventType = "driver_arrived"
	EventDeliveryCompleted EventType = "delivery_completed"
	EventChatMessage       EventType = "chat_message"
	EventPromotion         EventType = "promotion"
)

// EventTypes lists the closed set of delivery-lifecycle event types.
var EventTypes = []EventType{
	EventOrderConfirmed,
	EventDriverAssigned,
	EventDriverApproaching,
	EventDriverArrived,
	EventDeliveryCompleted,
	EventChatMessage,
	EventPromotion,
}

func (t EventType) Known() bool {
	for _, k := range EventTypes {
		if t == k {
			return true
		}
	}
	return false
}

// DeliveryEvent is the flat wire form of a delivery-lifecycle event as it
// arrives from the order service, the driver tracker or the chat service.
// Which optional fields matter depends on Type; use Variant to get the
// typed form.
type DeliveryEvent struct {
	Type        EventType `json:"type" validate:"required"`
	OrderID     string    `json:"orderId,omitempty"`
	DriverID    string    `json:"driverId,omitempty"`
	DriverName  string    `json:"driverName,omitempty"`
	DriverPhone string    `json:"driverPhone,omitempty"`
	ETA         *int      `json:"eta,omitempty"`
	SenderName  string    `json:"senderName,omitempty"`
	Message     string    `json:"message,omitempty"`
	ChatID      string    `json:"chatId,omitempty"`
	PromoID     string    `json:"promoId,omitempty"`
	Title       string    `json:"title,omitempty"`
}

// Driver identifies the courier attached to an order.
type Driver struct {
	ID    string
	Name  string
	Phone string
}

// Event is the sealed sum of typed delivery events.
type Event interface {
	EventType() EventType
	isEvent()
}

type OrderConfirmed struct {
	OrderID string
}

type DriverAssigned struct {
	OrderID string
	Driver  Driver
}

type DriverApproaching struct {
	OrderID string
	Driver  Driver
	// ETA in minutes; nil when the source did not provide one.
	ETA *int
}

type DriverArrived struct {
	OrderID string
	Driver  Driver
}

type DeliveryCompleted struct {
	OrderID string
}

type ChatMessage struct {
	OrderID    string
	ChatID     string
	SenderName string
	Message    string
}

type Promotion struct {
	PromoID string
	Title   string
	Message string
}

// UnknownEvent carries anything outside the closed set so it can still be
// rendered as a generic notification.
type UnknownEvent struct {
	Type    EventType
	Message string
}

func (OrderConfirmed) EventType() EventType    { return EventOrderConfirmed }
func (DriverAssigned) EventType() EventType    { return EventDriverAssigned }
func (DriverApproaching) EventType() EventType { return EventDriverApproaching }
func (DriverArrived) EventType() EventType     { return EventDriverArrived }
func (DeliveryCompleted) EventType() EventType { return EventDeliveryCompleted }
func (ChatMessage) EventType() EventType       { return EventChatMessage }
func (Promotion) EventType() EventType         { return EventPromotion }
func (u UnknownEvent) EventType() EventType    { return u.Type }

func (OrderConfirmed) isEvent()    {}
func (DriverAssigned) isEvent()    {}
func (DriverApproaching) isEvent() {}
func (DriverArrived) isEvent()     {}
func (DeliveryCompleted) isEvent() {}
func (ChatMessage) isEvent()       {}
func (Promotion) isEvent()         {}
func (UnknownEvent) isEvent()      {}

func (e DeliveryEvent) driver() Driver {
	return Driver{ID: e.DriverID, Name: e.DriverName, Phone: e.DriverPhone}
}

// Variant decodes the flat event into its typed form. Fields that are
// absent stay zero; it never fails.
func (e DeliveryEvent) Variant() Event {
	switch e.Type {
	case EventOrderConfirmed:
		return OrderConfirmed{OrderID: e.OrderID}
	case EventDriverAssigned:
		return DriverAssigned{OrderID: e.OrderID, Driver: e.driver()}
	case EventDriverApproaching:
		return DriverApproaching{OrderID: e.OrderID, Driver: e.driver(), ETA: e.ETA}
	case EventDriverArrived:
		return DriverArrived{OrderID: e.OrderID, Driver: e.driver()}
	case EventDeliveryCompleted:
		return DeliveryCompleted{OrderID: e.OrderID}
	case EventChatMessage:
		return ChatMessage{OrderID: e.OrderID, ChatID: e.ChatID, SenderName: e.SenderName, Message: e.Message}
	case EventPromotion:
		return Promotion{PromoID: e.PromoID, Title: e.Title, Message: e.Message}
	default:
		return UnknownEvent{Type: e.Type, Message: e.Message}
	}
}

// Minutes returns a pointer to m, for building events with an ETA.
func Minutes(m int) *int {
	return &m
}
