package domain

type ActionID string

const (
	ActionTrack      ActionID = "track"
	ActionCallDriver ActionID = "call_driver"
	ActionViewChat   ActionID = "view_chat"
	ActionRate       ActionID = "rate"
	ActionReorder    ActionID = "reorder"
	ActionViewOffer  ActionID = "view_offer"
	ActionOrderNow   ActionID = "order_now"
	ActionReply      ActionID = "reply"
	ActionDismiss    ActionID = "dismiss"
)

type Action struct {
	ID    ActionID `json:"id"`
	Label string   `json:"label"`
	Icon  string   `json:"icon,omitempty"`
}

// NotificationData is the routing context attached to a notification so a
// click can be resolved without the original event.
type NotificationData struct {
	OrderID     string `json:"orderId,omitempty"`
	DriverID    string `json:"driverId,omitempty"`
	DriverName  string `json:"driverName,omitempty"`
	DriverPhone string `json:"driverPhone,omitempty"`
	ChatID      string `json:"chatId,omitempty"`
	PromoID     string `json:"promoId,omitempty"`
}

type ClassifiedNotification struct {
	Type               EventType        `json:"type"`
	Title              string           `json:"title"`
	Body               string           `json:"body"`
	Icon               string           `json:"icon"`
	Badge              string           `json:"badge"`
	Tag                string           `json:"tag"`
	RequireInteraction bool             `json:"requireInteraction"`
	Silent             bool             `json:"silent"`
	Vibrate            []int            `json:"vibrate,omitempty"`
	Actions            []Action         `json:"actions,omitempty"`
	Data               NotificationData `json:"data"`
}

type PayloadAction struct {
	Action ActionID `json:"action"`
	Title  string   `json:"title"`
	Icon   string   `json:"icon,omitempty"`
}

// Payload is the push message body exchanged between the dispatcher and
// the background agent.
type Payload struct {
	Type               EventType        `json:"type"`
	Title              string           `json:"title"`
	Body               string           `json:"body"`
	Icon               string           `json:"icon"`
	Badge              string           `json:"badge"`
	Tag                string           `json:"tag"`
	Data               NotificationData `json:"data"`
	Actions            []PayloadAction  `json:"actions"`
	RequireInteraction bool             `json:"requireInteraction"`
	Silent             bool             `json:"silent"`
	Vibrate            []int            `json:"vibrate"`
	Timestamp          int64            `json:"timestamp"`
	Renotify           bool             `json:"renotify"`
}

// Event rebuilds the delivery event a payload was rendered from.
func (p Payload) Event() DeliveryEvent {
	return DeliveryEvent{
		Type:        p.Type,
		OrderID:     p.Data.OrderID,
		DriverID:    p.Data.DriverID,
		DriverName:  p.Data.DriverName,
		DriverPhone: p.Data.DriverPhone,
		ChatID:      p.Data.ChatID,
		PromoID:     p.Data.PromoID,
	}
}
