package route

import (
	"net/url"

	"github.com/lupppig/deliverynotify/internal/domain"
)

type Kind string

const (
	KindNone     Kind = "none"
	KindNavigate Kind = "navigate"
	KindDial     Kind = "dial"
)

// Intent is the side effect a notification interaction asks for.
type Intent struct {
	Kind Kind   `json:"kind"`
	URL  string `json:"url,omitempty"`
}

func navigate(path string) Intent { return Intent{Kind: KindNavigate, URL: path} }

// Resolve maps an action button to its destination. An empty action means
// the notification body itself was clicked.
func Resolve(action domain.ActionID, t domain.EventType, data domain.NotificationData) Intent {
	switch action {
	case "":
		return Default(t, data)
	case domain.ActionDismiss:
		return Intent{Kind: KindNone}
	case domain.ActionTrack:
		return trackRoute(data)
	case domain.ActionCallDriver:
		if data.DriverPhone == "" {
			return trackRoute(data)
		}
		return Intent{Kind: KindDial, URL: "tel:" + data.DriverPhone}
	case domain.ActionViewChat, domain.ActionReply:
		return chatRoute(data)
	case domain.ActionRate:
		if data.OrderID == "" {
			return navigate("/orders")
		}
		return navigate("/orders/" + url.PathEscape(data.OrderID) + "/rate")
	case domain.ActionReorder:
		if data.OrderID == "" {
			return navigate("/menu")
		}
		return navigate("/orders/" + url.PathEscape(data.OrderID) + "/reorder")
	case domain.ActionViewOffer:
		if data.PromoID == "" {
			return navigate("/promotions")
		}
		return navigate("/promotions/" + url.PathEscape(data.PromoID))
	case domain.ActionOrderNow:
		return navigate("/menu")
	default:
		return Default(t, data)
	}
}

// Default is where a plain click on the notification body leads.
func Default(t domain.EventType, data domain.NotificationData) Intent {
	switch t {
	case domain.EventOrderConfirmed, domain.EventDriverAssigned, domain.EventDriverApproaching, domain.EventDriverArrived:
		return trackRoute(data)
	case domain.EventDeliveryCompleted:
		if data.OrderID == "" {
			return navigate("/orders")
		}
		return navigate("/orders/" + url.PathEscape(data.OrderID))
	case domain.EventChatMessage:
		return chatRoute(data)
	case domain.EventPromotion:
		return Resolve(domain.ActionViewOffer, t, data)
	default:
		return navigate("/")
	}
}

func trackRoute(data domain.NotificationData) Intent {
	if data.OrderID == "" {
		return navigate("/orders")
	}
	return navigate("/track/" + url.PathEscape(data.OrderID))
}

func chatRoute(data domain.NotificationData) Intent {
	switch {
	case data.ChatID != "":
		return navigate("/chat/" + url.PathEscape(data.ChatID))
	case data.OrderID != "":
		return navigate("/chat/" + url.PathEscape(data.OrderID))
	default:
		return navigate("/messages")
	}
}
