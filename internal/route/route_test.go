package route

import (
	"testing"

	"github.com/lupppig/deliverynotify/internal/domain"
)

func TestResolve(t *testing.T) {
	data := domain.NotificationData{
		OrderID:     "CMD001",
		DriverPhone: "+2250700000000",
		ChatID:      "chat-9",
		PromoID:     "PROMO10",
	}

	tests := []struct {
		action domain.ActionID
		typ    domain.EventType
		data   domain.NotificationData
		want   Intent
	}{
		{domain.ActionTrack, domain.EventDriverAssigned, data, Intent{KindNavigate, "/track/CMD001"}},
		{domain.ActionCallDriver, domain.EventDriverAssigned, data, Intent{KindDial, "tel:+2250700000000"}},
		{domain.ActionCallDriver, domain.EventDriverAssigned, domain.NotificationData{OrderID: "CMD001"}, Intent{KindNavigate, "/track/CMD001"}},
		{domain.ActionViewChat, domain.EventChatMessage, data, Intent{KindNavigate, "/chat/chat-9"}},
		{domain.ActionReply, domain.EventChatMessage, domain.NotificationData{OrderID: "CMD001"}, Intent{KindNavigate, "/chat/CMD001"}},
		{domain.ActionRate, domain.EventDeliveryCompleted, data, Intent{KindNavigate, "/orders/CMD001/rate"}},
		{domain.ActionReorder, domain.EventDeliveryCompleted, data, Intent{KindNavigate, "/orders/CMD001/reorder"}},
		{domain.ActionViewOffer, domain.EventPromotion, data, Intent{KindNavigate, "/promotions/PROMO10"}},
		{domain.ActionOrderNow, domain.EventPromotion, data, Intent{KindNavigate, "/menu"}},
		{domain.ActionDismiss, domain.EventDriverArrived, data, Intent{Kind: KindNone}},
		{"", domain.EventDriverArrived, data, Intent{KindNavigate, "/track/CMD001"}},
		{"", domain.EventDeliveryCompleted, data, Intent{KindNavigate, "/orders/CMD001"}},
		{"", domain.EventPromotion, domain.NotificationData{}, Intent{KindNavigate, "/promotions"}},
		{"", "loyalty_points", data, Intent{KindNavigate, "/"}},
		{"unknown_action", domain.EventChatMessage, domain.NotificationData{}, Intent{KindNavigate, "/messages"}},
	}

	for _, tt := range tests {
		got := Resolve(tt.action, tt.typ, tt.data)
		if got != tt.want {
			t.Errorf("Resolve(%q, %q) = %+v, want %+v", tt.action, tt.typ, got, tt.want)
		}
	}
}
