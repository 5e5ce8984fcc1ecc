// Package classify turns delivery-lifecycle events into notification
// records. Everything here is pure: the same event always yields the same
// notification, tag included, so both delivery paths can deduplicate on it.
package classify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/security"
)

const (
	DefaultIcon  = "/icons/icon-192x192.png"
	DefaultBadge = "/icons/badge-72x72.png"

	defaultDriverName = "Votre livreur"
)

var (
	VibrateDefault     = []int{200, 100, 200}
	VibrateApproaching = []int{300, 100, 300, 100, 300}
	VibrateArrived     = []int{500, 200, 500, 200, 500}
	VibrateChat        = []int{100}
)

var actionLabels = map[domain.ActionID]string{
	domain.ActionTrack:      "Suivre",
	domain.ActionCallDriver: "Appeler",
	domain.ActionViewChat:   "Voir le chat",
	domain.ActionRate:       "Noter",
	domain.ActionReorder:    "Commander à nouveau",
	domain.ActionViewOffer:  "Voir l'offre",
	domain.ActionOrderNow:   "Commander",
	domain.ActionReply:      "Répondre",
	domain.ActionDismiss:    "OK",
}

var actionIcons = map[domain.ActionID]string{
	domain.ActionTrack:      "/icons/track.png",
	domain.ActionCallDriver: "/icons/phone.png",
	domain.ActionViewChat:   "/icons/chat.png",
	domain.ActionReply:      "/icons/chat.png",
}

func actions(ids ...domain.ActionID) []domain.Action {
	out := make([]domain.Action, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Action{ID: id, Label: actionLabels[id], Icon: actionIcons[id]})
	}
	return out
}

// Classify maps an event to its notification. Missing fields fall back to
// defaults and unknown types produce a minimal generic notification.
func Classify(e domain.DeliveryEvent) domain.ClassifiedNotification {
	n := domain.ClassifiedNotification{
		Type:    e.Type,
		Icon:    DefaultIcon,
		Badge:   DefaultBadge,
		Tag:     Tag(e),
		Vibrate: clone(VibrateDefault),
		Data: domain.NotificationData{
			OrderID:     e.OrderID,
			DriverID:    e.DriverID,
			DriverName:  e.DriverName,
			DriverPhone: e.DriverPhone,
			ChatID:      e.ChatID,
			PromoID:     e.PromoID,
		},
	}

	switch v := e.Variant().(type) {
	case domain.OrderConfirmed:
		n.Title = "Commande confirmée !"
		if v.OrderID != "" {
			n.Body = fmt.Sprintf("Votre commande #%s a été confirmée et est en préparation.", v.OrderID)
		} else {
			n.Body = "Votre commande a été confirmée et est en préparation."
		}
		n.Actions = actions(domain.ActionDismiss)

	case domain.DriverAssigned:
		n.Title = "Livreur assigné"
		n.Body = fmt.Sprintf("%s a été assigné à votre commande et sera bientôt en route.", driverName(v.Driver))
		n.Actions = actions(domain.ActionTrack, domain.ActionCallDriver)

	case domain.DriverApproaching:
		n.Title = "Votre livreur arrive !"
		if v.ETA != nil {
			n.Body = fmt.Sprintf("%s arrive dans %d minutes. Préparez-vous à recevoir votre commande.", driverName(v.Driver), *v.ETA)
		} else {
			n.Body = fmt.Sprintf("%s arrive bientôt. Préparez-vous à recevoir votre commande.", driverName(v.Driver))
		}
		n.RequireInteraction = true
		n.Vibrate = clone(VibrateApproaching)
		n.Actions = actions(domain.ActionTrack, domain.ActionCallDriver)

	case domain.DriverArrived:
		n.Title = "Votre livreur est arrivé !"
		n.Body = fmt.Sprintf("%s est arrivé à votre adresse de livraison.", driverName(v.Driver))
		n.RequireInteraction = true
		n.Vibrate = clone(VibrateArrived)
		n.Actions = actions(domain.ActionTrack)

	case domain.DeliveryCompleted:
		n.Title = "Commande livrée"
		n.Body = "Votre commande a été livrée avec succès. Bon appétit !"
		n.Actions = actions(domain.ActionRate, domain.ActionReorder)

	case domain.ChatMessage:
		n.Title = "Nouveau message"
		sender := v.SenderName
		if sender == "" {
			sender = "Support"
		}
		n.Body = fmt.Sprintf("%s: %s", sender, v.Message)
		n.Vibrate = clone(VibrateChat)
		n.Actions = actions(domain.ActionReply, domain.ActionViewChat)

	case domain.Promotion:
		n.Title = v.Title
		if n.Title == "" {
			n.Title = "Offre spéciale"
		}
		n.Body = v.Message
		n.Actions = actions(domain.ActionViewOffer, domain.ActionOrderNow)

	case domain.UnknownEvent:
		n.Title = "Notification"
		n.Body = v.Message
		if n.Body == "" {
			n.Body = "Vous avez une nouvelle notification."
		}
		n.Actions = nil
	}

	return n
}

// Tag is the dedup key "{type}-{identifier}". The identifier is the first
// present of orderId, driverId, chatId and promoId, else a short hash of the
// event so redelivery of the same event still collapses.
func Tag(e domain.DeliveryEvent) string {
	id := firstNonEmpty(e.OrderID, e.DriverID, e.ChatID, e.PromoID)
	if id == "" {
		id = fallbackID(e)
	}
	typ := string(e.Type)
	if typ == "" {
		typ = "notification"
	}
	return typ + "-" + id
}

func fallbackID(e domain.DeliveryEvent) string {
	// Struct field order makes the encoding canonical.
	data, err := json.Marshal(e)
	if err != nil {
		return "0"
	}
	return security.Digest(string(data))[:12]
}

// Payload renders the wire message for a classified notification.
func Payload(n domain.ClassifiedNotification, at time.Time) domain.Payload {
	acts := make([]domain.PayloadAction, 0, len(n.Actions))
	for _, a := range n.Actions {
		acts = append(acts, domain.PayloadAction{Action: a.ID, Title: a.Label, Icon: a.Icon})
	}
	return domain.Payload{
		Type:               n.Type,
		Title:              n.Title,
		Body:               n.Body,
		Icon:               n.Icon,
		Badge:              n.Badge,
		Tag:                n.Tag,
		Data:               n.Data,
		Actions:            acts,
		RequireInteraction: n.RequireInteraction,
		Silent:             n.Silent,
		Vibrate:            clone(n.Vibrate),
		Timestamp:          at.UnixMilli(),
		Renotify:           true,
	}
}

// Fallback is shown when a push payload cannot be understood at all. The
// tag is derived from the body so unrelated pushes do not replace each
// other.
func Fallback(body string) domain.ClassifiedNotification {
	if body == "" {
		body = "Vous avez une nouvelle notification."
	}
	return domain.ClassifiedNotification{
		Title:   "Notification",
		Body:    body,
		Icon:    DefaultIcon,
		Badge:   DefaultBadge,
		Tag:     "notification-" + security.Digest(body)[:12],
		Vibrate: clone(VibrateDefault),
	}
}

func driverName(d domain.Driver) string {
	if d.Name == "" {
		return defaultDriverName
	}
	return d.Name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func clone(in []int) []int {
	out := make([]int, len(in))
	copy(out, in)
	return out
}
