// Package broker carries push payloads to background agents.
package broker

import (
	"context"
	"strings"

	"github.com/lupppig/deliverynotify/internal/domain"
)

const PushSubjectPrefix = "notifications.push."

// Message is one push payload. ID doubles as the broker's duplicate
// detection key, so republishing a dispatch is harmless.
type Message struct {
	ID      string
	Subject string
	Data    []byte
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// PushMessage addresses data to every agent in the audience.
func PushMessage(id string, a domain.Audience, data []byte) Message {
	return Message{ID: id, Subject: PushSubject(a), Data: data}
}

func PushSubject(a domain.Audience) string {
	return PushSubjectPrefix + a.Subject()
}

// AgentSubjects lists the subjects an agent for userID listens on. An
// agent without a user only hears broadcasts and order audiences.
func AgentSubjects(userID string) []string {
	subjects := []string{
		PushSubject(domain.Audience{Kind: domain.AudienceAll}),
		PushSubjectPrefix + string(domain.AudienceOrder) + ".>",
	}
	if userID != "" {
		subjects = append(subjects, PushSubject(domain.Audience{Kind: domain.AudienceUser, ID: userID}))
	}
	return subjects
}

// AudienceFromSubject reverses PushSubject.
func AudienceFromSubject(subject string) (domain.Audience, bool) {
	rest, ok := strings.CutPrefix(subject, PushSubjectPrefix)
	if !ok {
		return domain.Audience{}, false
	}
	a, err := domain.ParseAudience(strings.Replace(rest, ".", ":", 1))
	if err != nil {
		return domain.Audience{}, false
	}
	return a, true
}
