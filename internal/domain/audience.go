package domain

import (
	"fmt"
	"strings"
)

type AudienceKind string

const (
	AudienceAll   AudienceKind = "all"
	AudienceUser  AudienceKind = "user"
	AudienceOrder AudienceKind = "order"
)

// Audience selects who a dispatched notification goes to: everyone, one
// user, or whoever follows one order.
type Audience struct {
	Kind AudienceKind
	ID   string
}

func ParseAudience(s string) (Audience, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == string(AudienceAll) {
		return Audience{Kind: AudienceAll}, nil
	}
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Audience{}, fmt.Errorf("invalid audience %q", s)
	}
	switch AudienceKind(kind) {
	case AudienceUser, AudienceOrder:
		return Audience{Kind: AudienceKind(kind), ID: id}, nil
	default:
		return Audience{}, fmt.Errorf("invalid audience kind %q", kind)
	}
}

func (a Audience) String() string {
	if a.Kind == AudienceAll || a.Kind == "" {
		return string(AudienceAll)
	}
	return string(a.Kind) + ":" + a.ID
}

// Subject is the broker subject suffix for the audience.
func (a Audience) Subject() string {
	if a.Kind == AudienceAll || a.Kind == "" {
		return string(AudienceAll)
	}
	return string(a.Kind) + "." + a.ID
}
