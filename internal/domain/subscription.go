package domain

import "time"

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

type SubscriptionKeys struct {
	P256dh string `json:"p256dh" yaml:"p256dh"`
	Auth   string `json:"auth" yaml:"auth"`
}

// PushSubscription is the platform-issued registration for one device.
type PushSubscription struct {
	ID         string           `json:"id,omitempty" yaml:"id"`
	UserID     string           `json:"userId,omitempty" yaml:"user_id"`
	Endpoint   string           `json:"endpoint" yaml:"endpoint"`
	Keys       SubscriptionKeys `json:"keys" yaml:"keys"`
	DeviceName string           `json:"deviceName,omitempty" yaml:"device_name"`
	CreatedAt  time.Time        `json:"createdAt" yaml:"created_at"`
}
