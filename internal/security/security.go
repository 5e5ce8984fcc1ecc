// Package security holds the random identifiers and key digests used for
// admin authentication and simulated device push credentials.
package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	AdminKeyPrefix = "dn_"
	Alphabet       = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	adminKeyLength = 32
	deviceIDLength = 21
	// Lengths of base64url-encoded P-256 public keys and 16-byte secrets.
	p256dhLength = 87
	authLength   = 22
)

const urlSafe = Alphabet + "-_"

// NewAdminKey returns a fresh key for the admin API.
func NewAdminKey() (string, error) {
	id, err := gonanoid.Generate(Alphabet, adminKeyLength)
	if err != nil {
		return "", err
	}
	return AdminKeyPrefix + id, nil
}

// DeviceCredentials are what a device registers when it subscribes.
type DeviceCredentials struct {
	DeviceID string
	P256dh   string
	Auth     string
}

func NewDeviceCredentials() (DeviceCredentials, error) {
	var c DeviceCredentials
	for _, f := range []struct {
		dst      *string
		alphabet string
		n        int
		what     string
	}{
		{&c.DeviceID, Alphabet, deviceIDLength, "device id"},
		{&c.P256dh, urlSafe, p256dhLength, "p256dh key"},
		{&c.Auth, urlSafe, authLength, "auth secret"},
	} {
		v, err := gonanoid.Generate(f.alphabet, f.n)
		if err != nil {
			return DeviceCredentials{}, fmt.Errorf("generate %s: %w", f.what, err)
		}
		*f.dst = v
	}
	return c, nil
}

// Digest is the hex SHA-256 of s.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// KeyMatches compares a presented key against a stored digest in constant
// time.
func KeyMatches(key, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(key)), []byte(digest)) == 1
}
