package entity

import "time"

// PushSubscription is one browser/device endpoint for off-line delivery.
// (UserID, Endpoint) is unique.
type PushSubscription struct {
	UserID       string    `json:"user_id"`
	Endpoint     string    `json:"endpoint"`
	P256dhKey    string    `json:"p256dh"`
	AuthKey      string    `json:"auth"`
	DeviceLabel  string    `json:"device_label"`
	BrowserLabel string    `json:"browser_label"`
	Active       bool      `json:"active"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}
