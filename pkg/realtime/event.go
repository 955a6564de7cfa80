// Package realtime defines the events exchanged over the notification
// websocket by the service and its clients.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names.
const (
	EventRegister         = "register"
	EventRegistered       = "registered"
	EventSendNotification = "sendNotification"
	EventNewNotification  = "newNotification"
	EventError            = "error"
)

// Event is the envelope of every websocket frame.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	At    string          `json:"at"`
}

// NewEvent marshals data into a timestamped envelope.
func NewEvent(name string, data interface{}) (Event, error) {
	evt := Event{Event: name, At: time.Now().UTC().Format(time.RFC3339Nano)}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal %s payload: %w", name, err)
		}
		evt.Data = raw
	}
	return evt, nil
}

// MustEvent is NewEvent for payloads that always marshal (the structs in this package).
func MustEvent(name string, data interface{}) Event {
	evt, err := NewEvent(name, data)
	if err != nil {
		panic(err)
	}
	return evt
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Event, err)
	}
	return nil
}

// Identity is what a client announces right after every (re)connection.
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
}

// Registered acknowledges a register event.
type Registered struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
}

// SendNotification asks the server to push a message to every live connection of TargetUserID.
type SendNotification struct {
	TargetUserID string `json:"targetUserId"`
	SenderName   string `json:"senderName"`
	Message      string `json:"message"`
}

// NewNotification is what recipients receive. Notification carries the stored
// record when the push was preceded by a durable create.
type NewNotification struct {
	SenderID     string          `json:"senderId,omitempty"`
	SenderName   string          `json:"senderName,omitempty"`
	Message      string          `json:"message"`
	Notification json.RawMessage `json:"notification,omitempty"`
}

// ErrorPayload reports a rejected client event.
type ErrorPayload struct {
	Message string `json:"message"`
}
