package entity

import (
	"fmt"
	"strings"
	"time"
)

// NotificationKind is an open set; the constants are the kinds the UI styles.
type NotificationKind string

const (
	KindInfo    NotificationKind = "info"
	KindWarning NotificationKind = "warning"
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
)

// MaxKindLength matches the kind columns.
const MaxKindLength = 32

// NormalizeKind trims k and falls back to KindInfo when nothing is left.
func NormalizeKind(k NotificationKind) (NotificationKind, error) {
	k = NotificationKind(strings.TrimSpace(string(k)))
	if k == "" {
		return KindInfo, nil
	}
	if len(k) > MaxKindLength {
		return "", fmt.Errorf("is longer than %d characters", MaxKindLength)
	}
	return k, nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

type NotificationState string

const (
	StateActive  NotificationState = "active"
	StateDeleted NotificationState = "deleted"
)

const (
	DefaultCategory = "general"
	DefaultIcon     = "bell"
)

// Notification is one durable message addressed to a single recipient.
// ExpiresAt is informational only; listing never filters on it.
type Notification struct {
	ID          string                 `json:"id"`
	RecipientID string                 `json:"recipient_id"`
	SenderID    *string                `json:"sender_id,omitempty"`
	SenderName  string                 `json:"sender_name,omitempty"`
	SenderRole  string                 `json:"sender_role,omitempty"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Kind        NotificationKind       `json:"kind"`
	Category    string                 `json:"category"`
	ExtraData   map[string]interface{} `json:"extra_data"`
	ActionURL   *string                `json:"action_url,omitempty"`
	Icon        string                 `json:"icon"`
	Priority    Priority               `json:"priority"`
	CreatedAt   time.Time              `json:"created_at"`
	ReadAt      *time.Time             `json:"read_at,omitempty"`
	ExpiresAt   *time.Time             `json:"expires_at,omitempty"`
	State       NotificationState      `json:"state"`
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// CreateNotificationInput is what producers hand to the store.
type CreateNotificationInput struct {
	RecipientID string                 `json:"recipient_id"`
	SenderID    string                 `json:"sender_id,omitempty"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Kind        NotificationKind       `json:"kind,omitempty"`
	Category    string                 `json:"category,omitempty"`
	ExtraData   map[string]interface{} `json:"extra_data,omitempty"`
	ActionURL   string                 `json:"action_url,omitempty"`
	Icon        string                 `json:"icon,omitempty"`
	Priority    Priority               `json:"priority,omitempty"`
	ExpiresAt   *time.Time             `json:"expires_at,omitempty"`
}

// NotificationStats is either recipient-scoped (DistinctKinds set) or a
// global rollup (DistinctRecipients set).
type NotificationStats struct {
	Total              int64  `json:"total"`
	Read               int64  `json:"read"`
	Unread             int64  `json:"unread"`
	DistinctKinds      *int64 `json:"distinct_kinds,omitempty"`
	DistinctRecipients *int64 `json:"distinct_recipients,omitempty"`
}
