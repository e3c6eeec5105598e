package model

import "time"

const (
	ChannelEmail = "email"

	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"

	KindInvitation       = "invitation"
	KindMagicLink        = "magic_link"
	KindPasswordReset    = "password_reset"
	KindRSVPConfirmation = "rsvp_confirmation"
	KindRSVPReminder     = "rsvp_reminder"
)

// Notification is one row per outbound delivery attempt. Rows are never
// mutated once they reach a terminal status; a resend creates a new row.
type Notification struct {
	ID                int64      `json:"id"`
	EventID           int64      `json:"event_id"`
	PersonID          int64      `json:"person_id"`
	Kind              string     `json:"kind"`
	Channel           string     `json:"channel"`
	Status            string     `json:"status"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
