package model

import "time"

// Invitation records that a household has been invited to an event and
// tracks how many times the invitation has gone out. sent_count == 0 iff
// SentAt is nil. AccessToken is the household's guest capability for the
// RSVP page: opaque, time-limited, reusable until it expires.
type Invitation struct {
	ID             int64      `json:"id"`
	EventID        int64      `json:"event_id"`
	HouseholdID    int64      `json:"household_id"`
	AccessToken    string     `json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	SentCount      int        `json:"sent_count"`
	LastSentAt     *time.Time `json:"last_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TokenValid reports whether the access token can still be presented.
func (i *Invitation) TokenValid(now time.Time) bool {
	return i.AccessToken != "" && i.TokenExpiresAt != nil && now.Before(*i.TokenExpiresAt)
}

// Sent reports whether the invitation has gone out at least once.
func (i *Invitation) Sent() bool {
	return i.SentAt != nil
}

// InvitationStats aggregates send progress for an event's dashboard.
type InvitationStats struct {
	Total              int `json:"total"`
	Sent               int `json:"sent"`
	Pending            int `json:"pending"`
	NoContactableEmail int `json:"no_contactable_email"`
	CanSend            int `json:"can_send"`
}
