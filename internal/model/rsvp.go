package model

import "time"

const (
	RSVPAttending    = "attending"
	RSVPNotAttending = "not_attending"
	RSVPMaybe        = "maybe"
	RSVPNoResponse   = "no_response"
)

// ValidRSVPStatus reports whether s is one of the four RSVP states.
// Transitions between states are unrestricted.
func ValidRSVPStatus(s string) bool {
	switch s {
	case RSVPAttending, RSVPNotAttending, RSVPMaybe, RSVPNoResponse:
		return true
	}
	return false
}

type RSVP struct {
	ID                int64      `json:"id"`
	EventID           int64      `json:"event_id"`
	PersonID          int64      `json:"person_id"`
	HouseholdID       int64      `json:"household_id"`
	Status            string     `json:"status"`
	Note              string     `json:"note,omitempty"`
	RespondedAt       *time.Time `json:"responded_at,omitempty"`
	UpdatedByPersonID *int64     `json:"updated_by_person_id,omitempty"`
	UpdatedByHost     bool       `json:"updated_by_host"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Responded reports whether the person has answered the invitation.
func (r *RSVP) Responded() bool {
	return r.Status != RSVPNoResponse
}

// RSVPStats counts responses per status for an event.
type RSVPStats struct {
	Total        int `json:"total"`
	Attending    int `json:"attending"`
	NotAttending int `json:"not_attending"`
	Maybe        int `json:"maybe"`
	NoResponse   int `json:"no_response"`
}
