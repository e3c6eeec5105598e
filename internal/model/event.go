package model

import "time"

const (
	EventDraft     = "draft"
	EventPublished = "published"
	EventArchived  = "archived"
)

type Event struct {
	ID                int64      `json:"id"`
	UUID              string     `json:"uuid"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	EventDate         time.Time  `json:"event_date"`
	Venue             string     `json:"venue,omitempty"`
	RSVPDeadline      *time.Time `json:"rsvp_deadline,omitempty"`
	Status            string     `json:"status"`
	CreatedByPersonID *int64     `json:"created_by_person_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Published reports whether the event is visible to guests.
func (e *Event) Published() bool {
	return e.Status == EventPublished
}

// DeadlinePassed reports whether the RSVP deadline is in the past.
// Events without a deadline never close.
func (e *Event) DeadlinePassed(now time.Time) bool {
	return e.RSVPDeadline != nil && now.After(*e.RSVPDeadline)
}
