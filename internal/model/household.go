package model

import "time"

type Household struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership links a person to a household for a span of time. An ended
// membership (LeftAt set) is historical and is never mutated again.
type Membership struct {
	ID          int64      `json:"id"`
	PersonID    int64      `json:"person_id"`
	HouseholdID int64      `json:"household_id"`
	Role        string     `json:"role"`
	JoinedAt    time.Time  `json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
}

// Active reports whether the membership is current.
func (m *Membership) Active() bool {
	return m.LeftAt == nil
}
