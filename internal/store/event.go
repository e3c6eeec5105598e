package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/shindig/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var description, venue sql.NullString
	var deadline sql.NullTime
	var createdBy sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.UUID, &e.Title, &description, &e.EventDate, &venue,
		&deadline, &e.Status, &createdBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Description = description.String
	e.Venue = venue.String
	if deadline.Valid {
		e.RSVPDeadline = &deadline.Time
	}
	if createdBy.Valid {
		e.CreatedByPersonID = &createdBy.Int64
	}
	return &e, nil
}

const eventCols = `id, uuid, title, description, event_date, venue, rsvp_deadline, status, created_by_person_id, created_at, updated_at`

// Create inserts a draft event with a fresh public UUID.
func (s *EventStore) Create(title, description string, eventDate time.Time, venue string, rsvpDeadline *time.Time, createdByPersonID *int64) (*model.Event, error) {
	var deadline sql.NullTime
	if rsvpDeadline != nil {
		deadline = sql.NullTime{Time: *rsvpDeadline, Valid: true}
	}
	var createdBy sql.NullInt64
	if createdByPersonID != nil {
		createdBy = sql.NullInt64{Int64: *createdByPersonID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO events (uuid, title, description, event_date, venue, rsvp_deadline, created_by_person_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), title, nullString(description), eventDate, nullString(venue), deadline, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *EventStore) GetByUUID(u string) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE uuid = ?`, u)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event by uuid: %w", err)
	}
	return e, nil
}

func (s *EventStore) UpdateStatus(id int64, status string) (*model.Event, error) {
	_, err := s.db.Exec(
		`UPDATE events SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event status: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) ListByStatus(status string) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM events WHERE status = ? ORDER BY event_date ASC`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListPublishedWithDeadlineOn returns published events whose RSVP deadline
// falls on the given calendar day. Used by the reminder tick.
func (s *EventStore) ListPublishedWithDeadlineOn(day time.Time) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM events
		 WHERE status = 'published' AND rsvp_deadline IS NOT NULL AND date(rsvp_deadline) = date(?)`,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("list events by deadline: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListPublishedPast returns published events whose date is before now.
func (s *EventStore) ListPublishedPast(now time.Time) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM events WHERE status = 'published' AND event_date < ?`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("list past events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
