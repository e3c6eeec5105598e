package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/shindig/internal/model"
)

type RSVPStore struct {
	db *sql.DB
}

func NewRSVPStore(db *sql.DB) *RSVPStore {
	return &RSVPStore{db: db}
}

// RSVPChange is one entry of a submission. A nil Note leaves the stored note
// unchanged.
type RSVPChange struct {
	Status string
	Note   *string
}

func scanRSVP(scanner interface{ Scan(...any) error }) (*model.RSVP, error) {
	var r model.RSVP
	var note sql.NullString
	var respondedAt sql.NullTime
	var updatedBy sql.NullInt64

	err := scanner.Scan(
		&r.ID, &r.EventID, &r.PersonID, &r.HouseholdID, &r.Status, &note,
		&respondedAt, &updatedBy, &r.UpdatedByHost, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Note = note.String
	if respondedAt.Valid {
		r.RespondedAt = &respondedAt.Time
	}
	if updatedBy.Valid {
		r.UpdatedByPersonID = &updatedBy.Int64
	}
	return &r, nil
}

const rsvpCols = `id, event_id, person_id, household_id, status, note, responded_at, updated_by_person_id, updated_by_host, updated_at`

// EnsureRows lazily creates a no_response row for each given person.
// Idempotent: members that already have a row for the event are skipped.
func (s *RSVPStore) EnsureRows(eventID, householdID int64, personIDs []int64) error {
	if len(personIDs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO rsvps (event_id, person_id, household_id) VALUES (?, ?, ?)
		 ON CONFLICT(event_id, person_id) DO NOTHING`,
	)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, personID := range personIDs {
		if _, err := stmt.Exec(eventID, personID, householdID); err != nil {
			return fmt.Errorf("ensure rsvp for person %d: %w", personID, err)
		}
	}

	return tx.Commit()
}

// ApplyChanges writes one submission's worth of updates in a single
// transaction: all rows change together or none do. Every change stamps the
// updater identity; responded_at is set for a real response and cleared when
// a row is reset to no_response. Callers validate membership and status
// values before calling.
func (s *RSVPStore) ApplyChanges(eventID, householdID int64, changes map[int64]RSVPChange, updatedByPersonID *int64, updatedByHost bool) ([]model.RSVP, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var updatedBy sql.NullInt64
	if updatedByPersonID != nil {
		updatedBy = sql.NullInt64{Int64: *updatedByPersonID, Valid: true}
	}

	var ids []int64
	for personID, change := range changes {
		var respondedAt sql.NullTime
		if change.Status != model.RSVPNoResponse {
			respondedAt = sql.NullTime{Time: now, Valid: true}
		}

		var result sql.Result
		if change.Note != nil {
			result, err = tx.Exec(
				`UPDATE rsvps SET status = ?, note = ?, responded_at = ?, updated_by_person_id = ?, updated_by_host = ?, updated_at = ?
				 WHERE event_id = ? AND person_id = ? AND household_id = ?`,
				change.Status, nullString(*change.Note), respondedAt, updatedBy, updatedByHost, now,
				eventID, personID, householdID,
			)
		} else {
			result, err = tx.Exec(
				`UPDATE rsvps SET status = ?, responded_at = ?, updated_by_person_id = ?, updated_by_host = ?, updated_at = ?
				 WHERE event_id = ? AND person_id = ? AND household_id = ?`,
				change.Status, respondedAt, updatedBy, updatedByHost, now,
				eventID, personID, householdID,
			)
		}
		if err != nil {
			return nil, fmt.Errorf("update rsvp for person %d: %w", personID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return nil, fmt.Errorf("no rsvp row for person %d in household %d", personID, householdID)
		}
		ids = append(ids, personID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	var updated []model.RSVP
	for _, personID := range ids {
		r, err := s.GetByEventAndPerson(eventID, personID)
		if err != nil {
			return nil, err
		}
		if r != nil {
			updated = append(updated, *r)
		}
	}
	return updated, nil
}

func (s *RSVPStore) GetByEventAndPerson(eventID, personID int64) (*model.RSVP, error) {
	row := s.db.QueryRow(
		`SELECT `+rsvpCols+` FROM rsvps WHERE event_id = ? AND person_id = ?`,
		eventID, personID,
	)
	r, err := scanRSVP(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rsvp: %w", err)
	}
	return r, nil
}

func (s *RSVPStore) ListByEventAndHousehold(eventID, householdID int64) ([]model.RSVP, error) {
	rows, err := s.db.Query(
		`SELECT `+rsvpCols+` FROM rsvps WHERE event_id = ? AND household_id = ? ORDER BY id ASC`,
		eventID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rsvps for household: %w", err)
	}
	defer rows.Close()
	return collectRSVPs(rows)
}

func (s *RSVPStore) ListByEvent(eventID int64) ([]model.RSVP, error) {
	rows, err := s.db.Query(
		`SELECT `+rsvpCols+` FROM rsvps WHERE event_id = ? ORDER BY id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rsvps: %w", err)
	}
	defer rows.Close()
	return collectRSVPs(rows)
}

// StatsByEvent counts RSVP rows per status for dashboards.
func (s *RSVPStore) StatsByEvent(eventID int64) (*model.RSVPStats, error) {
	rows, err := s.db.Query(
		`SELECT status, COUNT(*) FROM rsvps WHERE event_id = ? GROUP BY status`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("rsvp stats: %w", err)
	}
	defer rows.Close()

	var stats model.RSVPStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		switch status {
		case model.RSVPAttending:
			stats.Attending = count
		case model.RSVPNotAttending:
			stats.NotAttending = count
		case model.RSVPMaybe:
			stats.Maybe = count
		case model.RSVPNoResponse:
			stats.NoResponse = count
		}
	}
	return &stats, rows.Err()
}

// HouseholdsWithoutResponse returns household IDs that were invited to the
// event and have no member who responded. Feeds reminder sends.
func (s *RSVPStore) HouseholdsWithoutResponse(eventID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT ei.household_id FROM event_invitations ei
		 WHERE ei.event_id = ?
		 AND NOT EXISTS (
		     SELECT 1 FROM rsvps r
		     WHERE r.event_id = ei.event_id AND r.household_id = ei.household_id AND r.status != 'no_response'
		 )
		 ORDER BY ei.household_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("households without response: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan household id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectRSVPs(rows *sql.Rows) ([]model.RSVP, error) {
	var rsvps []model.RSVP
	for rows.Next() {
		r, err := scanRSVP(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rsvp: %w", err)
		}
		rsvps = append(rsvps, *r)
	}
	return rsvps, rows.Err()
}
