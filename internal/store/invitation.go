package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/shindig/internal/model"
)

type InvitationStore struct {
	db *sql.DB
}

func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

func scanInvitation(scanner interface{ Scan(...any) error }) (*model.Invitation, error) {
	var inv model.Invitation
	var token sql.NullString
	var tokenExpiresAt, sentAt, lastSentAt sql.NullTime

	err := scanner.Scan(&inv.ID, &inv.EventID, &inv.HouseholdID, &token, &tokenExpiresAt, &sentAt, &inv.SentCount, &lastSentAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}

	inv.AccessToken = token.String
	if tokenExpiresAt.Valid {
		inv.TokenExpiresAt = &tokenExpiresAt.Time
	}
	if sentAt.Valid {
		inv.SentAt = &sentAt.Time
	}
	if lastSentAt.Valid {
		inv.LastSentAt = &lastSentAt.Time
	}
	return &inv, nil
}

const invitationCols = `id, event_id, household_id, access_token, token_expires_at, sent_at, sent_count, last_sent_at, created_at`

// Create inserts an invitation for the (event, household) pair with a fresh
// guest access token. Idempotent: if one already exists it is returned
// unchanged.
func (s *InvitationStore) Create(eventID, householdID int64, tokenTTL time.Duration) (*model.Invitation, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`INSERT INTO event_invitations (event_id, household_id, access_token, token_expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(event_id, household_id) DO NOTHING`,
		eventID, householdID, token, time.Now().UTC().Add(tokenTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	return s.GetByEventAndHousehold(eventID, householdID)
}

// GetByToken resolves a guest access token to its invitation. Expired or
// unknown tokens return nil; the caller surfaces one generic failure either
// way.
func (s *InvitationStore) GetByToken(token string) (*model.Invitation, error) {
	row := s.db.QueryRow(
		`SELECT `+invitationCols+` FROM event_invitations WHERE access_token = ? AND token_expires_at > ?`,
		token, time.Now().UTC(),
	)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation by token: %w", err)
	}
	return inv, nil
}

// RefreshToken issues a new access token for an invitation, e.g. when the
// previous one expired before the household responded.
func (s *InvitationStore) RefreshToken(id int64, tokenTTL time.Duration) (*model.Invitation, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE event_invitations SET access_token = ?, token_expires_at = ? WHERE id = ?`,
		token, time.Now().UTC().Add(tokenTTL), id,
	)
	if err != nil {
		return nil, fmt.Errorf("refresh invitation token: %w", err)
	}
	return s.GetByID(id)
}

func (s *InvitationStore) GetByID(id int64) (*model.Invitation, error) {
	row := s.db.QueryRow(`SELECT `+invitationCols+` FROM event_invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

func (s *InvitationStore) GetByEventAndHousehold(eventID, householdID int64) (*model.Invitation, error) {
	row := s.db.QueryRow(
		`SELECT `+invitationCols+` FROM event_invitations WHERE event_id = ? AND household_id = ?`,
		eventID, householdID,
	)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation by event and household: %w", err)
	}
	return inv, nil
}

// MarkSent is the single writer of the send-tracking fields: sent_at is set
// on the first call only, sent_count increments on every call, last_sent_at
// always moves forward. A resend is just a later call.
func (s *InvitationStore) MarkSent(id int64) (*model.Invitation, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE event_invitations
		 SET sent_at = COALESCE(sent_at, ?), sent_count = sent_count + 1, last_sent_at = ?
		 WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("mark invitation sent: %w", err)
	}
	return s.GetByID(id)
}

func (s *InvitationStore) ListByEvent(eventID int64) ([]model.Invitation, error) {
	rows, err := s.db.Query(
		`SELECT `+invitationCols+` FROM event_invitations WHERE event_id = ? ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()
	return collectInvitations(rows)
}

// ListPendingByEvent returns invitations that have never been sent.
func (s *InvitationStore) ListPendingByEvent(eventID int64) ([]model.Invitation, error) {
	rows, err := s.db.Query(
		`SELECT `+invitationCols+` FROM event_invitations WHERE event_id = ? AND sent_at IS NULL ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	defer rows.Close()
	return collectInvitations(rows)
}

func collectInvitations(rows *sql.Rows) ([]model.Invitation, error) {
	var invitations []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}
