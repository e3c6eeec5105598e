package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/shindig/internal/model"
)

// ErrNotificationFinal is returned when marking a notification that has
// already reached a terminal status. Terminal rows are immutable; a resend
// records a fresh attempt instead.
var ErrNotificationFinal = errors.New("notification already in terminal status")

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var sentAt sql.NullTime
	var providerID, errMsg sql.NullString

	err := scanner.Scan(
		&n.ID, &n.EventID, &n.PersonID, &n.Kind, &n.Channel, &n.Status,
		&sentAt, &providerID, &errMsg, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	n.ProviderMessageID = providerID.String
	n.ErrorMessage = errMsg.String
	return &n, nil
}

const notificationCols = `id, event_id, person_id, kind, channel, status, sent_at, provider_message_id, error_message, created_at`

// RecordAttempt creates a pending row before the external send is invoked,
// so every attempt leaves a trace even if the process dies mid-send.
func (s *NotificationStore) RecordAttempt(eventID, personID int64, kind, channel string) (*model.Notification, error) {
	result, err := s.db.Exec(
		`INSERT INTO notifications (event_id, person_id, kind, channel, created_at) VALUES (?, ?, ?, ?, ?)`,
		eventID, personID, kind, channel, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// MarkSent records a successful delivery: status, sent_at and the provider's
// message id move together so sent_at cannot be forgotten.
func (s *NotificationStore) MarkSent(id int64, providerMessageID string) (*model.Notification, error) {
	result, err := s.db.Exec(
		`UPDATE notifications SET status = ?, sent_at = ?, provider_message_id = ? WHERE id = ? AND status = ?`,
		model.NotificationSent, time.Now().UTC(), nullString(providerMessageID), id, model.NotificationPending,
	)
	if err != nil {
		return nil, fmt.Errorf("mark notification sent: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// MarkFailed records a failed delivery. sent_at stays null.
func (s *NotificationStore) MarkFailed(id int64, errorMessage string) (*model.Notification, error) {
	result, err := s.db.Exec(
		`UPDATE notifications SET status = ?, error_message = ? WHERE id = ? AND status = ?`,
		model.NotificationFailed, errorMessage, id, model.NotificationPending,
	)
	if err != nil {
		return nil, fmt.Errorf("mark notification failed: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotificationFinal
	}
	return nil
}

func (s *NotificationStore) GetByID(id int64) (*model.Notification, error) {
	row := s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) ListByEvent(eventID int64) ([]model.Notification, error) {
	rows, err := s.db.Query(
		`SELECT `+notificationCols+` FROM notifications WHERE event_id = ? ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// HasAttemptSince reports whether any attempt of the given kind was recorded
// for the (event, person) pair after the cutoff, regardless of outcome. The
// reminder tick uses this to stay idempotent within a day.
func (s *NotificationStore) HasAttemptSince(eventID, personID int64, kind string, since time.Time) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE event_id = ? AND person_id = ? AND kind = ? AND created_at >= ?`,
		eventID, personID, kind, since,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check attempts: %w", err)
	}
	return count > 0, nil
}

func (s *NotificationStore) ListByPerson(personID int64) ([]model.Notification, error) {
	rows, err := s.db.Query(
		`SELECT `+notificationCols+` FROM notifications WHERE person_id = ? ORDER BY created_at ASC, id ASC`,
		personID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications for person: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func collectNotifications(rows *sql.Rows) ([]model.Notification, error) {
	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}
