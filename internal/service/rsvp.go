package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/shindig/internal/model"
	"github.com/dukerupert/shindig/internal/store"
)

var (
	// ErrForbiddenPerson means a submission named a person who is not an
	// active member of the submitting household. Person ids travel through
	// client-controlled form fields, so this is the tamper check.
	ErrForbiddenPerson = errors.New("person is not an active member of the household")

	// ErrInvalidStatus means a status outside the four RSVP states.
	ErrInvalidStatus = errors.New("invalid rsvp status")
)

// RSVPUpdate is one person's entry in a submission, built at the edge from
// form data and validated here before any write.
type RSVPUpdate struct {
	Status string  `json:"status"`
	Note   *string `json:"note,omitempty"`
}

// RSVPService coordinates guest and host updates to RSVP rows.
type RSVPService struct {
	rsvps         *store.RSVPStore
	households    *store.HouseholdStore
	events        *store.EventStore
	notifications *store.NotificationStore
	mailer        Mailer
	logger        *slog.Logger
}

func NewRSVPService(
	rsvps *store.RSVPStore,
	households *store.HouseholdStore,
	events *store.EventStore,
	notifications *store.NotificationStore,
	mailer Mailer,
	logger *slog.Logger,
) *RSVPService {
	return &RSVPService{
		rsvps:         rsvps,
		households:    households,
		events:        events,
		notifications: notifications,
		mailer:        mailer,
		logger:        logger,
	}
}

// EnsureRows lazily creates no_response rows for the household's current
// members. Safe to call repeatedly.
func (s *RSVPService) EnsureRows(eventID, householdID int64) error {
	members, err := s.households.ActiveMembers(householdID)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return s.rsvps.EnsureRows(eventID, householdID, ids)
}

// Apply processes one guest submission. Every named person, and the
// submitter if one is given, must be an active member of the household
// and every status must be valid before a
// single row is touched; the writes then commit as one transaction.
// Confirmation emails go out after the commit and never affect it.
func (s *RSVPService) Apply(eventID, householdID int64, updates map[int64]RSVPUpdate, updatedByPersonID *int64) ([]model.RSVP, error) {
	return s.apply(eventID, householdID, updates, updatedByPersonID, false, true)
}

// ApplyByHost records responses on behalf of guests, e.g. after a phone
// call. Provenance is stamped and no confirmation email is sent; the guest
// already communicated directly with the host.
func (s *RSVPService) ApplyByHost(eventID, householdID int64, updates map[int64]RSVPUpdate, hostPersonID int64) ([]model.RSVP, error) {
	return s.apply(eventID, householdID, updates, &hostPersonID, true, false)
}

func (s *RSVPService) apply(eventID, householdID int64, updates map[int64]RSVPUpdate, updatedBy *int64, byHost, confirm bool) ([]model.RSVP, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	members, err := s.households.ActiveMembers(householdID)
	if err != nil {
		return nil, err
	}
	active := make(map[int64]model.Person, len(members))
	memberIDs := make([]int64, 0, len(members))
	for _, m := range members {
		active[m.ID] = m
		memberIDs = append(memberIDs, m.ID)
	}

	// The updater id comes from a client-controlled field on the guest
	// path, so it gets the same membership check as the subject persons.
	// Host ids are resolved server-side and are exempt.
	if updatedBy != nil && !byHost {
		if _, ok := active[*updatedBy]; !ok {
			s.logger.Warn("rsvp submitter outside household rejected",
				"event_id", eventID, "household_id", householdID, "person_id", *updatedBy)
			return nil, fmt.Errorf("submitter %d: %w", *updatedBy, ErrForbiddenPerson)
		}
	}

	changes := make(map[int64]store.RSVPChange, len(updates))
	for personID, update := range updates {
		if !model.ValidRSVPStatus(update.Status) {
			return nil, fmt.Errorf("status %q for person %d: %w", update.Status, personID, ErrInvalidStatus)
		}
		if _, ok := active[personID]; !ok {
			s.logger.Warn("rsvp update for non-member rejected",
				"event_id", eventID, "household_id", householdID, "person_id", personID)
			return nil, fmt.Errorf("person %d: %w", personID, ErrForbiddenPerson)
		}
		changes[personID] = store.RSVPChange{Status: update.Status, Note: update.Note}
	}

	if err := s.rsvps.EnsureRows(eventID, householdID, memberIDs); err != nil {
		return nil, err
	}

	updated, err := s.rsvps.ApplyChanges(eventID, householdID, changes, updatedBy, byHost)
	if err != nil {
		return nil, err
	}

	if confirm {
		s.sendConfirmations(eventID, updated, active)
	}
	return updated, nil
}

func (s *RSVPService) sendConfirmations(eventID int64, updated []model.RSVP, members map[int64]model.Person) {
	event, err := s.events.GetByID(eventID)
	if err != nil || event == nil {
		s.logger.Error("load event for confirmations", "event_id", eventID, "error", err)
		return
	}

	for _, rsvp := range updated {
		person, ok := members[rsvp.PersonID]
		if !ok || !person.Contactable() {
			continue
		}

		attempt, err := s.notifications.RecordAttempt(eventID, person.ID, model.KindRSVPConfirmation, model.ChannelEmail)
		if err != nil {
			s.logger.Error("record confirmation attempt", "person_id", person.ID, "error", err)
			continue
		}

		msgID, err := s.mailer.SendRSVPConfirmation(person.Email, person.FullName(), event.Title, rsvp.Status)
		if err != nil {
			s.logger.Warn("confirmation email failed", "person_id", person.ID, "error", err)
			if _, markErr := s.notifications.MarkFailed(attempt.ID, err.Error()); markErr != nil {
				s.logger.Error("mark notification failed", "notification_id", attempt.ID, "error", markErr)
			}
			continue
		}
		if _, err := s.notifications.MarkSent(attempt.ID, msgID); err != nil {
			s.logger.Error("mark notification sent", "notification_id", attempt.ID, "error", err)
		}
	}
}

// HouseholdRSVPs returns the household's rows for an event, ensuring they
// exist first so the guest page always has something to render.
func (s *RSVPService) HouseholdRSVPs(eventID, householdID int64) ([]model.RSVP, error) {
	if err := s.EnsureRows(eventID, householdID); err != nil {
		return nil, err
	}
	return s.rsvps.ListByEventAndHousehold(eventID, householdID)
}

// Stats counts responses per status for an event.
func (s *RSVPService) Stats(eventID int64) (*model.RSVPStats, error) {
	return s.rsvps.StatsByEvent(eventID)
}
