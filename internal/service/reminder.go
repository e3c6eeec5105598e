package service

import (
	"log/slog"
	"time"

	"github.com/dukerupert/shindig/internal/model"
	"github.com/dukerupert/shindig/internal/store"
)

// ReminderService runs the periodic maintenance pass. It owns no timer: the
// host process calls Tick on whatever schedule it likes, and a tick is
// idempotent within a calendar day.
type ReminderService struct {
	events        *store.EventStore
	invitations   *store.InvitationStore
	rsvps         *store.RSVPStore
	households    *store.HouseholdStore
	notifications *store.NotificationStore
	tokens        *store.TokenStore
	mailer        Mailer
	cfg           Config
	logger        *slog.Logger
}

func NewReminderService(
	events *store.EventStore,
	invitations *store.InvitationStore,
	rsvps *store.RSVPStore,
	households *store.HouseholdStore,
	notifications *store.NotificationStore,
	tokens *store.TokenStore,
	mailer Mailer,
	cfg Config,
	logger *slog.Logger,
) *ReminderService {
	return &ReminderService{
		events:        events,
		invitations:   invitations,
		rsvps:         rsvps,
		households:    households,
		notifications: notifications,
		tokens:        tokens,
		mailer:        mailer,
		cfg:           cfg.Normalize(),
		logger:        logger,
	}
}

// Tick sends RSVP reminders for published events whose deadline is the
// configured number of days away, archives past events, and prunes expired
// tokens. Running it twice on the same day sends nothing twice.
func (s *ReminderService) Tick(now time.Time) error {
	if err := s.sendReminders(now); err != nil {
		return err
	}
	if err := s.archivePastEvents(now); err != nil {
		return err
	}

	if n, err := s.tokens.DeleteExpired(); err != nil {
		s.logger.Error("delete expired tokens", "error", err)
	} else if n > 0 {
		s.logger.Info("deleted expired tokens", "count", n)
	}
	return nil
}

func (s *ReminderService) sendReminders(now time.Time) error {
	// Rows are stamped in UTC, so the idempotency day window must be too.
	now = now.UTC()
	target := now.AddDate(0, 0, s.cfg.ReminderLeadDays)
	events, err := s.events.ListPublishedWithDeadlineOn(target)
	if err != nil {
		return err
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for _, event := range events {
		householdIDs, err := s.rsvps.HouseholdsWithoutResponse(event.ID)
		if err != nil {
			return err
		}
		for _, householdID := range householdIDs {
			if err := s.remindHousehold(&event, householdID, dayStart); err != nil {
				s.logger.Error("remind household", "event_id", event.ID, "household_id", householdID, "error", err)
			}
		}
	}
	return nil
}

func (s *ReminderService) remindHousehold(event *model.Event, householdID int64, dayStart time.Time) error {
	invitation, err := s.invitations.GetByEventAndHousehold(event.ID, householdID)
	if err != nil {
		return err
	}
	if invitation == nil {
		return nil
	}
	if !invitation.TokenValid(time.Now().UTC()) {
		invitation, err = s.invitations.RefreshToken(invitation.ID, s.cfg.InvitationTokenTTL)
		if err != nil {
			return err
		}
	}

	recipients, err := s.households.ContactableMembers(householdID)
	if err != nil {
		return err
	}

	for _, recipient := range recipients {
		already, err := s.notifications.HasAttemptSince(event.ID, recipient.ID, model.KindRSVPReminder, dayStart)
		if err != nil {
			return err
		}
		if already {
			continue
		}

		attempt, err := s.notifications.RecordAttempt(event.ID, recipient.ID, model.KindRSVPReminder, model.ChannelEmail)
		if err != nil {
			return err
		}

		msgID, err := s.mailer.SendRSVPReminder(
			recipient.Email, recipient.FullName(), event.Title, event.UUID,
			invitation.AccessToken, *event.RSVPDeadline,
		)
		if err != nil {
			s.logger.Warn("reminder email failed", "person_id", recipient.ID, "error", err)
			if _, markErr := s.notifications.MarkFailed(attempt.ID, err.Error()); markErr != nil {
				s.logger.Error("mark notification failed", "notification_id", attempt.ID, "error", markErr)
			}
			continue
		}
		if _, err := s.notifications.MarkSent(attempt.ID, msgID); err != nil {
			s.logger.Error("mark notification sent", "notification_id", attempt.ID, "error", err)
		}
	}
	return nil
}

func (s *ReminderService) archivePastEvents(now time.Time) error {
	past, err := s.events.ListPublishedPast(now)
	if err != nil {
		return err
	}
	for _, event := range past {
		if _, err := s.events.UpdateStatus(event.ID, model.EventArchived); err != nil {
			return err
		}
		s.logger.Info("archived past event", "event_id", event.ID, "title", event.Title)
	}
	return nil
}
