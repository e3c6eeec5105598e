package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/shindig/internal/model"
	"github.com/dukerupert/shindig/internal/store"
)

// ErrNoRecipients means the invited household has no member with an email
// address, so there is nobody to deliver to.
var ErrNoRecipients = errors.New("household has no contactable members")

// SendReport summarizes a bulk send.
type SendReport struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// InvitationService coordinates inviting households and fanning deliveries
// out to their members.
type InvitationService struct {
	invitations   *store.InvitationStore
	households    *store.HouseholdStore
	events        *store.EventStore
	rsvps         *store.RSVPStore
	notifications *store.NotificationStore
	mailer        Mailer
	cfg           Config
	logger        *slog.Logger
}

func NewInvitationService(
	invitations *store.InvitationStore,
	households *store.HouseholdStore,
	events *store.EventStore,
	rsvps *store.RSVPStore,
	notifications *store.NotificationStore,
	mailer Mailer,
	cfg Config,
	logger *slog.Logger,
) *InvitationService {
	return &InvitationService{
		invitations:   invitations,
		households:    households,
		events:        events,
		rsvps:         rsvps,
		notifications: notifications,
		mailer:        mailer,
		cfg:           cfg.Normalize(),
		logger:        logger,
	}
}

// Create invites a household to an event. Idempotent: inviting twice returns
// the existing invitation. RSVP rows for the household's current members are
// ensured as a side effect, so the guest page always has rows to show.
func (s *InvitationService) Create(eventID, householdID int64) (*model.Invitation, error) {
	household, err := s.households.GetByID(householdID)
	if err != nil {
		return nil, err
	}
	if household == nil {
		return nil, fmt.Errorf("household %d not found", householdID)
	}

	invitation, err := s.invitations.Create(eventID, householdID, s.cfg.InvitationTokenTTL)
	if err != nil {
		return nil, err
	}

	if err := s.ensureRSVPRows(eventID, householdID); err != nil {
		return nil, err
	}
	return invitation, nil
}

// CreateBulk invites several households; unknown household ids are skipped.
func (s *InvitationService) CreateBulk(eventID int64, householdIDs []int64) ([]model.Invitation, error) {
	var invitations []model.Invitation
	for _, hid := range householdIDs {
		household, err := s.households.GetByID(hid)
		if err != nil {
			return nil, err
		}
		if household == nil {
			continue
		}
		inv, err := s.Create(eventID, hid)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, *inv)
	}
	return invitations, nil
}

func (s *InvitationService) ensureRSVPRows(eventID, householdID int64) error {
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

// Send fans the invitation out to every contactable member of the household.
// Each recipient gets an independent notification row; one slow or failing
// recipient never blocks the others. The invitation counts as sent when at
// least one delivery succeeded. Email failures are recorded in the audit
// log, never raised: the database state must commit regardless of bounces.
func (s *InvitationService) Send(invitationID int64) (*model.Invitation, error) {
	invitation, err := s.invitations.GetByID(invitationID)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, fmt.Errorf("invitation %d not found", invitationID)
	}

	event, err := s.events.GetByID(invitation.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event %d not found", invitation.EventID)
	}

	recipients, err := s.households.ContactableMembers(invitation.HouseholdID)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return invitation, ErrNoRecipients
	}

	if !invitation.TokenValid(time.Now().UTC()) {
		invitation, err = s.invitations.RefreshToken(invitation.ID, s.cfg.InvitationTokenTTL)
		if err != nil {
			return nil, err
		}
	}

	// The guest page needs rows for every current member before anyone
	// clicks through.
	if err := s.ensureRSVPRows(invitation.EventID, invitation.HouseholdID); err != nil {
		return nil, err
	}

	success := 0
	for _, recipient := range recipients {
		if s.deliverInvitation(event, invitation, &recipient) {
			success++
		}
	}

	if success > 0 {
		return s.invitations.MarkSent(invitation.ID)
	}
	return invitation, nil
}

// deliverInvitation records the attempt, performs the send, and stores the
// outcome for one recipient.
func (s *InvitationService) deliverInvitation(event *model.Event, invitation *model.Invitation, recipient *model.Person) bool {
	attempt, err := s.notifications.RecordAttempt(event.ID, recipient.ID, model.KindInvitation, model.ChannelEmail)
	if err != nil {
		s.logger.Error("record invitation attempt", "person_id", recipient.ID, "error", err)
		return false
	}

	msgID, err := s.mailer.SendInvitation(recipient.Email, recipient.FullName(), event.Title, event.UUID, invitation.AccessToken)
	if err != nil {
		s.logger.Warn("invitation email failed", "person_id", recipient.ID, "error", err)
		if _, markErr := s.notifications.MarkFailed(attempt.ID, err.Error()); markErr != nil {
			s.logger.Error("mark notification failed", "notification_id", attempt.ID, "error", markErr)
		}
		return false
	}

	if _, err := s.notifications.MarkSent(attempt.ID, msgID); err != nil {
		s.logger.Error("mark notification sent", "notification_id", attempt.ID, "error", err)
	}
	return true
}

// SendToPerson delivers the invitation to one named member of the invited
// household, e.g. a newly added member after the initial send.
func (s *InvitationService) SendToPerson(invitationID, personID int64) (*model.Invitation, error) {
	invitation, err := s.invitations.GetByID(invitationID)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, fmt.Errorf("invitation %d not found", invitationID)
	}

	membership, err := s.households.GetActiveMembership(invitation.HouseholdID, personID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, fmt.Errorf("person %d is not an active member of household %d", personID, invitation.HouseholdID)
	}

	person, err := s.households.ActiveMembers(invitation.HouseholdID)
	if err != nil {
		return nil, err
	}
	var recipient *model.Person
	for i := range person {
		if person[i].ID == personID {
			recipient = &person[i]
			break
		}
	}
	if recipient == nil || !recipient.Contactable() {
		return invitation, ErrNoRecipients
	}

	event, err := s.events.GetByID(invitation.EventID)
	if err != nil {
		return nil, err
	}

	if !invitation.TokenValid(time.Now().UTC()) {
		invitation, err = s.invitations.RefreshToken(invitation.ID, s.cfg.InvitationTokenTTL)
		if err != nil {
			return nil, err
		}
	}

	if s.deliverInvitation(event, invitation, recipient) {
		return s.invitations.MarkSent(invitation.ID)
	}
	return invitation, nil
}

// SendPending sends every invitation for the event that has never gone out.
func (s *InvitationService) SendPending(eventID int64) (*SendReport, error) {
	pending, err := s.invitations.ListPendingByEvent(eventID)
	if err != nil {
		return nil, err
	}

	report := &SendReport{}
	for _, inv := range pending {
		sent, err := s.Send(inv.ID)
		if err != nil && !errors.Is(err, ErrNoRecipients) {
			return nil, err
		}
		if err == nil && sent.Sent() {
			report.Success++
		} else {
			report.Failure++
		}
	}
	return report, nil
}

// SendAll sends (or resends) every invitation for the event.
func (s *InvitationService) SendAll(eventID int64) (*SendReport, error) {
	invitations, err := s.invitations.ListByEvent(eventID)
	if err != nil {
		return nil, err
	}

	report := &SendReport{}
	for _, inv := range invitations {
		sent, err := s.Send(inv.ID)
		if err != nil && !errors.Is(err, ErrNoRecipients) {
			return nil, err
		}
		if err == nil && sent.Sent() {
			report.Success++
		} else {
			report.Failure++
		}
	}
	return report, nil
}

// Stats aggregates send progress for an event dashboard. can_send is the
// number of pending invitations that actually have someone to email.
func (s *InvitationService) Stats(eventID int64) (*model.InvitationStats, error) {
	invitations, err := s.invitations.ListByEvent(eventID)
	if err != nil {
		return nil, err
	}

	stats := &model.InvitationStats{Total: len(invitations)}
	for _, inv := range invitations {
		if inv.Sent() {
			stats.Sent++
		} else {
			stats.Pending++
		}

		contactable, err := s.households.ContactableMembers(inv.HouseholdID)
		if err != nil {
			return nil, err
		}
		if len(contactable) == 0 {
			stats.NoContactableEmail++
		}
	}
	stats.CanSend = stats.Pending - stats.NoContactableEmail
	if stats.CanSend < 0 {
		stats.CanSend = 0
	}
	return stats, nil
}

// ResolveToken maps a guest access token to its invitation, or nil for
// unknown and expired tokens alike.
func (s *InvitationService) ResolveToken(token string) (*model.Invitation, error) {
	return s.invitations.GetByToken(token)
}
