package service

import (
	"errors"
	"testing"

	"github.com/dukerupert/shindig/internal/model"
)

func TestGuestSubmission(t *testing.T) {
	env := newTestEnv(t)
	event, household := seedEventAndHousehold(t, env)
	env.invitation.Create(event.ID, household.ID)

	members, _ := env.households.ActiveMembers(household.ID)
	alice, bob, timmy := members[0], members[1], members[2]

	note := "allergic to nuts"
	updated, err := env.rsvp.Apply(event.ID, household.ID, map[int64]RSVPUpdate{
		alice.ID: {Status: model.RSVPAttending},
		bob.ID:   {Status: model.RSVPNotAttending},
		timmy.ID: {Status: model.RSVPAttending, Note: &note},
	}, &alice.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(updated) != 3 {
		t.Fatalf("expected 3 updated rows, got %d", len(updated))
	}

	got, _ := env.rsvps.GetByEventAndPerson(event.ID, timmy.ID)
	if got.Status != model.RSVPAttending {
		t.Errorf("status = %q, want attending", got.Status)
	}
	if got.Note != note {
		t.Errorf("note = %q, want %q", got.Note, note)
	}
	if got.UpdatedByPersonID == nil || *got.UpdatedByPersonID != alice.ID {
		t.Errorf("updated_by = %v, want %d", got.UpdatedByPersonID, alice.ID)
	}

	// Confirmations go to the contactable responders only
	confirmations := env.mailer.byKind("rsvp_confirmation")
	if len(confirmations) != 2 {
		t.Fatalf("expected 2 confirmation emails, got %d", len(confirmations))
	}
}

func TestSubmissionRejectsOutsideSubmitter(t *testing.T) {
	env := newTestEnv(t)
	event, household := seedEventAndHousehold(t, env)
	env.invitation.Create(event.ID, household.ID)

	members, _ := env.households.ActiveMembers(household.ID)
	outsider, _ := env.persons.Create("Mallory", "Out", "mallory@example.com", "", model.RoleAdult)

	// The named person is a real member; only the submitter id is forged.
	_, err := env.rsvp.Apply(event.ID, household.ID, map[int64]RSVPUpdate{
		members[0].ID: {Status: model.RSVPAttending},
	}, &outsider.ID)
	if !errors.Is(err, ErrForbiddenPerson) {
		t.Fatalf("expected ErrForbiddenPerson for outside submitter, got %v", err)
	}

	row, _ := env.rsvps.GetByEventAndPerson(event.ID, members[0].ID)
	if row.Status != model.RSVPNoResponse {
		t.Errorf("status = %q, want no_response after rejected submission", row.Status)
	}
	if row.UpdatedByPersonID != nil {
		t.Errorf("updated_by = %d, want unset", *row.UpdatedByPersonID)
	}
	if got := len(env.mailer.byKind("rsvp_confirmation")); got != 0 {
		t.Errorf("expected no confirmation emails, got %d", got)
	}
}

func TestSubmissionRejectsNonMember(t *testing.T) {
	env := newTestEnv(t)
	event, household := seedEventAndHousehold(t, env)
	env.invitation.Create(event.ID, household.ID)

	members, _ := env.households.ActiveMembers(household.ID)
	outsider, _ := env.persons.Create("Mallory", "Out", "mallory@example.com", "", model.RoleAdult)

	// One valid member plus one outsider: nothing may be written
	_, err := env.rsvp.Apply(event.ID, household.ID, map[int64]RSVPUpdate{
		members[0].ID: {Status: model.RSVPAttending},
		outsider.ID:   {Status: model.RSVPAttending},
	}, nil)
	if !errors.Is(err, ErrForbiddenPerson) {
		t.Fatalf("expected ErrForbiddenPerson, got %v", err)
	}

	got, _ := env.rsvps.GetByEventAndPerson(event.ID, members[0].ID)
	if got.Status != model.RSVPNoResponse {
		t.Errorf("status = %q, want no_response after rejected submission", got.Status)
	}
	if len(env.mailer.byKind("rsvp_confirmation")) != 0 {
		t.Error("no confirmations should go out for a rejected submission")
	}
}

func TestSubmissionRejectsFormerMember(t *testing.T) {
	env := newTestEnv(t)
	event, household := seedEventAndHousehold(t, env)
	env.invitation.Create(event.ID, household.ID)

	members, _ := env.households.ActiveMembers(household.ID)
	departed := members[1]

	// Respond while still a member, then leave.
	if _, err := env.rsvp.Apply(event.ID, household.ID, map[int64]RSVPUpdate{
		departed.ID: {Status: model.RSVPAttending},
	}, &departed.ID); err != nil {
		t.Fatalf("apply before departure: %v", err)
	}
	if err := env.households.EndMembership(household.ID, departed.ID); err != nil {
		t.Fatalf("end membership: %v", err)
	}

	_, err := env.rsvp.Apply(event.ID, household.ID, map[int64]RSVPUpdate{
		departed.ID: {Status: model.RSVPNotAttending},
	}, nil)
	if !errors.Is(err, ErrForbiddenPerson) {
		t.Fatalf("expected ErrForbiddenPerson for former member, got %v", err)
	}

	// The response recorded while the membership was active is untouched.
	row, err := env.rsvps.GetByEventAndPerson(event.ID, departed.ID)
	if err != nil {
		t.Fatalf("get rsvp: %v", err)
	}
	if row.Status != model.RSVPAttending {
		t.Errorf("status = %q, want %q after membership ended", row.Status, model.RSVPAttending)
	}
	if row.RespondedAt == nil {
		t.Error("responded_at cleared by membership end")
	}
}

func TestSubmissionRejectsInvalidStatus(t *testing.T) {
	env := newTestEnv(t)
	event, household := seedEventAndHousehold(t, env)
	env.invitation.Create(event.ID, household.ID)

	members, _ := env.households.ActiveMembers(household.ID)

	_, err := env.rsvp.Apply(event.ID, household.ID, map[int64]RSVPUpdate{
		members[0].ID: {Status: "definitely"},
	}, nil)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestChangeOfMind(t *testing.T) {
	env := newTestEnv(t)
	event, household := seedEventAndHousehold(t, env)
	env.invitation.Create(event.ID, household.ID)

	members, _ := env.households.ActiveMembers(household.ID)
	alice := members[0]

	env.rsvp.Apply(event.ID, household.ID, map[int64]RSVPUpdate{
		alice.ID: {Status: model.RSVPAttending},
	}, &alice.ID)

	// Any state can move to any other state until the deadline
	updated, err := env.rsvp.Apply(event.ID, household.ID, map[int64]RSVPUpdate{
		alice.ID: {Status: model.RSVPNotAttending},
	}, &alice.ID)
	if err != nil {
		t.Fatalf("change of mind: %v", err)
	}
	if updated[0].Status != model.RSVPNotAttending {
		t.Errorf("status = %q, want not_attending", updated[0].Status)
	}
}

func TestHostUpdateSkipsConfirmation(t *testing.T) {
	env := newTestEnv(t)
	event, household := seedEventAndHousehold(t, env)
	env.invitation.Create(event.ID, household.ID)

	members, _ := env.households.ActiveMembers(household.ID)
	host, _ := env.persons.Create("Helen", "Host", "helen@example.com", "", model.RoleAdult)

	updated, err := env.rsvp.ApplyByHost(event.ID, household.ID, map[int64]RSVPUpdate{
		members[0].ID: {Status: model.RSVPAttending},
	}, host.ID)
	if err != nil {
		t.Fatalf("host update: %v", err)
	}
	if !updated[0].UpdatedByHost {
		t.Error("updated_by_host should be true")
	}
	if updated[0].UpdatedByPersonID == nil || *updated[0].UpdatedByPersonID != host.ID {
		t.Errorf("updated_by = %v, want %d", updated[0].UpdatedByPersonID, host.ID)
	}

	// The guest already talked to the host; no confirmation email
	if len(env.mailer.byKind("rsvp_confirmation")) != 0 {
		t.Error("host updates must not trigger confirmation emails")
	}
}

func TestHouseholdRSVPsEnsuresRows(t *testing.T) {
	env := newTestEnv(t)
	event, household := seedEventAndHousehold(t, env)

	// No invitation-created rows yet: the guest page still gets one row
	// per current member
	rows, err := env.rsvp.HouseholdRSVPs(event.ID, household.ID)
	if err != nil {
		t.Fatalf("household rsvps: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Status != model.RSVPNoResponse {
			t.Errorf("person %d status = %q, want no_response", r.PersonID, r.Status)
		}
	}
}
