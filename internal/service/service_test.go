package service

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/shindig/internal/database"
	"github.com/dukerupert/shindig/internal/store"
)

// fakeMailer records outbound email calls and can be told to fail for
// specific addresses.
type fakeMailer struct {
	mu       sync.Mutex
	sent     []sentEmail
	failFor  map[string]bool
	disabled bool
}

type sentEmail struct {
	kind  string
	to    string
	token string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{failFor: make(map[string]bool)}
}

func (m *fakeMailer) record(kind, to, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[to] {
		return "", fmt.Errorf("delivery to %s refused", to)
	}
	m.sent = append(m.sent, sentEmail{kind: kind, to: to, token: token})
	return fmt.Sprintf("fake-%d", len(m.sent)), nil
}

func (m *fakeMailer) Configured() bool { return !m.disabled }

func (m *fakeMailer) SendInvitation(toEmail, toName, eventTitle, eventUUID, accessToken string) (string, error) {
	return m.record("invitation", toEmail, accessToken)
}

func (m *fakeMailer) SendMagicLink(toEmail, toName, token string, ttl time.Duration) (string, error) {
	return m.record("magic_link", toEmail, token)
}

func (m *fakeMailer) SendPasswordReset(toEmail, toName, token string, ttl time.Duration) (string, error) {
	return m.record("password_reset", toEmail, token)
}

func (m *fakeMailer) SendRSVPConfirmation(toEmail, toName, eventTitle, status string) (string, error) {
	return m.record("rsvp_confirmation", toEmail, "")
}

func (m *fakeMailer) SendRSVPReminder(toEmail, toName, eventTitle, eventUUID, accessToken string, deadline time.Time) (string, error) {
	return m.record("rsvp_reminder", toEmail, accessToken)
}

func (m *fakeMailer) byKind(kind string) []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentEmail
	for _, e := range m.sent {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// testEnv bundles the stores and services over one in-memory database.
type testEnv struct {
	persons       *store.PersonStore
	households    *store.HouseholdStore
	events        *store.EventStore
	invitations   *store.InvitationStore
	rsvps         *store.RSVPStore
	tokens        *store.TokenStore
	notifications *store.NotificationStore

	mailer *fakeMailer
	cfg    Config

	auth       *AuthService
	invitation *InvitationService
	rsvp       *RSVPService
	reminder   *ReminderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		persons:       store.NewPersonStore(db),
		households:    store.NewHouseholdStore(db),
		events:        store.NewEventStore(db),
		invitations:   store.NewInvitationStore(db),
		rsvps:         store.NewRSVPStore(db),
		tokens:        store.NewTokenStore(db),
		notifications: store.NewNotificationStore(db),
		mailer:        newFakeMailer(),
		cfg:           DefaultConfig(),
	}
	env.auth = NewAuthService(env.persons, env.tokens, env.mailer, env.cfg, logger)
	env.invitation = NewInvitationService(env.invitations, env.households, env.events, env.rsvps, env.notifications, env.mailer, env.cfg, logger)
	env.rsvp = NewRSVPService(env.rsvps, env.households, env.events, env.notifications, env.mailer, logger)
	env.reminder = NewReminderService(env.events, env.invitations, env.rsvps, env.households, env.notifications, env.tokens, env.mailer, env.cfg, logger)
	return env
}
