package store

import (
	"testing"
	"time"

	"github.com/dukerupert/shindig/internal/database"
	"github.com/dukerupert/shindig/internal/model"
)

func setupEventTestDB(t *testing.T) *EventStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEventStore(db)
}

func TestEventCreate(t *testing.T) {
	es := setupEventTestDB(t)

	eventDate := time.Date(2026, 12, 20, 18, 0, 0, 0, time.UTC)
	deadline := eventDate.AddDate(0, 0, -10)

	event, err := es.Create("Holiday Party", "Bring a dish", eventDate, "The Grange Hall", &deadline, nil)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if event.Title != "Holiday Party" {
		t.Errorf("title = %q, want %q", event.Title, "Holiday Party")
	}
	if event.UUID == "" {
		t.Error("expected a public uuid")
	}
	if event.Status != model.EventDraft {
		t.Errorf("status = %q, want %q", event.Status, model.EventDraft)
	}
	if event.RSVPDeadline == nil || !event.RSVPDeadline.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", event.RSVPDeadline, deadline)
	}

	byUUID, err := es.GetByUUID(event.UUID)
	if err != nil {
		t.Fatalf("get by uuid: %v", err)
	}
	if byUUID == nil || byUUID.ID != event.ID {
		t.Fatalf("expected event %d by uuid, got %v", event.ID, byUUID)
	}
}

func TestEventStatusTransitions(t *testing.T) {
	es := setupEventTestDB(t)

	event, _ := es.Create("Party", "", time.Now().AddDate(0, 1, 0), "", nil, nil)

	published, err := es.UpdateStatus(event.ID, model.EventPublished)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !published.Published() {
		t.Error("event should be published")
	}

	archived, err := es.UpdateStatus(event.ID, model.EventArchived)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.Status != model.EventArchived {
		t.Errorf("status = %q, want %q", archived.Status, model.EventArchived)
	}
}

func TestListByStatus(t *testing.T) {
	es := setupEventTestDB(t)

	a, _ := es.Create("First", "", time.Now().AddDate(0, 1, 0), "", nil, nil)
	b, _ := es.Create("Second", "", time.Now().AddDate(0, 2, 0), "", nil, nil)
	es.UpdateStatus(a.ID, model.EventPublished)

	drafts, err := es.ListByStatus(model.EventDraft)
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != b.ID {
		t.Errorf("drafts = %v, want only event %d", drafts, b.ID)
	}

	published, err := es.ListByStatus(model.EventPublished)
	if err != nil {
		t.Fatalf("list published: %v", err)
	}
	if len(published) != 1 || published[0].ID != a.ID {
		t.Errorf("published = %v, want only event %d", published, a.ID)
	}
}

func TestListPublishedWithDeadlineOn(t *testing.T) {
	es := setupEventTestDB(t)

	day := time.Date(2026, 12, 10, 0, 0, 0, 0, time.UTC)
	deadlineOnDay := time.Date(2026, 12, 10, 23, 0, 0, 0, time.UTC)
	deadlineOther := time.Date(2026, 12, 11, 1, 0, 0, 0, time.UTC)

	hit, _ := es.Create("Target", "", day.AddDate(0, 0, 14), "", &deadlineOnDay, nil)
	miss, _ := es.Create("Other", "", day.AddDate(0, 0, 14), "", &deadlineOther, nil)
	noDeadline, _ := es.Create("Open", "", day.AddDate(0, 0, 14), "", nil, nil)
	es.UpdateStatus(hit.ID, model.EventPublished)
	es.UpdateStatus(miss.ID, model.EventPublished)
	es.UpdateStatus(noDeadline.ID, model.EventPublished)

	events, err := es.ListPublishedWithDeadlineOn(day)
	if err != nil {
		t.Fatalf("list by deadline: %v", err)
	}
	if len(events) != 1 || events[0].ID != hit.ID {
		t.Fatalf("expected only event %d, got %v", hit.ID, events)
	}
}

func TestListPublishedPast(t *testing.T) {
	es := setupEventTestDB(t)

	past, _ := es.Create("Done", "", time.Now().AddDate(0, 0, -2), "", nil, nil)
	future, _ := es.Create("Upcoming", "", time.Now().AddDate(0, 0, 2), "", nil, nil)
	es.UpdateStatus(past.ID, model.EventPublished)
	es.UpdateStatus(future.ID, model.EventPublished)

	events, err := es.ListPublishedPast(time.Now())
	if err != nil {
		t.Fatalf("list past: %v", err)
	}
	if len(events) != 1 || events[0].ID != past.ID {
		t.Fatalf("expected only event %d, got %v", past.ID, events)
	}
}
