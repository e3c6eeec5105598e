package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/shindig/internal/database"
	"github.com/dukerupert/shindig/internal/model"
)

func setupHouseholdTestDB(t *testing.T) (*HouseholdStore, *PersonStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewHouseholdStore(db), NewPersonStore(db)
}

func TestHouseholdCRUD(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	household, err := hs.Create("The Smiths", "12 Elm St")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if household.Name != "The Smiths" {
		t.Errorf("name = %q, want %q", household.Name, "The Smiths")
	}
	if household.Archived {
		t.Error("new household should not be archived")
	}

	updated, err := hs.Update(household.ID, "The Smith Family", "")
	if err != nil {
		t.Fatalf("update household: %v", err)
	}
	if updated.Name != "The Smith Family" {
		t.Errorf("name = %q, want %q", updated.Name, "The Smith Family")
	}
	if updated.Address != "" {
		t.Errorf("address = %q, want empty", updated.Address)
	}
}

func TestAddMemberConflict(t *testing.T) {
	hs, ps := setupHouseholdTestDB(t)

	household, _ := hs.Create("The Smiths", "")
	alice, _ := ps.Create("Alice", "Smith", "alice@example.com", "", model.RoleAdult)

	m, err := hs.AddMember(household.ID, alice.ID, "head")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if !m.Active() {
		t.Error("new membership should be active")
	}
	if m.Role != "head" {
		t.Errorf("role = %q, want %q", m.Role, "head")
	}

	_, err = hs.AddMember(household.ID, alice.ID, "member")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate active membership, got %v", err)
	}
}

func TestDuplicateActiveMembershipBlockedAtStorage(t *testing.T) {
	hs, ps := setupHouseholdTestDB(t)

	household, _ := hs.Create("The Smiths", "")
	alice, _ := ps.Create("Alice", "Smith", "alice@example.com", "", model.RoleAdult)

	if _, err := hs.AddMember(household.ID, alice.ID, ""); err != nil {
		t.Fatalf("add member: %v", err)
	}

	// A second live row inserted directly, the way a racing AddMember
	// would, must be stopped by the partial unique index.
	_, err := hs.db.Exec(
		`INSERT INTO household_memberships (household_id, person_id, role) VALUES (?, ?, ?)`,
		household.ID, alice.ID, model.RoleAdult,
	)
	if err == nil {
		t.Fatal("expected unique index to block second active membership")
	}

	// Ended rows stay out of the index: rejoin after leaving is fine.
	if err := hs.EndMembership(household.ID, alice.ID); err != nil {
		t.Fatalf("end membership: %v", err)
	}
	if _, err := hs.AddMember(household.ID, alice.ID, ""); err != nil {
		t.Fatalf("rejoin after leaving: %v", err)
	}
}

func TestMembershipEndAndRejoin(t *testing.T) {
	hs, ps := setupHouseholdTestDB(t)

	household, _ := hs.Create("The Smiths", "")
	alice, _ := ps.Create("Alice", "Smith", "alice@example.com", "", model.RoleAdult)
	hs.AddMember(household.ID, alice.ID, "member")

	if err := hs.EndMembership(household.ID, alice.ID); err != nil {
		t.Fatalf("end membership: %v", err)
	}
	// Ending again is a no-op
	if err := hs.EndMembership(household.ID, alice.ID); err != nil {
		t.Fatalf("end membership twice: %v", err)
	}

	active, err := hs.GetActiveMembership(household.ID, alice.ID)
	if err != nil {
		t.Fatalf("get active membership: %v", err)
	}
	if active != nil {
		t.Fatal("expected no active membership after end")
	}

	// Rejoining starts a fresh row; the ended one stays frozen
	if _, err := hs.AddMember(household.ID, alice.ID, "member"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	memberships, err := hs.ListMemberships(household.ID)
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(memberships) != 2 {
		t.Fatalf("expected 2 membership rows, got %d", len(memberships))
	}
	if memberships[0].Active() {
		t.Error("first membership should be ended")
	}
	if !memberships[1].Active() {
		t.Error("second membership should be active")
	}
}

func TestConcurrentHouseholds(t *testing.T) {
	hs, ps := setupHouseholdTestDB(t)

	smiths, _ := hs.Create("The Smiths", "")
	jones, _ := hs.Create("The Joneses", "")
	kid, _ := ps.Create("Sam", "Smith", "", "", model.RoleChild)

	// Shared-custody kid belongs to both households at once
	if _, err := hs.AddMember(smiths.ID, kid.ID, "member"); err != nil {
		t.Fatalf("add to first household: %v", err)
	}
	if _, err := hs.AddMember(jones.ID, kid.ID, "member"); err != nil {
		t.Fatalf("add to second household: %v", err)
	}

	households, err := hs.HouseholdsForPerson(kid.ID)
	if err != nil {
		t.Fatalf("households for person: %v", err)
	}
	if len(households) != 2 {
		t.Fatalf("expected 2 households, got %d", len(households))
	}

	primary, err := hs.PrimaryHousehold(kid.ID)
	if err != nil {
		t.Fatalf("primary household: %v", err)
	}
	if primary == nil || primary.ID != smiths.ID {
		t.Errorf("primary household = %v, want %d", primary, smiths.ID)
	}
}

func TestActiveAndContactableMembers(t *testing.T) {
	hs, ps := setupHouseholdTestDB(t)

	household, _ := hs.Create("The Smiths", "")
	alice, _ := ps.Create("Alice", "Smith", "alice@example.com", "", model.RoleAdult)
	timmy, _ := ps.Create("Timmy", "Smith", "", "", model.RoleChild)
	bob, _ := ps.Create("Bob", "Smith", "bob@example.com", "", model.RoleAdult)

	hs.AddMember(household.ID, alice.ID, "head")
	hs.AddMember(household.ID, timmy.ID, "member")
	hs.AddMember(household.ID, bob.ID, "member")
	hs.EndMembership(household.ID, bob.ID)

	members, err := hs.ActiveMembers(household.ID)
	if err != nil {
		t.Fatalf("active members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 active members, got %d", len(members))
	}

	contactable, err := hs.ContactableMembers(household.ID)
	if err != nil {
		t.Fatalf("contactable members: %v", err)
	}
	if len(contactable) != 1 {
		t.Fatalf("expected 1 contactable member, got %d", len(contactable))
	}
	if contactable[0].ID != alice.ID {
		t.Errorf("contactable member = %d, want %d", contactable[0].ID, alice.ID)
	}
}

func TestArchiveHousehold(t *testing.T) {
	hs, ps := setupHouseholdTestDB(t)

	household, _ := hs.Create("The Smiths", "")
	alice, _ := ps.Create("Alice", "Smith", "alice@example.com", "", model.RoleAdult)
	hs.AddMember(household.ID, alice.ID, "member")

	if err := hs.Archive(household.ID); err != nil {
		t.Fatalf("archive household: %v", err)
	}

	got, _ := hs.GetByID(household.ID)
	if !got.Archived {
		t.Error("household should be archived")
	}

	members, _ := hs.ActiveMembers(household.ID)
	if len(members) != 0 {
		t.Errorf("expected no active members after archive, got %d", len(members))
	}

	// Historical membership row survives
	memberships, _ := hs.ListMemberships(household.ID)
	if len(memberships) != 1 {
		t.Fatalf("expected 1 membership row, got %d", len(memberships))
	}
	if memberships[0].Active() {
		t.Error("membership should be ended by archive")
	}
}
