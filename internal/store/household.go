package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/shindig/internal/model"
)

// ErrConflict is returned when a write collides with existing live state,
// e.g. adding a member who already holds an active membership.
var ErrConflict = errors.New("conflicts with existing record")

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	var address sql.NullString

	err := scanner.Scan(&h.ID, &h.Name, &address, &h.Archived, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}

	h.Address = address.String
	return &h, nil
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	var leftAt sql.NullTime

	err := scanner.Scan(&m.ID, &m.PersonID, &m.HouseholdID, &m.Role, &m.JoinedAt, &leftAt)
	if err != nil {
		return nil, err
	}

	if leftAt.Valid {
		m.LeftAt = &leftAt.Time
	}
	return &m, nil
}

const householdCols = `id, name, address, archived, created_at, updated_at`
const membershipCols = `id, person_id, household_id, role, joined_at, left_at`

func (s *HouseholdStore) Create(name, address string) (*model.Household, error) {
	result, err := s.db.Exec(
		`INSERT INTO households (name, address) VALUES (?, ?)`,
		name, nullString(address),
	)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) Update(id int64, name, address string) (*model.Household, error) {
	_, err := s.db.Exec(
		`UPDATE households SET name = ?, address = ?, updated_at = datetime('now') WHERE id = ?`,
		name, nullString(address), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update household: %w", err)
	}
	return s.GetByID(id)
}

// Archive flags the household and end-dates all of its active memberships in
// one transaction. Nothing is deleted: person rows, invitations, RSVPs and
// notifications that reference the household remain untouched.
func (s *HouseholdStore) Archive(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE households SET archived = 1, updated_at = ? WHERE id = ?`, now, id); err != nil {
		return fmt.Errorf("archive household: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE household_memberships SET left_at = ? WHERE household_id = ? AND left_at IS NULL`,
		now, id,
	); err != nil {
		return fmt.Errorf("end memberships: %w", err)
	}

	return tx.Commit()
}

// AddMember creates an active membership. A person may hold only one active
// membership per household at a time; re-adding after the previous one ended
// starts a fresh membership row.
func (s *HouseholdStore) AddMember(householdID, personID int64, role string) (*model.Membership, error) {
	if role == "" {
		role = model.RoleAdult
	}

	existing, err := s.GetActiveMembership(householdID, personID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("person %d in household %d: %w", personID, householdID, ErrConflict)
	}

	result, err := s.db.Exec(
		`INSERT INTO household_memberships (household_id, person_id, role) VALUES (?, ?, ?)`,
		householdID, personID, role,
	)
	if err != nil {
		// A concurrent AddMember can slip past the check above; the
		// partial unique index on live memberships catches it here.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("person %d in household %d: %w", personID, householdID, ErrConflict)
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+membershipCols+` FROM household_memberships WHERE id = ?`, id)
	return scanMembership(row)
}

// EndMembership end-dates the active membership between the pair. Ended
// memberships are frozen; calling this again is a no-op.
func (s *HouseholdStore) EndMembership(householdID, personID int64) error {
	_, err := s.db.Exec(
		`UPDATE household_memberships SET left_at = ? WHERE household_id = ? AND person_id = ? AND left_at IS NULL`,
		time.Now().UTC(), householdID, personID,
	)
	if err != nil {
		return fmt.Errorf("end membership: %w", err)
	}
	return nil
}

func (s *HouseholdStore) GetActiveMembership(householdID, personID int64) (*model.Membership, error) {
	row := s.db.QueryRow(
		`SELECT `+membershipCols+` FROM household_memberships
		 WHERE household_id = ? AND person_id = ? AND left_at IS NULL`,
		householdID, personID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active membership: %w", err)
	}
	return m, nil
}

// ListMemberships returns all memberships for a household, current and
// historical, in join order.
func (s *HouseholdStore) ListMemberships(householdID int64) ([]model.Membership, error) {
	rows, err := s.db.Query(
		`SELECT `+membershipCols+` FROM household_memberships WHERE household_id = ? ORDER BY joined_at ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, *m)
	}
	return memberships, rows.Err()
}

// ActiveMembers returns the persons currently belonging to the household, in
// join order.
func (s *HouseholdStore) ActiveMembers(householdID int64) ([]model.Person, error) {
	rows, err := s.db.Query(
		`SELECT p.id, p.first_name, p.last_name, p.email, p.phone, p.role, p.created_at, p.updated_at
		 FROM persons p
		 JOIN household_memberships hm ON p.id = hm.person_id
		 WHERE hm.household_id = ? AND hm.left_at IS NULL
		 ORDER BY hm.joined_at ASC, hm.id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	defer rows.Close()

	var members []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *p)
	}
	return members, rows.Err()
}

// ContactableMembers returns active members with a non-empty email address.
func (s *HouseholdStore) ContactableMembers(householdID int64) ([]model.Person, error) {
	members, err := s.ActiveMembers(householdID)
	if err != nil {
		return nil, err
	}

	var contactable []model.Person
	for _, m := range members {
		if m.Contactable() {
			contactable = append(contactable, m)
		}
	}
	return contactable, nil
}

// HouseholdsForPerson returns the households where the person holds an active
// membership, in join order.
func (s *HouseholdStore) HouseholdsForPerson(personID int64) ([]model.Household, error) {
	rows, err := s.db.Query(
		`SELECT h.id, h.name, h.address, h.archived, h.created_at, h.updated_at
		 FROM households h
		 JOIN household_memberships hm ON h.id = hm.household_id
		 WHERE hm.person_id = ? AND hm.left_at IS NULL
		 ORDER BY hm.joined_at ASC, hm.id ASC`,
		personID,
	)
	if err != nil {
		return nil, fmt.Errorf("list households for person: %w", err)
	}
	defer rows.Close()

	var households []model.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		households = append(households, *h)
	}
	return households, rows.Err()
}

// PrimaryHousehold returns the person's first active household by join order,
// or nil if they have none.
func (s *HouseholdStore) PrimaryHousehold(personID int64) (*model.Household, error) {
	households, err := s.HouseholdsForPerson(personID)
	if err != nil {
		return nil, err
	}
	if len(households) == 0 {
		return nil, nil
	}
	return &households[0], nil
}
