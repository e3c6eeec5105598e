package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/shindig/internal/model"
)

type PersonStore struct {
	db *sql.DB
}

func NewPersonStore(db *sql.DB) *PersonStore {
	return &PersonStore{db: db}
}

func scanPerson(scanner interface{ Scan(...any) error }) (*model.Person, error) {
	var p model.Person
	var email, phone sql.NullString

	err := scanner.Scan(&p.ID, &p.FirstName, &p.LastName, &email, &phone, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Email = email.String
	p.Phone = phone.String
	return &p, nil
}

const personCols = `id, first_name, last_name, email, phone, role, created_at, updated_at`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *PersonStore) Create(firstName, lastName, email, phone, role string) (*model.Person, error) {
	if role == "" {
		role = model.RoleAdult
	}
	result, err := s.db.Exec(
		`INSERT INTO persons (first_name, last_name, email, phone, role) VALUES (?, ?, ?, ?, ?)`,
		firstName, lastName, nullString(email), nullString(phone), role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PersonStore) GetByID(id int64) (*model.Person, error) {
	row := s.db.QueryRow(`SELECT `+personCols+` FROM persons WHERE id = ?`, id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *PersonStore) GetByEmail(email string) (*model.Person, error) {
	row := s.db.QueryRow(`SELECT `+personCols+` FROM persons WHERE email = ?`, email)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person by email: %w", err)
	}
	return p, nil
}

func (s *PersonStore) Update(id int64, firstName, lastName, email, phone string) (*model.Person, error) {
	_, err := s.db.Exec(
		`UPDATE persons SET first_name = ?, last_name = ?, email = ?, phone = ?, updated_at = datetime('now') WHERE id = ?`,
		firstName, lastName, nullString(email), nullString(phone), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update person: %w", err)
	}
	return s.GetByID(id)
}

// SetPasswordHash stores an already-hashed password credential.
func (s *PersonStore) SetPasswordHash(id int64, hash string) error {
	_, err := s.db.Exec(`UPDATE persons SET password_hash = ?, updated_at = datetime('now') WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}

// GetPasswordHash returns the stored hash, or "" if the person has no
// password credential.
func (s *PersonStore) GetPasswordHash(id int64) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRow(`SELECT password_hash FROM persons WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("person not found")
	}
	if err != nil {
		return "", fmt.Errorf("query password hash: %w", err)
	}
	if !hash.Valid {
		return "", nil
	}
	return hash.String, nil
}

// AddTag attaches a free-form tag (dietary notes etc.) to a person. Tags are
// normalized to lowercase; adding an existing tag is a no-op.
func (s *PersonStore) AddTag(personID int64, tag string, addedByPersonID *int64) error {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return fmt.Errorf("empty tag")
	}

	var addedBy sql.NullInt64
	if addedByPersonID != nil {
		addedBy = sql.NullInt64{Int64: *addedByPersonID, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO person_tags (person_id, tag, added_by_person_id) VALUES (?, ?, ?)
		 ON CONFLICT(person_id, tag) DO NOTHING`,
		personID, tag, addedBy,
	)
	if err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	return nil
}

func (s *PersonStore) RemoveTag(personID int64, tag string) error {
	tag = strings.ToLower(strings.TrimSpace(tag))
	_, err := s.db.Exec(`DELETE FROM person_tags WHERE person_id = ? AND tag = ?`, personID, tag)
	if err != nil {
		return fmt.Errorf("remove tag: %w", err)
	}
	return nil
}

func (s *PersonStore) ListTags(personID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM person_tags WHERE person_id = ? ORDER BY tag`, personID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
