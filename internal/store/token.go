package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/shindig/internal/model"
)

// Token verification failures. Handlers must collapse all four into one
// generic message for unauthenticated callers; the distinction exists for
// logging and tests only.
var (
	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenAlreadyUsed  = errors.New("token already used")
	ErrTokenTypeMismatch = errors.New("token type mismatch")
)

type TokenStore struct {
	db *sql.DB
}

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

func scanToken(scanner interface{ Scan(...any) error }) (*model.AuthToken, error) {
	var t model.AuthToken
	var usedAt sql.NullTime
	var ip, ua sql.NullString

	err := scanner.Scan(&t.ID, &t.PersonID, &t.Token, &t.TokenType, &t.ExpiresAt, &usedAt, &ip, &ua, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	t.IPAddress = ip.String
	t.UserAgent = ua.String
	return &t, nil
}

const tokenCols = `id, person_id, token, token_type, expires_at, used_at, ip_address, user_agent, created_at`

// generateToken returns a URL-safe random string with 256 bits of entropy.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue creates a new token for the person and invalidates any outstanding
// unused, unexpired token of the same type, so at most one live token per
// (person, type) exists at any time. The raw token string is only available
// on the returned value.
func (s *TokenStore) Issue(personID int64, tokenType string, ttl time.Duration, ipAddress, userAgent string) (*model.AuthToken, error) {
	raw, err := generateToken()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.Exec(
		`UPDATE auth_tokens SET used_at = ? WHERE person_id = ? AND token_type = ? AND used_at IS NULL AND expires_at > ?`,
		now, personID, tokenType, now,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous tokens: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO auth_tokens (person_id, token, token_type, expires_at, ip_address, user_agent, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		personID, raw, tokenType, now.Add(ttl), nullString(ipAddress), nullString(userAgent), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+tokenCols+` FROM auth_tokens WHERE id = ?`, id)
	return scanToken(row)
}

// VerifyAndConsume validates the token string and marks it used in one
// logical step. The consume is a conditional update on used_at IS NULL with
// an affected-row check, so two concurrent requests presenting the same
// token cannot both succeed.
func (s *TokenStore) VerifyAndConsume(tokenString, expectedType string) (*model.AuthToken, error) {
	t, err := s.lookup(tokenString, expectedType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.db.Exec(
		`UPDATE auth_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		now, t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("consume token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrTokenAlreadyUsed
	}

	t.UsedAt = &now
	return t, nil
}

// Peek validates a token without consuming it. Used to render a password
// reset form before the submit that actually spends the token.
func (s *TokenStore) Peek(tokenString, expectedType string) (*model.AuthToken, error) {
	return s.lookup(tokenString, expectedType)
}

func (s *TokenStore) lookup(tokenString, expectedType string) (*model.AuthToken, error) {
	row := s.db.QueryRow(`SELECT `+tokenCols+` FROM auth_tokens WHERE token = ?`, tokenString)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	if t.TokenType != expectedType {
		return nil, ErrTokenTypeMismatch
	}
	if time.Now().UTC().After(t.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if t.UsedAt != nil {
		return nil, ErrTokenAlreadyUsed
	}
	return t, nil
}

// CountIssuedSince counts tokens of a type issued for a person after the
// cutoff, used or not. Rate-limit input.
func (s *TokenStore) CountIssuedSince(personID int64, tokenType string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM auth_tokens WHERE person_id = ? AND token_type = ? AND created_at >= ?`,
		personID, tokenType, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return count, nil
}

func (s *TokenStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM auth_tokens WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
