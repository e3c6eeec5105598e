package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/shindig/internal/model"
	"github.com/dukerupert/shindig/internal/store"
)

var (
	// ErrRateLimited means too many tokens were requested in the window.
	// Surfaced to the user as "try again later", never silently dropped.
	ErrRateLimited = errors.New("too many token requests")

	// ErrInvalidCredentials covers every password-login failure mode so
	// responses cannot distinguish unknown emails from wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthService owns the capability-token flows: passwordless login, password
// reset, and the password credential itself.
type AuthService struct {
	persons *store.PersonStore
	tokens  *store.TokenStore
	mailer  Mailer
	cfg     Config
	logger  *slog.Logger
}

func NewAuthService(persons *store.PersonStore, tokens *store.TokenStore, mailer Mailer, cfg Config, logger *slog.Logger) *AuthService {
	return &AuthService{
		persons: persons,
		tokens:  tokens,
		mailer:  mailer,
		cfg:     cfg.Normalize(),
		logger:  logger,
	}
}

// CheckRateLimit reports whether the person may be issued another token of
// the given type. Callers check this before issuing; issuance itself never
// throttles.
func (s *AuthService) CheckRateLimit(personID int64, tokenType string) (bool, error) {
	since := time.Now().UTC().Add(-s.cfg.TokenRateWindow)
	count, err := s.tokens.CountIssuedSince(personID, tokenType, since)
	if err != nil {
		return false, err
	}
	return count < s.cfg.TokenRateLimit, nil
}

// RequestMagicLink issues and emails a sign-in link. An unknown email is not
// an error: the caller shows "check your email" either way to prevent
// enumeration. A rate-limited known person gets ErrRateLimited.
func (s *AuthService) RequestMagicLink(email, ipAddress, userAgent string) error {
	person, err := s.persons.GetByEmail(email)
	if err != nil {
		return fmt.Errorf("lookup person: %w", err)
	}
	if person == nil {
		s.logger.Info("magic link requested for unknown email")
		return nil
	}

	return s.issueAndSend(person, model.TokenMagicLink, ipAddress, userAgent)
}

// RequestPasswordReset issues and emails a reset link, with the same
// enumeration-safe contract as RequestMagicLink.
func (s *AuthService) RequestPasswordReset(email, ipAddress, userAgent string) error {
	person, err := s.persons.GetByEmail(email)
	if err != nil {
		return fmt.Errorf("lookup person: %w", err)
	}
	if person == nil {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}

	return s.issueAndSend(person, model.TokenPasswordReset, ipAddress, userAgent)
}

func (s *AuthService) issueAndSend(person *model.Person, tokenType, ipAddress, userAgent string) error {
	ok, err := s.CheckRateLimit(person.ID, tokenType)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("token rate limit exceeded", "person_id", person.ID, "token_type", tokenType)
		return ErrRateLimited
	}

	var ttl time.Duration
	switch tokenType {
	case model.TokenMagicLink:
		ttl = s.cfg.MagicLinkTTL
	case model.TokenPasswordReset:
		ttl = s.cfg.PasswordResetTTL
	default:
		return fmt.Errorf("unknown token type %q", tokenType)
	}

	token, err := s.tokens.Issue(person.ID, tokenType, ttl, ipAddress, userAgent)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	switch tokenType {
	case model.TokenMagicLink:
		_, err = s.mailer.SendMagicLink(person.Email, person.FullName(), token.Token, ttl)
	case model.TokenPasswordReset:
		_, err = s.mailer.SendPasswordReset(person.Email, person.FullName(), token.Token, ttl)
	}
	if err != nil {
		// The token row stands; the person can request another link.
		s.logger.Error("send token email", "person_id", person.ID, "token_type", tokenType, "error", err)
	}
	return nil
}

// VerifyMagicLink consumes a magic-link token and returns the authenticated
// person. Every failure mode is logged precisely and returned as-is; the
// handler collapses them into one generic message.
func (s *AuthService) VerifyMagicLink(tokenString string) (*model.Person, error) {
	token, err := s.tokens.VerifyAndConsume(tokenString, model.TokenMagicLink)
	if err != nil {
		s.logger.Warn("magic link verification failed", "error", err)
		return nil, err
	}

	person, err := s.persons.GetByID(token.PersonID)
	if err != nil {
		return nil, fmt.Errorf("load person: %w", err)
	}
	if person == nil {
		return nil, store.ErrTokenNotFound
	}
	return person, nil
}

// PeekPasswordReset validates a reset token without spending it, so the
// reset form can render. The submit that follows consumes it.
func (s *AuthService) PeekPasswordReset(tokenString string) error {
	_, err := s.tokens.Peek(tokenString, model.TokenPasswordReset)
	if err != nil {
		s.logger.Warn("password reset peek failed", "error", err)
	}
	return err
}

// CompletePasswordReset consumes the reset token and stores the new
// credential.
func (s *AuthService) CompletePasswordReset(tokenString, newPassword string) (*model.Person, error) {
	token, err := s.tokens.VerifyAndConsume(tokenString, model.TokenPasswordReset)
	if err != nil {
		s.logger.Warn("password reset verification failed", "error", err)
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.persons.SetPasswordHash(token.PersonID, string(hash)); err != nil {
		return nil, err
	}

	return s.persons.GetByID(token.PersonID)
}

// SetPassword stores a password credential for a person directly, e.g. when
// an organizer account is provisioned.
func (s *AuthService) SetPassword(personID int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.persons.SetPasswordHash(personID, string(hash))
}

// PasswordLogin authenticates an email/password pair. All failures return
// ErrInvalidCredentials.
func (s *AuthService) PasswordLogin(email, password string) (*model.Person, error) {
	person, err := s.persons.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("lookup person: %w", err)
	}
	if person == nil {
		return nil, ErrInvalidCredentials
	}

	hash, err := s.persons.GetPasswordHash(person.ID)
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return person, nil
}

// CleanupExpiredTokens removes tokens past their expiry. Called from the
// maintenance tick.
func (s *AuthService) CleanupExpiredTokens() (int64, error) {
	return s.tokens.DeleteExpired()
}
