package service

import "time"

// Config carries the externally configurable knobs of the RSVP core. Zero
// values are filled in by Normalize, so a partially populated Config from
// env vars is fine.
type Config struct {
	MagicLinkTTL       time.Duration
	PasswordResetTTL   time.Duration
	InvitationTokenTTL time.Duration
	TokenRateLimit     int
	TokenRateWindow    time.Duration
	ReminderLeadDays   int
}

// DefaultConfig returns the stock settings: 30-minute magic links, 60-minute
// reset tokens, 90-day guest access tokens, 5 token issues per hour.
func DefaultConfig() Config {
	return Config{
		MagicLinkTTL:       30 * time.Minute,
		PasswordResetTTL:   60 * time.Minute,
		InvitationTokenTTL: 90 * 24 * time.Hour,
		TokenRateLimit:     5,
		TokenRateWindow:    time.Hour,
		ReminderLeadDays:   7,
	}
}

// Normalize fills unset fields with defaults.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.MagicLinkTTL <= 0 {
		c.MagicLinkTTL = def.MagicLinkTTL
	}
	if c.PasswordResetTTL <= 0 {
		c.PasswordResetTTL = def.PasswordResetTTL
	}
	if c.InvitationTokenTTL <= 0 {
		c.InvitationTokenTTL = def.InvitationTokenTTL
	}
	if c.TokenRateLimit <= 0 {
		c.TokenRateLimit = def.TokenRateLimit
	}
	if c.TokenRateWindow <= 0 {
		c.TokenRateWindow = def.TokenRateWindow
	}
	if c.ReminderLeadDays <= 0 {
		c.ReminderLeadDays = def.ReminderLeadDays
	}
	return c
}
