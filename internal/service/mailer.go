package service

import "time"

// Mailer is the outbound email boundary. The services decide who receives a
// message and record the outcome; subjects and bodies are the transport
// side's concern. email.Client satisfies this.
type Mailer interface {
	Configured() bool
	SendInvitation(toEmail, toName, eventTitle, eventUUID, accessToken string) (string, error)
	SendMagicLink(toEmail, toName, token string, ttl time.Duration) (string, error)
	SendPasswordReset(toEmail, toName, token string, ttl time.Duration) (string, error)
	SendRSVPConfirmation(toEmail, toName, eventTitle, status string) (string, error)
	SendRSVPReminder(toEmail, toName, eventTitle, eventUUID, accessToken string, deadline time.Time) (string, error)
}
