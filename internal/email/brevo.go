package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIURL = "https://api.brevo.com/v3/smtp/email"

type Client struct {
	apiKey      string
	senderEmail string
	senderName  string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Brevo endpoint, mainly for tests.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

// NewClient creates a Brevo transactional-email client. baseURL is the
// public address of this application, used to build links in email bodies.
func NewClient(apiKey, senderEmail, senderName, baseURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		baseURL:     baseURL,
		apiURL:      defaultAPIURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoEmail struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

type brevoResponse struct {
	MessageID string `json:"messageId"`
}

// Send delivers one email and returns the provider's message id.
func (c *Client) Send(toEmail, toName, subject, htmlBody string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("email client not configured: missing api key")
	}

	payload := brevoEmail{
		Sender:      brevoAddress{Email: c.senderEmail, Name: c.senderName},
		To:          []brevoAddress{{Email: toEmail, Name: toName}},
		Subject:     subject,
		HTMLContent: htmlBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("brevo API error: status %d: %s", resp.StatusCode, msg)
	}

	var br brevoResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return br.MessageID, nil
}

// SendInvitation emails an event invitation with the household's RSVP link.
func (c *Client) SendInvitation(toEmail, toName, eventTitle, eventUUID, accessToken string) (string, error) {
	subject := fmt.Sprintf("You're invited to %s", eventTitle)
	link := fmt.Sprintf("%s/rsvp/%s?token=%s", c.baseURL, eventUUID, accessToken)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>You're invited to <strong>%s</strong>!</p><p><a href="%s">View the invitation and RSVP</a></p>`,
		toName, eventTitle, link,
	)
	return c.Send(toEmail, toName, subject, htmlBody)
}

// SendMagicLink emails a passwordless sign-in link.
func (c *Client) SendMagicLink(toEmail, toName, token string, ttl time.Duration) (string, error) {
	link := fmt.Sprintf("%s/auth/verify?token=%s", c.baseURL, token)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p><a href="%s">Click here to sign in</a></p><p>This link expires in %d minutes and can be used once.</p>`,
		toName, link, int(ttl.Minutes()),
	)
	return c.Send(toEmail, toName, "Your sign-in link", htmlBody)
}

// SendPasswordReset emails a password reset link.
func (c *Client) SendPasswordReset(toEmail, toName, token string, ttl time.Duration) (string, error) {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", c.baseURL, token)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p><a href="%s">Click here to reset your password</a></p><p>This link expires in %d minutes and can be used once.</p><p>If you did not request this, you can ignore this email.</p>`,
		toName, link, int(ttl.Minutes()),
	)
	return c.Send(toEmail, toName, "Reset your password", htmlBody)
}

// SendRSVPConfirmation emails a guest after their response was recorded.
func (c *Client) SendRSVPConfirmation(toEmail, toName, eventTitle, status string) (string, error) {
	subject := fmt.Sprintf("RSVP received for %s", eventTitle)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>We recorded your response for <strong>%s</strong>: %s.</p><p>You can update it any time using your invitation link.</p>`,
		toName, eventTitle, status,
	)
	return c.Send(toEmail, toName, subject, htmlBody)
}

// SendRSVPReminder nudges a household that has not responded yet.
func (c *Client) SendRSVPReminder(toEmail, toName, eventTitle, eventUUID, accessToken string, deadline time.Time) (string, error) {
	subject := fmt.Sprintf("Reminder: RSVP for %s", eventTitle)
	link := fmt.Sprintf("%s/rsvp/%s?token=%s", c.baseURL, eventUUID, accessToken)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>We haven't heard back about <strong>%s</strong>. Please <a href="%s">RSVP</a> by %s.</p>`,
		toName, eventTitle, link, deadline.Format("January 2, 2006"),
	)
	return c.Send(toEmail, toName, subject, htmlBody)
}
