package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendInvitation(t *testing.T) {
	var received brevoEmail
	var gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId": "msg-123"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "host@example.com", "Shindig", "https://shindig.test", WithAPIURL(server.URL))

	id, err := client.SendInvitation("alice@example.com", "Alice", "Summer BBQ", "ev-uuid-1", "tok-abc")
	if err != nil {
		t.Fatalf("send invitation: %v", err)
	}
	if id != "msg-123" {
		t.Errorf("message id = %q, want %q", id, "msg-123")
	}
	if gotKey != "test-key" {
		t.Errorf("api key = %q, want %q", gotKey, "test-key")
	}
	if len(received.To) != 1 || received.To[0].Email != "alice@example.com" {
		t.Errorf("To = %v, want alice@example.com", received.To)
	}
	if received.Sender.Email != "host@example.com" {
		t.Errorf("Sender = %q, want %q", received.Sender.Email, "host@example.com")
	}
	if received.Subject != "You're invited to Summer BBQ" {
		t.Errorf("Subject = %q, want invitation subject", received.Subject)
	}
	if !strings.Contains(received.HTMLContent, "https://shindig.test/rsvp/ev-uuid-1?token=tok-abc") {
		t.Errorf("body missing RSVP link: %q", received.HTMLContent)
	}
}

func TestSendMagicLinkBody(t *testing.T) {
	var received brevoEmail

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId": "msg-456"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "host@example.com", "Shindig", "https://shindig.test", WithAPIURL(server.URL))

	if _, err := client.SendMagicLink("bob@example.com", "Bob", "tok-xyz", 30*time.Minute); err != nil {
		t.Fatalf("send magic link: %v", err)
	}
	if received.Subject != "Your sign-in link" {
		t.Errorf("Subject = %q, want sign-in subject", received.Subject)
	}
	if !strings.Contains(received.HTMLContent, "https://shindig.test/auth/verify?token=tok-xyz") {
		t.Errorf("body missing verify link: %q", received.HTMLContent)
	}
	if !strings.Contains(received.HTMLContent, "30 minutes") {
		t.Errorf("body missing expiry notice: %q", received.HTMLContent)
	}
}

func TestSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Key not found"}`))
	}))
	defer server.Close()

	client := NewClient("bad-key", "host@example.com", "Shindig", "https://shindig.test", WithAPIURL(server.URL))

	_, err := client.SendRSVPConfirmation("alice@example.com", "Alice", "Summer BBQ", "attending")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestSendNotConfigured(t *testing.T) {
	client := NewClient("", "host@example.com", "Shindig", "https://shindig.test")

	if client.Configured() {
		t.Error("Configured() = true with empty api key")
	}
	if _, err := client.Send("alice@example.com", "Alice", "subject", "body"); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

func TestSendReminderDeadlineFormat(t *testing.T) {
	var received brevoEmail

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId": "msg-789"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "host@example.com", "Shindig", "https://shindig.test", WithAPIURL(server.URL))

	deadline := time.Date(2026, time.September, 12, 0, 0, 0, 0, time.UTC)
	if _, err := client.SendRSVPReminder("alice@example.com", "Alice", "Summer BBQ", "ev-uuid-1", "tok-abc", deadline); err != nil {
		t.Fatalf("send reminder: %v", err)
	}
	if !strings.Contains(received.HTMLContent, "September 12, 2026") {
		t.Errorf("body missing formatted deadline: %q", received.HTMLContent)
	}
	if !strings.Contains(received.HTMLContent, "/rsvp/ev-uuid-1?token=tok-abc") {
		t.Errorf("body missing RSVP link: %q", received.HTMLContent)
	}
}
