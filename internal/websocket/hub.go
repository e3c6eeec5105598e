package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is one live dashboard update. Hosts keep the event page open
// during the RSVP window, so mutations push what changed instead of a
// bare refresh signal.
type Message struct {
	Type         string `json:"type"`
	EventID      int64  `json:"event_id,omitempty"`
	InvitationID int64  `json:"invitation_id,omitempty"`
	HouseholdID  int64  `json:"household_id,omitempty"`
	ByHost       bool   `json:"by_host,omitempty"`
	Count        int    `json:"count,omitempty"`
	Sent         int    `json:"sent,omitempty"`
	Failed       int    `json:"failed,omitempty"`
}

func EventPublished(eventID int64) Message {
	return Message{Type: "event_published", EventID: eventID}
}

func EventArchived(eventID int64) Message {
	return Message{Type: "event_archived", EventID: eventID}
}

func InvitationCreated(eventID, invitationID int64) Message {
	return Message{Type: "invitation_created", EventID: eventID, InvitationID: invitationID}
}

// InvitationsCreated reports a bulk invite by household count.
func InvitationsCreated(eventID int64, count int) Message {
	return Message{Type: "invitation_created", EventID: eventID, Count: count}
}

func InvitationSent(eventID, invitationID int64) Message {
	return Message{Type: "invitation_sent", EventID: eventID, InvitationID: invitationID}
}

// InvitationBatchSent reports a send-pending or send-all run.
func InvitationBatchSent(eventID int64, sent, failed int) Message {
	return Message{Type: "invitation_sent", EventID: eventID, Sent: sent, Failed: failed}
}

func RSVPUpdated(eventID, householdID int64, byHost bool) Message {
	return Message{Type: "rsvp_updated", EventID: eventID, HouseholdID: householdID, ByHost: byHost}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop rather than block the caller
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
