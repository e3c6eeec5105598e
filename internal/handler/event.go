package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/shindig/internal/model"
	"github.com/dukerupert/shindig/internal/service"
	"github.com/dukerupert/shindig/internal/store"
	"github.com/dukerupert/shindig/internal/websocket"
)

type EventHandler struct {
	eventStore  *store.EventStore
	invitations *service.InvitationService
	rsvps       *service.RSVPService
	hub         *websocket.Hub
}

func NewEventHandler(es *store.EventStore, is *service.InvitationService, rs *service.RSVPService, hub *websocket.Hub) *EventHandler {
	return &EventHandler{eventStore: es, invitations: is, rsvps: rs, hub: hub}
}

func (h *EventHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type eventRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	EventDate    string  `json:"event_date"`
	Venue        string  `json:"venue"`
	RSVPDeadline *string `json:"rsvp_deadline"`
	CreatedBy    *int64  `json:"created_by"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	eventDate, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "event_date must be RFC3339")
		return
	}

	var deadline *time.Time
	if req.RSVPDeadline != nil && *req.RSVPDeadline != "" {
		d, err := time.Parse(time.RFC3339, *req.RSVPDeadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "rsvp_deadline must be RFC3339")
			return
		}
		if !d.Before(eventDate) {
			writeError(w, http.StatusBadRequest, "rsvp_deadline must be before event_date")
			return
		}
		deadline = &d
	}

	event, err := h.eventStore.Create(req.Title, req.Description, eventDate, strings.TrimSpace(req.Venue), deadline, req.CreatedBy)
	if err != nil {
		log.Printf("failed to create event: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	event, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = model.EventPublished
	}
	if status != model.EventDraft && status != model.EventPublished && status != model.EventArchived {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	events, err := h.eventStore.ListByStatus(status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Publish moves a draft event to published, making its guest links live.
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if existing.Status == model.EventArchived {
		writeError(w, http.StatusConflict, "archived events cannot be published")
		return
	}

	event, err := h.eventStore.UpdateStatus(id, model.EventPublished)
	if err != nil {
		log.Printf("failed to publish event: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to publish event")
		return
	}

	h.broadcast(websocket.EventPublished(event.ID))
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	event, err := h.eventStore.UpdateStatus(id, model.EventArchived)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to archive event")
		return
	}

	h.broadcast(websocket.EventArchived(event.ID))
	writeJSON(w, http.StatusOK, event)
}

// Stats returns the dashboard snapshot: invitation progress plus RSVP counts.
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	event, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	invStats, err := h.invitations.Stats(id)
	if err != nil {
		log.Printf("failed to compute invitation stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	rsvpStats, err := h.rsvps.Stats(id)
	if err != nil {
		log.Printf("failed to compute rsvp stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event":       event,
		"invitations": invStats,
		"rsvps":       rsvpStats,
	})
}
