package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/shindig/internal/model"
	"github.com/dukerupert/shindig/internal/service"
	"github.com/dukerupert/shindig/internal/store"
	"github.com/dukerupert/shindig/internal/websocket"
)

type RSVPHandler struct {
	rsvps          *service.RSVPService
	invitations    *service.InvitationService
	rsvpStore      *store.RSVPStore
	eventStore     *store.EventStore
	householdStore *store.HouseholdStore
	hub            *websocket.Hub
}

func NewRSVPHandler(
	rs *service.RSVPService,
	is *service.InvitationService,
	rvs *store.RSVPStore,
	es *store.EventStore,
	hs *store.HouseholdStore,
	hub *websocket.Hub,
) *RSVPHandler {
	return &RSVPHandler{
		rsvps:          rs,
		invitations:    is,
		rsvpStore:      rvs,
		eventStore:     es,
		householdStore: hs,
		hub:            hub,
	}
}

func (h *RSVPHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// resolve maps the capability token to its invitation and published event.
// Every failure collapses to a generic not-found so the token cannot be probed.
func (h *RSVPHandler) resolve(w http.ResponseWriter, r *http.Request) (*model.Invitation, *model.Event, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return nil, nil, false
	}

	invitation, err := h.invitations.ResolveToken(token)
	if err != nil {
		log.Printf("failed to resolve rsvp token: %v", err)
		writeError(w, http.StatusNotFound, invalidLinkMsg)
		return nil, nil, false
	}
	if invitation == nil {
		writeError(w, http.StatusNotFound, invalidLinkMsg)
		return nil, nil, false
	}

	event, err := h.eventStore.GetByID(invitation.EventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return nil, nil, false
	}
	if event == nil || !event.Published() {
		writeError(w, http.StatusNotFound, invalidLinkMsg)
		return nil, nil, false
	}

	return invitation, event, true
}

// GuestView returns everything the RSVP page needs: the event, the
// household's members, and their current responses.
func (h *RSVPHandler) GuestView(w http.ResponseWriter, r *http.Request) {
	invitation, event, ok := h.resolve(w, r)
	if !ok {
		return
	}

	household, err := h.householdStore.GetByID(invitation.HouseholdID)
	if err != nil || household == nil {
		writeError(w, http.StatusInternalServerError, "failed to get household")
		return
	}
	members, err := h.householdStore.ActiveMembers(invitation.HouseholdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	rsvps, err := h.rsvps.HouseholdRSVPs(event.ID, invitation.HouseholdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rsvps")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event":           event,
		"household":       household,
		"members":         members,
		"rsvps":           rsvps,
		"deadline_passed": event.DeadlinePassed(time.Now()),
	})
}

type rsvpEntry struct {
	Status string  `json:"status"`
	Note   *string `json:"note"`
}

type rsvpSubmission struct {
	Responses   map[string]rsvpEntry `json:"responses"`
	SubmittedBy *int64               `json:"submitted_by"`
}

func (s rsvpSubmission) updates() (map[int64]service.RSVPUpdate, error) {
	updates := make(map[int64]service.RSVPUpdate, len(s.Responses))
	for key, entry := range s.Responses {
		personID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, err
		}
		updates[personID] = service.RSVPUpdate{Status: entry.Status, Note: entry.Note}
	}
	return updates, nil
}

// GuestSubmit applies a household's responses through the capability token.
func (h *RSVPHandler) GuestSubmit(w http.ResponseWriter, r *http.Request) {
	invitation, event, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if event.DeadlinePassed(time.Now()) {
		writeError(w, http.StatusConflict, "the RSVP deadline has passed")
		return
	}

	var req rsvpSubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Responses) == 0 {
		writeError(w, http.StatusBadRequest, "responses are required")
		return
	}
	updates, err := req.updates()
	if err != nil {
		writeError(w, http.StatusBadRequest, "response keys must be person ids")
		return
	}

	rsvps, err := h.rsvps.Apply(event.ID, invitation.HouseholdID, updates, req.SubmittedBy)
	if errors.Is(err, service.ErrInvalidStatus) {
		writeError(w, http.StatusBadRequest, "invalid rsvp status")
		return
	}
	if errors.Is(err, service.ErrForbiddenPerson) {
		writeError(w, http.StatusForbidden, "response names a person outside the household")
		return
	}
	if err != nil {
		log.Printf("failed to apply rsvps: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save responses")
		return
	}

	h.broadcast(websocket.RSVPUpdated(event.ID, invitation.HouseholdID, false))
	writeJSON(w, http.StatusOK, rsvps)
}

type hostUpdateRequest struct {
	rsvpSubmission
	HostPersonID int64 `json:"host_person_id"`
}

// HostUpdate lets a host correct a household's responses, for example after
// a phone call. No confirmation emails go out for host edits.
func (h *RSVPHandler) HostUpdate(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	householdID, err := strconv.ParseInt(r.PathValue("household_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household_id")
		return
	}

	var req hostUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.HostPersonID == 0 {
		writeError(w, http.StatusBadRequest, "host_person_id is required")
		return
	}
	if len(req.Responses) == 0 {
		writeError(w, http.StatusBadRequest, "responses are required")
		return
	}
	updates, err := req.updates()
	if err != nil {
		writeError(w, http.StatusBadRequest, "response keys must be person ids")
		return
	}

	rsvps, err := h.rsvps.ApplyByHost(eventID, householdID, updates, req.HostPersonID)
	if errors.Is(err, service.ErrInvalidStatus) {
		writeError(w, http.StatusBadRequest, "invalid rsvp status")
		return
	}
	if errors.Is(err, service.ErrForbiddenPerson) {
		writeError(w, http.StatusForbidden, "response names a person outside the household")
		return
	}
	if err != nil {
		log.Printf("failed to apply host rsvp update: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save responses")
		return
	}

	h.broadcast(websocket.RSVPUpdated(eventID, householdID, true))
	writeJSON(w, http.StatusOK, rsvps)
}

// ListByEvent returns every response row for the host dashboard.
func (h *RSVPHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	rsvps, err := h.rsvpStore.ListByEvent(eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rsvps")
		return
	}
	if rsvps == nil {
		rsvps = []model.RSVP{}
	}
	writeJSON(w, http.StatusOK, rsvps)
}

func (h *RSVPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	stats, err := h.rsvps.Stats(eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
