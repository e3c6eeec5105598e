package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/dukerupert/shindig/internal/model"
	"github.com/dukerupert/shindig/internal/service"
	"github.com/dukerupert/shindig/internal/store"
	"github.com/dukerupert/shindig/internal/websocket"
)

type InvitationHandler struct {
	invitations     *service.InvitationService
	invitationStore *store.InvitationStore
	hub             *websocket.Hub
}

func NewInvitationHandler(is *service.InvitationService, ivs *store.InvitationStore, hub *websocket.Hub) *InvitationHandler {
	return &InvitationHandler{invitations: is, invitationStore: ivs, hub: hub}
}

func (h *InvitationHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type invitationRequest struct {
	HouseholdID  int64   `json:"household_id"`
	HouseholdIDs []int64 `json:"household_ids"`
}

// Create invites one household, or several when household_ids is given.
// Re-inviting an already invited household returns the existing invitation.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req invitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if len(req.HouseholdIDs) > 0 {
		invitations, err := h.invitations.CreateBulk(eventID, req.HouseholdIDs)
		if err != nil {
			log.Printf("failed to create invitations: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to create invitations")
			return
		}
		h.broadcast(websocket.InvitationsCreated(eventID, len(invitations)))
		writeJSON(w, http.StatusCreated, invitations)
		return
	}

	if req.HouseholdID == 0 {
		writeError(w, http.StatusBadRequest, "household_id or household_ids is required")
		return
	}

	invitation, err := h.invitations.Create(eventID, req.HouseholdID)
	if err != nil {
		log.Printf("failed to create invitation: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create invitation")
		return
	}

	h.broadcast(websocket.InvitationCreated(eventID, invitation.ID))
	writeJSON(w, http.StatusCreated, invitation)
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	invitations, err := h.invitationStore.ListByEvent(eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list invitations")
		return
	}
	if invitations == nil {
		invitations = []model.Invitation{}
	}
	writeJSON(w, http.StatusOK, invitations)
}

// Send emails the invitation to every contactable member of the household.
func (h *InvitationHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	invitation, err := h.invitations.Send(id)
	if errors.Is(err, service.ErrNoRecipients) {
		writeError(w, http.StatusUnprocessableEntity, "household has no members with an email address")
		return
	}
	if err != nil {
		log.Printf("failed to send invitation: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to send invitation")
		return
	}

	h.broadcast(websocket.InvitationSent(invitation.EventID, invitation.ID))
	writeJSON(w, http.StatusOK, invitation)
}

// SendToPerson resends the invitation to a single household member.
func (h *InvitationHandler) SendToPerson(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	personID, err := strconv.ParseInt(r.PathValue("person_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid person_id")
		return
	}

	invitation, err := h.invitations.SendToPerson(id, personID)
	if errors.Is(err, service.ErrNoRecipients) {
		writeError(w, http.StatusUnprocessableEntity, "person has no email address or is not a member")
		return
	}
	if err != nil {
		log.Printf("failed to send invitation to person: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to send invitation")
		return
	}

	h.broadcast(websocket.InvitationSent(invitation.EventID, invitation.ID))
	writeJSON(w, http.StatusOK, invitation)
}

// SendPending fans out to every household that has not been sent an
// invitation yet.
func (h *InvitationHandler) SendPending(w http.ResponseWriter, r *http.Request) {
	h.sendBatch(w, r, h.invitations.SendPending)
}

// SendAll resends to every invited household, sent or not.
func (h *InvitationHandler) SendAll(w http.ResponseWriter, r *http.Request) {
	h.sendBatch(w, r, h.invitations.SendAll)
}

func (h *InvitationHandler) sendBatch(w http.ResponseWriter, r *http.Request, send func(int64) (*service.SendReport, error)) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	report, err := send(eventID)
	if err != nil {
		log.Printf("failed to send invitations: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to send invitations")
		return
	}

	h.broadcast(websocket.InvitationBatchSent(eventID, report.Success, report.Failure))
	writeJSON(w, http.StatusOK, report)
}

func (h *InvitationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	stats, err := h.invitations.Stats(eventID)
	if err != nil {
		log.Printf("failed to compute invitation stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
