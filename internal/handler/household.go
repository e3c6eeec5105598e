package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/shindig/internal/model"
	"github.com/dukerupert/shindig/internal/store"
)

type HouseholdHandler struct {
	householdStore *store.HouseholdStore
	personStore    *store.PersonStore
}

func NewHouseholdHandler(hs *store.HouseholdStore, ps *store.PersonStore) *HouseholdHandler {
	return &HouseholdHandler{householdStore: hs, personStore: ps}
}

type householdRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	household, err := h.householdStore.Create(req.Name, strings.TrimSpace(req.Address))
	if err != nil {
		log.Printf("failed to create household: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}
	writeJSON(w, http.StatusCreated, household)
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	household, err := h.householdStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get household")
		return
	}
	if household == nil {
		writeError(w, http.StatusNotFound, "household not found")
		return
	}
	writeJSON(w, http.StatusOK, household)
}

func (h *HouseholdHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.householdStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get household")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "household not found")
		return
	}

	var req householdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	household, err := h.householdStore.Update(id, req.Name, strings.TrimSpace(req.Address))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update household")
		return
	}
	writeJSON(w, http.StatusOK, household)
}

// Archive flags the household and end-dates every active membership.
func (h *HouseholdHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.householdStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get household")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "household not found")
		return
	}

	if err := h.householdStore.Archive(id); err != nil {
		log.Printf("failed to archive household: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to archive household")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type memberRequest struct {
	PersonID int64  `json:"person_id"`
	Role     string `json:"role"`
}

func (h *HouseholdHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PersonID == 0 {
		writeError(w, http.StatusBadRequest, "person_id is required")
		return
	}
	if req.Role == "" {
		req.Role = "member"
	}

	person, err := h.personStore.GetByID(req.PersonID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if person == nil {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}

	membership, err := h.householdStore.AddMember(id, req.PersonID, req.Role)
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusConflict, "person is already an active member")
		return
	}
	if err != nil {
		log.Printf("failed to add member: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

// RemoveMember end-dates the active membership. The historical row survives.
func (h *HouseholdHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
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

	if err := h.householdStore.EndMembership(id, personID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HouseholdHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	members, err := h.householdStore.ActiveMembers(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.Person{}
	}
	writeJSON(w, http.StatusOK, members)
}
