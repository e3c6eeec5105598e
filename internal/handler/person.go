package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/dukerupert/shindig/internal/model"
	"github.com/dukerupert/shindig/internal/store"
)

type PersonHandler struct {
	personStore    *store.PersonStore
	householdStore *store.HouseholdStore
}

func NewPersonHandler(ps *store.PersonStore, hs *store.HouseholdStore) *PersonHandler {
	return &PersonHandler{personStore: ps, householdStore: hs}
}

type personRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

func (h *PersonHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req personRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	if req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "first_name is required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleAdult
	}
	if req.Role != model.RoleAdult && req.Role != model.RoleChild {
		writeError(w, http.StatusBadRequest, "role must be adult or child")
		return
	}

	person, err := h.personStore.Create(req.FirstName, strings.TrimSpace(req.LastName), strings.TrimSpace(req.Email), strings.TrimSpace(req.Phone), req.Role)
	if err != nil {
		log.Printf("failed to create person: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create person")
		return
	}

	writeJSON(w, http.StatusCreated, person)
}

func (h *PersonHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	person, err := h.personStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if person == nil {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (h *PersonHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.personStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}

	var req personRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	if req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "first_name is required")
		return
	}

	person, err := h.personStore.Update(id, req.FirstName, strings.TrimSpace(req.LastName), strings.TrimSpace(req.Email), strings.TrimSpace(req.Phone))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update person")
		return
	}
	writeJSON(w, http.StatusOK, person)
}

// Households lists every household the person currently belongs to.
func (h *PersonHandler) Households(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	households, err := h.householdStore.HouseholdsForPerson(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list households")
		return
	}
	if households == nil {
		households = []model.Household{}
	}
	writeJSON(w, http.StatusOK, households)
}

type tagRequest struct {
	Tag     string `json:"tag"`
	AddedBy *int64 `json:"added_by"`
}

func (h *PersonHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Tag = strings.TrimSpace(req.Tag)
	if req.Tag == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}

	if err := h.personStore.AddTag(id, req.Tag, req.AddedBy); err != nil {
		log.Printf("failed to add tag: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to add tag")
		return
	}

	tags, err := h.personStore.ListTags(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (h *PersonHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	tag := r.PathValue("tag")
	if tag == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}

	if err := h.personStore.RemoveTag(id, tag); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PersonHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	tags, err := h.personStore.ListTags(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}
