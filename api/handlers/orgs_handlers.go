package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"reqdesk/core/store"
	"reqdesk/core/utils"
)

type OrgsHandler struct {
	orgs   store.OrgsStore
	audits store.AuditStore
	logger *utils.Logger
}

func NewOrgsHandler(orgs store.OrgsStore, audits store.AuditStore, logger *utils.Logger) *OrgsHandler {
	return &OrgsHandler{orgs: orgs, audits: audits, logger: logger}
}

func (h *OrgsHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.List(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (h *OrgsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	org, err := h.orgs.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if org == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organization": org})
}

type orgRequest struct {
	Name         string `json:"name"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
}

func (h *OrgsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req orgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	existing, err := h.orgs.FindByName(r.Context(), req.Name)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "name already in use", http.StatusConflict)
		return
	}
	org := &store.Organization{
		Name:         req.Name,
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		Active:       true,
	}
	id, err := h.orgs.Create(r.Context(), org)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	org.ID = id
	_ = h.audits.Log(r.Context(), actorHandle(r), "orgs.created", "name="+org.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"organization": org})
}

func (h *OrgsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	org, err := h.orgs.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if org == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	var req orgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		org.Name = name
	}
	org.ContactName = strings.TrimSpace(req.ContactName)
	org.ContactEmail = strings.TrimSpace(req.ContactEmail)
	if err := h.orgs.Update(r.Context(), org); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), actorHandle(r), "orgs.updated", "name="+org.Name)
	writeJSON(w, http.StatusOK, map[string]any{"organization": org})
}

func (h *OrgsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	org, err := h.orgs.Get(r.Context(), id)
	if err != nil || org == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := h.orgs.SetActive(r.Context(), id, false); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), actorHandle(r), "orgs.deactivated", "name="+org.Name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
