package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"reqdesk/config"
	"reqdesk/core/auth"
	"reqdesk/core/rbac"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

type AccountsHandler struct {
	cfg      *config.AppConfig
	svc      *auth.Service
	users    store.UsersStore
	orgs     store.OrgsStore
	sessions store.SessionStore
	audits   store.AuditStore
	logger   *utils.Logger
}

func NewAccountsHandler(cfg *config.AppConfig, svc *auth.Service, users store.UsersStore, orgs store.OrgsStore, sessions store.SessionStore, audits store.AuditStore, logger *utils.Logger) *AccountsHandler {
	return &AccountsHandler{cfg: cfg, svc: svc, users: users, orgs: orgs, sessions: sessions, audits: audits, logger: logger}
}

func actorHandle(r *http.Request) string {
	if v := r.Context().Value(auth.SessionContextKey); v != nil {
		return v.(*store.SessionRecord).Handle
	}
	return ""
}

func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	out := make([]auth.UserDTO, 0, len(users))
	for i := range users {
		out = append(out, auth.NewUserDTO(&users[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

type createUserRequest struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	OrgID       *int64 `json:"org_id"`
}

func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req.Handle = strings.ToLower(strings.TrimSpace(req.Handle))
	if err := utils.ValidateHandle(req.Handle); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	role := rbac.Resolve(req.Role, "")
	if role == rbac.RoleOrganization && req.OrgID == nil {
		http.Error(w, "organization account needs org_id", http.StatusBadRequest)
		return
	}
	if req.OrgID != nil {
		org, err := h.orgs.Get(r.Context(), *req.OrgID)
		if err != nil || org == nil {
			http.Error(w, "unknown organization", http.StatusBadRequest)
			return
		}
	}
	existing, err := h.users.FindByHandle(r.Context(), req.Handle)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "handle already in use", http.StatusConflict)
		return
	}
	user := &store.User{
		Handle:      req.Handle,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Email:       strings.TrimSpace(req.Email),
		Role:        string(role),
		OrgID:       req.OrgID,
		Active:      true,
	}
	id, err := h.users.Create(r.Context(), user)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	user.ID = id
	// New accounts start with a temporary credential; there is no usable
	// permanent password until the first change.
	secret, err := h.svc.IssueTempPassword(r.Context(), id, actorHandle(r))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), actorHandle(r), "accounts.created", "handle="+user.Handle)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":          auth.NewUserDTO(user),
		"temp_password": secret,
	})
}

type updateUserRequest struct {
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
	Role        *string `json:"role"`
	OrgID       *int64  `json:"org_id"`
	Active      *bool   `json:"active"`
}

func (h *AccountsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Role != nil {
		user.Role = string(rbac.Resolve(*req.Role, user.LegacyRole))
	}
	if req.OrgID != nil {
		org, err := h.orgs.Get(r.Context(), *req.OrgID)
		if err != nil || org == nil {
			http.Error(w, "unknown organization", http.StatusBadRequest)
			return
		}
		user.OrgID = req.OrgID
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := h.users.Update(r.Context(), user); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if req.Active != nil && !*req.Active {
		_, _ = h.sessions.DeleteAllForUser(r.Context(), user.ID, actorHandle(r))
	}
	_ = h.audits.Log(r.Context(), actorHandle(r), "accounts.updated", "handle="+user.Handle)
	writeJSON(w, http.StatusOK, map[string]any{"user": auth.NewUserDTO(user)})
}

func (h *AccountsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil || user == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := h.users.SetActive(r.Context(), id, false); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_, _ = h.sessions.DeleteAllForUser(r.Context(), id, actorHandle(r))
	_ = h.audits.Log(r.Context(), actorHandle(r), "accounts.deactivated", "handle="+user.Handle)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AccountsHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.svc.UnlockAccount(r.Context(), id, actorHandle(r)); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AccountsHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	secret, err := h.svc.IssueTempPassword(r.Context(), id, actorHandle(r))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"temp_password": secret,
		"expires_in":    h.cfg.EffectiveTempPasswordTTL().String(),
	})
}

func (h *AccountsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	sessions, err := h.sessions.ListByUser(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *AccountsHandler) KillSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	n, err := h.sessions.DeleteAllForUser(r.Context(), id, actorHandle(r))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), actorHandle(r), "accounts.sessions_killed", time.Now().UTC().Format(time.RFC3339))
	writeJSON(w, http.StatusOK, map[string]any{"revoked": n})
}
