package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"reqdesk/core/auth"
	"reqdesk/core/rbac"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

type RequestsHandler struct {
	requests      store.RequestsStore
	users         store.UsersStore
	orgs          store.OrgsStore
	notifications store.NotificationsStore
	audits        store.AuditStore
	logger        *utils.Logger
}

func NewRequestsHandler(requests store.RequestsStore, users store.UsersStore, orgs store.OrgsStore, notifications store.NotificationsStore, audits store.AuditStore, logger *utils.Logger) *RequestsHandler {
	return &RequestsHandler{requests: requests, users: users, orgs: orgs, notifications: notifications, audits: audits, logger: logger}
}

func sessionFrom(r *http.Request) *store.SessionRecord {
	if v := r.Context().Value(auth.SessionContextKey); v != nil {
		return v.(*store.SessionRecord)
	}
	return nil
}

type submitRequestBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Submit files a new document request for the caller's organization.
func (h *RequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	user, err := h.users.Get(r.Context(), sess.UserID)
	if err != nil || user == nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if user.OrgID == nil {
		http.Error(w, "account has no organization", http.StatusForbidden)
		return
	}
	org, err := h.orgs.Get(r.Context(), *user.OrgID)
	if err != nil || org == nil || !org.Active {
		http.Error(w, "organization inactive", http.StatusForbidden)
		return
	}
	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	body.Title = strings.TrimSpace(body.Title)
	if body.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	req := &store.DocumentRequest{
		OrgID:       *user.OrgID,
		Title:       body.Title,
		Description: body.Description,
		SubmittedBy: user.ID,
	}
	id, err := h.requests.Create(r.Context(), req)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	req.ID = id
	h.notifyStaff(r, req, "request.submitted", org.Name+" filed "+req.RefNo+": "+req.Title)
	_ = h.audits.Log(r.Context(), sess.Handle, "requests.submitted", "ref="+req.RefNo)
	writeJSON(w, http.StatusCreated, map[string]any{"request": req})
}

// List returns the requests visible to the caller. Organization accounts
// only ever see their own organization's requests.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	filter := store.RequestFilter{Status: strings.TrimSpace(r.URL.Query().Get("status"))}
	if sess.Role == rbac.RoleOrganization {
		user, err := h.users.Get(r.Context(), sess.UserID)
		if err != nil || user == nil || user.OrgID == nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		filter.OrgID = user.OrgID
	} else if raw := r.URL.Query().Get("org_id"); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		filter.OrgID = &id
	}
	requests, err := h.requests.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": req})
}

// loadVisible fetches the request and applies the organization scoping
// rule. On failure the response has already been written.
func (h *RequestsHandler) loadVisible(w http.ResponseWriter, r *http.Request) (*store.DocumentRequest, bool) {
	sess := sessionFrom(r)
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return nil, false
	}
	req, err := h.requests.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return nil, false
	}
	if req == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}
	if sess.Role == rbac.RoleOrganization {
		user, err := h.users.Get(r.Context(), sess.UserID)
		if err != nil || user == nil || user.OrgID == nil || *user.OrgID != req.OrgID {
			http.Error(w, "not found", http.StatusNotFound)
			return nil, false
		}
	}
	return req, true
}

// Claim moves a submitted request into processing and assigns the caller.
func (h *RequestsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	req, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	if err := h.requests.Transition(r.Context(), req.ID, req.Status, store.RequestStatusProcessing, "", now); err != nil {
		h.writeTransitionError(w, err)
		return
	}
	if err := h.requests.Assign(r.Context(), req.ID, sess.UserID); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	req.Status = store.RequestStatusProcessing
	req.AssigneeID = &sess.UserID
	h.notifyOrg(r, req, "request.processing", req.RefNo+" is being processed")
	_ = h.audits.Log(r.Context(), sess.Handle, "requests.claimed", "ref="+req.RefNo)
	writeJSON(w, http.StatusOK, map[string]any{"request": req})
}

type respondBody struct {
	Response string `json:"response"`
}

// Respond answers a request in processing.
func (h *RequestsHandler) Respond(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, store.RequestStatusAnswered, "request.answered", "requests.answered")
}

// Reject declines a request. Allowed from submitted or processing.
func (h *RequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, store.RequestStatusRejected, "request.rejected", "requests.rejected")
}

func (h *RequestsHandler) finish(w http.ResponseWriter, r *http.Request, target, kind, auditAction string) {
	sess := sessionFrom(r)
	req, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	var body respondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	body.Response = strings.TrimSpace(body.Response)
	if target == store.RequestStatusAnswered && body.Response == "" {
		http.Error(w, "response is required", http.StatusBadRequest)
		return
	}
	now := time.Now().UTC()
	if err := h.requests.Transition(r.Context(), req.ID, req.Status, target, body.Response, now); err != nil {
		h.writeTransitionError(w, err)
		return
	}
	req.Status = target
	req.Response = body.Response
	req.RespondedAt = &now
	h.notifyOrg(r, req, kind, req.RefNo+" was "+target)
	_ = h.audits.Log(r.Context(), sess.Handle, auditAction, "ref="+req.RefNo)
	writeJSON(w, http.StatusOK, map[string]any{"request": req})
}

func (h *RequestsHandler) writeTransitionError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrBadTransition) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, "server error", http.StatusInternalServerError)
}

func (h *RequestsHandler) notifyStaff(r *http.Request, req *store.DocumentRequest, kind, message string) {
	ids, err := h.users.IDsByRole(r.Context(), string(rbac.RoleAdministrator), string(rbac.RoleUser))
	if err != nil {
		h.logNotifyError(kind, err)
		return
	}
	if err := h.notifications.Notify(r.Context(), ids, kind, message, &req.ID); err != nil {
		h.logNotifyError(kind, err)
	}
}

func (h *RequestsHandler) notifyOrg(r *http.Request, req *store.DocumentRequest, kind, message string) {
	ids, err := h.users.IDsByOrg(r.Context(), req.OrgID)
	if err != nil {
		h.logNotifyError(kind, err)
		return
	}
	if err := h.notifications.Notify(r.Context(), ids, kind, message, &req.ID); err != nil {
		h.logNotifyError(kind, err)
	}
}

func (h *RequestsHandler) logNotifyError(kind string, err error) {
	if h.logger != nil {
		h.logger.Errorf("notify %s: %v", kind, err)
	}
}
