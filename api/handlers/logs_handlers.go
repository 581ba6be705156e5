package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"reqdesk/core/store"
)

type LogsHandler struct {
	audits store.AuditStore
}

func NewLogsHandler(audits store.AuditStore) *LogsHandler {
	return &LogsHandler{audits: audits}
}

func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	var (
		records []store.AuditRecord
		err     error
	)
	if actor := strings.TrimSpace(r.URL.Query().Get("actor")); actor != "" {
		records, err = h.audits.ListByActor(r.Context(), actor, limit)
	} else {
		records, err = h.audits.List(r.Context(), limit)
	}
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": records})
}
