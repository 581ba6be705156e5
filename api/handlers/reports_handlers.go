package handlers

import (
	"net/http"
	"time"

	"reqdesk/core/store"
	"reqdesk/core/utils"
)

type ReportsHandler struct {
	requests store.RequestsStore
	orgs     store.OrgsStore
	logger   *utils.Logger
}

func NewReportsHandler(requests store.RequestsStore, orgs store.OrgsStore, logger *utils.Logger) *ReportsHandler {
	return &ReportsHandler{requests: requests, orgs: orgs, logger: logger}
}

// Summary aggregates request volume by status, organization and month.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	byStatus, err := h.requests.CountByStatus(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	byOrg, err := h.requests.CountByOrg(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	since := time.Now().UTC().AddDate(-1, 0, 0)
	byMonth, err := h.requests.CountByMonth(r.Context(), since)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	orgs, err := h.orgs.List(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	type orgRow struct {
		OrgID int64  `json:"org_id"`
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	orgRows := make([]orgRow, 0, len(orgs))
	for _, org := range orgs {
		orgRows = append(orgRows, orgRow{OrgID: org.ID, Name: org.Name, Count: byOrg[org.ID]})
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"by_status": byStatus,
		"by_org":    orgRows,
		"by_month":  byMonth,
		"since":     since.Format("2006-01"),
	})
}
