package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

var requestRequired = []string{"equipment_id", "maintenance_type", "description", "schedule_date"}

// ListRequests handles GET /api/maintenance, newest schedule first.
func (h *MaintenanceHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r, h.itemsPerPage)
	if err != nil {
		respondError(w, r, err)
		return
	}
	domain := equalsFilters(r, nil, "state", "maintenance_type", "equipment_id", "team_id", "priority")
	switch r.URL.Query().Get("is_overdue") {
	case "true":
		domain = append(domain, orm.Cond("is_overdue", "=", true))
	case "false":
		domain = append(domain, orm.Cond("is_overdue", "=", false))
	}
	domain = searchFilter(r, domain, "name")

	list, err := h.svc.SearchRequests(r.Context(), domain, orm.SearchOptions{Limit: limit, Offset: offset, Order: "schedule_date DESC"})
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.svc.CountRequests(r.Context(), domain)
	if err != nil {
		respondError(w, r, err)
		return
	}
	records := make([]map[string]interface{}, 0, len(list))
	for _, req := range list {
		records = append(records, req.Read())
	}
	respondPage(w, records, total, limit, offset)
}

// GetRequest handles GET /api/maintenance/{id}
func (h *MaintenanceHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, req.Read(), "")
}

// CreateRequest handles POST /api/maintenance
func (h *MaintenanceHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	vals, err := decodeValues(r)
	if err == nil {
		err = requireFields(vals, requestRequired...)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := h.svc.CreateRequest(r.Context(), vals)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, req.Read(), "Maintenance request created successfully")
}

// UpdateRequest handles PUT /api/maintenance/{id}
func (h *MaintenanceHandler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	vals, err := decodeValues(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.svc.WriteRequest(r.Context(), req, vals); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, req.Read(), "Request updated successfully")
}

// DeleteRequest handles DELETE /api/maintenance/{id}
func (h *MaintenanceHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRequest(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "Request deleted successfully")
}

func (h *MaintenanceHandler) requestAction(w http.ResponseWriter, r *http.Request, action func(context.Context, models.Request) error, message string) {
	req, err := h.svc.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := action(r.Context(), req); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, req.Read(), message)
}

// StartRequest handles POST /api/maintenance/{id}/start
func (h *MaintenanceHandler) StartRequest(w http.ResponseWriter, r *http.Request) {
	h.requestAction(w, r, h.svc.StartRequest, "Maintenance started")
}

// CompleteRequest handles POST /api/maintenance/{id}/done
func (h *MaintenanceHandler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	h.requestAction(w, r, h.svc.CompleteRequest, "Maintenance completed")
}

// CancelRequest handles POST /api/maintenance/{id}/cancel
func (h *MaintenanceHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.requestAction(w, r, h.svc.CancelRequest, "Maintenance cancelled")
}

// Kanban handles GET /api/maintenance/kanban
func (h *MaintenanceHandler) Kanban(w http.ResponseWriter, r *http.Request) {
	board, err := h.svc.Kanban(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, board, "")
}

// Calendar handles GET /api/maintenance/calendar?start&end
func (h *MaintenanceHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.svc.Calendar(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, events, "")
}

// CheckOverdue handles POST /api/check_overdue
func (h *MaintenanceHandler) CheckOverdue(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.CheckAllOverdue(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"overdue_count": n,
		"message":       fmt.Sprintf("%d overdue requests updated", n),
	})
}
