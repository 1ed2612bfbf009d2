package handlers

import (
	"net/http"

	"github.com/ukydev/maintenance-tracker/internal/maintenance"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

var equipmentRequired = []string{"name", "category", "location", "maintenance_team_id"}

// MaintenanceHandler serves equipment, teams, work orders and reports.
type MaintenanceHandler struct {
	svc          *maintenance.Service
	itemsPerPage int64
}

// NewMaintenanceHandler creates the handler. itemsPerPage is the default
// list limit.
func NewMaintenanceHandler(svc *maintenance.Service, itemsPerPage int64) *MaintenanceHandler {
	if itemsPerPage <= 0 {
		itemsPerPage = 80
	}
	return &MaintenanceHandler{svc: svc, itemsPerPage: itemsPerPage}
}

// ListEquipment handles GET /api/equipment
func (h *MaintenanceHandler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r, h.itemsPerPage)
	if err != nil {
		respondError(w, r, err)
		return
	}
	domain := equalsFilters(r, nil, "state", "category", "maintenance_team_id")
	domain = searchFilter(r, domain, "name")

	list, err := h.svc.SearchEquipment(r.Context(), domain, orm.SearchOptions{Limit: limit, Offset: offset, Order: "name"})
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.svc.CountEquipment(r.Context(), domain)
	if err != nil {
		respondError(w, r, err)
		return
	}
	records := make([]map[string]interface{}, 0, len(list))
	for _, eq := range list {
		records = append(records, eq.Read())
	}
	respondPage(w, records, total, limit, offset)
}

// GetEquipment handles GET /api/equipment/{id}; the response carries the
// ten most recent work orders.
func (h *MaintenanceHandler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	eq, err := h.svc.GetEquipment(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	history, err := h.svc.MaintenanceHistory(r.Context(), eq, 10)
	if err != nil {
		respondError(w, r, err)
		return
	}
	data := eq.Read()
	rows := make([]map[string]interface{}, 0, len(history))
	for _, req := range history {
		rows = append(rows, req.Read())
	}
	data["maintenance_history"] = rows
	respond(w, http.StatusOK, data, "")
}

// CreateEquipment handles POST /api/equipment
func (h *MaintenanceHandler) CreateEquipment(w http.ResponseWriter, r *http.Request) {
	vals, err := decodeValues(r)
	if err == nil {
		err = requireFields(vals, equipmentRequired...)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	eq, err := h.svc.CreateEquipment(r.Context(), vals)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, eq.Read(), "Equipment created successfully")
}

// UpdateEquipment handles PUT /api/equipment/{id}
func (h *MaintenanceHandler) UpdateEquipment(w http.ResponseWriter, r *http.Request) {
	eq, err := h.svc.GetEquipment(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	vals, err := decodeValues(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.svc.WriteEquipment(r.Context(), eq, vals); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, eq.Read(), "Equipment updated successfully")
}

// DeleteEquipment handles DELETE /api/equipment/{id}
func (h *MaintenanceHandler) DeleteEquipment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEquipment(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "Equipment deleted successfully")
}

// ScrapEquipment handles POST /api/equipment/{id}/scrap
func (h *MaintenanceHandler) ScrapEquipment(w http.ResponseWriter, r *http.Request) {
	eq, err := h.svc.GetEquipment(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.svc.ScrapEquipment(r.Context(), eq); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, eq.Read(), "Equipment marked as scrapped")
}

// ActivateEquipment handles POST /api/equipment/{id}/activate
func (h *MaintenanceHandler) ActivateEquipment(w http.ResponseWriter, r *http.Request) {
	eq, err := h.svc.GetEquipment(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.svc.ActivateEquipment(r.Context(), eq); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, eq.Read(), "Equipment activated")
}
