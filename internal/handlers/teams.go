package handlers

import (
	"net/http"

	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// ListTeams handles GET /api/teams. Only active teams are listed.
func (h *MaintenanceHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.svc.SearchTeams(r.Context(), orm.Domain{orm.Cond("active", "=", true)}, orm.SearchOptions{Order: "name"})
	if err != nil {
		respondError(w, r, err)
		return
	}
	records := make([]map[string]interface{}, 0, len(teams))
	for _, t := range teams {
		records = append(records, t.Read())
	}
	respondList(w, records, int64(len(records)))
}

// GetTeam handles GET /api/teams/{id}, refreshing the cached equipment count.
func (h *MaintenanceHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.svc.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := h.svc.UpdateEquipmentCount(r.Context(), team); err != nil {
		respondError(w, r, err)
		return
	}
	data := team.Read()
	data["available_technicians"] = h.svc.AvailableTechnicians(team)
	respond(w, http.StatusOK, data, "")
}

// CreateTeam handles POST /api/teams
func (h *MaintenanceHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	vals, err := decodeValues(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	team, err := h.svc.CreateTeam(r.Context(), vals)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, team.Read(), "Team created successfully")
}

// UpdateTeam handles PUT /api/teams/{id}
func (h *MaintenanceHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.svc.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	vals, err := decodeValues(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.svc.WriteTeam(r.Context(), team, vals); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, team.Read(), "Team updated successfully")
}

// DeleteTeam handles DELETE /api/teams/{id}
func (h *MaintenanceHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTeam(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, "Team deleted successfully")
}

// TeamWorkload handles GET /api/teams/{id}/workload
func (h *MaintenanceHandler) TeamWorkload(w http.ResponseWriter, r *http.Request) {
	team, err := h.svc.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	load, err := h.svc.TeamWorkload(r.Context(), team)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, load, "")
}
