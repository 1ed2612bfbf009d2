package handlers

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/maintenance"
	"github.com/xuri/excelize/v2"
)

const pivotSheet = "Pivot"

var pivotHeader = []interface{}{
	"Equipment", "Category", "Team", "Type", "State", "Priority",
	"Duration (h)", "Cost", "Scheduled", "Overdue",
}

// Dashboard handles GET /api/dashboard/stats
func (h *MaintenanceHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, stats, "")
}

// Pivot handles GET /api/reports/pivot
func (h *MaintenanceHandler) Pivot(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Pivot(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, rows, "")
}

// PivotSpreadsheet handles GET /api/reports/pivot.xlsx
func (h *MaintenanceHandler) PivotSpreadsheet(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Pivot(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	f, err := PivotWorkbook(rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="maintenance_pivot.xlsx"`)
	if err := f.Write(w); err != nil {
		log.WithError(err).Error("Failed to write pivot spreadsheet")
	}
}

// PivotWorkbook lays the pivot rows out on one sheet under a header row.
func PivotWorkbook(rows []maintenance.PivotRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", pivotSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	header := pivotHeader
	if err := f.SetSheetRow(pivotSheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		values := []interface{}{
			row.EquipmentName, row.EquipmentCategory, row.TeamName, row.MaintenanceType,
			row.State, row.Priority, row.Duration, row.Cost, row.ScheduleDate, row.IsOverdue,
		}
		if err := f.SetSheetRow(pivotSheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f, nil
}

// Charts handles GET /api/reports/charts
func (h *MaintenanceHandler) Charts(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Charts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, data, "")
}
