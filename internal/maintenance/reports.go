package maintenance

import (
	"context"

	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// EquipmentStats counts equipment by state.
type EquipmentStats struct {
	Total            int64 `json:"total"`
	Active           int64 `json:"active"`
	UnderMaintenance int64 `json:"under_maintenance"`
	Scrapped         int64 `json:"scrapped"`
}

// RequestStats counts work orders by state.
type RequestStats struct {
	Total      int64 `json:"total"`
	New        int64 `json:"new"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
	Overdue    int64 `json:"overdue"`
}

// TypeCounts counts work orders by maintenance type.
type TypeCounts struct {
	Corrective int64 `json:"corrective"`
	Preventive int64 `json:"preventive"`
}

// DashboardStats is the landing page summary.
type DashboardStats struct {
	Equipment        EquipmentStats   `json:"equipment"`
	Requests         RequestStats     `json:"requests"`
	Teams            map[string]int64 `json:"teams"`
	MaintenanceTypes TypeCounts       `json:"maintenance_types"`
}

// counter runs a series of counts, keeping the first error.
type counter struct {
	ctx context.Context
	m   *orm.Mapper
	err error
}

func (c *counter) count(domain ...orm.Condition) int64 {
	if c.err != nil {
		return 0
	}
	n, err := c.m.Count(c.ctx, orm.Domain(domain))
	c.err = err
	return n
}

func (s *Service) typeCounts(ctx context.Context) (TypeCounts, error) {
	req := &counter{ctx: ctx, m: s.requests}
	out := TypeCounts{
		Corrective: req.count(orm.Cond("maintenance_type", "=", models.TypeCorrective)),
		Preventive: req.count(orm.Cond("maintenance_type", "=", models.TypePreventive)),
	}
	return out, req.err
}

// Dashboard counts equipment, work orders and active teams.
func (s *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	eq := &counter{ctx: ctx, m: s.equipment}
	req := &counter{ctx: ctx, m: s.requests}
	teams := &counter{ctx: ctx, m: s.teams}

	stats := DashboardStats{
		Equipment: EquipmentStats{
			Total:            eq.count(),
			Active:           eq.count(orm.Cond("state", "=", models.EquipmentActive)),
			UnderMaintenance: eq.count(orm.Cond("state", "=", models.EquipmentUnderMaintenance)),
			Scrapped:         eq.count(orm.Cond("state", "=", models.EquipmentScrapped)),
		},
		Requests: RequestStats{
			Total:      req.count(),
			New:        req.count(orm.Cond("state", "=", models.StateNew)),
			InProgress: req.count(orm.Cond("state", "=", models.StateInProgress)),
			Completed:  req.count(orm.Cond("state", "=", models.StateDone)),
			Overdue: req.count(
				orm.Cond("is_overdue", "=", true),
				orm.Cond("state", "in", models.OpenStates),
			),
		},
		Teams: map[string]int64{"total": teams.count(orm.Cond("active", "=", true))},
	}
	for _, err := range []error{eq.err, req.err, teams.err} {
		if err != nil {
			return DashboardStats{}, err
		}
	}
	types, err := s.typeCounts(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	stats.MaintenanceTypes = types
	return stats, nil
}

// Kanban groups new, in-progress and done work orders by stage.
func (s *Service) Kanban(ctx context.Context) (map[string][]map[string]interface{}, error) {
	reqs, err := s.SearchRequests(ctx, orm.Domain{
		orm.Cond("state", "in", []string{models.StateNew, models.StateInProgress, models.StateDone}),
	}, orm.SearchOptions{})
	if err != nil {
		return nil, err
	}
	board := map[string][]map[string]interface{}{
		models.StageNew:        {},
		models.StageInProgress: {},
		models.StageRepaired:   {},
		models.StageScrap:      {},
	}
	for _, r := range reqs {
		stage := r.Stage()
		if _, ok := board[stage]; ok {
			board[stage] = append(board[stage], r.Read())
		}
	}
	return board, nil
}

// CalendarEvent is one preventive work order on the calendar.
type CalendarEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	Description string `json:"description"`
	Technician  string `json:"technician"`
	State       string `json:"state"`
	Priority    string `json:"priority"`
}

// Calendar lists preventive work orders scheduled within [start, end].
// Empty bounds are open.
func (s *Service) Calendar(ctx context.Context, start, end string) ([]CalendarEvent, error) {
	domain := orm.Domain{orm.Cond("maintenance_type", "=", models.TypePreventive)}
	if start != "" {
		domain = append(domain, orm.Cond("schedule_date", ">=", start))
	}
	if end != "" {
		domain = append(domain, orm.Cond("schedule_date", "<=", end))
	}
	reqs, err := s.SearchRequests(ctx, domain, orm.SearchOptions{Order: "schedule_date"})
	if err != nil {
		return nil, err
	}
	out := make([]CalendarEvent, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, CalendarEvent{
			ID:          r.ID(),
			Title:       r.String("equipment_name") + " - " + r.Reference(),
			Start:       r.ScheduleDate(),
			Description: r.String("description"),
			Technician:  r.String("technician_name"),
			State:       r.State(),
			Priority:    r.Priority(),
		})
	}
	return out, nil
}

// PivotRow is one work order flattened for pivot tables.
type PivotRow struct {
	EquipmentName     string  `json:"equipment_name"`
	EquipmentCategory string  `json:"equipment_category"`
	TeamName          string  `json:"team_name"`
	MaintenanceType   string  `json:"maintenance_type"`
	State             string  `json:"state"`
	Priority          string  `json:"priority"`
	Duration          float64 `json:"duration"`
	Cost              float64 `json:"cost"`
	ScheduleDate      string  `json:"schedule_date"`
	IsOverdue         bool    `json:"is_overdue"`
}

// Pivot flattens every work order. Duration is the actual duration once
// recorded, the estimate before.
func (s *Service) Pivot(ctx context.Context) ([]PivotRow, error) {
	reqs, err := s.SearchRequests(ctx, nil, orm.SearchOptions{})
	if err != nil {
		return nil, err
	}
	rows := make([]PivotRow, 0, len(reqs))
	for _, r := range reqs {
		duration := r.Duration()
		if r.Has("actual_duration") && r.Get("actual_duration") != nil {
			duration = r.ActualDuration()
		}
		rows = append(rows, PivotRow{
			EquipmentName:     r.String("equipment_name"),
			EquipmentCategory: r.String("equipment_category"),
			TeamName:          r.String("team_name"),
			MaintenanceType:   r.MaintenanceType(),
			State:             r.State(),
			Priority:          r.Priority(),
			Duration:          duration,
			Cost:              r.Float("cost"),
			ScheduleDate:      r.ScheduleDate(),
			IsOverdue:         r.IsOverdue(),
		})
	}
	return rows, nil
}

// ChartData feeds the report charts.
type ChartData struct {
	MaintenanceByType   TypeCounts       `json:"maintenance_by_type"`
	MaintenanceByState  map[string]int64 `json:"maintenance_by_state"`
	EquipmentByCategory map[string]int64 `json:"equipment_by_category"`
}

var equipmentCategories = []string{
	models.CategoryMachine,
	models.CategoryVehicle,
	models.CategoryITAsset,
	models.CategoryTool,
	models.CategoryInfrastructure,
}

// Charts counts work orders by type and state and equipment by category.
// Empty categories are left out.
func (s *Service) Charts(ctx context.Context) (ChartData, error) {
	types, err := s.typeCounts(ctx)
	if err != nil {
		return ChartData{}, err
	}
	req := &counter{ctx: ctx, m: s.requests}
	byState := map[string]int64{}
	for _, state := range []string{models.StateNew, models.StateInProgress, models.StateDone, models.StateCancelled} {
		byState[state] = req.count(orm.Cond("state", "=", state))
	}
	if req.err != nil {
		return ChartData{}, req.err
	}

	eq := &counter{ctx: ctx, m: s.equipment}
	byCategory := map[string]int64{}
	for _, cat := range equipmentCategories {
		if n := eq.count(orm.Cond("category", "=", cat)); n > 0 {
			byCategory[cat] = n
		}
	}
	if eq.err != nil {
		return ChartData{}, eq.err
	}
	return ChartData{MaintenanceByType: types, MaintenanceByState: byState, EquipmentByCategory: byCategory}, nil
}
