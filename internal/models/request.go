package models

import (
	"time"

	"github.com/ukydev/maintenance-tracker/internal/fields"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// Work order states. Done and cancelled are terminal.
const (
	StateNew        = "new"
	StateInProgress = "in_progress"
	StateDone       = "done"
	StateCancelled  = "cancelled"
)

// Kanban stages.
const (
	StageNew        = "new"
	StageInProgress = "in_progress"
	StageRepaired   = "repaired"
	StageScrap      = "scrap"
)

// Maintenance types.
const (
	TypeCorrective = "corrective"
	TypePreventive = "preventive"
)

// Priorities, lowest first.
const (
	PriorityLow      = "0"
	PriorityNormal   = "1"
	PriorityHigh     = "2"
	PriorityCritical = "3"
)

// StageForState gives the Kanban stage shown for each state.
var StageForState = map[string]string{
	StateNew:        StageNew,
	StateInProgress: StageInProgress,
	StateDone:       StageRepaired,
	StateCancelled:  StageScrap,
}

// StateForStage gives the state a Kanban stage drives.
var StateForStage = map[string]string{
	StageNew:        StateNew,
	StageInProgress: StateInProgress,
	StageRepaired:   StateDone,
	StageScrap:      StateCancelled,
}

// ColorForPriority is the Kanban color index of each priority.
var ColorForPriority = map[string]int64{
	PriorityLow:      1,
	PriorityNormal:   0,
	PriorityHigh:     3,
	PriorityCritical: 2,
}

// OpenStates are the non-terminal states.
var OpenStates = []string{StateNew, StateInProgress}

// IsTerminal reports whether state accepts no further transitions.
func IsTerminal(state string) bool {
	return state == StateDone || state == StateCancelled
}

// RequestModel is the schema of the "maintenance_request" collection.
var RequestModel = orm.NewModel("maintenance_request", "Maintenance Request",
	fields.Char("name", fields.Label("Reference"), fields.Required()),

	fields.Many2one("equipment_id", "equipment", fields.Label("Equipment"), fields.Required(), fields.Indexed()),
	fields.Char("equipment_name", fields.Label("Equipment Name")),
	fields.Char("equipment_category", fields.Label("Equipment Category")),
	fields.Char("equipment_location", fields.Label("Equipment Location")),

	fields.Selection("maintenance_type", []fields.Option{
		{Value: TypeCorrective, Label: "Corrective"},
		{Value: TypePreventive, Label: "Preventive"},
	}, fields.Label("Maintenance Type"), fields.Required(), fields.Default(TypeCorrective), fields.Indexed()),

	fields.Selection("priority", []fields.Option{
		{Value: PriorityLow, Label: "Low"},
		{Value: PriorityNormal, Label: "Normal"},
		{Value: PriorityHigh, Label: "High"},
		{Value: PriorityCritical, Label: "Critical"},
	}, fields.Label("Priority"), fields.Required(), fields.Default(PriorityNormal)),

	fields.DateTime("request_date", fields.Label("Request Date"), fields.Required(),
		fields.Default(func() interface{} { return time.Now() })),
	fields.Text("description", fields.Label("Description"), fields.Required()),

	fields.Many2one("team_id", "maintenance_team", fields.Label("Maintenance Team"), fields.Required(), fields.Indexed()),
	fields.Char("team_name", fields.Label("Team Name")),
	fields.Many2one("technician_id", "employee", fields.Label("Assigned Technician"), fields.Indexed()),
	fields.Char("technician_name", fields.Label("Technician Name")),

	fields.Date("schedule_date", fields.Label("Scheduled Date"), fields.Required(), fields.Indexed()),
	fields.Float("duration", fields.Label("Estimated Duration (hours)"), fields.Default(2.0)),

	fields.DateTime("start_date", fields.Label("Start Date")),
	fields.DateTime("end_date", fields.Label("End Date")),
	fields.Float("actual_duration", fields.Label("Actual Duration (hours)")),

	fields.Selection("state", []fields.Option{
		{Value: StateNew, Label: "New"},
		{Value: StateInProgress, Label: "In Progress"},
		{Value: StateDone, Label: "Done"},
		{Value: StateCancelled, Label: "Cancelled"},
	}, fields.Label("Status"), fields.Required(), fields.Default(StateNew), fields.Indexed()),
	fields.Selection("stage", []fields.Option{
		{Value: StageNew, Label: "New"},
		{Value: StageInProgress, Label: "In Progress"},
		{Value: StageRepaired, Label: "Repaired"},
		{Value: StageScrap, Label: "Scrap"},
	}, fields.Label("Stage"), fields.Required(), fields.Default(StageNew)),

	fields.Text("work_done", fields.Label("Work Done")),
	fields.Text("parts_used", fields.Label("Parts Used")),
	fields.Float("cost", fields.Label("Maintenance Cost")),

	fields.DateTime("close_date", fields.Label("Closure Date")),
	fields.Char("closed_by", fields.Label("Closed By")),

	fields.Boolean("is_overdue", fields.Label("Overdue"), fields.Default(false)),
	fields.Integer("days_overdue", fields.Label("Days Overdue"), fields.Default(0)),
	fields.Integer("color", fields.Label("Color Index"), fields.Default(0)),
).WithCompositeIndex("state", "schedule_date").WithCompositeIndex("equipment_id", "state")

// Request is a typed view over a maintenance request record.
type Request struct {
	*orm.Record
}

func (r Request) Reference() string { return r.String("name") }
func (r Request) EquipmentID() string { return r.String("equipment_id") }
func (r Request) TeamID() string { return r.String("team_id") }
func (r Request) State() string { return r.String("state") }
func (r Request) Stage() string { return r.String("stage") }
func (r Request) MaintenanceType() string { return r.String("maintenance_type") }
func (r Request) Priority() string { return r.String("priority") }
func (r Request) ScheduleDate() string { return r.String("schedule_date") }
func (r Request) IsOverdue() bool { return r.Bool("is_overdue") }
func (r Request) DaysOverdue() int64 { return r.Int("days_overdue") }
func (r Request) Duration() float64 { return r.Float("duration") }
func (r Request) ActualDuration() float64 { return r.Float("actual_duration") }

// StartDate returns when work began, if it has.
func (r Request) StartDate() (time.Time, bool) { return r.Time("start_date") }
