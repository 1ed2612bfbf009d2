package models

import (
	"github.com/ukydev/maintenance-tracker/internal/fields"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// Team specializations.
const (
	SpecializationMechanical = "mechanical"
	SpecializationElectrical = "electrical"
	SpecializationIT         = "it"
	SpecializationCivil      = "civil"
	SpecializationGeneral    = "general"
)

// TeamModel is the schema of the "maintenance_team" collection. The
// counters are caches refreshed by the workload and equipment-count
// operations.
var TeamModel = orm.NewModel("maintenance_team", "Maintenance Team",
	fields.Char("name", fields.Label("Team Name"), fields.Required(), fields.Indexed()),
	fields.Char("code", fields.Label("Team Code"), fields.Required()),
	fields.Selection("specialization", []fields.Option{
		{Value: SpecializationMechanical, Label: "Mechanical"},
		{Value: SpecializationElectrical, Label: "Electrical"},
		{Value: SpecializationIT, Label: "IT/Software"},
		{Value: SpecializationCivil, Label: "Civil/Infrastructure"},
		{Value: SpecializationGeneral, Label: "General Maintenance"},
	}, fields.Label("Specialization"), fields.Required(), fields.Default(SpecializationGeneral)),

	fields.Many2one("team_leader_id", "employee", fields.Label("Team Leader")),
	fields.Char("team_leader_name", fields.Label("Team Leader Name")),
	fields.Many2many("member_ids", "employee", fields.Label("Team Members"), fields.Indexed()),
	fields.Text("member_names", fields.Label("Member Names (JSON)")),

	fields.Char("email", fields.Label("Team Email")),
	fields.Char("phone", fields.Label("Team Phone")),
	fields.Boolean("active", fields.Label("Active"), fields.Default(true)),
	fields.Text("description", fields.Label("Description")),

	fields.Integer("equipment_count", fields.Label("Equipment Count"), fields.Default(0)),
	fields.Integer("active_requests", fields.Label("Active Requests"), fields.Default(0)),
	fields.Integer("completed_requests", fields.Label("Completed Requests"), fields.Default(0)),
)

// Team is a typed view over a maintenance team record.
type Team struct {
	*orm.Record
}

func (t Team) Name() string { return t.String("name") }
func (t Team) Code() string { return t.String("code") }
func (t Team) Active() bool { return t.Bool("active") }
func (t Team) MemberIDs() []string { return t.IDs("member_ids") }

// Workload is the request breakdown of one team.
type Workload struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
}
