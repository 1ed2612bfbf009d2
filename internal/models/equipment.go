package models

import (
	"github.com/ukydev/maintenance-tracker/internal/fields"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// Equipment lifecycle states.
const (
	EquipmentActive           = "active"
	EquipmentUnderMaintenance = "under_maintenance"
	EquipmentScrapped         = "scrapped"
)

// Equipment categories.
const (
	CategoryMachine        = "machine"
	CategoryVehicle        = "vehicle"
	CategoryITAsset        = "it_asset"
	CategoryTool           = "tool"
	CategoryInfrastructure = "infrastructure"
)

// DefaultMaintenanceInterval is the preventive interval in days.
const DefaultMaintenanceInterval = 90

// EquipmentModel is the schema of the "equipment" collection.
var EquipmentModel = orm.NewModel("equipment", "Equipment",
	fields.Char("name", fields.Label("Equipment Name"), fields.Required(), fields.Indexed()),
	fields.Selection("category", []fields.Option{
		{Value: CategoryMachine, Label: "Machine"},
		{Value: CategoryVehicle, Label: "Vehicle"},
		{Value: CategoryITAsset, Label: "IT Asset"},
		{Value: CategoryTool, Label: "Tool"},
		{Value: CategoryInfrastructure, Label: "Infrastructure"},
	}, fields.Label("Category"), fields.Required(), fields.Default(CategoryMachine)),

	fields.Char("serial_no", fields.Label("Serial Number")),
	fields.Char("model", fields.Label("Model")),
	fields.Char("manufacturer", fields.Label("Manufacturer")),

	fields.Many2one("department_id", "department", fields.Label("Department"), fields.Indexed()),
	fields.Char("department_name", fields.Label("Department Name")),
	fields.Many2one("responsible_id", "employee", fields.Label("Responsible Person"), fields.Indexed()),
	fields.Char("responsible_name", fields.Label("Responsible Person Name")),

	fields.Char("location", fields.Label("Location"), fields.Required()),

	fields.Many2one("maintenance_team_id", "maintenance_team", fields.Label("Maintenance Team"), fields.Required(), fields.Indexed()),
	fields.Char("maintenance_team_name", fields.Label("Team Name")),
	fields.Many2one("technician_id", "technician", fields.Label("Default Technician")),
	fields.Char("technician_name", fields.Label("Technician Name")),

	fields.Date("warranty_start", fields.Label("Warranty Start Date")),
	fields.Date("warranty_end", fields.Label("Warranty End Date")),
	fields.Integer("warranty_duration", fields.Label("Warranty Duration (months)")),

	fields.Float("cost", fields.Label("Equipment Cost")),
	fields.Date("purchase_date", fields.Label("Purchase Date")),
	fields.Char("vendor", fields.Label("Vendor")),

	fields.Selection("state", []fields.Option{
		{Value: EquipmentActive, Label: "Active"},
		{Value: EquipmentUnderMaintenance, Label: "Under Maintenance"},
		{Value: EquipmentScrapped, Label: "Scrapped"},
	}, fields.Label("Status"), fields.Required(), fields.Default(EquipmentActive), fields.Indexed()),

	fields.Text("specifications", fields.Label("Technical Specifications")),
	fields.Text("notes", fields.Label("Notes")),

	fields.Integer("maintenance_count", fields.Label("Maintenance Count"), fields.Default(0)),
	fields.Date("last_maintenance_date", fields.Label("Last Maintenance")),
	fields.Date("next_maintenance_date", fields.Label("Next Maintenance")),
	fields.Integer("maintenance_interval", fields.Label("Maintenance Interval (days)"), fields.Default(DefaultMaintenanceInterval)),
).WithCompositeIndex("name", "state")

// Equipment is a typed view over an equipment record.
type Equipment struct {
	*orm.Record
}

func (e Equipment) Name() string { return e.String("name") }
func (e Equipment) Category() string { return e.String("category") }
func (e Equipment) SerialNo() string { return e.String("serial_no") }
func (e Equipment) Location() string { return e.String("location") }
func (e Equipment) State() string { return e.String("state") }
func (e Equipment) TeamID() string { return e.String("maintenance_team_id") }
func (e Equipment) TeamName() string { return e.String("maintenance_team_name") }
func (e Equipment) TechnicianID() string { return e.String("technician_id") }
func (e Equipment) TechnicianName() string { return e.String("technician_name") }
func (e Equipment) WarrantyDuration() int64 { return e.Int("warranty_duration") }
func (e Equipment) MaintenanceCount() int64 { return e.Int("maintenance_count") }
func (e Equipment) MaintenanceInterval() int64 { return e.Int("maintenance_interval") }
func (e Equipment) LastMaintenanceDate() string { return e.String("last_maintenance_date") }
func (e Equipment) NextMaintenanceDate() string { return e.String("next_maintenance_date") }

// IsScrapped reports whether the equipment has been retired.
func (e Equipment) IsScrapped() bool {
	return e.State() == EquipmentScrapped
}
