package models

import (
	"github.com/ukydev/maintenance-tracker/internal/db"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// All lists every record type stored by the application.
func All() []*orm.Model {
	return []*orm.Model{EquipmentModel, TeamModel, RequestModel, PortalUserModel}
}

// Indexes collects the index specs of every record type.
func Indexes() []db.IndexSpec {
	var specs []db.IndexSpec
	for _, m := range All() {
		specs = append(specs, m.Indexes()...)
	}
	return specs
}
