package maintenance

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// Denormalized copies. Each relationship has one function that refreshes
// it; write paths that can invalidate a copy call it.

// fillTeamName copies the referenced team's name into vals[nameField].
func (s *Service) fillTeamName(ctx context.Context, vals orm.Values, idField, nameField string) error {
	team, err := s.GetTeam(ctx, text(vals[idField]))
	if err != nil {
		if isMissing(err) {
			return apperr.NotFound("Maintenance team not found")
		}
		return err
	}
	vals[nameField] = team.Name()
	return nil
}

// equipmentDetails are the equipment fields copied onto its requests.
func equipmentDetails(eq models.Equipment) orm.Values {
	return orm.Values{
		"equipment_name":     eq.Name(),
		"equipment_category": eq.Category(),
		"equipment_location": eq.Location(),
	}
}

// SyncRequestEquipment refreshes the equipment copies on every request
// referencing eq.
func (s *Service) SyncRequestEquipment(ctx context.Context, eq models.Equipment) error {
	reqs, err := s.requests.Search(ctx, orm.Domain{orm.Cond("equipment_id", "=", eq.ID())}, orm.SearchOptions{})
	if err != nil {
		return err
	}
	details := equipmentDetails(eq)
	for _, r := range reqs {
		if err := r.Write(ctx, details); err != nil {
			return err
		}
	}
	log.WithFields(log.Fields{"equipment_id": eq.ID(), "requests": len(reqs)}).Debug("Synced equipment details")
	return nil
}

// SyncTeamName refreshes the team name on its equipment and requests.
func (s *Service) SyncTeamName(ctx context.Context, team models.Team) error {
	equipment, err := s.equipment.Search(ctx, orm.Domain{orm.Cond("maintenance_team_id", "=", team.ID())}, orm.SearchOptions{})
	if err != nil {
		return err
	}
	for _, eq := range equipment {
		if err := eq.Write(ctx, orm.Values{"maintenance_team_name": team.Name()}); err != nil {
			return err
		}
	}

	reqs, err := s.requests.Search(ctx, orm.Domain{orm.Cond("team_id", "=", team.ID())}, orm.SearchOptions{})
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if err := r.Write(ctx, orm.Values{"team_name": team.Name()}); err != nil {
			return err
		}
	}
	log.WithFields(log.Fields{"team_id": team.ID(), "equipment": len(equipment), "requests": len(reqs)}).Debug("Synced team name")
	return nil
}
