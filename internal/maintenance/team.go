package maintenance

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// TeamCode joins the first three characters of up to the first three
// words of name, uppercased, with dashes.
func TeamCode(name string) string {
	words := strings.Fields(name)
	if len(words) > 3 {
		words = words[:3]
	}
	parts := make([]string, 0, len(words))
	for _, w := range words {
		r := []rune(w)
		if len(r) > 3 {
			r = r[:3]
		}
		parts = append(parts, strings.ToUpper(string(r)))
	}
	return strings.Join(parts, "-")
}

// CreateTeam inserts a team, deriving its code from the name if absent.
func (s *Service) CreateTeam(ctx context.Context, vals orm.Values) (models.Team, error) {
	vals = vals.Clone()
	if err := checkSelections(models.TeamModel, vals); err != nil {
		return models.Team{}, err
	}
	if text(vals["code"]) == "" {
		if name := text(vals["name"]); name != "" {
			vals["code"] = TeamCode(name)
		}
	}
	rec, err := s.teams.Create(ctx, vals)
	if err != nil {
		return models.Team{}, err
	}
	log.WithFields(log.Fields{"team_id": rec.ID(), "code": rec.String("code")}).Info("Team created")
	return models.Team{Record: rec}, nil
}

// WriteTeam applies vals and refreshes copies of the team name.
func (s *Service) WriteTeam(ctx context.Context, team models.Team, vals orm.Values) error {
	if err := checkSelections(models.TeamModel, vals); err != nil {
		return err
	}
	renamed := vals.Has("name") && text(vals["name"]) != team.Name()
	if err := team.Write(ctx, vals); err != nil {
		return err
	}
	if renamed {
		return s.SyncTeamName(ctx, team)
	}
	return nil
}

// GetTeam fetches a team by id.
func (s *Service) GetTeam(ctx context.Context, id string) (models.Team, error) {
	rec, err := s.teams.Get(ctx, id)
	if err != nil {
		return models.Team{}, err
	}
	return models.Team{Record: rec}, nil
}

// SearchTeams lists teams matching domain.
func (s *Service) SearchTeams(ctx context.Context, domain orm.Domain, opts orm.SearchOptions) ([]models.Team, error) {
	recs, err := s.teams.Search(ctx, domain, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.Team, len(recs))
	for i, r := range recs {
		out[i] = models.Team{Record: r}
	}
	return out, nil
}

// CountTeams counts teams matching domain.
func (s *Service) CountTeams(ctx context.Context, domain orm.Domain) (int64, error) {
	return s.teams.Count(ctx, domain)
}

// DeleteTeam removes a team by id.
func (s *Service) DeleteTeam(ctx context.Context, id string) error {
	team, err := s.GetTeam(ctx, id)
	if err != nil {
		return err
	}
	return team.Unlink(ctx)
}

// TeamWorkload counts the team's open and done requests and caches the
// counts on the team.
func (s *Service) TeamWorkload(ctx context.Context, team models.Team) (models.Workload, error) {
	active, err := s.requests.Count(ctx, orm.Domain{
		orm.Cond("team_id", "=", team.ID()),
		orm.Cond("state", "in", models.OpenStates),
	})
	if err != nil {
		return models.Workload{}, err
	}
	completed, err := s.requests.Count(ctx, orm.Domain{
		orm.Cond("team_id", "=", team.ID()),
		orm.Cond("state", "=", models.StateDone),
	})
	if err != nil {
		return models.Workload{}, err
	}
	if err := team.Write(ctx, orm.Values{"active_requests": active, "completed_requests": completed}); err != nil {
		return models.Workload{}, err
	}
	return models.Workload{Active: active, Completed: completed, Total: active + completed}, nil
}

// UpdateEquipmentCount caches how much equipment the team maintains.
func (s *Service) UpdateEquipmentCount(ctx context.Context, team models.Team) (int64, error) {
	count, err := s.equipment.Count(ctx, orm.Domain{orm.Cond("maintenance_team_id", "=", team.ID())})
	if err != nil {
		return 0, err
	}
	if err := team.Write(ctx, orm.Values{"equipment_count": count}); err != nil {
		return 0, err
	}
	return count, nil
}

// AvailableTechnicians returns the team's member ids. Every member counts
// as available.
func (s *Service) AvailableTechnicians(team models.Team) []string {
	return team.MemberIDs()
}
