package maintenance

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/events"
	"github.com/ukydev/maintenance-tracker/internal/fields"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

const serialTimestamp = "20060102150405"

// SerialNumber derives a serial from the first three alphanumeric
// characters of the uppercased name and a timestamp.
func SerialNumber(name string, at time.Time) string {
	var prefix []rune
	for _, r := range strings.ToUpper(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			prefix = append(prefix, r)
			if len(prefix) == 3 {
				break
			}
		}
	}
	return fmt.Sprintf("%s-%s", string(prefix), at.Format(serialTimestamp))
}

// AddMonths adds months to t, clamping the day to the end of the target
// month (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// warrantyEnd computes the end date when both start and duration are known.
func warrantyEnd(start interface{}, duration interface{}) (string, bool) {
	startDate, ok := storedTime(models.EquipmentModel, "warranty_start", start)
	if !ok {
		return "", false
	}
	f, _ := models.EquipmentModel.Field("warranty_duration")
	months, ok := f.ToStorage(duration).(int64)
	if !ok {
		return "", false
	}
	return AddMonths(startDate, int(months)).Format(fields.DateLayout), true
}

// CreateEquipment inserts equipment, generating a serial number when none
// is given and computing the warranty end.
func (s *Service) CreateEquipment(ctx context.Context, vals orm.Values) (models.Equipment, error) {
	vals = vals.Clone()
	if err := checkSelections(models.EquipmentModel, vals); err != nil {
		return models.Equipment{}, err
	}

	name := text(vals["name"])
	if text(vals["serial_no"]) == "" && name != "" {
		vals["serial_no"] = SerialNumber(name, s.now())
	}
	if serial := text(vals["serial_no"]); serial != "" {
		taken, err := s.equipment.Count(ctx, orm.Domain{orm.Cond("serial_no", "=", serial)})
		if err != nil {
			return models.Equipment{}, err
		}
		if taken > 0 {
			vals["serial_no"] = fmt.Sprintf("%s-%d", serial, s.randRange(1000, 9999))
		}
	}

	if vals.Has("warranty_start") && vals.Has("warranty_duration") {
		if end, ok := warrantyEnd(vals["warranty_start"], vals["warranty_duration"]); ok {
			vals["warranty_end"] = end
		}
	}

	if teamID := text(vals["maintenance_team_id"]); teamID != "" {
		if err := s.fillTeamName(ctx, vals, "maintenance_team_id", "maintenance_team_name"); err != nil {
			return models.Equipment{}, err
		}
	}

	rec, err := s.equipment.Create(ctx, vals)
	if err != nil {
		return models.Equipment{}, err
	}
	log.WithFields(log.Fields{"equipment_id": rec.ID(), "serial_no": rec.String("serial_no")}).Info("Equipment created")
	return models.Equipment{Record: rec}, nil
}

// WriteEquipment applies vals, keeps the warranty end and denormalized
// copies current, and cascades a transition to scrapped.
func (s *Service) WriteEquipment(ctx context.Context, eq models.Equipment, vals orm.Values) error {
	vals = vals.Clone()
	if err := checkSelections(models.EquipmentModel, vals); err != nil {
		return err
	}

	if vals.Has("warranty_start") || vals.Has("warranty_duration") {
		start, duration := eq.Get("warranty_start"), eq.Get("warranty_duration")
		if vals.Has("warranty_start") {
			start = vals["warranty_start"]
		}
		if vals.Has("warranty_duration") {
			duration = vals["warranty_duration"]
		}
		if end, ok := warrantyEnd(start, duration); ok {
			vals["warranty_end"] = end
		}
	}

	if vals.Has("maintenance_team_id") && text(vals["maintenance_team_id"]) != eq.TeamID() {
		if err := s.fillTeamName(ctx, vals, "maintenance_team_id", "maintenance_team_name"); err != nil {
			return err
		}
	}

	detailsChanged := false
	for _, name := range []string{"name", "category", "location"} {
		if vals.Has(name) && text(vals[name]) != eq.String(name) {
			detailsChanged = true
		}
	}
	scrapping := vals.Has("state") && text(vals["state"]) == models.EquipmentScrapped && !eq.IsScrapped()
	activating := vals.Has("state") && text(vals["state"]) == models.EquipmentActive && eq.IsScrapped()

	if err := eq.Write(ctx, vals); err != nil {
		return err
	}

	if detailsChanged {
		if err := s.SyncRequestEquipment(ctx, eq); err != nil {
			return err
		}
	}
	if scrapping {
		if err := s.cancelOpenRequests(ctx, eq); err != nil {
			return err
		}
		s.publish(ctx, events.EntityEquipment, events.EquipmentScrapped, eq.ID(), map[string]interface{}{"name": eq.Name()})
	}
	if activating {
		s.publish(ctx, events.EntityEquipment, events.EquipmentActivated, eq.ID(), map[string]interface{}{"name": eq.Name()})
	}
	return nil
}

// GetEquipment fetches equipment by id.
func (s *Service) GetEquipment(ctx context.Context, id string) (models.Equipment, error) {
	rec, err := s.equipment.Get(ctx, id)
	if err != nil {
		return models.Equipment{}, err
	}
	return models.Equipment{Record: rec}, nil
}

// SearchEquipment lists equipment matching domain.
func (s *Service) SearchEquipment(ctx context.Context, domain orm.Domain, opts orm.SearchOptions) ([]models.Equipment, error) {
	recs, err := s.equipment.Search(ctx, domain, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.Equipment, len(recs))
	for i, r := range recs {
		out[i] = models.Equipment{Record: r}
	}
	return out, nil
}

// CountEquipment counts equipment matching domain.
func (s *Service) CountEquipment(ctx context.Context, domain orm.Domain) (int64, error) {
	return s.equipment.Count(ctx, domain)
}

// DeleteEquipment removes equipment by id.
func (s *Service) DeleteEquipment(ctx context.Context, id string) error {
	eq, err := s.GetEquipment(ctx, id)
	if err != nil {
		return err
	}
	return eq.Unlink(ctx)
}

// ScrapEquipment retires equipment and cancels its open work orders.
func (s *Service) ScrapEquipment(ctx context.Context, eq models.Equipment) error {
	return s.WriteEquipment(ctx, eq, orm.Values{"state": models.EquipmentScrapped})
}

// ActivateEquipment returns equipment to service.
func (s *Service) ActivateEquipment(ctx context.Context, eq models.Equipment) error {
	return s.WriteEquipment(ctx, eq, orm.Values{"state": models.EquipmentActive})
}

// cancelOpenRequests cancels every new or in-progress request on eq.
// These cancellations do not scrap the equipment again.
func (s *Service) cancelOpenRequests(ctx context.Context, eq models.Equipment) error {
	open, err := s.SearchRequests(ctx, orm.Domain{
		orm.Cond("equipment_id", "=", eq.ID()),
		orm.Cond("state", "in", models.OpenStates),
	}, orm.SearchOptions{})
	if err != nil {
		return err
	}
	for _, req := range open {
		if err := s.writeRequest(ctx, req, orm.Values{"state": models.StateCancelled, "stage": models.StageScrap}, false); err != nil {
			return fmt.Errorf("cancel request %s: %w", req.ID(), err)
		}
	}
	log.WithFields(log.Fields{"equipment_id": eq.ID(), "cancelled": len(open)}).Info("Equipment scrapped")
	return nil
}

// setEquipmentState flips the equipment a request points at. Missing
// equipment is skipped.
func (s *Service) setEquipmentState(ctx context.Context, equipmentID, state string) error {
	eq, err := s.GetEquipment(ctx, equipmentID)
	if err != nil {
		if isMissing(err) {
			log.WithField("equipment_id", equipmentID).Warn("Equipment not found for state update")
			return nil
		}
		return err
	}
	log.WithFields(log.Fields{"equipment_id": equipmentID, "state": state}).Debug("Updating equipment state")
	return eq.Write(ctx, orm.Values{"state": state})
}

// UpdateMaintenanceStats recomputes the done-request count and the last
// and next maintenance dates.
func (s *Service) UpdateMaintenanceStats(ctx context.Context, eq models.Equipment) error {
	done := orm.Domain{
		orm.Cond("equipment_id", "=", eq.ID()),
		orm.Cond("state", "=", models.StateDone),
	}
	count, err := s.requests.Count(ctx, done)
	if err != nil {
		return err
	}
	vals := orm.Values{"maintenance_count": count}

	last, err := s.requests.SearchOne(ctx, done, "schedule_date DESC")
	if err != nil {
		return err
	}
	if last != nil {
		if when, ok := last.Time("schedule_date"); ok {
			vals["last_maintenance_date"] = when
			if interval := eq.MaintenanceInterval(); interval > 0 {
				vals["next_maintenance_date"] = when.AddDate(0, 0, int(interval))
			}
		}
	}
	return eq.Write(ctx, vals)
}

// MaintenanceHistory returns the most recently created requests for eq.
func (s *Service) MaintenanceHistory(ctx context.Context, eq models.Equipment, limit int64) ([]models.Request, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.SearchRequests(ctx, orm.Domain{orm.Cond("equipment_id", "=", eq.ID())},
		orm.SearchOptions{Order: "create_date DESC", Limit: limit})
}

func equipmentNotFound(err error) error {
	if isMissing(err) {
		return apperr.NotFound("Equipment not found")
	}
	return err
}
