package maintenance

import (
	"context"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/events"
	"github.com/ukydev/maintenance-tracker/internal/metrics"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// Reference builds a work order reference MNT-<timestamp>-<3 digits>.
func (s *Service) Reference() string {
	return fmt.Sprintf("MNT-%s-%d", s.now().Format(serialTimestamp), s.randRange(100, 999))
}

// Overdue reports whether a request scheduled at schedule is late at now,
// and by how many whole days. Terminal requests are never overdue.
func Overdue(schedule time.Time, hasSchedule bool, state string, now time.Time) (bool, int64) {
	if !hasSchedule || models.IsTerminal(state) || !schedule.Before(now) {
		return false, 0
	}
	return true, int64(now.Sub(schedule) / (24 * time.Hour))
}

// CreateRequest inserts a work order. The equipment's name, category and
// location are copied onto it, and its team and technician unless given.
func (s *Service) CreateRequest(ctx context.Context, vals orm.Values) (models.Request, error) {
	vals = vals.Clone()
	if err := checkSelections(models.RequestModel, vals); err != nil {
		return models.Request{}, err
	}
	now := s.now()

	if text(vals["name"]) == "" {
		vals["name"] = s.Reference()
	}
	if !vals.Has("request_date") || vals["request_date"] == nil {
		vals["request_date"] = now
	}

	var eq models.Equipment
	if equipmentID := text(vals["equipment_id"]); equipmentID != "" {
		var err error
		eq, err = s.GetEquipment(ctx, equipmentID)
		if err != nil {
			return models.Request{}, equipmentNotFound(err)
		}
		if eq.IsScrapped() {
			return models.Request{}, apperr.Validation("Cannot create maintenance request for scrapped equipment")
		}
		for k, v := range equipmentDetails(eq) {
			vals[k] = v
		}
		if text(vals["team_id"]) == "" && eq.TeamID() != "" {
			vals["team_id"] = eq.TeamID()
			vals["team_name"] = eq.TeamName()
		}
		if text(vals["technician_id"]) == "" && eq.TechnicianID() != "" {
			vals["technician_id"] = eq.TechnicianID()
			vals["technician_name"] = eq.TechnicianName()
		}
	}
	if text(vals["team_id"]) != "" && text(vals["team_name"]) == "" {
		if err := s.fillTeamName(ctx, vals, "team_id", "team_name"); err != nil {
			return models.Request{}, err
		}
	}

	state := text(vals["state"])
	if state == "" {
		state = models.StateNew
	}
	vals["state"] = state
	vals["stage"] = models.StageForState[state]
	if state == models.StateInProgress && vals["start_date"] == nil {
		vals["start_date"] = now
	}

	schedule, hasSchedule := storedTime(models.RequestModel, "schedule_date", vals["schedule_date"])
	vals["is_overdue"], vals["days_overdue"] = Overdue(schedule, hasSchedule, state, now)

	priority := text(vals["priority"])
	if priority == "" {
		priority = models.PriorityNormal
	}
	vals["color"] = models.ColorForPriority[priority]

	rec, err := s.requests.Create(ctx, vals)
	if err != nil {
		return models.Request{}, err
	}
	req := models.Request{Record: rec}

	if state == models.StateInProgress && eq.Record != nil {
		if err := s.setEquipmentState(ctx, eq.ID(), models.EquipmentUnderMaintenance); err != nil {
			return req, err
		}
	}
	log.WithFields(log.Fields{"request_id": req.ID(), "reference": req.Reference(), "equipment_id": req.EquipmentID()}).Info("Maintenance request created")
	s.publish(ctx, events.EntityRequest, events.RequestCreated, req.ID(), map[string]interface{}{
		"reference":    req.Reference(),
		"equipment_id": req.EquipmentID(),
		"state":        req.State(),
	})
	return req, nil
}

// WriteRequest applies a caller's change to a work order. Moving its
// stage to scrap also scraps the equipment.
func (s *Service) WriteRequest(ctx context.Context, req models.Request, vals orm.Values) error {
	return s.writeRequest(ctx, req, vals, true)
}

// writeRequest runs the state machine:
//   - a stage drives the state it maps to; a state alone drives the stage
//   - a state change outside the transition table fails unless the same
//     write carries a stage
//   - new -> in_progress stamps start_date and puts the equipment under
//     maintenance
//   - in_progress -> done stamps end and close dates, records the elapsed
//     hours, returns the equipment to active and recomputes its stats
//
// The request is persisted before the equipment cascades run.
func (s *Service) writeRequest(ctx context.Context, req models.Request, vals orm.Values, cascadeScrap bool) error {
	vals = vals.Clone()
	if err := checkSelections(models.RequestModel, vals); err != nil {
		return err
	}
	now := s.now()
	current := req.State()

	stageGiven := vals.Has("stage")
	if stageGiven {
		if state, ok := models.StateForStage[text(vals["stage"])]; ok {
			vals["state"] = state
		}
	}

	newState := current
	if vals.Has("state") {
		newState = text(vals["state"])
		if !stageGiven && !CanTransition(current, newState) {
			return &InvalidTransitionError{From: current, To: newState}
		}
		if !stageGiven {
			vals["stage"] = models.StageForState[newState]
		}
	}
	changed := newState != current

	started := changed && current == models.StateNew && newState == models.StateInProgress
	completed := changed && current == models.StateInProgress && newState == models.StateDone
	if started {
		vals["start_date"] = now
		vals["stage"] = models.StageInProgress
	}
	if completed {
		vals["end_date"] = now
		vals["close_date"] = now
		vals["stage"] = models.StageRepaired
		if start, ok := req.StartDate(); ok {
			hours := now.Sub(start).Hours()
			vals["actual_duration"] = math.Round(hours*100) / 100
		}
	}

	equipmentID := req.EquipmentID()
	if vals.Has("equipment_id") && text(vals["equipment_id"]) != equipmentID {
		eq, err := s.GetEquipment(ctx, text(vals["equipment_id"]))
		if err != nil {
			return equipmentNotFound(err)
		}
		for k, v := range equipmentDetails(eq) {
			vals[k] = v
		}
		equipmentID = eq.ID()
	}
	if vals.Has("team_id") && text(vals["team_id"]) != req.TeamID() && text(vals["team_id"]) != "" {
		if err := s.fillTeamName(ctx, vals, "team_id", "team_name"); err != nil {
			return err
		}
	}

	if vals.Has("schedule_date") || changed {
		scheduleValue := req.Get("schedule_date")
		if vals.Has("schedule_date") {
			scheduleValue = vals["schedule_date"]
		}
		schedule, hasSchedule := storedTime(models.RequestModel, "schedule_date", scheduleValue)
		vals["is_overdue"], vals["days_overdue"] = Overdue(schedule, hasSchedule, newState, now)
	}
	if vals.Has("priority") {
		vals["color"] = models.ColorForPriority[text(vals["priority"])]
	}

	if err := req.Write(ctx, vals); err != nil {
		return err
	}

	if changed {
		metrics.RequestTransitions.WithLabelValues(newState).Inc()
		log.WithFields(log.Fields{"request_id": req.ID(), "from": current, "to": newState}).Info("Maintenance request transitioned")
	}
	data := map[string]interface{}{"reference": req.Reference(), "equipment_id": equipmentID, "from": current}

	switch {
	case started:
		if err := s.setEquipmentState(ctx, equipmentID, models.EquipmentUnderMaintenance); err != nil {
			return err
		}
		s.publish(ctx, events.EntityRequest, events.RequestStarted, req.ID(), data)
	case completed:
		if err := s.setEquipmentState(ctx, equipmentID, models.EquipmentActive); err != nil {
			return err
		}
		eq, err := s.GetEquipment(ctx, equipmentID)
		if err == nil {
			if err := s.UpdateMaintenanceStats(ctx, eq); err != nil {
				return err
			}
		} else if !isMissing(err) {
			return err
		}
		data["actual_duration"] = req.ActualDuration()
		s.publish(ctx, events.EntityRequest, events.RequestDone, req.ID(), data)
	case changed && newState == models.StateCancelled:
		s.publish(ctx, events.EntityRequest, events.RequestCancelled, req.ID(), data)
	}

	if cascadeScrap && stageGiven && text(vals["stage"]) == models.StageScrap {
		eq, err := s.GetEquipment(ctx, equipmentID)
		if err != nil {
			if isMissing(err) {
				return nil
			}
			return err
		}
		if !eq.IsScrapped() {
			return s.ScrapEquipment(ctx, eq)
		}
	}
	return nil
}

// GetRequest fetches a work order by id.
func (s *Service) GetRequest(ctx context.Context, id string) (models.Request, error) {
	rec, err := s.requests.Get(ctx, id)
	if err != nil {
		return models.Request{}, err
	}
	return models.Request{Record: rec}, nil
}

// SearchRequests lists work orders matching domain.
func (s *Service) SearchRequests(ctx context.Context, domain orm.Domain, opts orm.SearchOptions) ([]models.Request, error) {
	recs, err := s.requests.Search(ctx, domain, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.Request, len(recs))
	for i, r := range recs {
		out[i] = models.Request{Record: r}
	}
	return out, nil
}

// CountRequests counts work orders matching domain.
func (s *Service) CountRequests(ctx context.Context, domain orm.Domain) (int64, error) {
	return s.requests.Count(ctx, domain)
}

// DeleteRequest removes a work order by id.
func (s *Service) DeleteRequest(ctx context.Context, id string) error {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	return req.Unlink(ctx)
}

// StartRequest moves a work order to in_progress.
func (s *Service) StartRequest(ctx context.Context, req models.Request) error {
	return s.writeRequest(ctx, req, orm.Values{"state": models.StateInProgress}, true)
}

// CompleteRequest moves a work order to done.
func (s *Service) CompleteRequest(ctx context.Context, req models.Request) error {
	return s.writeRequest(ctx, req, orm.Values{"state": models.StateDone}, true)
}

// CancelRequest cancels a work order and moves it to the scrap stage. The
// equipment stays in service.
func (s *Service) CancelRequest(ctx context.Context, req models.Request) error {
	return s.writeRequest(ctx, req, orm.Values{"state": models.StateCancelled, "stage": models.StageScrap}, false)
}

// UpdateOverdueStatus recomputes is_overdue and days_overdue for an open
// request and reports whether it is overdue. Terminal requests are left
// untouched.
func (s *Service) UpdateOverdueStatus(ctx context.Context, req models.Request) (bool, error) {
	if models.IsTerminal(req.State()) {
		return false, nil
	}
	schedule, hasSchedule := req.Time("schedule_date")
	overdue, days := Overdue(schedule, hasSchedule, req.State(), s.now())
	wasOverdue := req.IsOverdue()
	if err := req.Write(ctx, orm.Values{"is_overdue": overdue, "days_overdue": days}); err != nil {
		return false, err
	}
	if overdue && !wasOverdue {
		s.publish(ctx, events.EntityRequest, events.RequestOverdue, req.ID(), map[string]interface{}{
			"reference":    req.Reference(),
			"days_overdue": days,
		})
	}
	return overdue, nil
}

// CheckAllOverdue refreshes the overdue flags of every open request and
// returns how many are overdue.
func (s *Service) CheckAllOverdue(ctx context.Context) (int, error) {
	open, err := s.SearchRequests(ctx, orm.Domain{orm.Cond("state", "in", models.OpenStates)}, orm.SearchOptions{})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, req := range open {
		overdue, err := s.UpdateOverdueStatus(ctx, req)
		if err != nil {
			return count, fmt.Errorf("update overdue status of %s: %w", req.ID(), err)
		}
		if overdue {
			count++
		}
	}
	metrics.OverdueRequests.Set(float64(count))
	log.WithFields(log.Fields{"checked": len(open), "overdue": count}).Info("Overdue check complete")
	return count, nil
}
