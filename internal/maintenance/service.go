// Package maintenance implements the business rules layered over the
// record mapper: identifier generation, denormalized copies, the work
// order state machine and its cascades onto equipment, and reporting.
package maintenance

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/db"
	"github.com/ukydev/maintenance-tracker/internal/events"
	"github.com/ukydev/maintenance-tracker/internal/fields"
	"github.com/ukydev/maintenance-tracker/internal/models"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

// Service runs the equipment, team and work order rules against a store.
type Service struct {
	equipment *orm.Mapper
	teams     *orm.Mapper
	requests  *orm.Mapper

	publisher events.Publisher
	now       func() time.Time

	randMu sync.Mutex
	rnd    *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand replaces the random source used for identifier suffixes.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rnd = r }
}

// WithPublisher sets where lifecycle events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService builds the rules over store.
func NewService(store db.Store, opts ...Option) *Service {
	s := &Service{
		publisher: events.NopPublisher{},
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	clock := orm.WithClock(func() time.Time { return s.now() })
	s.equipment = orm.NewMapper(store, models.EquipmentModel, clock)
	s.teams = orm.NewMapper(store, models.TeamModel, clock)
	s.requests = orm.NewMapper(store, models.RequestModel, clock)
	return s
}

// randRange returns a number in [min, max].
func (s *Service) randRange(min, max int) int {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return min + s.rnd.Intn(max-min+1)
}

func (s *Service) publish(ctx context.Context, entity, name, id string, data map[string]interface{}) {
	s.publisher.Publish(ctx, events.Event{
		Entity:     entity,
		Name:       name,
		ID:         id,
		Data:       data,
		OccurredAt: s.now(),
	})
}

// InvalidTransitionError rejects a state change outside the work order
// transition table.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Invalid state transition: %s -> %s", e.From, e.To)
}

var transitions = map[string][]string{
	models.StateNew:        {models.StateInProgress, models.StateCancelled},
	models.StateInProgress: {models.StateDone, models.StateCancelled},
	models.StateDone:       {},
	models.StateCancelled:  {},
}

// CanTransition reports whether from -> to is in the transition table.
// Staying in the same state is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// text returns the textual form of an input value.
func text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// checkSelections rejects selection values the model does not declare.
func checkSelections(model *orm.Model, vals orm.Values) error {
	for _, f := range model.Fields() {
		if f.Kind != fields.KindSelection || !vals.Has(f.Name) {
			continue
		}
		v, _ := f.ToStorage(vals[f.Name]).(string)
		if !f.Allows(v) {
			return apperr.Validation("Invalid %s: %s", f.Name, text(vals[f.Name]))
		}
	}
	return nil
}

// storedTime converts an input value the way field name stores it.
func storedTime(model *orm.Model, name string, v interface{}) (time.Time, bool) {
	f, ok := model.Field(name)
	if !ok {
		return time.Time{}, false
	}
	t, ok := f.ToStorage(v).(time.Time)
	return t, ok
}

func isMissing(err error) bool {
	return apperr.KindOf(err) == apperr.KindNotFound
}
