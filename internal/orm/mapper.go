package orm

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNoIdentity is returned by Write and Unlink on a record that was never
// persisted.
var ErrNoIdentity = errors.New("cannot modify record without id")

// MissingRequiredFieldError reports a required field absent at create time
// with no default to fall back on.
type MissingRequiredFieldError struct {
	Model string
	Field string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("Required field '%s' is missing", e.Field)
}

// SearchOptions pages and orders a search. Zero Limit means no limit.
type SearchOptions struct {
	Limit  int64
	Offset int64
	Order  string
}

// Mapper runs record operations for one model against its collection.
type Mapper struct {
	model *Model
	coll  db.Collection
	now   func() time.Time
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) MapperOption {
	return func(m *Mapper) { m.now = now }
}

// NewMapper binds model to its collection in store.
func NewMapper(store db.Store, model *Model, opts ...MapperOption) *Mapper {
	m := &Mapper{
		model: model,
		coll:  store.Collection(model.Name),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Model returns the mapper's model.
func (m *Mapper) Model() *Model {
	return m.model
}

// NewRecord wraps data as an in-memory record. It has an identity only if
// data carries an "_id".
func (m *Mapper) NewRecord(data bson.M) *Record {
	if data == nil {
		data = bson.M{}
	}
	r := &Record{mapper: m, data: data}
	if id, ok := data["_id"].(primitive.ObjectID); ok {
		r.id = id
	}
	return r
}

// prepare converts the declared fields of vals to their stored form.
// Undeclared keys are dropped.
func (m *Mapper) prepare(vals Values) bson.M {
	prepared := bson.M{}
	for name, value := range vals {
		f, ok := m.model.Field(name)
		if !ok || name == FieldCreateDate || name == FieldWriteDate {
			if name != "id" && name != "_id" {
				log.WithFields(log.Fields{"model": m.model.Name, "field": name}).Debug("Ignoring undeclared field")
			}
			continue
		}
		prepared[name] = f.ToStorage(value)
	}
	return prepared
}

// Create inserts a new record. Required fields missing from vals take
// their default or fail with MissingRequiredFieldError; optional fields
// with a default are filled as well so they can be filtered on.
func (m *Mapper) Create(ctx context.Context, vals Values) (*Record, error) {
	prepared := m.prepare(vals)

	for _, f := range m.model.fields {
		if _, present := prepared[f.Name]; present {
			continue
		}
		def, ok := f.DefaultValue()
		if ok {
			prepared[f.Name] = f.ToStorage(def)
			continue
		}
		if f.Required {
			return nil, &MissingRequiredFieldError{Model: m.model.Name, Field: f.Name}
		}
	}

	now := m.now()
	prepared[FieldCreateDate] = now
	prepared[FieldWriteDate] = now

	id, err := m.coll.InsertOne(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", m.model.Name, err)
	}
	prepared["_id"] = id
	return &Record{mapper: m, id: id, data: prepared}, nil
}

// Search returns records matching domain, ordered, offset then limited.
func (m *Mapper) Search(ctx context.Context, domain Domain, opts SearchOptions) ([]*Record, error) {
	filter, err := m.model.Filter(domain)
	if err != nil {
		return nil, err
	}
	findOpts := db.FindOptions{Skip: opts.Offset, Limit: opts.Limit}
	if opts.Order != "" {
		findOpts.Sort = ParseOrder(opts.Order)
	}
	docs, err := m.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", m.model.Name, err)
	}
	return m.wrap(docs), nil
}

// SearchOne returns the first match of Search, or nil.
func (m *Mapper) SearchOne(ctx context.Context, domain Domain, order string) (*Record, error) {
	records, err := m.Search(ctx, domain, SearchOptions{Limit: 1, Order: order})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// Count returns the number of records matching domain.
func (m *Mapper) Count(ctx context.Context, domain Domain) (int64, error) {
	filter, err := m.model.Filter(domain)
	if err != nil {
		return 0, err
	}
	n, err := m.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", m.model.Name, err)
	}
	return n, nil
}

// Browse fetches records by id in storage order. Ids that are malformed or
// match nothing are silently left out.
func (m *Mapper) Browse(ctx context.Context, ids ...string) ([]*Record, error) {
	objectIDs := bson.A{}
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		objectIDs = append(objectIDs, oid)
	}
	if len(objectIDs) == 0 {
		return []*Record{}, nil
	}
	docs, err := m.coll.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}}, db.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("browse %s: %w", m.model.Name, err)
	}
	return m.wrap(docs), nil
}

// Get fetches one record by id, failing with a NotFound error.
func (m *Mapper) Get(ctx context.Context, id string) (*Record, error) {
	records, err := m.Browse(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.NotFound("%s not found", m.model.Description)
	}
	return records[0], nil
}

func (m *Mapper) wrap(docs []bson.M) []*Record {
	records := make([]*Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, m.NewRecord(doc))
	}
	return records
}
