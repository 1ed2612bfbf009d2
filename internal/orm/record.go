package orm

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/fields"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record is one document of a model, held in its stored form.
type Record struct {
	mapper *Mapper
	id     primitive.ObjectID
	data   bson.M
}

// ID returns the hex id, or "" when the record was never persisted.
func (r *Record) ID() string {
	if r.id.IsZero() {
		return ""
	}
	return r.id.Hex()
}

// ObjectID returns the store identifier.
func (r *Record) ObjectID() primitive.ObjectID {
	return r.id
}

// Model returns the record's model.
func (r *Record) Model() *Model {
	return r.mapper.model
}

// Write persists vals and mirrors them into the record so later reads see
// the change without a re-fetch.
func (r *Record) Write(ctx context.Context, vals Values) error {
	if r.id.IsZero() {
		return ErrNoIdentity
	}
	prepared := r.mapper.prepare(vals)
	prepared[FieldWriteDate] = r.mapper.now()

	matched, err := r.mapper.coll.UpdateByID(ctx, r.id, prepared)
	if err != nil {
		return fmt.Errorf("write %s %s: %w", r.mapper.model.Name, r.ID(), err)
	}
	if matched == 0 {
		return apperr.NotFound("%s not found", r.mapper.model.Description)
	}
	for k, v := range prepared {
		r.data[k] = v
	}
	return nil
}

// Unlink deletes the stored document.
func (r *Record) Unlink(ctx context.Context) error {
	if r.id.IsZero() {
		return ErrNoIdentity
	}
	deleted, err := r.mapper.coll.DeleteByID(ctx, r.id)
	if err != nil {
		return fmt.Errorf("unlink %s %s: %w", r.mapper.model.Name, r.ID(), err)
	}
	if deleted == 0 {
		return apperr.NotFound("%s not found", r.mapper.model.Description)
	}
	return nil
}

// Read formats the record for output: every declared field (falling back
// to defaults), the timestamps and a synthesized "id". With names, only
// those fields are kept; "id" is always included.
func (r *Record) Read(names ...string) map[string]interface{} {
	out := map[string]interface{}{"id": r.ID()}
	for _, f := range r.mapper.model.fields {
		if v, ok := r.value(f); ok {
			out[f.Name] = v
		}
	}
	for _, name := range []string{FieldCreateDate, FieldWriteDate} {
		if raw, ok := r.data[name]; ok && raw != nil {
			out[name] = metadataFields[name].FromStorage(raw)
		}
	}

	if len(names) == 0 {
		return out
	}
	keep := map[string]bool{"id": true}
	for _, n := range names {
		keep[n] = true
	}
	for k := range out {
		if !keep[k] {
			delete(out, k)
		}
	}
	return out
}

func (r *Record) value(f fields.Field) (interface{}, bool) {
	if raw, ok := r.data[f.Name]; ok {
		return f.FromStorage(raw), true
	}
	if def, ok := f.DefaultValue(); ok {
		return f.FromStorage(f.ToStorage(def)), true
	}
	if f.Kind == fields.KindMany2many {
		return []string{}, true
	}
	return nil, false
}

// Has reports whether the stored document carries name.
func (r *Record) Has(name string) bool {
	_, ok := r.data[name]
	return ok
}

// Get returns the output form of a field, its default when absent, or nil.
func (r *Record) Get(name string) interface{} {
	f, ok := r.mapper.model.Field(name)
	if !ok {
		return r.data[name]
	}
	v, _ := r.value(f)
	return v
}

// String returns a text, selection, date or reference field as a string.
func (r *Record) String(name string) string {
	s, _ := r.Get(name).(string)
	return s
}

// Int returns a numeric field truncated to int64.
func (r *Record) Int(name string) int64 {
	switch v := r.Get(name).(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Float returns a numeric field as float64.
func (r *Record) Float(name string) float64 {
	switch v := r.Get(name).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Bool returns a boolean field.
func (r *Record) Bool(name string) bool {
	b, _ := r.Get(name).(bool)
	return b
}

// Time returns a stored date or datetime field.
func (r *Record) Time(name string) (time.Time, bool) {
	switch v := r.data[name].(type) {
	case time.Time:
		return v.In(time.Local), true
	case primitive.DateTime:
		return v.Time().In(time.Local), true
	default:
		return time.Time{}, false
	}
}

// IDs returns a many2many field as id strings.
func (r *Record) IDs(name string) []string {
	ids, _ := r.Get(name).([]string)
	if ids == nil {
		return []string{}
	}
	return ids
}
