// Package orm maps typed records onto document-store collections. A Model
// declares a collection's fields; a Mapper runs create, search, count,
// browse, write, unlink and read against it.
package orm

import (
	"github.com/ukydev/maintenance-tracker/internal/db"
	"github.com/ukydev/maintenance-tracker/internal/fields"
	"go.mongodb.org/mongo-driver/bson"
)

// Metadata fields stamped on every document.
const (
	FieldCreateDate = "create_date"
	FieldWriteDate  = "write_date"
)

var metadataFields = map[string]fields.Field{
	FieldCreateDate: fields.DateTime(FieldCreateDate, fields.Readonly()),
	FieldWriteDate:  fields.DateTime(FieldWriteDate, fields.Readonly()),
}

// Values holds field values keyed by field name.
type Values map[string]interface{}

// Has reports whether key is present, even with a nil value.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Model is the declaration of a record type stored in one collection.
type Model struct {
	Name        string
	Description string
	fields      []fields.Field
	byName      map[string]int
	composite   []bson.D
}

// NewModel declares a record type over the collection called name.
func NewModel(name, description string, fs ...fields.Field) *Model {
	m := &Model{
		Name:        name,
		Description: description,
		byName:      make(map[string]int, len(fs)),
	}
	for _, f := range fs {
		m.byName[f.Name] = len(m.fields)
		m.fields = append(m.fields, f)
	}
	return m
}

// WithCompositeIndex adds a multi-key index to the model's index list.
func (m *Model) WithCompositeIndex(keys ...string) *Model {
	d := bson.D{}
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: 1})
	}
	m.composite = append(m.composite, d)
	return m
}

// Fields returns the declared fields in declaration order.
func (m *Model) Fields() []fields.Field {
	return m.fields
}

// Field looks up a declared field, including the metadata timestamps.
func (m *Model) Field(name string) (fields.Field, bool) {
	if i, ok := m.byName[name]; ok {
		return m.fields[i], true
	}
	f, ok := metadataFields[name]
	return f, ok
}

// Indexes lists the single-field indexes flagged on fields, unique where
// the field asks for it, plus the composite ones.
func (m *Model) Indexes() []db.IndexSpec {
	var specs []db.IndexSpec
	for _, f := range m.fields {
		if f.Index {
			specs = append(specs, db.IndexSpec{Collection: m.Name, Keys: bson.D{{Key: f.Name, Value: 1}}, Unique: f.Unique})
		}
	}
	for _, keys := range m.composite {
		specs = append(specs, db.IndexSpec{Collection: m.Name, Keys: keys})
	}
	return specs
}
