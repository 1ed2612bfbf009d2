// Package fields declares typed record attributes and converts their values
// to and from the document store representation.
package fields

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// DateLayout is the textual form of Date values.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the textual form of DateTime values.
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Kind is the type of a field.
type Kind int

const (
	KindChar Kind = iota
	KindText
	KindInteger
	KindFloat
	KindBoolean
	KindDate
	KindDateTime
	KindSelection
	KindMany2one
	KindMany2many
)

func (k Kind) String() string {
	switch k {
	case KindChar:
		return "char"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindSelection:
		return "selection"
	case KindMany2one:
		return "many2one"
	case KindMany2many:
		return "many2many"
	default:
		return "unknown"
	}
}

// Option is one allowed value of a selection field.
type Option struct {
	Value string
	Label string
}

// Field describes one attribute of a record type. Required-ness and
// uniqueness are checked by the record mapper, not here.
type Field struct {
	Name      string
	Label     string
	Kind      Kind
	Required  bool
	Readonly  bool
	Index     bool
	Unique    bool
	Comodel   string
	Selection []Option

	// Default is either a value or a func() interface{} evaluated on use.
	Default interface{}
}

// FieldOption configures a Field.
type FieldOption func(*Field)

func Required() FieldOption { return func(f *Field) { f.Required = true } }
func Readonly() FieldOption { return func(f *Field) { f.Readonly = true } }
func Indexed() FieldOption  { return func(f *Field) { f.Index = true } }

// Unique asks for a unique index on the field; it implies Indexed.
func Unique() FieldOption {
	return func(f *Field) {
		f.Index = true
		f.Unique = true
	}
}

func Label(label string) FieldOption {
	return func(f *Field) { f.Label = label }
}

// Default sets a static default, or a computed one when v is a
// func() interface{}.
func Default(v interface{}) FieldOption {
	return func(f *Field) { f.Default = v }
}

func newField(name string, kind Kind, opts []FieldOption) Field {
	f := Field{Name: name, Kind: kind}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func Char(name string, opts ...FieldOption) Field    { return newField(name, KindChar, opts) }
func Text(name string, opts ...FieldOption) Field    { return newField(name, KindText, opts) }
func Integer(name string, opts ...FieldOption) Field { return newField(name, KindInteger, opts) }
func Float(name string, opts ...FieldOption) Field   { return newField(name, KindFloat, opts) }
func Date(name string, opts ...FieldOption) Field    { return newField(name, KindDate, opts) }
func DateTime(name string, opts ...FieldOption) Field {
	return newField(name, KindDateTime, opts)
}

// Boolean fields default to false unless another default is given.
func Boolean(name string, opts ...FieldOption) Field {
	return newField(name, KindBoolean, append([]FieldOption{Default(false)}, opts...))
}

func Selection(name string, options []Option, opts ...FieldOption) Field {
	f := newField(name, KindSelection, opts)
	f.Selection = options
	return f
}

func Many2one(name, comodel string, opts ...FieldOption) Field {
	f := newField(name, KindMany2one, opts)
	f.Comodel = comodel
	return f
}

func Many2many(name, comodel string, opts ...FieldOption) Field {
	f := newField(name, KindMany2many, opts)
	f.Comodel = comodel
	return f
}

// DefaultValue evaluates the field default. ok is false when there is none.
func (f Field) DefaultValue() (value interface{}, ok bool) {
	if f.Default == nil {
		return nil, false
	}
	if fn, isFn := f.Default.(func() interface{}); isFn {
		return fn(), true
	}
	return f.Default, true
}

// Allows reports whether v is one of the selection values. Non-selection
// fields allow everything.
func (f Field) Allows(v string) bool {
	if f.Kind != KindSelection || len(f.Selection) == 0 {
		return true
	}
	for _, o := range f.Selection {
		if o.Value == v {
			return true
		}
	}
	return false
}

// ToStorage converts an input value to its stored form. It never fails:
// values that cannot be converted become nil (or an empty list for
// many2many fields).
func (f Field) ToStorage(v interface{}) interface{} {
	switch f.Kind {
	case KindBoolean:
		if v == nil {
			return false
		}
		return toBool(v)
	case KindMany2many:
		return toIDList(v)
	}
	if v == nil {
		return nil
	}
	switch f.Kind {
	case KindInteger:
		return toInt(v)
	case KindFloat:
		return toFloat(v)
	case KindDate:
		return parseTime(v, DateLayout, DateTimeLayout, time.RFC3339)
	case KindDateTime:
		return parseTime(v, DateTimeLayout, time.RFC3339, DateLayout)
	case KindMany2one:
		id, ok := extractID(v)
		if !ok {
			return nil
		}
		return id
	default:
		return toString(v)
	}
}

// FromStorage converts a stored value to its output form: dates become
// their textual layout, references bare id strings.
func (f Field) FromStorage(v interface{}) interface{} {
	if f.Kind == KindMany2many {
		return toIDList(v)
	}
	if v == nil {
		return nil
	}
	switch f.Kind {
	case KindInteger:
		return toInt(v)
	case KindFloat:
		return toFloat(v)
	case KindBoolean:
		return toBool(v)
	case KindDate:
		return formatTime(v, DateLayout)
	case KindDateTime:
		return formatTime(v, DateTimeLayout)
	case KindMany2one:
		id, ok := extractID(v)
		if !ok {
			return nil
		}
		return id
	default:
		return toString(v)
	}
}

func toString(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return t
	case primitive.ObjectID:
		return t.Hex()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func toInt(v interface{}) interface{} {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float32:
		return int64(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return int64(t)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if fl, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(fl)
		}
		return nil
	default:
		return nil
	}
}

func toFloat(v interface{}) interface{} {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	case bool:
		if t {
			return 1.0
		}
		return 0.0
	case string:
		fl, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		return fl
	default:
		return nil
	}
}

func toBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return t != ""
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return v != nil
	}
}

// parseTime passes structured times through and parses strings with the
// first matching layout.
func parseTime(v interface{}, layouts ...string) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t
	case primitive.DateTime:
		return t.Time()
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		for _, layout := range layouts {
			var parsed time.Time
			var err error
			if layout == time.RFC3339 {
				parsed, err = time.Parse(layout, s)
			} else {
				parsed, err = time.ParseInLocation(layout, s, time.Local)
			}
			if err == nil {
				return parsed
			}
		}
		return nil
	default:
		return nil
	}
}

func formatTime(v interface{}, layout string) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.In(time.Local).Format(layout)
	case primitive.DateTime:
		return t.Time().In(time.Local).Format(layout)
	case string:
		return t
	default:
		return nil
	}
}

// extractID returns the bare identifier of a reference value, which may be
// an id string, an ObjectID or a document carrying "_id" or "id".
func extractID(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case primitive.ObjectID:
		return t.Hex(), !t.IsZero()
	case bson.M:
		return extractFromMap(t)
	case map[string]interface{}:
		return extractFromMap(t)
	case bson.D:
		return extractFromMap(t.Map())
	default:
		return "", false
	}
}

func extractFromMap(m map[string]interface{}) (string, bool) {
	if id, ok := m["_id"]; ok {
		return extractID(id)
	}
	if id, ok := m["id"]; ok {
		return extractID(id)
	}
	return "", false
}

func toIDList(v interface{}) []string {
	ids := []string{}
	var items []interface{}
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			if s != "" {
				ids = append(ids, s)
			}
		}
		return ids
	case []interface{}:
		items = t
	case bson.A:
		items = t
	default:
		return ids
	}
	for _, item := range items {
		if id, ok := extractID(item); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
