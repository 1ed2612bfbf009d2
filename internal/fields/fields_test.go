package fields

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestField_ToStorage_Scalars(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		in    interface{}
		want  interface{}
	}{
		{"integer from float", Integer("count"), 3.9, int64(3)},
		{"integer from string", Integer("count"), "42", int64(42)},
		{"integer garbage", Integer("count"), "abc", nil},
		{"integer nil", Integer("count"), nil, nil},
		{"float from int", Float("cost"), 2, 2.0},
		{"float from string", Float("cost"), "2.5", 2.5},
		{"boolean nil", Boolean("active"), nil, false},
		{"boolean string", Boolean("active"), "true", true},
		{"boolean number", Boolean("active"), 0.0, false},
		{"selection number", Selection("priority", nil), 2.0, "2"},
		{"char nil", Char("name"), nil, nil},
		{"many2one string", Many2one("team_id", "team"), "abc", "abc"},
		{"many2one map", Many2one("team_id", "team"), map[string]interface{}{"_id": "abc"}, "abc"},
		{"many2one id key", Many2one("team_id", "team"), bson.M{"id": "xyz"}, "xyz"},
		{"many2one unknown", Many2one("team_id", "team"), 12, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.field.ToStorage(tt.in))
		})
	}
}

func TestField_ToStorage_ObjectIDReference(t *testing.T) {
	id := primitive.NewObjectID()
	f := Many2one("equipment_id", "equipment")
	assert.Equal(t, id.Hex(), f.ToStorage(id))
}

func TestField_Many2many(t *testing.T) {
	f := Many2many("member_ids", "employee")

	assert.Equal(t, []string{}, f.ToStorage(nil))
	assert.Equal(t, []string{}, f.ToStorage("not-a-list"))
	assert.Equal(t, []string{"a", "b"}, f.ToStorage([]interface{}{"a", map[string]interface{}{"id": "b"}}))
	assert.Equal(t, []string{"x"}, f.FromStorage(bson.A{"x"}))
	assert.Equal(t, []string{}, f.FromStorage(nil))
}

func TestField_Date(t *testing.T) {
	f := Date("schedule_date")

	stored := f.ToStorage("2024-01-15")
	ts, ok := stored.(time.Time)
	if assert.True(t, ok) {
		assert.Equal(t, 2024, ts.Year())
		assert.Equal(t, time.January, ts.Month())
		assert.Equal(t, 15, ts.Day())
	}
	assert.Equal(t, "2024-01-15", f.FromStorage(stored))

	// Mongo decodes dates into primitive.DateTime.
	assert.Equal(t, "2024-01-15", f.FromStorage(primitive.NewDateTimeFromTime(ts)))

	structured := time.Date(2023, 5, 1, 0, 0, 0, 0, time.Local)
	assert.Equal(t, structured, f.ToStorage(structured))

	assert.Nil(t, f.ToStorage("not a date"))
	assert.Nil(t, f.ToStorage(""))
	assert.Nil(t, f.FromStorage(nil))
}

func TestField_DateTime(t *testing.T) {
	f := DateTime("start_date")

	stored := f.ToStorage("2024-01-15 08:30:00")
	assert.Equal(t, "2024-01-15 08:30:00", f.FromStorage(stored))
	assert.Equal(t, "2024-01-15 00:00:00", f.FromStorage(f.ToStorage("2024-01-15")))
}

func TestField_DefaultValue(t *testing.T) {
	_, ok := Char("name").DefaultValue()
	assert.False(t, ok)

	v, ok := Boolean("active").DefaultValue()
	assert.True(t, ok)
	assert.Equal(t, false, v)

	v, ok = Boolean("active", Default(true)).DefaultValue()
	assert.True(t, ok)
	assert.Equal(t, true, v)

	calls := 0
	computed := Char("ref", Default(func() interface{} {
		calls++
		return "generated"
	}))
	v, ok = computed.DefaultValue()
	assert.True(t, ok)
	assert.Equal(t, "generated", v)
	assert.Equal(t, 1, calls)
}

func TestField_Allows(t *testing.T) {
	f := Selection("state", []Option{{Value: "active"}, {Value: "scrapped"}})
	assert.True(t, f.Allows("active"))
	assert.False(t, f.Allows("broken"))
	assert.True(t, Char("name").Allows("anything"))
}

func TestField_Options(t *testing.T) {
	f := Char("name", Required(), Indexed(), Readonly(), Label("Equipment Name"))
	assert.True(t, f.Required)
	assert.True(t, f.Index)
	assert.True(t, f.Readonly)
	assert.Equal(t, "Equipment Name", f.Label)
	assert.Equal(t, KindChar, f.Kind)
	assert.Equal(t, "char", f.Kind.String())
	assert.False(t, f.Unique)

	email := Char("email", Unique())
	assert.True(t, email.Index)
	assert.True(t, email.Unique)
}
