package orm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ukydev/maintenance-tracker/internal/fields"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Condition is one (field, operator, value) triple.
type Condition struct {
	Field    string
	Operator string
	Value    interface{}
}

// Cond builds a Condition.
func Cond(field, operator string, value interface{}) Condition {
	return Condition{Field: field, Operator: operator, Value: value}
}

// Domain is an ordered list of conditions joined by AND.
type Domain []Condition

var mongoOperators = map[string]string{
	"!=":     "$ne",
	"in":     "$in",
	"not in": "$nin",
	">":      "$gt",
	">=":     "$gte",
	"<":      "$lt",
	"<=":     "$lte",
}

// Filter translates a domain into a Mongo filter. Values aimed at declared
// fields are converted to their stored form first, so "2024-01-01" compares
// against a stored date. A field constrained twice is merged into one
// operator document, or split into $and when the constraints collide.
func (m *Model) Filter(domain Domain) (bson.M, error) {
	query := bson.M{}
	var extra bson.A

	for _, c := range domain {
		key, cond, err := m.translate(c)
		if err != nil {
			return nil, err
		}
		existing, dup := query[key]
		if !dup {
			query[key] = cond
			continue
		}
		if merged, ok := mergeOperators(existing, cond); ok {
			query[key] = merged
			continue
		}
		extra = append(extra, bson.M{key: cond})
	}

	if len(extra) > 0 {
		query["$and"] = extra
	}
	return query, nil
}

func (m *Model) translate(c Condition) (string, interface{}, error) {
	key := c.Field
	if key == "id" || key == "_id" {
		key = "_id"
	}
	value := c.Value

	switch op := strings.ToLower(strings.TrimSpace(c.Operator)); op {
	case "=", "==":
		return key, m.storageValue(c.Field, value), nil
	case "in", "not in":
		list, err := m.storageList(c.Field, value)
		if err != nil {
			return "", nil, err
		}
		return key, bson.M{mongoOperators[op]: list}, nil
	case "!=", ">", ">=", "<", "<=":
		return key, bson.M{mongoOperators[op]: m.storageValue(c.Field, value)}, nil
	case "like", "ilike":
		pattern := regexp.QuoteMeta(fmt.Sprint(value))
		return key, bson.M{"$regex": pattern, "$options": "i"}, nil
	default:
		return "", nil, fmt.Errorf("unsupported domain operator %q on field %s", c.Operator, c.Field)
	}
}

func (m *Model) storageValue(name string, value interface{}) interface{} {
	if value == nil {
		return nil
	}
	if name == "id" || name == "_id" {
		if s, ok := value.(string); ok {
			if oid, err := primitive.ObjectIDFromHex(s); err == nil {
				return oid
			}
		}
		return value
	}
	f, ok := m.Field(name)
	if !ok || f.Kind == fields.KindMany2many {
		return value
	}
	if converted := f.ToStorage(value); converted != nil {
		return converted
	}
	return value
}

func (m *Model) storageList(name string, value interface{}) (bson.A, error) {
	var items []interface{}
	switch v := value.(type) {
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []interface{}:
		items = v
	case bson.A:
		items = v
	default:
		return nil, fmt.Errorf("operator in/not in on %s expects a list, got %T", name, value)
	}
	out := bson.A{}
	for _, item := range items {
		out = append(out, m.storageValue(name, item))
	}
	return out, nil
}

func mergeOperators(a, b interface{}) (bson.M, bool) {
	am, ok := a.(bson.M)
	if !ok || !isOperatorDoc(am) {
		return nil, false
	}
	bm, ok := b.(bson.M)
	if !ok || !isOperatorDoc(bm) {
		return nil, false
	}
	merged := bson.M{}
	for k, v := range am {
		merged[k] = v
	}
	for k, v := range bm {
		if _, clash := merged[k]; clash {
			return nil, false
		}
		merged[k] = v
	}
	return merged, true
}

func isOperatorDoc(m bson.M) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// ParseOrder turns "field, other DESC" into Mongo sort keys, applied in the
// given order. Direction defaults to ascending.
func ParseOrder(order string) bson.D {
	sortKeys := bson.D{}
	for _, part := range strings.Split(order, ",") {
		tokens := strings.Fields(part)
		if len(tokens) == 0 {
			continue
		}
		name := tokens[0]
		if name == "id" {
			name = "_id"
		}
		direction := 1
		if len(tokens) > 1 && strings.EqualFold(tokens[1], "DESC") {
			direction = -1
		}
		sortKeys = append(sortKeys, bson.E{Key: name, Value: direction})
	}
	return sortKeys
}
