package db

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process document store. It understands the subset
// of the Mongo query language the record mapper emits: implicit equality
// (with array membership), $ne, $in, $nin, $gt, $gte, $lt, $lte, $regex
// with $options, and $and. Unique indexes passed to EnsureIndexes are
// enforced on insert and update.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*MemoryCollection
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*MemoryCollection)}
}

// Collection returns the named collection, creating it on first use.
func (s *MemoryStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &MemoryCollection{}
		s.collections[name] = c
	}
	return c
}

// EnsureIndexes records unique indexes; the others are ignored.
func (s *MemoryStore) EnsureIndexes(ctx context.Context, specs []IndexSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, spec := range specs {
		if !spec.Unique {
			continue
		}
		keys := make([]string, 0, len(spec.Keys))
		for _, k := range spec.Keys {
			keys = append(keys, k.Key)
		}
		c := s.Collection(spec.Collection).(*MemoryCollection)
		c.mu.Lock()
		c.unique = append(c.unique, keys)
		c.mu.Unlock()
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close(context.Context) error { return nil }

// MemoryCollection keeps documents in insertion order.
type MemoryCollection struct {
	mu     sync.RWMutex
	docs   []bson.M
	unique [][]string
}

// conflict finds a unique index that doc would violate. skip is the id of
// the document being updated.
func (c *MemoryCollection) conflict(doc bson.M, skip interface{}) error {
	for _, keys := range c.unique {
		for _, existing := range c.docs {
			if skip != nil && existing["_id"] == skip {
				continue
			}
			same := true
			for _, k := range keys {
				if !reflect.DeepEqual(existing[k], doc[k]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s", ErrDuplicateKey, strings.Join(keys, ", "))
			}
		}
	}
	return nil
}

func (c *MemoryCollection) InsertOne(ctx context.Context, doc bson.M) (primitive.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return primitive.NilObjectID, err
	}
	id, ok := doc["_id"].(primitive.ObjectID)
	if !ok || id.IsZero() {
		id = primitive.NewObjectID()
		doc["_id"] = id
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.docs {
		if existing["_id"] == id {
			return primitive.NilObjectID, fmt.Errorf("%w: _id %s", ErrDuplicateKey, id.Hex())
		}
	}
	if err := c.conflict(doc, nil); err != nil {
		return primitive.NilObjectID, err
	}
	c.docs = append(c.docs, cloneDoc(doc))
	return id, nil
}

func (c *MemoryCollection) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	matched := []bson.M{}
	for _, doc := range c.docs {
		ok, err := Match(doc, filter)
		if err != nil {
			c.mu.RUnlock()
			return nil, err
		}
		if ok {
			matched = append(matched, cloneDoc(doc))
		}
	}
	c.mu.RUnlock()

	if len(opts.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, key := range opts.Sort {
				dir := 1
				if n, ok := numeric(key.Value); ok && n < 0 {
					dir = -1
				}
				cmp := compareForSort(matched[i][key.Key], matched[j][key.Key])
				if cmp != 0 {
					return cmp*dir < 0
				}
			}
			return false
		})
	}

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			return []bson.M{}, nil
		}
		matched = matched[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < int64(len(matched)) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (c *MemoryCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, doc := range c.docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (c *MemoryCollection) UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if doc["_id"] == id {
			updated := cloneDoc(doc)
			for k, v := range set {
				if k == "_id" {
					continue
				}
				updated[k] = cloneValue(v)
			}
			if err := c.conflict(updated, id); err != nil {
				return 0, err
			}
			for k, v := range updated {
				doc[k] = v
			}
			return 1, nil
		}
	}
	return 0, nil
}

func (c *MemoryCollection) DeleteByID(ctx context.Context, id primitive.ObjectID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if doc["_id"] == id {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// Match reports whether doc satisfies filter.
func Match(doc bson.M, filter bson.M) (bool, error) {
	for key, cond := range filter {
		if key == "$and" {
			clauses, ok := cond.([]bson.M)
			if !ok {
				if arr, isArr := cond.(bson.A); isArr {
					for _, item := range arr {
						m, isM := item.(bson.M)
						if !isM {
							return false, fmt.Errorf("$and expects documents, got %T", item)
						}
						clauses = append(clauses, m)
					}
				} else {
					return false, fmt.Errorf("$and expects a list, got %T", cond)
				}
			}
			for _, clause := range clauses {
				ok, err := Match(doc, clause)
				if err != nil || !ok {
					return false, err
				}
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return false, fmt.Errorf("unsupported top-level operator %s", key)
		}

		value, present := doc[key]
		ok, err := matchCondition(value, present, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchCondition(value interface{}, present bool, cond interface{}) (bool, error) {
	ops, isOps := operatorDoc(cond)
	if !isOps {
		return equalsOrContains(value, present, cond), nil
	}

	var regexOptions string
	if o, ok := ops["$options"].(string); ok {
		regexOptions = o
	}
	for op, arg := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = equalsOrContains(value, present, arg)
		case "$ne":
			ok = !equalsOrContains(value, present, arg)
		case "$in":
			ok = inList(value, present, arg)
		case "$nin":
			ok = !inList(value, present, arg)
		case "$gt", "$gte", "$lt", "$lte":
			if !present || value == nil {
				return false, nil
			}
			cmp, comparable := compareValues(value, arg)
			if !comparable {
				return false, nil
			}
			switch op {
			case "$gt":
				ok = cmp > 0
			case "$gte":
				ok = cmp >= 0
			case "$lt":
				ok = cmp < 0
			case "$lte":
				ok = cmp <= 0
			}
		case "$regex":
			pattern, isString := arg.(string)
			if !isString {
				return false, fmt.Errorf("$regex expects a string, got %T", arg)
			}
			if strings.Contains(regexOptions, "i") {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return false, fmt.Errorf("invalid $regex: %w", err)
			}
			s, isStr := value.(string)
			ok = isStr && re.MatchString(s)
		case "$options":
			continue
		default:
			return false, fmt.Errorf("unsupported operator %s", op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func operatorDoc(cond interface{}) (bson.M, bool) {
	m, ok := cond.(bson.M)
	if !ok {
		if plain, isMap := cond.(map[string]interface{}); isMap {
			m = bson.M(plain)
		} else {
			return nil, false
		}
	}
	if len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func equalsOrContains(value interface{}, present bool, want interface{}) bool {
	if want == nil {
		return !present || value == nil
	}
	if !present {
		return false
	}
	if items, ok := asList(value); ok {
		if _, wantList := asList(want); !wantList {
			for _, item := range items {
				if valuesEqual(item, want) {
					return true
				}
			}
			return false
		}
	}
	return valuesEqual(value, want)
}

func inList(value interface{}, present bool, arg interface{}) bool {
	candidates, ok := asList(arg)
	if !ok {
		return false
	}
	for _, c := range candidates {
		if equalsOrContains(value, present, c) {
			return true
		}
	}
	return false
}

func asList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case bson.A:
		return t, true
	case []interface{}:
		return t, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []primitive.ObjectID:
		out := make([]interface{}, len(t))
		for i, id := range t {
			out[i] = id
		}
		return out, true
	default:
		return nil, false
	}
}

func valuesEqual(a, b interface{}) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two scalars of compatible type.
func compareValues(a, b interface{}) (int, bool) {
	if an, ok := numeric(a); ok {
		if bn, ok := numeric(b); ok {
			switch {
			case an < bn:
				return -1, true
			case an > bn:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if at, ok := asTime(a); ok {
		if bt, ok := asTime(b); ok {
			return at.Compare(bt), true
		}
		return 0, false
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			default:
				return 1, true
			}
		}
	case primitive.ObjectID:
		if bv, ok := b.(primitive.ObjectID); ok {
			return strings.Compare(av.Hex(), bv.Hex()), true
		}
	}
	return 0, false
}

// compareForSort orders any two values the way Mongo brackets types:
// missing/null first, then numbers, strings, ObjectIDs, booleans, dates.
func compareForSort(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if cmp, ok := compareValues(a, b); ok {
		return cmp
	}
	return 0
}

func typeRank(v interface{}) int {
	if v == nil {
		return 0
	}
	if _, ok := numeric(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case primitive.ObjectID:
		return 4
	case bool:
		return 5
	}
	if _, ok := asTime(v); ok {
		return 6
	}
	return 3
}

func numeric(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	default:
		return time.Time{}, false
	}
}

func cloneDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return cloneDoc(t)
	case []string:
		return append([]string{}, t...)
	case bson.A:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
