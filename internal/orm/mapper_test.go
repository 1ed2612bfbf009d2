package orm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/maintenance-tracker/internal/apperr"
	"github.com/ukydev/maintenance-tracker/internal/db"
	"github.com/ukydev/maintenance-tracker/internal/fields"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testModel() *Model {
	return NewModel("test.widget", "Widget",
		fields.Char("name", fields.Required()),
		fields.Selection("state", []fields.Option{{Value: "new"}, {Value: "done"}}, fields.Required(), fields.Default("new")),
		fields.Integer("priority", fields.Default(1)),
		fields.Float("weight"),
		fields.Boolean("active", fields.Default(true)),
		fields.Date("due_date"),
		fields.Many2one("owner_id", "test.owner"),
		fields.Many2many("tag_ids", "test.tag"),
	)
}

func newTestMapper() *Mapper {
	clock := time.Date(2024, 3, 10, 9, 30, 0, 0, time.Local)
	return NewMapper(db.NewMemoryStore(), testModel(), WithClock(func() time.Time { return clock }))
}

func TestCreate_FillsDefaultsAndTimestamps(t *testing.T) {
	m := newTestMapper()
	ctx := context.Background()

	rec, err := m.Create(ctx, Values{"name": "Pump", "unknown": "dropped", "_id": "x"})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID())

	out := rec.Read()
	assert.Equal(t, rec.ID(), out["id"])
	assert.Equal(t, "Pump", out["name"])
	assert.Equal(t, "new", out["state"])
	assert.Equal(t, int64(1), out["priority"])
	assert.Equal(t, true, out["active"])
	assert.Equal(t, "2024-03-10 09:30:00", out["create_date"])
	assert.Equal(t, "2024-03-10 09:30:00", out["write_date"])
	assert.Equal(t, []string{}, out["tag_ids"])
	assert.NotContains(t, out, "unknown")

	n, err := m.Count(ctx, Domain{Cond("active", "=", true)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCreate_MissingRequired(t *testing.T) {
	m := newTestMapper()

	_, err := m.Create(context.Background(), Values{"priority": 2})
	require.Error(t, err)

	var missing *MissingRequiredFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "name", missing.Field)
	assert.Equal(t, "Required field 'name' is missing", err.Error())
}

func TestSearch_DomainOrderAndPaging(t *testing.T) {
	m := newTestMapper()
	ctx := context.Background()

	for i, name := range []string{"Alpha", "Bravo", "Charlie", "Delta"} {
		_, err := m.Create(ctx, Values{"name": name, "priority": i, "due_date": time.Date(2024, 1, i+1, 0, 0, 0, 0, time.Local)})
		require.NoError(t, err)
	}

	found, err := m.Search(ctx, Domain{Cond("priority", ">=", 1)}, SearchOptions{Order: "priority DESC"})
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "Delta", found[0].String("name"))
	assert.Equal(t, "Bravo", found[2].String("name"))

	page, err := m.Search(ctx, nil, SearchOptions{Order: "name", Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Bravo", page[0].String("name"))
	assert.Equal(t, "Charlie", page[1].String("name"))

	ranged, err := m.Search(ctx, Domain{
		Cond("due_date", ">=", "2024-01-02"),
		Cond("due_date", "<=", "2024-01-03"),
	}, SearchOptions{Order: "due_date"})
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "Bravo", ranged[0].String("name"))
	assert.Equal(t, "2024-01-02", ranged[0].String("due_date"))

	liked, err := m.Search(ctx, Domain{Cond("name", "ilike", "ar")}, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, "Charlie", liked[0].String("name"))

	// Pattern values match literally
	literal, err := m.Search(ctx, Domain{Cond("name", "like", "^al.*")}, SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, literal)

	_, err = m.Search(ctx, Domain{Cond("name", "child_of", "x")}, SearchOptions{})
	assert.Error(t, err)
}

func TestBrowseAndGet(t *testing.T) {
	m := newTestMapper()
	ctx := context.Background()

	a, err := m.Create(ctx, Values{"name": "A"})
	require.NoError(t, err)

	found, err := m.Browse(ctx, a.ID(), "not-an-id", primitive.NewObjectID().Hex())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID(), found[0].ID())

	_, err = m.Get(ctx, primitive.NewObjectID().Hex())
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Widget not found", err.Error())
}

func TestRecord_WriteAndUnlink(t *testing.T) {
	m := newTestMapper()
	ctx := context.Background()

	rec, err := m.Create(ctx, Values{"name": "Pump"})
	require.NoError(t, err)

	owner := primitive.NewObjectID()
	require.NoError(t, rec.Write(ctx, Values{"state": "done", "weight": "2.5", "owner_id": bson.M{"_id": owner}, "tag_ids": []interface{}{"a", "b"}}))
	assert.Equal(t, "done", rec.String("state"))
	assert.Equal(t, 2.5, rec.Float("weight"))
	assert.Equal(t, owner.Hex(), rec.String("owner_id"))
	assert.Equal(t, []string{"a", "b"}, rec.IDs("tag_ids"))

	reloaded, err := m.Get(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "done", reloaded.String("state"))

	n, err := m.Count(ctx, Domain{Cond("tag_ids", "in", []string{"b"})})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, rec.Unlink(ctx))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(rec.Write(ctx, Values{"name": "gone"})))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(rec.Unlink(ctx)))
}

func TestRecord_WithoutIdentity(t *testing.T) {
	m := newTestMapper()
	rec := m.NewRecord(bson.M{"name": "draft"})

	assert.Equal(t, "", rec.ID())
	assert.ErrorIs(t, rec.Write(context.Background(), Values{"name": "x"}), ErrNoIdentity)
	assert.ErrorIs(t, rec.Unlink(context.Background()), ErrNoIdentity)
}

func TestRecord_ReadSubset(t *testing.T) {
	m := newTestMapper()
	rec, err := m.Create(context.Background(), Values{"name": "Pump", "priority": 3})
	require.NoError(t, err)

	out := rec.Read("name")
	assert.Len(t, out, 2)
	assert.Equal(t, "Pump", out["name"])
	assert.Equal(t, rec.ID(), out["id"])
}

func TestFilter_MergesAndSplits(t *testing.T) {
	model := testModel()

	filter, err := model.Filter(Domain{Cond("priority", ">=", 1), Cond("priority", "<", 3)})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"priority": bson.M{"$gte": int64(1), "$lt": int64(3)}}, filter)

	filter, err = model.Filter(Domain{Cond("priority", "!=", 1), Cond("priority", "!=", 2)})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$ne": int64(1)}, filter["priority"])
	assert.Equal(t, bson.A{bson.M{"priority": bson.M{"$ne": int64(2)}}}, filter["$and"])

	id := primitive.NewObjectID()
	filter, err = model.Filter(Domain{Cond("id", "=", id.Hex())})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": id}, filter)

	_, err = model.Filter(Domain{Cond("state", "in", "new")})
	assert.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "schedule_date", Value: -1}, {Key: "_id", Value: 1}}, ParseOrder("schedule_date DESC, id"))
	assert.Empty(t, ParseOrder(""))
}

func TestModel_Indexes(t *testing.T) {
	model := NewModel("test.indexed", "Indexed",
		fields.Char("code", fields.Indexed()),
		fields.Char("name"),
		fields.Char("email", fields.Unique()),
	).WithCompositeIndex("code", "name")

	specs := model.Indexes()
	require.Len(t, specs, 3)
	assert.Equal(t, bson.D{{Key: "code", Value: 1}}, specs[0].Keys)
	assert.False(t, specs[0].Unique)
	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, specs[1].Keys)
	assert.True(t, specs[1].Unique)
	assert.Equal(t, bson.D{{Key: "code", Value: 1}, {Key: "name", Value: 1}}, specs[2].Keys)
	assert.Equal(t, "test.indexed", specs[2].Collection)
}
