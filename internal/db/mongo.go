package db

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects to MongoDB and pings it.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// MongoStore serves collections from one MongoDB database.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoStore binds a store to the named database of a connected client.
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{client: client, database: client.Database(dbName)}
}

// OpenMongoStore connects and returns a store for dbName.
func OpenMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := ConnectMongo(ctx, uri)
	if err != nil {
		return nil, err
	}
	return NewMongoStore(client, dbName), nil
}

// Collection returns the named collection.
func (s *MongoStore) Collection(name string) Collection {
	return &MongoCollection{Collection: s.database.Collection(name)}
}

// EnsureIndexes creates the given indexes; existing ones are left alone.
func (s *MongoStore) EnsureIndexes(ctx context.Context, specs []IndexSpec) error {
	byCollection := make(map[string][]mongo.IndexModel)
	for _, spec := range specs {
		model := mongo.IndexModel{Keys: spec.Keys}
		if spec.Unique {
			model.Options = options.Index().SetUnique(true)
		}
		byCollection[spec.Collection] = append(byCollection[spec.Collection], model)
	}
	for name, models := range byCollection {
		created, err := s.database.Collection(name).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
		log.WithFields(log.Fields{"collection": name, "indexes": len(created)}).Debug("Indexes ensured")
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// MongoCollection wraps a MongoDB collection.
type MongoCollection struct {
	Collection *mongo.Collection
}

// InsertOne inserts doc, assigning an ObjectID when it has none.
func (c *MongoCollection) InsertOne(ctx context.Context, doc bson.M) (primitive.ObjectID, error) {
	if c.Collection == nil {
		return primitive.NilObjectID, ErrNilCollection
	}
	id, ok := doc["_id"].(primitive.ObjectID)
	if !ok || id.IsZero() {
		id = primitive.NewObjectID()
		doc["_id"] = id
	}
	if _, err := c.Collection.InsertOne(ctx, doc); err != nil {
		return primitive.NilObjectID, duplicateKey(err)
	}
	return id, nil
}

// Find returns every document matching filter.
func (c *MongoCollection) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	if filter == nil {
		filter = bson.M{}
	}
	findOptions := options.Find()
	if len(opts.Sort) > 0 {
		findOptions.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOptions.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOptions.SetLimit(opts.Limit)
	}

	cursor, err := c.Collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// CountDocuments counts documents matching filter.
func (c *MongoCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	if filter == nil {
		filter = bson.M{}
	}
	return c.Collection.CountDocuments(ctx, filter)
}

// UpdateByID applies $set to the document with the given id and returns
// the matched count.
func (c *MongoCollection) UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	result, err := c.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return 0, duplicateKey(err)
	}
	return result.MatchedCount, nil
}

// DeleteByID deletes the document with the given id and returns the
// deleted count.
func (c *MongoCollection) DeleteByID(ctx context.Context, id primitive.ObjectID) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// duplicateKey wraps unique index violations in ErrDuplicateKey.
func duplicateKey(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}
