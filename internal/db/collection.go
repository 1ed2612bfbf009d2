package db

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNilCollection is returned when a collection handle was never bound.
	ErrNilCollection = errors.New("mongo collection is nil")
	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
)

// FindOptions controls ordering and paging of Find. Zero Skip and Limit
// mean no offset and no limit.
type FindOptions struct {
	Sort  bson.D
	Skip  int64
	Limit int64
}

// Collection defines the document operations the record mapper needs.
// Each call is atomic for the single document it touches; nothing spans
// documents.
type Collection interface {
	InsertOne(ctx context.Context, doc bson.M) (primitive.ObjectID, error)
	Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) (int64, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// IndexSpec describes one index to create on a collection.
type IndexSpec struct {
	Collection string
	Keys       bson.D
	Unique     bool
}

// Store hands out named collections and owns the connection lifecycle.
type Store interface {
	Collection(name string) Collection
	EnsureIndexes(ctx context.Context, specs []IndexSpec) error
	Close(ctx context.Context) error
}
