package document

import (
	"context"
	"fmt"

	mongostore "github.com/nimburion/taskdesk/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoExecutor defines the document execution contract for MongoDB-backed stores.
// Filters and updates are passed through unchanged; callers own operator syntax.
type MongoExecutor interface {
	InsertOne(ctx context.Context, collection string, document map[string]interface{}) (interface{}, error)
	// FindOne returns found=false with a nil error when no document matches.
	FindOne(ctx context.Context, collection string, filter Filter) (doc map[string]interface{}, found bool, err error)
	Find(ctx context.Context, collection string, opts QueryOptions) ([]map[string]interface{}, error)
	UpdateMany(ctx context.Context, collection string, filter Filter, update map[string]interface{}) (int64, error)
	DeleteMany(ctx context.Context, collection string, filter Filter) (int64, error)
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// MongoDBExecutor adapts store/mongodb adapter to the repository/document executor contract.
type MongoDBExecutor struct {
	adapter *mongostore.Adapter
}

// NewMongoDBExecutor creates a new MongoDBExecutor instance.
func NewMongoDBExecutor(adapter *mongostore.Adapter) (*MongoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	return &MongoDBExecutor{adapter: adapter}, nil
}

// InsertOne inserts a document into the collection and returns the assigned _id.
func (e *MongoDBExecutor) InsertOne(ctx context.Context, collection string, document map[string]interface{}) (interface{}, error) {
	return e.adapter.InsertOne(ctx, collection, bson.M(document))
}

// FindOne finds a single document matching the filter.
func (e *MongoDBExecutor) FindOne(ctx context.Context, collection string, filter Filter) (map[string]interface{}, bool, error) {
	out := bson.M{}
	found, err := e.adapter.FindOne(ctx, collection, toBSON(filter), &out)
	if err != nil || !found {
		return nil, false, err
	}
	return map[string]interface{}(out), true, nil
}

// Find returns every document matching opts.Filter, honouring sort and pagination.
func (e *MongoDBExecutor) Find(ctx context.Context, collection string, opts QueryOptions) ([]map[string]interface{}, error) {
	var out []bson.M
	if err := e.adapter.Find(ctx, collection, toBSON(opts.Filter), &out, findOptions(opts)); err != nil {
		return nil, err
	}
	docs := make([]map[string]interface{}, 0, len(out))
	for _, doc := range out {
		docs = append(docs, map[string]interface{}(doc))
	}
	return docs, nil
}

// UpdateMany applies update to every document matching the filter.
func (e *MongoDBExecutor) UpdateMany(ctx context.Context, collection string, filter Filter, update map[string]interface{}) (int64, error) {
	return e.adapter.UpdateMany(ctx, collection, toBSON(filter), bson.M(update))
}

// DeleteMany deletes every document matching the filter.
func (e *MongoDBExecutor) DeleteMany(ctx context.Context, collection string, filter Filter) (int64, error) {
	return e.adapter.DeleteMany(ctx, collection, toBSON(filter))
}

// Count returns the number of documents matching the filter.
func (e *MongoDBExecutor) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	return e.adapter.CountDocuments(ctx, collection, toBSON(filter))
}

func (e *MongoDBExecutor) HealthCheck(ctx context.Context) error {
	return e.adapter.HealthCheck(ctx)
}

func (e *MongoDBExecutor) Close() error {
	return e.adapter.Close()
}

// toBSON never returns nil: the driver rejects a nil filter.
func toBSON(filter Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

func findOptions(opts QueryOptions) *options.FindOptions {
	fo := options.Find()
	if opts.Sort.Field != "" {
		fo.SetSort(bson.D{{Key: opts.Sort.Field, Value: opts.Sort.Order.Direction()}})
	}
	if limit := opts.Pagination.Limit(); limit > 0 {
		fo.SetLimit(int64(limit))
	}
	if offset := opts.Pagination.Offset(); offset > 0 {
		fo.SetSkip(int64(offset))
	}
	return fo
}
