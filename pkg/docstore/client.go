// Package docstore provides a MongoDB client whose CRUD operations run inside a bounded
// retry loop with exponential backoff.
//
// A Client is Connected from the moment New returns it until Close is called; Closed is
// terminal and every later operation fails with *IllegalStateError without touching the
// network. Failed store calls are retried up to Config.MaxRetries times, waiting
// BaseDelay^attempt seconds (attempt counted from zero) between calls; when the budget is
// spent the operation fails with *OperationError.
package docstore

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nimburion/taskdesk/pkg/config"
	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"github.com/nimburion/taskdesk/pkg/observability/metrics"
	"github.com/nimburion/taskdesk/pkg/observability/tracing"
	"github.com/nimburion/taskdesk/pkg/repository/document"
	"github.com/nimburion/taskdesk/pkg/resilience"
	mongostore "github.com/nimburion/taskdesk/pkg/store/mongodb"
)

const (
	// DefaultURI is used when Config.URI is empty.
	DefaultURI        = "mongodb://localhost:27017"
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	defaultPoolSize   = 10
	dbSystem          = "mongodb"
)

// Operation names used in errors, logs and metrics.
const (
	OpCreate = "create"
	OpRead   = "read"
	OpUpdate = "update"
	OpDelete = "delete"
	OpFind   = "find"
	OpCount  = "count"
)

var spanOperations = map[string]tracing.SpanOperation{
	OpCreate: tracing.SpanOperationDBInsert,
	OpRead:   tracing.SpanOperationDBFind,
	OpUpdate: tracing.SpanOperationDBUpdate,
	OpDelete: tracing.SpanOperationDBDelete,
	OpFind:   tracing.SpanOperationDBFind,
	OpCount:  tracing.SpanOperationDBCount,
}

// Config configures a Client.
type Config struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	// MaxRetries is the number of attempts per operation, first call included.
	MaxRetries int
	// BaseDelay, in seconds, is raised to the attempt number. Zero selects one second. A
	// base below one second gives waits that shrink from one second towards zero.
	BaseDelay time.Duration
	// RetryPolicy is "all" (default) or "transient".
	RetryPolicy      string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// DefaultConfig returns the client defaults for the given database.
func DefaultConfig(database string) Config {
	return Config{
		URI:         DefaultURI,
		Database:    database,
		MaxPoolSize: defaultPoolSize,
		MaxRetries:  defaultMaxRetries,
		BaseDelay:   defaultBaseDelay,
		RetryPolicy: resilience.PolicyAll,
	}
}

// ConfigFromStore maps the application store settings onto a client Config.
func ConfigFromStore(cfg config.StoreConfig) Config {
	return Config{
		URI:              cfg.URI,
		Database:         cfg.Database,
		MaxPoolSize:      cfg.MaxPoolSize,
		MaxRetries:       cfg.MaxRetries,
		BaseDelay:        cfg.BaseDelay,
		RetryPolicy:      cfg.RetryPolicy,
		ConnectTimeout:   cfg.ConnectTimeout,
		OperationTimeout: cfg.OperationTimeout,
	}
}

func (c *Config) normalize() (resilience.RetryPolicy, error) {
	if strings.TrimSpace(c.URI) == "" {
		c.URI = DefaultURI
	}
	if strings.TrimSpace(c.Database) == "" {
		return nil, invalid("database", "name is required")
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = defaultPoolSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxRetries < 0 {
		return nil, invalid("max_retries", "must be at least 1, got %d", c.MaxRetries)
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.BaseDelay < 0 {
		return nil, invalid("base_delay", "must not be negative, got %s", c.BaseDelay)
	}
	if c.OperationTimeout < 0 {
		return nil, invalid("operation_timeout", "must not be negative")
	}
	policy, err := resilience.PolicyFor(c.RetryPolicy)
	if err != nil {
		return nil, &ValidationError{Field: "retry_policy", Reason: err.Error(), Cause: err}
	}
	return policy, nil
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	executor document.MongoExecutor
	sleep    func(context.Context, time.Duration) error
}

// WithExecutor makes the client use exec instead of dialing Config.URI. The client takes
// ownership of exec and closes it on Close.
func WithExecutor(exec document.MongoExecutor) Option {
	return func(o *options) {
		o.executor = exec
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// Client is a resilient MongoDB client. It is safe for concurrent use.
type Client struct {
	exec     document.MongoExecutor
	database string
	retrier  resilience.Retrier
	log      logger.Logger
	closed   atomic.Bool
}

// New connects to the server and verifies it with a ping. Any failure returns a
// *ConnectionError (or *ValidationError for a bad Config) and no client.
func New(ctx context.Context, cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	policy, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	o := options{sleep: resilience.SleepContext}
	for _, opt := range opts {
		opt(&o)
	}

	exec := o.executor
	if exec == nil {
		adapter, err := mongostore.NewAdapter(ctx, mongostore.Config{
			URL:              cfg.URI,
			Database:         cfg.Database,
			MaxPoolSize:      cfg.MaxPoolSize,
			ConnectTimeout:   cfg.ConnectTimeout,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
		if err != nil {
			log.Error("Connection failed", "database", cfg.Database, "error", err)
			return nil, &ConnectionError{Database: cfg.Database, Cause: err}
		}
		exec, err = document.NewMongoDBExecutor(adapter)
		if err != nil {
			_ = adapter.Close()
			return nil, &ConnectionError{Database: cfg.Database, Cause: err}
		}
	}

	log.Info("Connected to MongoDB", "database", cfg.Database, "max_retries", cfg.MaxRetries, "base_delay", cfg.BaseDelay)
	return &Client{
		exec:     exec,
		database: cfg.Database,
		log:      log,
		retrier: resilience.Retrier{
			MaxRetries:     cfg.MaxRetries,
			BaseDelay:      cfg.BaseDelay,
			AttemptTimeout: cfg.OperationTimeout,
			Policy:         policy,
			Sleep:          o.sleep,
		},
	}, nil
}

// WithClient opens a client, passes it to fn and closes it on every exit path, a panic
// in fn included.
func WithClient(ctx context.Context, cfg Config, log logger.Logger, fn func(*Client) error, opts ...Option) error {
	client, err := New(ctx, cfg, log, opts...)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

// Database returns the name of the database the client operates on.
func (c *Client) Database() string {
	return c.database
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// Create inserts doc and returns the identifier assigned by the store as a hex string.
func (c *Client) Create(ctx context.Context, collection string, doc Document) (string, error) {
	if err := c.precheck(OpCreate, collection); err != nil {
		return "", err
	}
	prepared, err := canonicalDocument(doc)
	if err != nil {
		return "", c.reject(OpCreate, collection, err)
	}

	var id any
	err = c.execute(ctx, OpCreate, collection, func(ctx context.Context) error {
		inserted, err := c.exec.InsertOne(ctx, collection, prepared)
		if err != nil {
			return err
		}
		id = inserted
		return nil
	})
	if err != nil {
		return "", err
	}
	return formatID(id), nil
}

// Read returns the first document matching q, or ErrNotFound when nothing matches.
func (c *Client) Read(ctx context.Context, collection string, q Query) (Document, error) {
	if err := c.precheck(OpRead, collection); err != nil {
		return nil, err
	}
	filter, err := canonicalQuery(q)
	if err != nil {
		return nil, c.reject(OpRead, collection, err)
	}

	var raw map[string]any
	err = c.execute(ctx, OpRead, collection, func(ctx context.Context) error {
		doc, found, err := c.exec.FindOne(ctx, collection, filter)
		if err != nil {
			return err
		}
		if !found {
			return resilience.Permanent(ErrNotFound)
		}
		raw = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return normalizeDocument(raw), nil
}

// Update sets the fields of patch on every document matching q, leaving other fields
// untouched, and returns how many documents were modified.
func (c *Client) Update(ctx context.Context, collection string, q Query, patch Document) (int64, error) {
	if err := c.precheck(OpUpdate, collection); err != nil {
		return 0, err
	}
	if err := validatePatch(patch); err != nil {
		return 0, c.reject(OpUpdate, collection, err)
	}
	filter, err := canonicalQuery(q)
	if err != nil {
		return 0, c.reject(OpUpdate, collection, err)
	}

	set := make(map[string]any, len(patch))
	for key, value := range patch {
		set[key] = value
	}
	update := map[string]any{"$set": set}

	var modified int64
	err = c.execute(ctx, OpUpdate, collection, func(ctx context.Context) error {
		var err error
		modified, err = c.exec.UpdateMany(ctx, collection, filter, update)
		return err
	})
	if err != nil {
		return 0, err
	}
	return modified, nil
}

// Delete removes every document matching q and returns how many were deleted.
func (c *Client) Delete(ctx context.Context, collection string, q Query) (int64, error) {
	if err := c.precheck(OpDelete, collection); err != nil {
		return 0, err
	}
	filter, err := canonicalQuery(q)
	if err != nil {
		return 0, c.reject(OpDelete, collection, err)
	}

	var deleted int64
	err = c.execute(ctx, OpDelete, collection, func(ctx context.Context) error {
		var err error
		deleted, err = c.exec.DeleteMany(ctx, collection, filter)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// FindOptions orders and pages the result of Find.
type FindOptions struct {
	Sort       document.Sort
	Pagination document.Pagination
}

// Find returns every document matching q.
func (c *Client) Find(ctx context.Context, collection string, q Query, opts FindOptions) ([]Document, error) {
	if err := c.precheck(OpFind, collection); err != nil {
		return nil, err
	}
	filter, err := canonicalQuery(q)
	if err != nil {
		return nil, c.reject(OpFind, collection, err)
	}

	var raw []map[string]any
	err = c.execute(ctx, OpFind, collection, func(ctx context.Context) error {
		var err error
		raw, err = c.exec.Find(ctx, collection, document.QueryOptions{
			Filter:     filter,
			Sort:       opts.Sort,
			Pagination: opts.Pagination,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, normalizeDocument(r))
	}
	return docs, nil
}

// Count returns the number of documents matching q.
func (c *Client) Count(ctx context.Context, collection string, q Query) (int64, error) {
	if err := c.precheck(OpCount, collection); err != nil {
		return 0, err
	}
	filter, err := canonicalQuery(q)
	if err != nil {
		return 0, c.reject(OpCount, collection, err)
	}

	var count int64
	err = c.execute(ctx, OpCount, collection, func(ctx context.Context) error {
		var err error
		count, err = c.exec.Count(ctx, collection, filter)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// HealthCheck pings the server once, without retries.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return &IllegalStateError{Operation: "health check"}
	}
	return c.exec.HealthCheck(ctx)
}

// Close releases the connection. It always returns nil and later calls are no-ops;
// a failing disconnect is logged.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.exec.Close(); err != nil {
		c.log.Warn("MongoDB disconnect reported an error", "database", c.database, "error", err)
	}
	c.log.Info("MongoDB connection closed", "database", c.database)
	return nil
}

func (c *Client) precheck(op, collection string) error {
	if c.closed.Load() {
		metrics.RecordStoreOperation(op, collection, metrics.OutcomeClosed, 0, 0)
		return &IllegalStateError{Operation: op}
	}
	if err := validateCollection(collection); err != nil {
		return c.reject(op, collection, err)
	}
	return nil
}

func (c *Client) reject(op, collection string, err error) error {
	c.log.Debug("Operation rejected", "operation", op, "collection", collection, "error", err)
	metrics.RecordStoreOperation(op, collection, metrics.OutcomeInvalid, 0, 0)
	return err
}

// execute runs call inside the retry loop and maps its outcome onto the error taxonomy.
func (c *Client) execute(ctx context.Context, op, collection string, call func(context.Context) error) error {
	start := time.Now()
	ctx, span := tracing.StartDatabaseSpan(ctx, spanOperations[op],
		tracing.WithDBCollection(collection),
		tracing.WithDBSystem(dbSystem),
		tracing.WithDBName(c.database),
	)
	defer span.End()

	log := c.log.WithContext(ctx)
	retrier := c.retrier
	retrier.OnRetry = func(attempts int, delay time.Duration, err error) {
		log.Warn("Operation failed, retrying",
			"operation", op,
			"collection", collection,
			"attempt", attempts,
			"retry_in_seconds", delay.Seconds(),
			"error", err,
		)
	}

	attempts, err := retrier.Do(ctx, func(ctx context.Context) error {
		if c.closed.Load() {
			return resilience.Permanent(&IllegalStateError{Operation: op})
		}
		return call(ctx)
	})
	tracing.SetAttempts(span, attempts)

	if err == nil {
		metrics.RecordStoreOperation(op, collection, metrics.OutcomeSuccess, attempts, time.Since(start))
		tracing.RecordSuccess(span)
		return nil
	}

	var permanent *resilience.PermanentError
	if !errors.As(err, &permanent) {
		err = &OperationError{Operation: op, Collection: collection, Attempts: attempts, Cause: err}
		log.Error("Operation failed", "operation", op, "collection", collection, "attempts", attempts, "error", err)
		metrics.RecordStoreOperation(op, collection, metrics.OutcomeFailure, attempts, time.Since(start))
		tracing.RecordError(span, err)
		return err
	}

	err = permanent.Err
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.RecordStoreOperation(op, collection, metrics.OutcomeNotFound, attempts, time.Since(start))
		tracing.RecordSuccess(span)
		return err
	case errors.Is(err, ErrIllegalState):
		metrics.RecordStoreOperation(op, collection, metrics.OutcomeClosed, attempts, time.Since(start))
	default:
		metrics.RecordStoreOperation(op, collection, metrics.OutcomeInvalid, attempts, time.Since(start))
	}
	tracing.RecordError(span, err)
	return err
}
