// Package tracing provides OpenTelemetry distributed tracing for document store operations.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used for store spans.
const InstrumentationName = "github.com/nimburion/taskdesk/pkg/docstore"

// SpanOperation represents a traced operation type.
type SpanOperation string

// Span operation constants for document store operations
const (
	// SpanOperationDBInsert represents a document insert
	SpanOperationDBInsert SpanOperation = "insert"
	// SpanOperationDBFind represents a single or multi document lookup
	SpanOperationDBFind SpanOperation = "find"
	// SpanOperationDBUpdate represents an update of all matching documents
	SpanOperationDBUpdate SpanOperation = "update"
	// SpanOperationDBDelete represents a delete of all matching documents
	SpanOperationDBDelete SpanOperation = "delete"
	// SpanOperationDBCount represents a count of matching documents
	SpanOperationDBCount SpanOperation = "count"
)

// StartDatabaseSpan creates a client span for a database operation, named
// "DB <operation> <collection>" when a collection is given.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	tracer := otel.Tracer(InstrumentationName)

	spanOpts := &databaseSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("DB %s", operation)
	if spanOpts.collection != "" {
		spanName = fmt.Sprintf("DB %s %s", operation, spanOpts.collection)
	}

	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	collection string
	attributes []attribute.KeyValue
}

// WithDBCollection sets the collection the operation targets.
func WithDBCollection(collection string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.collection = collection
		opts.attributes = append(opts.attributes, attribute.String("db.mongodb.collection", collection))
	}
}

// WithDBSystem sets the database system (e.g., "mongodb").
func WithDBSystem(system string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithDBName sets the database name.
func WithDBName(name string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.name", name))
	}
}

// SetAttempts records how many attempts an operation took.
func SetAttempts(span trace.Span, attempts int) {
	span.SetAttributes(attribute.Int("db.attempts", attempts))
}

// RecordError records an error in the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
