package docstore

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nimburion/taskdesk/pkg/repository/document"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestClient(t *testing.T, exec *fakeExecutor, mutate func(*Config)) (*Client, *sleepLog, *recordingLogger) {
	t.Helper()
	cfg := DefaultConfig("test_db")
	if mutate != nil {
		mutate(&cfg)
	}
	sleeps := &sleepLog{}
	log := newRecordingLogger()
	client, err := New(context.Background(), cfg, log, WithExecutor(exec), WithSleep(sleeps.sleep))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, sleeps, log
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "missing database", mutate: func(c *Config) { c.Database = " " }, field: "database"},
		{name: "negative base delay", mutate: func(c *Config) { c.BaseDelay = -time.Second }, field: "base_delay"},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }, field: "max_retries"},
		{name: "unknown policy", mutate: func(c *Config) { c.RetryPolicy = "sometimes" }, field: "retry_policy"},
		{name: "negative operation timeout", mutate: func(c *Config) { c.OperationTimeout = -time.Second }, field: "operation_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("test_db")
			tt.mutate(&cfg)
			exec := newFakeExecutor()

			client, err := New(context.Background(), cfg, nil, WithExecutor(exec))
			if client != nil {
				t.Fatal("expected no client")
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected field %q, got %+v", tt.field, verr)
			}
			if exec.callCount() != 0 {
				t.Fatalf("expected no store calls, got %d", exec.callCount())
			}
		})
	}
}

func TestNew_ConnectionFailure(t *testing.T) {
	cfg := DefaultConfig("test_db")
	cfg.URI = "mongodb://127.0.0.1:1/?connect=direct"
	cfg.ConnectTimeout = 200 * time.Millisecond
	log := newRecordingLogger()

	client, err := New(context.Background(), cfg, log)
	if client != nil {
		t.Fatal("expected no client")
	}
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	var cerr *ConnectionError
	if !errors.As(err, &cerr) || cerr.Database != "test_db" {
		t.Fatalf("expected ConnectionError for test_db, got %v", err)
	}
	if log.count("error", "Connection failed") != 1 {
		t.Fatal("expected the failure to be logged")
	}
}

func TestNew_LogsConnection(t *testing.T) {
	client, _, log := newTestClient(t, newFakeExecutor(), nil)
	if client.Database() != "test_db" {
		t.Fatalf("Database() = %q", client.Database())
	}
	if client.Closed() {
		t.Fatal("new client must be connected")
	}
	if log.count("info", "Connected to MongoDB") != 1 {
		t.Fatal("expected connection to be logged")
	}
}

func TestClient_CreateReadRoundTrip(t *testing.T) {
	client, _, _ := newTestClient(t, newFakeExecutor(), nil)
	ctx := context.Background()

	id, err := client.Create(ctx, "tasks", Document{"name": "a", "priority": "High", "completed": false})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		t.Fatalf("Create() returned %q, not a hex identifier", id)
	}

	got, err := client.Read(ctx, "tasks", IDQuery(id))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := Document{IDField: id, "name": "a", "priority": "High", "completed": false}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Read() = %v, want %v", got, want)
	}
}

func TestClient_CreateKeepsCallerID(t *testing.T) {
	exec := newFakeExecutor()
	client, _, _ := newTestClient(t, exec, nil)
	oid := primitive.NewObjectID()

	id, err := client.Create(context.Background(), "tasks", Document{IDField: oid.Hex(), "name": "a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id != oid.Hex() {
		t.Fatalf("Create() = %q, want %q", id, oid.Hex())
	}
	if stored := exec.collections["tasks"][0][IDField]; stored != oid {
		t.Fatalf("stored _id = %#v, want ObjectID", stored)
	}
}

func TestClient_CreateDoesNotMutateInput(t *testing.T) {
	client, _, _ := newTestClient(t, newFakeExecutor(), nil)
	doc := Document{"name": "a"}

	if _, err := client.Create(context.Background(), "tasks", doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, ok := doc[IDField]; ok {
		t.Fatal("Create() must not add _id to the caller's document")
	}
}

func TestClient_InvalidIdentifierIsRejectedBeforeStore(t *testing.T) {
	exec := newFakeExecutor()
	client, _, _ := newTestClient(t, exec, nil)
	ctx := context.Background()

	checks := map[string]func() error{
		"create": func() error {
			_, err := client.Create(ctx, "tasks", Document{IDField: "nope"})
			return err
		},
		"read": func() error {
			_, err := client.Read(ctx, "tasks", IDQuery("nope"))
			return err
		},
		"update": func() error {
			_, err := client.Update(ctx, "tasks", IDQuery("nope"), Document{"name": "b"})
			return err
		},
		"delete": func() error {
			_, err := client.Delete(ctx, "tasks", Query{IDField: Query{"$in": []string{"nope"}}})
			return err
		},
		"find": func() error {
			_, err := client.Find(ctx, "tasks", Query{"$or": []any{Query{IDField: "nope"}}}, FindOptions{})
			return err
		},
		"count": func() error {
			_, err := client.Count(ctx, "tasks", Query{IDField: Query{"$ne": "nope"}})
			return err
		},
	}

	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			err := call()
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != IDField {
				t.Fatalf("expected _id validation error, got %v", err)
			}
		})
	}
	if exec.callCount() != 0 {
		t.Fatalf("expected no store calls, got %d", exec.callCount())
	}
}

func TestClient_ReadCanonicalizesIdentifier(t *testing.T) {
	exec := newFakeExecutor()
	client, _, _ := newTestClient(t, exec, nil)
	oid := primitive.NewObjectID()

	_, err := client.Read(context.Background(), "tasks", IDQuery(oid.Hex()))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := exec.lastFilter[IDField]; got != oid {
		t.Fatalf("filter _id = %#v, want %v", got, oid)
	}
}

func TestClient_ReadNotFoundIsNotRetried(t *testing.T) {
	exec := newFakeExecutor()
	client, sleeps, _ := newTestClient(t, exec, nil)

	doc, err := client.Read(context.Background(), "tasks", Query{"name": "missing"})
	if doc != nil {
		t.Fatalf("expected no document, got %v", doc)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, ErrOperation) {
		t.Fatal("not found must not be reported as an operation failure")
	}
	if exec.callCount() != 1 || len(sleeps.waits) != 0 {
		t.Fatalf("expected a single call without waits, got %d calls and %v", exec.callCount(), sleeps.waits)
	}
}

func TestClient_UpdatePreservesOtherFields(t *testing.T) {
	exec := newFakeExecutor()
	client, _, _ := newTestClient(t, exec, nil)
	ctx := context.Background()

	id, err := client.Create(ctx, "tasks", Document{"name": "a", "priority": "Low", "completed": false})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	modified, err := client.Update(ctx, "tasks", IDQuery(id), Document{"priority": "High"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if modified != 1 {
		t.Fatalf("Update() = %d, want 1", modified)
	}
	if _, ok := exec.lastUpdate["$set"]; !ok || len(exec.lastUpdate) != 1 {
		t.Fatalf("expected a $set update, got %v", exec.lastUpdate)
	}

	got, err := client.Read(ctx, "tasks", IDQuery(id))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got["priority"] != "High" || got["name"] != "a" || got["completed"] != false {
		t.Fatalf("unexpected document after update: %v", got)
	}
}

func TestClient_UpdateAndDeleteWithoutMatchesReturnZero(t *testing.T) {
	client, _, _ := newTestClient(t, newFakeExecutor(), nil)
	ctx := context.Background()

	modified, err := client.Update(ctx, "tasks", Query{"name": "missing"}, Document{"completed": true})
	if err != nil || modified != 0 {
		t.Fatalf("Update() = %d, %v; want 0, nil", modified, err)
	}
	deleted, err := client.Delete(ctx, "tasks", Query{"name": "missing"})
	if err != nil || deleted != 0 {
		t.Fatalf("Delete() = %d, %v; want 0, nil", deleted, err)
	}
}

func TestClient_UpdateRejectsInvalidPatch(t *testing.T) {
	exec := newFakeExecutor()
	client, _, _ := newTestClient(t, exec, nil)

	patches := map[string]Document{
		"empty":      {},
		"nil":        nil,
		"identifier": {IDField: primitive.NewObjectID().Hex()},
		"operator":   {"$inc": map[string]any{"count": 1}},
		"blank key":  {"": "x"},
	}
	for name, patch := range patches {
		t.Run(name, func(t *testing.T) {
			_, err := client.Update(context.Background(), "tasks", Query{}, patch)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if exec.callCount() != 0 {
		t.Fatalf("expected no store calls, got %d", exec.callCount())
	}
}

func TestClient_RejectsInvalidCollection(t *testing.T) {
	exec := newFakeExecutor()
	client, _, _ := newTestClient(t, exec, nil)

	for _, name := range []string{"", "  ", "bad$name", "system.users", "nul\x00"} {
		_, err := client.Count(context.Background(), name, nil)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "collection" {
			t.Fatalf("collection %q: expected validation error, got %v", name, err)
		}
	}
	if exec.callCount() != 0 {
		t.Fatalf("expected no store calls, got %d", exec.callCount())
	}
}

func TestClient_DeleteRemovesMatches(t *testing.T) {
	client, _, _ := newTestClient(t, newFakeExecutor(), nil)
	ctx := context.Background()

	id, err := client.Create(ctx, "tasks", Document{"name": "a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	deleted, err := client.Delete(ctx, "tasks", IDQuery(id))
	if err != nil || deleted != 1 {
		t.Fatalf("Delete() = %d, %v; want 1, nil", deleted, err)
	}
	if _, err := client.Read(ctx, "tasks", IDQuery(id)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestClient_FindAndCount(t *testing.T) {
	exec := newFakeExecutor()
	client, _, _ := newTestClient(t, exec, nil)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := client.Create(ctx, "tasks", Document{"name": name, "completed": name == "b"}); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	opts := FindOptions{
		Sort:       document.Sort{Field: "name", Order: document.SortDesc},
		Pagination: document.Pagination{Page: 1, PageSize: 10},
	}
	docs, err := client.Find(ctx, "tasks", Query{"completed": false}, opts)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Find() returned %d documents, want 2", len(docs))
	}
	for _, doc := range docs {
		if _, ok := doc[IDField].(string); !ok {
			t.Fatalf("expected string _id, got %#v", doc[IDField])
		}
	}
	if exec.lastOptions.Sort != opts.Sort || exec.lastOptions.Pagination != opts.Pagination {
		t.Fatalf("options not forwarded: %+v", exec.lastOptions)
	}

	count, err := client.Count(ctx, "tasks", nil)
	if err != nil || count != 3 {
		t.Fatalf("Count() = %d, %v; want 3, nil", count, err)
	}
}

func TestClient_FindEmptyResultIsNotNil(t *testing.T) {
	client, _, _ := newTestClient(t, newFakeExecutor(), nil)

	docs, err := client.Find(context.Background(), "tasks", Query{"name": "missing"}, FindOptions{})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("Find() = %#v, want empty slice", docs)
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	exec := newFakeExecutor()
	client, _, log := newTestClient(t, exec, nil)

	if err := client.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if !client.Closed() {
		t.Fatal("expected client to be closed")
	}
	if exec.closeCalls != 1 {
		t.Fatalf("executor closed %d times, want 1", exec.closeCalls)
	}
	if log.count("info", "MongoDB connection closed") != 1 {
		t.Fatal("expected exactly one close log")
	}
}

func TestClient_OperationsAfterCloseFail(t *testing.T) {
	exec := newFakeExecutor()
	client, _, _ := newTestClient(t, exec, nil)
	ctx := context.Background()
	_ = client.Close()

	id := primitive.NewObjectID().Hex()
	calls := map[string]func() error{
		OpCreate: func() error { _, err := client.Create(ctx, "tasks", Document{"name": "a"}); return err },
		OpRead:   func() error { _, err := client.Read(ctx, "tasks", IDQuery(id)); return err },
		OpUpdate: func() error { _, err := client.Update(ctx, "tasks", IDQuery(id), Document{"name": "b"}); return err },
		OpDelete: func() error { _, err := client.Delete(ctx, "tasks", IDQuery(id)); return err },
		OpFind:   func() error { _, err := client.Find(ctx, "tasks", nil, FindOptions{}); return err },
		OpCount:  func() error { _, err := client.Count(ctx, "tasks", nil); return err },
		"health": func() error { return client.HealthCheck(ctx) },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			if !errors.Is(err, ErrIllegalState) {
				t.Fatalf("expected illegal state error, got %v", err)
			}
			var ierr *IllegalStateError
			if !errors.As(err, &ierr) {
				t.Fatalf("expected *IllegalStateError, got %T", err)
			}
		})
	}
	if exec.callCount() != 0 {
		t.Fatalf("expected no store calls after Close, got %d", exec.callCount())
	}
}

func TestClient_RetryBudgetExhausted(t *testing.T) {
	exec := newFakeExecutor().failing(-1, errUnavailable)
	client, sleeps, log := newTestClient(t, exec, func(c *Config) {
		c.MaxRetries = 3
		c.BaseDelay = time.Second
	})

	_, err := client.Create(context.Background(), "tasks", Document{"name": "a"})
	if !errors.Is(err, ErrOperation) {
		t.Fatalf("expected operation error, got %v", err)
	}
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	var oerr *OperationError
	if !errors.As(err, &oerr) {
		t.Fatalf("expected *OperationError, got %T", err)
	}
	if oerr.Attempts != 3 || oerr.Operation != OpCreate || oerr.Collection != "tasks" {
		t.Fatalf("unexpected error fields: %+v", oerr)
	}
	if !strings.Contains(err.Error(), "failed after 3 retries") {
		t.Fatalf("error message %q does not report the retry count", err.Error())
	}
	if exec.callCount() != 3 {
		t.Fatalf("store called %d times, want 3", exec.callCount())
	}
	if !reflect.DeepEqual(sleeps.waits, []float64{1, 1}) {
		t.Fatalf("waits = %v, want [1 1]", sleeps.waits)
	}
	if log.count("warn", "Operation failed, retrying") != 2 {
		t.Fatal("expected a warning before each retry")
	}
	if log.count("error", "Operation failed") != 1 {
		t.Fatal("expected the final failure to be logged")
	}
}

func TestClient_BackoffGrowsWithBaseDelay(t *testing.T) {
	exec := newFakeExecutor().failing(-1, errUnavailable)
	client, sleeps, _ := newTestClient(t, exec, func(c *Config) {
		c.MaxRetries = 4
		c.BaseDelay = 2 * time.Second
	})

	if _, err := client.Count(context.Background(), "tasks", nil); !errors.Is(err, ErrOperation) {
		t.Fatalf("expected operation error, got %v", err)
	}
	if !reflect.DeepEqual(sleeps.waits, []float64{1, 2, 4}) {
		t.Fatalf("waits = %v, want [1 2 4]", sleeps.waits)
	}
}

func TestClient_FractionalBaseDelay(t *testing.T) {
	exec := newFakeExecutor().failing(-1, errUnavailable)
	client, sleeps, _ := newTestClient(t, exec, func(c *Config) {
		c.MaxRetries = 4
		c.BaseDelay = 500 * time.Millisecond
	})

	if _, err := client.Count(context.Background(), "tasks", nil); !errors.Is(err, ErrOperation) {
		t.Fatalf("expected operation error, got %v", err)
	}
	if !reflect.DeepEqual(sleeps.waits, []float64{1, 0.5, 0.25}) {
		t.Fatalf("waits = %v, want [1 0.5 0.25]", sleeps.waits)
	}
}

func TestClient_RecoversAfterFailures(t *testing.T) {
	exec := newFakeExecutor().failing(2, errUnavailable)
	client, sleeps, _ := newTestClient(t, exec, func(c *Config) { c.MaxRetries = 3 })

	id, err := client.Create(context.Background(), "tasks", Document{"name": "a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected an identifier")
	}
	if exec.callCount() != 3 || len(sleeps.waits) != 2 {
		t.Fatalf("got %d calls and waits %v", exec.callCount(), sleeps.waits)
	}
	if len(exec.collections["tasks"]) != 1 {
		t.Fatalf("expected a single stored document, got %d", len(exec.collections["tasks"]))
	}
}

func TestClient_TransientPolicySkipsNonTransientFailures(t *testing.T) {
	exec := newFakeExecutor().failing(-1, errUnavailable)
	client, sleeps, _ := newTestClient(t, exec, func(c *Config) { c.RetryPolicy = "transient" })

	_, err := client.Delete(context.Background(), "tasks", nil)
	var oerr *OperationError
	if !errors.As(err, &oerr) || oerr.Attempts != 1 {
		t.Fatalf("expected a single-attempt operation error, got %v", err)
	}
	if exec.callCount() != 1 || len(sleeps.waits) != 0 {
		t.Fatalf("got %d calls and waits %v", exec.callCount(), sleeps.waits)
	}
}

func TestClient_CancelledContextStopsRetries(t *testing.T) {
	exec := newFakeExecutor().failing(-1, errUnavailable)
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig("test_db")
	cfg.MaxRetries = 5
	sleep := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	client, err := New(context.Background(), cfg, nil, WithExecutor(exec), WithSleep(sleep))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	_, err = client.Count(ctx, "tasks", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var oerr *OperationError
	if !errors.As(err, &oerr) || oerr.Attempts != 1 {
		t.Fatalf("expected the loop to stop after one attempt, got %v", err)
	}
	if exec.callCount() != 1 {
		t.Fatalf("store called %d times, want 1", exec.callCount())
	}
}

func TestClient_CloseDuringRetriesStopsLoop(t *testing.T) {
	exec := newFakeExecutor().failing(-1, errUnavailable)
	cfg := DefaultConfig("test_db")
	cfg.MaxRetries = 5
	var client *Client
	sleep := func(context.Context, time.Duration) error {
		_ = client.Close()
		return nil
	}
	client, err := New(context.Background(), cfg, nil, WithExecutor(exec), WithSleep(sleep))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Count(context.Background(), "tasks", nil)
	if !errors.Is(err, ErrIllegalState) {
		t.Fatalf("expected illegal state error, got %v", err)
	}
	if exec.callCount() != 1 {
		t.Fatalf("store called %d times, want 1", exec.callCount())
	}
}

func TestClient_HealthCheck(t *testing.T) {
	exec := newFakeExecutor()
	client, _, _ := newTestClient(t, exec, nil)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	exec.failing(1, errUnavailable)
	if err := client.HealthCheck(context.Background()); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestWithClient_ClosesOnEveryExit(t *testing.T) {
	cfg := DefaultConfig("test_db")

	t.Run("success", func(t *testing.T) {
		exec := newFakeExecutor()
		var seen *Client
		err := WithClient(context.Background(), cfg, nil, func(c *Client) error {
			seen = c
			_, err := c.Create(context.Background(), "tasks", Document{"name": "a"})
			return err
		}, WithExecutor(exec))
		if err != nil {
			t.Fatalf("WithClient() error = %v", err)
		}
		if !seen.Closed() || exec.closeCalls != 1 {
			t.Fatal("expected client to be closed")
		}
	})

	t.Run("error", func(t *testing.T) {
		exec := newFakeExecutor()
		boom := errors.New("boom")
		err := WithClient(context.Background(), cfg, nil, func(*Client) error { return boom }, WithExecutor(exec))
		if !errors.Is(err, boom) {
			t.Fatalf("expected fn error, got %v", err)
		}
		if exec.closeCalls != 1 {
			t.Fatal("expected client to be closed")
		}
	})

	t.Run("panic", func(t *testing.T) {
		exec := newFakeExecutor()
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
			if exec.closeCalls != 1 {
				t.Fatal("expected client to be closed")
			}
		}()
		_ = WithClient(context.Background(), cfg, nil, func(*Client) error { panic("boom") }, WithExecutor(exec))
	})

	t.Run("invalid config", func(t *testing.T) {
		called := false
		err := WithClient(context.Background(), Config{}, nil, func(*Client) error {
			called = true
			return nil
		}, WithExecutor(newFakeExecutor()))
		if !errors.Is(err, ErrValidation) || called {
			t.Fatalf("expected validation error without calling fn, got %v", err)
		}
	})
}

func TestConfigFromStoreAndDefaults(t *testing.T) {
	cfg := DefaultConfig("project")
	if cfg.URI != DefaultURI || cfg.MaxRetries != 3 || cfg.BaseDelay != time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	policy, err := cfg.normalize()
	if err != nil || policy == nil {
		t.Fatalf("normalize() = %v", err)
	}

	empty := Config{Database: "project"}
	if _, err := empty.normalize(); err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if empty.URI != DefaultURI || empty.MaxRetries != 3 || empty.BaseDelay != time.Second || empty.MaxPoolSize != 10 {
		t.Fatalf("zero values were not defaulted: %+v", empty)
	}
}
