package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"github.com/nimburion/taskdesk/pkg/repository/document"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errUnavailable = errors.New("server unavailable")

// fakeExecutor is an in-memory MongoExecutor. Filters support plain equality only.
// The first failNext calls fail with failWith.
type fakeExecutor struct {
	mu          sync.Mutex
	collections map[string][]map[string]any
	calls       int
	failNext    int
	failWith    error
	closeCalls  int
	lastFilter  document.Filter
	lastUpdate  map[string]any
	lastOptions document.QueryOptions
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{collections: map[string][]map[string]any{}}
}

func (f *fakeExecutor) failing(n int, err error) *fakeExecutor {
	f.failNext = n
	f.failWith = err
	return f
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeExecutor) begin() error {
	f.calls++
	if f.failNext != 0 {
		if f.failNext > 0 {
			f.failNext--
		}
		return f.failWith
	}
	return nil
}

func (f *fakeExecutor) InsertOne(_ context.Context, collection string, doc map[string]any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return nil, err
	}
	stored := copyMap(doc)
	if _, ok := stored[IDField]; !ok {
		stored[IDField] = primitive.NewObjectID()
	}
	f.collections[collection] = append(f.collections[collection], stored)
	return stored[IDField], nil
}

func (f *fakeExecutor) FindOne(_ context.Context, collection string, filter document.Filter) (map[string]any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if err := f.begin(); err != nil {
		return nil, false, err
	}
	for _, doc := range f.collections[collection] {
		if matches(doc, filter) {
			return copyMap(doc), true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeExecutor) Find(_ context.Context, collection string, opts document.QueryOptions) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = opts.Filter
	f.lastOptions = opts
	if err := f.begin(); err != nil {
		return nil, err
	}
	var out []map[string]any
	for _, doc := range f.collections[collection] {
		if matches(doc, opts.Filter) {
			out = append(out, copyMap(doc))
		}
	}
	return out, nil
}

func (f *fakeExecutor) UpdateMany(_ context.Context, collection string, filter document.Filter, update map[string]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	f.lastUpdate = update
	if err := f.begin(); err != nil {
		return 0, err
	}
	set, _ := update["$set"].(map[string]any)
	var modified int64
	for _, doc := range f.collections[collection] {
		if !matches(doc, filter) {
			continue
		}
		changed := false
		for k, v := range set {
			if fmt.Sprint(doc[k]) != fmt.Sprint(v) {
				changed = true
			}
			doc[k] = v
		}
		if changed {
			modified++
		}
	}
	return modified, nil
}

func (f *fakeExecutor) DeleteMany(_ context.Context, collection string, filter document.Filter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if err := f.begin(); err != nil {
		return 0, err
	}
	var kept []map[string]any
	var deleted int64
	for _, doc := range f.collections[collection] {
		if matches(doc, filter) {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	f.collections[collection] = kept
	return deleted, nil
}

func (f *fakeExecutor) Count(_ context.Context, collection string, filter document.Filter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return 0, err
	}
	var n int64
	for _, doc := range f.collections[collection] {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (f *fakeExecutor) HealthCheck(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begin()
}

func (f *fakeExecutor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func matches(doc map[string]any, filter document.Filter) bool {
	for k, v := range filter {
		if doc[k] != v {
			return false
		}
	}
	return true
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sleepLog records requested waits without sleeping.
type sleepLog struct {
	mu    sync.Mutex
	waits []float64
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d.Seconds())
	s.mu.Unlock()
	return ctx.Err()
}

// recordingLogger keeps the messages logged at each level.
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
}

type logEntry struct {
	level string
	msg   string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range *l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

func (l *recordingLogger) Debug(msg string, _ ...any)                { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)                 { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)                 { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any)                { l.add("error", msg) }
func (l *recordingLogger) Critical(msg string, _ ...any)             { l.add("critical", msg) }
func (l *recordingLogger) Exception(msg string, _ error, _ ...any)   { l.add("error", msg) }
func (l *recordingLogger) With(...any) logger.Logger                 { return l }
func (l *recordingLogger) WithContext(context.Context) logger.Logger { return l }
