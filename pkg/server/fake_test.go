package server

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"github.com/nimburion/taskdesk/pkg/repository/document"
	"github.com/nimburion/taskdesk/pkg/task"
)

// fakeTasks is an in-memory TaskService. err, when set, is returned by every call.
type fakeTasks struct {
	mu     sync.Mutex
	tasks  map[string]task.Task
	nextID int
	err    error

	lastFilter task.ListFilter
	lastPage   document.Pagination
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: make(map[string]task.Task)}
}

func (f *fakeTasks) Create(_ context.Context, t *task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.nextID++
	t.ID = fmt.Sprintf("%024x", f.nextID)
	if t.Priority == "" {
		t.Priority = task.PriorityLow
	}
	f.tasks[t.ID] = *t
	return nil
}

func (f *fakeTasks) Update(_ context.Context, t *task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.tasks[t.ID]; !ok {
		return task.ErrNotFound
	}
	f.tasks[t.ID] = *t
	return nil
}

func (f *fakeTasks) Complete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	t, ok := f.tasks[id]
	if !ok {
		return task.ErrNotFound
	}
	t.Completed = true
	f.tasks[id] = t
	return nil
}

func (f *fakeTasks) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.tasks[id]; !ok {
		return task.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTasks) FindByID(_ context.Context, id string) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, task.ErrNotFound
	}
	return &t, nil
}

func (f *fakeTasks) List(_ context.Context, filter task.ListFilter, page document.Pagination) ([]task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	f.lastPage = page
	if f.err != nil {
		return nil, f.err
	}
	out := make([]task.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		if t.Completed && !filter.ShowCompleted {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTasks) seed(t task.Task) task.Task {
	_ = f.Create(context.Background(), &t)
	return t
}

// captureLogger records every message regardless of level.
type captureLogger struct {
	mu       sync.Mutex
	messages []string
}

func newCaptureLogger() *captureLogger { return &captureLogger{} }

func (l *captureLogger) Debug(msg string, _ ...any)                { l.record(msg) }
func (l *captureLogger) Info(msg string, _ ...any)                 { l.record(msg) }
func (l *captureLogger) Warn(msg string, _ ...any)                 { l.record(msg) }
func (l *captureLogger) Error(msg string, _ ...any)                { l.record(msg) }
func (l *captureLogger) Critical(msg string, _ ...any)             { l.record(msg) }
func (l *captureLogger) Exception(msg string, _ error, _ ...any)   { l.record(msg) }
func (l *captureLogger) With(...any) logger.Logger                 { return l }
func (l *captureLogger) WithContext(context.Context) logger.Logger { return l }

func (l *captureLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *captureLogger) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if m == msg {
			n++
		}
	}
	return n
}
