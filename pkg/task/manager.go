package task

import (
	"context"
	"errors"
	"strings"

	"github.com/nimburion/taskdesk/pkg/docstore"
	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"github.com/nimburion/taskdesk/pkg/repository/document"
)

// Store is the subset of *docstore.Client the manager needs.
type Store interface {
	Create(ctx context.Context, collection string, doc docstore.Document) (string, error)
	Read(ctx context.Context, collection string, q docstore.Query) (docstore.Document, error)
	Update(ctx context.Context, collection string, q docstore.Query, patch docstore.Document) (int64, error)
	Delete(ctx context.Context, collection string, q docstore.Query) (int64, error)
	Find(ctx context.Context, collection string, q docstore.Query, opts docstore.FindOptions) ([]docstore.Document, error)
	Count(ctx context.Context, collection string, q docstore.Query) (int64, error)
}

var _ document.Repository[Task, string] = (*Manager)(nil)

// Manager stores tasks in a single collection.
type Manager struct {
	store      Store
	collection string
	log        logger.Logger
}

// NewManager returns a Manager over store. An empty collection selects Collection.
func NewManager(store Store, collection string, log logger.Logger) *Manager {
	if strings.TrimSpace(collection) == "" {
		collection = Collection
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{store: store, collection: collection, log: log}
}

// Collection returns the collection the manager writes to.
func (m *Manager) Collection() string {
	return m.collection
}

// Create validates t, stores it as an open task due at midnight of its due date and sets t.ID.
func (m *Manager) Create(ctx context.Context, t *Task) error {
	if t == nil {
		return invalid("task", "task is required")
	}
	if err := t.validate(); err != nil {
		return err
	}
	if !t.DueDate.IsZero() {
		t.DueDate = Midnight(t.DueDate)
	}
	t.Completed = false

	id, err := m.store.Create(ctx, m.collection, t.document())
	if err != nil {
		return err
	}
	t.ID = id
	m.log.Info("Task added", "name", t.Name, "id", id)
	return nil
}

// Update replaces the description, priority, due date and completion flag of the task
// with t.ID. The name is replaced only when t.Name is set.
func (m *Manager) Update(ctx context.Context, t *Task) error {
	if t == nil || strings.TrimSpace(t.ID) == "" {
		return invalid(docstore.IDField, "task ID is required")
	}
	p, err := ParsePriority(string(t.Priority))
	if err != nil {
		return err
	}
	t.Priority = p

	patch := docstore.Document{
		fieldDescription: t.Description,
		fieldPriority:    string(t.Priority),
		fieldCompleted:   t.Completed,
	}
	if !t.DueDate.IsZero() {
		t.DueDate = Midnight(t.DueDate)
		patch[fieldDueDate] = t.DueDate
	}
	if name := strings.TrimSpace(t.Name); name != "" {
		t.Name = name
		patch[fieldName] = name
	}
	return m.patch(ctx, t.ID, patch)
}

// Complete marks the task with the given id as completed.
func (m *Manager) Complete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid(docstore.IDField, "task ID is required")
	}
	return m.patch(ctx, id, docstore.Document{fieldCompleted: true})
}

func (m *Manager) patch(ctx context.Context, id string, patch docstore.Document) error {
	modified, err := m.store.Update(ctx, m.collection, docstore.IDQuery(id), patch)
	if err != nil {
		return err
	}
	if modified == 0 {
		// Nothing modified: either the task is missing or it already had these values.
		n, err := m.store.Count(ctx, m.collection, docstore.IDQuery(id))
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	m.log.Info("Task updated", "id", id)
	return nil
}

// Delete removes the task with the given id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid(docstore.IDField, "task ID is required")
	}
	deleted, err := m.store.Delete(ctx, m.collection, docstore.IDQuery(id))
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	m.log.Info("Task deleted", "id", id)
	return nil
}

// FindByID returns the task with the given id.
func (m *Manager) FindByID(ctx context.Context, id string) (*Task, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid(docstore.IDField, "task ID is required")
	}
	doc, err := m.store.Read(ctx, m.collection, docstore.IDQuery(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t := fromDocument(doc)
	return &t, nil
}

// FindAll returns the tasks matching opts.Filter, ordered by due date unless opts.Sort says otherwise.
func (m *Manager) FindAll(ctx context.Context, opts document.QueryOptions) ([]Task, error) {
	sort := opts.Sort
	if sort.Field == "" {
		sort = document.Sort{Field: fieldDueDate, Order: document.SortAsc}
	}
	docs, err := m.store.Find(ctx, m.collection, docstore.Query(opts.Filter), docstore.FindOptions{
		Sort:       sort,
		Pagination: opts.Pagination,
	})
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, fromDocument(doc))
	}
	return tasks, nil
}

// List returns the tasks selected by f.
func (m *Manager) List(ctx context.Context, f ListFilter, page document.Pagination) ([]Task, error) {
	return m.FindAll(ctx, document.QueryOptions{
		Filter:     document.Filter(f.Query()),
		Pagination: page,
	})
}

// Count returns how many tasks match filter.
func (m *Manager) Count(ctx context.Context, filter document.Filter) (int64, error) {
	return m.store.Count(ctx, m.collection, docstore.Query(filter))
}
