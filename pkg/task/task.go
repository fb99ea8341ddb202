// Package task implements the task tracker on top of the resilient document store.
package task

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nimburion/taskdesk/pkg/docstore"
)

// Collection is the default collection tasks are stored in.
const Collection = "tasks"

// Document field names.
const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldPriority    = "priority"
	fieldDueDate     = "due_date"
	fieldCompleted   = "completed"
)

// ErrNotFound is returned when no task has the requested identifier.
var ErrNotFound = errors.New("no task found with the provided ID")

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	// PriorityAll disables priority filtering in a ListFilter.
	PriorityAll Priority = "All"
)

// Priorities lists the assignable priorities in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority matches s case-insensitively against the assignable priorities.
// An empty string yields PriorityLow.
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PriorityLow, nil
	}
	for _, p := range Priorities {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", invalid(fieldPriority, "unknown priority %q (want Low, Medium or High)", s)
}

// Task is a single to-do item.
type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	DueDate     time.Time `json:"due_date"`
	Completed   bool      `json:"completed"`
}

// Overdue reports whether the task is still open after its due date.
func (t Task) Overdue(now time.Time) bool {
	return !t.Completed && !t.DueDate.IsZero() && Midnight(now).After(t.DueDate)
}

// Midnight truncates t to the start of its day in UTC.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ListFilter narrows the task list.
type ListFilter struct {
	// Search matches task names case-insensitively as a literal substring.
	Search string
	// Priority restricts the list to one priority; empty or PriorityAll keeps every task.
	Priority Priority
	// ShowCompleted includes completed tasks.
	ShowCompleted bool
}

// Query builds the document query for f.
func (f ListFilter) Query() docstore.Query {
	q := docstore.Query{}
	if search := strings.TrimSpace(f.Search); search != "" {
		q[fieldName] = map[string]any{"$regex": regexp.QuoteMeta(search), "$options": "i"}
	}
	if f.Priority != "" && f.Priority != PriorityAll {
		q[fieldPriority] = string(f.Priority)
	}
	if !f.ShowCompleted {
		q[fieldCompleted] = false
	}
	return q
}

func (t *Task) validate() error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return invalid(fieldName, "task name is required")
	}
	p, err := ParsePriority(string(t.Priority))
	if err != nil {
		return err
	}
	t.Priority = p
	return nil
}

func (t Task) document() docstore.Document {
	return docstore.Document{
		fieldName:        t.Name,
		fieldDescription: t.Description,
		fieldPriority:    string(t.Priority),
		fieldDueDate:     t.DueDate,
		fieldCompleted:   t.Completed,
	}
}

func fromDocument(doc docstore.Document) Task {
	t := Task{}
	t.ID, _ = doc[docstore.IDField].(string)
	t.Name, _ = doc[fieldName].(string)
	t.Description, _ = doc[fieldDescription].(string)
	if p, ok := doc[fieldPriority].(string); ok {
		t.Priority = Priority(p)
	}
	t.DueDate, _ = doc[fieldDueDate].(time.Time)
	t.Completed, _ = doc[fieldCompleted].(bool)
	return t
}

// invalid reports rejected task input as a docstore validation error.
func invalid(field, format string, args ...any) error {
	return &docstore.ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
