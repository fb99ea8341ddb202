package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nimburion/taskdesk/pkg/config"
	"github.com/nimburion/taskdesk/pkg/docstore"
	"github.com/nimburion/taskdesk/pkg/task"
)

func newTestPublic(tasks TaskService, opts PublicOptions) *PublicServer {
	if opts.HTTP.MaxRequestSize == 0 {
		opts.HTTP.MaxRequestSize = 1 << 20
	}
	return NewPublicServer(opts, tasks, nil)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestTaskAPI_CreateAndGet(t *testing.T) {
	tasks := newFakeTasks()
	srv := newTestPublic(tasks, PublicOptions{})

	rec := do(t, srv.Handler(), http.MethodPost, "/api/v1/tasks",
		`{"name":"write report","priority":"high","due_date":"2026-11-02","description":"q3"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an id")
	}
	if created.Priority != task.PriorityHigh {
		t.Errorf("expected High priority, got %q", created.Priority)
	}
	if !created.DueDate.Equal(time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected due date %v", created.DueDate)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/v1/tasks/"+created.ID {
		t.Errorf("unexpected Location %q", loc)
	}

	rec = do(t, srv.Handler(), http.MethodGet, "/api/v1/tasks/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTaskAPI_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &docstore.ValidationError{Field: "name", Reason: "must not be empty"}, http.StatusBadRequest, "validation_failed"},
		{"task not found", task.ErrNotFound, http.StatusNotFound, "not_found"},
		{"document not found", docstore.ErrNotFound, http.StatusNotFound, "not_found"},
		{"operation", &docstore.OperationError{Operation: docstore.OpFind, Collection: "tasks", Attempts: 3, Cause: errors.New("boom")}, http.StatusServiceUnavailable, "store_unavailable"},
		{"connection", &docstore.ConnectionError{Database: "task_manager", Cause: errors.New("refused")}, http.StatusServiceUnavailable, "store_unavailable"},
		{"closed", &docstore.IllegalStateError{Operation: docstore.OpFind}, http.StatusServiceUnavailable, "store_unavailable"},
		{"unknown", errors.New("weird"), http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := newFakeTasks()
			tasks.err = tt.err
			srv := newTestPublic(tasks, PublicOptions{})

			rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/tasks", "")
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			resp := decodeError(t, rec)
			if resp.Error != tt.code {
				t.Errorf("expected error code %q, got %q", tt.code, resp.Error)
			}
			if resp.RequestID == "" {
				t.Error("expected request id in error body")
			}
		})
	}
}

func TestTaskAPI_InvalidInput(t *testing.T) {
	srv := newTestPublic(newFakeTasks(), PublicOptions{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"malformed json", http.MethodPost, "/api/v1/tasks", `{"name":`, http.StatusBadRequest},
		{"bad priority", http.MethodPost, "/api/v1/tasks", `{"name":"x","priority":"urgent"}`, http.StatusBadRequest},
		{"bad due date", http.MethodPost, "/api/v1/tasks", `{"name":"x","due_date":"tomorrow"}`, http.StatusBadRequest},
		{"bad page", http.MethodGet, "/api/v1/tasks?page=0", "", http.StatusBadRequest},
		{"page size too large", http.MethodGet, "/api/v1/tasks?page_size=501", "", http.StatusBadRequest},
		{"bad show_completed", http.MethodGet, "/api/v1/tasks?show_completed=maybe", "", http.StatusBadRequest},
		{"unknown task", http.MethodDelete, "/api/v1/tasks/000000000000000000000000", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/v1/nothing", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv.Handler(), tt.method, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTaskAPI_ListParams(t *testing.T) {
	tasks := newFakeTasks()
	srv := newTestPublic(tasks, PublicOptions{})

	rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/tasks?search=rep&priority=medium&show_completed=true&page=2&page_size=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if tasks.lastFilter.Search != "rep" || tasks.lastFilter.Priority != task.PriorityMedium || !tasks.lastFilter.ShowCompleted {
		t.Errorf("unexpected filter %+v", tasks.lastFilter)
	}
	if tasks.lastPage.Page != 2 || tasks.lastPage.PageSize != 10 {
		t.Errorf("unexpected page %+v", tasks.lastPage)
	}

	rec = do(t, srv.Handler(), http.MethodGet, "/api/v1/tasks?priority=All", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if tasks.lastFilter.Priority != "" {
		t.Errorf("All should not filter, got %q", tasks.lastFilter.Priority)
	}
	if tasks.lastPage.PageSize != defaultPageSize {
		t.Errorf("expected default page size, got %d", tasks.lastPage.PageSize)
	}
}

func TestTaskAPI_UpdateCompleteDelete(t *testing.T) {
	tasks := newFakeTasks()
	seeded := tasks.seed(task.Task{Name: "a", Priority: task.PriorityLow})
	srv := newTestPublic(tasks, PublicOptions{})

	rec := do(t, srv.Handler(), http.MethodPut, "/api/v1/tasks/"+seeded.ID, `{"name":"b","priority":"Medium"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", rec.Code)
	}
	var updated task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Name != "b" || updated.Priority != task.PriorityMedium {
		t.Errorf("unexpected task after update %+v", updated)
	}

	if rec := do(t, srv.Handler(), http.MethodPost, "/api/v1/tasks/"+seeded.ID+"/complete", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("complete: expected 204, got %d", rec.Code)
	}
	if got, _ := tasks.FindByID(context.Background(), seeded.ID); !got.Completed {
		t.Error("expected task to be completed")
	}

	if rec := do(t, srv.Handler(), http.MethodDelete, "/api/v1/tasks/"+seeded.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/tasks/"+seeded.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestPublicServer_RequestID(t *testing.T) {
	srv := newTestPublic(newFakeTasks(), PublicOptions{})

	rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/tasks", "")
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "caller-id" {
		t.Errorf("expected caller request id to be kept, got %q", got)
	}
}

func TestPublicServer_RateLimit(t *testing.T) {
	srv := newTestPublic(newFakeTasks(), PublicOptions{
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 2},
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, srv.Handler(), http.MethodGet, "/api/v1/tasks", "").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("expected burst to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %v", codes)
	}
}

func TestPublicServer_RequestSize(t *testing.T) {
	srv := newTestPublic(newFakeTasks(), PublicOptions{HTTP: config.HTTPConfig{MaxRequestSize: 16}})

	rec := do(t, srv.Handler(), http.MethodPost, "/api/v1/tasks", `{"name":"a very long task name indeed"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
