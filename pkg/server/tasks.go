package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimburion/taskdesk/pkg/docstore"
	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"github.com/nimburion/taskdesk/pkg/repository/document"
	"github.com/nimburion/taskdesk/pkg/task"
)

const (
	dateLayout      = "2006-01-02"
	defaultPageSize = 50
	maxPageSize     = 500
)

// TaskService is the task behaviour the HTTP surface depends on; *task.Manager implements it.
type TaskService interface {
	Create(ctx context.Context, t *task.Task) error
	Update(ctx context.Context, t *task.Task) error
	Complete(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*task.Task, error)
	List(ctx context.Context, f task.ListFilter, page document.Pagination) ([]task.Task, error)
}

// ErrorResponse is the JSON error body of every endpoint.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// taskRequest is the JSON body of create and update calls. DueDate accepts YYYY-MM-DD or RFC3339.
type taskRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
	Priority    string `json:"priority" form:"priority"`
	DueDate     string `json:"due_date" form:"due_date"`
	Completed   bool   `json:"completed" form:"completed"`
}

func (r taskRequest) toTask(id string) (*task.Task, error) {
	priority, err := task.ParsePriority(r.Priority)
	if err != nil {
		return nil, err
	}
	due, err := parseDueDate(r.DueDate)
	if err != nil {
		return nil, err
	}
	return &task.Task{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Priority:    priority,
		DueDate:     due,
		Completed:   r.Completed,
	}, nil
}

func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &docstore.ValidationError{Field: "due_date", Reason: "expected YYYY-MM-DD or RFC3339", Cause: err}
	}
	return t, nil
}

type taskHandlers struct {
	tasks TaskService
	log   logger.Logger
}

func (h *taskHandlers) register(api *gin.RouterGroup) {
	api.GET("/tasks", h.list)
	api.POST("/tasks", h.create)
	api.GET("/tasks/:id", h.get)
	api.PUT("/tasks/:id", h.update)
	api.POST("/tasks/:id/complete", h.complete)
	api.DELETE("/tasks/:id", h.remove)
}

func (h *taskHandlers) list(c *gin.Context) {
	filter, page, err := listParams(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	tasks, err := h.tasks.List(c.Request.Context(), filter, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (h *taskHandlers) create(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	t, err := req.toTask("")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.tasks.Create(c.Request.Context(), t); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/api/v1/tasks/"+t.ID)
	c.JSON(http.StatusCreated, t)
}

func (h *taskHandlers) get(c *gin.Context) {
	t, err := h.tasks.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandlers) update(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	t, err := req.toTask(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.tasks.Update(c.Request.Context(), t); err != nil {
		h.fail(c, err)
		return
	}
	updated, err := h.tasks.FindByID(c.Request.Context(), t.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *taskHandlers) complete(c *gin.Context) {
	if err := h.tasks.Complete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *taskHandlers) remove(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *taskHandlers) badRequest(c *gin.Context, err error) {
	if isBodyTooLarge(err) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:     "request_too_large",
			Message:   err.Error(),
			RequestID: c.GetString(requestIDKey),
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:     "bad_request",
		Message:   err.Error(),
		RequestID: c.GetString(requestIDKey),
	})
}

func (h *taskHandlers) fail(c *gin.Context, err error) {
	status, resp := mapError(err)
	resp.RequestID = c.GetString(requestIDKey)
	if status >= http.StatusInternalServerError {
		h.log.WithContext(c.Request.Context()).Error("task request failed", "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// mapError maps the store and task error taxonomy onto HTTP status codes.
func mapError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, docstore.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: err.Error()}
	case errors.Is(err, task.ErrNotFound), errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not_found", Message: task.ErrNotFound.Error()}
	case errors.Is(err, docstore.ErrOperation), errors.Is(err, docstore.ErrConnection), errors.Is(err, docstore.ErrIllegalState):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "store_unavailable", Message: "the task store is unavailable, try again later"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal_server_error", Message: "an unexpected error occurred"}
	}
}

func listParams(c *gin.Context) (task.ListFilter, document.Pagination, error) {
	filter := task.ListFilter{Search: c.Query("search")}
	if p := strings.TrimSpace(c.Query("priority")); p != "" && !strings.EqualFold(p, string(task.PriorityAll)) {
		priority, err := task.ParsePriority(p)
		if err != nil {
			return filter, document.Pagination{}, err
		}
		filter.Priority = priority
	}
	if v := c.Query("show_completed"); v != "" {
		show, err := strconv.ParseBool(v)
		if err != nil {
			return filter, document.Pagination{}, &docstore.ValidationError{Field: "show_completed", Reason: "expected a boolean", Cause: err}
		}
		filter.ShowCompleted = show
	}

	page := document.Pagination{Page: 1, PageSize: defaultPageSize}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, page, &docstore.ValidationError{Field: "page", Reason: "expected a positive integer"}
		}
		page.Page = n
	}
	if v := c.Query("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return filter, page, &docstore.ValidationError{Field: "page_size", Reason: "expected an integer between 1 and 500"}
		}
		page.PageSize = n
	}
	return filter, page, nil
}
