package server

import (
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimburion/taskdesk/pkg/task"
)

const pageTemplateName = "tasks.html"

var pageTemplate = template.Must(template.New(pageTemplateName).Funcs(template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(dateLayout)
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: .4rem; text-align: left; }
.msg { color: #0a6b2d; } .err { color: #a01818; } .overdue { color: #a01818; }
form.inline { display: inline; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{with .Message}}<p class="msg">{{.}}</p>{{end}}
{{with .Error}}<p class="err">{{.}}</p>{{end}}

<h2>Add a new task</h2>
<form method="post" action="/tasks">
  <label>Task Name <input name="name" required></label>
  <label>Priority
    <select name="priority">{{range .Priorities}}<option>{{.}}</option>{{end}}</select>
  </label>
  <label>Due Date <input type="date" name="due_date" value="{{.Today}}"></label><br>
  <label>Description <textarea name="description"></textarea></label><br>
  <button type="submit">Add Task</button>
</form>

<h2>Tasks</h2>
<form method="get" action="/">
  <label>Search by Task Name <input name="search" value="{{.Filter.Search}}"></label>
  <label>Filter by Priority
    <select name="priority">
      <option{{if eq (print .Filter.Priority) "" "All"}} selected{{end}}>All</option>
      {{$current := .Filter.Priority}}{{range .Priorities}}<option{{if eq . $current}} selected{{end}}>{{.}}</option>{{end}}
    </select>
  </label>
  <label><input type="checkbox" name="show_completed" value="true"{{if .Filter.ShowCompleted}} checked{{end}}> Show Completed Tasks</label>
  <button type="submit">Filter</button>
</form>
<table>
<tr><th>ID</th><th>Name</th><th>Description</th><th>Priority</th><th>Due Date</th><th>Completed</th><th></th></tr>
{{range .Tasks}}
<tr>
  <td><code>{{.ID}}</code></td>
  <td>{{.Name}}</td>
  <td>{{.Description}}</td>
  <td>{{.Priority}}</td>
  <td{{if .Overdue $.Now}} class="overdue"{{end}}>{{date .DueDate}}</td>
  <td>{{if .Completed}}yes{{else}}no{{end}}</td>
  <td>
    {{if not .Completed}}<form class="inline" method="post" action="/tasks/{{.ID}}/complete"><button>Complete</button></form>{{end}}
    <form class="inline" method="post" action="/tasks/{{.ID}}/delete"><button>Delete</button></form>
  </td>
</tr>
{{else}}
<tr><td colspan="7">No tasks.</td></tr>
{{end}}
</table>
</body>
</html>`))

type pageData struct {
	Title      string
	Message    string
	Error      string
	Filter     task.ListFilter
	Priorities []task.Priority
	Tasks      []task.Task
	Today      string
	Now        time.Time
}

type pageHandlers struct {
	tasks TaskService
	title string
}

func (h *pageHandlers) register(r gin.IRoutes) {
	r.GET("/", h.index)
	r.POST("/tasks", h.add)
	r.POST("/tasks/:id/complete", h.complete)
	r.POST("/tasks/:id/delete", h.remove)
}

func (h *pageHandlers) index(c *gin.Context) {
	now := time.Now().UTC()
	data := pageData{
		Title:      h.title,
		Message:    c.Query("msg"),
		Priorities: task.Priorities,
		Today:      now.Format(dateLayout),
		Now:        now,
	}

	filter, page, err := listParams(c)
	data.Filter = filter
	if err != nil {
		h.render(c, data, err)
		return
	}
	tasks, err := h.tasks.List(c.Request.Context(), filter, page)
	data.Tasks = tasks
	h.render(c, data, err)
}

func (h *pageHandlers) add(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderError(c, err)
		return
	}
	t, err := req.toTask("")
	if err == nil {
		err = h.tasks.Create(c.Request.Context(), t)
	}
	if err != nil {
		h.renderError(c, err)
		return
	}
	redirectWithMessage(c, "Task added with ID: "+t.ID)
}

func (h *pageHandlers) complete(c *gin.Context) {
	if err := h.tasks.Complete(c.Request.Context(), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	redirectWithMessage(c, "Task updated successfully")
}

func (h *pageHandlers) remove(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	redirectWithMessage(c, "Task deleted successfully")
}

func (h *pageHandlers) renderError(c *gin.Context, err error) {
	now := time.Now().UTC()
	h.render(c, pageData{
		Title:      h.title,
		Priorities: task.Priorities,
		Today:      now.Format(dateLayout),
		Now:        now,
	}, err)
}

func (h *pageHandlers) render(c *gin.Context, data pageData, err error) {
	status := http.StatusOK
	if err != nil {
		var resp ErrorResponse
		status, resp = mapError(err)
		data.Error = resp.Message
		_ = c.Error(err)
	}
	c.HTML(status, pageTemplateName, data)
}

func redirectWithMessage(c *gin.Context, msg string) {
	c.Redirect(http.StatusSeeOther, "/?msg="+url.QueryEscape(msg))
}
