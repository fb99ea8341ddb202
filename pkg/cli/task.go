package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nimburion/taskdesk/pkg/config"
	"github.com/nimburion/taskdesk/pkg/docstore"
	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"github.com/nimburion/taskdesk/pkg/repository/document"
	"github.com/nimburion/taskdesk/pkg/server"
	"github.com/nimburion/taskdesk/pkg/task"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

type configLoader func(cmd *cobra.Command) (*config.Config, logger.Logger, error)

// taskRunner loads config and logger, opens the task service, runs fn and releases everything.
type taskRunner struct {
	open TasksFactory
	load configLoader
}

func (r taskRunner) run(cmd *cobra.Command, fn func(tasks server.TaskService, out io.Writer) error) error {
	cfg, log, err := r.load(cmd)
	if err != nil {
		return err
	}
	defer closeLogger(log)

	tasks, closeTasks, err := r.open(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeTasks != nil {
			if err := closeTasks(); err != nil {
				log.Warn("failed to close task store", "error", err)
			}
		}
	}()

	return fn(tasks, cmd.OutOrStdout())
}

func newTaskCommand(open TasksFactory, load configLoader) *cobra.Command {
	r := taskRunner{open: open, load: load}

	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	taskCmd.AddCommand(
		newTaskAddCommand(r),
		newTaskListCommand(r),
		newTaskGetCommand(r),
		newTaskUpdateCommand(r),
		newTaskCompleteCommand(r),
		newTaskDeleteCommand(r),
	)
	return taskCmd
}

func newTaskAddCommand(r taskRunner) *cobra.Command {
	var name, description, priority, due string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := task.ParsePriority(priority)
			if err != nil {
				return err
			}
			dueDate, err := parseDate(due)
			if err != nil {
				return err
			}
			t := &task.Task{Name: name, Description: description, Priority: p, DueDate: dueDate}
			return r.run(cmd, func(tasks server.TaskService, out io.Writer) error {
				if err := tasks.Create(cmd.Context(), t); err != nil {
					return err
				}
				fmt.Fprintf(out, "Task added with ID: %s\n", t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", string(task.PriorityLow), "Low, Medium or High")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD, default today)")
	return cmd
}

func newTaskListCommand(r taskRunner) *cobra.Command {
	var search, priority string
	var showCompleted bool
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks sorted by due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := task.ListFilter{Search: search, ShowCompleted: showCompleted}
			if !strings.EqualFold(strings.TrimSpace(priority), string(task.PriorityAll)) {
				p, err := task.ParsePriority(priority)
				if err != nil {
					return err
				}
				filter.Priority = p
			}
			pagination := document.Pagination{Page: page, PageSize: pageSize}
			return r.run(cmd, func(tasks server.TaskService, out io.Writer) error {
				list, err := tasks.List(cmd.Context(), filter, pagination)
				if err != nil {
					return err
				}
				return writeTasks(out, list, time.Now().UTC())
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive match on the task name")
	cmd.Flags().StringVar(&priority, "priority", string(task.PriorityAll), "All, Low, Medium or High")
	cmd.Flags().BoolVar(&showCompleted, "show-completed", false, "include completed tasks")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 50, "tasks per page")
	return cmd
}

func newTaskGetCommand(r taskRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(tasks server.TaskService, out io.Writer) error {
				t, err := tasks.FindByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeTasks(out, []task.Task{*t}, time.Now().UTC())
			})
		},
	}
}

func newTaskUpdateCommand(r taskRunner) *cobra.Command {
	var name, description, priority, due string
	var completed bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return r.run(cmd, func(tasks server.TaskService, out io.Writer) error {
				t, err := tasks.FindByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if flags.Changed("name") {
					t.Name = name
				}
				if flags.Changed("description") {
					t.Description = description
				}
				if flags.Changed("priority") {
					if t.Priority, err = task.ParsePriority(priority); err != nil {
						return err
					}
				}
				if flags.Changed("due") {
					if t.DueDate, err = parseDate(due); err != nil {
						return err
					}
				}
				if flags.Changed("completed") {
					t.Completed = completed
				}
				if err := tasks.Update(cmd.Context(), t); err != nil {
					return err
				}
				fmt.Fprintln(out, "Task updated successfully")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", "", "Low, Medium or High")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&completed, "completed", false, "completion state")
	return cmd
}

func newTaskCompleteCommand(r taskRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(tasks server.TaskService, out io.Writer) error {
				if err := tasks.Complete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(out, "Task updated successfully")
				return nil
			})
		},
	}
}

func newTaskDeleteCommand(r taskRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(tasks server.TaskService, out io.Writer) error {
				if err := tasks.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(out, "Task deleted successfully")
				return nil
			})
		},
	}
}

// parseDate accepts YYYY-MM-DD. An empty value means today.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return task.Midnight(time.Now()), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &docstore.ValidationError{Field: "due_date", Reason: "expected YYYY-MM-DD", Cause: err}
	}
	return t, nil
}

func writeTasks(out io.Writer, tasks []task.Task, now time.Time) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(out, "No tasks found.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRIORITY\tDUE\tCOMPLETED\tDESCRIPTION")
	for _, t := range tasks {
		due := ""
		if !t.DueDate.IsZero() {
			due = t.DueDate.Format(dateLayout)
			if t.Overdue(now) {
				due += " (overdue)"
			}
		}
		completed := "no"
		if t.Completed {
			completed = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Priority, due, completed, t.Description)
	}
	return w.Flush()
}
