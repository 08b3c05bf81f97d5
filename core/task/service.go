// Package task manages the follow-up tasks coordinators keep on tools.
package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/session"
)

var (
	ErrNotFound = errors.New("task not found")

	nowFunc = time.Now // mockable
)

var defaultOrdering = []core.OrderBy{{Field: "created_at", Ascending: false}}

type (
	Repository interface {
		QueryTasks(ctx context.Context) ([]Task, error)
		GetTask(ctx context.Context, id string) (Task, error)
		CreateTask(ctx context.Context, t Task) (Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTask(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a new open task. The creator is the assignee unless one is given.
func (svc *Service) Create(ctx context.Context, sess session.Session, nt NewTask) (Task, error) {
	now := nowFunc().UTC()
	t := Task{
		ID:        uuid.New().String(),
		ToolID:    nt.ToolID,
		ToolName:  nt.ToolName,
		Title:     nt.Title,
		Content:   nt.Content,
		Status:    nt.Status,
		Assignee:  nt.Assignee,
		CreatedBy: sess.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t.Status == "" {
		t.Status = core.TaskStatusOpen
	}
	if t.Assignee == "" {
		t.Assignee = sess.Email
	}
	return svc.repo.CreateTask(ctx, t)
}

// Query returns the tasks visible to the viewer that match filter, sorted by ordering
// (newest first by default).
func (svc *Service) Query(ctx context.Context, sess session.Session, filter QueryFilter, ordering []core.OrderBy) ([]Task, error) {
	all, err := svc.repo.QueryTasks(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(all))
	for _, t := range all {
		if t.VisibleTo(sess) && filter.Match(t) {
			tasks = append(tasks, t)
		}
	}
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}
	core.SortRows(len(tasks),
		func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] },
		func(i int, field string) (string, bool) { return tasks[i].Field(field) },
		ordering,
	)
	return tasks, nil
}

// Get returns the task if the viewer can see it. Hidden tasks are reported as not found.
func (svc *Service) Get(ctx context.Context, sess session.Session, id string) (Task, error) {
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !t.VisibleTo(sess) {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// Update applies a validated UpdateTask to orig.
func (svc *Service) Update(ctx context.Context, orig Task, ut UpdateTask) (Task, error) {
	t := orig
	t.Title = ut.Title
	t.Status = ut.Status
	t.Assignee = ut.Assignee
	if ut.Content != nil {
		t.Content = *ut.Content
	}
	t.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateTask(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteTask(ctx, id)
}

// QueryAll returns every task, unfiltered. Used by the admin CLI.
func (svc *Service) QueryAll(ctx context.Context, filter QueryFilter) ([]Task, error) {
	return svc.Query(ctx, session.Session{IsAdmin: true}, filter, nil)
}
