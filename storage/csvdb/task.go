package csvdb

import (
	"context"

	"github.com/mdii/portal/core/task"
)

type taskRepository struct {
	db *DB
}

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db}
}

func taskToRow(t task.Task) Row {
	return Row{
		"id":        t.ID,
		"toolId":    t.ToolID,
		"toolName":  t.ToolName,
		"title":     t.Title,
		"content":   t.Content,
		"status":    t.Status,
		"assignee":  t.Assignee,
		"createdBy": t.CreatedBy,
		"createdAt": formatTime(t.CreatedAt),
		"updatedAt": formatTime(t.UpdatedAt),
	}
}

func rowToTask(r Row) task.Task {
	return task.Task{
		ID:        r["id"],
		ToolID:    r["toolId"],
		ToolName:  r["toolName"],
		Title:     r["title"],
		Content:   r["content"],
		Status:    r["status"],
		Assignee:  r["assignee"],
		CreatedBy: r["createdBy"],
		CreatedAt: parseTime(r["createdAt"]),
		UpdatedAt: parseTime(r["updatedAt"]),
	}
}

func (repo *taskRepository) QueryTasks(ctx context.Context) ([]task.Task, error) {
	rows, err := repo.db.query(ctx, repo.db.tasks)
	if err != nil {
		return nil, err
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, rowToTask(r))
	}
	return tasks, nil
}

func (repo *taskRepository) GetTask(ctx context.Context, id string) (task.Task, error) {
	rows, err := repo.db.query(ctx, repo.db.tasks)
	if err != nil {
		return task.Task{}, err
	}
	for _, r := range rows {
		if r["id"] == id {
			return rowToTask(r), nil
		}
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	err := repo.db.modify(ctx, repo.db.tasks, func(rows []Row) ([]Row, error) {
		return append(rows, taskToRow(t)), nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	err := repo.db.modify(ctx, repo.db.tasks, func(rows []Row) ([]Row, error) {
		for i, r := range rows {
			if r["id"] == t.ID {
				rows[i] = taskToRow(t)
				return rows, nil
			}
		}
		return nil, task.ErrNotFound
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (repo *taskRepository) DeleteTask(ctx context.Context, id string) error {
	return repo.db.modify(ctx, repo.db.tasks, func(rows []Row) ([]Row, error) {
		for i, r := range rows {
			if r["id"] == id {
				return append(rows[:i], rows[i+1:]...), nil
			}
		}
		return nil, task.ErrNotFound
	})
}
