package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/session"
	"github.com/mdii/portal/core/task"
	"github.com/mdii/portal/storage/blob/inmem"
	"github.com/mdii/portal/storage/csvdb"
)

var (
	admin = session.Session{Email: "boss@x.com", IsAdmin: true}
	alice = session.Session{Email: "a@x.com"}
	bob   = session.Session{Email: "b@x.com"}
)

func newService() *task.Service {
	db := csvdb.Open(inmem.Open(), core.BlobKeys{Tasks: "tasks.csv", Notes: "notes.csv", ToolStatus: "status.csv"})
	return task.NewService(csvdb.NewTaskRepository(db))
}

func newValidator() *validator.Validate {
	v := validator.New()
	core.InitValidators(v, core.NewTranslator())
	return v
}

func TestNewTask_Validate(t *testing.T) {
	validate := newValidator()
	tests := []struct {
		name   string
		data   task.NewTask
		fields []string
	}{
		{name: "valid", data: task.NewTask{ToolID: "T-1", Title: " Call innovator "}},
		{name: "missing", data: task.NewTask{}, fields: []string{"toolId", "title"}},
		{name: "blank title", data: task.NewTask{ToolID: "T1", Title: "   "}, fields: []string{"title"}},
		{name: "bad tool id", data: task.NewTask{ToolID: "T 1", Title: "x"}, fields: []string{"toolId"}},
		{name: "bad status", data: task.NewTask{ToolID: "T1", Title: "x", Status: "later"}, fields: []string{"status"}},
		{name: "bad assignee", data: task.NewTask{ToolID: "T1", Title: "x", Assignee: "bob"}, fields: []string{"assignee"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "%v", err)
			fields := make([]string, 0)
			for _, fe := range vErrs {
				fields = append(fields, fe.Field())
			}
			assert.ElementsMatch(t, tt.fields, fields)
		})
	}
}

func TestService_CRUD(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, alice, task.NewTask{ToolID: "T1", ToolName: "Soil App", Title: "Call"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, core.TaskStatusOpen, created.Status)
	assert.Equal(t, "a@x.com", created.Assignee)
	assert.Equal(t, "a@x.com", created.CreatedBy)

	got, err := svc.Get(ctx, alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Get(ctx, bob, created.ID)
	assert.Equal(t, task.ErrNotFound, err)
	_, err = svc.Get(ctx, admin, created.ID)
	assert.NoError(t, err)

	ut := task.UpdateTask{Status: "done", Assignee: "b@x.com"}
	require.NoError(t, ut.Validate(got, newValidator()))
	updated, err := svc.Update(ctx, got, ut)
	require.NoError(t, err)
	assert.Equal(t, "Call", updated.Title)
	assert.Equal(t, core.TaskStatusDone, updated.Status)

	_, err = svc.Get(ctx, bob, created.ID)
	assert.NoError(t, err, "assignee sees the task")

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, admin, created.ID)
	assert.Equal(t, task.ErrNotFound, err)
}

func TestService_Query(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, nt := range []struct {
		sess session.Session
		data task.NewTask
	}{
		{alice, task.NewTask{ToolID: "T1", Title: "b"}},
		{alice, task.NewTask{ToolID: "T2", Title: "a", Status: "done"}},
		{bob, task.NewTask{ToolID: "T1", Title: "c"}},
		{bob, task.NewTask{ToolID: "T1", Title: "d", Assignee: "a@x.com"}},
	} {
		task.SetNowFunc(func() time.Time { return base.Add(time.Duration(i) * time.Hour) })
		_, err := svc.Create(ctx, nt.sess, nt.data)
		require.NoError(t, err)
	}
	defer task.SetNowFunc(time.Now)

	titles := func(tasks []task.Task) []string {
		out := make([]string, 0, len(tasks))
		for _, tk := range tasks {
			out = append(out, tk.Title)
		}
		return out
	}

	tests := []struct {
		name     string
		sess     session.Session
		filter   task.QueryFilter
		ordering []core.OrderBy
		want     []string
	}{
		{name: "admin sees all, newest first", sess: admin, want: []string{"d", "c", "a", "b"}},
		{name: "assignee or creator", sess: alice, want: []string{"d", "a", "b"}},
		{name: "bob", sess: bob, want: []string{"d", "c"}},
		{name: "filter tool", sess: alice, filter: task.QueryFilter{ToolID: "T1"}, want: []string{"d", "b"}},
		{name: "filter status", sess: admin, filter: task.QueryFilter{Status: "done"}, want: []string{"a"}},
		{name: "ordering", sess: admin, ordering: core.ParseOrdering("status,-title"), want: []string{"a", "d", "c", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := svc.Query(ctx, tt.sess, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(tasks))
		})
	}
}
