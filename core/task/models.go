package task

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/session"
)

const timeKeyLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Task struct {
	ID        string    `json:"id"`
	ToolID    string    `json:"toolId"`
	ToolName  string    `json:"toolName"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	Assignee  string    `json:"assignee"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"` // UTC
	UpdatedAt time.Time `json:"updatedAt"` // UTC
}

// VisibleTo reports whether the viewer may see and modify the task.
func (t Task) VisibleTo(sess session.Session) bool {
	return sess.IsAdmin || t.Assignee == sess.Email || t.CreatedBy == sess.Email
}

// Field returns the sortable value of an `ordering` field.
func (t Task) Field(name string) (string, bool) {
	switch name {
	case "id":
		return t.ID, true
	case "tool_id":
		return t.ToolID, true
	case "tool_name":
		return t.ToolName, true
	case "title":
		return t.Title, true
	case "status":
		return t.Status, true
	case "assignee":
		return t.Assignee, true
	case "created_by":
		return t.CreatedBy, true
	case "created_at":
		return t.CreatedAt.UTC().Format(timeKeyLayout), true
	case "updated_at":
		return t.UpdatedAt.UTC().Format(timeKeyLayout), true
	}
	return "", false
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	ToolID   string `json:"toolId" validate:"required,toolid"`
	ToolName string `json:"toolName"`
	Title    string `json:"title" validate:"required,notblank,max=200"`
	Content  string `json:"content"`
	Status   string `json:"status" validate:"omitempty,taskstatus"`
	Assignee string `json:"assignee" validate:"omitempty,email"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.ToolID = core.CleanString(nt.ToolID)
	nt.ToolName = core.CleanString(nt.ToolName)
	nt.Title = core.CleanString(nt.Title)
	nt.Status = core.CleanString(nt.Status, true /* lower */)
	nt.Assignee = core.CleanString(nt.Assignee)
	return validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing Task.
// Empty fields keep their current value.
type UpdateTask struct {
	Title    string  `json:"title" validate:"omitempty,max=200"`
	Content  *string `json:"content"`
	Status   string  `json:"status" validate:"omitempty,taskstatus"`
	Assignee string  `json:"assignee" validate:"omitempty,email"`
}

func (ut *UpdateTask) Validate(orig Task, validate *validator.Validate) error {
	if title := core.CleanString(ut.Title); title != "" {
		ut.Title = title
	} else {
		ut.Title = orig.Title
	}
	if status := core.CleanString(ut.Status, true /* lower */); status != "" {
		ut.Status = status
	} else {
		ut.Status = orig.Status
	}
	if assignee := core.CleanString(ut.Assignee); assignee != "" {
		ut.Assignee = assignee
	} else {
		ut.Assignee = orig.Assignee
	}
	if ut.Content == nil {
		ut.Content = &orig.Content
	}
	return validate.Struct(ut)
}

type QueryFilter struct {
	ToolID string `query:"tool_id"`
	Status string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.ToolID = core.CleanString(qf.ToolID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

func (qf QueryFilter) Match(t Task) bool {
	return (qf.ToolID == "" || t.ToolID == qf.ToolID) && (qf.Status == "" || t.Status == qf.Status)
}
