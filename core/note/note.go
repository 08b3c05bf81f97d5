// Package note manages the free-text notes kept on tools.
package note

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/session"
)

var (
	ErrNotFound  = errors.New("note not found")
	ErrForbidden = errors.New("only the author or an admin can change a note")

	nowFunc = time.Now // mockable
)

type Note struct {
	ID        string    `json:"id"`
	ToolID    string    `json:"toolId"`
	ToolName  string    `json:"toolName"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"` // UTC
	UpdatedAt time.Time `json:"updatedAt"` // UTC
}

func (n Note) EditableBy(sess session.Session) bool {
	return sess.IsAdmin || n.CreatedBy == sess.Email
}

// NewNote contains information needed to add a note to a tool.
type NewNote struct {
	ToolName string `json:"toolName"`
	Content  string `json:"content" validate:"required,notblank,max=5000"`
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.ToolName = core.CleanString(nn.ToolName)
	nn.Content = core.CleanString(nn.Content)
	return validate.Struct(nn)
}

type UpdateNote struct {
	Content string `json:"content" validate:"required,notblank,max=5000"`
}

func (un *UpdateNote) Validate(validate *validator.Validate) error {
	un.Content = core.CleanString(un.Content)
	return validate.Struct(un)
}

type (
	Repository interface {
		QueryNotes(ctx context.Context, toolID string) ([]Note, error)
		GetNote(ctx context.Context, id string) (Note, error)
		CreateNote(ctx context.Context, n Note) (Note, error)
		UpdateNote(ctx context.Context, n Note) (Note, error)
		DeleteNote(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Query returns the notes of a tool, newest first.
func (svc *Service) Query(ctx context.Context, toolID string) ([]Note, error) {
	notes, err := svc.repo.QueryNotes(ctx, toolID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	return notes, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Note, error) {
	return svc.repo.GetNote(ctx, id)
}

func (svc *Service) Create(ctx context.Context, sess session.Session, toolID string, nn NewNote) (Note, error) {
	now := nowFunc().UTC()
	return svc.repo.CreateNote(ctx, Note{
		ID:        uuid.New().String(),
		ToolID:    toolID,
		ToolName:  nn.ToolName,
		Content:   nn.Content,
		CreatedBy: sess.Email,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) Update(ctx context.Context, sess session.Session, orig Note, un UpdateNote) (Note, error) {
	if !orig.EditableBy(sess) {
		return Note{}, ErrForbidden
	}
	n := orig
	n.Content = un.Content
	n.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateNote(ctx, n)
}

func (svc *Service) Delete(ctx context.Context, sess session.Session, orig Note) error {
	if !orig.EditableBy(sess) {
		return ErrForbidden
	}
	return svc.repo.DeleteNote(ctx, orig.ID)
}
