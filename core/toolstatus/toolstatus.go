// Package toolstatus keeps the tool status tracking sheet: the statuses coordinators set by hand
// when they stop a tool outside of the evaluation forms.
package toolstatus

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/evaluation"
	"github.com/mdii/portal/core/session"
)

var (
	ErrForbidden = errors.New("only the tool coordinator or an admin can stop a tool")

	nowFunc = time.Now // mockable
)

type Entry struct {
	ToolID    string    `json:"toolId"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"` // UTC
}

type StopRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (sr *StopRequest) Validate(validate *validator.Validate) error {
	sr.Reason = core.CleanString(sr.Reason)
	return validate.Struct(sr)
}

type (
	Repository interface {
		QueryStatuses(ctx context.Context) ([]Entry, error)
		// UpsertStatus replaces the entry of e.ToolID, or appends it.
		UpsertStatus(ctx context.Context, e Entry) (Entry, error)
	}

	// CoordinatorResolver finds the current coordinator of a tool.
	CoordinatorResolver interface {
		CoordinatorOf(ctx context.Context, toolID string) (string, error)
	}

	Service struct {
		repo     Repository
		resolver CoordinatorResolver
	}
)

func NewService(repo Repository, resolver CoordinatorResolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

func (svc *Service) Query(ctx context.Context) ([]Entry, error) {
	return svc.repo.QueryStatuses(ctx)
}

// Stop marks a registered tool stopped. Coordinators can only stop the tools assigned to them.
func (svc *Service) Stop(ctx context.Context, sess session.Session, toolID string, sr StopRequest) (Entry, error) {
	coordinator, err := svc.resolver.CoordinatorOf(ctx, toolID)
	if err != nil {
		return Entry{}, err
	}
	if !sess.IsAdmin && coordinator != sess.Email {
		return Entry{}, ErrForbidden
	}
	return svc.repo.UpsertStatus(ctx, Entry{
		ToolID:    toolID,
		Status:    evaluation.StatusStopped,
		Reason:    sr.Reason,
		UpdatedBy: sess.Email,
		UpdatedAt: nowFunc().UTC(),
	})
}

// Overrides maps tool ids to their manual status.
func (svc *Service) Overrides(ctx context.Context) (map[string]string, error) {
	entries, err := svc.repo.QueryStatuses(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.ToolID] = e.Status
	}
	return out, nil
}
