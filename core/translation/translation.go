// Package translation validates translation requests and hands them to the automation flow.
package translation

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/session"
)

const payloadType = "translation_request"

var nowFunc = time.Now // mockable

// Request is what a coordinator submits to get a form translated.
type Request struct {
	ToolID          string   `json:"toolId" validate:"required,toolid"`
	ToolName        string   `json:"toolName" validate:"required,notblank"`
	FormName        string   `json:"formName" validate:"required,notblank"`
	SourceLanguage  string   `json:"sourceLanguage" validate:"required,langcode"`
	TargetLanguages []string `json:"targetLanguages" validate:"required,min=1,dive,langcode"`
	RequesterEmail  string   `json:"requesterEmail" validate:"omitempty,email"`
	Notes           string   `json:"notes" validate:"max=2000"`
}

func (r *Request) Validate(validate *validator.Validate) error {
	r.ToolID = core.CleanString(r.ToolID)
	r.ToolName = core.CleanString(r.ToolName)
	r.FormName = core.CleanString(r.FormName)
	r.SourceLanguage = core.CleanString(r.SourceLanguage, true /* lower */)
	for i, l := range r.TargetLanguages {
		r.TargetLanguages[i] = core.CleanString(l, true /* lower */)
	}
	r.RequesterEmail = core.CleanString(r.RequesterEmail)
	r.Notes = core.CleanString(r.Notes)

	if err := validate.Struct(r); err != nil {
		return err
	}
	for _, l := range r.TargetLanguages {
		if l == r.SourceLanguage {
			return core.NewValidationError(nil, core.FieldError{
				Field: "targetLanguages",
				Error: "target languages must differ from the source language",
			})
		}
	}
	return nil
}

// Payload is the body posted to the automation flow.
type Payload struct {
	Type            string    `json:"type"`
	ToolID          string    `json:"tool_id"`
	ToolName        string    `json:"tool_name"`
	FormName        string    `json:"form_name"`
	SourceLanguage  string    `json:"source_language"`
	TargetLanguages []string  `json:"target_languages"`
	RequesterEmail  string    `json:"requester_email"`
	Notes           string    `json:"notes"`
	RequestedAt     time.Time `json:"requested_at"`
}

// Trigger posts a payload to the automation flow.
type Trigger interface {
	Trigger(ctx context.Context, payload interface{}) error
}

type Service struct {
	trigger Trigger
}

func NewService(trigger Trigger) *Service {
	return &Service{trigger: trigger}
}

// Submit sends a validated request. The requester defaults to the viewer.
func (svc *Service) Submit(ctx context.Context, sess session.Session, r Request) (Payload, error) {
	p := Payload{
		Type:            payloadType,
		ToolID:          r.ToolID,
		ToolName:        r.ToolName,
		FormName:        r.FormName,
		SourceLanguage:  r.SourceLanguage,
		TargetLanguages: r.TargetLanguages,
		RequesterEmail:  r.RequesterEmail,
		Notes:           r.Notes,
		RequestedAt:     nowFunc().UTC(),
	}
	if p.RequesterEmail == "" {
		p.RequesterEmail = sess.Email
	}
	if err := svc.trigger.Trigger(ctx, p); err != nil {
		return Payload{}, errors.Wrap(err, "triggering translation flow")
	}
	return p, nil
}
