// Package session holds the explicit viewer identity passed through the portal.
package session

import (
	"errors"
	"strings"

	"github.com/mdii/portal/core"
)

var ErrNotAuthorized = errors.New("email not authorized")

// Session is the viewer of a request: who they are and whether they see every tool.
type Session struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// IsZero reports whether s is the empty (logged out) session.
func (s Session) IsZero() bool {
	return s.Email == ""
}

// Role returns "admin" or "coordinator".
func (s Session) Role() string {
	if s.IsAdmin {
		return "admin"
	}
	return "coordinator"
}

// Login contains what a viewer provides to open a session.
type Login struct {
	Email string `json:"email" validate:"required,email"`
}

func (l *Login) Clean() {
	l.Email = strings.TrimSpace(l.Email)
}

// Service opens sessions against the configured email allowlists.
//
// Emails are compared exactly (case-sensitive), as the survey forms store them.
type Service struct {
	admins       map[string]bool
	coordinators map[string]bool
}

func NewService(access core.AccessConfig) *Service {
	svc := &Service{
		admins:       make(map[string]bool, len(access.Admins)),
		coordinators: make(map[string]bool, len(access.Coordinators)),
	}
	for _, e := range access.Admins {
		svc.admins[e] = true
	}
	for _, e := range access.Coordinators {
		svc.coordinators[e] = true
	}
	return svc
}

// Login opens a session for email. Unknown emails get a validation error on the email field.
func (svc *Service) Login(email string) (Session, error) {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
	case svc.admins[email]:
		return Session{Email: email, IsAdmin: true}, nil
	case svc.coordinators[email]:
		return Session{Email: email}, nil
	}
	return Session{}, core.NewValidationError(ErrNotAuthorized, core.FieldError{Field: "email", Error: ErrNotAuthorized.Error()})
}

// Refresh re-checks an existing session against the allowlists, picking up role changes.
func (svc *Service) Refresh(sess Session) (Session, error) {
	return svc.Login(sess.Email)
}
