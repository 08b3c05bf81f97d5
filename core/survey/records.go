package survey

import (
	"strings"
	"time"
)

// Maturity levels of a registered tool.
const (
	MaturityAdvanced = "advanced"
	MaturityEarly    = "early"
)

// Tool registration (main form) fields.
const (
	FieldToolID           = "ID"
	FieldToolName         = "tool_name"
	FieldToolNameAlt      = "Tool_Name"
	FieldCoordinatorEmail = "coordinator_email"
	FieldToolMaturity     = "tool_maturity"
)

// Coordinator change form fields.
const (
	FieldChangeToolID = "tool_id"
	FieldChangeEmail  = "Email_of_the_Coordinator"
)

// Domain expert form fields.
const (
	FieldExpertName         = "Q_21100000"
	FieldExpertOrganization = "Q_21200000"
	FieldExpertDomains      = "Q_22300000"
)

// EvaluationToolIDFields are the fields an evaluation form may carry the tool id in, by priority.
var EvaluationToolIDFields = []string{
	"group_intro/Q_13110000",
	"group_requester/Q_13110000",
	"Q_13110000",
	"tool_id",
}

// ExpertToolIDField is the tool id field of each domain expert form.
var ExpertToolIDField = map[string]string{
	MaturityAdvanced: "group_intro/Q_13110000",
	MaturityEarly:    "Q_13110000",
}

type (
	// ToolRegistration is a normalized main form submission.
	ToolRegistration struct {
		ToolID           string
		Name             string
		CoordinatorEmail string
		Maturity         string // MaturityAdvanced, MaturityEarly or ""
		SubmittedAt      time.Time
	}

	// CoordinatorChange is a normalized coordinator change event.
	CoordinatorChange struct {
		ToolID      string
		Email       string
		SubmittedAt time.Time
	}

	// Evaluation is a normalized evaluator form submission.
	Evaluation struct {
		ToolID      string
		SubmittedAt time.Time
	}

	// ExpertSubmission is a normalized domain expert intake submission.
	ExpertSubmission struct {
		Name         string
		Organization string
		Domains      string // raw, free text
		ToolID       string
		Stage        string
	}
)

// NormalizeMaturity maps the registration answer onto MaturityAdvanced / MaturityEarly ("" if unknown).
func NormalizeMaturity(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case MaturityAdvanced:
		return MaturityAdvanced
	case MaturityEarly:
		return MaturityEarly
	default:
		return ""
	}
}

// NormalizeTool adapts a main form submission. ok is false when the submission has no tool id.
func NormalizeTool(sub Submission) (ToolRegistration, bool) {
	id := sub.String(FieldToolID)
	if id == "" {
		return ToolRegistration{}, false
	}
	name := sub.FirstString(FieldToolName, FieldToolNameAlt)
	if name == "" {
		name = id
	}
	return ToolRegistration{
		ToolID:           id,
		Name:             name,
		CoordinatorEmail: sub.String(FieldCoordinatorEmail),
		Maturity:         NormalizeMaturity(sub.String(FieldToolMaturity)),
		SubmittedAt:      sub.SubmittedAt(),
	}, true
}

// NormalizeChange adapts a coordinator change submission. ok is false unless both the tool id
// and the new coordinator email are present.
func NormalizeChange(sub Submission) (CoordinatorChange, bool) {
	id := sub.String(FieldChangeToolID)
	email := sub.String(FieldChangeEmail)
	if id == "" || email == "" {
		return CoordinatorChange{}, false
	}
	return CoordinatorChange{ToolID: id, Email: email, SubmittedAt: sub.SubmittedAt()}, true
}

// EvaluationToolID extracts the tool id of an evaluator submission ("" if none is recognized).
func EvaluationToolID(sub Submission) string {
	return sub.FirstString(EvaluationToolIDFields...)
}

// NormalizeEvaluation adapts an evaluator form submission. ok is false when no tool id field is present.
func NormalizeEvaluation(sub Submission) (Evaluation, bool) {
	id := EvaluationToolID(sub)
	if id == "" {
		return Evaluation{}, false
	}
	return Evaluation{ToolID: id, SubmittedAt: sub.SubmittedAt()}, true
}

// NormalizeExpert adapts a domain expert intake submission of the given stage.
// ok is false when the expert has neither name nor organization.
func NormalizeExpert(sub Submission, stage string) (ExpertSubmission, bool) {
	es := ExpertSubmission{
		Name:         sub.String(FieldExpertName),
		Organization: sub.String(FieldExpertOrganization),
		Domains:      sub.String(FieldExpertDomains),
		ToolID:       sub.String(ExpertToolIDField[stage]),
		Stage:        stage,
	}
	if es.Name == "" && es.Organization == "" {
		return ExpertSubmission{}, false
	}
	return es, true
}

// Normalization helpers over whole result sets.

func NormalizeTools(subs []Submission) []ToolRegistration {
	out := make([]ToolRegistration, 0, len(subs))
	for _, s := range subs {
		if tr, ok := NormalizeTool(s); ok {
			out = append(out, tr)
		}
	}
	return out
}

func NormalizeChanges(subs []Submission) []CoordinatorChange {
	out := make([]CoordinatorChange, 0, len(subs))
	for _, s := range subs {
		if c, ok := NormalizeChange(s); ok {
			out = append(out, c)
		}
	}
	return out
}

func NormalizeEvaluations(subs []Submission) []Evaluation {
	out := make([]Evaluation, 0, len(subs))
	for _, s := range subs {
		if e, ok := NormalizeEvaluation(s); ok {
			out = append(out, e)
		}
	}
	return out
}

func NormalizeExperts(subs []Submission, stage string) []ExpertSubmission {
	out := make([]ExpertSubmission, 0, len(subs))
	for _, s := range subs {
		if e, ok := NormalizeExpert(s, stage); ok {
			out = append(out, e)
		}
	}
	return out
}

// FilterByToolID keeps the submissions whose tool id (any evaluation id field, or ID) equals id.
func FilterByToolID(subs []Submission, id string) []Submission {
	out := make([]Submission, 0)
	for _, s := range subs {
		sid := EvaluationToolID(s)
		if sid == "" {
			sid = s.String(FieldToolID)
		}
		if sid == id {
			out = append(out, s)
		}
	}
	return out
}
