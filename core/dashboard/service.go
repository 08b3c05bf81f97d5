// Package dashboard runs the fetch cycles of the portal: it reads the survey platform,
// derives the evaluation state for a viewer and keeps the last good snapshot of every viewer.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/evaluation"
	"github.com/mdii/portal/core/session"
	"github.com/mdii/portal/core/survey"
)

// Slice names, also used as fetch error form names.
const (
	SliceMain           = "main"
	SliceChange         = "change"
	SliceAdvancedUT3    = "advancedUT3"
	SliceAdvancedUT4    = "advancedUT4"
	SliceEarlyUT3       = "earlyUT3"
	SliceEarlyUT4       = "earlyUT4"
	SliceInnovator1     = "innovator1"
	SliceInnovator2     = "innovator2"
	SliceInnovator3     = "innovator3"
	SliceDomainAdvanced = "domainAdvanced"
	SliceDomainEarly    = "domainEarly"
	SliceUT3Form        = "ut3Form"
	SliceUT4Form        = "ut4Form"
)

var (
	ErrToolNotFound = errors.New("tool not found")
	ErrForbidden    = errors.New("tool is not assigned to you")

	nowFunc = time.Now // mockable
)

type (
	// OverrideSource provides the manual tool statuses (toolID -> status).
	OverrideSource interface {
		Overrides(ctx context.Context) (map[string]string, error)
	}

	// Recorder receives derivation metrics.
	Recorder interface {
		ObserveDerivation(d time.Duration)
		SetToolCounts(active, stopped int)
	}

	// Snapshot is the derived state served to a viewer.
	Snapshot struct {
		evaluation.Result
		FetchedAt time.Time `json:"fetchedAt"`
		// Stale is set when the snapshot is the previous one kept after a failed cycle.
		Stale bool `json:"stale"`
	}

	// ToolDetail is everything known about a single tool.
	ToolDetail struct {
		Tool        evaluation.ToolRecord               `json:"tool"`
		Submissions map[string][]survey.Submission      `json:"submissions"`
		Answers     map[string][][]survey.LabeledAnswer `json:"answers"`
		Experts     []evaluation.Expert                 `json:"experts"`
		Degraded    []Degraded                          `json:"degraded"`
	}

	// ExpertList is the aggregated domain experts with the slices that could not be read.
	ExpertList struct {
		Experts  []evaluation.Expert `json:"experts"`
		Degraded []Degraded          `json:"degraded"`
	}

	Service struct {
		fetcher   Fetcher
		forms     core.SurveyForms
		overrides OverrideSource
		recorder  Recorder
		log       core.Logger

		mu        sync.RWMutex
		snapshots map[string]Snapshot
	}
)

type nopRecorder struct{}

func (nopRecorder) ObserveDerivation(time.Duration) {}
func (nopRecorder) SetToolCounts(int, int)          {}

// NewService returns the dashboard service. overrides and recorder may be nil.
func NewService(fetcher Fetcher, forms core.SurveyForms, overrides OverrideSource, recorder Recorder, logger core.Logger) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		fetcher:   fetcher,
		forms:     forms,
		overrides: overrides,
		recorder:  recorder,
		log:       logger,
		snapshots: make(map[string]Snapshot),
	}
}

func snapshotKey(sess session.Session) string {
	if sess.IsAdmin {
		return "admin"
	}
	return "coordinator:" + sess.Email
}

func (svc *Service) evaluationRequests() []request {
	return []request{
		{slice: SliceMain, formID: svc.forms.Main},
		{slice: SliceChange, formID: svc.forms.Change},
		{slice: SliceAdvancedUT3, formID: svc.forms.AdvancedUT3},
		{slice: SliceAdvancedUT4, formID: svc.forms.AdvancedUT4},
		{slice: SliceEarlyUT3, formID: svc.forms.EarlyUT3},
		{slice: SliceEarlyUT4, formID: svc.forms.EarlyUT4},
	}
}

func (svc *Service) loadOverrides(ctx context.Context) map[string]string {
	if svc.overrides == nil {
		return nil
	}
	ovr, err := svc.overrides.Overrides(ctx)
	if err != nil {
		svc.log.Warn("reading tool status overrides", "error", err)
		return nil
	}
	return ovr
}

func (svc *Service) derive(in evaluation.Input) (evaluation.Result, error) {
	start := nowFunc()
	res, err := evaluation.Derive(in)
	svc.recorder.ObserveDerivation(nowFunc().Sub(start))
	return res, err
}

// Previous returns the last good snapshot of the viewer.
func (svc *Service) Previous(sess session.Session) (Snapshot, bool) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	snap, ok := svc.snapshots[snapshotKey(sess)]
	return snap, ok
}

func (svc *Service) stale(sess session.Session) Snapshot {
	snap, _ := svc.Previous(sess)
	snap.Stale = true
	return snap
}

// Load runs a full fetch cycle for the viewer. Main, change and the four evaluator forms are
// all required: when one of them fails, or derivation fails, nothing is recomputed and the
// previous snapshot is returned (marked stale) along with the error.
func (svc *Service) Load(ctx context.Context, sess session.Session) (Snapshot, error) {
	results, err := fetchRequired(ctx, svc.fetcher, svc.evaluationRequests()...)
	if err != nil {
		svc.log.Error("dashboard fetch cycle failed", "error", err, sess)
		return svc.stale(sess), err
	}

	res, err := svc.derive(evaluation.Input{
		Main:    results[SliceMain].Subs,
		Changes: results[SliceChange].Subs,
		Evals: evaluation.EvaluationSets{
			AdvancedUT3: results[SliceAdvancedUT3].Subs,
			AdvancedUT4: results[SliceAdvancedUT4].Subs,
			EarlyUT3:    results[SliceEarlyUT3].Subs,
			EarlyUT4:    results[SliceEarlyUT4].Subs,
		},
		ViewerEmail:   sess.Email,
		ViewerIsAdmin: sess.IsAdmin,
		Overrides:     svc.loadOverrides(ctx),
	})
	if err != nil {
		svc.log.Error("dashboard derivation failed", "error", err, sess)
		return svc.stale(sess), err
	}

	if sess.IsAdmin {
		var active, stopped int
		for _, t := range res.Tools {
			if t.Status == evaluation.StatusStopped {
				stopped++
			} else {
				active++
			}
		}
		svc.recorder.SetToolCounts(active, stopped)
	}

	snap := Snapshot{Result: res, FetchedAt: nowFunc().UTC()}
	svc.mu.Lock()
	svc.snapshots[snapshotKey(sess)] = snap
	svc.mu.Unlock()
	return snap, nil
}

func evaluatorSlices(maturity string) (ut3, ut4 string) {
	switch maturity {
	case survey.MaturityAdvanced:
		return SliceAdvancedUT3, SliceAdvancedUT4
	case survey.MaturityEarly:
		return SliceEarlyUT3, SliceEarlyUT4
	}
	return "", ""
}

func (svc *Service) formID(slice string) string {
	switch slice {
	case SliceAdvancedUT3:
		return svc.forms.AdvancedUT3
	case SliceAdvancedUT4:
		return svc.forms.AdvancedUT4
	case SliceEarlyUT3:
		return svc.forms.EarlyUT3
	case SliceEarlyUT4:
		return svc.forms.EarlyUT4
	}
	return ""
}

// ToolDetail reads everything about one tool. The main and change forms are required (they decide
// who may see the tool); every other slice is optional and degrades to an empty list.
// Coordinators only see the tools currently assigned to them.
func (svc *Service) ToolDetail(ctx context.Context, sess session.Session, toolID string) (ToolDetail, error) {
	base, err := fetchRequired(ctx, svc.fetcher,
		request{slice: SliceMain, formID: svc.forms.Main},
		request{slice: SliceChange, formID: svc.forms.Change},
	)
	if err != nil {
		return ToolDetail{}, err
	}

	mainSubs := survey.FilterByToolID(base[SliceMain].Subs, toolID)
	if len(mainSubs) == 0 {
		return ToolDetail{}, ErrToolNotFound
	}
	reg, _ := survey.NormalizeTool(mainSubs[len(mainSubs)-1])

	reqs := []request{
		{slice: SliceInnovator1, formID: svc.forms.Innovator1},
		{slice: SliceInnovator2, formID: svc.forms.Innovator2},
		{slice: SliceInnovator3, formID: svc.forms.Innovator3},
	}
	switch reg.Maturity {
	case survey.MaturityAdvanced:
		reqs = append(reqs, request{slice: SliceDomainAdvanced, formID: svc.forms.DomainAdvanced})
	case survey.MaturityEarly:
		reqs = append(reqs, request{slice: SliceDomainEarly, formID: svc.forms.DomainEarly})
	}
	ut3, ut4 := evaluatorSlices(reg.Maturity)
	if ut3 != "" {
		reqs = append(reqs,
			request{slice: ut3, formID: svc.formID(ut3)},
			request{slice: ut4, formID: svc.formID(ut4)},
			request{slice: SliceUT3Form, formID: svc.formID(ut3), structure: true},
			request{slice: SliceUT4Form, formID: svc.formID(ut4), structure: true},
		)
	}
	results, degraded := fold(fetchOptional(ctx, svc.fetcher, reqs...))

	evals := evaluation.EvaluationSets{}
	switch reg.Maturity {
	case survey.MaturityAdvanced:
		evals.AdvancedUT3, evals.AdvancedUT4 = results[ut3].Subs, results[ut4].Subs
	case survey.MaturityEarly:
		evals.EarlyUT3, evals.EarlyUT4 = results[ut3].Subs, results[ut4].Subs
	}
	res, err := svc.derive(evaluation.Input{
		Main:          mainSubs,
		Changes:       base[SliceChange].Subs,
		Evals:         evals,
		ViewerIsAdmin: true,
		Overrides:     svc.loadOverrides(ctx),
	})
	if err != nil {
		return ToolDetail{}, err
	}
	if len(res.Tools) == 0 {
		return ToolDetail{}, ErrToolNotFound
	}
	tool := res.Tools[0]
	if !sess.IsAdmin && tool.Coordinator != sess.Email {
		return ToolDetail{}, ErrForbidden
	}

	detail := ToolDetail{
		Tool:        tool,
		Submissions: map[string][]survey.Submission{SliceMain: mainSubs},
		Answers:     make(map[string][][]survey.LabeledAnswer),
		Experts:     []evaluation.Expert{},
		Degraded:    degraded,
	}
	for _, slice := range []string{SliceInnovator1, SliceInnovator2, SliceInnovator3} {
		detail.Submissions[slice] = survey.FilterByToolID(results[slice].Subs, toolID)
	}
	if ut3 != "" {
		for slice, formSlice := range map[string]string{ut3: SliceUT3Form, ut4: SliceUT4Form} {
			subs := survey.FilterByToolID(results[slice].Subs, toolID)
			detail.Submissions[slice] = subs
			answers := make([][]survey.LabeledAnswer, 0, len(subs))
			for _, sub := range subs {
				answers = append(answers, results[formSlice].Form.LabelAnswers(sub))
			}
			detail.Answers[slice] = answers
		}
	}
	if r, ok := results[SliceDomainAdvanced]; ok {
		detail.Experts = expertsOf(evaluation.AggregateExperts(r.Subs, nil), toolID)
	}
	if r, ok := results[SliceDomainEarly]; ok {
		detail.Experts = expertsOf(evaluation.AggregateExperts(nil, r.Subs), toolID)
	}

	if len(degraded) > 0 {
		svc.log.Warn("tool detail degraded", "tool_id", toolID, "degraded", degraded)
	}
	return detail, nil
}

func expertsOf(experts []evaluation.Expert, toolID string) []evaluation.Expert {
	out := make([]evaluation.Expert, 0)
	for _, e := range experts {
		for _, id := range e.ToolIDs {
			if id == toolID {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Experts aggregates both domain expert forms. Each form is optional.
func (svc *Service) Experts(ctx context.Context) (ExpertList, error) {
	results, degraded := fold(fetchOptional(ctx, svc.fetcher,
		request{slice: SliceDomainAdvanced, formID: svc.forms.DomainAdvanced},
		request{slice: SliceDomainEarly, formID: svc.forms.DomainEarly},
	))
	if len(degraded) > 0 {
		svc.log.Warn("domain expert forms degraded", "degraded", degraded)
	}
	return ExpertList{
		Experts:  evaluation.AggregateExperts(results[SliceDomainAdvanced].Subs, results[SliceDomainEarly].Subs),
		Degraded: degraded,
	}, nil
}

// CoordinatorOf returns the current coordinator of a registered tool (evaluation.Unassigned if none).
func (svc *Service) CoordinatorOf(ctx context.Context, toolID string) (string, error) {
	base, err := fetchRequired(ctx, svc.fetcher,
		request{slice: SliceMain, formID: svc.forms.Main},
		request{slice: SliceChange, formID: svc.forms.Change},
	)
	if err != nil {
		return "", err
	}
	regs := survey.NormalizeTools(survey.FilterByToolID(base[SliceMain].Subs, toolID))
	if len(regs) == 0 {
		return "", ErrToolNotFound
	}
	a, ok := evaluation.ResolveCoordinators(regs, survey.NormalizeChanges(base[SliceChange].Subs))[toolID]
	if !ok {
		return evaluation.Unassigned, nil
	}
	return a.Email, nil
}

// FormLabels returns the question labels of a form.
func (svc *Service) FormLabels(ctx context.Context, formID string) (map[string]string, error) {
	form, err := svc.fetcher.FetchForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	return form.Labels(), nil
}
