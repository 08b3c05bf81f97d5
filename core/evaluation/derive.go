// Package evaluation derives the per-tool evaluation state of the MDII program from raw survey submissions.
//
// Derive is a pure batch reducer: it never fetches anything and never mutates its input.
// Callers fetch every form first and only call it when all required fetches succeeded.
package evaluation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/mdii/portal/core/survey"
)

// Tool statuses.
const (
	StatusActive  = "active"
	StatusStopped = "stopped"
)

// Unassigned is reported as the coordinator of tools nobody was appointed to.
const Unassigned = "Unassigned"

// MaxActivities is the length of the recent activity feed.
const MaxActivities = 3

var (
	ErrProcessing = errors.New("error processing survey data")

	nowFunc = time.Now // mockable
)

type (
	// EvaluationSets are the four evaluator form result sets: maturity level x evaluator type.
	EvaluationSets struct {
		AdvancedUT3 []survey.Submission
		AdvancedUT4 []survey.Submission
		EarlyUT3    []survey.Submission
		EarlyUT4    []survey.Submission
	}

	Input struct {
		Main    []survey.Submission
		Changes []survey.Submission
		Evals   EvaluationSets

		// ViewerEmail is compared case-sensitively with coordinator emails.
		ViewerEmail   string
		ViewerIsAdmin bool

		// Overrides are manual statuses from the tool status sheet (toolID -> status).
		Overrides map[string]string
	}

	ToolRecord struct {
		ID             string    `json:"id"`
		Name           string    `json:"name"`
		Status         string    `json:"status"`
		UT3Submissions int       `json:"ut3Submissions"`
		UT4Submissions int       `json:"ut4Submissions"`
		Coordinator    string    `json:"coordinator"`
		MaturityLevel  *string   `json:"maturityLevel"`
		DateSubmitted  time.Time `json:"dateSubmitted"`
		LastActivity   time.Time `json:"lastActivity"`
	}

	Activity struct {
		ID          string    `json:"id"`
		Tool        string    `json:"tool"`
		Status      string    `json:"status"`
		Date        time.Time `json:"date"`
		Coordinator string    `json:"coordinator"`
	}

	Stats struct {
		TotalTools     int `json:"totalTools"`
		AppointedTools int `json:"appointedTools"`
		EvaluatedTools int `json:"evaluatedTools"`
		OngoingTools   int `json:"ongoingTools"`
		CompletionRate int `json:"completionRate"`
	}

	Result struct {
		Tools       []ToolRecord `json:"tools"`
		Activities  []Activity   `json:"activities"`
		Stats       Stats        `json:"stats"`
		GeneratedAt time.Time    `json:"generatedAt"`
	}

	// Assignment is the currently effective coordinator of a tool.
	Assignment struct {
		Email string
		At    time.Time
	}

	// Matches are the evaluator submissions found for one tool in one result set.
	Matches struct {
		Count  int
		Latest time.Time
	}
)

// MaturityOf returns the record's maturity level ("" when unknown).
func (tr ToolRecord) MaturityOf() string {
	if tr.MaturityLevel == nil {
		return ""
	}
	return *tr.MaturityLevel
}

// IsAssigned reports whether a coordinator was ever appointed to the tool.
func (tr ToolRecord) IsAssigned() bool {
	return tr.Coordinator != Unassigned
}

// ResolveCoordinators computes the current coordinator of every tool: registrations seed the map,
// then change events are applied in ascending submission time so that the latest event wins
// whatever their order in changes. Events with equal timestamps keep their input order.
func ResolveCoordinators(tools []survey.ToolRegistration, changes []survey.CoordinatorChange) map[string]Assignment {
	current := make(map[string]Assignment, len(tools))
	for _, t := range tools {
		if t.CoordinatorEmail == "" {
			continue
		}
		current[t.ToolID] = Assignment{Email: t.CoordinatorEmail, At: t.SubmittedAt}
	}

	sorted := make([]survey.CoordinatorChange, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SubmittedAt.Before(sorted[j].SubmittedAt) })

	for _, c := range sorted {
		current[c.ToolID] = Assignment{Email: c.Email, At: c.SubmittedAt}
	}
	return current
}

// MatchEvaluations indexes evaluator submissions by tool id.
func MatchEvaluations(evals []survey.Evaluation) map[string]Matches {
	out := make(map[string]Matches)
	for _, e := range evals {
		m := out[e.ToolID]
		m.Count++
		if e.SubmittedAt.After(m.Latest) {
			m.Latest = e.SubmittedAt
		}
		out[e.ToolID] = m
	}
	return out
}

// ClassifyStatus applies the stop rule: a tool is stopped once both evaluator types answered.
func ClassifyStatus(ut3, ut4 int) string {
	if ut3 > 0 && ut4 > 0 {
		return StatusStopped
	}
	return StatusActive
}

type matchSets struct {
	ut3, ut4 map[string]Matches
}

func latest(ts ...time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.After(out) {
			out = t
		}
	}
	return out
}

// Derive computes tool records, stats and the recent activity feed for the viewer.
// A panic caused by malformed data is reported as ErrProcessing.
func Derive(in Input) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = errors.Wrap(ErrProcessing, fmt.Sprint(r))
		}
	}()

	regs := survey.NormalizeTools(in.Main)
	assignments := ResolveCoordinators(regs, survey.NormalizeChanges(in.Changes))
	sets := map[string]matchSets{
		survey.MaturityAdvanced: {
			ut3: MatchEvaluations(survey.NormalizeEvaluations(in.Evals.AdvancedUT3)),
			ut4: MatchEvaluations(survey.NormalizeEvaluations(in.Evals.AdvancedUT4)),
		},
		survey.MaturityEarly: {
			ut3: MatchEvaluations(survey.NormalizeEvaluations(in.Evals.EarlyUT3)),
			ut4: MatchEvaluations(survey.NormalizeEvaluations(in.Evals.EarlyUT4)),
		},
	}

	// later registrations of the same tool overwrite earlier ones; the first one fixes the order
	order := make([]string, 0, len(regs))
	byID := make(map[string]survey.ToolRegistration, len(regs))
	for _, r := range regs {
		if _, ok := byID[r.ToolID]; !ok {
			order = append(order, r.ToolID)
		}
		byID[r.ToolID] = r
	}

	all := make([]ToolRecord, 0, len(order))
	for _, id := range order {
		all = append(all, buildRecord(byID[id], assignments, sets, in.Overrides))
	}

	tools := all
	if !in.ViewerIsAdmin {
		tools = make([]ToolRecord, 0)
		for _, t := range all {
			if t.Coordinator == in.ViewerEmail {
				tools = append(tools, t)
			}
		}
	}

	var stats Stats
	if in.ViewerIsAdmin {
		stats = adminStats(all, len(in.Main))
	} else {
		stats = coordinatorStats(tools)
	}

	res = Result{
		Tools:       sortByActivity(tools),
		Activities:  recentActivities(tools, assignments, in.ViewerIsAdmin),
		Stats:       stats,
		GeneratedAt: nowFunc().UTC(),
	}
	return res, nil
}

func buildRecord(reg survey.ToolRegistration, assignments map[string]Assignment, sets map[string]matchSets, overrides map[string]string) ToolRecord {
	rec := ToolRecord{
		ID:            reg.ToolID,
		Name:          reg.Name,
		Coordinator:   Unassigned,
		DateSubmitted: reg.SubmittedAt,
	}
	if a, ok := assignments[reg.ToolID]; ok {
		rec.Coordinator = a.Email
		rec.DateSubmitted = a.At
	}
	if reg.Maturity != "" {
		m := reg.Maturity
		rec.MaturityLevel = &m
	}

	// unknown maturity: no set applies, counts stay 0
	set := sets[reg.Maturity]
	ut3 := set.ut3[reg.ToolID]
	ut4 := set.ut4[reg.ToolID]

	rec.UT3Submissions = ut3.Count
	rec.UT4Submissions = ut4.Count
	rec.LastActivity = latest(rec.DateSubmitted, ut3.Latest, ut4.Latest)
	rec.Status = ClassifyStatus(ut3.Count, ut4.Count)
	if overrides[reg.ToolID] == StatusStopped {
		rec.Status = StatusStopped
	}
	return rec
}

func percent(n, d int) int {
	if d == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(d) * 100))
}

func adminStats(tools []ToolRecord, mainSubs int) Stats {
	st := Stats{TotalTools: len(tools)}
	for _, t := range tools {
		if t.Status == StatusStopped {
			st.EvaluatedTools++
		}
		if t.IsAssigned() {
			st.AppointedTools++
			if t.Status == StatusActive {
				st.OngoingTools++
			}
		}
	}
	st.CompletionRate = percent(st.EvaluatedTools, mainSubs)
	return st
}

// coordinatorStats expects tools already filtered to the viewer.
func coordinatorStats(tools []ToolRecord) Stats {
	st := Stats{TotalTools: len(tools), AppointedTools: len(tools)}
	for _, t := range tools {
		if t.Status == StatusStopped {
			st.EvaluatedTools++
		} else {
			st.OngoingTools++
		}
	}
	st.CompletionRate = percent(st.EvaluatedTools, st.AppointedTools)
	return st
}

func sortByActivity(tools []ToolRecord) []ToolRecord {
	out := make([]ToolRecord, len(tools))
	copy(out, tools)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// recentActivities ranks tools by appointment time (coordinator view) or by
// max(appointment, latest evaluation) (admin view) and keeps the top MaxActivities.
func recentActivities(tools []ToolRecord, assignments map[string]Assignment, admin bool) []Activity {
	acts := make([]Activity, 0, len(tools))
	for _, t := range tools {
		date := t.DateSubmitted
		if a, ok := assignments[t.ID]; ok {
			date = a.At
		}
		if admin {
			date = latest(date, t.LastActivity)
		}
		acts = append(acts, Activity{
			ID:          t.ID,
			Tool:        t.Name,
			Status:      t.Status,
			Date:        date,
			Coordinator: t.Coordinator,
		})
	}
	sort.SliceStable(acts, func(i, j int) bool {
		if !acts[i].Date.Equal(acts[j].Date) {
			return acts[i].Date.After(acts[j].Date)
		}
		return acts[i].ID < acts[j].ID
	})
	if len(acts) > MaxActivities {
		acts = acts[:MaxActivities]
	}
	return acts
}
