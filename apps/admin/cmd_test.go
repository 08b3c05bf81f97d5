package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdii/portal/core/dashboard"
	"github.com/mdii/portal/core/evaluation"
	"github.com/mdii/portal/core/session"
	"github.com/mdii/portal/core/task"
)

type fakeDashboard struct {
	viewer session.Session
	err    error
}

func (f *fakeDashboard) Load(_ context.Context, sess session.Session) (dashboard.Snapshot, error) {
	f.viewer = sess
	if f.err != nil {
		return dashboard.Snapshot{}, f.err
	}
	snap := dashboard.Snapshot{}
	snap.Stats = evaluation.Stats{TotalTools: 4, AppointedTools: 3, EvaluatedTools: 1, OngoingTools: 2, CompletionRate: 25}
	snap.Activities = []evaluation.Activity{
		{ID: "T1", Tool: "Soil App", Status: evaluation.StatusStopped, Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Coordinator: "b@x.com"},
	}
	return snap, nil
}

func (f *fakeDashboard) Experts(context.Context) (dashboard.ExpertList, error) {
	return dashboard.ExpertList{
		Experts:  []evaluation.Expert{{Name: "Ada", Organization: "CGIAR", Domains: []string{"gender"}, ToolIDs: []string{"T1"}}},
		Degraded: []dashboard.Degraded{{Slice: dashboard.SliceDomainEarly, Error: "upstream status 503"}},
	}, nil
}

type fakeTasks struct {
	filter task.QueryFilter
}

func (f *fakeTasks) QueryAll(_ context.Context, filter task.QueryFilter) ([]task.Task, error) {
	f.filter = filter
	return []task.Task{{ID: "t1", ToolID: filter.ToolID, Title: "Call evaluators", Status: "open"}}, nil
}

type fakePinger struct {
	token string
	err   error
}

func (f *fakePinger) Ping(_ context.Context, token string) error {
	f.token = token
	return f.err
}

type cliEnv struct {
	cli    *commandLine
	dash   *fakeDashboard
	tasks  *fakeTasks
	survey *fakePinger
	out    *bytes.Buffer
}

func setup(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{dash: &fakeDashboard{}, tasks: &fakeTasks{}, survey: &fakePinger{}, out: &bytes.Buffer{}}
	env.cli = &commandLine{dashSvc: env.dash, taskSvc: env.tasks, survey: env.survey, out: env.out}
	return env
}

func (env *cliEnv) run(args ...string) error {
	env.out.Reset()
	return env.cli.run(append([]string{"admin"}, args...))
}

func Test_commandLine_help(t *testing.T) {
	env := setup(t)

	assert.Equal(t, errHelp, env.run())
	assert.Contains(t, env.out.String(), "stats")

	err := env.run("lol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "lol"`)
}

func Test_commandLine_stats(t *testing.T) {
	env := setup(t)

	require.NoError(t, env.run("stats"))
	assert.Equal(t, session.Session{IsAdmin: true}, env.dash.viewer)

	var stats evaluation.Stats
	require.NoError(t, json.NewDecoder(bytes.NewReader(env.out.Bytes())).Decode(&stats))
	assert.Equal(t, 25, stats.CompletionRate)
	assert.Contains(t, env.out.String(), "2024-02-01T00:00:00Z\tT1\tSoil App\tstopped\tb@x.com\n")

	require.NoError(t, env.run("stats", "--viewer", "b@x.com"))
	assert.Equal(t, session.Session{Email: "b@x.com"}, env.dash.viewer)

	require.NoError(t, env.run("stats", "--viewer", "b@x.com", "--admin"))
	assert.True(t, env.dash.viewer.IsAdmin)

	env.dash.err = errors.New("fetching main form: upstream status 503")
	err := env.run("stats")
	require.Error(t, err)
	assert.Equal(t, "loading dashboard: fetching main form: upstream status 503", err.Error())
}

func Test_commandLine_experts(t *testing.T) {
	env := setup(t)

	require.NoError(t, env.run("experts"))
	out := env.out.String()
	assert.Contains(t, out, "warning: domainEarly unavailable: upstream status 503")
	assert.Contains(t, out, `"organization": "CGIAR"`)
}

func Test_commandLine_tasks(t *testing.T) {
	env := setup(t)

	require.NoError(t, env.run("tasks", "--tool", " T1 ", "--status", "OPEN"))
	assert.Equal(t, task.QueryFilter{ToolID: "T1", Status: "open"}, env.tasks.filter)

	var tasks []task.Task
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "T1", tasks[0].ToolID)
}

func Test_commandLine_ping(t *testing.T) {
	env := setup(t)
	defer func(f func(int) ([]byte, error)) { readPasswordFunc = f }(readPasswordFunc)

	prompted := ""
	readPasswordFunc = func(int) ([]byte, error) { return []byte(prompted), nil }

	tests := []struct {
		name            string
		args            []string
		tokenConfigured bool
		prompted        string
		pingErr         error
		wantToken       string
		wantErr         string
		helpErr         bool
	}{
		{name: "configured token", args: []string{"ping"}, tokenConfigured: true, wantToken: ""},
		{name: "token flag", args: []string{"ping", "--token", "abc"}, wantToken: "abc"},
		{name: "prompted token", args: []string{"ping"}, prompted: "secret", wantToken: "secret"},
		{name: "empty prompt", args: []string{"ping"}, helpErr: true},
		{
			name: "rejected", args: []string{"ping", "--token", "bad"}, pingErr: errors.New("survey platform answered 401 Unauthorized"),
			wantToken: "bad", wantErr: "survey platform answered 401 Unauthorized",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompted = tt.prompted
			env.cli.tokenConfigured = tt.tokenConfigured
			env.survey.err = tt.pingErr
			env.survey.token = "unset"

			err := env.run(tt.args...)
			switch {
			case tt.helpErr:
				assert.Equal(t, errHelp, err)
				assert.Equal(t, "unset", env.survey.token)
			case tt.wantErr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				assert.Equal(t, tt.wantToken, env.survey.token)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantToken, env.survey.token)
				assert.Contains(t, env.out.String(), "ok")
			}
		})
	}
}
