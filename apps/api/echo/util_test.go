package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mdii/portal/apps/api/echo"
	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/dashboard"
	"github.com/mdii/portal/core/note"
	"github.com/mdii/portal/core/session"
	"github.com/mdii/portal/core/survey"
	"github.com/mdii/portal/core/task"
	"github.com/mdii/portal/core/toolstatus"
	"github.com/mdii/portal/core/translation"
	"github.com/mdii/portal/services/metrics"
	surveysvc "github.com/mdii/portal/services/survey"
	"github.com/mdii/portal/storage/blob/inmem"
	"github.com/mdii/portal/storage/csvdb"
)

const (
	adminEmail = "admin@x.com"
	coordB     = "b@x.com"
	coordC     = "c@x.com"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

var testForms = core.SurveyForms{
	Main: "main", Change: "change",
	AdvancedUT3: "a3", AdvancedUT4: "a4", EarlyUT3: "e3", EarlyUT4: "e4",
	Innovator1: "i1", Innovator2: "i2", Innovator3: "i3",
	DomainAdvanced: "da", DomainEarly: "de",
}

type fakeFetcher struct {
	mu   sync.Mutex
	subs map[string][]survey.Submission
	fail map[string]bool
}

func (f *fakeFetcher) FetchSubmissions(_ context.Context, formID string) ([]survey.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[formID] {
		return nil, core.NewFetchError(formID, http.StatusServiceUnavailable, nil)
	}
	return f.subs[formID], nil
}

func (f *fakeFetcher) FetchForm(_ context.Context, formID string) (survey.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[formID] {
		return survey.Form{}, core.NewFetchError(formID, http.StatusNotFound, nil)
	}
	return survey.Form{
		UID: formID,
		Content: survey.FormContent{
			Survey: []survey.Question{{Name: "Q_1", Type: "text", Label: []string{"Works offline?"}}},
		},
	}, nil
}

func (f *fakeFetcher) setFail(formID string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[formID] = fail
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{
		fail: make(map[string]bool),
		subs: map[string][]survey.Submission{
			"main": {
				{"ID": "T1", "tool_name": "Soil App", "coordinator_email": "a@x.com", "tool_maturity": "advanced", "_submission_time": "2024-01-01"},
				{"ID": "T2", "tool_name": "Market", "coordinator_email": coordC, "tool_maturity": "early", "_submission_time": "2024-01-02"},
			},
			"change": {{"tool_id": "T1", "Email_of_the_Coordinator": coordB, "_submission_time": "2024-02-01"}},
			"a3":     {{"group_intro/Q_13110000": "T1", "Q_1": "yes"}},
			"a4":     {},
			"e3":     {{"Q_13110000": "T2"}},
			"e4":     {{"Q_13110000": "T2"}},
			"da": {
				{"Q_21100000": "Ada", "Q_21200000": "CGIAR", "Q_22300000": "gender data", "group_intro/Q_13110000": "T1"},
			},
		},
	}
}

type fakeTrigger struct {
	mu       sync.Mutex
	payloads []interface{}
	err      error
}

func (f *fakeTrigger) Trigger(_ context.Context, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type testEnv struct {
	app      *Server
	auth     *Auth
	conf     *core.Config
	fetcher  *fakeFetcher
	trigger  *fakeTrigger
	upstream *http.ServeMux
	server   *httptest.Server
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Server.DisableReqLogs = true
	conf.Access = core.AccessConfig{
		Admins:       []string{adminEmail},
		Coordinators: []string{"a@x.com", coordB, coordC},
	}

	env := &testEnv{
		conf:     conf,
		fetcher:  newFetcher(),
		trigger:  &fakeTrigger{},
		upstream: http.NewServeMux(),
	}

	upstream := httptest.NewServer(env.upstream)
	t.Cleanup(upstream.Close)
	env.server = upstream
	conf.Survey.BaseURL = upstream.URL
	conf.Survey.Token = "server-token"

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	logger := core.NewNopLogger()
	m := metrics.New()

	db := csvdb.Open(inmem.Open(), conf.Blob.Keys)
	// coordinator lookups do not need the manual statuses
	resolver := dashboard.NewService(env.fetcher, testForms, nil, nil, logger)
	statusSvc := toolstatus.NewService(csvdb.NewToolStatusRepository(db), resolver)
	dashSvc := dashboard.NewService(env.fetcher, testForms, statusSvc, m, logger)

	env.auth = NewAuth(conf)
	env.app = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		SessionSvc:     session.NewService(conf.Access),
		DashboardSvc:   dashSvc,
		TaskSvc:        task.NewService(csvdb.NewTaskRepository(db)),
		NoteSvc:        note.NewService(csvdb.NewNoteRepository(db)),
		ToolStatusSvc:  statusSvc,
		TranslationSvc: translation.NewService(env.trigger),
		Upstream:       surveysvc.NewClient(conf.Survey, upstream.Client(), m),
		Metrics:        m,
	})
	return env
}

func (env *testEnv) token(t *testing.T, email string, isAdmin bool) string {
	t.Helper()
	token, err := env.auth.GenerateToken(env.auth.SessionClaims(session.Session{Email: email, IsAdmin: isAdmin}))
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(t *testing.T, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(method, path, token, data...)
	env.app.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
