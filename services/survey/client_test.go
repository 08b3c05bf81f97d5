package surveysvc

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdii/portal/core"
)

type fetchLog struct {
	forms []string
	errs  []error
}

func (f *fetchLog) ObserveFetch(form string, err error) {
	f.forms = append(f.forms, form)
	f.errs = append(f.errs, err)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *fetchLog) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conf := core.NewTestConfig().Survey
	conf.BaseURL = srv.URL
	conf.Token = "secret"
	conf.RequestsPerSecond = 0
	obs := &fetchLog{}
	return NewClient(conf, srv.Client(), obs), obs
}

func TestClient_FetchSubmissions(t *testing.T) {
	var srvURL string
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v2/assets/aMain/data.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("start") == "" {
			next := fmt.Sprintf("%s/api/v2/assets/aMain/data.json?start=1", srvURL)
			fmt.Fprintf(w, `{"count":2,"next":%q,"results":[{"tool_id":"T1","_id":1}]}`, next)
			return
		}
		fmt.Fprint(w, `{"count":2,"next":null,"results":[{"tool_id":"T2","_id":2}]}`)
	})
	srvURL = c.baseURL

	subs, err := c.FetchSubmissions(context.Background(), "aMain")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "T1", subs[0].String("tool_id"))
	assert.Equal(t, "2", subs[1].ID())
	assert.Equal(t, []string{"aMain"}, obs.forms)
	assert.Nil(t, obs.errs[0])
}

func TestClient_FetchSubmissions_pageLimit(t *testing.T) {
	var srvURL string
	var pages int32
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&pages, 1)
		w.Header().Set("Content-Type", "application/json")
		next := fmt.Sprintf("%s/api/v2/assets/aMain/data.json?start=%d", srvURL, n)
		fmt.Fprintf(w, `{"count":150,"next":%q,"results":[{"tool_id":"T%d"}]}`, next, n)
	})
	srvURL = c.baseURL

	subs, err := c.FetchSubmissions(context.Background(), "aMain")
	require.Error(t, err)
	assert.Nil(t, subs)
	assert.Equal(t, int32(maxPages), atomic.LoadInt32(&pages))
	fe, ok := errors.Cause(err).(*core.FetchError)
	require.True(t, ok)
	assert.Equal(t, "fetching aMain form: pagination limit reached", fe.Error())
	assert.Error(t, obs.errs[0])
}

func TestClient_FetchSubmissions_foreignNext(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("token sent to a foreign host: %q", r.Header.Get("Authorization"))
	}))
	defer other.Close()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"count":2,"next":%q,"results":[{"tool_id":"T1"}]}`, other.URL+"/api/v2/assets/aMain/data.json?start=1")
	})

	subs, err := c.FetchSubmissions(context.Background(), "aMain")
	require.Error(t, err)
	assert.Nil(t, subs)
	assert.True(t, core.IsFetchError(err))
}

func TestClient_FetchSubmissions_upstreamError(t *testing.T) {
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	subs, err := c.FetchSubmissions(context.Background(), "aMain")
	require.Error(t, err)
	assert.Nil(t, subs)
	fe, ok := errors.Cause(err).(*core.FetchError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, fe.Status)
	assert.Error(t, obs.errs[0])
}

func TestClient_FetchSubmissions_networkError(t *testing.T) {
	conf := core.NewTestConfig().Survey
	conf.BaseURL = "http://127.0.0.1:1"
	c := NewClient(conf, nil, nil)

	_, err := c.FetchSubmissions(context.Background(), "aMain")
	require.Error(t, err)
	fe, ok := errors.Cause(err).(*core.FetchError)
	require.True(t, ok)
	assert.Equal(t, 0, fe.Status)
}

func TestClient_FetchForm(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/assets/aMain.json", r.URL.Path)
		fmt.Fprint(w, `{"uid":"aMain","name":"Main","content":{"survey":[{"name":"tool_name","type":"text","label":["Tool name"]}],"choices":[]}}`)
	})

	form, err := c.FetchForm(context.Background(), "aMain")
	require.NoError(t, err)
	assert.Equal(t, "Main", form.Name)
	assert.Equal(t, "Tool name", form.Labels()["tool_name"])
}

func TestClient_Forward(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "%s %s?%s [%s] %s", r.Method, r.URL.Path, r.URL.RawQuery, body, r.Header.Get("Authorization"))
	})

	tests := []struct {
		method string
		want   string
	}{
		{http.MethodPost, "POST /api/v2/assets/x/data.json?format=json [payload] Token secret"},
		{http.MethodGet, "GET /api/v2/assets/x/data.json?format=json [] Token secret"},
	}
	for _, tc := range tests {
		t.Run(tc.method, func(t *testing.T) {
			resp, err := c.Forward(context.Background(), tc.method, "assets/x/data.json", "format=json", strings.NewReader("payload"), "text/plain")
			require.NoError(t, err)
			//goland:noinspection GoUnhandledErrorResult
			defer resp.Body.Close()
			got, _ := ioutil.ReadAll(resp.Body)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestClient_Ping(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token good" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"results":[]}`)
	})

	assert.NoError(t, c.Ping(context.Background(), "good"))
	assert.Error(t, c.Ping(context.Background(), "bad"))
}
