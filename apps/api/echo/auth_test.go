package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mdii/portal/apps/api/echo"
	"github.com/mdii/portal/core/session"
)

func Test_sessionApi_login(t *testing.T) {
	env := setup(t)

	tests := []httpTest{
		{
			name: "email required", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "this field is required"}`),
		},
		{
			name: "invalid email", body: []byte(`{"email": "nope"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "email must be a valid email address"}`),
		},
		{
			name: "unknown email", body: []byte(`{"email": "z@x.com"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "email not authorized"}`),
		},
		{
			name: "comparison is case sensitive", body: []byte(`{"email": "B@x.com"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "email not authorized"}`),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/session"
	}
	env.run(t, tests)

	t.Run("coordinator", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/session", "", []byte(`{"email": "  b@x.com "}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, session.Session{Email: coordB}, resp.Session)

		// the token opens the session
		rec = env.do(t, http.MethodGet, "/v1/session", resp.Token)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"email": "b@x.com", "is_admin": false}`)}, rec)
	})

	t.Run("admin", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/session", "", []byte(`{"email": "admin@x.com"}`))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp LoginResponse
		decode(t, rec, &resp)
		assert.True(t, resp.Session.IsAdmin)
	})
}

func Test_sessionApi_retrieveAndLogout(t *testing.T) {
	env := setup(t)
	token := env.token(t, coordB, false)

	env.run(t, []httpTest{
		{name: "Auth required", path: "/v1/session", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "bad token", path: "/v1/session", token: "not.a.token", wantCode: http.StatusUnauthorized},
		{name: "session", path: "/v1/session", token: token, wantData: []byte(`{"email": "b@x.com", "is_admin": false}`)},
		{name: "logout", method: http.MethodDelete, path: "/v1/session", token: token, wantCode: http.StatusNoContent},
	})
}

func Test_sessionApi_refresh(t *testing.T) {
	env := setup(t)

	claims := env.auth.SessionClaims(session.Session{Email: coordB}, time.Now().Add(-2*env.conf.SessionRefreshDelta).Unix())
	unrefreshable, err := env.auth.GenerateToken(claims)
	require.NoError(t, err)

	env.run(t, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/session/refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Refresh period expired", method: http.MethodPost, path: "/v1/session/refresh", token: unrefreshable,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{
			name: "Removed from the allowlists", method: http.MethodPost, path: "/v1/session/refresh", token: env.token(t, "gone@x.com", false),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})

	t.Run("Token refreshed with current role", func(t *testing.T) {
		// admin flag in the old token is stale: the allowlist wins
		rec := env.do(t, http.MethodPost, "/v1/session/refresh", env.token(t, coordB, true))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, session.Session{Email: coordB}, resp.Session)
	})
}

func TestServer_misc(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to MDII Portal API!", rec.Body.String())

	env.run(t, []httpTest{
		{name: "health", path: "/health", wantData: []byte(`{"status": "ok"}`)},
		{name: "trailing slash", path: "/health/", wantData: []byte(`{"status": "ok"}`)},
	})

	rec = env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
