package echoapi_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdii/portal/core/translation"
)

func Test_translationApi(t *testing.T) {
	env := setup(t)
	token := env.token(t, coordB, false)

	env.run(t, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/translations",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/translations", token: token,
			body: []byte(`{"toolId": "T1", "sourceLanguage": "en", "targetLanguages": ["xx"]}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"toolName": "this field is required", "formName": "this field is required", "targetLanguages[0]": "unsupported language"}`),
		},
		{
			name: "target equals source", method: http.MethodPost, path: "/v1/translations", token: token,
			body:     []byte(`{"toolId": "T1", "toolName": "Soil App", "formName": "UT3", "sourceLanguage": "en", "targetLanguages": ["FR", "en"]}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"targetLanguages": "target languages must differ from the source language"}`),
		},
	})
	assert.Empty(t, env.trigger.payloads, "invalid requests must not reach the flow")

	body := []byte(`{"toolId": "T1", "toolName": "Soil App", "formName": "UT3", "sourceLanguage": "en", "targetLanguages": ["FR", "sw"]}`)

	t.Run("accepted", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/translations", token, body)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		require.Len(t, env.trigger.payloads, 1)
		p, ok := env.trigger.payloads[0].(translation.Payload)
		require.True(t, ok)
		assert.Equal(t, "translation_request", p.Type)
		assert.Equal(t, []string{"fr", "sw"}, p.TargetLanguages)
		assert.Equal(t, coordB, p.RequesterEmail)
	})

	t.Run("flow failure", func(t *testing.T) {
		env.trigger.err = errors.New("flow down")
		defer func() { env.trigger.err = nil }()

		rec := env.do(t, http.MethodPost, "/v1/translations", token, body)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadGateway,
			wantData: marchallObj(t, httpErr{Error: "translation request could not be sent"}),
		}, rec)
	})
}
