// Package webhook triggers the external automation flows.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/pkg/errors"

	"github.com/mdii/portal/core"
)

// ErrNotConfigured is returned when no URL is set for the flow.
var ErrNotConfigured = errors.New("webhook url is not configured")

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// UpstreamError reports a non-2xx answer of the flow.
type UpstreamError struct {
	Status int
	Body   string
}

func (e UpstreamError) Error() string {
	return "webhook answered " + http.StatusText(e.Status) + ": " + e.Body
}

// Client posts JSON payloads to a single flow URL.
type Client struct {
	url  string
	http HTTPClient
}

// NewTranslationClient returns the client of the translation flow. client may be nil.
func NewTranslationClient(conf core.WebhookConfig, client HTTPClient) *Client {
	if client == nil {
		client = &http.Client{Timeout: conf.Timeout}
	}
	return &Client{url: conf.TranslationURL, http: client}
}

// Trigger posts payload as JSON. Any 2xx is a success; the response body is ignored.
func (c *Client) Trigger(ctx context.Context, payload interface{}) error {
	if c.url == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding webhook payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "creating webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling webhook")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
		return &UpstreamError{Status: resp.StatusCode, Body: string(msg)}
	}
	return nil
}

// IsUpstreamError reports whether the root cause of err is an *UpstreamError.
func IsUpstreamError(err error) bool {
	_, ok := errors.Cause(err).(*UpstreamError)
	return ok
}
