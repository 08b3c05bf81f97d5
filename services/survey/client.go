// Package surveysvc is the survey platform (KoboToolbox v2 API) client.
package surveysvc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/survey"
)

// maxPages stops runaway `next` chains.
const maxPages = 100

type (
	HTTPClient interface {
		Do(req *http.Request) (*http.Response, error)
	}

	// FetchObserver is told about every form read.
	FetchObserver interface {
		ObserveFetch(form string, err error)
	}

	Client struct {
		http       HTTPClient
		baseURL    string
		token      string
		authScheme string
		limiter    *rate.Limiter
		observer   FetchObserver
	}
)

type nopObserver struct{}

func (nopObserver) ObserveFetch(string, error) {}

// NewClient returns a client for conf. Outbound requests are rate limited to
// conf.RequestsPerSecond (with conf.Burst); observer may be nil.
func NewClient(conf core.SurveyConfig, client HTTPClient, observer FetchObserver) *Client {
	if client == nil {
		client = &http.Client{Timeout: conf.Timeout}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	limit := rate.Inf
	if conf.RequestsPerSecond > 0 {
		limit = rate.Limit(conf.RequestsPerSecond)
	}
	burst := conf.Burst
	if burst < 1 {
		burst = 1
	}
	scheme := conf.AuthScheme
	if scheme == "" {
		scheme = "Token"
	}
	return &Client{
		http:       client,
		baseURL:    strings.TrimRight(conf.BaseURL, "/"),
		token:      conf.Token,
		authScheme: scheme,
		limiter:    rate.NewLimiter(limit, burst),
		observer:   observer,
	}
}

// APIURL returns the absolute URL of an API v2 path (`assets/x/data.json`).
func (c *Client) APIURL(path string) string {
	return c.baseURL + "/api/v2/" + strings.TrimLeft(path, "/")
}

// Authorization is the header value injected in upstream requests.
func (c *Client) Authorization() string {
	return c.authorization(c.token)
}

func (c *Client) authorization(token string) string {
	return c.authScheme + " " + token
}

// Do sends req to the platform with the server-held token, once the rate limiter allows it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, errors.Wrap(err, "waiting for rate limiter")
	}
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", c.Authorization())
	}
	return c.http.Do(req)
}

func (c *Client) getJSON(ctx context.Context, form, rawURL string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return core.NewFetchError(form, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return core.NewFetchError(form, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return core.NewFetchError(form, resp.StatusCode, nil)
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return core.NewFetchError(form, 0, errors.Wrap(err, "decoding response"))
	}
	return nil
}

// FetchSubmissions returns every submission of a form, following pagination. Pages past maxPages
// and `next` links leaving the platform host fail the fetch instead of returning partial data.
func (c *Client) FetchSubmissions(ctx context.Context, formID string) (subs []survey.Submission, err error) {
	defer func() { c.observer.ObserveFetch(formID, err) }()

	subs = make([]survey.Submission, 0)
	next := c.APIURL("assets/" + url.PathEscape(formID) + "/data.json")
	for page := 0; next != ""; page++ {
		if page == maxPages {
			return nil, core.NewFetchError(formID, 0, errors.New("pagination limit reached"))
		}
		if !c.sameOrigin(next) {
			return nil, core.NewFetchError(formID, 0, errors.Errorf("next page outside the platform: %s", next))
		}
		var data survey.Data
		if err := c.getJSON(ctx, formID, next, &data); err != nil {
			return nil, err
		}
		subs = append(subs, data.Results...)
		next = ""
		if data.Next != nil {
			next = *data.Next
		}
	}
	return subs, nil
}

// sameOrigin reports whether rawURL has the scheme and host of the platform base URL.
func (c *Client) sameOrigin(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

// FetchForm returns the structure of a form.
func (c *Client) FetchForm(ctx context.Context, formID string) (form survey.Form, err error) {
	defer func() { c.observer.ObserveFetch(formID+".json", err) }()

	err = c.getJSON(ctx, formID, c.APIURL("assets/"+url.PathEscape(formID)+".json"), &form)
	return form, err
}

// Ping checks that the platform accepts token ("" uses the configured one).
func (c *Client) Ping(ctx context.Context, token string) error {
	if token == "" {
		token = c.token
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL("assets.json?limit=1"), nil)
	if err != nil {
		return errors.Wrap(err, "creating ping request")
	}
	req.Header.Set("Authorization", c.authorization(token))

	resp, err := c.Do(req)
	if err != nil {
		return errors.Wrap(err, "pinging survey platform")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("survey platform answered %s", resp.Status)
	}
	return nil
}

// Forward relays a request to `<base>/api/v2/<path>`. The body is only sent for methods other
// than GET and HEAD. The caller closes the returned body.
func (c *Client) Forward(ctx context.Context, method, path, rawQuery string, body io.Reader, contentType string) (*http.Response, error) {
	target := c.APIURL(path)
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	if method == http.MethodGet || method == http.MethodHead {
		body = nil
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "creating upstream request")
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "forwarding %s %s", method, path)
	}
	return resp, nil
}
