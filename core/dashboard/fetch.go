package dashboard

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/survey"
)

// maxConcurrentFetches bounds the upstream requests of one fetch cycle.
const maxConcurrentFetches = 6

var errFormNotConfigured = errors.New("form not configured")

// Fetcher reads the survey platform.
type Fetcher interface {
	// FetchSubmissions returns every submission of the form. Failures are *core.FetchError.
	FetchSubmissions(ctx context.Context, formID string) ([]survey.Submission, error)
	// FetchForm returns the form structure.
	FetchForm(ctx context.Context, formID string) (survey.Form, error)
}

type (
	// request is one sub-fetch of a cycle: a slice name and the form it reads.
	request struct {
		slice     string
		formID    string
		structure bool // fetch the form structure instead of its submissions
	}

	// Result is the outcome of one sub-fetch. Err is set when it failed.
	Result struct {
		Slice string
		Subs  []survey.Submission
		Form  survey.Form
		Err   error
	}

	// Degraded names an optional slice that could not be fetched.
	Degraded struct {
		Slice string `json:"slice"`
		Error string `json:"error"`
	}
)

func fetchOne(ctx context.Context, f Fetcher, req request) Result {
	res := Result{Slice: req.slice}
	if req.formID == "" {
		res.Err = core.NewFetchError(req.slice, 0, errFormNotConfigured)
		return res
	}
	if req.structure {
		res.Form, res.Err = f.FetchForm(ctx, req.formID)
	} else {
		res.Subs, res.Err = f.FetchSubmissions(ctx, req.formID)
	}
	if res.Err != nil {
		// report under the slice name rather than the form id
		status, cause := 0, res.Err
		if fe, ok := errors.Cause(res.Err).(*core.FetchError); ok {
			status, cause = fe.Status, fe.Err
		}
		res.Err = core.NewFetchError(req.slice, status, cause)
		res.Subs = []survey.Submission{}
	}
	return res
}

// fetchRequired runs reqs concurrently and fails as soon as one of them fails.
func fetchRequired(ctx context.Context, f Fetcher, reqs ...request) (map[string]Result, error) {
	results := make([]Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = fetchOne(gctx, f, req)
			return results[i].Err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return index(results), nil
}

// fetchOptional runs reqs concurrently. Every request yields a Result, failed ones included.
func fetchOptional(ctx context.Context, f Fetcher, reqs ...request) []Result {
	results := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = fetchOne(ctx, f, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fold indexes results by slice; failed slices are empty and reported as degraded.
func fold(results []Result) (map[string]Result, []Degraded) {
	degraded := make([]Degraded, 0)
	for _, r := range results {
		if r.Err != nil {
			degraded = append(degraded, Degraded{Slice: r.Slice, Error: r.Err.Error()})
		}
	}
	return index(results), degraded
}

func index(results []Result) map[string]Result {
	out := make(map[string]Result, len(results))
	for _, r := range results {
		out[r.Slice] = r
	}
	return out
}
