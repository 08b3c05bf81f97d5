package echoapi

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type proxyApi struct {
	upstream Upstream
	metrics  Metrics
}

// registerProxy forwards every method under the group to the survey platform API.
func registerProxy(g *echo.Group, upstream Upstream, metrics Metrics) {
	api := proxyApi{upstream: upstream, metrics: metrics}
	g.Any("/*", api.forward)
}

func (api *proxyApi) observe(method string, status int) {
	if api.metrics != nil {
		api.metrics.ObserveProxy(method, status)
	}
}

func (api *proxyApi) forward(ctx echo.Context) error {
	req := ctx.Request()
	resp, err := api.upstream.Forward(
		req.Context(),
		req.Method,
		ctx.Param("*"),
		req.URL.RawQuery,
		req.Body,
		req.Header.Get(echo.HeaderContentType),
	)
	if err != nil {
		api.observe(req.Method, 0)
		return badGateway(err)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer resp.Body.Close()
	api.observe(req.Method, resp.StatusCode)

	contentType := resp.Header.Get(echo.HeaderContentType)
	if !strings.Contains(contentType, "json") {
		return ctx.Stream(resp.StatusCode, contentType, resp.Body)
	}

	var data interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		if err == io.EOF {
			return ctx.NoContent(resp.StatusCode)
		}
		return badGateway(errors.Wrap(err, "decoding upstream response"))
	}
	return ctx.JSON(resp.StatusCode, data)
}

func badGateway(err error) error {
	return echo.NewHTTPError(errHttpBadGateway.Code, errHttpBadGateway.Message).SetInternal(err)
}
