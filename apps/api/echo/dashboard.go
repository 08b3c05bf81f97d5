package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/dashboard"
)

type dashboardApi struct {
	svc *dashboard.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *dashboard.Service) {
	api := dashboardApi{svc: svc}

	ag := g.Group("", jwt)
	ag.GET("/dashboard", api.dashboard)
	ag.GET("/tools", api.queryTools)
	ag.GET("/tools/:id", api.retrieveTool)
	ag.GET("/experts", api.queryExperts, adminMiddleware())
	ag.GET("/forms/:id/labels", api.formLabels)
}

// staleResponse is sent when a fetch cycle fails: the error, plus the last good snapshot if any.
type staleResponse struct {
	Error    string              `json:"error"`
	Previous *dashboard.Snapshot `json:"previous"`
}

// load runs a fetch cycle. A failed cycle answers 502 with the last good snapshot, if any.
func (api *dashboardApi) load(ctx echo.Context) (dashboard.Snapshot, error) {
	sess, err := getContextSession(ctx)
	if err != nil {
		return dashboard.Snapshot{}, errors.Wrap(err, "getting context session")
	}

	snap, err := api.svc.Load(ctx.Request().Context(), sess)
	if err != nil && core.IsFetchError(err) {
		resp := staleResponse{Error: errors.Cause(err).Error()}
		if !snap.FetchedAt.IsZero() {
			resp.Previous = &snap
		}
		return snap, echo.NewHTTPError(http.StatusBadGateway, resp).SetInternal(err)
	}
	return snap, err
}

func (api *dashboardApi) dashboard(ctx echo.Context) error {
	snap, err := api.load(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *dashboardApi) queryTools(ctx echo.Context) error {
	snap, err := api.load(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, snap.Tools)
}

func (api *dashboardApi) retrieveTool(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	detail, err := api.svc.ToolDetail(ctx.Request().Context(), sess, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reading tool detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *dashboardApi) queryExperts(ctx echo.Context) error {
	experts, err := api.svc.Experts(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "aggregating experts")
	}
	return ctx.JSON(http.StatusOK, experts)
}

func (api *dashboardApi) formLabels(ctx echo.Context) error {
	labels, err := api.svc.FormLabels(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reading form labels")
	}
	return ctx.JSON(http.StatusOK, labels)
}
