package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mdii/portal/core/toolstatus"
)

type toolStatusApi struct {
	svc      *toolstatus.Service
	validate *validator.Validate
}

func registerToolStatusAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *toolstatus.Service, validate *validator.Validate) {
	api := toolStatusApi{svc: svc, validate: validate}

	g.GET("/tool-status", api.query, jwt, adminMiddleware())
	g.POST("/tools/:id/stop", api.stop, jwt)
}

func (api *toolStatusApi) query(ctx echo.Context) error {
	entries, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying tool statuses")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *toolStatusApi) stop(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	var data toolstatus.StopRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StopRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.Stop(ctx.Request().Context(), sess, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "stopping tool")
	}
	return ctx.JSON(http.StatusOK, entry)
}
