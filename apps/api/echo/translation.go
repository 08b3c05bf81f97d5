package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/translation"
)

type translationApi struct {
	svc      *translation.Service
	validate *validator.Validate
	log      core.Logger
}

func registerTranslationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *translation.Service, validate *validator.Validate, logger core.Logger) {
	api := translationApi{svc: svc, validate: validate, log: logger}

	g.POST("/translations", api.create, jwt)
}

func (api *translationApi) create(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	var data translation.Request
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to translation.Request")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	payload, err := api.svc.Submit(ctx.Request().Context(), sess, data)
	if err != nil {
		api.log.Error("translation request failed", err, sess, "tool_id", data.ToolID)
		return errWebhookFailed
	}
	return ctx.JSON(http.StatusAccepted, payload)
}
