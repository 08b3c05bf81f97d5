package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/dashboard"
	"github.com/mdii/portal/core/evaluation"
	"github.com/mdii/portal/core/note"
	"github.com/mdii/portal/core/task"
	"github.com/mdii/portal/core/toolstatus"
)

var (
	errUnauthorized     = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired   = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound     = echo.NewHTTPError(http.StatusNotFound, "not found")
	errHttpBadGateway   = echo.NewHTTPError(http.StatusBadGateway, "survey platform unavailable")
	errWebhookFailed    = echo.NewHTTPError(http.StatusBadGateway, "translation request could not be sent")
	errObjNotFoundInCtx = errors.New("object not found in echo.Context")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateValidationErrors(origErr, translator)
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.FetchError:
			code = errHttpBadGateway.Code
			message = origErr.Error()
			logger.Warn("survey platform fetch failed", err, ctxSession(ctx))
		default:
			switch origErr {
			case dashboard.ErrToolNotFound, task.ErrNotFound, note.ErrNotFound:
				code = errHttpNotFound.Code
				message = errHttpNotFound.Message
			case dashboard.ErrForbidden, note.ErrForbidden, toolstatus.ErrForbidden:
				code = http.StatusForbidden
				message = origErr.Error()
			case evaluation.ErrProcessing:
				code = http.StatusInternalServerError
				message = origErr.Error()
				logger.Error(origErr.Error(), err, ctxSession(ctx))
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, errors.Wrap(err, msg), ctxSession(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
