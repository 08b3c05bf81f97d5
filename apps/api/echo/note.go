package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mdii/portal/core/note"
)

type noteApi struct {
	svc      *note.Service
	validate *validator.Validate
}

func registerNoteAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *note.Service, validate *validator.Validate) {
	api := noteApi{svc: svc, validate: validate}

	tg := g.Group("/tools/:id/notes", jwt)
	tg.GET("", api.query)
	tg.POST("", api.create)

	// detail endpoints
	dg := g.Group("/notes/:id", jwt, editableNoteMiddleware(svc))
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *noteApi) query(ctx echo.Context) error {
	notes, err := api.svc.Query(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying notes")
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *noteApi) create(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	var data note.NewNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.Create(ctx.Request().Context(), sess, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating note")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *noteApi) update(ctx echo.Context) error {
	n, ok := ctx.Get("object").(note.Note)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	var data note.UpdateNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateNote")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.Update(ctx.Request().Context(), ctxSession(ctx), n, data)
	if err != nil {
		return errors.Wrap(err, "updating note")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *noteApi) destroy(ctx echo.Context) error {
	n, ok := ctx.Get("object").(note.Note)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctxSession(ctx), n); err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// editableNoteMiddleware loads the `:id` note into the context if the viewer may change it.
func editableNoteMiddleware(svc *note.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getContextSession(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context session")
			}
			n, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == note.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding note by ID")
			}
			if !n.EditableBy(sess) {
				return errors.Wrap(note.ErrForbidden, "checking note author")
			}
			ctx.Set("object", n)
			return next(ctx)
		}
	}
}
