package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mdii/portal/core/task"
)

type taskApi struct {
	svc      *task.Service
	validate *validator.Validate
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *task.Service, validate *validator.Validate) {
	api := taskApi{svc: svc, validate: validate}

	tg := g.Group("/tasks", jwt)
	tg.GET("", api.query)
	tg.POST("", api.create)

	// detail endpoints
	dg := tg.Group("/:id", visibleTaskMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *taskApi) query(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	var filter task.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []task.Task{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	tasks, err := api.svc.Query(ctx.Request().Context(), sess, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) create(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), sess, data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) update(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	var data task.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err := data.Validate(t, api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// visibleTaskMiddleware loads the `:id` task into the context. Tasks the viewer cannot see are not found.
func visibleTaskMiddleware(svc *task.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getContextSession(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context session")
			}
			t, err := svc.Get(ctx.Request().Context(), sess, ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == task.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding task by ID")
			}
			ctx.Set("object", t)
			return next(ctx)
		}
	}
}
