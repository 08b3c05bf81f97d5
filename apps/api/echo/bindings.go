package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/mdii/portal/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.OrderBy
}

func (ord *Ordering) Bind(ctx echo.Context) {
	if raw := ctx.QueryParam(orderingParam); raw != "" {
		ord.Orderings = core.ParseOrdering(raw)
	}
}
