package deadline

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/veritaslaw/custodia/pkg/appcontext"
	"github.com/veritaslaw/custodia/pkg/capability"
	"github.com/veritaslaw/custodia/pkg/deadlines"
	"github.com/veritaslaw/custodia/pkg/models"
)

// Register registers deadline routes
func Register(g *echo.Group) {
	g.GET("/upcoming", ListUpcoming)
	g.GET("/overdue", ListOverdue)
	g.POST("/:id/complete", Complete)
}

// ListUpcoming lists pending deadlines due within the window (default 7 days)
func ListUpcoming(c echo.Context) error {
	ctx := c.Request().Context()

	windowDays := 7
	if raw := c.QueryParam("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "window_days must be an integer")
		}
		windowDays = parsed
	}

	ctx, svc, err := ectoinject.GetContext[*deadlines.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	items, err := svc.GetUpcoming(ctx, windowDays)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.DeadlineListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// ListOverdue lists pending deadlines already past due
func ListOverdue(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, svc, err := ectoinject.GetContext[*deadlines.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	items, err := svc.GetOverdue(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.DeadlineListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// Complete marks a deadline completed
func Complete(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)
	if !capability.ActorHas(actor, capability.ManageDeadlines) {
		return httperror.NewHTTPError(http.StatusForbidden, "you cannot manage deadlines")
	}

	ctx, svc, err := ectoinject.GetContext[*deadlines.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	completed, err := svc.Complete(ctx, c.Param("id"), actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.DeadlineResponse{Deadline: *completed})
}
