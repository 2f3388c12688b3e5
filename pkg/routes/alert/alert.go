package alert

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/veritaslaw/custodia/pkg/alerts"
	"github.com/veritaslaw/custodia/pkg/appcontext"
	"github.com/veritaslaw/custodia/pkg/capability"
	"github.com/veritaslaw/custodia/pkg/models"
)

// Register registers alert routes
func Register(g *echo.Group) {
	g.GET("", ListAlerts)
	g.POST("/read-all", MarkAllRead)
	g.POST("/:id/dismiss", Dismiss)
	g.POST("/scan", RunScan)
}

// ListAlerts lists the active alerts visible to the caller
func ListAlerts(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)

	ctx, svc, err := ectoinject.GetContext[*alerts.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	resp, err := svc.List(ctx, actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// MarkAllRead marks every alert visible to the caller as read
func MarkAllRead(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)

	ctx, svc, err := ectoinject.GetContext[*alerts.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	count, err := svc.MarkAllRead(ctx, actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]int64{"marked_read": count})
}

// Dismiss terminally dismisses an alert
func Dismiss(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)

	ctx, svc, err := ectoinject.GetContext[*alerts.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	dismissed, err := svc.Dismiss(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dismissed)
}

// RunScan triggers an immediate alert scan
func RunScan(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)
	if !capability.ActorHas(actor, capability.RunAlertScan) {
		return httperror.NewHTTPError(http.StatusForbidden, "you cannot run alert scans")
	}

	ctx, engine, err := ectoinject.GetContext[*alerts.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result := engine.Scan(ctx)

	return c.JSON(http.StatusOK, models.ScanResultResponse{
		Created:  result.Created,
		Failures: result.Failures,
		ScanAt:   time.Now().UTC(),
	})
}
