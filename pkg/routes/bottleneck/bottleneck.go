package bottleneck

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/veritaslaw/custodia/pkg/appcontext"
	"github.com/veritaslaw/custodia/pkg/bottleneck"
	"github.com/veritaslaw/custodia/pkg/capability"
	"github.com/veritaslaw/custodia/pkg/models"
)

// Register registers bottleneck routes
func Register(g *echo.Group) {
	g.GET("", ListBottlenecks)
}

// ListBottlenecks reports active files held without movement past the
// threshold (default 7 days), sorted by days held descending
func ListBottlenecks(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)
	if !capability.ActorHas(actor, capability.ViewBottleneckAnalysis) {
		return httperror.NewHTTPError(http.StatusForbidden, "you cannot view bottleneck analysis")
	}

	thresholdDays := 7
	if raw := c.QueryParam("threshold_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "threshold_days must be a positive integer")
		}
		thresholdDays = parsed
	}

	ctx, analyzer, err := ectoinject.GetContext[*bottleneck.Analyzer](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	items, err := analyzer.Analyze(ctx, thresholdDays)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.BottleneckListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}
