package movement

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/veritaslaw/custodia/pkg/appcontext"
	"github.com/veritaslaw/custodia/pkg/capability"
	"github.com/veritaslaw/custodia/pkg/ledger"
	"github.com/veritaslaw/custodia/pkg/models"
)

var validate = validator.New()

// Register registers movement routes
func Register(g *echo.Group) {
	g.POST("", LogTransfer)
	g.POST("/:id/acknowledge", Acknowledge)
	g.GET("/pending", ListPending)
}

// LogTransfer appends a custody transfer to the ledger
func LogTransfer(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)
	if !capability.ActorHas(actor, capability.TransferCustody) {
		return httperror.NewHTTPError(http.StatusForbidden, "you cannot transfer custody")
	}

	var req models.TransferRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	movement, err := svc.TransferCustody(ctx, req, actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, models.MovementResponse{Movement: *movement})
}

// Acknowledge confirms receipt of a movement
func Acknowledge(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)
	hasOverride := capability.ActorHas(actor, capability.OverrideAcknowledgment)

	ctx, svc, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	movement, err := svc.AcknowledgeReceipt(ctx, c.Param("id"), actor.ID, hasOverride)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.MovementResponse{Movement: *movement})
}

// ListPending lists the caller's unacknowledged incoming movements
func ListPending(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)

	ctx, svc, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	movements, err := svc.GetPendingAcknowledgments(ctx, actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.MovementListResponse{
		Items:      movements,
		TotalCount: len(movements),
	})
}
