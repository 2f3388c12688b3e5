package file

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/veritaslaw/custodia/internal/repositories/attachment"
	"github.com/veritaslaw/custodia/internal/repositories/file"
	"github.com/veritaslaw/custodia/pkg/appcontext"
	"github.com/veritaslaw/custodia/pkg/capability"
	"github.com/veritaslaw/custodia/pkg/deadlines"
	"github.com/veritaslaw/custodia/pkg/ledger"
	"github.com/veritaslaw/custodia/pkg/models"
)

var validate = validator.New()

// Register registers case file routes
func Register(g *echo.Group) {
	g.POST("", RegisterFile)
	g.GET("", ListFiles)
	g.GET("/:id", GetFile)
	g.GET("/:id/history", GetHistory)
	g.POST("/:id/close", CloseFile)
	g.POST("/:id/deadlines", CreateDeadline)
	g.GET("/:id/attachments", ListAttachments)
	g.POST("/:id/attachments", LinkAttachment)
}

// RegisterFile registers a new case file with an initial custodian
func RegisterFile(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)
	if !capability.ActorHas(actor, capability.RegisterFiles) {
		return httperror.NewHTTPError(http.StatusForbidden, "you cannot register files")
	}

	var req models.RegisterFileRequest
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

	created, err := svc.RegisterFile(ctx, req, actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, models.FileResponse{File: *created})
}

// ListFiles lists case files, paginated
func ListFiles(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	ctx, repo, err := ectoinject.GetContext[*file.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	items, total, err := repo.List(ctx, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.FileListResponse{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// GetFile gets a case file by id
func GetFile(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, svc, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	f, err := svc.GetFile(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.FileResponse{File: *f})
}

// GetHistory returns the file's full movement history, oldest first
func GetHistory(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, svc, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	movements, err := svc.GetHistory(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.MovementListResponse{
		Items:      movements,
		TotalCount: len(movements),
	})
}

// CloseFile closes a case file
func CloseFile(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)
	if !capability.ActorHas(actor, capability.CloseFiles) {
		return httperror.NewHTTPError(http.StatusForbidden, "you cannot close files")
	}

	ctx, svc, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	closed, err := svc.CloseFile(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.FileResponse{File: *closed})
}

// CreateDeadline schedules a deadline against a case file
func CreateDeadline(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)
	if !capability.ActorHas(actor, capability.ManageDeadlines) {
		return httperror.NewHTTPError(http.StatusForbidden, "you cannot manage deadlines")
	}

	var req models.CreateDeadlineRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*deadlines.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	created, err := svc.Create(ctx, c.Param("id"), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, models.DeadlineResponse{Deadline: *created})
}

// ListAttachments lists the digital documents linked to a case file
func ListAttachments(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, svc, err := ectoinject.GetContext[*ledger.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	if _, err := svc.GetFile(ctx, c.Param("id")); err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*attachment.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	items, err := repo.ListByFile(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.AttachmentListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// LinkAttachment links a digital document to a case file
func LinkAttachment(c echo.Context) error {
	ctx := c.Request().Context()

	actor := appcontext.GetActor(ctx)

	var req models.LinkAttachmentRequest
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
	f, err := svc.GetFile(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*attachment.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	a := &models.Attachment{
		ID:         uuid.New().String(),
		FileID:     f.ID,
		Name:       req.Name,
		StorageKey: req.StorageKey,
		LinkedBy:   actor.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.Link(ctx, a); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, a)
}
