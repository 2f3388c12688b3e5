// Package ledger owns the custody ledger: the append-only movement log and
// the derived current-custodian pointer on each file. All custodian
// mutation goes through TransferCustody so the two effects commit or abort
// together.
package ledger

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/models"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

// FileRepository is the slice of the file repository the ledger uses.
type FileRepository interface {
	NextID(ctx context.Context, year int) (string, error)
	Insert(ctx context.Context, f *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.File, error)
	UpdateCustodian(ctx context.Context, id, custodianID string, at time.Time) error
	Close(ctx context.Context, id string, at time.Time) (*models.File, error)
}

// MovementRepository is the slice of the movement repository the ledger uses.
type MovementRepository interface {
	Insert(ctx context.Context, m *models.Movement) error
	GetByID(ctx context.Context, id string) (*models.Movement, error)
	Acknowledge(ctx context.Context, id, byUserID string, at time.Time) (*models.Movement, error)
	ListByFile(ctx context.Context, fileID string) ([]models.Movement, error)
	ListPendingForUser(ctx context.Context, userID string) ([]models.Movement, error)
}

// UserRepository resolves transfer targets.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Events receives best-effort notifications after ledger writes commit.
// Delivery is advisory: failures are logged by the implementation and no
// ledger invariant depends on it.
type Events interface {
	FileCreated(ctx context.Context, f *models.File)
	MovementLogged(ctx context.Context, m *models.Movement)
	MovementAcknowledged(ctx context.Context, m *models.Movement)
}

// Service implements the custody ledger operations.
type Service struct {
	db        database.DB
	files     FileRepository
	movements MovementRepository
	users     UserRepository
	events    Events
	logger    ectologger.Logger
	now       func() time.Time
}

// NewService creates a new ledger service.
func NewService(db database.DB, files FileRepository, movements MovementRepository, users UserRepository, events Events, logger ectologger.Logger) *Service {
	return &Service{
		db:        db,
		files:     files,
		movements: movements,
		users:     users,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterFile opens a new case file. The registration itself is recorded
// as the file's first movement (from registry, purpose registration), so
// the custodian invariant holds from birth and the bottleneck analyzer has
// a reference timestamp for files that have never been transferred.
func (s *Service) RegisterFile(ctx context.Context, req models.RegisterFileRequest, registeredBy string) (*models.File, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.RegisterFile")
	defer span.End()

	custodian, err := s.users.GetByID(ctx, req.CustodianID)
	if err != nil {
		return nil, err
	}
	if custodian == nil || !custodian.IsActive {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "custodian not found or inactive")
	}

	now := s.now().UTC()

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to register file")
	}
	defer tx.Rollback(ctx)

	id, err := s.files.NextID(txCtx, now.Year())
	if err != nil {
		return nil, err
	}

	file := &models.File{
		ID:                id,
		Title:             req.Title,
		ClientName:        req.ClientName,
		Status:            models.FileStatusActive,
		CurrentCustodian:  req.CustodianID,
		AssignedAdvocates: req.AssignedAdvocates,
		DateOpened:        now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.files.Insert(txCtx, file); err != nil {
		return nil, err
	}

	movement := &models.Movement{
		ID:          uuid.New().String(),
		FileID:      id,
		ToCustodian: req.CustodianID,
		Purpose:     models.PurposeRegistration,
		Notes:       "file registered",
		LoggedBy:    registeredBy,
		MovedAt:     now,
	}
	if err := s.movements.Insert(txCtx, movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to register file")
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{"file_id": id, "custodian_id": req.CustodianID}).Info("registered file")
	if s.events != nil {
		s.events.FileCreated(ctx, file)
	}
	return file, nil
}

// TransferCustody appends a movement and repoints the file's custodian in
// one transaction. The row lock taken by GetByIDForUpdate serializes
// concurrent transfers of the same file, so the from-custodian chain is
// always consistent; transfers of different files do not contend.
func (s *Service) TransferCustody(ctx context.Context, req models.TransferRequest, loggedBy string) (*models.Movement, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.TransferCustody")
	defer span.End()

	if !req.Purpose.Valid() {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid movement purpose: %s", req.Purpose)
	}

	target, err := s.users.GetByID(ctx, req.ToCustodian)
	if err != nil {
		return nil, err
	}
	if target == nil || !target.IsActive {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "target custodian not found or inactive")
	}

	now := s.now().UTC()

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to transfer custody")
	}
	defer tx.Rollback(ctx)

	file, err := s.files.GetByIDForUpdate(txCtx, req.FileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if file.Status == models.FileStatusClosed {
		return nil, httperror.NewHTTPError(http.StatusConflict, "file is closed and can no longer move")
	}

	fromCustodian := file.CurrentCustodian
	movement := &models.Movement{
		ID:            uuid.New().String(),
		FileID:        file.ID,
		FromCustodian: &fromCustodian,
		ToCustodian:   req.ToCustodian,
		Purpose:       req.Purpose,
		Notes:         req.Notes,
		LoggedBy:      loggedBy,
		MovedAt:       now,
	}
	if err := s.movements.Insert(txCtx, movement); err != nil {
		return nil, err
	}
	if err := s.files.UpdateCustodian(txCtx, file.ID, req.ToCustodian, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to transfer custody")
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"movement_id":    movement.ID,
		"file_id":        file.ID,
		"from_custodian": fromCustodian,
		"to_custodian":   req.ToCustodian,
		"purpose":        req.Purpose,
	}).Info("transferred custody")
	if s.events != nil {
		s.events.MovementLogged(ctx, movement)
	}
	return movement, nil
}

// AcknowledgeReceipt confirms a transfer was received. Only the movement's
// recipient may acknowledge it; a holder of the override capability may
// force it for recovery. Acknowledgment is one-shot: a second attempt is
// rejected rather than silently overwriting who confirmed and when.
func (s *Service) AcknowledgeReceipt(ctx context.Context, movementID, actingUserID string, hasOverride bool) (*models.Movement, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.AcknowledgeReceipt")
	defer span.End()

	movement, err := s.movements.GetByID(ctx, movementID)
	if err != nil {
		return nil, err
	}
	if movement == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "movement not found")
	}
	if actingUserID != movement.ToCustodian && !hasOverride {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "only the recipient may acknowledge this movement")
	}
	if movement.Acknowledged {
		return nil, httperror.NewHTTPError(http.StatusConflict, "movement is already acknowledged")
	}

	acknowledged, err := s.movements.Acknowledge(ctx, movementID, actingUserID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if acknowledged == nil {
		// Lost the race with another acknowledgment.
		return nil, httperror.NewHTTPError(http.StatusConflict, "movement is already acknowledged")
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{"movement_id": movementID, "user_id": actingUserID}).Info("acknowledged movement")
	if s.events != nil {
		s.events.MovementAcknowledged(ctx, acknowledged)
	}
	return acknowledged, nil
}

// GetPendingAcknowledgments returns unacknowledged movements addressed to
// the user, most recent first.
func (s *Service) GetPendingAcknowledgments(ctx context.Context, userID string) ([]models.Movement, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.GetPendingAcknowledgments")
	defer span.End()

	return s.movements.ListPendingForUser(ctx, userID)
}

// GetHistory returns the file's full custody chain, oldest to newest.
func (s *Service) GetHistory(ctx context.Context, fileID string) ([]models.Movement, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.GetHistory")
	defer span.End()

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "file not found")
	}
	return s.movements.ListByFile(ctx, fileID)
}

// GetFile returns a file by id.
func (s *Service) GetFile(ctx context.Context, fileID string) (*models.File, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.GetFile")
	defer span.End()

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "file not found")
	}
	return file, nil
}

// CloseFile marks a file closed. Closing is terminal for movement
// purposes; further transfers and new deadlines are rejected.
func (s *Service) CloseFile(ctx context.Context, fileID string) (*models.File, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Service.CloseFile")
	defer span.End()

	return s.files.Close(ctx, fileID, s.now().UTC())
}
