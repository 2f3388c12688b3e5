package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritaslaw/custodia/pkg/database"
	"github.com/veritaslaw/custodia/pkg/models"
)

var testNow = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) IsOpen() bool { return !t.committed && !t.rolledBack }
func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}
func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.committed {
		return nil
	}
	t.rolledBack = true
	return nil
}
func (t *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (t *fakeTx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (t *fakeTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (t *fakeTx) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}

type fakeDB struct {
	tx *fakeTx
}

func (d *fakeDB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, nil
}
func (d *fakeDB) Close() error { return nil }
func (d *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (d *fakeDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (d *fakeDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (d *fakeDB) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}
func (d *fakeDB) Ping() error                           { return nil }
func (d *fakeDB) PingContext(ctx context.Context) error { return nil }
func (d *fakeDB) SetConnMaxLifetime(t time.Duration)    {}
func (d *fakeDB) SetMaxIdleConns(n int)                 {}
func (d *fakeDB) SetMaxOpenConns(n int)                 {}
func (d *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	d.tx = &fakeTx{}
	return ctx, d.tx, nil
}

type fakeFileRepo struct {
	files      map[string]*models.File
	nextSeq    int
	custodians map[string]string
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{
		files:      map[string]*models.File{},
		custodians: map[string]string{},
	}
}

func (r *fakeFileRepo) NextID(ctx context.Context, year int) (string, error) {
	r.nextSeq++
	return fmt.Sprintf("CT-%d-%04d", year, r.nextSeq), nil
}

func (r *fakeFileRepo) Insert(ctx context.Context, f *models.File) error {
	r.files[f.ID] = f
	return nil
}

func (r *fakeFileRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	return r.files[id], nil
}

func (r *fakeFileRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.File, error) {
	return r.files[id], nil
}

func (r *fakeFileRepo) UpdateCustodian(ctx context.Context, id, custodianID string, at time.Time) error {
	r.custodians[id] = custodianID
	if f, ok := r.files[id]; ok {
		f.CurrentCustodian = custodianID
		f.UpdatedAt = at
	}
	return nil
}

func (r *fakeFileRepo) Close(ctx context.Context, id string, at time.Time) (*models.File, error) {
	f, ok := r.files[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if f.Status == models.FileStatusClosed {
		return nil, httperror.NewHTTPError(http.StatusConflict, "file is already closed")
	}
	f.Status = models.FileStatusClosed
	f.DateClosed = &at
	return f, nil
}

type fakeMovementRepo struct {
	movements map[string]*models.Movement
	inserted  []*models.Movement
}

func newFakeMovementRepo() *fakeMovementRepo {
	return &fakeMovementRepo{movements: map[string]*models.Movement{}}
}

func (r *fakeMovementRepo) Insert(ctx context.Context, m *models.Movement) error {
	r.movements[m.ID] = m
	r.inserted = append(r.inserted, m)
	return nil
}

func (r *fakeMovementRepo) GetByID(ctx context.Context, id string) (*models.Movement, error) {
	return r.movements[id], nil
}

func (r *fakeMovementRepo) Acknowledge(ctx context.Context, id, byUserID string, at time.Time) (*models.Movement, error) {
	m, ok := r.movements[id]
	if !ok || m.Acknowledged {
		return nil, nil
	}
	m.Acknowledged = true
	m.AcknowledgedAt = &at
	m.AcknowledgedBy = &byUserID
	return m, nil
}

func (r *fakeMovementRepo) ListByFile(ctx context.Context, fileID string) ([]models.Movement, error) {
	var out []models.Movement
	for _, m := range r.inserted {
		if m.FileID == fileID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMovementRepo) ListPendingForUser(ctx context.Context, userID string) ([]models.Movement, error) {
	var out []models.Movement
	for _, m := range r.inserted {
		if m.ToCustodian == userID && !m.Acknowledged {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	users map[string]*models.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.users[id], nil
}

type recordingEvents struct {
	filesCreated []string
	logged       []string
	acknowledged []string
}

func (e *recordingEvents) FileCreated(ctx context.Context, f *models.File) {
	e.filesCreated = append(e.filesCreated, f.ID)
}
func (e *recordingEvents) MovementLogged(ctx context.Context, m *models.Movement) {
	e.logged = append(e.logged, m.ID)
}
func (e *recordingEvents) MovementAcknowledged(ctx context.Context, m *models.Movement) {
	e.acknowledged = append(e.acknowledged, m.ID)
}

type ledgerFixture struct {
	db        *fakeDB
	files     *fakeFileRepo
	movements *fakeMovementRepo
	users     *fakeUserRepo
	events    *recordingEvents
	service   *Service
}

func newLedgerFixture() *ledgerFixture {
	f := &ledgerFixture{
		db:        &fakeDB{},
		files:     newFakeFileRepo(),
		movements: newFakeMovementRepo(),
		users: &fakeUserRepo{users: map[string]*models.User{
			"clerk-1":   {ID: "clerk-1", Role: models.RoleClerk, IsActive: true},
			"adv-1":     {ID: "adv-1", Role: models.RoleAdvocate, IsActive: true},
			"adv-2":     {ID: "adv-2", Role: models.RoleAdvocate, IsActive: true},
			"partner-1": {ID: "partner-1", Role: models.RolePartner, IsActive: true},
			"gone-1":    {ID: "gone-1", Role: models.RoleClerk, IsActive: false},
		}},
		events: &recordingEvents{},
	}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f.service = NewService(f.db, f.files, f.movements, f.users, f.events, logger)
	f.service.now = func() time.Time { return testNow }
	return f
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err))
	return httperror.GetStatusCode(err)
}

func TestService_RegisterFile(t *testing.T) {
	t.Run("records registration as the first movement", func(t *testing.T) {
		f := newLedgerFixture()

		file, err := f.service.RegisterFile(context.Background(), models.RegisterFileRequest{
			Title:             "Mwangi v. Otieno",
			ClientName:        "J. Mwangi",
			CustodianID:       "clerk-1",
			AssignedAdvocates: []string{"adv-1"},
		}, "partner-1")
		require.NoError(t, err)

		assert.Equal(t, "CT-2025-0001", file.ID)
		assert.Equal(t, models.FileStatusActive, file.Status)
		assert.Equal(t, "clerk-1", file.CurrentCustodian)

		require.Len(t, f.movements.inserted, 1)
		first := f.movements.inserted[0]
		assert.Nil(t, first.FromCustodian)
		assert.Equal(t, "clerk-1", first.ToCustodian)
		assert.Equal(t, models.PurposeRegistration, first.Purpose)
		assert.Equal(t, "partner-1", first.LoggedBy)

		require.NotNil(t, f.db.tx)
		assert.True(t, f.db.tx.committed)
		assert.Equal(t, []string{"CT-2025-0001"}, f.events.filesCreated)
	})

	t.Run("rejects unknown custodian", func(t *testing.T) {
		f := newLedgerFixture()

		_, err := f.service.RegisterFile(context.Background(), models.RegisterFileRequest{
			Title:       "X v. Y",
			ClientName:  "X",
			CustodianID: "nobody",
		}, "partner-1")
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})

	t.Run("rejects deactivated custodian", func(t *testing.T) {
		f := newLedgerFixture()

		_, err := f.service.RegisterFile(context.Background(), models.RegisterFileRequest{
			Title:       "X v. Y",
			ClientName:  "X",
			CustodianID: "gone-1",
		}, "partner-1")
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})

	t.Run("file ids increment within a year", func(t *testing.T) {
		f := newLedgerFixture()

		for i := 1; i <= 3; i++ {
			file, err := f.service.RegisterFile(context.Background(), models.RegisterFileRequest{
				Title:       fmt.Sprintf("Case %d", i),
				ClientName:  "Client",
				CustodianID: "clerk-1",
			}, "partner-1")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("CT-2025-%04d", i), file.ID)
		}
	})
}

func TestService_TransferCustody(t *testing.T) {
	setup := func() (*ledgerFixture, *models.File) {
		f := newLedgerFixture()
		file, err := f.service.RegisterFile(context.Background(), models.RegisterFileRequest{
			Title:       "Mwangi v. Otieno",
			ClientName:  "J. Mwangi",
			CustodianID: "clerk-1",
		}, "partner-1")
		if err != nil {
			panic(err)
		}
		return f, file
	}

	t.Run("appends movement and repoints custodian atomically", func(t *testing.T) {
		f, file := setup()

		movement, err := f.service.TransferCustody(context.Background(), models.TransferRequest{
			FileID:      file.ID,
			ToCustodian: "adv-1",
			Purpose:     models.PurposeReview,
			Notes:       "pre-hearing review",
		}, "clerk-1")
		require.NoError(t, err)

		require.NotNil(t, movement.FromCustodian)
		assert.Equal(t, "clerk-1", *movement.FromCustodian)
		assert.Equal(t, "adv-1", movement.ToCustodian)
		assert.False(t, movement.Acknowledged)
		assert.Equal(t, "adv-1", f.files.custodians[file.ID])
		assert.True(t, f.db.tx.committed)
		assert.Len(t, f.events.logged, 1)
	})

	t.Run("chains from-custodian across transfers", func(t *testing.T) {
		f, file := setup()

		_, err := f.service.TransferCustody(context.Background(), models.TransferRequest{
			FileID: file.ID, ToCustodian: "adv-1", Purpose: models.PurposeReview,
		}, "clerk-1")
		require.NoError(t, err)

		second, err := f.service.TransferCustody(context.Background(), models.TransferRequest{
			FileID: file.ID, ToCustodian: "adv-2", Purpose: models.PurposeHearing,
		}, "adv-1")
		require.NoError(t, err)

		require.NotNil(t, second.FromCustodian)
		assert.Equal(t, "adv-1", *second.FromCustodian)
	})

	t.Run("rejects invalid purpose", func(t *testing.T) {
		f, file := setup()

		_, err := f.service.TransferCustody(context.Background(), models.TransferRequest{
			FileID: file.ID, ToCustodian: "adv-1", Purpose: "teleportation",
		}, "clerk-1")
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})

	t.Run("rejects unknown target custodian", func(t *testing.T) {
		f, file := setup()

		_, err := f.service.TransferCustody(context.Background(), models.TransferRequest{
			FileID: file.ID, ToCustodian: "nobody", Purpose: models.PurposeReview,
		}, "clerk-1")
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})

	t.Run("rejects unknown file and rolls back", func(t *testing.T) {
		f, _ := setup()

		_, err := f.service.TransferCustody(context.Background(), models.TransferRequest{
			FileID: "CT-2025-9999", ToCustodian: "adv-1", Purpose: models.PurposeReview,
		}, "clerk-1")
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
		assert.True(t, f.db.tx.rolledBack)
	})

	t.Run("rejects transfers of a closed file", func(t *testing.T) {
		f, file := setup()
		_, err := f.service.CloseFile(context.Background(), file.ID)
		require.NoError(t, err)

		_, err = f.service.TransferCustody(context.Background(), models.TransferRequest{
			FileID: file.ID, ToCustodian: "adv-1", Purpose: models.PurposeReview,
		}, "clerk-1")
		assert.Equal(t, http.StatusConflict, statusOf(t, err))
	})
}

func TestService_AcknowledgeReceipt(t *testing.T) {
	setup := func() (*ledgerFixture, *models.Movement) {
		f := newLedgerFixture()
		file, err := f.service.RegisterFile(context.Background(), models.RegisterFileRequest{
			Title: "Mwangi v. Otieno", ClientName: "J. Mwangi", CustodianID: "clerk-1",
		}, "partner-1")
		if err != nil {
			panic(err)
		}
		movement, err := f.service.TransferCustody(context.Background(), models.TransferRequest{
			FileID: file.ID, ToCustodian: "adv-1", Purpose: models.PurposeReview,
		}, "clerk-1")
		if err != nil {
			panic(err)
		}
		return f, movement
	}

	t.Run("recipient acknowledges once", func(t *testing.T) {
		f, movement := setup()

		acked, err := f.service.AcknowledgeReceipt(context.Background(), movement.ID, "adv-1", false)
		require.NoError(t, err)
		assert.True(t, acked.Acknowledged)
		require.NotNil(t, acked.AcknowledgedBy)
		assert.Equal(t, "adv-1", *acked.AcknowledgedBy)
		require.NotNil(t, acked.AcknowledgedAt)
		assert.Equal(t, testNow, *acked.AcknowledgedAt)
		assert.Len(t, f.events.acknowledged, 1)
	})

	t.Run("non-recipient is rejected", func(t *testing.T) {
		f, movement := setup()

		_, err := f.service.AcknowledgeReceipt(context.Background(), movement.ID, "adv-2", false)
		assert.Equal(t, http.StatusForbidden, statusOf(t, err))
		assert.Empty(t, f.events.acknowledged)
	})

	t.Run("override capability may force acknowledgment", func(t *testing.T) {
		f, movement := setup()

		acked, err := f.service.AcknowledgeReceipt(context.Background(), movement.ID, "partner-1", true)
		require.NoError(t, err)
		require.NotNil(t, acked.AcknowledgedBy)
		assert.Equal(t, "partner-1", *acked.AcknowledgedBy)
	})

	t.Run("second acknowledgment conflicts", func(t *testing.T) {
		f, movement := setup()

		_, err := f.service.AcknowledgeReceipt(context.Background(), movement.ID, "adv-1", false)
		require.NoError(t, err)

		_, err = f.service.AcknowledgeReceipt(context.Background(), movement.ID, "adv-1", false)
		assert.Equal(t, http.StatusConflict, statusOf(t, err))
	})

	t.Run("unknown movement is not found", func(t *testing.T) {
		f, _ := setup()

		_, err := f.service.AcknowledgeReceipt(context.Background(), "missing", "adv-1", false)
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})
}

func TestService_GetHistory(t *testing.T) {
	f := newLedgerFixture()
	file, err := f.service.RegisterFile(context.Background(), models.RegisterFileRequest{
		Title: "Mwangi v. Otieno", ClientName: "J. Mwangi", CustodianID: "clerk-1",
	}, "partner-1")
	require.NoError(t, err)

	_, err = f.service.TransferCustody(context.Background(), models.TransferRequest{
		FileID: file.ID, ToCustodian: "adv-1", Purpose: models.PurposeReview,
	}, "clerk-1")
	require.NoError(t, err)

	history, err := f.service.GetHistory(context.Background(), file.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.PurposeRegistration, history[0].Purpose)
	assert.Equal(t, models.PurposeReview, history[1].Purpose)

	_, err = f.service.GetHistory(context.Background(), "CT-2025-9999")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestService_GetPendingAcknowledgments(t *testing.T) {
	f := newLedgerFixture()
	file, err := f.service.RegisterFile(context.Background(), models.RegisterFileRequest{
		Title: "Mwangi v. Otieno", ClientName: "J. Mwangi", CustodianID: "clerk-1",
	}, "partner-1")
	require.NoError(t, err)

	movement, err := f.service.TransferCustody(context.Background(), models.TransferRequest{
		FileID: file.ID, ToCustodian: "adv-1", Purpose: models.PurposeReview,
	}, "clerk-1")
	require.NoError(t, err)

	pending, err := f.service.GetPendingAcknowledgments(context.Background(), "adv-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, movement.ID, pending[0].ID)

	_, err = f.service.AcknowledgeReceipt(context.Background(), movement.ID, "adv-1", false)
	require.NoError(t, err)

	pending, err = f.service.GetPendingAcknowledgments(context.Background(), "adv-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
