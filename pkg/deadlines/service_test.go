package deadlines

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritaslaw/custodia/pkg/models"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type fakeRepo struct {
	deadlines map[string]*models.Deadline

	windowFrom time.Time
	windowTo   time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{deadlines: map[string]*models.Deadline{}}
}

func (r *fakeRepo) Insert(ctx context.Context, d *models.Deadline) error {
	r.deadlines[d.ID] = d
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*models.Deadline, error) {
	return r.deadlines[id], nil
}

func (r *fakeRepo) Complete(ctx context.Context, id, byUserID string, at time.Time) (*models.Deadline, error) {
	d, ok := r.deadlines[id]
	if !ok || d.Status == models.DeadlineCompleted {
		return nil, nil
	}
	d.Status = models.DeadlineCompleted
	d.CompletedAt = &at
	d.CompletedBy = &byUserID
	return d, nil
}

func (r *fakeRepo) ListInWindow(ctx context.Context, from, to time.Time) ([]models.Deadline, error) {
	r.windowFrom = from
	r.windowTo = to
	var out []models.Deadline
	for _, d := range r.deadlines {
		if d.Status != models.DeadlinePending {
			continue
		}
		if !d.DueDate.Before(from) && !d.DueDate.After(to) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListOverdue(ctx context.Context, now time.Time) ([]models.Deadline, error) {
	var out []models.Deadline
	for _, d := range r.deadlines {
		if d.Status == models.DeadlinePending && d.DueDate.Before(now) {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakeFiles struct {
	files map[string]*models.File
}

func (r *fakeFiles) GetByID(ctx context.Context, id string) (*models.File, error) {
	return r.files[id], nil
}

type recordingEvents struct {
	added []string
}

func (e *recordingEvents) DeadlineAdded(ctx context.Context, d *models.Deadline) {
	e.added = append(e.added, d.ID)
}

type fixture struct {
	repo    *fakeRepo
	events  *recordingEvents
	service *Service
}

func newFixture() *fixture {
	f := &fixture{repo: newFakeRepo(), events: &recordingEvents{}}
	files := &fakeFiles{files: map[string]*models.File{
		"CT-2025-0001": {ID: "CT-2025-0001", Status: models.FileStatusActive},
		"CT-2025-0002": {ID: "CT-2025-0002", Status: models.FileStatusClosed},
	}}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f.service = NewService(f.repo, files, f.events, logger)
	f.service.now = func() time.Time { return testNow }
	return f
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err))
	return httperror.GetStatusCode(err)
}

func TestService_Create(t *testing.T) {
	due := testNow.Add(72 * time.Hour)

	t.Run("creates a pending deadline", func(t *testing.T) {
		f := newFixture()

		d, err := f.service.Create(context.Background(), "CT-2025-0001", models.CreateDeadlineRequest{
			Type:        models.DeadlineHearing,
			DueDate:     due,
			Description: "mention before Justice Achieng",
		})
		require.NoError(t, err)
		assert.Equal(t, models.DeadlinePending, d.Status)
		assert.Equal(t, due, d.DueDate)
		assert.Equal(t, testNow, d.CreatedAt)
		assert.Equal(t, []string{d.ID}, f.events.added)
	})

	t.Run("requires a due date", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.Create(context.Background(), "CT-2025-0001", models.CreateDeadlineRequest{
			Type: models.DeadlineHearing,
		})
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})

	t.Run("rejects invalid type", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.Create(context.Background(), "CT-2025-0001", models.CreateDeadlineRequest{
			Type:    "vacation",
			DueDate: due,
		})
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})

	t.Run("rejects unknown file", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.Create(context.Background(), "CT-2025-9999", models.CreateDeadlineRequest{
			Type:    models.DeadlineHearing,
			DueDate: due,
		})
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})

	t.Run("rejects closed file", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.Create(context.Background(), "CT-2025-0002", models.CreateDeadlineRequest{
			Type:    models.DeadlineHearing,
			DueDate: due,
		})
		assert.Equal(t, http.StatusConflict, statusOf(t, err))
		assert.Empty(t, f.events.added)
	})
}

func TestService_Complete(t *testing.T) {
	setup := func() (*fixture, *models.Deadline) {
		f := newFixture()
		d, err := f.service.Create(context.Background(), "CT-2025-0001", models.CreateDeadlineRequest{
			Type:    models.DeadlineFiling,
			DueDate: testNow.Add(24 * time.Hour),
		})
		if err != nil {
			panic(err)
		}
		return f, d
	}

	t.Run("completes a pending deadline once", func(t *testing.T) {
		f, d := setup()

		completed, err := f.service.Complete(context.Background(), d.ID, "adv-1")
		require.NoError(t, err)
		assert.Equal(t, models.DeadlineCompleted, completed.Status)
		require.NotNil(t, completed.CompletedBy)
		assert.Equal(t, "adv-1", *completed.CompletedBy)
		require.NotNil(t, completed.CompletedAt)
		assert.Equal(t, testNow, *completed.CompletedAt)
	})

	t.Run("second completion conflicts", func(t *testing.T) {
		f, d := setup()

		_, err := f.service.Complete(context.Background(), d.ID, "adv-1")
		require.NoError(t, err)

		_, err = f.service.Complete(context.Background(), d.ID, "adv-2")
		assert.Equal(t, http.StatusConflict, statusOf(t, err))
	})

	t.Run("unknown deadline is not found", func(t *testing.T) {
		f, _ := setup()

		_, err := f.service.Complete(context.Background(), "missing", "adv-1")
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})
}

func TestService_GetUpcoming(t *testing.T) {
	t.Run("queries the requested window", func(t *testing.T) {
		f := newFixture()
		inside, err := f.service.Create(context.Background(), "CT-2025-0001", models.CreateDeadlineRequest{
			Type:    models.DeadlineHearing,
			DueDate: testNow.Add(3 * 24 * time.Hour),
		})
		require.NoError(t, err)
		_, err = f.service.Create(context.Background(), "CT-2025-0001", models.CreateDeadlineRequest{
			Type:    models.DeadlineFiling,
			DueDate: testNow.Add(10 * 24 * time.Hour),
		})
		require.NoError(t, err)

		upcoming, err := f.service.GetUpcoming(context.Background(), 7)
		require.NoError(t, err)
		require.Len(t, upcoming, 1)
		assert.Equal(t, inside.ID, upcoming[0].ID)
		assert.Equal(t, testNow, f.repo.windowFrom)
		assert.Equal(t, testNow.Add(7*24*time.Hour), f.repo.windowTo)
	})

	t.Run("rejects non-positive window", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.GetUpcoming(context.Background(), 0)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

		_, err = f.service.GetUpcoming(context.Background(), -3)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})
}

func TestService_GetOverdue(t *testing.T) {
	f := newFixture()
	past, err := f.service.Create(context.Background(), "CT-2025-0001", models.CreateDeadlineRequest{
		Type:    models.DeadlineFiling,
		DueDate: testNow.Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = f.service.Create(context.Background(), "CT-2025-0001", models.CreateDeadlineRequest{
		Type:    models.DeadlineHearing,
		DueDate: testNow.Add(time.Hour),
	})
	require.NoError(t, err)

	overdue, err := f.service.GetOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, past.ID, overdue[0].ID)
}
