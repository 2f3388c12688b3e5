package alerts

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

var serviceNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

type fakeInboxRepo struct {
	alerts map[string]*models.Alert
	marked int64
}

func newFakeInboxRepo(alerts ...*models.Alert) *fakeInboxRepo {
	r := &fakeInboxRepo{alerts: map[string]*models.Alert{}}
	for _, a := range alerts {
		r.alerts[a.ID] = a
	}
	return r
}

func (r *fakeInboxRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	return r.alerts[id], nil
}

func (r *fakeInboxRepo) ListActive(ctx context.Context) ([]models.Alert, error) {
	var out []models.Alert
	for _, a := range r.alerts {
		if !a.Dismissed {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeInboxRepo) ListActiveForUser(ctx context.Context, userID string) ([]models.Alert, error) {
	var out []models.Alert
	for _, a := range r.alerts {
		if a.Dismissed {
			continue
		}
		if a.TargetUserID == nil || *a.TargetUserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeInboxRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return r.marked, nil
}

func (r *fakeInboxRepo) Dismiss(ctx context.Context, id string, at time.Time) (*models.Alert, error) {
	a, ok := r.alerts[id]
	if !ok || a.Dismissed {
		return nil, nil
	}
	a.Dismissed = true
	a.DismissedAt = &at
	return a, nil
}

func newInboxService(repo *fakeInboxRepo) *Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	s := NewService(repo, logger)
	s.now = func() time.Time { return serviceNow }
	return s
}

func target(id string) *string { return &id }

func inboxStatusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err))
	return httperror.GetStatusCode(err)
}

func TestService_List(t *testing.T) {
	repo := newFakeInboxRepo(
		&models.Alert{ID: "a-1", Type: models.AlertDeadlineUpcoming, TargetUserID: target("adv-1")},
		&models.Alert{ID: "a-2", Type: models.AlertDeadlineUpcoming, TargetUserID: target("adv-2")},
		&models.Alert{ID: "a-3", Type: models.AlertMissingDigitalLink, TargetUserID: nil},
		&models.Alert{ID: "a-4", Type: models.AlertDeadlineOverdue, TargetUserID: target("adv-1"), Dismissed: true},
	)

	t.Run("partner sees every active alert", func(t *testing.T) {
		resp, err := newInboxService(repo).List(context.Background(), &models.User{ID: "partner-1", Role: models.RolePartner})
		require.NoError(t, err)
		assert.Equal(t, 3, resp.TotalCount)
	})

	t.Run("advocate sees own plus broadcast", func(t *testing.T) {
		resp, err := newInboxService(repo).List(context.Background(), &models.User{ID: "adv-1", Role: models.RoleAdvocate})
		require.NoError(t, err)
		require.Equal(t, 2, resp.TotalCount)
		for _, a := range resp.Items {
			visible := a.TargetUserID == nil || *a.TargetUserID == "adv-1"
			assert.True(t, visible, a.ID)
		}
	})
}

func TestService_Dismiss(t *testing.T) {
	advocate := &models.User{ID: "adv-1", Role: models.RoleAdvocate}
	partner := &models.User{ID: "partner-1", Role: models.RolePartner}

	t.Run("target dismisses own alert", func(t *testing.T) {
		repo := newFakeInboxRepo(&models.Alert{ID: "a-1", TargetUserID: target("adv-1")})

		dismissed, err := newInboxService(repo).Dismiss(context.Background(), advocate, "a-1")
		require.NoError(t, err)
		assert.True(t, dismissed.Dismissed)
		require.NotNil(t, dismissed.DismissedAt)
		assert.Equal(t, serviceNow, *dismissed.DismissedAt)
	})

	t.Run("anyone dismisses a broadcast alert", func(t *testing.T) {
		repo := newFakeInboxRepo(&models.Alert{ID: "a-1", TargetUserID: nil})

		_, err := newInboxService(repo).Dismiss(context.Background(), advocate, "a-1")
		require.NoError(t, err)
	})

	t.Run("non-target without view-all is rejected", func(t *testing.T) {
		repo := newFakeInboxRepo(&models.Alert{ID: "a-1", TargetUserID: target("adv-2")})

		_, err := newInboxService(repo).Dismiss(context.Background(), advocate, "a-1")
		assert.Equal(t, http.StatusForbidden, inboxStatusOf(t, err))
	})

	t.Run("view-all capability dismisses any alert", func(t *testing.T) {
		repo := newFakeInboxRepo(&models.Alert{ID: "a-1", TargetUserID: target("adv-2")})

		_, err := newInboxService(repo).Dismiss(context.Background(), partner, "a-1")
		require.NoError(t, err)
	})

	t.Run("unknown alert is not found", func(t *testing.T) {
		repo := newFakeInboxRepo()

		_, err := newInboxService(repo).Dismiss(context.Background(), advocate, "missing")
		assert.Equal(t, http.StatusNotFound, inboxStatusOf(t, err))
	})

	t.Run("second dismissal conflicts", func(t *testing.T) {
		repo := newFakeInboxRepo(&models.Alert{ID: "a-1", TargetUserID: target("adv-1")})
		svc := newInboxService(repo)

		_, err := svc.Dismiss(context.Background(), advocate, "a-1")
		require.NoError(t, err)

		_, err = svc.Dismiss(context.Background(), advocate, "a-1")
		assert.Equal(t, http.StatusConflict, inboxStatusOf(t, err))
	})
}
