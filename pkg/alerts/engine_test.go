package alerts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritaslaw/custodia/pkg/metrics"
	"github.com/veritaslaw/custodia/pkg/models"
)

var scanNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeDeadlineRepo struct {
	pending []models.Deadline
	err     error
}

func (f *fakeDeadlineRepo) ListPending(ctx context.Context) ([]models.Deadline, error) {
	return f.pending, f.err
}

type fakeFileRepo struct {
	files  map[string]*models.File
	noLink []models.File
}

func (f *fakeFileRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	return f.files[id], nil
}

func (f *fakeFileRepo) ListActiveWithoutAttachments(ctx context.Context) ([]models.File, error) {
	return f.noLink, nil
}

type fakeMovementRepo struct {
	unacked []models.Movement
}

func (f *fakeMovementRepo) ListUnacknowledgedBefore(ctx context.Context, cutoff time.Time) ([]models.Movement, error) {
	var out []models.Movement
	for _, m := range f.unacked {
		if m.MovedAt.Before(cutoff) || m.MovedAt.Equal(cutoff) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	partners []models.User
}

func (f *fakeUserRepo) ListPartnerEquivalents(ctx context.Context) ([]models.User, error) {
	return f.partners, nil
}

// fakeAlertRepo mimics the partial-unique-index dedup: one active alert per
// (type, file, target).
type fakeAlertRepo struct {
	created []models.Alert
	seen    map[string]bool
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{seen: map[string]bool{}}
}

func (f *fakeAlertRepo) CreateIfNew(ctx context.Context, a *models.Alert) (bool, error) {
	fileID, targetID := "", ""
	if a.FileID != nil {
		fileID = *a.FileID
	}
	if a.TargetUserID != nil {
		targetID = *a.TargetUserID
	}
	key := fmt.Sprintf("%s|%s|%s", a.Type, fileID, targetID)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.created = append(f.created, *a)
	return true, nil
}

func (f *fakeAlertRepo) ofType(t models.AlertType) []models.Alert {
	var out []models.Alert
	for _, a := range f.created {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

type fakeAnalyzer struct {
	items []models.Bottleneck
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, thresholdDays int) ([]models.Bottleneck, error) {
	return f.items, nil
}

type engineFixture struct {
	deadlines *fakeDeadlineRepo
	files     *fakeFileRepo
	movements *fakeMovementRepo
	users     *fakeUserRepo
	alerts    *fakeAlertRepo
	analyzer  *fakeAnalyzer
	engine    *Engine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		deadlines: &fakeDeadlineRepo{},
		files:     &fakeFileRepo{files: map[string]*models.File{}},
		movements: &fakeMovementRepo{},
		users:     &fakeUserRepo{},
		alerts:    newFakeAlertRepo(),
		analyzer:  &fakeAnalyzer{},
	}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f.engine = NewEngine(f.deadlines, f.files, f.movements, f.users, f.alerts, f.analyzer, nil, DefaultConfig(), logger)
	f.engine.now = func() time.Time { return scanNow }
	return f
}

func (f *engineFixture) addFile(id string, custodian string, advocates ...string) {
	f.files.files[id] = &models.File{
		ID:                id,
		Status:            models.FileStatusActive,
		CurrentCustodian:  custodian,
		AssignedAdvocates: advocates,
	}
}

func (f *engineFixture) addDeadline(id, fileID string, due time.Time) {
	f.deadlines.pending = append(f.deadlines.pending, models.Deadline{
		ID:      id,
		FileID:  fileID,
		Type:    models.DeadlineHearing,
		DueDate: due,
		Status:  models.DeadlinePending,
	})
}

func TestEngine_UpcomingThresholds(t *testing.T) {
	tests := []struct {
		name         string
		due          time.Time
		wantSeverity models.Severity
		wantAlert    bool
	}{
		{"seven days out is info", scanNow.Add(7 * 24 * time.Hour), models.SeverityInfo, true},
		{"three days out is warning", scanNow.Add(3 * 24 * time.Hour), models.SeverityWarning, true},
		{"one day out is critical", scanNow.Add(24 * time.Hour), models.SeverityCritical, true},
		{"partial day rounds up to one day", scanNow.Add(6 * time.Hour), models.SeverityCritical, true},
		{"two days out is silent", scanNow.Add(2 * 24 * time.Hour), "", false},
		{"five days out is silent", scanNow.Add(5 * 24 * time.Hour), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture()
			f.addFile("CT-2025-0001", "adv-1", "adv-1")
			f.addDeadline("dl-1", "CT-2025-0001", tt.due)

			result := f.engine.Scan(context.Background())
			assert.Zero(t, result.Failures)

			upcoming := f.alerts.ofType(models.AlertDeadlineUpcoming)
			if !tt.wantAlert {
				assert.Empty(t, upcoming)
				return
			}
			require.Len(t, upcoming, 1)
			assert.Equal(t, tt.wantSeverity, upcoming[0].Severity)
			require.NotNil(t, upcoming[0].TargetUserID)
			assert.Equal(t, "adv-1", *upcoming[0].TargetUserID)
			require.NotNil(t, upcoming[0].DeadlineID)
			assert.Equal(t, "dl-1", *upcoming[0].DeadlineID)
		})
	}
}

func TestEngine_OverdueDeadlineEscalatesToEveryPartner(t *testing.T) {
	f := newEngineFixture()
	f.addFile("CT-2025-0001", "adv-1", "adv-1")
	// One hour past due: already overdue even though the day ceiling is 0.
	f.addDeadline("dl-1", "CT-2025-0001", scanNow.Add(-time.Hour))
	f.users.partners = []models.User{
		{ID: "partner-1", Role: models.RolePartner},
		{ID: "partner-2", Role: models.RolePartner},
	}

	result := f.engine.Scan(context.Background())
	assert.Zero(t, result.Failures)

	overdue := f.alerts.ofType(models.AlertDeadlineOverdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, models.SeverityCritical, overdue[0].Severity)
	require.NotNil(t, overdue[0].TargetUserID)
	assert.Equal(t, "adv-1", *overdue[0].TargetUserID)

	escalations := f.alerts.ofType(models.AlertEscalation)
	require.Len(t, escalations, 2)
	targets := map[string]bool{}
	for _, a := range escalations {
		require.NotNil(t, a.TargetUserID)
		targets[*a.TargetUserID] = true
		assert.Equal(t, models.SeverityCritical, a.Severity)
	}
	assert.True(t, targets["partner-1"])
	assert.True(t, targets["partner-2"])

	// No upcoming alert for an overdue deadline.
	assert.Empty(t, f.alerts.ofType(models.AlertDeadlineUpcoming))
}

func TestEngine_ScanIsIdempotent(t *testing.T) {
	f := newEngineFixture()
	f.addFile("CT-2025-0001", "clerk-1", "adv-1")
	f.addDeadline("dl-1", "CT-2025-0001", scanNow.Add(-time.Hour))
	f.users.partners = []models.User{{ID: "partner-1", Role: models.RolePartner}}
	f.analyzer.items = []models.Bottleneck{{
		File:             *f.files.files["CT-2025-0001"],
		CurrentCustodian: "clerk-1",
		DaysHeld:         10,
		RiskLevel:        models.RiskMedium,
	}}

	first := f.engine.Scan(context.Background())
	assert.Positive(t, first.Created)
	assert.Zero(t, first.Failures)

	second := f.engine.Scan(context.Background())
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Failures)
}

func TestEngine_BottleneckSeverityTiers(t *testing.T) {
	t.Run("below critical boundary warns the custodian only", func(t *testing.T) {
		f := newEngineFixture()
		f.addFile("CT-2025-0002", "clerk-1")
		f.users.partners = []models.User{{ID: "partner-1", Role: models.RolePartner}}
		f.analyzer.items = []models.Bottleneck{{
			File:             *f.files.files["CT-2025-0002"],
			CurrentCustodian: "clerk-1",
			DaysHeld:         13,
			RiskLevel:        models.RiskMedium,
		}}

		f.engine.Scan(context.Background())

		held := f.alerts.ofType(models.AlertFileOverdueAtCustodian)
		require.Len(t, held, 1)
		assert.Equal(t, models.SeverityWarning, held[0].Severity)
		require.NotNil(t, held[0].TargetUserID)
		assert.Equal(t, "clerk-1", *held[0].TargetUserID)
		assert.Empty(t, f.alerts.ofType(models.AlertEscalation))
	})

	t.Run("at critical boundary escalates to partners", func(t *testing.T) {
		f := newEngineFixture()
		f.addFile("CT-2025-0002", "clerk-1")
		f.users.partners = []models.User{
			{ID: "partner-1", Role: models.RolePartner},
			{ID: "partner-2", Role: models.RolePartner},
		}
		f.analyzer.items = []models.Bottleneck{{
			File:             *f.files.files["CT-2025-0002"],
			CurrentCustodian: "clerk-1",
			DaysHeld:         14,
			RiskLevel:        models.RiskHigh,
		}}

		f.engine.Scan(context.Background())

		held := f.alerts.ofType(models.AlertFileOverdueAtCustodian)
		require.Len(t, held, 1)
		assert.Equal(t, models.SeverityCritical, held[0].Severity)
		assert.Len(t, f.alerts.ofType(models.AlertEscalation), 2)
	})
}

func TestEngine_UnacknowledgedMovements(t *testing.T) {
	f := newEngineFixture()
	f.movements.unacked = []models.Movement{
		{ID: "mv-1", FileID: "CT-2025-0003", ToCustodian: "adv-2", MovedAt: scanNow.Add(-25 * time.Hour)},
		{ID: "mv-2", FileID: "CT-2025-0004", ToCustodian: "adv-3", MovedAt: scanNow.Add(-2 * time.Hour)},
	}

	f.engine.Scan(context.Background())

	alerts := f.alerts.ofType(models.AlertMovementUnacknowledged)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
	require.NotNil(t, alerts[0].TargetUserID)
	assert.Equal(t, "adv-2", *alerts[0].TargetUserID)
	require.NotNil(t, alerts[0].FileID)
	assert.Equal(t, "CT-2025-0003", *alerts[0].FileID)
}

func TestEngine_MissingDigitalLinkBroadcastsWhenUnassigned(t *testing.T) {
	f := newEngineFixture()
	f.files.noLink = []models.File{
		{ID: "CT-2025-0005", Status: models.FileStatusActive, AssignedAdvocates: []string{"adv-1"}},
		{ID: "CT-2025-0006", Status: models.FileStatusActive},
	}

	f.engine.Scan(context.Background())

	alerts := f.alerts.ofType(models.AlertMissingDigitalLink)
	require.Len(t, alerts, 2)
	for _, a := range alerts {
		assert.Equal(t, models.SeverityInfo, a.Severity)
		require.NotNil(t, a.FileID)
		switch *a.FileID {
		case "CT-2025-0005":
			require.NotNil(t, a.TargetUserID)
			assert.Equal(t, "adv-1", *a.TargetUserID)
		case "CT-2025-0006":
			assert.Nil(t, a.TargetUserID, "file without advocates broadcasts")
		}
	}
}

func TestEngine_LocationWarningWhenCustodianNotAssigned(t *testing.T) {
	f := newEngineFixture()
	f.addFile("CT-2025-0007", "clerk-9", "adv-1", "adv-2")
	f.addDeadline("dl-7", "CT-2025-0007", scanNow.Add(3*24*time.Hour))

	f.engine.Scan(context.Background())

	warnings := f.alerts.ofType(models.AlertFileLocationWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.SeverityWarning, warnings[0].Severity)
	require.NotNil(t, warnings[0].TargetUserID)
	assert.Equal(t, "clerk-9", *warnings[0].TargetUserID)
}

func TestEngine_FailedPassDoesNotStopOthers(t *testing.T) {
	f := newEngineFixture()
	f.deadlines.err = errors.New("connection refused")
	f.files.noLink = []models.File{{ID: "CT-2025-0008", Status: models.FileStatusActive}}

	result := f.engine.Scan(context.Background())

	assert.Equal(t, 1, result.Failures)
	assert.Len(t, f.alerts.ofType(models.AlertMissingDigitalLink), 1)
}

func TestEngine_ScanRecordsMetrics(t *testing.T) {
	f := newEngineFixture()
	f.addFile("CT-2025-0009", "adv-1", "adv-1")
	f.addDeadline("d-9", "CT-2025-0009", scanNow.Add(7*24*time.Hour))

	scansBefore := testutil.ToFloat64(metrics.AlertScansTotal)
	createdBefore := testutil.ToFloat64(metrics.AlertsCreatedTotal)
	failuresBefore := testutil.ToFloat64(metrics.AlertScanFailuresTotal)

	result := f.engine.Scan(context.Background())
	require.Positive(t, result.Created)

	assert.Equal(t, scansBefore+1, testutil.ToFloat64(metrics.AlertScansTotal))
	assert.Equal(t, createdBefore+float64(result.Created), testutil.ToFloat64(metrics.AlertsCreatedTotal))
	assert.Equal(t, failuresBefore, testutil.ToFloat64(metrics.AlertScanFailuresTotal))
}
