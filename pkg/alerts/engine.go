// Package alerts orchestrates the periodic scans that turn ledger,
// deadline and bottleneck state into alerts. Every pass is idempotent per
// invocation: creation goes through the dedup primitive, so re-running a
// scan with no state change produces nothing new.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/veritaslaw/custodia/pkg/metrics"
	"github.com/veritaslaw/custodia/pkg/models"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

// DeadlineRepository feeds the deadline pass.
type DeadlineRepository interface {
	ListPending(ctx context.Context) ([]models.Deadline, error)
}

// FileRepository resolves files and feeds the missing-digital-link pass.
type FileRepository interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
	ListActiveWithoutAttachments(ctx context.Context) ([]models.File, error)
}

// MovementRepository feeds the unacknowledged-movement pass.
type MovementRepository interface {
	ListUnacknowledgedBefore(ctx context.Context, cutoff time.Time) ([]models.Movement, error)
}

// UserRepository supplies the escalation fan-out targets.
type UserRepository interface {
	ListPartnerEquivalents(ctx context.Context) ([]models.User, error)
}

// AlertRepository is the dedup primitive: CreateIfNew inserts atomically
// unless an active alert with the same (type, file, target) exists.
type AlertRepository interface {
	CreateIfNew(ctx context.Context, a *models.Alert) (bool, error)
}

// BottleneckAnalyzer feeds the bottleneck pass.
type BottleneckAnalyzer interface {
	Analyze(ctx context.Context, thresholdDays int) ([]models.Bottleneck, error)
}

// Events receives a best-effort notification when a scan finishes.
type Events interface {
	AlertScanCompleted(ctx context.Context, created, failures int)
}

// upcomingMarks are the exact day counts at which an upcoming deadline
// alerts. Membership is exact: a deadline 2 days out does not alert.
var upcomingMarks = []int{7, 3, 1}

// Config holds the engine's thresholds.
type Config struct {
	// BottleneckThresholdDays is the minimum days held before a file
	// counts as a bottleneck.
	BottleneckThresholdDays int

	// CriticalHeldDays is the days-held boundary for critical severity
	// and partner escalation.
	CriticalHeldDays int

	// AckGrace is how long a movement may sit unacknowledged before the
	// recipient is alerted.
	AckGrace time.Duration
}

// DefaultConfig returns the default engine thresholds.
func DefaultConfig() Config {
	return Config{
		BottleneckThresholdDays: 7,
		CriticalHeldDays:        14,
		AckGrace:                24 * time.Hour,
	}
}

// ScanResult summarizes one engine scan.
type ScanResult struct {
	Created  int
	Failures int
}

// Engine runs the scan passes.
type Engine struct {
	deadlines  DeadlineRepository
	files      FileRepository
	movements  MovementRepository
	users      UserRepository
	alerts     AlertRepository
	bottleneck BottleneckAnalyzer
	events     Events
	config     Config
	logger     ectologger.Logger
	now        func() time.Time
}

// NewEngine creates a new alert engine.
func NewEngine(
	deadlines DeadlineRepository,
	files FileRepository,
	movements MovementRepository,
	users UserRepository,
	alerts AlertRepository,
	bottleneck BottleneckAnalyzer,
	events Events,
	config Config,
	logger ectologger.Logger,
) *Engine {
	if config.BottleneckThresholdDays <= 0 {
		config.BottleneckThresholdDays = 7
	}
	if config.CriticalHeldDays <= 0 {
		config.CriticalHeldDays = 14
	}
	if config.AckGrace <= 0 {
		config.AckGrace = 24 * time.Hour
	}

	return &Engine{
		deadlines:  deadlines,
		files:      files,
		movements:  movements,
		users:      users,
		alerts:     alerts,
		bottleneck: bottleneck,
		events:     events,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Scan runs the four passes. Passes are independent: a failing pass is
// logged and skipped, the rest still run, and the next scheduled scan
// retries everything. Overlapping scans are safe because all writes go
// through the dedup primitive.
func (e *Engine) Scan(ctx context.Context) ScanResult {
	ctx, span := tracing.StartSpan(ctx, "alerts.Engine.Scan")
	defer span.End()

	start := e.now()
	var result ScanResult

	passes := []struct {
		name string
		run  func(context.Context, *ScanResult) error
	}{
		{"deadlines", e.deadlinePass},
		{"bottlenecks", e.bottleneckPass},
		{"unacknowledged", e.unacknowledgedPass},
		{"missing_digital_link", e.missingLinkPass},
	}

	for _, pass := range passes {
		if err := pass.run(ctx, &result); err != nil {
			result.Failures++
			e.logger.WithContext(ctx).WithError(err).WithField("pass", pass.name).Warn("Alert pass failed; continuing with remaining passes")
		}
	}

	duration := time.Since(start)
	e.logger.WithContext(ctx).WithFields(map[string]any{
		"created":  result.Created,
		"failures": result.Failures,
		"duration": duration.String(),
	}).Info("Alert scan completed")
	metrics.RecordAlertScan(result.Created, result.Failures, duration.Seconds())

	if e.events != nil {
		e.events.AlertScanCompleted(ctx, result.Created, result.Failures)
	}
	return result
}

// createIfNew routes every alert through the dedup primitive and tallies
// the outcome. A creation failure is counted but never aborts the pass.
func (e *Engine) createIfNew(ctx context.Context, result *ScanResult, alert *models.Alert) {
	alert.ID = uuid.New().String()
	alert.CreatedAt = e.now().UTC()

	created, err := e.alerts.CreateIfNew(ctx, alert)
	if err != nil {
		result.Failures++
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"alert_type": alert.Type, "file_id": alert.FileID}).Warn("Failed to create alert; skipping")
		return
	}
	if created {
		result.Created++
	}
}

func targetOrBroadcast(userID string) *string {
	if userID == "" {
		return nil
	}
	return &userID
}

// deadlinePass raises overdue and exact-mark upcoming alerts, escalates
// overdue deadlines to every partner, and warns the holding custodian when
// a file sits outside its assigned advocates.
func (e *Engine) deadlinePass(ctx context.Context, result *ScanResult) error {
	ctx, span := tracing.StartSpan(ctx, "alerts.Engine.deadlinePass")
	defer span.End()

	pending, err := e.deadlines.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	partners, err := e.users.ListPartnerEquivalents(ctx)
	if err != nil {
		return err
	}

	now := e.now().UTC()
	for i := range pending {
		d := pending[i]
		file, err := e.files.GetByID(ctx, d.FileID)
		if err != nil || file == nil {
			result.Failures++
			e.logger.WithContext(ctx).WithError(err).WithField("file_id", d.FileID).Warn("Skipping deadline with unresolvable file")
			continue
		}

		if d.DueDate.Before(now) {
			e.createIfNew(ctx, result, &models.Alert{
				Type:         models.AlertDeadlineOverdue,
				Severity:     models.SeverityCritical,
				FileID:       &d.FileID,
				DeadlineID:   &d.ID,
				TargetUserID: targetOrBroadcast(file.FirstAssignedAdvocate()),
				Message:      fmt.Sprintf("%s deadline for file %s was due %s and is overdue", d.Type, d.FileID, d.DueDate.Format("2006-01-02")),
			})
			for _, partner := range partners {
				e.createIfNew(ctx, result, &models.Alert{
					Type:         models.AlertEscalation,
					Severity:     models.SeverityCritical,
					FileID:       &d.FileID,
					DeadlineID:   &d.ID,
					TargetUserID: targetOrBroadcast(partner.ID),
					Message:      fmt.Sprintf("Escalation: file %s has an overdue %s deadline", d.FileID, d.Type),
				})
			}
			continue
		}

		daysUntil := d.DaysUntil(now)
		if !ectolinq.Contains(upcomingMarks, daysUntil) {
			continue
		}

		severity := models.SeverityInfo
		if daysUntil == 1 {
			severity = models.SeverityCritical
		} else if daysUntil <= 3 {
			severity = models.SeverityWarning
		}
		e.createIfNew(ctx, result, &models.Alert{
			Type:         models.AlertDeadlineUpcoming,
			Severity:     severity,
			FileID:       &d.FileID,
			DeadlineID:   &d.ID,
			TargetUserID: targetOrBroadcast(file.FirstAssignedAdvocate()),
			Message:      fmt.Sprintf("%s deadline for file %s is due in %d day(s)", d.Type, d.FileID, daysUntil),
		})

		if !file.HasAssignedAdvocate(file.CurrentCustodian) {
			e.createIfNew(ctx, result, &models.Alert{
				Type:         models.AlertFileLocationWarning,
				Severity:     models.SeverityWarning,
				FileID:       &d.FileID,
				TargetUserID: targetOrBroadcast(file.CurrentCustodian),
				Message:      fmt.Sprintf("File %s has a deadline in %d day(s) but is not held by an assigned advocate", d.FileID, daysUntil),
			})
		}
	}

	return nil
}

// bottleneckPass alerts custodians sitting on files, escalating to every
// partner once the hold crosses the critical boundary.
func (e *Engine) bottleneckPass(ctx context.Context, result *ScanResult) error {
	ctx, span := tracing.StartSpan(ctx, "alerts.Engine.bottleneckPass")
	defer span.End()

	bottlenecks, err := e.bottleneck.Analyze(ctx, e.config.BottleneckThresholdDays)
	if err != nil {
		return err
	}
	if len(bottlenecks) == 0 {
		return nil
	}

	partners, err := e.users.ListPartnerEquivalents(ctx)
	if err != nil {
		return err
	}

	for i := range bottlenecks {
		b := bottlenecks[i]
		severity := models.SeverityWarning
		if b.DaysHeld >= e.config.CriticalHeldDays {
			severity = models.SeverityCritical
		}
		e.createIfNew(ctx, result, &models.Alert{
			Type:         models.AlertFileOverdueAtCustodian,
			Severity:     severity,
			FileID:       &b.File.ID,
			TargetUserID: targetOrBroadcast(b.CurrentCustodian),
			Message:      fmt.Sprintf("File %s has been held for %d days without movement", b.File.ID, b.DaysHeld),
		})

		if b.DaysHeld >= e.config.CriticalHeldDays {
			for _, partner := range partners {
				e.createIfNew(ctx, result, &models.Alert{
					Type:         models.AlertEscalation,
					Severity:     models.SeverityCritical,
					FileID:       &b.File.ID,
					TargetUserID: targetOrBroadcast(partner.ID),
					Message:      fmt.Sprintf("Escalation: file %s has sat with one custodian for %d days", b.File.ID, b.DaysHeld),
				})
			}
		}
	}

	return nil
}

// unacknowledgedPass nags recipients who have not confirmed receipt within
// the grace period.
func (e *Engine) unacknowledgedPass(ctx context.Context, result *ScanResult) error {
	ctx, span := tracing.StartSpan(ctx, "alerts.Engine.unacknowledgedPass")
	defer span.End()

	cutoff := e.now().UTC().Add(-e.config.AckGrace)
	movements, err := e.movements.ListUnacknowledgedBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	for i := range movements {
		m := movements[i]
		e.createIfNew(ctx, result, &models.Alert{
			Type:         models.AlertMovementUnacknowledged,
			Severity:     models.SeverityWarning,
			FileID:       &m.FileID,
			TargetUserID: targetOrBroadcast(m.ToCustodian),
			Message:      fmt.Sprintf("Receipt of file %s has not been acknowledged since %s", m.FileID, m.MovedAt.Format("2006-01-02 15:04")),
		})
	}

	return nil
}

// missingLinkPass flags active files with no linked digital documents.
func (e *Engine) missingLinkPass(ctx context.Context, result *ScanResult) error {
	ctx, span := tracing.StartSpan(ctx, "alerts.Engine.missingLinkPass")
	defer span.End()

	files, err := e.files.ListActiveWithoutAttachments(ctx)
	if err != nil {
		return err
	}

	for i := range files {
		f := files[i]
		e.createIfNew(ctx, result, &models.Alert{
			Type:         models.AlertMissingDigitalLink,
			Severity:     models.SeverityInfo,
			FileID:       &f.ID,
			TargetUserID: targetOrBroadcast(f.FirstAssignedAdvocate()),
			Message:      fmt.Sprintf("File %s has no linked digital documents", f.ID),
		})
	}

	return nil
}
