// Package bottleneck derives "days held without movement" per active file
// from the custody ledger.
package bottleneck

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/veritaslaw/custodia/pkg/models"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

// HighRiskDays is the days-held boundary between medium and high risk.
const HighRiskDays = 14

// FileRepository lists the active files under analysis.
type FileRepository interface {
	ListActive(ctx context.Context) ([]models.File, error)
}

// MovementRepository supplies the most recent movement per active file.
type MovementRepository interface {
	ListLatestForActiveFiles(ctx context.Context) ([]models.Movement, error)
}

// Analyzer computes bottleneck reports.
type Analyzer struct {
	files     FileRepository
	movements MovementRepository
	logger    ectologger.Logger
	now       func() time.Time
}

// NewAnalyzer creates a new bottleneck analyzer.
func NewAnalyzer(files FileRepository, movements MovementRepository, logger ectologger.Logger) *Analyzer {
	return &Analyzer{
		files:     files,
		movements: movements,
		logger:    logger,
		now:       time.Now,
	}
}

// Analyze returns every active file held without movement for at least
// thresholdDays, sorted by days held descending. Registration is recorded
// as a movement, so a file that never changed hands is measured from its
// registration rather than silently skipped.
func (a *Analyzer) Analyze(ctx context.Context, thresholdDays int) ([]models.Bottleneck, error) {
	ctx, span := tracing.StartSpan(ctx, "bottleneck.Analyzer.Analyze")
	defer span.End()

	if thresholdDays <= 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "threshold_days must be positive")
	}

	files, err := a.files.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := a.movements.ListLatestForActiveFiles(ctx)
	if err != nil {
		return nil, err
	}

	latestByFile := make(map[string]models.Movement, len(latest))
	for _, m := range latest {
		latestByFile[m.FileID] = m
	}

	now := a.now().UTC()
	var results []models.Bottleneck
	for _, f := range files {
		m, ok := latestByFile[f.ID]
		if !ok {
			continue
		}
		daysHeld := models.DaysHeld(m.MovedAt, now)
		if daysHeld < thresholdDays {
			continue
		}
		risk := models.RiskMedium
		if daysHeld >= HighRiskDays {
			risk = models.RiskHigh
		}
		results = append(results, models.Bottleneck{
			File:             f,
			CurrentCustodian: f.CurrentCustodian,
			LastMovement:     m,
			DaysHeld:         daysHeld,
			RiskLevel:        risk,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DaysHeld > results[j].DaysHeld
	})

	return results, nil
}
