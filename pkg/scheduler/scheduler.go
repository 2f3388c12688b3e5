// Package scheduler runs the alert engine on an interval. A Redis lock
// ensures that with multiple instances deployed, only one runs each scan;
// the dedup in the alert store makes the occasional double scan harmless
// anyway.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/veritaslaw/custodia/pkg/alerts"
	"github.com/veritaslaw/custodia/pkg/metrics"
	"github.com/veritaslaw/custodia/pkg/redis"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

// ErrSchedulerAlreadyRunning is returned when starting a running scheduler.
var ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

const (
	// DefaultScanInterval is the default interval between alert scans.
	DefaultScanInterval = 5 * time.Minute

	// DefaultLockTTL is the default TTL for the scan lock.
	DefaultLockTTL = 4 * time.Minute

	// scanLockKey names the distributed lock guarding alert scans.
	scanLockKey = "alerts:scan"
)

// Scanner runs one alert scan.
type Scanner interface {
	Scan(ctx context.Context) alerts.ScanResult
}

// Config holds scheduler configuration.
type Config struct {
	// ScanInterval is how often to run the alert engine.
	ScanInterval time.Duration

	// LockTTL is how long the scan lock is held at most.
	LockTTL time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		ScanInterval: DefaultScanInterval,
		LockTTL:      DefaultLockTTL,
	}
}

// Scheduler periodically triggers alert scans.
type Scheduler struct {
	scanner Scanner
	locker  *redis.Locker
	config  Config
	logger  ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a new scheduler.
func NewScheduler(scanner Scanner, locker *redis.Locker, config Config, logger ectologger.Logger) *Scheduler {
	if config.ScanInterval <= 0 {
		config.ScanInterval = DefaultScanInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	return &Scheduler{
		scanner:  scanner,
		locker:   locker,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the scan loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting alert scheduler: scan_interval=%s", s.config.ScanInterval)

	go s.scanLoop(ctx)
	return nil
}

// Stop stops the scheduler gracefully.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping alert scheduler...")

	close(s.stopCh)

	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Alert scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Alert scheduler shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) scanLoop(ctx context.Context) {
	defer close(s.stoppedC)

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.runScan(ctx)

	for {
		select {
		case <-s.stopCh:
			s.logger.WithContext(ctx).Debug("Alert scan loop stopping")
			return
		case <-ticker.C:
			s.runScan(ctx)
		}
	}
}

// runScan runs a single scan under the distributed lock. Losing the lock
// means another instance is scanning; this cycle is skipped.
func (s *Scheduler) runScan(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Scheduler.runScan")
	defer span.End()

	start := time.Now()

	err := s.locker.WithLock(ctx, scanLockKey, s.config.LockTTL, func() error {
		result := s.scanner.Scan(ctx)
		s.logger.WithContext(ctx).Infof("Scheduled scan completed: created=%d failures=%d duration=%s",
			result.Created, result.Failures, time.Since(start))
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			metrics.RecordScanLockContention()
			s.logger.WithContext(ctx).Debug("Another instance is scanning; skipping cycle")
			return
		}
		s.logger.WithContext(ctx).WithError(err).Error("Failed to run scheduled alert scan")
	}
}
