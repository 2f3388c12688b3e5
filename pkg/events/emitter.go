// Package events emits custody lifecycle notifications. Emission is
// best-effort: the ledger's database state is the source of truth and a
// failed publish never fails the operation that triggered it.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/veritaslaw/custodia/pkg/kafka"
	"github.com/veritaslaw/custodia/pkg/models"
	"github.com/veritaslaw/custodia/pkg/tracing"
)

// Emitter publishes custody events through the Kafka producer.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter.
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *Emitter) publish(ctx context.Context, event *kafka.CustodyEvent) {
	if err := e.producer.PublishCustodyEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", event.EventType).Warn("Failed to emit custody event")
	}
}

// FileCreated emits a file_created event.
func (e *Emitter) FileCreated(ctx context.Context, f *models.File) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.FileCreated")
	defer span.End()

	data, _ := json.Marshal(f)
	e.publish(ctx, &kafka.CustodyEvent{
		EventType: "file_created",
		FileID:    f.ID,
		Data:      data,
	})
}

// MovementLogged emits a movement_logged event, plus a movement_received
// push addressed to the new custodian so they know a file is headed their
// way.
func (e *Emitter) MovementLogged(ctx context.Context, m *models.Movement) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.MovementLogged")
	defer span.End()

	data, _ := json.Marshal(m)
	e.publish(ctx, &kafka.CustodyEvent{
		EventType:  "movement_logged",
		FileID:     m.FileID,
		MovementID: m.ID,
		Data:       data,
	})
	e.publish(ctx, &kafka.CustodyEvent{
		EventType:    "movement_received",
		FileID:       m.FileID,
		MovementID:   m.ID,
		TargetUserID: m.ToCustodian,
		Data:         data,
	})
}

// MovementAcknowledged emits a movement_acknowledged event.
func (e *Emitter) MovementAcknowledged(ctx context.Context, m *models.Movement) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.MovementAcknowledged")
	defer span.End()

	data, _ := json.Marshal(m)
	e.publish(ctx, &kafka.CustodyEvent{
		EventType:  "movement_acknowledged",
		FileID:     m.FileID,
		MovementID: m.ID,
		Data:       data,
	})
}

// DeadlineAdded emits a deadline_added event.
func (e *Emitter) DeadlineAdded(ctx context.Context, d *models.Deadline) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.DeadlineAdded")
	defer span.End()

	data, _ := json.Marshal(d)
	e.publish(ctx, &kafka.CustodyEvent{
		EventType:  "deadline_added",
		FileID:     d.FileID,
		DeadlineID: d.ID,
		Data:       data,
	})
}

// AlertScanCompleted emits an alerts_scan_completed event.
func (e *Emitter) AlertScanCompleted(ctx context.Context, created, failures int) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.AlertScanCompleted")
	defer span.End()

	data := json.RawMessage(fmt.Sprintf(`{"created":%d,"failures":%d}`, created, failures))
	e.publish(ctx, &kafka.CustodyEvent{
		EventType: "alerts_scan_completed",
		Data:      data,
	})
}
