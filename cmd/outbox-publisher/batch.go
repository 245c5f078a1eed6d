package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	"github.com/angelmondragon/stockledger-backend/pkg/metrics"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox/registry"
)

// inflight is one event whose message has been handed to the publisher and
// whose result has not been collected yet.
type inflight struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	pub      publisher
	result   publishResult
	fields   map[string]any
}

// batchOutcome summarises one pass over the outbox for the batch log line and
// the publisher metrics.
type batchOutcome metrics.OutboxBatch

func (o batchOutcome) fields() map[string]any {
	return map[string]any{
		"published":     o.Published,
		"retrying":      o.Retrying,
		"deferred":      o.Deferred,
		"dead_lettered": o.DeadLettered,
	}
}

// processBatch claims a batch, sends every message before waiting on any
// result, then settles rows in claim order. Pub/Sub pauses an ordering key after
// a failure, so later events of the same aggregate are deferred without spending
// an attempt and the key is resumed once at the end.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	var outcome batchOutcome
	start := time.Now()

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		processed = true

		pending := make([]inflight, 0, len(events))
		for _, event := range events {
			item, reason, terminal := s.send(ctx, event)
			if terminal != nil {
				if err := s.handleTerminal(ctx, tx, event, reason, terminal, item.fields); err != nil {
					return err
				}
				outcome.DeadLettered++
				continue
			}
			pending = append(pending, item)
		}

		failedKeys := map[uuid.UUID]publisher{}
		defer func() {
			for key, pub := range failedKeys {
				pub.ResumePublish(key.String())
			}
		}()

		for _, item := range pending {
			if err := s.settle(ctx, tx, item, failedKeys, &outcome); err != nil {
				return err
			}
		}
		return nil
	})

	// a failed batch rolled back, so its tally describes nothing that happened
	if processed && err == nil {
		elapsed := time.Since(start)
		s.metrics.ObserveBatch(metrics.OutboxBatch(outcome), elapsed)
		logCtx := s.logg.WithFields(ctx, outcome.fields())
		logCtx = s.logg.WithField(logCtx, "duration_ms", elapsed.Milliseconds())
		s.logg.Info(logCtx, "outbox batch settled")
	}
	return processed, err
}

// send resolves and publishes one event. A non-nil error means the event can
// never be published and belongs in the DLQ under the returned reason.
func (s *Service) send(ctx context.Context, event models.OutboxEvent) (inflight, enums.OutboxDLQErrorReason, error) {
	item := inflight{event: event}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		item.fields = s.eventFields(event, outbox.PayloadEnvelope{}, "")
		return item, enums.OutboxDLQReasonUnresolvable, err
	}
	item.resolved = resolved
	topic := resolved.Descriptor.Topic
	item.fields = s.eventFields(event, resolved.Envelope, topic)

	pub := s.publisherFactory(topic)
	if pub == nil {
		return item, enums.OutboxDLQReasonUnroutable, fmt.Errorf("publisher not configured for topic %s", topic)
	}
	item.pub = pub

	result := pub.Publish(ctx, s.message(event, resolved))
	if result == nil {
		return item, enums.OutboxDLQReasonUnroutable, fmt.Errorf("publisher returned nil for topic %s", topic)
	}
	item.result = result
	return item, "", nil
}

func (s *Service) message(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"tenant_id":      event.TenantID.String(),
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, item inflight, failedKeys map[uuid.UUID]publisher, outcome *batchOutcome) error {
	event := item.event
	getCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	_, err := item.result.Get(getCtx)
	cancel()

	if err == nil {
		if _, blocked := failedKeys[event.AggregateID]; blocked {
			// cannot happen while Pub/Sub pauses the key; keep the row published anyway
			s.logg.Warn(s.logg.WithFields(ctx, item.fields), "publish succeeded behind a failed ordering key")
		}
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		outcome.Published++
		return nil
	}

	if _, blocked := failedKeys[event.AggregateID]; blocked {
		outcome.Deferred++
		return nil
	}
	failedKeys[event.AggregateID] = item.pub

	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		if err := s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, item.fields); err != nil {
			return err
		}
		outcome.DeadLettered++
		return nil
	}

	nextAttempt := event.AttemptCount + 1
	item.fields["attempt_count"] = nextAttempt
	if nextAttempt >= s.maxAttempts {
		item.fields["terminal_reason"] = "max_attempts"
		terminalErr := fmt.Errorf("max publish attempts reached: %w", err)
		if err := s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminalErr, item.fields); err != nil {
			return err
		}
		outcome.DeadLettered++
		return nil
	}

	logCtx := s.logg.WithField(s.logg.WithFields(ctx, item.fields), "error", err.Error())
	s.logg.Warn(logCtx, "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, err); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	outcome.Retrying++
	return nil
}

func (s *Service) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["replayable"] = reason.Replayable()
	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", cause.Error())
	s.logg.Warn(logCtx, "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		TenantID:      event.TenantID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"tenant_id":      event.TenantID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
