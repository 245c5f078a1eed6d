package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

var (
	ErrTxRequired       = errors.New("outbox: transaction required")
	ErrTenantRequired   = errors.New("outbox: tenant required")
	ErrAggregateMissing = errors.New("outbox: aggregate id required")
)

// DomainEvent is what a service hands to Emit. AggregateType may be left
// empty; it is derived from EventType.
type DomainEvent struct {
	TenantID      uuid.UUID
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          interface{}
	Version       int
	OccurredAt    time.Time
}

func (e *DomainEvent) normalize() error {
	if e.TenantID == uuid.Nil {
		return ErrTenantRequired
	}
	if e.AggregateID == uuid.Nil {
		return ErrAggregateMissing
	}
	owner, ok := e.EventType.Aggregate()
	if !ok {
		return fmt.Errorf("outbox: unknown event type %q", e.EventType)
	}
	switch e.AggregateType {
	case "":
		e.AggregateType = owner
	case owner:
	default:
		return fmt.Errorf("outbox: %s belongs to %s, not %s", e.EventType, owner, e.AggregateType)
	}
	return nil
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit queues event on tx so it commits or rolls back with the state change.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return ErrTxRequired
	}
	if err := event.normalize(); err != nil {
		return err
	}
	envelope, err := newEnvelope(event)
	if err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("outbox: encode %s envelope: %w", event.EventType, err)
	}
	row := models.OutboxEvent{
		TenantID:      event.TenantID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       json.RawMessage(payloadJSON),
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     event.EventType,
			"tenant_id":      event.TenantID.String(),
			"aggregate_id":   event.AggregateID.String(),
			"aggregate_type": event.AggregateType,
		}), "outbox event queued")
	}
	return nil
}

// Actor builds an ActorRef, or nil when no actor is known.
func Actor(actorID *uuid.UUID, role string) *ActorRef {
	if actorID == nil || *actorID == uuid.Nil {
		return nil
	}
	return &ActorRef{ActorID: *actorID, Role: role}
}

// Pending counts events still waiting for publication across all tenants.
func (s *Service) Pending(ctx context.Context) (int64, error) {
	return s.repo.CountPending(s.repo.db.WithContext(ctx))
}
