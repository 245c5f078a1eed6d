package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func payloadOf[T any]() func() interface{} {
	return func() interface{} { return new(T) }
}

var payloadFactories = map[enums.OutboxEventType]func() interface{}{
	enums.EventOrderCreated:        payloadOf[payloads.OrderCreatedEvent](),
	enums.EventOrderStatusChanged:  payloadOf[payloads.OrderStatusChangedEvent](),
	enums.EventOrderFulfilled:      payloadOf[payloads.OrderFulfilledEvent](),
	enums.EventStockMoved:          payloadOf[payloads.StockMovedEvent](),
	enums.EventStockReserved:       payloadOf[payloads.ReservationEvent](),
	enums.EventReservationReleased: payloadOf[payloads.ReservationEvent](),
	enums.EventAdjustmentApproved:  payloadOf[payloads.AdjustmentDecisionEvent](),
	enums.EventAdjustmentRejected:  payloadOf[payloads.AdjustmentDecisionEvent](),
	enums.EventLowStockRaised:      payloadOf[payloads.LowStockRaisedEvent](),
}

// NewEventRegistry routes every event to the inventory topic unless
// cfg.TopicOverrides names another topic for its type.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.InventoryTopic == "" {
		return nil, fmt.Errorf("inventory topic is required")
	}
	overrides := make(map[enums.OutboxEventType]string, len(cfg.TopicOverrides))
	for raw, topic := range cfg.TopicOverrides {
		eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("topic override: %w", err)
		}
		if topic = strings.TrimSpace(topic); topic == "" {
			return nil, fmt.Errorf("topic override for %s is empty", eventType)
		}
		overrides[eventType] = topic
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(payloadFactories))}
	for eventType, factory := range payloadFactories {
		aggregate, ok := eventType.Aggregate()
		if !ok {
			return nil, fmt.Errorf("event %s has no aggregate", eventType)
		}
		topic := cfg.InventoryTopic
		if t, ok := overrides[eventType]; ok {
			topic = t
		}
		reg.entries[eventType] = EventDescriptor{
			EventType:      eventType,
			AggregateType:  aggregate,
			Topic:          topic,
			PayloadFactory: factory,
		}
	}
	return reg, nil
}

// Topics lists the distinct topics the registry can route to.
func (r *EventRegistry) Topics() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		out = append(out, desc.Topic)
	}
	return out
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	switch {
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	case event.TenantID == uuid.Nil:
		return nil, NewNonRetryableError(fmt.Errorf("missing tenant_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload, event.TenantID)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
