package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/gestion-ventes-api/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Order lifecycle event types
const (
	EventOrderPlaced        = "order.placed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
)

const eventProducer = "gestion-ventes-api"

// Envelope wraps every published event
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// OrderEventLine is one line of an order event payload
type OrderEventLine struct {
	SellerProductID uint            `json:"seller_product_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
}

// OrderEventPayload describes an order after a lifecycle change
type OrderEventPayload struct {
	OrderID        uint             `json:"order_id"`
	BuyerID        uint             `json:"buyer_id"`
	Status         string           `json:"status"`
	PreviousStatus string           `json:"previous_status,omitempty"`
	Total          decimal.Decimal  `json:"total"`
	Lines          []OrderEventLine `json:"lines"`
}

func newOrderEventPayload(o *models.Order, previous string) OrderEventPayload {
	p := OrderEventPayload{
		OrderID:        o.ID,
		BuyerID:        o.BuyerID,
		Status:         string(o.Status),
		PreviousStatus: previous,
		Total:          o.Total,
		Lines:          make([]OrderEventLine, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		p.Lines = append(p.Lines, OrderEventLine{SellerProductID: l.SellerProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return p
}

func orderKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// NewEnvelope marshals payload into a versioned envelope
func NewEnvelope(eventType, correlationID string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode payload: %w", err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      eventProducer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// EventPublisher emits domain events after their transaction committed
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload interface{}) error
}

// NopPublisher drops every event; used when no broker is configured
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

// KafkaPublisher queues envelopes on an in-memory inbox drained by one
// goroutine, so request handlers never wait on the broker
type KafkaPublisher struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	once    sync.Once
}

// NewKafkaPublisher creates a publisher for topic; call Start before Publish
func NewKafkaPublisher(brokers []string, topic string, buf int) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the writer loop until Close is called
func (p *KafkaPublisher) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				log.Printf("[events] failed to write %s: %v", headerValue(m, "event_type"), err)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			log.Printf("[events] failed to close kafka writer: %v", err)
		}
	}()
}

// Publish enqueues an event. A full inbox drops the event rather than block.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) error {
	env, err := NewEnvelope(eventType, key, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Time:    env.OccurredAt,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
	select {
	case p.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("event inbox full, dropping %s", eventType)
	}
}

// Close stops accepting events and flushes the inbox
func (p *KafkaPublisher) Close() {
	p.once.Do(func() { close(p.inbox) })
}

// WaitClosed blocks until the writer loop has flushed and exited
func (p *KafkaPublisher) WaitClosed() {
	<-p.closeCh
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
