package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventStockLow           = "stock.low"
	EventSaleCompleted      = "sale.completed"
)

const producerName = "benfarm"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderLine struct {
	ProductID uint   `json:"product_id"`
	SellerID  uint   `json:"seller_id"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID   uint        `json:"order_id"`
	Reference string      `json:"reference"`
	BuyerID   uint        `json:"buyer_id"`
	Items     []OrderLine `json:"items"`
	Total     string      `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID   uint   `json:"order_id"`
	Reference string `json:"reference"`
	From      string `json:"from"`
	To        string `json:"to"`
	ActorID   uint   `json:"actor_id"`
}

type StockLowPayload struct {
	ProductID    uint `json:"product_id"`
	SellerID     uint `json:"seller_id"`
	Quantity     int  `json:"quantity"`
	ReorderLevel int  `json:"reorder_level"`
}

type SaleCompletedPayload struct {
	SaleID        uint   `json:"sale_id"`
	ReceiptNumber string `json:"receipt_number"`
	SellerID      uint   `json:"seller_id"`
	Total         string `json:"total"`
}

// NewEnvelope wraps payload; key becomes the correlation id.
func NewEnvelope(eventType, key string, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return &Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producerName,
		CorrelationID: key,
		Payload:       raw,
	}, nil
}

// Publisher emits domain events. Publishing is best effort and never blocks a request.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload interface{}) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

func (NopPublisher) Close() error { return nil }

// KafkaPublisher writes envelopes asynchronously, keyed so one order's events stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	log := logger.Named("kafka")
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
			BatchTimeout: 50 * time.Millisecond,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Warn("Failed to deliver events", zap.Int("count", len(messages)), zap.Error(err))
				}
			},
		},
		logger: log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) error {
	env, err := NewEnvelope(eventType, key, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
