package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/msashop/order-service/internal/order/domain"
	"github.com/msashop/order-service/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Publisher announces completed sagas on the order events topic. Callers
// treat failures as best-effort; the order itself is already committed.
type Publisher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewPublisher(log *slog.Logger, producer Producer, topic string) *Publisher {
	return &Publisher{log: log, producer: producer, topic: topic}
}

func (p *Publisher) OrderCreated(ctx context.Context, o domain.Order) error {
	return p.publish(ctx, "OrderCreated", o.ID, domain.OrderCreated{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		ProductID:   o.ProductID,
		Quantity:    o.Quantity,
		TotalAmount: o.TotalAmount,
	})
}

func (p *Publisher) OrderCancelled(ctx context.Context, o domain.Order) error {
	ev := domain.OrderCancelled{OrderID: o.ID, BuyerID: o.BuyerID}
	if o.PaymentRef != nil {
		ev.PaymentRef = *o.PaymentRef
	}
	return p.publish(ctx, "OrderCancelled", o.ID, ev)
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(eventType)}}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: headers,
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("event publish failed", "type", eventType, "key", key, "err", err)
		return err
	}
	return nil
}
