package kafka

import (
	"context"
	"encoding/json"
	"time"

	"summit-ticketing/internal/models"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// PurchaseEvent is the envelope published on the purchase topic.
type PurchaseEvent struct {
	Type      string          `json:"type"`
	Purchase  models.Purchase `json:"purchase"`
	Timestamp time.Time       `json:"timestamp"`
}

func (p *Producer) PublishPurchaseCreated(purchase models.Purchase) error {
	return p.publish(EventPurchaseCreated, purchase)
}

func (p *Producer) PublishPurchaseStatusChanged(purchase models.Purchase) error {
	return p.publish(EventPurchaseStatusChanged, purchase)
}

func (p *Producer) publish(eventType string, purchase models.Purchase) error {
	event := PurchaseEvent{
		Type:      eventType,
		Purchase:  purchase,
		Timestamp: time.Now(),
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(purchase.ID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NopProducer satisfies the publisher interfaces when Kafka is disabled.
type NopProducer struct{}

func (NopProducer) PublishPurchaseCreated(models.Purchase) error       { return nil }
func (NopProducer) PublishPurchaseStatusChanged(models.Purchase) error { return nil }
