package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"

	"github.com/segmentio/kafka-go"
)

// Consumer reads payment-gateway events. Delivery is at-least-once; the
// handler must be idempotent (the reconciler is, keyed on gateway_ref).
type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, logger: log}
}

// Start blocks reading messages until the context is cancelled.
func (c *Consumer) Start(ctx context.Context, handler func(context.Context, models.GatewayEvent)) {
	c.logger.LogKafka("START", c.reader.Config().Topic, "payment event consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("KAFKA", fmt.Sprintf("read message: %v", err))
			continue
		}

		var event models.GatewayEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("unmarshal payment event: %v", err))
			continue
		}

		handler(ctx, event)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
