package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/risk-gateway/pkg/common/config"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  messageReader
	backoff time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(cfg *config.Config, topic string, groupID string) *Consumer {
	if topic == "" {
		topic = cfg.KafkaPredictionTopic
	}
	if groupID == "" {
		groupID = cfg.KafkaGroupID
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader, backoff: time.Second}
}

// Consume blocks until ctx is done. Undecodable messages are committed and
// skipped. A message whose handler fails is retried in place and never
// committed until it succeeds.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			c.wait(ctx)
			continue
		}

		var event models.Event
		if err := json.Unmarshal(message.Value, &event); err != nil {
			logger.Log.WithError(err).Error("Failed to unmarshal event")
			c.commit(ctx, message)
			continue
		}

		if err := c.handle(ctx, handler, event); err != nil {
			return err
		}
		c.commit(ctx, message)
	}
}

// handle retries the same event until the handler succeeds or ctx is done.
// Fetching past a failed message would let a later commit skip it.
func (c *Consumer) handle(ctx context.Context, handler EventHandler, event models.Event) error {
	for attempt := 1; ; attempt++ {
		err := handler(ctx, event)
		if err == nil {
			return nil
		}
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id": event.ID,
			"attempt":  attempt,
		}).Error("Failed to process event")

		c.wait(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil {
		logger.Log.WithError(err).Error("Failed to commit message")
	}
}

func (c *Consumer) wait(ctx context.Context) {
	if c.backoff <= 0 {
		return
	}
	select {
	case <-time.After(c.backoff):
	case <-ctx.Done():
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
