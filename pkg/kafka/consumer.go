// Package kafka wraps segmentio/kafka-go for the document event topic. The
// producer writes JSON values keyed by document ref; the consumer hands each
// message to a MessageHandler and commits only what the handler accepted.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one message. Returning an error leaves the offset
// uncommitted unless the error is marked with Skip.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// errSkip marks a message that can never succeed (undecodable, invalid) and
// should be committed past instead of redelivered.
var errSkip = errors.New("skip message")

// Skip wraps err so the consumer commits the message after logging it.
func Skip(err error) error {
	return fmt.Errorf("%w: %w", errSkip, err)
}

// IsSkip reports whether err was produced by Skip.
func IsSkip(err error) bool {
	return errors.Is(err, errSkip)
}

type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
}

// NewConsumer creates a group consumer for topic. A fresh group starts at
// the earliest offset so a new indexer replays the whole topic.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
}

// Start runs the fetch/handle/commit loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			if !IsSkip(err) {
				c.logger.Error("failed to process message, will be redelivered",
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
				continue
			}
			c.logger.Warn("dropping message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T. Decoding failures are
// wrapped with Skip since redelivery cannot fix them.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, Skip(fmt.Errorf("decoding kafka message: %w", err))
	}
	return result, nil
}
