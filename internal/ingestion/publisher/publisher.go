// Package publisher validates document events, stages them in PostgreSQL
// when a store is configured, and publishes them to Kafka keyed by ref.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/kafka"
)

// EventWriter is the Kafka side of the publisher; *kafka.Producer
// satisfies it.
type EventWriter interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Stager records events before they are published; *store.Store
// satisfies it.
type Stager interface {
	Stage(ctx context.Context, events []ingestion.DocumentEvent) error
}

type Publisher struct {
	writer EventWriter
	stager Stager
	logger *slog.Logger
}

// New creates a Publisher. stager may be nil.
func New(writer EventWriter, stager Stager) *Publisher {
	return &Publisher{
		writer: writer,
		stager: stager,
		logger: slog.Default().With("component", "publisher"),
	}
}

// Upsert publishes a single upsert event.
func (p *Publisher) Upsert(ctx context.Context, ref string, fields map[string]string) (ingestion.DocumentEvent, error) {
	ev := ingestion.NewUpsert(ref, fields)
	return ev, p.Publish(ctx, ev)
}

// Delete publishes a single delete event.
func (p *Publisher) Delete(ctx context.Context, ref string) (ingestion.DocumentEvent, error) {
	ev := ingestion.NewDelete(ref)
	return ev, p.Publish(ctx, ev)
}

// Publish validates every event before anything is staged or written, so a
// batch is rejected as a whole.
func (p *Publisher) Publish(ctx context.Context, events ...ingestion.DocumentEvent) error {
	if len(events) == 0 {
		return nil
	}
	for i := range events {
		if err := validator.ValidateEvent(&events[i]); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	if p.stager != nil {
		if err := p.stager.Stage(ctx, events); err != nil {
			return fmt.Errorf("staging events: %w", err)
		}
	}
	batch := make([]kafka.Event, len(events))
	for i, ev := range events {
		batch[i] = kafka.Event{Key: ev.Ref, Value: ev}
	}
	if err := p.writer.PublishBatch(ctx, batch); err != nil {
		p.logger.Error("publish failed, documents left PENDING", "count", len(events), "error", err)
		return err
	}
	p.logger.Debug("events published", "count", len(events))
	return nil
}
