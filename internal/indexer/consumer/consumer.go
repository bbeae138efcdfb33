// Package consumer applies document events from Kafka to the indexer engine
// and records each document's outcome in PostgreSQL.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/resilience"
)

// Applier is the write side of the engine; *indexer.Engine satisfies it.
type Applier interface {
	IndexDocument(ref string, fields map[string]string) error
	Remove(ref string) bool
}

// StatusUpdater records per-document outcomes; *store.Store satisfies it.
type StatusUpdater interface {
	SetStatus(ctx context.Context, ref, status string, cause error) error
}

type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start consumes until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

func (ic *IndexConsumer) Close() error {
	return ic.consumer.Close()
}

// HandleMessage returns a handler that applies each event to engine.
// Events that can never apply (undecodable, invalid, rejected by the engine)
// are marked FAILED and skipped; a failing status update leaves the message
// uncommitted so it is redelivered. Re-applying an event is harmless since
// upserts replace and deletes of missing refs are no-ops. statuses and m may
// be nil.
func HandleMessage(engine Applier, statuses StatusUpdater, m *metrics.Metrics) kafka.MessageHandler {
	h := &messageHandler{
		engine:   engine,
		statuses: statuses,
		metrics:  m,
		logger:   slog.Default().With("component", "index-consumer"),
	}
	return h.handle
}

type messageHandler struct {
	engine   Applier
	statuses StatusUpdater
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func (h *messageHandler) handle(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
	if err != nil {
		h.metrics.ObserveEvent("decode", err)
		// events are keyed by ref
		if len(key) > 0 {
			if serr := h.setStatus(ctx, string(key), ingestion.StatusFailed, err); serr != nil {
				return serr
			}
		}
		return fmt.Errorf("key %q: %w", key, err)
	}
	if event.ID != "" {
		ctx = logger.WithOperation(ctx, event.ID)
	}
	log := logger.FromContext(ctx)

	if err := validator.ValidateEvent(&event); err != nil {
		h.metrics.ObserveEvent(string(event.Op), err)
		if event.Ref != "" {
			if serr := h.setStatus(ctx, event.Ref, ingestion.StatusFailed, err); serr != nil {
				return serr
			}
		}
		return kafka.Skip(err)
	}

	var status string
	var applyErr error
	switch event.Op {
	case ingestion.OpUpsert:
		applyErr = h.engine.IndexDocument(event.Ref, event.Fields)
		status = ingestion.StatusIndexed
	case ingestion.OpDelete:
		removed := h.engine.Remove(event.Ref)
		status = ingestion.StatusRemoved
		log.Debug("delete applied", "ref", event.Ref, "removed", removed)
	}
	h.metrics.ObserveEvent(string(event.Op), applyErr)

	if applyErr != nil {
		if serr := h.setStatus(ctx, event.Ref, ingestion.StatusFailed, applyErr); serr != nil {
			return serr
		}
		if errors.Is(applyErr, apperrors.ErrInvalidInput) {
			return kafka.Skip(applyErr)
		}
		return fmt.Errorf("applying %s of %q: %w", event.Op, event.Ref, applyErr)
	}
	if err := h.setStatus(ctx, event.Ref, status, nil); err != nil {
		return err
	}
	log.Info("document event applied", "ref", event.Ref, "op", event.Op)
	return nil
}

func (h *messageHandler) setStatus(ctx context.Context, ref, status string, cause error) error {
	if h.statuses == nil {
		return nil
	}
	err := resilience.Retry(ctx, "document-status", resilience.RetryConfig{}, func() error {
		return h.statuses.SetStatus(ctx, ref, status, cause)
	})
	if err != nil {
		h.logger.Error("failed to update document status", "ref", ref, "status", status, "error", err)
	}
	return err
}
