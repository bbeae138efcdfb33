// Package ingestion defines the document events that flow from producers
// (the CLI, the ingestion endpoint) through Kafka into the indexer, and the
// lifecycle statuses recorded for each document in PostgreSQL.
package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// Op is the mutation a DocumentEvent asks the indexer to apply.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Document lifecycle statuses kept in the documents table.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
	StatusFailed  = "FAILED"
	StatusRemoved = "REMOVED"
)

// DocumentEvent is the Kafka payload. Events are keyed by Ref so every
// mutation of one document is consumed in order.
type DocumentEvent struct {
	ID        string            `json:"id"`
	Op        Op                `json:"op"`
	Ref       string            `json:"ref"`
	Fields    map[string]string `json:"fields,omitempty"`
	EmittedAt time.Time         `json:"emitted_at"`
}

// NewUpsert builds an upsert event with a fresh id.
func NewUpsert(ref string, fields map[string]string) DocumentEvent {
	return DocumentEvent{
		ID:        uuid.NewString(),
		Op:        OpUpsert,
		Ref:       ref,
		Fields:    fields,
		EmittedAt: time.Now().UTC(),
	}
}

// NewDelete builds a delete event with a fresh id.
func NewDelete(ref string) DocumentEvent {
	return DocumentEvent{
		ID:        uuid.NewString(),
		Op:        OpDelete,
		Ref:       ref,
		EmittedAt: time.Now().UTC(),
	}
}

// UpsertRequest is the JSON body accepted by POST /documents.
type UpsertRequest struct {
	Ref    string            `json:"ref"`
	Fields map[string]string `json:"fields"`
}

// AcceptedResponse is returned once an event has been handed to Kafka.
type AcceptedResponse struct {
	EventID string `json:"event_id"`
	Ref     string `json:"ref"`
	Op      Op     `json:"op"`
	Status  string `json:"status"`
}
