// Package handler exposes the ingestion endpoints. Accepted documents are
// published as events; the index reflects them once the consumer applies
// them.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/logger"
)

const maxBodyBytes = 8 << 20

// Publisher is implemented by *publisher.Publisher.
type Publisher interface {
	Upsert(ctx context.Context, ref string, fields map[string]string) (ingestion.DocumentEvent, error)
	Delete(ctx context.Context, ref string) (ingestion.DocumentEvent, error)
}

type Handler struct {
	publisher Publisher
	logger    *slog.Logger
}

func New(pub Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /documents", h.Upsert)
	mux.HandleFunc("DELETE /documents/{ref}", h.Delete)
}

func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req ingestion.UpsertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ev, err := h.publisher.Upsert(r.Context(), req.Ref, req.Fields)
	h.respond(w, r, ev, err)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ev, err := h.publisher.Delete(r.Context(), r.PathValue("ref"))
	h.respond(w, r, ev, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, ev ingestion.DocumentEvent, err error) {
	log := logger.FromContext(r.Context())
	if err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		log.Error("publishing document event failed", "ref", ev.Ref, "op", ev.Op, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "could not publish document event")
		return
	}
	log.Info("document event accepted", "ref", ev.Ref, "op", ev.Op, "event_id", ev.ID)
	h.writeJSON(w, http.StatusAccepted, ingestion.AcceptedResponse{
		EventID: ev.ID,
		Ref:     ev.Ref,
		Op:      ev.Op,
		Status:  ingestion.StatusPending,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
