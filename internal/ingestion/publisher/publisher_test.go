package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/kafka"
)

type recordingWriter struct {
	batches [][]kafka.Event
	err     error
}

func (w *recordingWriter) PublishBatch(_ context.Context, events []kafka.Event) error {
	w.batches = append(w.batches, events)
	return w.err
}

type recordingStager struct {
	staged []ingestion.DocumentEvent
}

func (s *recordingStager) Stage(_ context.Context, events []ingestion.DocumentEvent) error {
	s.staged = append(s.staged, events...)
	return nil
}

func TestPublishKeysByRef(t *testing.T) {
	w := &recordingWriter{}
	st := &recordingStager{}
	p := New(w, st)

	ev, err := p.Upsert(context.Background(), "doc-1", map[string]string{"title": "Foo"})
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID == "" || ev.Op != ingestion.OpUpsert {
		t.Fatalf("event = %+v", ev)
	}
	if len(w.batches) != 1 || w.batches[0][0].Key != "doc-1" {
		t.Fatalf("batches = %+v", w.batches)
	}
	if len(st.staged) != 1 || st.staged[0].Ref != "doc-1" {
		t.Fatalf("staged = %+v", st.staged)
	}
}

func TestPublishRejectsInvalidBatch(t *testing.T) {
	w := &recordingWriter{}
	st := &recordingStager{}
	p := New(w, st)

	err := p.Publish(context.Background(),
		ingestion.NewUpsert("ok", nil),
		ingestion.NewDelete(""),
	)
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(w.batches) != 0 || len(st.staged) != 0 {
		t.Fatal("nothing should be staged or written for an invalid batch")
	}
}

func TestPublishWithoutStager(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := New(w, nil)
	if _, err := p.Delete(context.Background(), "x"); err == nil {
		t.Fatal("writer error should surface")
	}
	if err := p.Publish(context.Background()); err != nil || len(w.batches) != 1 {
		t.Fatalf("empty publish should be a no-op: %v", err)
	}
}
