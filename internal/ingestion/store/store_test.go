package store

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/postgres"
)

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// openOrSkip connects to the test database or skips when it is unavailable.
func openOrSkip(t *testing.T) *Store {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	cfg := config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "textindex_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "textindex"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
	db, err := postgres.New(context.Background(), cfg)
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := New(db)
	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := db.DB.ExecContext(ctx, `TRUNCATE documents`); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStageLoadAndStatus(t *testing.T) {
	s := openOrSkip(t)
	ctx := context.Background()

	err := s.Stage(ctx, []ingestion.DocumentEvent{
		ingestion.NewUpsert("2", map[string]string{"title": "Bar"}),
		ingestion.NewUpsert("1", map[string]string{"title": "Foo", "body": "Foo foo"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetStatus(ctx, "1", ingestion.StatusIndexed, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SetStatus(ctx, "2", ingestion.StatusRemoved, nil); err != nil {
		t.Fatal(err)
	}

	var refs []string
	n, err := s.Load(ctx, func(ref string, fields map[string]string) error {
		refs = append(refs, ref)
		if ref == "1" && fields["body"] != "Foo foo" {
			t.Errorf("fields = %v", fields)
		}
		return nil
	})
	if err != nil || n != 1 || len(refs) != 1 || refs[0] != "1" {
		t.Fatalf("Load = %v, %d, %v", refs, n, err)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[ingestion.StatusIndexed] != 1 || counts[ingestion.StatusRemoved] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestLoadStopsOnCallbackError(t *testing.T) {
	s := openOrSkip(t)
	ctx := context.Background()
	_ = s.Stage(ctx, []ingestion.DocumentEvent{
		ingestion.NewUpsert("a", nil),
		ingestion.NewUpsert("b", nil),
	})
	stop := errors.New("stop")
	n, err := s.Load(ctx, func(string, map[string]string) error { return stop })
	if !errors.Is(err, stop) || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}
