package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Index.Ref != "id" {
		t.Errorf("ref = %q, want id", cfg.Index.Ref)
	}
	if len(cfg.Index.Fields) != 2 || cfg.Index.Fields[0].Name != "title" || *cfg.Index.Fields[0].Boost != 10 {
		t.Errorf("unexpected default fields %+v", cfg.Index.Fields)
	}
	if cfg.Index.Fields[1].Boost != nil {
		t.Errorf("body boost should default to nil, got %v", *cfg.Index.Fields[1].Boost)
	}
	if cfg.Scoring.K1 != 1.2 || cfg.Scoring.B != 0.75 {
		t.Errorf("unexpected scoring defaults %+v", cfg.Scoring)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
index:
  ref: slug
  fields:
    - name: name
      boost: 3
    - name: description
  pipeline: [lowercase, trimmer]
  stages:
    - name: stemmer
      anchor: trimmer
      position: after
query:
  expand: true
snapshot:
  driver: sqlite
  path: /tmp/idx.db
  interval: 5s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Index.Ref != "slug" {
		t.Errorf("ref = %q", cfg.Index.Ref)
	}
	if len(cfg.Index.Fields) != 2 || *cfg.Index.Fields[0].Boost != 3 {
		t.Errorf("fields = %+v", cfg.Index.Fields)
	}
	if len(cfg.Index.Stages) != 1 || cfg.Index.Stages[0].Anchor != "trimmer" {
		t.Errorf("stages = %+v", cfg.Index.Stages)
	}
	if !cfg.Query.Expand {
		t.Error("expected expand to be true")
	}
	if cfg.Snapshot.Driver != "sqlite" || cfg.Snapshot.Interval != 5*time.Second {
		t.Errorf("snapshot = %+v", cfg.Snapshot)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad driver", "snapshot:\n  driver: tape\n"},
		{"bad position", "index:\n  stages:\n    - name: x\n      anchor: trimmer\n      position: inside\n"},
		{"position without anchor", "index:\n  stages:\n    - name: x\n      position: after\n"},
		{"unnamed stage", "index:\n  stages:\n    - anchor: trimmer\n"},
		{"bad b", "scoring:\n  b: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, apperrors.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TI_INDEX_PIPELINE", "lowercase, stemmer")
	t.Setenv("TI_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("TI_REDIS_ADDR", "cache:6379")
	t.Setenv("TI_SNAPSHOT_INTERVAL", "1m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Index.Pipeline) != 2 || cfg.Index.Pipeline[1] != "stemmer" {
		t.Errorf("pipeline = %v", cfg.Index.Pipeline)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6379" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Snapshot.Interval != time.Minute {
		t.Errorf("interval = %v", cfg.Snapshot.Interval)
	}
}
