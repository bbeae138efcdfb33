package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/store"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textindex/pkg/redis"
)

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, "%v", err)
	}
	return nil
}

// openIndex builds an empty index from cfg and, when load is set, restores
// the saved snapshot into it.
func openIndex(ctx context.Context, cfg *config.Config, load bool) (*textindex.Index, snapshot.Store, error) {
	idx, err := textindex.FromConfig(cfg).Build()
	if err != nil {
		return nil, nil, err
	}
	st, err := snapshot.Open(cfg.Snapshot)
	if err != nil {
		return nil, nil, err
	}
	if load {
		snap, err := st.Load(ctx)
		if err == nil {
			err = idx.Import(snap)
		}
		if err != nil {
			st.Close()
			return nil, nil, err
		}
	}
	return idx, st, nil
}

// readDocuments accepts a JSON array of documents or a stream of documents
// one after another (JSON lines). A document is either {"ref", "fields"} or
// a flat object of fields whose ref the index reads from its ref field.
func readDocuments(r io.Reader) ([]textindex.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	var raws []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "decoding documents: %v", err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		for {
			var raw json.RawMessage
			err := dec.Decode(&raw)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, apperrors.Newf(apperrors.ErrInvalidInput, "decoding document %d: %v", len(raws), err)
			}
			raws = append(raws, raw)
		}
	}
	docs := make([]textindex.Document, 0, len(raws))
	for i, raw := range raws {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "decoding document %d: %v", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeDocument(raw json.RawMessage) (textindex.Document, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return textindex.Document{}, err
	}
	if _, ok := obj["fields"]; ok {
		var doc textindex.Document
		err := json.Unmarshal(raw, &doc)
		return doc, err
	}
	doc := textindex.Document{Fields: make(map[string]string, len(obj))}
	for name, value := range obj {
		value = bytes.TrimSpace(value)
		switch {
		case len(value) == 0 || bytes.Equal(value, []byte("null")):
		case value[0] == '"':
			var text string
			if err := json.Unmarshal(value, &text); err != nil {
				return textindex.Document{}, fmt.Errorf("field %q: %w", name, err)
			}
			doc.Fields[name] = text
		case value[0] == '{' || value[0] == '[':
			return textindex.Document{}, fmt.Errorf("field %q: nested values are not supported", name)
		default:
			// numbers and booleans keep their literal text
			doc.Fields[name] = string(value)
		}
	}
	return doc, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runBuild(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	input := fs.String("docs", "", "documents file, JSON array or JSON lines (- for stdin)")
	fromPostgres := fs.Bool("postgres", false, "load documents from the postgres document table")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	idx, st, err := openIndex(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer st.Close()

	start := time.Now()
	var docs []textindex.Document
	if *fromPostgres {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		_, err = store.New(pg).Load(ctx, func(ref string, fields map[string]string) error {
			docs = append(docs, textindex.Document{Ref: ref, Fields: fields})
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		in, err := openInput(*input)
		if err != nil {
			return err
		}
		docs, err = readDocuments(in)
		in.Close()
		if err != nil {
			return err
		}
	}

	if err := idx.AddBatch(docs); err != nil {
		return err
	}
	if err := st.Save(ctx, idx.Export()); err != nil {
		return err
	}
	stats := idx.Stats()
	slog.Info("snapshot built",
		"docs", stats.DocCount,
		"terms", stats.TermCount,
		"driver", cfg.Snapshot.Driver,
		"path", cfg.Snapshot.Path,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func runSearch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("limit", cfg.Query.DefaultLimit, "maximum number of results (0 for all)")
	operators := fs.Bool("operators", false, "interpret AND, OR, NOT, +term and -term")
	useCache := fs.Bool("cache", cfg.Redis.Enabled, "serve and store results through redis")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, "search needs a query")
	}
	text := fs.Arg(0)
	for _, a := range fs.Args()[1:] {
		text += " " + a
	}

	idx, st, err := openIndex(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	exec := idx.Executor()
	plan := exec.Plain(text)
	if *operators {
		plan = exec.Parse(text)
	}
	compute := func() (*textindex.SearchResult, error) {
		return exec.Execute(ctx, plan, *limit)
	}

	if !*useCache {
		res, err := compute()
		if err != nil {
			return err
		}
		return writeJSON(res)
	}

	rc, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rc.Close()
	res, hit, err := cache.New(rc, cfg.Redis.CacheTTL, nil).GetOrCompute(ctx, plan, *limit, exec.Generation(), compute)
	if err != nil {
		return err
	}
	slog.Debug("search served", "cache_hit", hit)
	return writeJSON(res)
}

func runAnalyze(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	idx, st, err := openIndex(ctx, cfg, false)
	if err != nil {
		return err
	}
	st.Close()
	out := make(map[string][]string, fs.NArg())
	for _, text := range fs.Args() {
		out[text] = idx.Analyze(text)
	}
	return writeJSON(out)
}

func runExport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	output := fs.String("out", "", "output file (stdout when empty)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	idx, st, err := openIndex(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	if *output == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(*output, data, 0o644)
}

func runImport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	input := fs.String("in", "", "JSON snapshot produced by export (- for stdin)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	in, err := openInput(*input)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(in)
	in.Close()
	if err != nil {
		return err
	}

	idx, st, err := openIndex(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := json.Unmarshal(data, idx); err != nil {
		return err
	}
	if err := st.Save(ctx, idx.Export()); err != nil {
		return err
	}
	slog.Info("snapshot imported", "docs", idx.Stats().DocCount)
	return nil
}

func runPublish(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	input := fs.String("docs", "", "documents to upsert, JSON array or JSON lines (- for stdin)")
	deleteRef := fs.String("delete", "", "publish a delete for this ref instead")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return apperrors.Configf("publish needs kafka brokers")
	}

	var events []ingestion.DocumentEvent
	if *deleteRef != "" {
		events = append(events, ingestion.NewDelete(*deleteRef))
	} else {
		in, err := openInput(*input)
		if err != nil {
			return err
		}
		docs, err := readDocuments(in)
		in.Close()
		if err != nil {
			return err
		}
		refField := cfg.Index.Ref
		if refField == "" {
			refField = textindex.DefaultRef
		}
		for _, d := range docs {
			if d.Ref == "" {
				d.Ref = d.Fields[refField]
				delete(d.Fields, refField)
			}
			events = append(events, ingestion.NewUpsert(d.Ref, d.Fields))
		}
	}

	var stager publisher.Stager
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		docs := store.New(pg)
		if err := docs.EnsureSchema(ctx); err != nil {
			return err
		}
		stager = docs
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents)
	defer producer.Close()
	if err := publisher.New(producer, stager).Publish(ctx, events...); err != nil {
		return err
	}
	slog.Info("events published", "count", len(events), "topic", cfg.Kafka.Topics.DocumentEvents)
	return nil
}

func runStats(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	idx, st, err := openIndex(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()
	return writeJSON(struct {
		textindex.Stats
		Fields []string `json:"fields"`
	}{idx.Stats(), idx.Fields()})
}
