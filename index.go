// Package textindex is an in-memory full-text search index. Documents are
// split into tokens, run through a configurable pipeline of named stages and
// stored in an inverted index with per-field postings. Searches rank
// documents with BM25, weighting each field by its boost.
//
// An Index is safe for concurrent use. Writers are serialized; every search
// sees the index between two mutations, never in the middle of one.
//
//	idx, err := textindex.NewBuilder().
//		Ref("id").
//		Field("title", 10).
//		Field("body", 1).
//		Build()
//	...
//	_ = idx.Add(textindex.Document{Ref: "1", Fields: map[string]string{"title": "Foo"}})
//	results := idx.Search("foo", 10)
package textindex

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/ranker"
)

// Document is a unit of indexing. Ref identifies it; Fields holds the raw
// text of each field.
type Document struct {
	Ref    string            `json:"ref"`
	Fields map[string]string `json:"fields"`
}

type (
	Result       = ranker.ScoredDoc
	SearchResult = executor.SearchResult
	Posting      = index.Posting
	Stats        = index.Stats
	Snapshot     = index.Snapshot
)

type Index struct {
	engine *indexer.Engine
	exec   *executor.Executor
}

// Add indexes doc, replacing any document with the same ref. When doc.Ref
// is empty the ref is read from the configured ref field, as in
// {"id": "1", "title": "Foo"}. A document with no ref at all, or an
// undeclared field under StrictFields, fails with ErrInvalidInput.
func (ix *Index) Add(doc Document) error {
	return ix.engine.IndexDocument(doc.Ref, doc.Fields)
}

// AddBatch analyzes every document before applying any; one invalid
// document rejects the whole batch and leaves the index unchanged. The batch
// is applied as a single mutation, so searches see all of it or none. Later
// documents win over earlier ones with the same ref.
func (ix *Index) AddBatch(docs []Document) error {
	analyzed := make([]index.AnalyzedDocument, 0, len(docs))
	for i, doc := range docs {
		a, err := ix.engine.AnalyzeDocument(doc.Ref, doc.Fields)
		if err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		analyzed = append(analyzed, a)
	}
	ix.engine.Apply(analyzed...)
	return nil
}

// Remove deletes the document stored under ref and reports whether there
// was one. Removing an unknown ref changes nothing.
func (ix *Index) Remove(ref string) bool {
	return ix.engine.Remove(ref)
}

// Get returns the stored fields of ref, or ErrDocumentNotFound.
func (ix *Index) Get(ref string) (Document, error) {
	stored, err := ix.engine.Document(ref)
	if err != nil {
		return Document{}, err
	}
	return Document{Ref: stored.Ref, Fields: stored.Fields}, nil
}

// Search ranks every document containing at least one analyzed term of
// query, best first, ties by ref. limit <= 0 returns all matches. The result
// is never nil.
func (ix *Index) Search(query string, limit int) []Result {
	res, err := ix.exec.Search(context.Background(), query, limit)
	if err != nil {
		return []Result{}
	}
	return res.Results
}

// Query is Search with operators: AND and OR switch the combination mode
// (OR by default), NOT term and -term exclude, +term is required.
func (ix *Index) Query(query string, limit int) *SearchResult {
	res, err := ix.exec.Query(context.Background(), query, limit)
	if err != nil {
		return &SearchResult{Query: query, Results: []Result{}, TermStats: map[string]int{}}
	}
	return res
}

// Lookup returns the postings of term after running it through the
// pipeline. A term the pipeline drops, or one that is not indexed, has no
// postings.
func (ix *Index) Lookup(term string) []Posting {
	terms := ix.engine.AnalyzeTerms(term)
	if len(terms) != 1 {
		return []Posting{}
	}
	return ix.engine.Lookup(terms[0])
}

// Analyze shows what the tokenizer and pipeline make of text.
func (ix *Index) Analyze(text string) []string {
	return ix.engine.AnalyzeTerms(text)
}

// Terms lists the vocabulary in lexical order.
func (ix *Index) Terms() []string {
	return ix.engine.Terms()
}

// Fields lists the declared field names in declaration order.
func (ix *Index) Fields() []string {
	return ix.engine.Fields().Names()
}

func (ix *Index) Stats() Stats {
	return ix.engine.Stats()
}

// Generation increases with every mutation.
func (ix *Index) Generation() uint64 {
	return ix.engine.Generation()
}

// Refs lists the stored document refs in ascending order.
func (ix *Index) Refs() []string {
	snap := ix.engine.Snapshot()
	refs := make([]string, len(snap.Documents))
	for i, d := range snap.Documents {
		refs[i] = d.Ref
	}
	sort.Strings(refs)
	return refs
}

// Export captures the whole index. Importing the snapshot into an index
// built with the same configuration reproduces identical search results.
func (ix *Index) Export() *Snapshot {
	return ix.engine.Snapshot()
}

// Import replaces the contents of the index with snap. A snapshot taken
// with a different ref, fields, boosts, pipeline or separators fails with
// ErrConfiguration and leaves the index untouched.
func (ix *Index) Import(snap *Snapshot) error {
	return ix.engine.Restore(snap)
}

// MarshalJSON serializes the index as its snapshot.
func (ix *Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(ix.Export())
}

// UnmarshalJSON imports a snapshot produced by MarshalJSON into an index
// that was already built with matching configuration.
func (ix *Index) UnmarshalJSON(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	return ix.Import(&snap)
}

// Engine exposes the indexing engine for services that wire the index to
// Kafka consumers and snapshot stores.
func (ix *Index) Engine() *indexer.Engine {
	return ix.engine
}

// Executor exposes query execution for the HTTP handler and the result
// cache.
func (ix *Index) Executor() *executor.Executor {
	return ix.exec
}
