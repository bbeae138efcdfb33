package index

import (
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/huandu/skiplist"
)

// SnapshotVersion is bumped whenever the exported layout changes.
const SnapshotVersion = 1

type FieldInfo struct {
	Name  string  `json:"name"`
	Boost float64 `json:"boost"`
}

// Snapshot is the transportable form of an index: configuration fingerprint,
// stored documents and the full term dictionary. Restoring from it needs no
// re-tokenization.
type Snapshot struct {
	Version    int              `json:"version"`
	Ref        string           `json:"ref"`
	Fields     []FieldInfo      `json:"fields"`
	Pipeline   []string         `json:"pipeline"`
	Separators string           `json:"separators"`
	DocCount   int              `json:"doc_count"`
	Documents  []StoredDocument `json:"documents"`
	Terms      []TermEntry      `json:"terms"`
}

// Snapshot exports documents (sorted by ref) and terms (sorted by term) with
// postings in Lookup order. Configuration fields are left for the caller.
func (m *MemoryIndex) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := &Snapshot{
		Version:   SnapshotVersion,
		DocCount:  len(m.docs),
		Documents: make([]StoredDocument, 0, len(m.docs)),
		Terms:     make([]TermEntry, 0, len(m.terms)),
	}
	for _, stored := range m.docs {
		snap.Documents = append(snap.Documents, copyStored(stored))
	}
	sort.Slice(snap.Documents, func(i, j int) bool {
		return snap.Documents[i].Ref < snap.Documents[j].Ref
	})
	for elem := m.vocab.Front(); elem != nil; elem = elem.Next() {
		term := elem.Key().(string)
		snap.Terms = append(snap.Terms, TermEntry{
			Term:     term,
			DocFreq:  m.terms[term].docFreq,
			Postings: m.lookupLocked(term),
		})
	}
	return snap
}

// Restore replaces the whole index with the contents of snap after checking
// that postings, document frequencies and documents agree with each other.
// On error the index is left untouched.
func (m *MemoryIndex) Restore(snap *Snapshot) error {
	if snap == nil {
		return apperrors.New(apperrors.ErrInvalidInput, "nil snapshot")
	}
	if snap.Version != SnapshotVersion {
		return apperrors.Newf(apperrors.ErrSnapshotCorrupt, "unsupported snapshot version %d", snap.Version)
	}
	if snap.DocCount != len(snap.Documents) {
		return apperrors.Newf(apperrors.ErrSnapshotCorrupt, "doc count %d does not match %d documents", snap.DocCount, len(snap.Documents))
	}

	docs := make(map[string]*StoredDocument, len(snap.Documents))
	fieldTotals := make(map[string]int64)
	for _, d := range snap.Documents {
		if d.Ref == "" {
			return apperrors.New(apperrors.ErrSnapshotCorrupt, "document without ref")
		}
		if _, dup := docs[d.Ref]; dup {
			return apperrors.Newf(apperrors.ErrSnapshotCorrupt, "duplicate document %q", d.Ref)
		}
		cp := copyStored(&d)
		docs[d.Ref] = &cp
		for name, n := range d.FieldLengths {
			if n > 0 {
				fieldTotals[name] += int64(n)
			}
		}
	}

	terms := make(map[string]*termPostings, len(snap.Terms))
	docTerms := make(map[string][]string, len(docs))
	vocab := skiplist.New(skiplist.String)
	var size int64
	for _, entry := range snap.Terms {
		if entry.Term == "" {
			return apperrors.New(apperrors.ErrSnapshotCorrupt, "empty term")
		}
		if _, dup := terms[entry.Term]; dup {
			return apperrors.Newf(apperrors.ErrSnapshotCorrupt, "duplicate term %q", entry.Term)
		}
		tp := &termPostings{byRef: make(map[string]map[string]*Posting)}
		for _, p := range entry.Postings {
			if _, ok := docs[p.DocRef]; !ok {
				return apperrors.Newf(apperrors.ErrSnapshotCorrupt, "term %q has a posting for unknown document %q", entry.Term, p.DocRef)
			}
			if p.Frequency <= 0 || p.Frequency != len(p.Positions) {
				return apperrors.Newf(apperrors.ErrSnapshotCorrupt, "term %q ref %q: frequency %d with %d positions", entry.Term, p.DocRef, p.Frequency, len(p.Positions))
			}
			byField, ok := tp.byRef[p.DocRef]
			if !ok {
				byField = make(map[string]*Posting)
				tp.byRef[p.DocRef] = byField
				docTerms[p.DocRef] = append(docTerms[p.DocRef], entry.Term)
			}
			if _, dup := byField[p.Field]; dup {
				return apperrors.Newf(apperrors.ErrSnapshotCorrupt, "term %q ref %q field %q listed twice", entry.Term, p.DocRef, p.Field)
			}
			cp := p
			cp.Positions = append([]int(nil), p.Positions...)
			byField[p.Field] = &cp
			size += postingSize(entry.Term, p.DocRef, len(cp.Positions))
		}
		tp.docFreq = len(tp.byRef)
		if tp.docFreq == 0 || tp.docFreq != entry.DocFreq {
			return apperrors.Newf(apperrors.ErrSnapshotCorrupt, "term %q: document frequency %d, postings cover %d documents", entry.Term, entry.DocFreq, tp.docFreq)
		}
		terms[entry.Term] = tp
		vocab.Set(entry.Term, struct{}{})
	}
	for ref := range docTerms {
		sort.Strings(docTerms[ref])
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.terms = terms
	m.vocab = vocab
	m.docs = docs
	m.docTerms = docTerms
	m.fieldTotals = fieldTotals
	m.size = size
	m.generation.Add(1)
	return nil
}
