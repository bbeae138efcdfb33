package index

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/huandu/skiplist"
)

type termPostings struct {
	docFreq int
	byRef   map[string]map[string]*Posting
}

// MemoryIndex is the inverted index and document store. One RWMutex guards
// postings, document frequencies, the document store and the length
// statistics together, so readers never observe half of a mutation.
type MemoryIndex struct {
	mu          sync.RWMutex
	terms       map[string]*termPostings
	vocab       *skiplist.SkipList
	docs        map[string]*StoredDocument
	docTerms    map[string][]string
	fieldOrder  map[string]int
	fieldTotals map[string]int64
	size        int64
	generation  atomic.Uint64
}

// NewMemoryIndex creates an empty index over the given fields. Field order
// fixes the order postings are returned in.
func NewMemoryIndex(fields []string) *MemoryIndex {
	order := make(map[string]int, len(fields))
	for i, f := range fields {
		order[f] = i
	}
	return &MemoryIndex{
		terms:       make(map[string]*termPostings),
		vocab:       skiplist.New(skiplist.String),
		docs:        make(map[string]*StoredDocument),
		docTerms:    make(map[string][]string),
		fieldOrder:  order,
		fieldTotals: make(map[string]int64),
	}
}

func postingSize(term, ref string, positions int) int64 {
	return int64(len(term) + len(ref) + positions*8 + 64)
}

type preparedDocument struct {
	stored   *StoredDocument
	termData map[string]map[string]*Posting
	terms    []string
}

func prepare(doc AnalyzedDocument) preparedDocument {
	termData := make(map[string]map[string]*Posting)
	stored := &StoredDocument{
		Ref:          doc.Ref,
		Fields:       copyFields(doc.Raw),
		FieldLengths: make(map[string]int, len(doc.Fields)),
	}
	for _, f := range doc.Fields {
		stored.FieldLengths[f.Name] = len(f.Terms)
		for i, term := range f.Terms {
			if term == "" {
				continue
			}
			byField, exists := termData[term]
			if !exists {
				byField = make(map[string]*Posting)
				termData[term] = byField
			}
			p, exists := byField[f.Name]
			if !exists {
				p = &Posting{
					DocRef:    doc.Ref,
					Field:     f.Name,
					Positions: make([]int, 0, 4),
				}
				byField[f.Name] = p
			}
			p.Frequency++
			p.Positions = append(p.Positions, f.Positions[i])
		}
	}
	for _, byField := range termData {
		for _, p := range byField {
			sort.Ints(p.Positions)
		}
	}
	terms := make([]string, 0, len(termData))
	for term := range termData {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return preparedDocument{stored: stored, termData: termData, terms: terms}
}

// Apply inserts docs in order, each replacing any document already stored
// under its ref. All of docs land under one write lock, so readers see
// either none or all of them. The old postings of a ref are removed first,
// so each term of a document bumps its document frequency exactly once.
func (m *MemoryIndex) Apply(docs ...AnalyzedDocument) {
	if len(docs) == 0 {
		return
	}
	prepared := make([]preparedDocument, len(docs))
	for i, doc := range docs {
		prepared[i] = prepare(doc)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pd := range prepared {
		m.applyLocked(pd)
	}
	m.generation.Add(1)
}

func (m *MemoryIndex) applyLocked(pd preparedDocument) {
	ref := pd.stored.Ref
	m.removeLocked(ref)
	for _, term := range pd.terms {
		byField := pd.termData[term]
		entry, exists := m.terms[term]
		if !exists {
			entry = &termPostings{byRef: make(map[string]map[string]*Posting)}
			m.terms[term] = entry
			m.vocab.Set(term, struct{}{})
		}
		entry.byRef[ref] = byField
		entry.docFreq++
		for _, p := range byField {
			m.size += postingSize(term, ref, len(p.Positions))
		}
	}
	for name, n := range pd.stored.FieldLengths {
		if n > 0 {
			m.fieldTotals[name] += int64(n)
		}
	}
	m.docs[ref] = pd.stored
	m.docTerms[ref] = pd.terms
}

// Remove deletes every posting of ref and decrements the document frequency
// of each of its terms. It reports whether ref was present; an unknown ref
// is a no-op.
func (m *MemoryIndex) Remove(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.removeLocked(ref) {
		return false
	}
	m.generation.Add(1)
	return true
}

func (m *MemoryIndex) removeLocked(ref string) bool {
	stored, exists := m.docs[ref]
	if !exists {
		return false
	}
	for _, term := range m.docTerms[ref] {
		entry, ok := m.terms[term]
		if !ok {
			continue
		}
		byField, ok := entry.byRef[ref]
		if !ok {
			continue
		}
		for _, p := range byField {
			m.size -= postingSize(term, ref, len(p.Positions))
		}
		delete(entry.byRef, ref)
		entry.docFreq--
		if entry.docFreq <= 0 {
			delete(m.terms, term)
			m.vocab.Remove(term)
		}
	}
	for name, n := range stored.FieldLengths {
		m.fieldTotals[name] -= int64(n)
		if m.fieldTotals[name] <= 0 {
			delete(m.fieldTotals, name)
		}
	}
	delete(m.docs, ref)
	delete(m.docTerms, ref)
	return true
}

// Lookup returns the postings of an exact term, ordered by ref and then by
// field registration order. A term that is not indexed yields an empty list.
func (m *MemoryIndex) Lookup(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookupLocked(term)
}

func (m *MemoryIndex) lookupLocked(term string) PostingList {
	entry, exists := m.terms[term]
	if !exists {
		return PostingList{}
	}
	result := make(PostingList, 0, len(entry.byRef))
	for _, byField := range entry.byRef {
		for _, p := range byField {
			cp := *p
			cp.Positions = append([]int(nil), p.Positions...)
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DocRef != result[j].DocRef {
			return result[i].DocRef < result[j].DocRef
		}
		return m.fieldLess(result[i].Field, result[j].Field)
	})
	return result
}

func (m *MemoryIndex) fieldLess(a, b string) bool {
	oa, okA := m.fieldOrder[a]
	ob, okB := m.fieldOrder[b]
	switch {
	case okA && okB:
		return oa < ob
	case okA != okB:
		return okA
	default:
		return a < b
	}
}

func (m *MemoryIndex) Document(ref string) (StoredDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, exists := m.docs[ref]
	if !exists {
		return StoredDocument{}, apperrors.Newf(apperrors.ErrDocumentNotFound, "ref %q", ref)
	}
	return copyStored(stored), nil
}

// View runs fn with the read lock held, giving it a consistent picture of
// the index across several lookups. fn must not call back into m.
func (m *MemoryIndex) View(fn func(v *View)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(&View{m: m})
}

func (m *MemoryIndex) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{
		DocCount:         len(m.docs),
		TermCount:        len(m.terms),
		FieldLengthTotal: make(map[string]int64, len(m.fieldTotals)),
		AvgFieldLength:   make(map[string]float64, len(m.fieldTotals)),
		Generation:       m.generation.Load(),
		Size:             m.size,
	}
	for name, total := range m.fieldTotals {
		s.FieldLengthTotal[name] = total
		s.AvgFieldLength[name] = float64(total) / float64(len(m.docs))
	}
	return s
}

func (m *MemoryIndex) Generation() uint64 {
	return m.generation.Load()
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) Terms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.termsLocked("")
}

func (m *MemoryIndex) termsLocked(prefix string) []string {
	out := make([]string, 0)
	for elem := m.vocab.Front(); elem != nil; elem = elem.Next() {
		term := elem.Key().(string)
		if strings.HasPrefix(term, prefix) {
			out = append(out, term)
		} else if term > prefix {
			break
		}
	}
	return out
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terms = make(map[string]*termPostings)
	m.vocab = skiplist.New(skiplist.String)
	m.docs = make(map[string]*StoredDocument)
	m.docTerms = make(map[string][]string)
	m.fieldTotals = make(map[string]int64)
	m.size = 0
	m.generation.Add(1)
}

// View is a read-only handle valid only inside MemoryIndex.View.
type View struct {
	m *MemoryIndex
}

func (v *View) Lookup(term string) PostingList {
	return v.m.lookupLocked(term)
}

func (v *View) DocFreq(term string) int {
	if entry, ok := v.m.terms[term]; ok {
		return entry.docFreq
	}
	return 0
}

func (v *View) DocCount() int {
	return len(v.m.docs)
}

func (v *View) FieldLength(ref, field string) int {
	if stored, ok := v.m.docs[ref]; ok {
		return stored.FieldLengths[field]
	}
	return 0
}

func (v *View) AvgFieldLength(field string) float64 {
	if len(v.m.docs) == 0 {
		return 0
	}
	return float64(v.m.fieldTotals[field]) / float64(len(v.m.docs))
}

// PrefixTerms lists indexed terms starting with prefix, in ascending order.
func (v *View) PrefixTerms(prefix string) []string {
	return v.m.termsLocked(prefix)
}

func (v *View) Has(ref string) bool {
	_, ok := v.m.docs[ref]
	return ok
}

func (v *View) Generation() uint64 {
	return v.m.generation.Load()
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, val := range in {
		out[k] = val
	}
	return out
}

func copyStored(s *StoredDocument) StoredDocument {
	lengths := make(map[string]int, len(s.FieldLengths))
	for k, n := range s.FieldLengths {
		lengths[k] = n
	}
	return StoredDocument{
		Ref:          s.Ref,
		Fields:       copyFields(s.Fields),
		FieldLengths: lengths,
	}
}
