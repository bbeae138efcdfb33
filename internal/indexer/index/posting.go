package index

// Posting records the occurrences of one term in one field of one document.
type Posting struct {
	DocRef    string `json:"ref"`
	Field     string `json:"field"`
	Frequency int    `json:"tf"`
	Positions []int  `json:"pos"`
}

type PostingList []Posting

// TermEntry is a term with its postings and document frequency, the unit of
// Snapshot and of a term lookup.
type TermEntry struct {
	Term     string      `json:"term"`
	DocFreq  int         `json:"df"`
	Postings PostingList `json:"postings"`
}

// AnalyzedField is one field of a document after tokenization and the
// pipeline. Terms and Positions are parallel.
type AnalyzedField struct {
	Name      string
	Terms     []string
	Positions []int
}

// AnalyzedDocument is what the engine hands the index: the raw fields for
// the document store plus the processed terms per field.
type AnalyzedDocument struct {
	Ref    string
	Raw    map[string]string
	Fields []AnalyzedField
}

type StoredDocument struct {
	Ref          string            `json:"ref"`
	Fields       map[string]string `json:"fields"`
	FieldLengths map[string]int    `json:"lengths"`
}

// Stats are the index-wide figures scoring depends on.
type Stats struct {
	DocCount         int                `json:"doc_count"`
	TermCount        int                `json:"term_count"`
	FieldLengthTotal map[string]int64   `json:"field_length_total"`
	AvgFieldLength   map[string]float64 `json:"avg_field_length"`
	Generation       uint64             `json:"generation"`
	Size             int64              `json:"size_bytes"`
}
