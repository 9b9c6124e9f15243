package common

import "time"

// Token classification values produced by the tokenizer. Custom dictionary
// entries may introduce additional types beyond this set.
const (
	TokenTypeChinese     = "chinese"
	TokenTypeEnglish     = "english"
	TokenTypeNumber      = "number"
	TokenTypePunctuation = "punctuation"
	TokenTypeMixed       = "mixed"
	TokenTypeUnknown     = "unknown"
)

// Provenance tags recording which extraction strategy produced a fact.
const (
	SourceRule    = "rule"
	SourceDict    = "dict"
	SourceLLM     = "llm"
	SourceCooccur = "cooccur"
)

// Token is a minimal lexical unit produced by segmentation. Start and End are
// byte offsets into the source text, half-open, so that
// text[Start:End] == Text always holds. Tokens are ephemeral: they exist only
// per tokenize call and are persisted solely through the inverted index.
type Token struct {
	Text   string  `json:"text"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Type   string  `json:"type,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// Document is the root of the data model. Entities, relationships and index
// entries are owned by exactly one document and are removed with it.
type Document struct {
	DocID     string    `json:"doc_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entity represents a named, typed span of text identified as referring to a
// real-world object or concept.
//
// ID is assigned by storage on first persist and is zero before that.
// Callers that need ids for relationship construction must persist the
// entities and reload them from storage first.
type Entity struct {
	ID           int64             `json:"id,omitempty"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	DocID        string            `json:"doc_id"`
	StartPos     int               `json:"start_pos"`
	EndPos       int               `json:"end_pos"`
	Source       string            `json:"source"`
	Confidence   float64           `json:"confidence"`
	Properties   map[string]string `json:"properties,omitempty"`
	Aliases      []string          `json:"aliases,omitempty"`
	ContextWords []string          `json:"context_words,omitempty"`
	Occurrences  int               `json:"occurrences,omitempty"`
}

// Relationship is a typed, directed, confidence-scored edge between two
// persisted entities, grounded in evidence text. Both endpoint ids must
// reference entities that exist in storage; relationships built from
// unresolved entities are dropped before persisting.
type Relationship struct {
	ID             int64             `json:"id,omitempty"`
	SourceEntityID int64             `json:"source_entity_id"`
	TargetEntityID int64             `json:"target_entity_id"`
	Type           string            `json:"type"`
	DocID          string            `json:"doc_id"`
	Confidence     float64           `json:"confidence"`
	Source         string            `json:"source"`
	EvidenceText   string            `json:"evidence_text"`
	Properties     map[string]string `json:"properties,omitempty"`
}

// EntityAlias resolves a secondary name to a canonical entity id. Aliases are
// created only as a byproduct of fusion merges.
type EntityAlias struct {
	EntityID int64  `json:"entity_id"`
	Alias    string `json:"alias"`
}

// EntitySimilarity is a persisted pairwise similarity record. EntityID1 is
// always the smaller id so that symmetric pairs map to one row.
type EntitySimilarity struct {
	EntityID1         int64   `json:"entity_id_1"`
	EntityID2         int64   `json:"entity_id_2"`
	SimilarityScore   float64 `json:"similarity_score"`
	CalculationMethod string  `json:"calculation_method"`
}

// IndexEntry is one logical inverted-index record for a (term, document)
// pair. Positions are the byte offsets of each occurrence.
type IndexEntry struct {
	Term      string `json:"term"`
	DocID     string `json:"doc_id"`
	Frequency int    `json:"frequency"`
	Positions []int  `json:"positions"`
}

// Posting is an index entry enriched with the corpus statistics needed for
// tf-idf scoring at query time.
type Posting struct {
	IndexEntry
	TotalTokens    int `json:"total_tokens"`
	DocFrequency   int `json:"doc_frequency"`
	TotalDocuments int `json:"total_documents"`
}

// NetworkGraph is the query-time output contract of graph traversal. It is
// never persisted.
type NetworkGraph struct {
	Nodes []Entity       `json:"nodes"`
	Edges []Relationship `json:"edges"`
}

// PathStep is one hop of a path returned by shortest-path search. Type
// carries a "_reverse" suffix when the hop rides an incoming edge, so path
// direction stays recoverable.
type PathStep struct {
	FromEntityID int64  `json:"from_entity_id"`
	ToEntityID   int64  `json:"to_entity_id"`
	Type         string `json:"type"`
}
