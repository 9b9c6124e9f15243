// Package store defines the storage collaborator contract the knowledge-base
// core depends on. Backends implement Storage; the core never assumes a
// concrete schema, only the operation semantics described here.
package store

import (
	"context"
	"errors"

	"github.com/knograph/knograph/pkg/common"
)

// ErrVectorUnsupported is returned by AsVectorStore for backends without a
// vector-similarity capability. Callers degrade to non-vector scoring.
var ErrVectorUnsupported = errors.New("store: vector similarity not supported by this backend")

// EntityFilter narrows GetEntities. Zero-value fields are ignored; when both
// are set the filter is conjunctive.
type EntityFilter struct {
	DocID      string
	EntityType string
	IDs        []int64
}

// RelationshipFilter narrows GetRelationships. Zero-value fields are
// ignored.
type RelationshipFilter struct {
	DocID    string
	EntityID int64 // matches source or target
	Type     string
}

// Storage is the persistence contract for documents, entities,
// relationships, the inverted index and fusion byproducts.
//
// Semantics every backend must honor:
//   - SaveDocument upserts by DocID and refreshes UpdatedAt on update.
//   - DeleteDocument cascades to entities, relationships and index entries.
//   - Lookups return empty results for missing data, never an error.
//   - Multi-row writes are atomic: on failure nothing is applied.
//   - SaveEntities resolves (DocID, StartPos, EndPos, Name) collisions by
//     keeping the higher confidence.
//   - BuildInvertedIndex fully rebuilds a document's entries
//     (delete-then-insert), so re-indexing is idempotent.
//   - AddEntitySimilarity canonicalizes id1 < id2 before writing.
type Storage interface {
	SaveDocument(ctx context.Context, doc *common.Document) error
	GetDocument(ctx context.Context, docID string) (*common.Document, error)
	ListDocuments(ctx context.Context) ([]common.Document, error)
	DeleteDocument(ctx context.Context, docID string) error

	SaveEntities(ctx context.Context, entities []common.Entity) error
	GetEntities(ctx context.Context, filter EntityFilter) ([]common.Entity, error)
	UpdateEntity(ctx context.Context, entity common.Entity) error
	DeleteEntity(ctx context.Context, entityID int64) error

	SaveRelationships(ctx context.Context, rels []common.Relationship) error
	GetRelationships(ctx context.Context, filter RelationshipFilter) ([]common.Relationship, error)
	UpdateRelationship(ctx context.Context, rel common.Relationship) error
	DeleteRelationship(ctx context.Context, relID int64) error

	BuildInvertedIndex(ctx context.Context, docID string, tokens []common.Token) error
	SearchIndex(ctx context.Context, term string, fuzzy bool) ([]common.Posting, error)
	TotalDocuments(ctx context.Context) (int, error)

	AddEntityAlias(ctx context.Context, entityID int64, alias string) error
	GetEntityAliases(ctx context.Context, entityID int64) ([]string, error)
	AddEntitySimilarity(ctx context.Context, id1, id2 int64, score float64, method string) error
}

// VectorStore is an optional capability for backends that can persist and
// query entity embeddings. It backs the pluggable semantic similarity
// scorer.
type VectorStore interface {
	SaveEntityEmbedding(ctx context.Context, entityID int64, embedding []float32) error
	SimilarEntities(ctx context.Context, embedding []float32, limit int) ([]common.Entity, error)
}

// AsVectorStore exposes the vector capability of s, or
// ErrVectorUnsupported when the backend does not provide one.
func AsVectorStore(s Storage) (VectorStore, error) {
	if vs, ok := s.(VectorStore); ok {
		return vs, nil
	}
	return nil, ErrVectorUnsupported
}

// CanonicalPair orders an id pair so that the smaller id comes first.
// Similarity records are stored in this orientation only.
func CanonicalPair(id1, id2 int64) (int64, int64) {
	if id1 > id2 {
		return id2, id1
	}
	return id1, id2
}
