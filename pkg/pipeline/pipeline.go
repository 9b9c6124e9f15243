// Package pipeline orchestrates document ingestion: persist, tokenize and
// index, extract entities, extract relationships. Stages run sequentially
// per document; a stage's storage failure aborts that document only.
package pipeline

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/extract"
	"github.com/knograph/knograph/pkg/logger"
	"github.com/knograph/knograph/pkg/store"
	"github.com/knograph/knograph/pkg/tokenizer"
)

// Result is the outcome of processing one document. In batch mode a failed
// document carries its error message and empty collections.
type Result struct {
	DocID         string                `json:"doc_id"`
	Tokens        []common.Token        `json:"tokens"`
	Entities      []common.Entity       `json:"entities"`
	Relationships []common.Relationship `json:"relationships"`
	Error         string                `json:"error,omitempty"`
}

// Processor wires the ingestion stages to one storage backend.
type Processor struct {
	store     store.Storage
	tokenizer *tokenizer.Tokenizer
	entities  *extract.EntityExtractor
	relations *extract.RelationExtractor
}

func New(st store.Storage, tok *tokenizer.Tokenizer, entities *extract.EntityExtractor, relations *extract.RelationExtractor) *Processor {
	return &Processor{
		store:     st,
		tokenizer: tok,
		entities:  entities,
		relations: relations,
	}
}

// ProcessDocument runs the full ingestion pipeline for one document. A
// missing DocID is filled in with a generated id. The reload after
// persisting entities is what assigns the storage ids relationship
// extraction depends on.
func (p *Processor) ProcessDocument(ctx context.Context, doc *common.Document) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("pipeline: nil document")
	}
	if doc.DocID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("pipeline: generate doc id: %w", err)
		}
		doc.DocID = id
	}

	if err := p.store.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("pipeline: persist document %s: %w", doc.DocID, err)
	}

	tokens := p.tokenizer.Tokenize(doc.Content)
	if err := p.store.BuildInvertedIndex(ctx, doc.DocID, tokens); err != nil {
		return nil, fmt.Errorf("pipeline: index document %s: %w", doc.DocID, err)
	}

	result := &Result{
		DocID:         doc.DocID,
		Tokens:        tokens,
		Entities:      []common.Entity{},
		Relationships: []common.Relationship{},
	}

	entities := p.entities.Extract(ctx, doc.Content, doc.DocID)
	if len(entities) == 0 {
		logger.Debug("[Pipeline] No entities extracted", "doc", doc.DocID)
		return result, nil
	}

	if err := p.store.SaveEntities(ctx, entities); err != nil {
		return nil, fmt.Errorf("pipeline: persist entities for %s: %w", doc.DocID, err)
	}
	reloaded, err := p.store.GetEntities(ctx, store.EntityFilter{DocID: doc.DocID})
	if err != nil {
		return nil, fmt.Errorf("pipeline: reload entities for %s: %w", doc.DocID, err)
	}
	result.Entities = reloaded

	rels := p.relations.Extract(ctx, reloaded, doc.Content, doc.DocID)
	if len(rels) == 0 {
		return result, nil
	}
	if err := p.store.SaveRelationships(ctx, rels); err != nil {
		return nil, fmt.Errorf("pipeline: persist relationships for %s: %w", doc.DocID, err)
	}
	result.Relationships = rels

	logger.Info("[Pipeline] Document processed",
		"doc", doc.DocID,
		"tokens", len(tokens),
		"entities", len(reloaded),
		"relationships", len(rels),
	)
	return result, nil
}

// ProcessBatch processes documents in order. One document's failure is
// recorded on its result entry and does not abort the rest.
func (p *Processor) ProcessBatch(ctx context.Context, docs []*common.Document) []Result {
	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		res, err := p.ProcessDocument(ctx, doc)
		if err != nil {
			docID := ""
			if doc != nil {
				docID = doc.DocID
			}
			logger.Error("[Pipeline] Document failed", "doc", docID, "err", err)
			results = append(results, Result{
				DocID:         docID,
				Tokens:        []common.Token{},
				Entities:      []common.Entity{},
				Relationships: []common.Relationship{},
				Error:         err.Error(),
			})
			continue
		}
		results = append(results, *res)
	}
	return results
}
