// Package memory provides an in-memory Storage backend. It backs the test
// suite and embedded host-shell deployments where no database is available.
// All semantics of the store.Storage contract hold, including cascade
// deletes and idempotent re-indexing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/store"
)

type pairKey struct {
	id1, id2 int64
}

// Store is an in-memory store.Storage implementation. Safe for concurrent
// use; every operation takes the store lock, which stands in for the
// transaction isolation a database backend provides.
type Store struct {
	mu sync.RWMutex

	docs      map[string]common.Document
	entities  map[int64]common.Entity
	rels      map[int64]common.Relationship
	index     map[string]map[string]common.IndexEntry // term -> docID
	docTokens map[string]int
	aliases   map[int64][]string
	sims      map[pairKey]common.EntitySimilarity

	nextEntityID int64
	nextRelID    int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		docs:      make(map[string]common.Document),
		entities:  make(map[int64]common.Entity),
		rels:      make(map[int64]common.Relationship),
		index:     make(map[string]map[string]common.IndexEntry),
		docTokens: make(map[string]int),
		aliases:   make(map[int64][]string),
		sims:      make(map[pairKey]common.EntitySimilarity),
	}
}

// SaveDocument upserts by DocID. New documents get CreatedAt set; updates
// keep it and refresh UpdatedAt.
func (s *Store) SaveDocument(ctx context.Context, doc *common.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	existing, ok := s.docs[doc.DocID]
	if ok {
		doc.CreatedAt = existing.CreatedAt
	} else if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.docs[doc.DocID] = *doc
	return nil
}

func (s *Store) GetDocument(ctx context.Context, docID string) (*common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[docID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out, nil
}

// DeleteDocument removes the document and cascades to its entities,
// relationships and index entries. Aliases and similarity records of the
// deleted entities go with them.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, docID)
	delete(s.docTokens, docID)

	for id, e := range s.entities {
		if e.DocID == docID {
			s.deleteEntityLocked(id)
		}
	}
	for id, r := range s.rels {
		if r.DocID == docID {
			delete(s.rels, id)
		}
	}
	for term, postings := range s.index {
		delete(postings, docID)
		if len(postings) == 0 {
			delete(s.index, term)
		}
	}
	return nil
}

func (s *Store) deleteEntityLocked(id int64) {
	delete(s.entities, id)
	delete(s.aliases, id)
	for key := range s.sims {
		if key.id1 == id || key.id2 == id {
			delete(s.sims, key)
		}
	}
	for rid, r := range s.rels {
		if r.SourceEntityID == id || r.TargetEntityID == id {
			delete(s.rels, rid)
		}
	}
}

// SaveEntities persists a batch atomically, assigning ids to new entities in
// place. An entity colliding with an existing one on
// (DocID, StartPos, EndPos, Name) replaces it only when its confidence is
// higher; either way the caller's entity receives the surviving id.
func (s *Store) SaveEntities(ctx context.Context, entities []common.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range entities {
		e := &entities[i]
		if e.ID != 0 {
			s.entities[e.ID] = *e
			continue
		}

		if existingID, ok := s.findSpanLocked(e); ok {
			existing := s.entities[existingID]
			if e.Confidence > existing.Confidence {
				e.ID = existingID
				s.entities[existingID] = *e
			} else {
				e.ID = existingID
			}
			continue
		}

		s.nextEntityID++
		e.ID = s.nextEntityID
		s.entities[e.ID] = *e
	}
	return nil
}

func (s *Store) findSpanLocked(e *common.Entity) (int64, bool) {
	for id, existing := range s.entities {
		if existing.DocID == e.DocID &&
			existing.StartPos == e.StartPos &&
			existing.EndPos == e.EndPos &&
			existing.Name == e.Name {
			return id, true
		}
	}
	return 0, false
}

func (s *Store) GetEntities(ctx context.Context, filter store.EntityFilter) ([]common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := make(map[int64]struct{}, len(filter.IDs))
	for _, id := range filter.IDs {
		idSet[id] = struct{}{}
	}

	var out []common.Entity
	for _, e := range s.entities {
		if filter.DocID != "" && e.DocID != filter.DocID {
			continue
		}
		if filter.EntityType != "" && e.Type != filter.EntityType {
			continue
		}
		if len(idSet) > 0 {
			if _, ok := idSet[e.ID]; !ok {
				continue
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateEntity(ctx context.Context, entity common.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[entity.ID]; !ok {
		return nil
	}
	s.entities[entity.ID] = entity
	return nil
}

func (s *Store) DeleteEntity(ctx context.Context, entityID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteEntityLocked(entityID)
	return nil
}

// SaveRelationships persists a batch atomically. Relationships whose
// endpoints do not exist in storage are dropped; duplicates on
// (source, target, type) keep the highest confidence.
func (s *Store) SaveRelationships(ctx context.Context, rels []common.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range rels {
		r := &rels[i]
		if _, ok := s.entities[r.SourceEntityID]; !ok {
			continue
		}
		if _, ok := s.entities[r.TargetEntityID]; !ok {
			continue
		}

		if existingID, ok := s.findRelKeyLocked(r); ok {
			existing := s.rels[existingID]
			if r.Confidence > existing.Confidence {
				r.ID = existingID
				s.rels[existingID] = *r
			} else {
				r.ID = existingID
			}
			continue
		}

		s.nextRelID++
		r.ID = s.nextRelID
		s.rels[r.ID] = *r
	}
	return nil
}

func (s *Store) findRelKeyLocked(r *common.Relationship) (int64, bool) {
	for id, existing := range s.rels {
		if existing.SourceEntityID == r.SourceEntityID &&
			existing.TargetEntityID == r.TargetEntityID &&
			existing.Type == r.Type {
			return id, true
		}
	}
	return 0, false
}

func (s *Store) GetRelationships(ctx context.Context, filter store.RelationshipFilter) ([]common.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []common.Relationship
	for _, r := range s.rels {
		if filter.DocID != "" && r.DocID != filter.DocID {
			continue
		}
		if filter.EntityID != 0 && r.SourceEntityID != filter.EntityID && r.TargetEntityID != filter.EntityID {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateRelationship(ctx context.Context, rel common.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rels[rel.ID]; !ok {
		return nil
	}
	s.rels[rel.ID] = rel
	return nil
}

func (s *Store) DeleteRelationship(ctx context.Context, relID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rels, relID)
	return nil
}

// BuildInvertedIndex rebuilds a document's index entries from scratch:
// prior entries for the document are purged first, so indexing the same
// tokens twice yields the same postings as once.
func (s *Store) BuildInvertedIndex(ctx context.Context, docID string, tokens []common.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for term, postings := range s.index {
		delete(postings, docID)
		if len(postings) == 0 {
			delete(s.index, term)
		}
	}

	for _, tok := range tokens {
		postings, ok := s.index[tok.Text]
		if !ok {
			postings = make(map[string]common.IndexEntry)
			s.index[tok.Text] = postings
		}
		entry := postings[docID]
		entry.Term = tok.Text
		entry.DocID = docID
		entry.Frequency++
		entry.Positions = append(entry.Positions, tok.Start)
		postings[docID] = entry
	}
	s.docTokens[docID] = len(tokens)
	return nil
}

// SearchIndex returns postings for term. With fuzzy set, any indexed term
// containing the query as a substring matches.
func (s *Store) SearchIndex(ctx context.Context, term string, fuzzy bool) ([]common.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]map[string]common.IndexEntry)
	if fuzzy {
		for t, postings := range s.index {
			if strings.Contains(t, term) {
				matched[t] = postings
			}
		}
	} else if postings, ok := s.index[term]; ok {
		matched[term] = postings
	}

	var out []common.Posting
	for _, postings := range matched {
		docFreq := len(postings)
		for docID, entry := range postings {
			out = append(out, common.Posting{
				IndexEntry:     entry,
				TotalTokens:    s.docTokens[docID],
				DocFrequency:   docFreq,
				TotalDocuments: len(s.docs),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Term != out[j].Term {
			return out[i].Term < out[j].Term
		}
		return out[i].DocID < out[j].DocID
	})
	return out, nil
}

func (s *Store) TotalDocuments(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *Store) AddEntityAlias(ctx context.Context, entityID int64, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.aliases[entityID] {
		if a == alias {
			return nil
		}
	}
	s.aliases[entityID] = append(s.aliases[entityID], alias)
	return nil
}

func (s *Store) GetEntityAliases(ctx context.Context, entityID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.aliases[entityID]))
	copy(out, s.aliases[entityID])
	return out, nil
}

func (s *Store) AddEntitySimilarity(ctx context.Context, id1, id2 int64, score float64, method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, b := store.CanonicalPair(id1, id2)
	s.sims[pairKey{a, b}] = common.EntitySimilarity{
		EntityID1:         a,
		EntityID2:         b,
		SimilarityScore:   score,
		CalculationMethod: method,
	}
	return nil
}

// Similarities returns all stored similarity records. Test helper.
func (s *Store) Similarities() []common.EntitySimilarity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.EntitySimilarity, 0, len(s.sims))
	for _, sim := range s.sims {
		out = append(out, sim)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityID1 != out[j].EntityID1 {
			return out[i].EntityID1 < out[j].EntityID1
		}
		return out[i].EntityID2 < out[j].EntityID2
	})
	return out
}
