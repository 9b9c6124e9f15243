// Package search is the query layer: tf-idf document search, entity
// lookup, graph neighborhood expansion and shortest-path queries.
package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/store"
	"github.com/knograph/knograph/pkg/tokenizer"
)

// Sort orders accepted by the search operations.
const (
	SortByScore     = "score"
	SortByCreatedAt = "created_at"
	SortByUpdatedAt = "updated_at"
)

// Options controls matching, ordering and pagination of a search call.
type Options struct {
	Fuzzy  bool
	SortBy string // score (default), created_at, updated_at
	Offset int
	Limit  int // 0 means no limit
}

// DocumentResult wraps one matched document with its score and the query
// tokens that matched it.
type DocumentResult struct {
	Item       common.Document `json:"item"`
	Score      float64         `json:"score"`
	Highlights []string        `json:"highlights"`
}

// EntityResult wraps one matched entity.
type EntityResult struct {
	Item           common.Entity `json:"item"`
	Score          float64       `json:"score"`
	Highlights     []string      `json:"highlights"`
	MatchPositions []int         `json:"match_positions"`
}

// Service runs queries against one storage backend.
type Service struct {
	store     store.Storage
	tokenizer *tokenizer.Tokenizer
}

func New(st store.Storage, tok *tokenizer.Tokenizer) *Service {
	return &Service{store: st, tokenizer: tok}
}

// SearchDocuments tokenizes the query and scores each document by the sum
// of tf-idf contributions of the matched query tokens.
func (s *Service) SearchDocuments(ctx context.Context, query string, opts Options) ([]DocumentResult, error) {
	results, err := s.scoreDocuments(ctx, query, opts.Fuzzy)
	if err != nil {
		return nil, err
	}
	sortDocumentResults(results, opts.SortBy)
	return paginate(results, opts.Offset, opts.Limit), nil
}

func (s *Service) scoreDocuments(ctx context.Context, query string, fuzzy bool) ([]DocumentResult, error) {
	type docAcc struct {
		score      float64
		highlights []string
		seen       map[string]bool
	}
	acc := make(map[string]*docAcc)

	for _, tok := range s.tokenizer.Tokenize(query) {
		postings, err := s.store.SearchIndex(ctx, tok.Text, fuzzy)
		if err != nil {
			return nil, err
		}
		for _, p := range postings {
			if p.TotalTokens == 0 || p.DocFrequency == 0 || p.TotalDocuments == 0 {
				continue
			}
			tf := float64(p.Frequency) / float64(p.TotalTokens)
			idf := math.Log(float64(p.TotalDocuments) / float64(p.DocFrequency))
			a, ok := acc[p.DocID]
			if !ok {
				a = &docAcc{seen: make(map[string]bool)}
				acc[p.DocID] = a
			}
			a.score += tf * idf
			if !a.seen[p.Term] {
				a.seen[p.Term] = true
				a.highlights = append(a.highlights, p.Term)
			}
		}
	}

	results := make([]DocumentResult, 0, len(acc))
	for docID, a := range acc {
		doc, err := s.store.GetDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		results = append(results, DocumentResult{
			Item:       *doc,
			Score:      a.score,
			Highlights: a.highlights,
		})
	}
	return results, nil
}

// SearchEntities matches the query against entity names and types. An exact
// name match scores 1, a substring match scores by coverage, a type match
// scores 0.5.
func (s *Service) SearchEntities(ctx context.Context, query string, opts Options) ([]EntityResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	entities, err := s.store.GetEntities(ctx, store.EntityFilter{})
	if err != nil {
		return nil, err
	}

	var results []EntityResult
	for _, e := range entities {
		var (
			score      float64
			highlights []string
			positions  []int
		)
		switch {
		case e.Name == query:
			score = 1.0
			highlights = append(highlights, e.Name)
			positions = append(positions, 0)
		case opts.Fuzzy && strings.Contains(e.Name, query):
			score = float64(len(query)) / float64(len(e.Name))
			highlights = append(highlights, query)
			positions = append(positions, strings.Index(e.Name, query))
		case e.Type == query:
			score = 0.5
			highlights = append(highlights, e.Type)
		default:
			continue
		}
		results = append(results, EntityResult{
			Item:           e,
			Score:          score,
			Highlights:     highlights,
			MatchPositions: positions,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return paginate(results, opts.Offset, opts.Limit), nil
}

// AdvancedQuery composes text search with post-hoc filters.
type AdvancedQuery struct {
	Text          string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Tags          []string
}

// AdvancedSearch runs the text search when a query text is present,
// otherwise starts from all documents, then filters by creation date range
// and tags before sorting and paginating.
func (s *Service) AdvancedSearch(ctx context.Context, query AdvancedQuery, opts Options) ([]DocumentResult, error) {
	var (
		results []DocumentResult
		err     error
	)
	if strings.TrimSpace(query.Text) != "" {
		results, err = s.scoreDocuments(ctx, query.Text, opts.Fuzzy)
	} else {
		var docs []common.Document
		docs, err = s.store.ListDocuments(ctx)
		for _, doc := range docs {
			results = append(results, DocumentResult{Item: doc})
		}
	}
	if err != nil {
		return nil, err
	}

	filtered := results[:0]
	for _, r := range results {
		if !query.CreatedAfter.IsZero() && r.Item.CreatedAt.Before(query.CreatedAfter) {
			continue
		}
		if !query.CreatedBefore.IsZero() && r.Item.CreatedAt.After(query.CreatedBefore) {
			continue
		}
		if !hasAllTags(r.Item.Tags, query.Tags) {
			continue
		}
		filtered = append(filtered, r)
	}

	sortDocumentResults(filtered, opts.SortBy)
	return paginate(filtered, opts.Offset, opts.Limit), nil
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

func sortDocumentResults(results []DocumentResult, sortBy string) {
	switch sortBy {
	case SortByCreatedAt:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Item.CreatedAt.After(results[j].Item.CreatedAt)
		})
	case SortByUpdatedAt:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Item.UpdatedAt.After(results[j].Item.UpdatedAt)
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
	}
}

func paginate[T any](results []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []T{}
	}
	results = results[offset:]
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}
