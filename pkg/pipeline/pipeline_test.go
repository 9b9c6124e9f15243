package pipeline

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/extract"
	"github.com/knograph/knograph/pkg/store"
	"github.com/knograph/knograph/pkg/store/memory"
	"github.com/knograph/knograph/pkg/tokenizer"
)

func newProcessor(st store.Storage) *Processor {
	entityRules := []extract.EntityRule{{
		Type:     "location",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`北京|上海|中国`)},
	}}
	return New(
		st,
		tokenizer.New(),
		extract.NewEntityExtractor(extract.EntityConfig{CustomRules: entityRules}),
		extract.NewRelationExtractor(extract.RelationConfig{}),
	)
}

func TestProcessDocument(t *testing.T) {
	s := memory.New()
	p := newProcessor(s)
	ctx := context.Background()

	doc := &common.Document{DocID: "d1", Content: "北京是中国的首都，上海是中国的经济中心。"}
	res, err := p.ProcessDocument(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}

	if res.DocID != "d1" {
		t.Fatalf("unexpected doc id %q", res.DocID)
	}
	if len(res.Tokens) == 0 {
		t.Fatal("expected tokens")
	}
	if len(res.Entities) == 0 {
		t.Fatal("expected entities")
	}
	for _, e := range res.Entities {
		if e.ID == 0 {
			t.Fatalf("entity %q missing storage id after reload", e.Name)
		}
	}
	if len(res.Relationships) == 0 {
		t.Fatal("expected relationships")
	}
	for _, r := range res.Relationships {
		if r.SourceEntityID == 0 || r.TargetEntityID == 0 {
			t.Fatalf("relationship with unresolved endpoint: %+v", r)
		}
	}

	// Pipeline output must be persisted, not just returned.
	stored, err := s.GetDocument(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil {
		t.Fatal("document not persisted")
	}
	postings, err := s.SearchIndex(ctx, "北京", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) == 0 {
		t.Fatal("inverted index not built")
	}
}

func TestProcessDocumentGeneratesDocID(t *testing.T) {
	p := newProcessor(memory.New())
	doc := &common.Document{Content: "hello world"}
	res, err := p.ProcessDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.DocID == "" || doc.DocID == "" {
		t.Fatal("expected generated doc id")
	}
}

func TestProcessDocumentNoEntities(t *testing.T) {
	p := newProcessor(memory.New())
	res, err := p.ProcessDocument(context.Background(), &common.Document{DocID: "d1", Content: "hello world"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entities) != 0 || len(res.Relationships) != 0 {
		t.Fatalf("expected empty entity and relationship sets, got %+v", res)
	}
	if res.Entities == nil || res.Relationships == nil {
		t.Fatal("empty collections must be non-nil")
	}
}

// failingStore wraps the memory backend and fails index writes.
type failingStore struct {
	store.Storage
}

func (f *failingStore) BuildInvertedIndex(ctx context.Context, docID string, tokens []common.Token) error {
	if docID == "bad" {
		return errors.New("disk full")
	}
	return f.Storage.BuildInvertedIndex(ctx, docID, tokens)
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	p := newProcessor(&failingStore{Storage: memory.New()})
	docs := []*common.Document{
		{DocID: "good", Content: "hello"},
		{DocID: "bad", Content: "boom"},
		{DocID: "also-good", Content: "world"},
	}

	results := p.ProcessBatch(context.Background(), docs)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Error != "" || results[2].Error != "" {
		t.Fatalf("healthy documents must not report errors: %+v", results)
	}
	if results[1].Error == "" {
		t.Fatal("failed document must carry its error")
	}
	if results[1].Tokens == nil || results[1].Entities == nil || results[1].Relationships == nil {
		t.Fatal("failed result must carry empty, non-nil collections")
	}
}
