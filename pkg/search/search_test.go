package search

import (
	"context"
	"testing"
	"time"

	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/store"
	"github.com/knograph/knograph/pkg/store/memory"
	"github.com/knograph/knograph/pkg/tokenizer"
)

func newService(st store.Storage) *Service {
	return New(st, tokenizer.New())
}

func indexDocument(t *testing.T, s store.Storage, doc common.Document) {
	t.Helper()
	ctx := context.Background()
	if err := s.SaveDocument(ctx, &doc); err != nil {
		t.Fatal(err)
	}
	tok := tokenizer.New()
	if err := s.BuildInvertedIndex(ctx, doc.DocID, tok.Tokenize(doc.Content)); err != nil {
		t.Fatal(err)
	}
}

func TestSearchDocuments(t *testing.T) {
	st := memory.New()
	indexDocument(t, st, common.Document{DocID: "ai", Content: "artificial intelligence is a branch of computer science"})
	indexDocument(t, st, common.Document{DocID: "bio", Content: "biology studies living organisms"})
	indexDocument(t, st, common.Document{DocID: "cs", Content: "computer science studies computation computer systems"})

	svc := newService(st)
	results, err := svc.SearchDocuments(context.Background(), "computer", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	// "computer" appears twice in cs and once in ai, similar lengths, so cs
	// ranks first.
	if results[0].Item.DocID != "cs" {
		t.Fatalf("expected cs first, got %q", results[0].Item.DocID)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}
	if len(results[0].Highlights) == 0 || results[0].Highlights[0] != "computer" {
		t.Fatalf("expected highlight, got %v", results[0].Highlights)
	}
}

func TestSearchDocumentsNoMatch(t *testing.T) {
	st := memory.New()
	indexDocument(t, st, common.Document{DocID: "d1", Content: "hello world"})

	svc := newService(st)
	results, err := svc.SearchDocuments(context.Background(), "nonexistent", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSearchDocumentsPagination(t *testing.T) {
	st := memory.New()
	indexDocument(t, st, common.Document{DocID: "a", Content: "shared term alpha"})
	indexDocument(t, st, common.Document{DocID: "b", Content: "shared term beta"})
	indexDocument(t, st, common.Document{DocID: "c", Content: "shared term gamma"})

	svc := newService(st)
	page, err := svc.SearchDocuments(context.Background(), "shared", Options{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 result, got %d", len(page))
	}

	beyond, err := svc.SearchDocuments(context.Background(), "shared", Options{Offset: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(beyond) != 0 {
		t.Fatalf("expected empty page, got %d", len(beyond))
	}

	// A negative offset reads from the start instead of panicking.
	clamped, err := svc.SearchDocuments(context.Background(), "shared", Options{Offset: -2, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(clamped) != 2 {
		t.Fatalf("expected 2 results with clamped offset, got %d", len(clamped))
	}
}

func TestPaginateNegativeOffset(t *testing.T) {
	got := paginate([]int{1, 2, 3}, -5, 0)
	if len(got) != 3 {
		t.Fatalf("expected full slice, got %v", got)
	}
}

func TestSearchEntities(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	if err := st.SaveDocument(ctx, &common.Document{DocID: "d1"}); err != nil {
		t.Fatal(err)
	}
	entities := []common.Entity{
		{Name: "北京", Type: "location", DocID: "d1", StartPos: 0, EndPos: 6, Confidence: 0.7},
		{Name: "北京大学", Type: "organization", DocID: "d1", StartPos: 10, EndPos: 22, Confidence: 0.7},
	}
	if err := st.SaveEntities(ctx, entities); err != nil {
		t.Fatal(err)
	}

	svc := newService(st)
	exact, err := svc.SearchEntities(ctx, "北京", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(exact) != 1 || exact[0].Item.Name != "北京" || exact[0].Score != 1.0 {
		t.Fatalf("unexpected exact result: %+v", exact)
	}

	fuzzy, err := svc.SearchEntities(ctx, "北京", Options{Fuzzy: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(fuzzy) != 2 {
		t.Fatalf("expected 2 fuzzy results, got %d", len(fuzzy))
	}
	if fuzzy[0].Score < fuzzy[1].Score {
		t.Fatal("fuzzy results not sorted by score")
	}
}

func TestAdvancedSearchFilters(t *testing.T) {
	st := memory.New()
	old := common.Document{DocID: "old", Content: "shared topic", Tags: []string{"archive"}, CreatedAt: time.Now().Add(-48 * time.Hour)}
	recent := common.Document{DocID: "recent", Content: "shared topic", Tags: []string{"fresh"}, CreatedAt: time.Now().Add(-time.Hour)}
	indexDocument(t, st, old)
	indexDocument(t, st, recent)

	svc := newService(st)
	ctx := context.Background()

	byDate, err := svc.AdvancedSearch(ctx, AdvancedQuery{
		Text:         "shared",
		CreatedAfter: time.Now().Add(-24 * time.Hour),
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(byDate) != 1 || byDate[0].Item.DocID != "recent" {
		t.Fatalf("date filter failed: %+v", byDate)
	}

	byTag, err := svc.AdvancedSearch(ctx, AdvancedQuery{Tags: []string{"archive"}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(byTag) != 1 || byTag[0].Item.DocID != "old" {
		t.Fatalf("tag filter failed: %+v", byTag)
	}
}

func seedGraph(t *testing.T, st store.Storage, names []string, edges [][2]int) []common.Entity {
	t.Helper()
	ctx := context.Background()
	if err := st.SaveDocument(ctx, &common.Document{DocID: "g"}); err != nil {
		t.Fatal(err)
	}
	entities := make([]common.Entity, len(names))
	for i, name := range names {
		entities[i] = common.Entity{
			Name: name, Type: "node", DocID: "g",
			StartPos: i * 10, EndPos: i*10 + 1, Confidence: 0.7,
		}
	}
	if err := st.SaveEntities(ctx, entities); err != nil {
		t.Fatal(err)
	}
	rels := make([]common.Relationship, 0, len(edges))
	for _, e := range edges {
		rels = append(rels, common.Relationship{
			SourceEntityID: entities[e[0]].ID,
			TargetEntityID: entities[e[1]].ID,
			Type:           "associate",
			DocID:          "g",
			Confidence:     0.8,
		})
	}
	if err := st.SaveRelationships(ctx, rels); err != nil {
		t.Fatal(err)
	}
	return entities
}

func TestGetEntityGraphDepthZero(t *testing.T) {
	st := memory.New()
	entities := seedGraph(t, st, []string{"a", "b"}, [][2]int{{0, 1}})

	svc := newService(st)
	graph, err := svc.GetEntityGraph(context.Background(), entities[0].ID, GraphOptions{Depth: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(graph.Nodes) != 1 || graph.Nodes[0].ID != entities[0].ID {
		t.Fatalf("expected exactly the start node, got %+v", graph.Nodes)
	}
	if len(graph.Edges) != 0 {
		t.Fatalf("expected no edges at depth 0, got %d", len(graph.Edges))
	}
}

func TestGetEntityGraphCycleTerminates(t *testing.T) {
	st := memory.New()
	entities := seedGraph(t, st, []string{"a", "b"}, [][2]int{{0, 1}, {1, 0}})

	svc := newService(st)
	graph, err := svc.GetEntityGraph(context.Background(), entities[0].ID, GraphOptions{Depth: 5, IncludeReverse: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(graph.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(graph.Nodes))
	}
	if len(graph.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(graph.Edges))
	}
}

func TestGetEntityGraphMissingEntity(t *testing.T) {
	svc := newService(memory.New())
	graph, err := svc.GetEntityGraph(context.Background(), 404, GraphOptions{Depth: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(graph.Nodes) != 0 || len(graph.Edges) != 0 {
		t.Fatalf("expected empty graph, got %+v", graph)
	}
}

func TestFindEntityPathShortest(t *testing.T) {
	st := memory.New()
	// a-b-d and a-c-e-d: BFS must return the two-hop path.
	entities := seedGraph(t, st, []string{"a", "b", "c", "d", "e"}, [][2]int{
		{0, 1}, {1, 3}, {0, 2}, {2, 4}, {4, 3},
	})

	svc := newService(st)
	path, err := svc.FindEntityPath(context.Background(), entities[0].ID, entities[3].ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 2 {
		t.Fatalf("expected shortest path of 2 hops, got %d: %+v", len(path), path)
	}
	if path[0].FromEntityID != entities[0].ID || path[1].ToEntityID != entities[3].ID {
		t.Fatalf("path endpoints wrong: %+v", path)
	}
}

func TestFindEntityPathReverseEdge(t *testing.T) {
	st := memory.New()
	entities := seedGraph(t, st, []string{"a", "b"}, [][2]int{{1, 0}})

	svc := newService(st)
	path, err := svc.FindEntityPath(context.Background(), entities[0].ID, entities[1].ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 1 {
		t.Fatalf("expected 1 hop, got %d", len(path))
	}
	if path[0].Type != "associate_reverse" {
		t.Fatalf("expected reverse type suffix, got %q", path[0].Type)
	}
}

func TestFindEntityPathBounds(t *testing.T) {
	st := memory.New()
	entities := seedGraph(t, st, []string{"a", "b", "c"}, [][2]int{{0, 1}, {1, 2}})

	svc := newService(st)
	ctx := context.Background()

	tooShallow, err := svc.FindEntityPath(ctx, entities[0].ID, entities[2].ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(tooShallow) != 0 {
		t.Fatalf("expected empty path beyond depth cap, got %+v", tooShallow)
	}

	trivial, err := svc.FindEntityPath(ctx, entities[0].ID, entities[0].ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(trivial) != 0 {
		t.Fatalf("expected empty path for identical endpoints, got %+v", trivial)
	}
}

func TestFindEntityPathDisconnected(t *testing.T) {
	st := memory.New()
	entities := seedGraph(t, st, []string{"a", "b", "c"}, [][2]int{{0, 1}})

	svc := newService(st)
	path, err := svc.FindEntityPath(context.Background(), entities[0].ID, entities[2].ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 0 {
		t.Fatalf("expected empty path for disconnected entities, got %+v", path)
	}
}
