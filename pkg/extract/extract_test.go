package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/knograph/knograph/pkg/ai"
	"github.com/knograph/knograph/pkg/common"
)

const capitalText = "北京是中国的首都，上海是中国的经济中心。"

func locationRule() EntityRule {
	return EntityRule{
		Type:     "location",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`北京|上海|中国`)},
	}
}

func TestEntityExtractRules(t *testing.T) {
	x := NewEntityExtractor(EntityConfig{CustomRules: []EntityRule{locationRule()}})

	entities := x.Extract(context.Background(), capitalText, "d1")

	names := make(map[string]int)
	for _, e := range entities {
		names[e.Name]++
		if capitalText[e.StartPos:e.EndPos] != e.Name {
			t.Fatalf("span mismatch for %q: got %q", e.Name, capitalText[e.StartPos:e.EndPos])
		}
		if e.Source != common.SourceRule {
			t.Fatalf("expected rule source, got %q", e.Source)
		}
		if e.Confidence != DefaultRuleConfidence {
			t.Fatalf("expected default rule confidence, got %v", e.Confidence)
		}
	}
	if names["北京"] != 1 || names["上海"] != 1 {
		t.Fatalf("expected 北京 and 上海 once each, got %v", names)
	}
	if names["中国"] != 2 {
		t.Fatalf("expected 中国 at both occurrences, got %v", names)
	}
}

func TestEntityExtractSpanFirstWins(t *testing.T) {
	// Two rules matching the same span: only the first claims it.
	first := EntityRule{Type: "location", Patterns: []*regexp.Regexp{regexp.MustCompile(`北京`)}}
	second := EntityRule{Type: "city", Patterns: []*regexp.Regexp{regexp.MustCompile(`北京`)}}
	x := NewEntityExtractor(EntityConfig{CustomRules: []EntityRule{first, second}})

	entities := x.Extract(context.Background(), "北京", "d1")
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	if entities[0].Type != "location" {
		t.Fatalf("expected first rule to win, got type %q", entities[0].Type)
	}
}

func TestEntityExtractEmptyText(t *testing.T) {
	x := NewEntityExtractor(EntityConfig{})
	if got := x.Extract(context.Background(), "   ", "d1"); got != nil {
		t.Fatalf("expected nil for blank text, got %v", got)
	}
}

// failingAI always errors, standing in for an unreachable endpoint.
type failingAI struct{}

func (failingAI) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return errors.New("connection refused")
}

// capturingAI records the structured-output request it receives.
type capturingAI struct {
	prompt string
	opts   []ai.GenerateOption
}

func (c *capturingAI) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	c.prompt = prompt
	c.opts = opts
	return errors.New("recorded")
}

func TestEntityExtractLLMRequestShape(t *testing.T) {
	stub := &capturingAI{}
	x := NewEntityExtractor(EntityConfig{
		AI:                stub,
		LLMModel:          "qwen2.5",
		LLMTemperature:    0.3,
		PromptTokenBudget: -1,
		CustomRules:       []EntityRule{locationRule()},
	})
	x.Extract(context.Background(), capitalText, "d1")

	if !strings.Contains(stub.prompt, capitalText) {
		t.Fatalf("expected document text in user prompt, got %q", stub.prompt)
	}
	var got ai.GenerateOptions
	for _, o := range stub.opts {
		o(&got)
	}
	if got.Model != "qwen2.5" {
		t.Fatalf("expected model override, got %q", got.Model)
	}
	if got.Temperature != 0.3 {
		t.Fatalf("expected temperature override, got %v", got.Temperature)
	}
	if len(got.SystemPrompts) == 0 || !strings.Contains(got.SystemPrompts[0], "location") {
		t.Fatalf("expected instructions as a system prompt naming the types, got %v", got.SystemPrompts)
	}
}

func TestPromptExcerptDisabledBudget(t *testing.T) {
	long := strings.Repeat("银河系包含数千亿颗恒星。", 200)
	if got := promptExcerpt(long, -1); got != long {
		t.Fatal("negative budget must not alter the text")
	}
}

func TestEntityExtractLLMFailureFallsBack(t *testing.T) {
	x := NewEntityExtractor(EntityConfig{
		AI:          failingAI{},
		CustomRules: []EntityRule{locationRule()},
	})

	entities := x.Extract(context.Background(), capitalText, "d1")
	if len(entities) == 0 {
		t.Fatal("expected rule fallback to produce entities")
	}
	for _, e := range entities {
		if e.Source != common.SourceRule {
			t.Fatalf("fallback entities must carry rule source, got %q", e.Source)
		}
	}
}

func idEntities() []common.Entity {
	return []common.Entity{
		{ID: 1, Name: "北京", Type: "location", DocID: "d1", StartPos: 0, EndPos: 6},
		{ID: 2, Name: "中国", Type: "location", DocID: "d1", StartPos: 9, EndPos: 15},
		{ID: 3, Name: "上海", Type: "location", DocID: "d1", StartPos: 27, EndPos: 33},
		{ID: 4, Name: "中国", Type: "location", DocID: "d1", StartPos: 36, EndPos: 42},
	}
}

func TestRelationExtractRequiresTwoIDs(t *testing.T) {
	x := NewRelationExtractor(RelationConfig{})
	entities := []common.Entity{
		{ID: 1, Name: "北京", DocID: "d1"},
		{Name: "中国", DocID: "d1"}, // unpersisted
	}
	if got := x.Extract(context.Background(), entities, capitalText, "d1"); got != nil {
		t.Fatalf("expected nil with fewer than two id-bearing entities, got %v", got)
	}
}

func TestRelationExtractPatternAndCooccur(t *testing.T) {
	x := NewRelationExtractor(RelationConfig{})

	rels := x.Extract(context.Background(), idEntities(), capitalText, "d1")
	if len(rels) == 0 {
		t.Fatal("expected relationships")
	}

	var belongTo, cooccur int
	for _, r := range rels {
		switch r.Type {
		case "belong_to":
			belongTo++
			if r.Confidence != DefaultPatternConfidence {
				t.Fatalf("pattern confidence: got %v", r.Confidence)
			}
			if r.EvidenceText == "" {
				t.Fatal("pattern relationship must carry evidence text")
			}
		case "cooccur":
			cooccur++
			if r.Confidence != DefaultCooccurConfidence {
				t.Fatalf("cooccur confidence: got %v", r.Confidence)
			}
		}
	}
	// 北京是中国的首都 resolves against both 中国 occurrences.
	if belongTo < 2 {
		t.Fatalf("expected belong_to candidates for each same-name occurrence, got %d", belongTo)
	}
	// One sentence, four entities: C(4,2) pairs.
	if cooccur == 0 {
		t.Fatal("expected co-occurrence relationships")
	}
}

func TestRelationExtractDedupKeepsHighestConfidence(t *testing.T) {
	rels := []common.Relationship{
		{SourceEntityID: 1, TargetEntityID: 2, Type: "cooccur", Confidence: 0.5},
		{SourceEntityID: 1, TargetEntityID: 2, Type: "cooccur", Confidence: 0.9},
		{SourceEntityID: 1, TargetEntityID: 2, Type: "belong_to", Confidence: 0.8},
	}
	got := dedupeRelationships(rels)
	if len(got) != 2 {
		t.Fatalf("expected 2 relationships after dedup, got %d", len(got))
	}
	if got[0].Confidence != 0.9 {
		t.Fatalf("expected highest confidence to survive, got %v", got[0].Confidence)
	}
}

func TestRelationExtractLLMFailureKeepsRuleResults(t *testing.T) {
	x := NewRelationExtractor(RelationConfig{AI: failingAI{}})
	rels := x.Extract(context.Background(), idEntities(), capitalText, "d1")
	if len(rels) == 0 {
		t.Fatal("LLM failure must not suppress rule results")
	}
}
