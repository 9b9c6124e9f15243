// Package extract turns raw document text into entities and relationships.
// Both extractors layer an optional LLM pass over regex rule evaluation; LLM
// failure is logged and degraded, never surfaced to the caller.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/knograph/knograph/internal/util"
	"github.com/knograph/knograph/pkg/ai"
	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/logger"
)

// llmTries bounds retries of a failed LLM call before the extractors fall
// back to rules.
const llmTries = 2

// DefaultPromptTokenBudget caps the document text sent to the model, in
// tokens of promptEncoding.
const DefaultPromptTokenBudget = 6000

const promptEncoding = "cl100k_base"

// llmOptions assembles the per-call options shared by both extractors. The
// instruction prompt travels as a system message; model and temperature
// overrides apply only when set.
func llmOptions(system, model string, temperature float64) []ai.GenerateOption {
	opts := []ai.GenerateOption{ai.WithSystemPrompts(system)}
	if model != "" {
		opts = append(opts, ai.WithModel(model))
	}
	if temperature != 0 {
		opts = append(opts, ai.WithTemperature(temperature))
	}
	return opts
}

// promptExcerpt bounds text to the token budget before it goes into an LLM
// prompt. Zero budget means DefaultPromptTokenBudget; negative disables the
// cap. Token counting failures send the full text.
func promptExcerpt(text string, budget int) string {
	if budget == 0 {
		budget = DefaultPromptTokenBudget
	}
	if budget < 0 {
		return text
	}
	out, err := ai.TruncateToTokens(text, promptEncoding, budget)
	if err != nil {
		logger.Debug("[Extract] Token counting unavailable, sending full text", "err", err)
		return text
	}
	return out
}

// Default confidence assigned per extraction strategy. Tunable through the
// extractor configs.
const (
	DefaultRuleConfidence    = 0.7
	DefaultPatternConfidence = 0.8
	DefaultLLMConfidence     = 0.9
	DefaultCooccurConfidence = 0.5
)

// EntityRule binds an entity type to the ordered regex patterns that
// recognize it. When a pattern has a capture group, group 1 is the entity
// span; otherwise the whole match is.
type EntityRule struct {
	Type     string
	Patterns []*regexp.Regexp
}

// defaultEntityRules are the built-in recognizers. Order matters: the first
// rule to claim an exact span wins.
func defaultEntityRules() []EntityRule {
	return []EntityRule{
		{
			// Bare CJK runs of 2 to 4 characters, bounded by non-CJK text.
			Type: "person",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?:^|[^\p{Han}])(\p{Han}{2,4})(?:[^\p{Han}]|$)`),
			},
		},
		{
			Type: "location",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\p{Han}{1,6}(?:省|市|县|区|镇|村|州|街道)`),
			},
		},
		{
			Type: "organization",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\p{Han}{2,10}(?:公司|集团|大学|学院|医院|银行|研究所|研究院|协会|委员会|部门|中心)`),
			},
		},
		{
			Type: "number",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\d+(?:\.\d+)?`),
			},
		},
		{
			Type: "datetime",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\d{4}年(?:\d{1,2}月(?:\d{1,2}日)?)?`),
				regexp.MustCompile(`\d{1,2}月\d{1,2}日`),
				regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`),
				regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?`),
			},
		},
	}
}

// EntityConfig configures an EntityExtractor. Custom rules are appended
// after the built-ins, so built-ins claim ambiguous spans first.
type EntityConfig struct {
	AI             ai.Client // nil disables the LLM pass
	CustomRules    []EntityRule
	RuleConfidence float64
	LLMConfidence  float64

	// LLMModel overrides the client's default model for extraction calls.
	LLMModel       string
	LLMTemperature float64

	// PromptTokenBudget caps the document text inside LLM prompts, in
	// tokens. Zero means DefaultPromptTokenBudget; negative disables the
	// cap.
	PromptTokenBudget int
}

// EntityExtractor finds typed entity mentions in text. It tries the LLM
// first when one is configured and falls back to rule evaluation on any
// failure.
type EntityExtractor struct {
	ai             ai.Client
	rules          []EntityRule
	ruleConfidence float64
	llmConfidence  float64
	llmModel       string
	llmTemperature float64
	promptBudget   int
}

func NewEntityExtractor(cfg EntityConfig) *EntityExtractor {
	if cfg.RuleConfidence == 0 {
		cfg.RuleConfidence = DefaultRuleConfidence
	}
	if cfg.LLMConfidence == 0 {
		cfg.LLMConfidence = DefaultLLMConfidence
	}
	return &EntityExtractor{
		ai:             cfg.AI,
		rules:          append(defaultEntityRules(), cfg.CustomRules...),
		ruleConfidence: cfg.RuleConfidence,
		llmConfidence:  cfg.LLMConfidence,
		llmModel:       cfg.LLMModel,
		llmTemperature: cfg.LLMTemperature,
		promptBudget:   cfg.PromptTokenBudget,
	}
}

// Extract returns the entities found in text. Returned entities carry no
// storage ids; persist and reload before building relationships from them.
func (x *EntityExtractor) Extract(ctx context.Context, text, docID string) []common.Entity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if x.ai != nil {
		entities, err := x.llmExtract(ctx, text, docID)
		if err == nil && len(entities) > 0 {
			return entities
		}
		if err != nil {
			logger.Warn("[Extract] LLM entity extraction failed, falling back to rules", "doc", docID, "err", err)
		}
	}

	return x.ruleExtract(text, docID)
}

func (x *EntityExtractor) ruleExtract(text, docID string) []common.Entity {
	claimed := make(map[[2]int]bool)
	var out []common.Entity

	for _, rule := range x.rules {
		for _, pattern := range rule.Patterns {
			for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
				start, end := m[0], m[1]
				if len(m) >= 4 && m[2] >= 0 {
					start, end = m[2], m[3]
				}
				span := [2]int{start, end}
				if claimed[span] {
					continue
				}
				claimed[span] = true
				out = append(out, common.Entity{
					Name:       text[start:end],
					Type:       rule.Type,
					DocID:      docID,
					StartPos:   start,
					EndPos:     end,
					Source:     common.SourceRule,
					Confidence: x.ruleConfidence,
				})
			}
		}
	}

	return out
}

type llmEntity struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type llmEntityList struct {
	Entities []llmEntity `json:"entities" jsonschema_description:"All entities found in the text"`
}

func (x *EntityExtractor) llmExtract(ctx context.Context, text, docID string) ([]common.Entity, error) {
	types := make([]string, 0, len(x.rules))
	for _, r := range x.rules {
		types = append(types, r.Type)
	}
	system := fmt.Sprintf(ai.EntityExtractPrompt, strings.Join(types, ", "))
	excerpt := promptExcerpt(text, x.promptBudget)
	opts := llmOptions(system, x.llmModel, x.llmTemperature)

	var result llmEntityList
	err := util.RetryErrWithContext(ctx, llmTries, func(ctx context.Context) error {
		result = llmEntityList{}
		return x.ai.GenerateCompletionWithFormat(ctx,
			"entity_extraction",
			"Named entities found in a document",
			"Text:\n"+excerpt,
			&result,
			opts...,
		)
	})
	if err != nil {
		return nil, err
	}

	out := make([]common.Entity, 0, len(result.Entities))
	for _, e := range result.Entities {
		if e.Name == "" {
			continue
		}
		start, end := e.Start, e.End
		// Models get offsets wrong often enough that we re-anchor on the
		// literal name when the reported span does not match.
		if start < 0 || end > len(text) || start >= end || text[start:end] != e.Name {
			idx := strings.Index(text, e.Name)
			if idx < 0 {
				continue
			}
			start, end = idx, idx+len(e.Name)
		}
		out = append(out, common.Entity{
			Name:       e.Name,
			Type:       e.Type,
			DocID:      docID,
			StartPos:   start,
			EndPos:     end,
			Source:     common.SourceLLM,
			Confidence: x.llmConfidence,
		})
	}
	return out, nil
}
