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

// RelationRule binds a relationship type to regex templates. Every template
// must expose exactly two capture groups: group 1 is the source surface
// form, group 2 the target.
type RelationRule struct {
	Type     string
	Patterns []*regexp.Regexp
}

func defaultRelationRules() []RelationRule {
	return []RelationRule{
		{
			Type: "associate",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(\p{Han}{2,6})[和与](\p{Han}{2,6})`),
			},
		},
		{
			Type: "belong_to",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(\p{Han}{2,6})属于(\p{Han}{2,6})`),
				regexp.MustCompile(`(\p{Han}{2,6})是(\p{Han}{2,6})的(?:首都|成员|一部分|省会)`),
			},
		},
		{
			Type: "contain",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(\p{Han}{2,6})(?:包含|包括|拥有)(\p{Han}{2,6})`),
			},
		},
		{
			Type: "describe",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(\p{Han}{2,6})(?:描述|介绍)(?:了)?(\p{Han}{2,6})`),
			},
		},
		{
			Type: "reference",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(\p{Han}{2,6})(?:引用|提到|提及)(?:了)?(\p{Han}{2,6})`),
			},
		},
	}
}

var sentenceSplitRe = regexp.MustCompile(`[。！？!?；;\n]+`)

// RelationConfig configures a RelationExtractor. Custom rules are appended
// after the built-ins.
type RelationConfig struct {
	AI                ai.Client // nil disables the LLM pass
	CustomRules       []RelationRule
	PatternConfidence float64
	CooccurConfidence float64
	LLMConfidence     float64
	DisableCooccur    bool

	// LLMModel overrides the client's default model for extraction calls.
	LLMModel       string
	LLMTemperature float64

	// PromptTokenBudget caps the document text inside LLM prompts, in
	// tokens. Zero means DefaultPromptTokenBudget; negative disables the
	// cap.
	PromptTokenBudget int
}

// RelationExtractor derives typed, evidence-backed relationships between
// already persisted entities. Three passes run independently and the results
// are merged keeping the highest confidence per (source, target, type).
type RelationExtractor struct {
	ai                ai.Client
	rules             []RelationRule
	patternConfidence float64
	cooccurConfidence float64
	llmConfidence     float64
	disableCooccur    bool
	llmModel          string
	llmTemperature    float64
	promptBudget      int
}

func NewRelationExtractor(cfg RelationConfig) *RelationExtractor {
	if cfg.PatternConfidence == 0 {
		cfg.PatternConfidence = DefaultPatternConfidence
	}
	if cfg.CooccurConfidence == 0 {
		cfg.CooccurConfidence = DefaultCooccurConfidence
	}
	if cfg.LLMConfidence == 0 {
		cfg.LLMConfidence = DefaultLLMConfidence
	}
	return &RelationExtractor{
		ai:                cfg.AI,
		rules:             append(defaultRelationRules(), cfg.CustomRules...),
		patternConfidence: cfg.PatternConfidence,
		cooccurConfidence: cfg.CooccurConfidence,
		llmConfidence:     cfg.LLMConfidence,
		disableCooccur:    cfg.DisableCooccur,
		llmModel:          cfg.LLMModel,
		llmTemperature:    cfg.LLMTemperature,
		promptBudget:      cfg.PromptTokenBudget,
	}
}

// Extract returns relationships between the given entities grounded in
// text. Entities without storage ids cannot anchor a relationship; fewer
// than two id-bearing entities yields nil.
func (x *RelationExtractor) Extract(ctx context.Context, entities []common.Entity, text, docID string) []common.Relationship {
	withIDs := make([]common.Entity, 0, len(entities))
	for _, e := range entities {
		if e.ID != 0 && e.DocID == docID {
			withIDs = append(withIDs, e)
		}
	}
	if len(withIDs) < 2 {
		return nil
	}

	var candidates []common.Relationship
	candidates = append(candidates, x.patternExtract(withIDs, text, docID)...)
	if !x.disableCooccur {
		candidates = append(candidates, x.cooccurExtract(withIDs, text, docID)...)
	}
	if x.ai != nil {
		llmRels, err := x.llmExtract(ctx, withIDs, text, docID)
		if err != nil {
			logger.Warn("[Extract] LLM relation extraction failed, keeping rule results", "doc", docID, "err", err)
		} else {
			candidates = append(candidates, llmRels...)
		}
	}

	return dedupeRelationships(candidates)
}

// dedupeRelationships keeps the highest confidence instance per ordered
// (source, target, type) triple, preserving first-seen order otherwise.
func dedupeRelationships(rels []common.Relationship) []common.Relationship {
	type key struct {
		source, target int64
		relType        string
	}
	index := make(map[key]int, len(rels))
	out := make([]common.Relationship, 0, len(rels))
	for _, r := range rels {
		k := key{r.SourceEntityID, r.TargetEntityID, r.Type}
		if i, ok := index[k]; ok {
			if r.Confidence > out[i].Confidence {
				out[i] = r
			}
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

func (x *RelationExtractor) patternExtract(entities []common.Entity, text, docID string) []common.Relationship {
	byName := make(map[string][]common.Entity)
	for _, e := range entities {
		byName[e.Name] = append(byName[e.Name], e)
	}

	var out []common.Relationship
	for _, rule := range x.rules {
		for _, pattern := range rule.Patterns {
			for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
				if len(m) < 6 {
					continue
				}
				evidence := text[m[0]:m[1]]
				sourceName := text[m[2]:m[3]]
				targetName := text[m[4]:m[5]]
				// Same-name entities each produce a candidate.
				for _, src := range byName[sourceName] {
					for _, tgt := range byName[targetName] {
						if src.ID == tgt.ID {
							continue
						}
						out = append(out, common.Relationship{
							SourceEntityID: src.ID,
							TargetEntityID: tgt.ID,
							Type:           rule.Type,
							DocID:          docID,
							Confidence:     x.patternConfidence,
							Source:         common.SourceRule,
							EvidenceText:   evidence,
						})
					}
				}
			}
		}
	}
	return out
}

func (x *RelationExtractor) cooccurExtract(entities []common.Entity, text, docID string) []common.Relationship {
	var out []common.Relationship
	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		if strings.TrimSpace(sentence) == "" {
			continue
		}
		var present []common.Entity
		for _, e := range entities {
			if strings.Contains(sentence, e.Name) {
				present = append(present, e)
			}
		}
		for i := 0; i < len(present); i++ {
			for j := i + 1; j < len(present); j++ {
				if present[i].ID == present[j].ID {
					continue
				}
				out = append(out, common.Relationship{
					SourceEntityID: present[i].ID,
					TargetEntityID: present[j].ID,
					Type:           "cooccur",
					DocID:          docID,
					Confidence:     x.cooccurConfidence,
					Source:         common.SourceCooccur,
					EvidenceText:   sentence,
				})
			}
		}
	}
	return out
}

type llmRelation struct {
	SourceEntityID int64  `json:"source_entity_id"`
	TargetEntityID int64  `json:"target_entity_id"`
	Type           string `json:"type"`
	EvidenceText   string `json:"evidence_text"`
}

type llmRelationList struct {
	Relationships []llmRelation `json:"relationships" jsonschema_description:"All relationships found between the listed entities"`
}

func (x *RelationExtractor) llmExtract(ctx context.Context, entities []common.Entity, text, docID string) ([]common.Relationship, error) {
	roster := make([]string, 0, len(entities))
	known := make(map[int64]bool, len(entities))
	for _, e := range entities {
		roster = append(roster, fmt.Sprintf("%s(%d)", e.Name, e.ID))
		known[e.ID] = true
	}
	system := fmt.Sprintf(ai.RelationExtractPrompt, strings.Join(roster, "\n"))
	excerpt := promptExcerpt(text, x.promptBudget)
	opts := llmOptions(system, x.llmModel, x.llmTemperature)

	var result llmRelationList
	err := util.RetryErrWithContext(ctx, llmTries, func(ctx context.Context) error {
		result = llmRelationList{}
		return x.ai.GenerateCompletionWithFormat(ctx,
			"relation_extraction",
			"Relationships between known entities in a document",
			"Text:\n"+excerpt,
			&result,
			opts...,
		)
	})
	if err != nil {
		return nil, err
	}

	out := make([]common.Relationship, 0, len(result.Relationships))
	for _, r := range result.Relationships {
		// Hallucinated ids are dropped, not errors.
		if !known[r.SourceEntityID] || !known[r.TargetEntityID] || r.SourceEntityID == r.TargetEntityID {
			continue
		}
		if r.Type == "" {
			continue
		}
		out = append(out, common.Relationship{
			SourceEntityID: r.SourceEntityID,
			TargetEntityID: r.TargetEntityID,
			Type:           r.Type,
			DocID:          docID,
			Confidence:     x.llmConfidence,
			Source:         common.SourceLLM,
			EvidenceText:   r.EvidenceText,
		})
	}
	return out, nil
}
