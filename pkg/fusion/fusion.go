// Package fusion merges entities that refer to the same real-world object.
// Candidates are scored pairwise, clustered by similarity threshold and
// collapsed onto one main entity per cluster, with aliases and relationship
// references rewritten in storage.
package fusion

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/knograph/knograph/internal/util"
	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/logger"
	"github.com/knograph/knograph/pkg/store"
)

// Similarity strategies. Semantic scoring degrades to fuzzy matching unless
// a scorer is plugged in through Config.Semantic.
const (
	StrategyExact    = "exact_match"
	StrategyFuzzy    = "fuzzy_match"
	StrategySemantic = "semantic_match"
)

// DefaultThreshold is the merge threshold used when Config.Threshold is
// zero.
const DefaultThreshold = 0.85

// Config tunes one fusion run.
type Config struct {
	Strategy        string
	Threshold       float64
	ConsiderType    bool
	ConsiderContext bool

	// Semantic overrides the semantic_match scorer. Nil degrades to
	// fuzzy matching.
	Semantic func(a, b common.Entity) float64
}

// Engine executes fusion runs against one storage backend.
type Engine struct {
	store store.Storage
}

func New(st store.Storage) *Engine {
	return &Engine{store: st}
}

// Similarity scores one entity pair under cfg. Exported for scoring without
// a full fusion run; symmetric in its arguments.
func (f *Engine) Similarity(a, b common.Entity, cfg Config) (float64, error) {
	var sim float64
	switch cfg.Strategy {
	case StrategyExact:
		sim = exactSimilarity(a, b)
	case StrategyFuzzy, "":
		sim = fuzzySimilarity(a, b)
	case StrategySemantic:
		if cfg.Semantic != nil {
			sim = cfg.Semantic(a, b)
		} else {
			sim = fuzzySimilarity(a, b)
		}
	default:
		return 0, fmt.Errorf("fusion: unknown strategy %q", cfg.Strategy)
	}

	if cfg.ConsiderType && a.Type != "" && b.Type != "" && a.Type != b.Type {
		sim *= 0.5
	}
	if cfg.ConsiderContext {
		sim = (sim + jaccard(a.ContextWords, b.ContextWords)) / 2
	}
	return sim, nil
}

// Execute merges the given entities against each other and against every
// persisted entity, then returns the fused view restricted to the input
// ids. Input entities are expected to be persisted already (ids assigned).
func (f *Engine) Execute(ctx context.Context, entities []common.Entity, cfg Config) ([]common.Entity, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyFuzzy
	}

	candidates, err := f.candidateSet(ctx, entities)
	if err != nil {
		return nil, err
	}
	n := len(candidates)
	if n == 0 {
		return nil, nil
	}

	matrix, err := f.similarityMatrix(ctx, candidates, cfg)
	if err != nil {
		return nil, err
	}

	clusters := clusterByThreshold(matrix, cfg.Threshold)

	merged := make(map[int64]common.Entity) // loser id -> fused main
	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		main, err := f.mergeCluster(ctx, candidates, cluster)
		if err != nil {
			return nil, err
		}
		for _, idx := range cluster {
			if candidates[idx].ID != 0 {
				merged[candidates[idx].ID] = main
			}
		}
	}

	out := make([]common.Entity, 0, len(entities))
	seen := make(map[int64]bool, len(entities))
	for _, e := range entities {
		if m, ok := merged[e.ID]; ok {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// candidateSet is the union of the input and all persisted entities, input
// first, deduplicated by id.
func (f *Engine) candidateSet(ctx context.Context, entities []common.Entity) ([]common.Entity, error) {
	existing, err := f.store.GetEntities(ctx, store.EntityFilter{})
	if err != nil {
		return nil, err
	}

	out := make([]common.Entity, 0, len(entities)+len(existing))
	seen := make(map[int64]bool, len(entities))
	for _, e := range entities {
		out = append(out, e)
		if e.ID != 0 {
			seen[e.ID] = true
		}
	}
	for _, e := range existing {
		if seen[e.ID] {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// similarityMatrix computes the full symmetric n x n matrix, one row batch
// per worker. The diagonal is 1.
func (f *Engine) similarityMatrix(ctx context.Context, candidates []common.Entity, cfg Config) ([][]float64, error) {
	n := len(candidates)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for j := i + 1; j < n; j++ {
				sim, err := f.Similarity(candidates[i], candidates[j], cfg)
				if err != nil {
					return err
				}
				matrix[i][j] = sim
				matrix[j][i] = sim
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matrix, nil
}

// clusterByThreshold forms connected components over edges with similarity
// at or above threshold, using an explicit stack.
func clusterByThreshold(matrix [][]float64, threshold float64) [][]int {
	n := len(matrix)
	visited := make([]bool, n)
	var clusters [][]int

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		var cluster []int
		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			curr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cluster = append(cluster, curr)
			for next := 0; next < n; next++ {
				if !visited[next] && matrix[curr][next] >= threshold {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// mergeCluster collapses one cluster onto its main entity. The main entity
// is the member with the lowest persisted id; a cluster of only new
// entities falls back to its first member.
func (f *Engine) mergeCluster(ctx context.Context, candidates []common.Entity, cluster []int) (common.Entity, error) {
	mainIdx := cluster[0]
	for _, idx := range cluster {
		if candidates[idx].ID == 0 {
			continue
		}
		if candidates[mainIdx].ID == 0 || candidates[idx].ID < candidates[mainIdx].ID {
			mainIdx = idx
		}
	}
	main := candidates[mainIdx]

	var losers []common.Entity
	for _, idx := range cluster {
		if idx == mainIdx {
			continue
		}
		losers = append(losers, candidates[idx])
	}

	main = mergeMembers(main, losers)

	if main.ID == 0 {
		batch := []common.Entity{main}
		if err := f.store.SaveEntities(ctx, batch); err != nil {
			return common.Entity{}, err
		}
		main = batch[0]
	} else if err := f.store.UpdateEntity(ctx, main); err != nil {
		return common.Entity{}, err
	}

	for _, loser := range losers {
		if loser.ID == 0 {
			continue
		}
		if err := f.recordMerge(ctx, main, loser); err != nil {
			return common.Entity{}, err
		}
	}

	logger.Debug("[Fusion] Cluster merged", "main", main.Name, "id", main.ID, "merged", len(losers))
	return main, nil
}

// mergeMembers unions aliases, context words and occurrence counts of the
// losers into main.
func mergeMembers(main common.Entity, losers []common.Entity) common.Entity {
	aliases := append([]string(nil), main.Aliases...)
	contextWords := append([]string(nil), main.ContextWords...)
	for _, loser := range losers {
		aliases = append(aliases, loser.Name)
		aliases = append(aliases, loser.Aliases...)
		contextWords = append(contextWords, loser.ContextWords...)
		main.Occurrences += loser.Occurrences
	}

	// The surviving name is never its own alias.
	deduped := util.DedupeStrings(aliases)
	kept := deduped[:0]
	for _, a := range deduped {
		if a != main.Name {
			kept = append(kept, a)
		}
	}
	main.Aliases = kept
	main.ContextWords = util.DedupeStrings(contextWords)
	return main
}

// recordMerge writes the alias and similarity byproducts and repoints every
// relationship that references the loser.
func (f *Engine) recordMerge(ctx context.Context, main, loser common.Entity) error {
	if loser.Name != main.Name {
		if err := f.store.AddEntityAlias(ctx, main.ID, loser.Name); err != nil {
			return err
		}
	}
	if err := f.store.AddEntitySimilarity(ctx, main.ID, loser.ID, 1.0, "fusion"); err != nil {
		return err
	}

	rels, err := f.store.GetRelationships(ctx, store.RelationshipFilter{EntityID: loser.ID})
	if err != nil {
		return err
	}
	existing, err := f.store.GetRelationships(ctx, store.RelationshipFilter{EntityID: main.ID})
	if err != nil {
		return err
	}
	type relKey struct {
		source, target int64
		relType        string
	}
	byKey := make(map[relKey]common.Relationship, len(existing))
	for _, r := range existing {
		byKey[relKey{r.SourceEntityID, r.TargetEntityID, r.Type}] = r
	}

	for _, rel := range rels {
		changed := false
		if rel.SourceEntityID == loser.ID {
			rel.SourceEntityID = main.ID
			changed = true
		}
		if rel.TargetEntityID == loser.ID {
			rel.TargetEntityID = main.ID
			changed = true
		}
		if !changed || rel.SourceEntityID == rel.TargetEntityID {
			continue
		}
		// Repointing can land on a triple main already holds. Keep the
		// max-confidence row and drop the loser's instead of writing a
		// duplicate.
		k := relKey{rel.SourceEntityID, rel.TargetEntityID, rel.Type}
		if winner, ok := byKey[k]; ok && winner.ID != rel.ID {
			if rel.Confidence > winner.Confidence {
				winner.Confidence = rel.Confidence
				winner.Source = rel.Source
				winner.EvidenceText = rel.EvidenceText
				if err := f.store.UpdateRelationship(ctx, winner); err != nil {
					return err
				}
				byKey[k] = winner
			}
			if err := f.store.DeleteRelationship(ctx, rel.ID); err != nil {
				return err
			}
			continue
		}
		if err := f.store.UpdateRelationship(ctx, rel); err != nil {
			return err
		}
		byKey[k] = rel
	}
	return nil
}

// MergeEntities merges the entity targetID into sourceID as a user-directed
// correction. It performs the same union and relationship rewrite as a
// fusion run, for exactly one pair.
func (f *Engine) MergeEntities(ctx context.Context, sourceID, targetID int64) (common.Entity, error) {
	if sourceID == targetID {
		return common.Entity{}, fmt.Errorf("fusion: cannot merge entity %d into itself", sourceID)
	}
	found, err := f.store.GetEntities(ctx, store.EntityFilter{IDs: []int64{sourceID, targetID}})
	if err != nil {
		return common.Entity{}, err
	}
	byID := make(map[int64]common.Entity, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	main, ok := byID[sourceID]
	if !ok {
		return common.Entity{}, fmt.Errorf("fusion: entity %d not found", sourceID)
	}
	loser, ok := byID[targetID]
	if !ok {
		return common.Entity{}, fmt.Errorf("fusion: entity %d not found", targetID)
	}

	main = mergeMembers(main, []common.Entity{loser})
	if err := f.store.UpdateEntity(ctx, main); err != nil {
		return common.Entity{}, err
	}
	if err := f.recordMerge(ctx, main, loser); err != nil {
		return common.Entity{}, err
	}
	return main, nil
}
