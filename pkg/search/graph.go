package search

import (
	"context"

	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/store"
)

// GraphOptions bounds a neighborhood expansion. Depth 0 returns just the
// starting entity.
type GraphOptions struct {
	Depth          int
	IncludeReverse bool
}

type edgeKey struct {
	source, target int64
	relType        string
}

// GetEntityGraph expands the relationship neighborhood of entityID up to
// the configured depth. A missing entity yields an empty graph, not an
// error. Cycles are safe: every entity id is visited at most once.
func (s *Service) GetEntityGraph(ctx context.Context, entityID int64, opts GraphOptions) (*common.NetworkGraph, error) {
	graph := &common.NetworkGraph{
		Nodes: []common.Entity{},
		Edges: []common.Relationship{},
	}

	start, err := s.getEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return graph, nil
	}

	type item struct {
		id    int64
		depth int
	}
	visited := map[int64]bool{entityID: true}
	seenEdges := make(map[edgeKey]bool)
	queue := []item{{id: entityID, depth: 0}}
	graph.Nodes = append(graph.Nodes, *start)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if curr.depth >= opts.Depth {
			continue
		}

		rels, err := s.store.GetRelationships(ctx, store.RelationshipFilter{EntityID: curr.id})
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			outgoing := rel.SourceEntityID == curr.id
			if !outgoing && !opts.IncludeReverse {
				continue
			}

			key := edgeKey{rel.SourceEntityID, rel.TargetEntityID, rel.Type}
			if !seenEdges[key] {
				seenEdges[key] = true
				graph.Edges = append(graph.Edges, rel)
			}

			other := rel.TargetEntityID
			if !outgoing {
				other = rel.SourceEntityID
			}
			if visited[other] {
				continue
			}
			visited[other] = true
			node, err := s.getEntity(ctx, other)
			if err != nil {
				return nil, err
			}
			if node == nil {
				continue
			}
			graph.Nodes = append(graph.Nodes, *node)
			queue = append(queue, item{id: other, depth: curr.depth + 1})
		}
	}

	return graph, nil
}

// FindEntityPath breadth-first searches the undirected relationship graph
// for the shortest path from sourceID to targetID, capped at maxDepth hops.
// Hops taken against edge direction carry a "_reverse" type suffix. No path
// yields an empty slice.
func (s *Service) FindEntityPath(ctx context.Context, sourceID, targetID int64, maxDepth int) ([]common.PathStep, error) {
	if sourceID == targetID || maxDepth <= 0 {
		return []common.PathStep{}, nil
	}

	visited := map[int64]bool{sourceID: true}
	queue := [][]common.PathStep{{}}
	heads := []int64{sourceID}

	for len(queue) > 0 {
		path := queue[0]
		head := heads[0]
		queue = queue[1:]
		heads = heads[1:]

		if len(path) >= maxDepth {
			continue
		}

		rels, err := s.store.GetRelationships(ctx, store.RelationshipFilter{EntityID: head})
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			var step common.PathStep
			switch head {
			case rel.SourceEntityID:
				step = common.PathStep{
					FromEntityID: rel.SourceEntityID,
					ToEntityID:   rel.TargetEntityID,
					Type:         rel.Type,
				}
			case rel.TargetEntityID:
				step = common.PathStep{
					FromEntityID: rel.TargetEntityID,
					ToEntityID:   rel.SourceEntityID,
					Type:         rel.Type + "_reverse",
				}
			default:
				continue
			}

			if visited[step.ToEntityID] {
				continue
			}
			visited[step.ToEntityID] = true

			next := make([]common.PathStep, len(path), len(path)+1)
			copy(next, path)
			next = append(next, step)

			if step.ToEntityID == targetID {
				return next, nil
			}
			queue = append(queue, next)
			heads = append(heads, step.ToEntityID)
		}
	}

	return []common.PathStep{}, nil
}

func (s *Service) getEntity(ctx context.Context, id int64) (*common.Entity, error) {
	entities, err := s.store.GetEntities(ctx, store.EntityFilter{IDs: []int64{id}})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return &entities[0], nil
}
