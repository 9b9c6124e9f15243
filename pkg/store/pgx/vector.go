package pgx

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/knograph/knograph/pkg/common"
)

// SaveEntityEmbedding stores or replaces the embedding for an entity.
func (s *Store) SaveEntityEmbedding(ctx context.Context, entityID int64, embedding []float32) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err := s.conn.Exec(ctx, `
		INSERT INTO entity_embeddings (entity_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (entity_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		entityID, pgvector.NewVector(embedding),
	)
	return err
}

// SimilarEntities returns the entities closest to embedding by cosine
// distance.
func (s *Store) SimilarEntities(ctx context.Context, embedding []float32, limit int) ([]common.Entity, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT e.id, e.name, e.type, e.doc_id, e.start_pos, e.end_pos,
		       e.source, e.confidence, e.properties, e.aliases,
		       e.context_words, e.occurrences
		FROM entity_embeddings emb
		JOIN entities e ON e.id = emb.entity_id
		ORDER BY emb.embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Entity
	for rows.Next() {
		var (
			e     common.Entity
			props []byte
		)
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Type, &e.DocID, &e.StartPos, &e.EndPos,
			&e.Source, &e.Confidence, &props, &e.Aliases, &e.ContextWords, &e.Occurrences,
		); err != nil {
			return nil, err
		}
		if e.Properties, err = unmarshalProps(props); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
