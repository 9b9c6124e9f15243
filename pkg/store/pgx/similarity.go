package pgx

import (
	"context"

	"github.com/knograph/knograph/pkg/store"
)

func (s *Store) AddEntityAlias(ctx context.Context, entityID int64, alias string) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err := s.conn.Exec(ctx, `
		INSERT INTO entity_aliases (entity_id, alias)
		VALUES ($1, $2)
		ON CONFLICT (entity_id, alias) DO NOTHING`,
		entityID, alias,
	)
	return err
}

func (s *Store) GetEntityAliases(ctx context.Context, entityID int64) ([]string, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT alias FROM entity_aliases WHERE entity_id = $1 ORDER BY alias`,
		entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, err
		}
		out = append(out, alias)
	}
	return out, rows.Err()
}

func (s *Store) AddEntitySimilarity(ctx context.Context, id1, id2 int64, score float64, method string) error {
	a, b := store.CanonicalPair(id1, id2)

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err := s.conn.Exec(ctx, `
		INSERT INTO entity_similarities
			(entity_id_1, entity_id_2, similarity_score, calculation_method)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_id_1, entity_id_2) DO UPDATE SET
			similarity_score   = EXCLUDED.similarity_score,
			calculation_method = EXCLUDED.calculation_method`,
		a, b, score, method,
	)
	return err
}
