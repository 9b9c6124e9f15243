package pgx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/store"
)

func marshalProps(props map[string]string) ([]byte, error) {
	if len(props) == 0 {
		return nil, nil
	}
	return json.Marshal(props)
}

func unmarshalProps(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var props map[string]string
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// SaveEntities upserts a batch atomically and writes the assigned ids back
// into the slice. A (doc_id, start_pos, end_pos, name) collision keeps
// whichever row carries the higher confidence.
func (s *Store) SaveEntities(ctx context.Context, entities []common.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := range entities {
		e := &entities[i]
		props, err := marshalProps(e.Properties)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO entities
				(name, type, doc_id, start_pos, end_pos, source, confidence,
				 properties, aliases, context_words, occurrences)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (doc_id, start_pos, end_pos, name) DO UPDATE SET
				type          = CASE WHEN EXCLUDED.confidence > entities.confidence THEN EXCLUDED.type          ELSE entities.type          END,
				source        = CASE WHEN EXCLUDED.confidence > entities.confidence THEN EXCLUDED.source        ELSE entities.source        END,
				properties    = CASE WHEN EXCLUDED.confidence > entities.confidence THEN EXCLUDED.properties    ELSE entities.properties    END,
				aliases       = CASE WHEN EXCLUDED.confidence > entities.confidence THEN EXCLUDED.aliases       ELSE entities.aliases       END,
				context_words = CASE WHEN EXCLUDED.confidence > entities.confidence THEN EXCLUDED.context_words ELSE entities.context_words END,
				occurrences   = CASE WHEN EXCLUDED.confidence > entities.confidence THEN EXCLUDED.occurrences   ELSE entities.occurrences   END,
				confidence    = GREATEST(entities.confidence, EXCLUDED.confidence)
			RETURNING id`,
			e.Name, e.Type, e.DocID, e.StartPos, e.EndPos, e.Source, e.Confidence,
			props, sliceOrEmpty(e.Aliases), sliceOrEmpty(e.ContextWords), e.Occurrences,
		).Scan(&e.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func sliceOrEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func (s *Store) GetEntities(ctx context.Context, filter store.EntityFilter) ([]common.Entity, error) {
	query := `
		SELECT id, name, type, doc_id, start_pos, end_pos, source, confidence,
		       properties, aliases, context_words, occurrences
		FROM entities`
	var (
		conds []string
		args  []any
	)
	if filter.DocID != "" {
		args = append(args, filter.DocID)
		conds = append(conds, fmt.Sprintf("doc_id = $%d", len(args)))
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		conds = append(conds, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.conn.Query(ctx, query, args...)
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

func (s *Store) UpdateEntity(ctx context.Context, entity common.Entity) error {
	props, err := marshalProps(entity.Properties)
	if err != nil {
		return err
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err = s.conn.Exec(ctx, `
		UPDATE entities SET
			name = $2, type = $3, source = $4, confidence = $5,
			properties = $6, aliases = $7, context_words = $8, occurrences = $9
		WHERE id = $1`,
		entity.ID, entity.Name, entity.Type, entity.Source, entity.Confidence,
		props, sliceOrEmpty(entity.Aliases), sliceOrEmpty(entity.ContextWords),
		entity.Occurrences,
	)
	return err
}

func (s *Store) DeleteEntity(ctx context.Context, entityID int64) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err := s.conn.Exec(ctx, `DELETE FROM entities WHERE id = $1`, entityID)
	return err
}
