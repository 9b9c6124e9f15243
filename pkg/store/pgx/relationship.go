package pgx

import (
	"context"
	"fmt"
	"strings"

	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/store"
)

// SaveRelationships persists a batch atomically. Rows whose endpoints do not
// exist are skipped; a (source, target, type) collision keeps the higher
// confidence.
func (s *Store) SaveRelationships(ctx context.Context, rels []common.Relationship) error {
	if len(rels) == 0 {
		return nil
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := range rels {
		r := &rels[i]
		props, err := marshalProps(r.Properties)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO relationships
				(source_entity_id, target_entity_id, type, doc_id, confidence,
				 source, evidence_text, properties)
			SELECT $1, $2, $3, $4, $5, $6, $7, $8
			WHERE EXISTS (SELECT 1 FROM entities WHERE id = $1)
			  AND EXISTS (SELECT 1 FROM entities WHERE id = $2)
			ON CONFLICT (source_entity_id, target_entity_id, type) DO UPDATE SET
				doc_id        = CASE WHEN EXCLUDED.confidence > relationships.confidence THEN EXCLUDED.doc_id        ELSE relationships.doc_id        END,
				source        = CASE WHEN EXCLUDED.confidence > relationships.confidence THEN EXCLUDED.source        ELSE relationships.source        END,
				evidence_text = CASE WHEN EXCLUDED.confidence > relationships.confidence THEN EXCLUDED.evidence_text ELSE relationships.evidence_text END,
				properties    = CASE WHEN EXCLUDED.confidence > relationships.confidence THEN EXCLUDED.properties    ELSE relationships.properties    END,
				confidence    = GREATEST(relationships.confidence, EXCLUDED.confidence)`,
			r.SourceEntityID, r.TargetEntityID, r.Type, r.DocID, r.Confidence,
			r.Source, r.EvidenceText, props,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) GetRelationships(ctx context.Context, filter store.RelationshipFilter) ([]common.Relationship, error) {
	query := `
		SELECT id, source_entity_id, target_entity_id, type, doc_id,
		       confidence, source, evidence_text, properties
		FROM relationships`
	var (
		conds []string
		args  []any
	)
	if filter.DocID != "" {
		args = append(args, filter.DocID)
		conds = append(conds, fmt.Sprintf("doc_id = $%d", len(args)))
	}
	if filter.EntityID != 0 {
		args = append(args, filter.EntityID)
		conds = append(conds, fmt.Sprintf("(source_entity_id = $%d OR target_entity_id = $%d)", len(args), len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
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

	var out []common.Relationship
	for rows.Next() {
		var (
			r     common.Relationship
			props []byte
		)
		if err := rows.Scan(
			&r.ID, &r.SourceEntityID, &r.TargetEntityID, &r.Type, &r.DocID,
			&r.Confidence, &r.Source, &r.EvidenceText, &props,
		); err != nil {
			return nil, err
		}
		if r.Properties, err = unmarshalProps(props); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateRelationship(ctx context.Context, rel common.Relationship) error {
	props, err := marshalProps(rel.Properties)
	if err != nil {
		return err
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err = s.conn.Exec(ctx, `
		UPDATE relationships SET
			source_entity_id = $2, target_entity_id = $3, type = $4,
			confidence = $5, source = $6, evidence_text = $7, properties = $8
		WHERE id = $1`,
		rel.ID, rel.SourceEntityID, rel.TargetEntityID, rel.Type,
		rel.Confidence, rel.Source, rel.EvidenceText, props,
	)
	return err
}

func (s *Store) DeleteRelationship(ctx context.Context, relID int64) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err := s.conn.Exec(ctx, `DELETE FROM relationships WHERE id = $1`, relID)
	return err
}
