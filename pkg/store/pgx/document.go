package pgx

import (
	"context"
	"errors"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/knograph/knograph/pkg/common"
)

func (s *Store) SaveDocument(ctx context.Context, doc *common.Document) error {
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	return s.conn.QueryRow(ctx, `
		INSERT INTO documents (doc_id, title, content, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doc_id) DO UPDATE SET
			title      = EXCLUDED.title,
			content    = EXCLUDED.content,
			tags       = EXCLUDED.tags,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`,
		doc.DocID, doc.Title, doc.Content, sliceOrEmpty(doc.Tags), doc.CreatedAt, doc.UpdatedAt,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
}

func (s *Store) GetDocument(ctx context.Context, docID string) (*common.Document, error) {
	var doc common.Document
	err := s.conn.QueryRow(ctx, `
		SELECT doc_id, title, content, tags, created_at, updated_at
		FROM documents WHERE doc_id = $1`,
		docID,
	).Scan(&doc.DocID, &doc.Title, &doc.Content, &doc.Tags, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]common.Document, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT doc_id, title, content, tags, created_at, updated_at
		FROM documents ORDER BY doc_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Document
	for rows.Next() {
		var doc common.Document
		if err := rows.Scan(&doc.DocID, &doc.Title, &doc.Content, &doc.Tags, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// DeleteDocument removes the document; entities, relationships, index
// entries and fusion byproducts go with it via foreign keys.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE doc_id = $1`, docID)
	return err
}

func (s *Store) TotalDocuments(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}
