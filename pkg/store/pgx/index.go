package pgx

import (
	"context"

	"github.com/knograph/knograph/pkg/common"
)

// BuildInvertedIndex rebuilds the document's postings from scratch so a
// re-index never leaves stale terms behind.
func (s *Store) BuildInvertedIndex(ctx context.Context, docID string, tokens []common.Token) error {
	type agg struct {
		frequency int
		positions []int32
	}
	byTerm := make(map[string]*agg)
	order := make([]string, 0)
	for _, tok := range tokens {
		if tok.Text == "" {
			continue
		}
		a, ok := byTerm[tok.Text]
		if !ok {
			a = &agg{}
			byTerm[tok.Text] = a
			order = append(order, tok.Text)
		}
		a.frequency++
		a.positions = append(a.positions, int32(tok.Start))
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM inverted_index WHERE doc_id = $1`, docID); err != nil {
		return err
	}
	for _, term := range order {
		a := byTerm[term]
		_, err := tx.Exec(ctx, `
			INSERT INTO inverted_index (term, doc_id, frequency, positions)
			VALUES ($1, $2, $3, $4)`,
			term, docID, a.frequency, a.positions,
		)
		if err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE documents SET total_tokens = $2 WHERE doc_id = $1`,
		docID, len(tokens),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SearchIndex returns the postings for term together with the corpus
// statistics tf-idf scoring needs. With fuzzy set, term matches as a
// substring.
func (s *Store) SearchIndex(ctx context.Context, term string, fuzzy bool) ([]common.Posting, error) {
	cond := `i.term = $1`
	arg := any(term)
	if fuzzy {
		cond = `i.term LIKE $1`
		arg = "%" + escapeLike(term) + "%"
	}

	rows, err := s.conn.Query(ctx, `
		SELECT i.term, i.doc_id, i.frequency, i.positions,
		       d.total_tokens,
		       COUNT(*) OVER (PARTITION BY i.term) AS doc_frequency,
		       (SELECT COUNT(*) FROM documents) AS total_documents
		FROM inverted_index i
		JOIN documents d ON d.doc_id = i.doc_id
		WHERE `+cond+`
		ORDER BY i.term, i.doc_id`,
		arg,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Posting
	for rows.Next() {
		var (
			p   common.Posting
			pos []int32
		)
		if err := rows.Scan(
			&p.Term, &p.DocID, &p.Frequency, &pos,
			&p.TotalTokens, &p.DocFrequency, &p.TotalDocuments,
		); err != nil {
			return nil, err
		}
		p.Positions = make([]int, len(pos))
		for i, v := range pos {
			p.Positions[i] = int(v)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
