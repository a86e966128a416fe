package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Every document query is scoped by owner_id; a document owned by someone
// else behaves exactly like a missing one.

const documentColumns = `id, owner_id, file_name, file_type, file_size, object_key, summary,
	pros, cons, potential_loopholes, potential_challenges, is_legal, authenticity,
	language, provider, model, is_protected, page_count, content_text, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var item Document
	var pros, cons, loopholes, challenges []byte
	var isLegal sql.NullBool
	var authenticity sql.NullString
	err := row.Scan(&item.ID, &item.OwnerID, &item.FileName, &item.FileType, &item.FileSize, &item.ObjectKey,
		&item.Summary, &pros, &cons, &loopholes, &challenges, &isLegal, &authenticity,
		&item.Language, &item.Provider, &item.Model, &item.IsProtected, &item.PageCount, &item.ContentText,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	lists := []struct {
		raw    []byte
		target *[]string
	}{
		{pros, &item.Pros},
		{cons, &item.Cons},
		{loopholes, &item.PotentialLoopholes},
		{challenges, &item.PotentialChallenges},
	}
	for _, list := range lists {
		if err := decodeList(list.raw, list.target); err != nil {
			return Document{}, err
		}
	}
	if isLegal.Valid {
		item.IsLegal = &isLegal.Bool
	}
	if authenticity.Valid {
		item.Authenticity = &authenticity.String
	}
	return item, nil
}

func decodeList(raw []byte, target *[]string) error {
	*target = []string{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}
	return nil
}

func encodeList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) (Document, error) {
	lists, err := encodeLists(item)
	if err != nil {
		return Document{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (id, owner_id, file_name, file_type, file_size, object_key, summary,
			pros, cons, potential_loopholes, potential_challenges, is_legal, authenticity,
			language, provider, model, is_protected, page_count, content_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING `+documentColumns,
		item.ID, item.OwnerID, item.FileName, item.FileType, item.FileSize, item.ObjectKey, item.Summary,
		lists[0], lists[1], lists[2], lists[3], nullBool(item.IsLegal), nullString(item.Authenticity),
		item.Language, item.Provider, item.Model, item.IsProtected, item.PageCount, item.ContentText,
	)
	saved, err := scanDocument(row)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return saved, nil
}

// UpdateDocumentAnalysis replaces the analysis fields after a re-run.
func (s *PostgresStore) UpdateDocumentAnalysis(ctx context.Context, item Document) (Document, error) {
	lists, err := encodeLists(item)
	if err != nil {
		return Document{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE documents
		SET summary=$3, pros=$4, cons=$5, potential_loopholes=$6, potential_challenges=$7,
			is_legal=$8, authenticity=$9, language=$10, provider=$11, model=$12, page_count=$13,
			updated_at=NOW()
		WHERE id=$1 AND owner_id=$2
		RETURNING `+documentColumns,
		item.ID, item.OwnerID, item.Summary, lists[0], lists[1], lists[2], lists[3],
		nullBool(item.IsLegal), nullString(item.Authenticity), item.Language, item.Provider, item.Model, item.PageCount,
	)
	return scanDocument(row)
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID, ownerID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1 AND owner_id=$2`, documentID, ownerID)
	return scanDocument(row)
}

func (s *PostgresStore) ListDocuments(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE owner_id=$1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

// DeleteDocument removes the record and returns it so the caller can remove
// the stored file.
func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID, ownerID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM documents WHERE id=$1 AND owner_id=$2
		RETURNING `+documentColumns,
		documentID, ownerID)
	return scanDocument(row)
}

func encodeLists(item Document) ([4][]byte, error) {
	var out [4][]byte
	for i, list := range [][]string{item.Pros, item.Cons, item.PotentialLoopholes, item.PotentialChallenges} {
		encoded, err := encodeList(list)
		if err != nil {
			return out, fmt.Errorf("encode list: %w", err)
		}
		out[i] = encoded
	}
	return out, nil
}

func nullBool(value *bool) sql.NullBool {
	if value == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *value, Valid: true}
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
