// Package vocabstore keeps vocabulary entries in PostgreSQL so that every
// migrator process validating index-sourced vocabularies sees the same
// terms.
package vocabstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS vocabularies (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	key        TEXT NOT NULL,
	text       TEXT NOT NULL DEFAULT '',
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const typeKeyIndex = `CREATE INDEX IF NOT EXISTS vocabularies_type_key_idx ON vocabularies (type, key)`

const upsertSQL = `INSERT INTO vocabularies (id, type, key, text, data, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (id) DO UPDATE
SET type = EXCLUDED.type, key = EXCLUDED.key, text = EXCLUDED.text,
    data = EXCLUDED.data, updated_at = NOW()`

type Store struct {
	client *postgres.Client
	logger *slog.Logger
}

// TypeCount is the number of entries stored for a vocabulary type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func New(client *postgres.Client) *Store {
	return &Store{
		client: client,
		logger: slog.Default().With("component", "vocab-store"),
	}
}

// EnsureSchema creates the vocabularies table and its lookup index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.client.Exec(ctx, schema, typeKeyIndex)
}

func (s *Store) CountByTypeAndKey(ctx context.Context, vocabType, key string) (int, error) {
	var n int
	err := s.client.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vocabularies WHERE type = $1 AND key = $2`,
		vocabType, key,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting vocabulary %s/%s: %w", vocabType, key, err)
	}
	return n, nil
}

// Upsert writes entries in one transaction. Entries without an ID get the
// default type/key ID.
func (s *Store) Upsert(ctx context.Context, entries []vocabulary.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertSQL)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			if e.ID == "" {
				e.ID = vocabulary.EntryID(e.Type, e.Key)
			}
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encoding vocabulary entry %s: %w", e.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, e.ID, e.Type, e.Key, e.Text, data); err != nil {
				return fmt.Errorf("upserting vocabulary entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("vocabulary entries stored", "count", len(entries))
	return nil
}

// Types lists the stored vocabulary types with their entry counts.
func (s *Store) Types(ctx context.Context) ([]TypeCount, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM vocabularies GROUP BY type ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("listing vocabulary types: %w", err)
	}
	defer rows.Close()

	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning vocabulary type: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// DeleteType removes every entry of vocabType.
func (s *Store) DeleteType(ctx context.Context, vocabType string) (int64, error) {
	res, err := s.client.DB.ExecContext(ctx, `DELETE FROM vocabularies WHERE type = $1`, vocabType)
	if err != nil {
		return 0, fmt.Errorf("deleting vocabulary %s: %w", vocabType, err)
	}
	return res.RowsAffected()
}
