package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/seanblong/resumatch/pkg/models"
)

// Store is a Postgres-backed DocumentStore. It also caches embeddings in a
// pgvector column so it can serve as an ai.Cache.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate creates the documents and embeddings tables. dim fixes the width of
// cached vectors.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
  seq          BIGSERIAL,
  role         TEXT NOT NULL,
  name         TEXT NOT NULL,
  content_type TEXT NOT NULL DEFAULT '',
  text         TEXT NOT NULL,
  data         BYTEA,
  created_at   TIMESTAMP WITH TIME ZONE DEFAULT now(),
  PRIMARY KEY (role, name)
);

CREATE INDEX IF NOT EXISTS documents_role_seq_idx
  ON documents (role, seq);

CREATE TABLE IF NOT EXISTS embeddings (
  key        TEXT PRIMARY KEY,
  embedding  vector(%d) NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim))
	return err
}

// SetQuery replaces the stored query document.
func (s *Store) SetQuery(ctx context.Context, doc models.StoredDocument) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE role = $1`, string(models.RoleQuery)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insertDocument, string(models.RoleQuery), doc.Name, doc.ContentType, doc.Text, doc.Data, createdAt(doc)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Query(ctx context.Context) (models.StoredDocument, bool, error) {
	const q = selectDocument + ` WHERE role = $1 LIMIT 1`
	d, err := scanDocument(s.pool.QueryRow(ctx, q, string(models.RoleQuery)))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StoredDocument{}, false, nil
	}
	if err != nil {
		return models.StoredDocument{}, false, err
	}
	return d, true, nil
}

// AddCandidate inserts a candidate and reports ErrDuplicate when the name is taken.
func (s *Store) AddCandidate(ctx context.Context, doc models.StoredDocument) error {
	tag, err := s.pool.Exec(ctx, insertDocument+` ON CONFLICT (role, name) DO NOTHING`,
		string(models.RoleCandidate), doc.Name, doc.ContentType, doc.Text, doc.Data, createdAt(doc))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, doc.Name)
	}
	return nil
}

func (s *Store) Candidates(ctx context.Context) ([]models.StoredDocument, error) {
	rows, err := s.pool.Query(ctx, selectDocument+` WHERE role = $1 ORDER BY seq`, string(models.RoleCandidate))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.StoredDocument{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Candidate(ctx context.Context, name string) (models.StoredDocument, bool, error) {
	const q = selectDocument + ` WHERE role = $1 AND name = $2`
	d, err := scanDocument(s.pool.QueryRow(ctx, q, string(models.RoleCandidate), name))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StoredDocument{}, false, nil
	}
	if err != nil {
		return models.StoredDocument{}, false, err
	}
	return d, true, nil
}

// Clear removes every document. Cached embeddings are kept.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents`)
	return err
}

// GetEmbedding looks up a cached vector.
func (s *Store) GetEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	var v pgvector.Vector
	err := s.pool.QueryRow(ctx, `SELECT embedding FROM embeddings WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v.Slice(), true, nil
}

// PutEmbedding stores a vector. Vectors whose width differs from the migrated
// column are rejected by Postgres.
func (s *Store) PutEmbedding(ctx context.Context, key string, vec []float32) error {
	const q = `
		INSERT INTO embeddings (key, embedding) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET embedding = EXCLUDED.embedding`
	_, err := s.pool.Exec(ctx, q, key, pgvector.NewVector(vec))
	return err
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

const insertDocument = `
	INSERT INTO documents (role, name, content_type, text, data, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

const selectDocument = `SELECT role, name, content_type, text, data, created_at FROM documents`

func scanDocument(row pgx.Row) (models.StoredDocument, error) {
	var d models.StoredDocument
	var role string
	if err := row.Scan(&role, &d.Name, &d.ContentType, &d.Text, &d.Data, &d.CreatedAt); err != nil {
		return models.StoredDocument{}, err
	}
	d.Role = models.Role(role)
	return d, nil
}

func createdAt(doc models.StoredDocument) time.Time {
	if doc.CreatedAt.IsZero() {
		return time.Now()
	}
	return doc.CreatedAt
}
