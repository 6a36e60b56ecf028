package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/olamide-hq/ragline/internal/config"
	"github.com/olamide-hq/ragline/internal/models"
)

type PgVectorStore struct {
	db *sql.DB
}

func NewPgVectorStore(ctx context.Context, cfg *config.Config) (VectorStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector store configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		if _, err := os.Stat(cfg.SslCertPath); err != nil {
			return nil, fmt.Errorf("ssl cert not accessible at %q: %w", cfg.SslCertPath, err)
		}
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &PgVectorStore{db: db}, nil
}

func (s *PgVectorStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AddDocuments inserts chunks with their embeddings in a single transaction.
func (s *PgVectorStore) AddDocuments(ctx context.Context, docs []models.Document, embeddings [][]float32) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d documents but %d embeddings", ErrDatabase, len(docs), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrDatabase, err)
	}

	const q = `
		INSERT INTO document_chunks (id, content, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%w: prepare insert: %v", ErrDatabase, err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(docs))
	for i := range docs {
		id := uuid.NewString()

		var meta []byte
		if docs[i].Metadata != nil {
			meta, err = json.Marshal(docs[i].Metadata)
			if err != nil {
				_ = tx.Rollback()
				return nil, fmt.Errorf("%w: marshal metadata: %v", ErrDatabase, err)
			}
		}

		vec := pgvector.NewVector(embeddings[i])
		if _, err := stmt.ExecContext(ctx, id, docs[i].Content, meta, vec); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("%w: insert chunk: %v", ErrDatabase, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrDatabase, err)
	}
	return ids, nil
}

// SimilaritySearch finds the topK chunks nearest to the query embedding.
func (s *PgVectorStore) SimilaritySearch(ctx context.Context, embedding []float32, topK int) ([]models.Document, error) {
	if topK <= 0 {
		topK = 5
	}

	const q = `
		SELECT content, metadata
		FROM document_chunks
		ORDER BY embedding <-> $1
		LIMIT $2
	`
	vec := pgvector.NewVector(embedding)
	rows, err := s.db.QueryContext(ctx, q, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var (
			doc  models.Document
			meta []byte
		)
		if err := rows.Scan(&doc.Content, &meta); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", ErrDatabase, err)
		}
		if len(meta) > 0 {
			var m models.DocumentMetadata
			if err := json.Unmarshal(meta, &m); err != nil {
				return nil, fmt.Errorf("%w: unmarshal metadata: %v", ErrDatabase, err)
			}
			doc.Metadata = &m
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate chunks: %v", ErrDatabase, err)
	}
	return out, nil
}

// DeleteAll removes every stored chunk.
func (s *PgVectorStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks`)
	if err != nil {
		return 0, fmt.Errorf("%w: delete chunks: %v", ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", ErrDatabase, err)
	}
	return n, nil
}
