package db

import (
	"context"
	"errors"

	"github.com/olamide-hq/ragline/internal/models"
)

// ErrDatabase marks persistence failures so handlers can map them to 500s.
var ErrDatabase = errors.New("database error")

// VectorStore persists embedded document chunks and serves similarity
// queries. It abstracts Postgres/pgvector so higher layers never depend
// on a specific DB.
type VectorStore interface {
	// AddDocuments stores chunks with their embeddings, one embedding per
	// document. It returns the generated row IDs.
	AddDocuments(ctx context.Context, docs []models.Document, embeddings [][]float32) ([]string, error)

	// SimilaritySearch returns the topK chunks nearest to the query
	// embedding, most similar first.
	SimilaritySearch(ctx context.Context, embedding []float32, topK int) ([]models.Document, error)

	// DeleteAll removes every stored chunk and reports how many rows
	// were deleted.
	DeleteAll(ctx context.Context) (int64, error)

	Close() error
}
