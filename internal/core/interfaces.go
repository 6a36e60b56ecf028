package core

import (
	"context"

	"github.com/olamide-hq/ragline/internal/models"
)

// Extractor turns raw files into extracted Documents.
// Implementations fail when given no paths or when extraction yields nothing.
type Extractor interface {
	Extract(ctx context.Context, filePaths []string) ([]models.Document, error)
}

// Chunker splits extracted documents into retrieval-sized chunks.
// Implementations fail when given no documents or when chunking yields none.
type Chunker interface {
	Chunk(ctx context.Context, documents []models.Document) ([]models.Document, error)
}

// EmbeddingProvider converts text into vectors.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMProvider generates a natural-language answer for a prompt.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
