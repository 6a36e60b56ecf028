package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/olamide-hq/ragline/internal/core"
	"github.com/olamide-hq/ragline/internal/models"
)

// ErrChunking marks failed or empty chunking.
var ErrChunking = errors.New("chunking failed")

const (
	// DefaultChunkTokens is the approximate token budget per chunk.
	DefaultChunkTokens = 400
	// DefaultOverlapTokens is the approximate token overlap between
	// consecutive chunks of the same document.
	DefaultOverlapTokens = 50

	charsPerToken = 4
)

// TokenChunker splits documents into overlapping fixed-size chunks using a
// character-based token approximation (~4 chars per token).
type TokenChunker struct {
	chunkTokens   int
	overlapTokens int
}

func NewTokenChunker(chunkTokens, overlapTokens int) *TokenChunker {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if overlapTokens < 0 || overlapTokens >= chunkTokens {
		overlapTokens = DefaultOverlapTokens
	}
	return &TokenChunker{chunkTokens: chunkTokens, overlapTokens: overlapTokens}
}

// Chunk splits each document's content on word boundaries, carrying the
// parent document's metadata onto every chunk. Documents with empty
// content are skipped. It fails when given no documents or when every
// document yields nothing.
func (c *TokenChunker) Chunk(ctx context.Context, docs []models.Document) ([]models.Document, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents provided", ErrChunking)
	}

	chunkChars := c.chunkTokens * charsPerToken
	overlapChars := c.overlapTokens * charsPerToken

	var out []models.Document
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(doc.Content)
		if text == "" {
			continue
		}
		for _, piece := range splitWithOverlap(text, chunkChars, overlapChars) {
			out = append(out, models.Document{
				Content:  piece,
				Metadata: doc.Metadata,
			})
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced from %d document(s)", ErrChunking, len(docs))
	}
	return out, nil
}

// splitWithOverlap cuts text into pieces of at most maxChars characters,
// preferring word boundaries and overlapping consecutive pieces by
// roughly overlapChars characters.
func splitWithOverlap(text string, maxChars, overlapChars int) []string {
	if utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	runes := []rune(text)
	var pieces []string
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end >= len(runes) {
			pieces = append(pieces, strings.TrimSpace(string(runes[start:])))
			break
		}

		// Back up to the nearest space so words stay intact.
		cut := end
		for cut > start && runes[cut] != ' ' && runes[cut] != '\n' {
			cut--
		}
		if cut == start {
			cut = end
		}

		piece := strings.TrimSpace(string(runes[start:cut]))
		if piece != "" {
			pieces = append(pieces, piece)
		}

		next := cut - overlapChars
		if next <= start {
			next = cut
		}
		start = next
	}
	return pieces
}

var _ core.Chunker = (*TokenChunker)(nil)
