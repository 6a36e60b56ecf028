package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/olamide-hq/ragline/internal/core"
	db "github.com/olamide-hq/ragline/internal/core/database"
)

// ErrEmptyQuery is returned when a chat query has no content.
var ErrEmptyQuery = errors.New("empty query provided")

const defaultTopK = 5

const ragPromptTemplate = `Answer the following question based on the provided context.
Context:
%s

Question: %s

Answer:
`

// ChatService answers queries over the stored document chunks: it embeds
// the query, retrieves the nearest chunks and prompts the LLM with them.
type ChatService struct {
	llm      core.LLMProvider
	embedder core.EmbeddingProvider
	store    db.VectorStore
	topK     int
}

func NewChatService(llm core.LLMProvider, embedder core.EmbeddingProvider, store db.VectorStore, topK int) *ChatService {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &ChatService{llm: llm, embedder: embedder, store: store, topK: topK}
}

// Query runs retrieval-augmented generation for one question. Retrieval
// failure degrades to a context-free answer rather than failing the
// request.
func (s *ChatService) Query(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	prompt := s.buildPrompt(ctx, query)

	answer, err := s.llm.Generate(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("chat failed: %w", err)
	}
	return answer, nil
}

func (s *ChatService) buildPrompt(ctx context.Context, query string) string {
	embeddings, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil || len(embeddings) == 0 {
		log.Printf("WARN: query embedding failed, answering without context: %v", err)
		return query
	}

	docs, err := s.store.SimilaritySearch(ctx, embeddings[0], s.topK)
	if err != nil {
		log.Printf("WARN: retrieval failed, answering without context: %v", err)
		return query
	}
	if len(docs) == 0 {
		return query
	}

	parts := make([]string, len(docs))
	for i := range docs {
		parts[i] = docs[i].Content
	}
	return fmt.Sprintf(ragPromptTemplate, strings.Join(parts, "\n\n"), query)
}
