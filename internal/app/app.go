// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olamide-hq/ragline/internal/config"
	"github.com/olamide-hq/ragline/internal/core/cache"
	db "github.com/olamide-hq/ragline/internal/core/database"
	"github.com/olamide-hq/ragline/internal/core/ingestion"
	"github.com/olamide-hq/ragline/internal/core/llm"
	objectclient "github.com/olamide-hq/ragline/internal/core/object-client"
	"github.com/olamide-hq/ragline/internal/core/pipeline"
	"github.com/olamide-hq/ragline/internal/core/state"
	"github.com/olamide-hq/ragline/internal/services"
)

type App struct {
	Store     db.VectorStore
	Artifacts objectclient.ArtifactStore
	Cache     cache.Cache
	Embedder  *llm.GeminiEmbedder
	LLM       *llm.GeminiLLM
	Server    *Server
}

// NewApp wires every component explicitly: external clients first
// (concurrently, they are independent), then the processing stack on top
// of them.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var (
		store      db.VectorStore
		artifacts  *objectclient.S3ArtifactStore
		stateCache cache.Cache
	)

	g, gctx := errgroup.WithContext(appCtx)
	g.Go(func() error {
		var err error
		if store, err = db.NewPgVectorStore(gctx, cfg); err != nil {
			return fmt.Errorf("vector store: %w", err)
		}
		log.Println("Vector store initialized and ready.")
		return nil
	})
	g.Go(func() error {
		var err error
		if artifacts, err = objectclient.NewS3ArtifactStore(gctx, cfg); err != nil {
			return fmt.Errorf("artifact store: %w", err)
		}
		log.Println("Artifact store initialized and ready.")
		return nil
	})
	g.Go(func() error {
		var err error
		if stateCache, err = cache.New(gctx, cfg.CacheBackend, cfg.RedisURL); err != nil {
			return fmt.Errorf("state cache: %w", err)
		}
		log.Printf("State cache initialized (%s backend).", cfg.CacheBackend)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
	}

	states := state.NewManager(state.NewStore(stateCache, cfg.StateTTL))
	extractor := ingestion.NewDocconvExtractor()
	chunker := ingestion.NewTokenChunker(ingestion.DefaultChunkTokens, ingestion.DefaultOverlapTokens)
	pl := pipeline.New(extractor, chunker, states, artifacts, cfg.UploadDir)

	documents := services.NewDocumentService(pl, states, artifacts, embedder, store)
	chat := services.NewChatService(llmProvider, embedder, store, cfg.RagTopK)

	server := NewServer(cfg, documents, chat)

	return &App{
		Store:     store,
		Artifacts: artifacts,
		Cache:     stateCache,
		Embedder:  embedder,
		LLM:       llmProvider,
		Server:    server,
	}, nil
}

func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
}
