package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/olamide-hq/ragline/internal/core"
	db "github.com/olamide-hq/ragline/internal/core/database"
	objectclient "github.com/olamide-hq/ragline/internal/core/object-client"
	"github.com/olamide-hq/ragline/internal/core/pipeline"
	"github.com/olamide-hq/ragline/internal/core/state"
	"github.com/olamide-hq/ragline/internal/models"
)

// DocumentService orchestrates document ingestion end to end: raw upload,
// pipeline processing, embedding and vector storage, and the final stage
// transitions.
type DocumentService struct {
	pipeline  *pipeline.Pipeline
	states    *state.Manager
	artifacts objectclient.ArtifactStore
	embedder  core.EmbeddingProvider
	store     db.VectorStore
}

func NewDocumentService(
	pl *pipeline.Pipeline,
	states *state.Manager,
	artifacts objectclient.ArtifactStore,
	embedder core.EmbeddingProvider,
	store db.VectorStore,
) *DocumentService {
	return &DocumentService{
		pipeline:  pl,
		states:    states,
		artifacts: artifacts,
		embedder:  embedder,
		store:     store,
	}
}

// UploadResult carries what the handler needs to answer an upload request.
type UploadResult struct {
	Chunks []models.Document
	State  *models.ProcessingState
}

// Upload ingests one local file identified by its content hash. Re-uploads
// of known content resume from the recorded stage; completed documents are
// served from cached state without reprocessing unless forceReprocess is
// set.
func (s *DocumentService) Upload(ctx context.Context, localPath, contentHash, filename string, forceReprocess bool) (*UploadResult, error) {
	st, err := s.states.GetState(ctx, contentHash)
	if err != nil {
		return nil, err
	}

	if st == nil {
		rawPath, err := objectclient.ObjectPath(models.ArtifactRaw, contentHash, filepath.Ext(filename))
		if err != nil {
			return nil, err
		}
		if err := s.artifacts.UploadFile(ctx, localPath, rawPath); err != nil {
			return nil, fmt.Errorf("upload raw artifact: %w", err)
		}
		if st, err = s.states.CreateState(ctx, contentHash, filename, rawPath); err != nil {
			return nil, err
		}
		log.Printf("Uploaded new document %s (hash %s)", filename, shortHash(contentHash))
	} else {
		// Same content can arrive under a new name; keep display
		// metadata current.
		if err := s.states.UpdateFilename(ctx, st, filename); err != nil {
			return nil, err
		}
		log.Printf("Document %s already known at stage %s", shortHash(contentHash), st.Stage)
	}

	// The raw artifact is in object storage now; the local copy is
	// scratch. Removal failure is not worth failing the upload over.
	if err := os.Remove(localPath); err != nil {
		log.Printf("WARN: could not remove scratch file %s: %v", localPath, err)
	}

	chunks, st, err := s.pipeline.Process(ctx, contentHash, forceReprocess)
	if err != nil {
		return nil, err
	}

	if st.Stage == models.StageChunked {
		if st, err = s.embedAndStore(ctx, st, chunks); err != nil {
			return nil, err
		}
	}

	return &UploadResult{Chunks: chunks, State: st}, nil
}

// embedAndStore embeds chunked documents, persists them to the vector
// store, and advances the state through EMBEDDED to STORED.
func (s *DocumentService) embedAndStore(ctx context.Context, st *models.ProcessingState, chunks []models.Document) (*models.ProcessingState, error) {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, s.failProcessing(ctx, st, fmt.Errorf("embed chunks: %w", err))
	}

	st, err = s.states.UpdateStage(ctx, st, models.StageEmbedded, "", nil)
	if err != nil {
		return nil, err
	}

	ids, err := s.store.AddDocuments(ctx, chunks, embeddings)
	if err != nil {
		if _, ferr := s.states.UpdateStage(ctx, st, models.StageFailed, "database error", nil); ferr != nil {
			log.Printf("ERROR: could not record FAILED stage for %s: %v", shortHash(st.FileHash), ferr)
		}
		return nil, err
	}
	log.Printf("Stored %d chunks for %s", len(ids), shortHash(st.FileHash))

	return s.states.UpdateStage(ctx, st, models.StageStored, "", nil)
}

func (s *DocumentService) failProcessing(ctx context.Context, st *models.ProcessingState, cause error) error {
	if _, ferr := s.states.UpdateStage(ctx, st, models.StageFailed, cause.Error(), nil); ferr != nil {
		log.Printf("ERROR: could not record FAILED stage for %s: %v", shortHash(st.FileHash), ferr)
	}
	return fmt.Errorf("%w: %v", pipeline.ErrProcessing, cause)
}

// DeleteAll wipes every stored chunk from the vector store.
func (s *DocumentService) DeleteAll(ctx context.Context) (int64, error) {
	return s.store.DeleteAll(ctx)
}

// ClearState drops the cached processing state for one content hash so the
// next upload of that content starts from scratch.
func (s *DocumentService) ClearState(ctx context.Context, contentHash string) bool {
	return s.states.ClearFileCache(ctx, contentHash)
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
