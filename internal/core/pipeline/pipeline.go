// Package pipeline drives a document through the extraction and chunking
// stages, persisting artifacts and state after each stage so a run can be
// resumed from wherever it last stopped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/olamide-hq/ragline/internal/core"
	objectclient "github.com/olamide-hq/ragline/internal/core/object-client"
	"github.com/olamide-hq/ragline/internal/core/state"
	"github.com/olamide-hq/ragline/internal/models"
)

var (
	// ErrProcessing marks extraction/chunking/pipeline failures. The failed
	// stage is recorded in the processing state before this is returned.
	ErrProcessing = errors.New("document processing failed")

	// ErrNoState is returned when Process is invoked for a content hash
	// that was never uploaded. It is a processing error.
	ErrNoState = fmt.Errorf("%w: no processing state found", ErrProcessing)
)

// Pipeline coordinates the external extractor and chunker with the artifact
// store and the state manager. It holds no mutable state of its own and is
// safe to share across requests.
type Pipeline struct {
	extractor  core.Extractor
	chunker    core.Chunker
	states     *state.Manager
	artifacts  objectclient.ArtifactStore
	scratchDir string
}

func New(extractor core.Extractor, chunker core.Chunker, states *state.Manager, artifacts objectclient.ArtifactStore, scratchDir string) *Pipeline {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Pipeline{
		extractor:  extractor,
		chunker:    chunker,
		states:     states,
		artifacts:  artifacts,
		scratchDir: scratchDir,
	}
}

// Process performs the work remaining for contentHash: extraction when the
// state is at StageUploaded, chunking when at StageExtracted, then returns
// the chunked documents. Calling it again for a hash whose stages already
// completed re-does no work. With forceReprocess the run starts over from
// the raw artifact, overwriting the extracted and chunks artifacts. A
// previously failed hash keeps returning its recorded error until a run
// is forced.
func (p *Pipeline) Process(ctx context.Context, contentHash string, forceReprocess bool) ([]models.Document, *models.ProcessingState, error) {
	st, err := p.states.GetState(ctx, contentHash)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return nil, nil, fmt.Errorf("%w for content hash %s", ErrNoState, shortHash(contentHash))
	}

	// A forced rerun is a new pipeline run over the same raw artifact, not
	// a backward transition: the state is reset to StageUploaded first.
	if forceReprocess && st.Stage != models.StageUploaded {
		if st, err = p.states.ResetForReprocess(ctx, st); err != nil {
			return nil, nil, err
		}
	}

	// A failed run stays failed until explicitly reprocessed; surface the
	// recorded error rather than re-deriving one.
	if st.Stage == models.StageFailed {
		msg := st.ErrorMessage
		if msg == "" {
			msg = "unknown error"
		}
		return nil, st, fmt.Errorf("%w: processing previously failed: %s", ErrProcessing, msg)
	}

	if st.Stage == models.StageUploaded {
		if err := p.extract(ctx, st); err != nil {
			return nil, st, p.fail(ctx, st, err)
		}
	}

	if st.Stage == models.StageExtracted {
		if err := p.chunk(ctx, st); err != nil {
			return nil, st, p.fail(ctx, st, err)
		}
	}

	return p.collect(ctx, st)
}

// extract downloads the raw artifact to a scratch file, runs the extractor
// and persists the extracted documents plus the stage advance.
func (p *Pipeline) extract(ctx context.Context, st *models.ProcessingState) error {
	rawPath, ok := st.ArtifactPath(models.ArtifactRaw)
	if !ok {
		return fmt.Errorf("raw artifact path not recorded for %s", shortHash(st.FileHash))
	}

	scratch, err := os.CreateTemp(p.scratchDir, "ragline-*"+filepath.Ext(rawPath))
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	scratchPath := scratch.Name()
	scratch.Close()
	defer os.Remove(scratchPath)

	if err := p.artifacts.DownloadFile(ctx, rawPath, scratchPath); err != nil {
		return fmt.Errorf("download raw artifact: %w", err)
	}

	docs, err := p.extractor.Extract(ctx, []string{scratchPath})
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if len(docs) == 0 {
		return errors.New("extractor returned no documents")
	}

	extractedPath, err := objectclient.ObjectPath(models.ArtifactExtracted, st.FileHash, "")
	if err != nil {
		return err
	}
	if err := p.artifacts.UploadJSON(ctx, docs, extractedPath); err != nil {
		return fmt.Errorf("store extracted artifact: %w", err)
	}

	if _, err := p.states.UpdateStage(ctx, st, models.StageExtracted, "", &state.ArtifactUpdate{
		Kind: models.ArtifactExtracted,
		Path: extractedPath,
	}); err != nil {
		return err
	}

	log.Printf("Extraction completed for %s: %d documents", shortHash(st.FileHash), len(docs))
	return nil
}

// chunk reloads the extracted documents, runs the chunker and persists the
// chunks plus the stage advance.
func (p *Pipeline) chunk(ctx context.Context, st *models.ProcessingState) error {
	extractedPath, ok := st.ArtifactPath(models.ArtifactExtracted)
	if !ok {
		return fmt.Errorf("extracted artifact path not recorded for %s", shortHash(st.FileHash))
	}

	var extracted []models.Document
	if err := p.artifacts.DownloadJSON(ctx, extractedPath, &extracted); err != nil {
		return fmt.Errorf("download extracted artifact: %w", err)
	}

	chunks, err := p.chunker.Chunk(ctx, extracted)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return errors.New("chunker returned no documents")
	}

	chunksPath, err := objectclient.ObjectPath(models.ArtifactChunks, st.FileHash, "")
	if err != nil {
		return err
	}
	if err := p.artifacts.UploadJSON(ctx, chunks, chunksPath); err != nil {
		return fmt.Errorf("store chunks artifact: %w", err)
	}

	if _, err := p.states.UpdateStage(ctx, st, models.StageChunked, "", &state.ArtifactUpdate{
		Kind: models.ArtifactChunks,
		Path: chunksPath,
	}); err != nil {
		return err
	}

	log.Printf("Chunking completed for %s: %d chunks", shortHash(st.FileHash), len(chunks))
	return nil
}

// collect assembles the result: the chunks artifact when one is recorded,
// an empty list for a stored document whose chunks artifact is gone (the
// vector store holds the authoritative data by then), a processing error
// otherwise.
func (p *Pipeline) collect(ctx context.Context, st *models.ProcessingState) ([]models.Document, *models.ProcessingState, error) {
	chunksPath, ok := st.ArtifactPath(models.ArtifactChunks)
	if !ok {
		if st.Stage == models.StageStored {
			log.Printf("Document %s already stored, chunks artifact not recorded", shortHash(st.FileHash))
			return []models.Document{}, st, nil
		}
		return nil, st, p.fail(ctx, st, errors.New("chunks artifact path not recorded"))
	}

	var chunks []models.Document
	if err := p.artifacts.DownloadJSON(ctx, chunksPath, &chunks); err != nil {
		if st.Stage == models.StageStored {
			return []models.Document{}, st, nil
		}
		return nil, st, p.fail(ctx, st, fmt.Errorf("download chunks artifact: %w", err))
	}

	return chunks, st, nil
}

// fail records the failure in the processing state (best effort) and wraps
// the cause as a processing error. State-manager errors pass through
// unchanged: an invalid transition is a programming error, not a stage
// failure.
func (p *Pipeline) fail(ctx context.Context, st *models.ProcessingState, cause error) error {
	if errors.Is(cause, state.ErrInvalidTransition) {
		return cause
	}

	log.Printf("ERROR: pipeline failed for %s: %v", shortHash(st.FileHash), cause)
	if _, terr := p.states.UpdateStage(ctx, st, models.StageFailed, cause.Error(), nil); terr != nil {
		log.Printf("WARN: could not record failed stage for %s: %v", shortHash(st.FileHash), terr)
	}
	return fmt.Errorf("%w: %w", ErrProcessing, cause)
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
