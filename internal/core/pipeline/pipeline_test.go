package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/olamide-hq/ragline/internal/core/cache"
	objectclient "github.com/olamide-hq/ragline/internal/core/object-client"
	"github.com/olamide-hq/ragline/internal/core/state"
	"github.com/olamide-hq/ragline/internal/models"
)

const testHash = "c0ffee00deadbeefc0ffee00deadbeefc0ffee00deadbeefc0ffee00deadbeef"

type fixture struct {
	pipeline  *Pipeline
	extractor *ExtractorMock
	chunker   *ChunkerMock
	artifacts *memArtifactStore
	states    *state.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	extractor := new(ExtractorMock)
	chunker := new(ChunkerMock)
	artifacts := newMemArtifactStore()
	states := state.NewManager(state.NewStore(cache.NewMemoryCache(), state.DefaultTTL))
	return &fixture{
		pipeline:  New(extractor, chunker, states, artifacts, t.TempDir()),
		extractor: extractor,
		chunker:   chunker,
		artifacts: artifacts,
		states:    states,
	}
}

// uploaded seeds the artifact store with a raw file and a state at
// StageUploaded, the way the controller does on first upload.
func (f *fixture) uploaded(t *testing.T, body string) *models.ProcessingState {
	t.Helper()
	ctx := context.Background()

	rawPath, err := objectclient.ObjectPath(models.ArtifactRaw, testHash, ".txt")
	require.NoError(t, err)
	f.artifacts.put(rawPath, []byte(body))

	st, err := f.states.CreateState(ctx, testHash, "doc.txt", rawPath)
	require.NoError(t, err)
	return st
}

func extractedDocs() []models.Document {
	return []models.Document{
		{Content: "page one text", Metadata: &models.DocumentMetadata{Filename: "doc.txt", PageNo: 1}},
	}
}

func chunkedDocs() []models.Document {
	return []models.Document{
		{Content: "page one", Metadata: &models.DocumentMetadata{Filename: "doc.txt", PageNo: 1}},
		{Content: "text", Metadata: &models.DocumentMetadata{Filename: "doc.txt", PageNo: 1}},
	}
}

func TestProcessNoState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.pipeline.Process(ctx, testHash, false)
	require.ErrorIs(t, err, ErrNoState)
	require.ErrorIs(t, err, ErrProcessing)
	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestProcessRunsBothStages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.uploaded(t, "raw bytes")

	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(extractedDocs(), nil).Once()
	f.chunker.On("Chunk", mock.Anything, extractedDocs()).Return(chunkedDocs(), nil).Once()

	docs, st, err := f.pipeline.Process(ctx, testHash, false)
	require.NoError(t, err)
	require.Equal(t, models.StageChunked, st.Stage)
	require.Equal(t, chunkedDocs(), docs)

	// Both artifacts were persisted under the fixed layout.
	extractedPath, _ := st.ArtifactPath(models.ArtifactExtracted)
	require.Equal(t, "extracted/"+testHash+".json", extractedPath)
	chunksPath, _ := st.ArtifactPath(models.ArtifactChunks)
	require.Equal(t, "chunks/"+testHash+".json", chunksPath)

	ok, err := f.artifacts.Exists(ctx, chunksPath)
	require.NoError(t, err)
	require.True(t, ok)

	f.extractor.AssertExpectations(t)
	f.chunker.AssertExpectations(t)
}

func TestProcessResumesFromExtracted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.uploaded(t, "raw bytes")

	// Simulate a prior run that finished extraction and then stopped.
	extractedPath, err := objectclient.ObjectPath(models.ArtifactExtracted, testHash, "")
	require.NoError(t, err)
	require.NoError(t, f.artifacts.UploadJSON(ctx, extractedDocs(), extractedPath))
	_, err = f.states.UpdateStage(ctx, st, models.StageExtracted, "", &state.ArtifactUpdate{
		Kind: models.ArtifactExtracted, Path: extractedPath,
	})
	require.NoError(t, err)

	f.chunker.On("Chunk", mock.Anything, extractedDocs()).Return(chunkedDocs(), nil).Once()

	docs, final, err := f.pipeline.Process(ctx, testHash, false)
	require.NoError(t, err)
	require.Equal(t, models.StageChunked, final.Stage)
	require.Len(t, docs, 2)

	// Resumption must not re-run extraction.
	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	f.chunker.AssertExpectations(t)
}

func TestProcessIdempotentSecondCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.uploaded(t, "raw bytes")

	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(extractedDocs(), nil).Once()
	f.chunker.On("Chunk", mock.Anything, mock.Anything).Return(chunkedDocs(), nil).Once()

	first, _, err := f.pipeline.Process(ctx, testHash, false)
	require.NoError(t, err)

	// Second call performs no extraction or chunking work and returns the
	// same documents from the chunks artifact.
	second, st, err := f.pipeline.Process(ctx, testHash, false)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, models.StageChunked, st.Stage)

	f.extractor.AssertNumberOfCalls(t, "Extract", 1)
	f.chunker.AssertNumberOfCalls(t, "Chunk", 1)
}

func TestProcessForceReprocessRerunsStages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.uploaded(t, "raw bytes")

	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(extractedDocs(), nil).Twice()
	f.chunker.On("Chunk", mock.Anything, mock.Anything).Return(chunkedDocs(), nil).Twice()

	_, st, err := f.pipeline.Process(ctx, testHash, false)
	require.NoError(t, err)

	// Advance to STORED the way the controller does after embedding.
	st, err = f.states.UpdateStage(ctx, st, models.StageEmbedded, "", nil)
	require.NoError(t, err)
	st, err = f.states.UpdateStage(ctx, st, models.StageStored, "", nil)
	require.NoError(t, err)

	docs, final, err := f.pipeline.Process(ctx, testHash, true)
	require.NoError(t, err)
	require.Equal(t, models.StageChunked, final.Stage)
	require.Len(t, docs, 2)

	f.extractor.AssertNumberOfCalls(t, "Extract", 2)
	f.chunker.AssertNumberOfCalls(t, "Chunk", 2)
}

func TestProcessExtractorFailureRecordsFailedState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.uploaded(t, "raw bytes")

	boom := errors.New("scanner jammed")
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, boom).Once()

	_, _, err := f.pipeline.Process(ctx, testHash, false)
	require.ErrorIs(t, err, ErrProcessing)
	require.ErrorIs(t, err, boom)

	st, gerr := f.states.GetState(ctx, testHash)
	require.NoError(t, gerr)
	require.Equal(t, models.StageFailed, st.Stage)
	require.Contains(t, st.ErrorMessage, "scanner jammed")

	f.chunker.AssertNotCalled(t, "Chunk", mock.Anything, mock.Anything)
}

func TestProcessFailedStateKeepsRecordedError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.uploaded(t, "raw bytes")

	f.extractor.On("Extract", mock.Anything, mock.Anything).
		Return(nil, errors.New("scanner jammed")).Once()

	_, _, err := f.pipeline.Process(ctx, testHash, false)
	require.Error(t, err)

	// Without force the failure is final: the recorded message comes
	// back and no stage is re-run.
	_, st, err := f.pipeline.Process(ctx, testHash, false)
	require.ErrorIs(t, err, ErrProcessing)
	require.Contains(t, err.Error(), "scanner jammed")
	require.Equal(t, models.StageFailed, st.Stage)
	f.extractor.AssertNumberOfCalls(t, "Extract", 1)
}

func TestProcessEmptyExtractionFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.uploaded(t, "raw bytes")

	f.extractor.On("Extract", mock.Anything, mock.Anything).Return([]models.Document{}, nil).Once()

	_, _, err := f.pipeline.Process(ctx, testHash, false)
	require.ErrorIs(t, err, ErrProcessing)
	require.Contains(t, err.Error(), "no documents")

	st, gerr := f.states.GetState(ctx, testHash)
	require.NoError(t, gerr)
	require.Equal(t, models.StageFailed, st.Stage)
}

func TestProcessChunkerFailureRecordsFailedState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.uploaded(t, "raw bytes")

	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(extractedDocs(), nil).Once()
	f.chunker.On("Chunk", mock.Anything, mock.Anything).Return(nil, errors.New("splitter broke")).Once()

	_, _, err := f.pipeline.Process(ctx, testHash, false)
	require.ErrorIs(t, err, ErrProcessing)

	st, gerr := f.states.GetState(ctx, testHash)
	require.NoError(t, gerr)
	require.Equal(t, models.StageFailed, st.Stage)
	require.Contains(t, st.ErrorMessage, "splitter broke")
}

func TestProcessStoredWithoutChunksArtifactReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.uploaded(t, "raw bytes")

	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(extractedDocs(), nil).Once()
	f.chunker.On("Chunk", mock.Anything, mock.Anything).Return(chunkedDocs(), nil).Once()

	_, st, err := f.pipeline.Process(ctx, testHash, false)
	require.NoError(t, err)
	st, err = f.states.UpdateStage(ctx, st, models.StageEmbedded, "", nil)
	require.NoError(t, err)
	st, err = f.states.UpdateStage(ctx, st, models.StageStored, "", nil)
	require.NoError(t, err)

	// The artifact store was cleared independently of the vector store.
	chunksPath, _ := st.ArtifactPath(models.ArtifactChunks)
	require.NoError(t, f.artifacts.Delete(ctx, chunksPath))

	docs, final, err := f.pipeline.Process(ctx, testHash, false)
	require.NoError(t, err)
	require.Empty(t, docs)
	require.Equal(t, models.StageStored, final.Stage)
}

func TestProcessScratchFileRemoved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.uploaded(t, "raw bytes")

	var scratchPath string
	f.extractor.On("Extract", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			paths := args.Get(1).([]string)
			require.Len(t, paths, 1)
			scratchPath = paths[0]
		}).
		Return(nil, errors.New("nope")).Once()

	_, _, err := f.pipeline.Process(ctx, testHash, false)
	require.Error(t, err)
	require.NotEmpty(t, scratchPath)
	require.NoFileExists(t, scratchPath)
}

// Two concurrent Process calls for the same hash are not mutually excluded;
// last write wins in the state store. This pins down the accepted race
// rather than guaranteeing correctness under it.
func TestProcessConcurrentDuplicateLastWriteWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.uploaded(t, "raw bytes")

	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(extractedDocs(), nil)
	f.chunker.On("Chunk", mock.Anything, mock.Anything).Return(chunkedDocs(), nil)

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _, err := f.pipeline.Process(ctx, testHash, false)
			done <- err
		}()
	}

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			failures++
		}
	}
	require.LessOrEqual(t, failures, 1)

	st, err := f.states.GetState(ctx, testHash)
	require.NoError(t, err)
	require.Contains(t, []models.ProcessingStage{models.StageChunked, models.StageFailed}, st.Stage)
}
