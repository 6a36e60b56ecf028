package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/stretchr/testify/mock"

	objectclient "github.com/olamide-hq/ragline/internal/core/object-client"
	"github.com/olamide-hq/ragline/internal/models"
)

type ExtractorMock struct {
	mock.Mock
}

func (m *ExtractorMock) Extract(ctx context.Context, filePaths []string) ([]models.Document, error) {
	args := m.Called(ctx, filePaths)
	docs, _ := args.Get(0).([]models.Document)
	return docs, args.Error(1)
}

type ChunkerMock struct {
	mock.Mock
}

func (m *ChunkerMock) Chunk(ctx context.Context, documents []models.Document) ([]models.Document, error) {
	args := m.Called(ctx, documents)
	docs, _ := args.Get(0).([]models.Document)
	return docs, args.Error(1)
}

type EmbedderMock struct {
	mock.Mock
}

func (m *EmbedderMock) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	embs, _ := args.Get(0).([][]float32)
	return embs, args.Error(1)
}

type LLMMock struct {
	mock.Mock
}

func (m *LLMMock) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

type VectorStoreMock struct {
	mock.Mock
}

func (m *VectorStoreMock) AddDocuments(ctx context.Context, docs []models.Document, embeddings [][]float32) ([]string, error) {
	args := m.Called(ctx, docs, embeddings)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *VectorStoreMock) SimilaritySearch(ctx context.Context, embedding []float32, topK int) ([]models.Document, error) {
	args := m.Called(ctx, embedding, topK)
	docs, _ := args.Get(0).([]models.Document)
	return docs, args.Error(1)
}

func (m *VectorStoreMock) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *VectorStoreMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// memArtifactStore is an in-memory ArtifactStore for wiring the real
// pipeline into service tests.
type memArtifactStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{objects: map[string][]byte{}}
}

func (s *memArtifactStore) put(objectPath string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectPath] = data
}

func (s *memArtifactStore) UploadFile(_ context.Context, localPath, objectPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.put(objectPath, data)
	return nil
}

func (s *memArtifactStore) UploadJSON(_ context.Context, value any, objectPath string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.put(objectPath, data)
	return nil
}

func (s *memArtifactStore) DownloadFile(_ context.Context, objectPath, localPath string) error {
	s.mu.Lock()
	data, ok := s.objects[objectPath]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", objectclient.ErrArtifactNotFound, objectPath)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (s *memArtifactStore) DownloadJSON(_ context.Context, objectPath string, value any) error {
	s.mu.Lock()
	data, ok := s.objects[objectPath]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", objectclient.ErrArtifactNotFound, objectPath)
	}
	return json.Unmarshal(data, value)
}

func (s *memArtifactStore) Exists(_ context.Context, objectPath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[objectPath]
	return ok, nil
}

func (s *memArtifactStore) Delete(_ context.Context, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectPath)
	return nil
}
