package pipeline

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
	if v := args.Get(0); v != nil {
		return v.([]models.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

type ChunkerMock struct {
	mock.Mock
}

func (m *ChunkerMock) Chunk(ctx context.Context, documents []models.Document) ([]models.Document, error) {
	args := m.Called(ctx, documents)
	if v := args.Get(0); v != nil {
		return v.([]models.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

// memArtifactStore is an in-process ArtifactStore for pipeline tests.
type memArtifactStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{objects: make(map[string][]byte)}
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

var _ objectclient.ArtifactStore = (*memArtifactStore)(nil)
