package objectclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/olamide-hq/ragline/internal/models"
)

var (
	// ErrUnknownArtifactKind is returned when a path is requested for an
	// artifact kind the store does not know about.
	ErrUnknownArtifactKind = errors.New("unknown artifact kind")

	// ErrArtifactNotFound is returned when the requested object is absent.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// ArtifactStore holds the per-hash artifacts of the processing pipeline:
// the raw upload, the extracted text JSON and the chunked text JSON.
// It's abstract so S3 can be swapped for MinIO, GCS, etc.
type ArtifactStore interface {
	UploadFile(ctx context.Context, localPath, objectPath string) error
	UploadJSON(ctx context.Context, value any, objectPath string) error

	// DownloadFile and DownloadJSON fail with ErrArtifactNotFound when the
	// object is absent.
	DownloadFile(ctx context.Context, objectPath, localPath string) error
	DownloadJSON(ctx context.Context, objectPath string, value any) error

	Exists(ctx context.Context, objectPath string) (bool, error)
	Delete(ctx context.Context, objectPath string) error
}

// ObjectPath builds the deterministic object location for an artifact kind.
// The layout is fixed for compatibility with out-of-process tooling:
//
//	raw/{hash}{extension}
//	extracted/{hash}.json
//	chunks/{hash}.json
//
// The extension only applies to raw artifacts.
func ObjectPath(kind models.ArtifactKind, contentHash, extension string) (string, error) {
	switch kind {
	case models.ArtifactRaw:
		return fmt.Sprintf("raw/%s%s", contentHash, extension), nil
	case models.ArtifactExtracted:
		return fmt.Sprintf("extracted/%s.json", contentHash), nil
	case models.ArtifactChunks:
		return fmt.Sprintf("chunks/%s.json", contentHash), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownArtifactKind, kind)
	}
}
