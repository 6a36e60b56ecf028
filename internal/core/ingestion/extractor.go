// Package ingestion provides the concrete extraction and chunking
// capabilities consumed by the document pipeline.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"path/filepath"

	"code.sajari.com/docconv"

	"github.com/olamide-hq/ragline/internal/core"
	"github.com/olamide-hq/ragline/internal/models"
)

// ErrExtraction marks failed or empty text extraction.
var ErrExtraction = errors.New("extraction failed")

// DocconvExtractor extracts text from PDF/DOCX/plain files via docconv.
type DocconvExtractor struct{}

func NewDocconvExtractor() *DocconvExtractor {
	return &DocconvExtractor{}
}

// Extract converts each file into one Document carrying the full extracted
// text plus source metadata. It fails when given no paths or when every
// file yields empty text.
func (e *DocconvExtractor) Extract(ctx context.Context, filePaths []string) ([]models.Document, error) {
	if len(filePaths) == 0 {
		return nil, fmt.Errorf("%w: no file paths provided", ErrExtraction)
	}

	docs := make([]models.Document, 0, len(filePaths))
	for _, path := range filePaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := docconv.ConvertPath(path)
		if err != nil {
			return nil, fmt.Errorf("%w: convert %s: %v", ErrExtraction, filepath.Base(path), err)
		}
		if res.Body == "" {
			log.Printf("WARN: extracted empty text from %s", filepath.Base(path))
			continue
		}

		docs = append(docs, models.Document{
			Content: res.Body,
			Metadata: &models.DocumentMetadata{
				Source:       path,
				Filename:     filepath.Base(path),
				Mimetype:     mime.TypeByExtension(filepath.Ext(path)),
				ContentLayer: "body",
			},
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no text extracted from %d file(s)", ErrExtraction, len(filePaths))
	}
	return docs, nil
}

var _ core.Extractor = (*DocconvExtractor)(nil)
