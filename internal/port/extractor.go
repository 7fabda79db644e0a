package port

import (
	"context"

	"github.com/mlevkov/clipdock/internal/domain"
)

// MetadataExtractor fetches structured video metadata for a URL by invoking
// the external extractor tool. Read-only; no files are produced.
type MetadataExtractor interface {
	Extract(ctx context.Context, url string) (*domain.Metadata, error)
}
