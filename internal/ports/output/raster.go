package output

import (
	"context"

	"github.com/jobrunner/stacsync/internal/domain"
)

// GeometryExtractor defines the secondary port for reading the spatial
// extent of a raster object.
type GeometryExtractor interface {
	// Extract opens the raster header at uri and returns its bounding box
	// and footprint. Only the header is read.
	Extract(ctx context.Context, uri string) (domain.Geometry, error)
}

// SchemaValidator defines the secondary port for checking rendered
// catalog documents before they are written.
type SchemaValidator interface {
	// Validate checks one document against the schema of its kind.
	Validate(doc domain.Document) error
}
