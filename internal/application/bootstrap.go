package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jobrunner/stacsync/internal/domain"
)

// BootstrapItem is one raster to put in a new catalog.
type BootstrapItem struct {
	ID        string // derived from Href when empty
	Href      string
	MediaType string // "geotiff" (default), "cog" or a full media type
}

// BootstrapPlan describes a catalog to create from scratch.
type BootstrapPlan struct {
	CatalogID   string
	Title       string
	Description string
	Items       []BootstrapItem
}

// Bootstrapper builds and saves a new catalog from a plan.
type Bootstrapper struct {
	updater *Updater
	store   *CatalogStore
	logger  *slog.Logger
}

// NewBootstrapper creates a new bootstrapper.
func NewBootstrapper(updater *Updater, store *CatalogStore, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{
		updater: updater,
		store:   store,
		logger:  logger,
	}
}

// Run extracts every raster of the plan, builds the catalog and saves it
// under the store root. Any extraction failure aborts before writing.
func (b *Bootstrapper) Run(ctx context.Context, plan BootstrapPlan) (*domain.Catalog, error) {
	if plan.CatalogID == "" {
		return nil, &domain.ConfigError{Field: "catalog.id", Message: "must not be empty"}
	}

	catalog := domain.NewCatalog(plan.CatalogID, plan.Description)
	catalog.Title = plan.Title

	for _, entry := range plan.Items {
		mediaType, err := assetMediaType(entry.MediaType)
		if err != nil {
			return nil, err
		}
		item, err := b.updater.AddRaster(ctx, catalog, entry.ID, entry.Href, mediaType)
		if err != nil {
			return nil, fmt.Errorf("adding %s: %w", entry.Href, err)
		}
		b.logger.Info("raster added", "item_id", item.ID, "href", entry.Href, "bbox", item.BBox)
	}

	if err := b.store.Save(ctx, catalog); err != nil {
		return nil, err
	}
	b.logger.Debug("catalog bootstrapped", "tree", catalog.Describe())
	return catalog, nil
}

// assetMediaType maps a short asset type name to its media type.
func assetMediaType(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "geotiff", "gtiff":
		return domain.MediaTypeGeoTIFF, nil
	case "cog":
		return domain.MediaTypeCOG, nil
	}
	if strings.Contains(name, "/") {
		return name, nil
	}
	return "", fmt.Errorf("asset media type %q: %w", name, domain.ErrInvalidInput)
}
