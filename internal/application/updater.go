package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

// UpdaterConfig holds the settings of the catalog updater.
type UpdaterConfig struct {
	Namespace     string // metadata namespace token
	CatalogedType string // media type marker value of cataloged rasters
}

// Updater applies notification records to the catalog.
type Updater struct {
	parser        *domain.MetadataParser
	catalogedType string
	extractor     output.GeometryExtractor
	store         *CatalogStore
	logger        *slog.Logger
	now           func() time.Time
}

// NewUpdater creates a new catalog updater.
func NewUpdater(
	cfg UpdaterConfig,
	extractor output.GeometryExtractor,
	store *CatalogStore,
	logger *slog.Logger,
) *Updater {
	catalogedType := cfg.CatalogedType
	if catalogedType == "" {
		catalogedType = domain.DefaultCatalogedType
	}
	return &Updater{
		parser:        domain.NewMetadataParser(cfg.Namespace),
		catalogedType: catalogedType,
		extractor:     extractor,
		store:         store,
		logger:        logger,
		now:           time.Now,
	}
}

// Apply handles an ObjectCreated record. Objects not marked as cataloged
// rasters and items already in the tree leave the catalog unchanged.
func (u *Updater) Apply(ctx context.Context, catalog *domain.Catalog, record domain.Record) (domain.Result, error) {
	uri := record.ObjectURI()
	result := domain.Result{URI: uri, ItemID: domain.DeriveItemID(record.ObjectKey())}

	metadata := u.parser.Parse(record)
	if !u.parser.IsCataloged(metadata, u.catalogedType) {
		u.logger.Debug("object is not a cataloged raster", "uri", uri, "metadata", len(metadata))
		result.Outcome = domain.OutcomeIgnored
		return result, nil
	}

	if result.ItemID == "" {
		result.Outcome = domain.OutcomeFailed
		return result, fmt.Errorf("no item id in key %q: %w", record.ObjectKey(), domain.ErrInvalidInput)
	}

	if catalog.HasItem(result.ItemID) {
		u.logger.Info("item already in catalog", "item_id", result.ItemID, "uri", uri)
		result.Outcome = domain.OutcomeExists
		return result, nil
	}

	if _, err := u.insert(ctx, catalog, result.ItemID, uri, domain.MediaTypeCOG); err != nil {
		result.Outcome = domain.OutcomeFailed
		return result, err
	}

	u.logger.Info("item added to catalog", "item_id", result.ItemID, "uri", uri)
	if err := u.store.Save(ctx, catalog); err != nil {
		result.Outcome = domain.OutcomeFailed
		return result, fmt.Errorf("saving catalog after adding %s: %w", result.ItemID, err)
	}

	u.logger.Debug("catalog updated", "tree", catalog.Describe())
	result.Outcome = domain.OutcomeInserted
	return result, nil
}

// Remove handles an ObjectRemoved record. Removal is accepted and leaves
// the catalog unchanged.
func (u *Updater) Remove(_ context.Context, catalog *domain.Catalog, record domain.Record) (domain.Result, error) {
	result := domain.Result{
		Outcome: domain.OutcomeRemovalIgnored,
		ItemID:  domain.DeriveItemID(record.ObjectKey()),
		URI:     record.ObjectURI(),
	}
	u.logger.Info("object removed, catalog left unchanged",
		"uri", result.URI,
		"item_id", result.ItemID,
		"in_catalog", catalog.HasItem(result.ItemID),
	)
	return result, nil
}

// AddRaster extracts the geometry of the raster at uri and adds it to the
// root catalog as a new item. The catalog is not saved.
func (u *Updater) AddRaster(ctx context.Context, catalog *domain.Catalog, id, uri, mediaType string) (*domain.Item, error) {
	if id == "" {
		id = domain.DeriveItemID(uri)
	}
	if catalog.HasItem(id) {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrDuplicateItem)
	}
	return u.insert(ctx, catalog, id, uri, mediaType)
}

// insert extracts the geometry and appends the item. The catalog is only
// touched once extraction has succeeded.
func (u *Updater) insert(ctx context.Context, catalog *domain.Catalog, id, uri, mediaType string) (*domain.Item, error) {
	geom, err := u.extractor.Extract(ctx, uri)
	if err != nil {
		return nil, err
	}

	item, err := domain.NewItem(id, geom, u.now())
	if err != nil {
		return nil, err
	}
	item.AddAsset(domain.ImageAssetKey, domain.Asset{Href: uri, Type: mediaType})

	if err := catalog.Root().AddItem(item); err != nil {
		return nil, err
	}
	return item, nil
}
