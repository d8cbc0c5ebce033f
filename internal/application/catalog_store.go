// Package application contains the application services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

// CatalogStore loads and saves the catalog tree under a root URI.
type CatalogStore struct {
	stacIO    output.StacIO
	validator output.SchemaValidator
	metrics   output.MetricsCollector
	logger    *slog.Logger
	root      string
}

// NewCatalogStore creates a new catalog store. A nil validator skips
// schema checks.
func NewCatalogStore(
	stacIO output.StacIO,
	validator output.SchemaValidator,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	root string,
) *CatalogStore {
	return &CatalogStore{
		stacIO:    stacIO,
		validator: validator,
		metrics:   metrics,
		logger:    logger,
		root:      root,
	}
}

// Root returns the configured catalog root.
func (s *CatalogStore) Root() string {
	return s.root
}

// RootHref returns the href of the root catalog document.
func (s *CatalogStore) RootHref() string {
	return domain.CatalogRootHref(s.root)
}

// Load reads the root catalog document and follows its child and item links.
func (s *CatalogStore) Load(ctx context.Context) (*domain.Catalog, error) {
	href := s.RootHref()
	s.logger.Info("loading catalog", "href", href)

	visited := make(map[string]bool)
	cat, err := s.loadCatalog(ctx, href, visited)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", href, domain.ErrCatalogNotFound)
		}
		return nil, err
	}

	s.metrics.SetCatalogItems(cat.ItemCount())
	s.logger.Info("catalog loaded", "id", cat.ID, "items", cat.ItemCount())
	return cat, nil
}

func (s *CatalogStore) loadCatalog(ctx context.Context, href string, visited map[string]bool) (*domain.Catalog, error) {
	visited[href] = true

	text, err := s.stacIO.ReadText(ctx, href)
	if err != nil {
		return nil, err
	}
	decoded, err := domain.DecodeCatalog(href, []byte(text))
	if err != nil {
		return nil, err
	}
	cat := decoded.Catalog

	for _, childHref := range decoded.ChildHrefs {
		if visited[childHref] {
			s.logger.Warn("skipping catalog link cycle", "href", childHref)
			continue
		}
		child, err := s.loadCatalog(ctx, childHref, visited)
		if err != nil {
			return nil, err
		}
		cat.AddChild(child)
	}

	for _, itemHref := range decoded.ItemHrefs {
		text, err := s.stacIO.ReadText(ctx, itemHref)
		if err != nil {
			return nil, err
		}
		item, err := domain.DecodeItem(itemHref, []byte(text))
		if err != nil {
			return nil, err
		}
		if err := cat.AddItem(item); err != nil {
			s.logger.Warn("skipping duplicate item", "item_id", item.ID, "href", itemHref)
			continue
		}
	}

	return cat, nil
}

// Save lays the tree out under the root, validates every document and then
// writes them. Nothing is written when a document fails validation. A write
// failure part way through leaves the documents already written in place.
func (s *CatalogStore) Save(ctx context.Context, cat *domain.Catalog) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObservePersistDuration(err == nil, time.Since(start))
	}()

	cat.NormalizeHrefs(s.root)

	docs, err := cat.Documents()
	if err != nil {
		return err
	}

	if s.validator != nil {
		for _, doc := range docs {
			if err := s.validator.Validate(doc); err != nil {
				return err
			}
		}
	}

	for _, doc := range docs {
		if err := s.stacIO.WriteText(ctx, doc.Href, string(doc.Body)); err != nil {
			return err
		}
	}

	s.metrics.SetCatalogItems(cat.ItemCount())
	s.logger.Info("catalog saved",
		"href", cat.Href(),
		"documents", len(docs),
		"items", cat.ItemCount(),
		"duration", time.Since(start),
	)
	return nil
}
