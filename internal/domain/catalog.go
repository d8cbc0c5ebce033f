// Package domain contains the catalog model, notification records and the
// rules that connect them.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// StacVersion is the STAC version written to every document.
const StacVersion = "1.0.0"

// Media types used for links and assets.
const (
	MediaTypeJSON    = "application/json"
	MediaTypeGeoJSON = "application/geo+json"
	MediaTypeGeoTIFF = "image/tiff; application=geotiff"
	MediaTypeCOG     = "image/tiff; application=geotiff; profile=cloud-optimized"
)

// Link relation types that describe the tree structure. They are re-derived
// on every save and never kept from loaded documents.
const (
	RelRoot   = "root"
	RelSelf   = "self"
	RelParent = "parent"
	RelChild  = "child"
	RelItem   = "item"
)

// ImageAssetKey is the asset key of the ingested raster.
const ImageAssetKey = "image"

// Link is a hyperlink between catalog documents.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// IsStructural reports whether the link is re-derived from the tree.
func (l Link) IsStructural() bool {
	switch l.Rel {
	case RelRoot, RelSelf, RelParent, RelChild, RelItem:
		return true
	}
	return false
}

// Asset is a named file referenced by an item.
type Asset struct {
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Title string   `json:"title,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Item represents one ingested raster asset.
type Item struct {
	ID         string
	Geometry   []byte // GeoJSON geometry object
	BBox       []float64
	Datetime   time.Time // zero when the item has a datetime range instead
	Properties map[string]any
	Assets     map[string]Asset
	Links      []Link   // non-structural links
	Extensions []string // stac_extensions
	Extra      map[string][]byte

	href   string
	parent *Catalog
}

// NewItem creates an item from an extracted geometry.
func NewItem(id string, geom Geometry, datetime time.Time) (*Item, error) {
	if id == "" {
		return nil, fmt.Errorf("item id: %w", ErrInvalidInput)
	}
	geometry, err := geom.GeoJSON()
	if err != nil {
		return nil, err
	}
	return &Item{
		ID:         id,
		Geometry:   geometry,
		BBox:       geom.BBox.Slice(),
		Datetime:   datetime.UTC(),
		Properties: map[string]any{},
		Assets:     map[string]Asset{},
	}, nil
}

// AddAsset adds or replaces a named asset.
func (i *Item) AddAsset(key string, asset Asset) {
	if i.Assets == nil {
		i.Assets = make(map[string]Asset)
	}
	i.Assets[key] = asset
}

// Href returns the item's document href (set by NormalizeHrefs or on load).
func (i *Item) Href() string {
	return i.href
}

// Parent returns the catalog that contains the item.
func (i *Item) Parent() *Catalog {
	return i.parent
}

// Catalog is a node of the catalog tree.
type Catalog struct {
	ID          string
	Title       string
	Description string
	Links       []Link   // non-structural links
	Extensions  []string // stac_extensions
	Extra       map[string][]byte
	Type        string // "Catalog" or "Collection"

	href     string
	parent   *Catalog
	children []*Catalog
	items    []*Item
}

// NewCatalog creates an empty root catalog.
func NewCatalog(id, description string) *Catalog {
	return &Catalog{
		ID:          id,
		Description: description,
		Type:        TypeCatalog,
	}
}

// Href returns the catalog's document href.
func (c *Catalog) Href() string {
	return c.href
}

// SetHref sets the catalog's document href.
func (c *Catalog) SetHref(href string) {
	c.href = href
}

// Parent returns the parent catalog, nil for the root.
func (c *Catalog) Parent() *Catalog {
	return c.parent
}

// Root returns the root of the tree.
func (c *Catalog) Root() *Catalog {
	root := c
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// Children returns the direct child catalogs.
func (c *Catalog) Children() []*Catalog {
	return c.children
}

// Items returns the direct items.
func (c *Catalog) Items() []*Item {
	return c.items
}

// AllItems returns every item of the subtree, depth-first.
func (c *Catalog) AllItems() []*Item {
	items := append([]*Item(nil), c.items...)
	for _, child := range c.children {
		items = append(items, child.AllItems()...)
	}
	return items
}

// ItemCount returns the number of items in the subtree.
func (c *Catalog) ItemCount() int {
	n := len(c.items)
	for _, child := range c.children {
		n += child.ItemCount()
	}
	return n
}

// FindItem searches the subtree for an item by ID.
func (c *Catalog) FindItem(id string) (*Item, bool) {
	for _, item := range c.items {
		if item.ID == id {
			return item, true
		}
	}
	for _, child := range c.children {
		if item, ok := child.FindItem(id); ok {
			return item, true
		}
	}
	return nil, false
}

// HasItem reports whether an item with the ID exists anywhere in the tree.
func (c *Catalog) HasItem(id string) bool {
	_, ok := c.Root().FindItem(id)
	return ok
}

// AddItem appends an item. Item IDs are unique across the whole tree.
func (c *Catalog) AddItem(item *Item) error {
	if c.HasItem(item.ID) {
		return fmt.Errorf("%s: %w", item.ID, ErrDuplicateItem)
	}
	item.parent = c
	c.items = append(c.items, item)
	return nil
}

// AddChild appends a child catalog.
func (c *Catalog) AddChild(child *Catalog) {
	child.parent = c
	c.children = append(c.children, child)
}

// NormalizeHrefs lays the tree out under root:
// <root>/catalog.json, <dir>/<child>/catalog.json and <dir>/<item>/<item>.json.
func (c *Catalog) NormalizeHrefs(root string) {
	c.href = CatalogRootHref(root)
	c.normalizeChildren()
}

func (c *Catalog) normalizeChildren() {
	dir := HrefDir(c.href)
	for _, child := range c.children {
		child.href = JoinHref(dir, child.ID, CatalogFileName)
		child.normalizeChildren()
	}
	for _, item := range c.items {
		item.href = JoinHref(dir, item.ID, item.ID+".json")
	}
}

// Describe returns an indented outline of the tree.
func (c *Catalog) Describe() string {
	var b strings.Builder
	c.describe(&b, 0)
	return b.String()
}

func (c *Catalog) describe(b *strings.Builder, depth int) {
	indent := strings.Repeat("    ", depth)
	fmt.Fprintf(b, "%s* <%s id=%s>\n", indent, c.Type, c.ID)
	for _, child := range c.children {
		child.describe(b, depth+1)
	}
	ids := make([]string, 0, len(c.items))
	for _, item := range c.items {
		ids = append(ids, item.ID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(b, "%s  * <Item id=%s>\n", indent, id)
	}
}
