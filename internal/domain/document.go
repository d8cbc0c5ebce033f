package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Document types.
const (
	TypeCatalog    = "Catalog"
	TypeCollection = "Collection"
	TypeFeature    = "Feature"
)

// DocumentKind tells the schema validator which schema applies.
type DocumentKind string

// Document kinds.
const (
	KindCatalog DocumentKind = "catalog"
	KindItem    DocumentKind = "item"
)

// Document is one rendered JSON file of the catalog tree.
type Document struct {
	Href string
	Kind DocumentKind
	Body []byte
}

// catalogFields are the top-level keys owned by the catalog model.
var catalogFields = []string{"type", "stac_version", "stac_extensions", "id", "title", "description", "links"}

// itemFields are the top-level keys owned by the item model.
var itemFields = []string{"type", "stac_version", "stac_extensions", "id", "geometry", "bbox", "properties", "links", "assets"}

// Documents renders every document of the tree with absolute links.
// NormalizeHrefs must have been called first.
func (c *Catalog) Documents() ([]Document, error) {
	var docs []Document
	if err := c.collectDocuments(&docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Catalog) collectDocuments(docs *[]Document) error {
	if c.href == "" {
		return fmt.Errorf("catalog %s has no href: %w", c.ID, ErrInvalidInput)
	}
	body, err := c.render()
	if err != nil {
		return err
	}
	*docs = append(*docs, Document{Href: c.href, Kind: KindCatalog, Body: body})

	for _, child := range c.children {
		if err := child.collectDocuments(docs); err != nil {
			return err
		}
	}
	for _, item := range c.items {
		if item.href == "" {
			return fmt.Errorf("item %s has no href: %w", item.ID, ErrInvalidInput)
		}
		body, err := item.render()
		if err != nil {
			return err
		}
		*docs = append(*docs, Document{Href: item.href, Kind: KindItem, Body: body})
	}
	return nil
}

func (c *Catalog) structuralLinks() []Link {
	root := c.Root()
	links := []Link{
		{Rel: RelRoot, Href: root.href, Type: MediaTypeJSON, Title: root.Title},
		{Rel: RelSelf, Href: c.href, Type: MediaTypeJSON},
	}
	if c.parent != nil {
		links = append(links, Link{Rel: RelParent, Href: c.parent.href, Type: MediaTypeJSON, Title: c.parent.Title})
	}
	for _, child := range c.children {
		links = append(links, Link{Rel: RelChild, Href: child.href, Type: MediaTypeJSON, Title: child.Title})
	}
	for _, item := range c.items {
		links = append(links, Link{Rel: RelItem, Href: item.href, Type: MediaTypeGeoJSON})
	}
	return links
}

func (c *Catalog) render() ([]byte, error) {
	doc := rawFields(c.Extra)
	docType := c.Type
	if docType == "" {
		docType = TypeCatalog
	}
	set(doc, "type", docType)
	set(doc, "stac_version", StacVersion)
	set(doc, "stac_extensions", nonNil(c.Extensions))
	set(doc, "id", c.ID)
	if c.Title != "" {
		set(doc, "title", c.Title)
	}
	set(doc, "description", c.Description)
	set(doc, "links", append(c.structuralLinks(), c.Links...))

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding catalog %s: %w", c.ID, err)
	}
	return body, nil
}

func (i *Item) render() ([]byte, error) {
	doc := rawFields(i.Extra)
	set(doc, "type", TypeFeature)
	set(doc, "stac_version", StacVersion)
	set(doc, "stac_extensions", nonNil(i.Extensions))
	set(doc, "id", i.ID)
	if len(i.Geometry) > 0 {
		doc["geometry"] = json.RawMessage(i.Geometry)
	} else {
		doc["geometry"] = json.RawMessage("null")
	}
	if i.BBox != nil {
		set(doc, "bbox", i.BBox)
	}

	properties := make(map[string]any, len(i.Properties)+1)
	for k, v := range i.Properties {
		properties[k] = v
	}
	if i.Datetime.IsZero() {
		properties["datetime"] = nil
	} else {
		properties["datetime"] = i.Datetime.UTC().Format(time.RFC3339Nano)
	}
	set(doc, "properties", properties)

	var links []Link
	if i.parent != nil {
		root := i.parent.Root()
		links = append(links,
			Link{Rel: RelRoot, Href: root.href, Type: MediaTypeJSON, Title: root.Title},
			Link{Rel: RelParent, Href: i.parent.href, Type: MediaTypeJSON, Title: i.parent.Title},
		)
	}
	links = append(links, Link{Rel: RelSelf, Href: i.href, Type: MediaTypeGeoJSON})
	set(doc, "links", append(links, i.Links...))

	assets := i.Assets
	if assets == nil {
		assets = map[string]Asset{}
	}
	set(doc, "assets", assets)

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding item %s: %w", i.ID, err)
	}
	return body, nil
}

// DecodedCatalog is a catalog document together with the hrefs it links to.
type DecodedCatalog struct {
	Catalog    *Catalog
	ChildHrefs []string
	ItemHrefs  []string
}

// DecodeCatalog parses a catalog (or collection) document read from href.
// Child and item links are resolved against href.
func DecodeCatalog(href string, body []byte) (*DecodedCatalog, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(href, KindCatalog, err)
	}

	var head struct {
		Type        string   `json:"type"`
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Extensions  []string `json:"stac_extensions"`
		Links       []Link   `json:"links"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, decodeError(href, KindCatalog, err)
	}
	if head.ID == "" {
		return nil, decodeError(href, KindCatalog, errors.New("missing id"))
	}
	if head.Type != TypeCatalog && head.Type != TypeCollection {
		return nil, decodeError(href, KindCatalog, fmt.Errorf("unexpected type %q", head.Type))
	}

	cat := &Catalog{
		ID:          head.ID,
		Title:       head.Title,
		Description: head.Description,
		Extensions:  head.Extensions,
		Type:        head.Type,
		Extra:       extraFields(raw, catalogFields),
		href:        href,
	}
	decoded := &DecodedCatalog{Catalog: cat}

	for _, l := range head.Links {
		switch l.Rel {
		case RelChild:
			decoded.ChildHrefs = append(decoded.ChildHrefs, ResolveHref(href, l.Href))
		case RelItem:
			decoded.ItemHrefs = append(decoded.ItemHrefs, ResolveHref(href, l.Href))
		default:
			if !l.IsStructural() {
				cat.Links = append(cat.Links, l)
			}
		}
	}
	return decoded, nil
}

// DecodeItem parses an item document read from href.
func DecodeItem(href string, body []byte) (*Item, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(href, KindItem, err)
	}

	var head struct {
		Type       string           `json:"type"`
		ID         string           `json:"id"`
		Geometry   json.RawMessage  `json:"geometry"`
		BBox       []float64        `json:"bbox"`
		Properties map[string]any   `json:"properties"`
		Links      []Link           `json:"links"`
		Assets     map[string]Asset `json:"assets"`
		Extensions []string         `json:"stac_extensions"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, decodeError(href, KindItem, err)
	}
	if head.ID == "" {
		return nil, decodeError(href, KindItem, errors.New("missing id"))
	}
	if head.Type != TypeFeature {
		return nil, decodeError(href, KindItem, fmt.Errorf("unexpected type %q", head.Type))
	}

	item := &Item{
		ID:         head.ID,
		Geometry:   head.Geometry,
		BBox:       head.BBox,
		Properties: head.Properties,
		Assets:     head.Assets,
		Extensions: head.Extensions,
		Extra:      extraFields(raw, itemFields),
		href:       href,
	}
	if item.Properties == nil {
		item.Properties = map[string]any{}
	}
	// A null or missing datetime stays zero and renders as null.
	switch v := item.Properties["datetime"].(type) {
	case nil:
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, decodeError(href, KindItem, fmt.Errorf("datetime: %w", err))
		}
		item.Datetime = t
	default:
		return nil, decodeError(href, KindItem, fmt.Errorf("datetime: unexpected %T", v))
	}
	delete(item.Properties, "datetime")
	for _, l := range head.Links {
		if !l.IsStructural() {
			item.Links = append(item.Links, l)
		}
	}
	return item, nil
}

func decodeError(href string, kind DocumentKind, err error) error {
	return &ValidationError{Document: href, Kind: string(kind), Message: err.Error()}
}

func extraFields(raw map[string]json.RawMessage, known []string) map[string][]byte {
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil
	}
	extra := make(map[string][]byte, len(raw))
	for k, v := range raw {
		extra[k] = v
	}
	return extra
}

func rawFields(extra map[string][]byte) map[string]any {
	doc := make(map[string]any, len(extra)+8)
	for k, v := range extra {
		doc[k] = json.RawMessage(v)
	}
	return doc
}

func set(doc map[string]any, key string, value any) {
	doc[key] = value
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
