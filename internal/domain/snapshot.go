package domain

import "time"

// ItemSummary is the read-only view of one item.
type ItemSummary struct {
	ID       string    `json:"id"`
	Href     string    `json:"href"`
	BBox     []float64 `json:"bbox"`
	Datetime time.Time `json:"datetime,omitzero"`
	Asset    string    `json:"asset,omitempty"`
}

// CatalogSnapshot is an immutable copy of the catalog state for readers
// outside the consumer loop.
type CatalogSnapshot struct {
	ID          string        `json:"id"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description"`
	Href        string        `json:"href"`
	ItemCount   int           `json:"item_count"`
	Items       []ItemSummary `json:"items"`
	TakenAt     time.Time     `json:"taken_at"`
}

// Snapshot copies the tree into a CatalogSnapshot.
func (c *Catalog) Snapshot(at time.Time) CatalogSnapshot {
	items := c.AllItems()
	snap := CatalogSnapshot{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Href:        c.href,
		ItemCount:   len(items),
		Items:       make([]ItemSummary, 0, len(items)),
		TakenAt:     at.UTC(),
	}
	for _, item := range items {
		summary := ItemSummary{
			ID:       item.ID,
			Href:     item.href,
			BBox:     append([]float64(nil), item.BBox...),
			Datetime: item.Datetime,
		}
		if a, ok := item.Assets[ImageAssetKey]; ok {
			summary.Asset = a.Href
		}
		snap.Items = append(snap.Items, summary)
	}
	return snap
}
