package domain

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// BBox is a 2D bounding box in the order west, south, east, north.
type BBox [4]float64

// West returns the minimum longitude/easting.
func (b BBox) West() float64 { return b[0] }

// South returns the minimum latitude/northing.
func (b BBox) South() float64 { return b[1] }

// East returns the maximum longitude/easting.
func (b BBox) East() float64 { return b[2] }

// North returns the maximum latitude/northing.
func (b BBox) North() float64 { return b[3] }

// IsValid checks if the box has non-negative dimensions.
func (b BBox) IsValid() bool {
	return b.West() <= b.East() && b.South() <= b.North()
}

// Slice returns the box as a JSON-friendly slice.
func (b BBox) Slice() []float64 {
	return []float64{b[0], b[1], b[2], b[3]}
}

// Footprint returns the closed rectangular polygon covering the box.
// Vertices run (west,south), (west,north), (east,north), (east,south).
func (b BBox) Footprint() orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.West(), b.South()},
		{b.West(), b.North()},
		{b.East(), b.North()},
		{b.East(), b.South()},
		{b.West(), b.South()},
	}}
}

// Geometry is the spatial description of one raster asset.
type Geometry struct {
	BBox      BBox
	Footprint orb.Polygon
}

// NewRectangleGeometry builds a Geometry whose footprint is the box itself.
func NewRectangleGeometry(bbox BBox) (Geometry, error) {
	if !bbox.IsValid() {
		return Geometry{}, fmt.Errorf("bbox %v: %w", bbox, ErrInvalidInput)
	}
	return Geometry{BBox: bbox, Footprint: bbox.Footprint()}, nil
}

// GeoJSON returns the footprint as a GeoJSON geometry object.
func (g Geometry) GeoJSON() (json.RawMessage, error) {
	data, err := json.Marshal(geojson.NewGeometry(g.Footprint))
	if err != nil {
		return nil, fmt.Errorf("encoding footprint: %w", err)
	}
	return data, nil
}
