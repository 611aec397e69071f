package models

import "encoding/json"

const (
	FeatureType           = "Feature"
	FeatureCollectionType = "FeatureCollection"
)

// Feature is a GeoJSON feature. Geometry stays raw until the codec decodes
// it, so an absent key is distinguishable from an invalid value.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
}

// FeatureCollection is an ordered sequence of features.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection assembles a FeatureCollection from regions, preserving
// input order. An empty input yields an empty features list, not an error.
func NewFeatureCollection(regions []Region) (*FeatureCollection, error) {
	features := make([]Feature, 0, len(regions))
	for i := range regions {
		feature, err := regions[i].ToFeature()
		if err != nil {
			return nil, err
		}
		features = append(features, *feature)
	}
	return &FeatureCollection{
		Type:     FeatureCollectionType,
		Features: features,
	}, nil
}
