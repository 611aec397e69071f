package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"coverage-service/internal/utils"
)

// Reserved property keys. They live in dedicated columns and are stripped
// from the free-form bag at construction time, so the bag never duplicates
// them.
const (
	propertyKeyName        = "name"
	propertyKeyFiberStatus = "fiber_status"
)

// Region is a named administrative area with its fiber coverage status.
//
// ID is store-assigned and immutable. Name is globally unique. Properties
// holds every attribute not mapped to a column and never contains the
// reserved keys "name" or "fiber_status".
type Region struct {
	ID          int           `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	FiberStatus FiberStatus   `json:"fiber_status" db:"fiber_status"`
	Geometry    *Geometry     `json:"geometry" db:"geometry"`
	Properties  utils.JSONMap `json:"properties" db:"properties"`
}

// RegionFromFeature builds a Region from a GeoJSON feature.
//
// The returned Region has no ID; the store assigns one on insert. A feature
// without geometry or properties is malformed; a feature without a name is
// missing a required field; fiber_status defaults to Unavailable when absent
// and is rejected when present but unrecognized.
func RegionFromFeature(f *Feature) (*Region, error) {
	if f == nil || f.Geometry == nil || f.Properties == nil {
		return nil, fmt.Errorf("%w: missing 'geometry' or 'properties'", ErrMalformedFeature)
	}

	name, err := f.Name()
	if err != nil {
		return nil, err
	}

	geometry, err := DecodeGeometry(f.Geometry)
	if err != nil {
		return nil, err
	}

	status := FiberUnavailable
	if rawStatus, ok := f.Properties[propertyKeyFiberStatus]; ok {
		s, ok := rawStatus.(string)
		if !ok {
			return nil, fmt.Errorf("%w: fiber_status must be a string, got %T", ErrInvalidStatus, rawStatus)
		}
		status, err = ParseFiberStatus(s)
		if err != nil {
			return nil, err
		}
	}

	properties := utils.JSONMap{}
	for k, v := range f.Properties {
		if k == propertyKeyName || k == propertyKeyFiberStatus {
			continue
		}
		properties[k] = v
	}

	return &Region{
		Name:        name,
		FiberStatus: status,
		Geometry:    geometry,
		Properties:  properties,
	}, nil
}

// ToFeature renders the region as a GeoJSON feature. The reserved keys
// (id, name, fiber_status) are injected into the properties bag; they cannot
// collide with stored properties because construction strips them.
func (r *Region) ToFeature() (*Feature, error) {
	if r.Geometry == nil {
		return nil, fmt.Errorf("%w: region %q has no geometry", ErrInvalidGeometry, r.Name)
	}

	geometryJSON, err := json.Marshal(r.Geometry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry for region %q: %w", r.Name, err)
	}

	properties := map[string]any{
		"id":                   r.ID,
		propertyKeyName:        r.Name,
		propertyKeyFiberStatus: r.FiberStatus.String(),
	}
	for k, v := range r.Properties {
		properties[k] = v
	}

	return &Feature{
		Type:       FeatureType,
		Geometry:   geometryJSON,
		Properties: properties,
	}, nil
}

// Name extracts the required name property of a feature.
func (f *Feature) Name() (string, error) {
	raw, ok := f.Properties[propertyKeyName]
	if !ok {
		return "", fmt.Errorf("%w: properties must contain a 'name' field", ErrMissingRequiredField)
	}
	name, ok := raw.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: 'name' must be a non-empty string", ErrMissingRequiredField)
	}
	return name, nil
}
