package models

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegion(t *testing.T, id int, name string) Region {
	t.Helper()

	geometry, err := DecodeGeometry([]byte(`{"type":"Polygon","coordinates":[[[0.0,0.0],[1.0,0.0],[1.0,1.0],[0.0,0.0]]]}`))
	require.NoError(t, err)

	return Region{
		ID:          id,
		Name:        name,
		FiberStatus: FiberPlanned,
		Geometry:    geometry,
		Properties:  map[string]any{},
	}
}

func TestNewFeatureCollection_Empty(t *testing.T) {
	collection, err := NewFeatureCollection(nil)
	require.NoError(t, err)

	assert.Equal(t, FeatureCollectionType, collection.Type)
	assert.NotNil(t, collection.Features)
	assert.Len(t, collection.Features, 0)

	// An empty collection still serializes with a "features" key.
	encoded, err := json.Marshal(collection)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(encoded))
}

func TestNewFeatureCollection_PreservesOrder(t *testing.T) {
	regions := []Region{
		testRegion(t, 1, "Erongo"),
		testRegion(t, 2, "Khomas"),
		testRegion(t, 3, "Oshana"),
	}

	collection, err := NewFeatureCollection(regions)
	require.NoError(t, err)

	require.Len(t, collection.Features, len(regions))
	for i, region := range regions {
		assert.Equal(t, region.Name, collection.Features[i].Properties["name"], fmt.Sprintf("feature %d out of order", i))
	}
}

func TestNewFeatureCollection_FailsOnBrokenRegion(t *testing.T) {
	regions := []Region{
		testRegion(t, 1, "Erongo"),
		{ID: 2, Name: "Khomas", FiberStatus: FiberActive}, // no geometry
	}

	_, err := NewFeatureCollection(regions)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}
