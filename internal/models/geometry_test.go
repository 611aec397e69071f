package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

const coordTolerance = 1e-9

// ============================================================================
// TEST HELPERS
// ============================================================================

func decodeGeometry(t *testing.T, geojson string) *Geometry {
	t.Helper()
	g, err := DecodeGeometry([]byte(geojson))
	require.NoError(t, err)
	require.NotNil(t, g)
	return g
}

// assertRoundTrip re-encodes the decoded geometry and checks the result is
// structurally identical to another decode, coordinate by coordinate.
func assertRoundTrip(t *testing.T, geojson string) {
	t.Helper()

	decoded := decodeGeometry(t, geojson)
	encoded, err := json.Marshal(decoded)
	require.NoError(t, err)

	reDecoded := decodeGeometry(t, string(encoded))

	assert.IsType(t, decoded.T, reDecoded.T, "geometry type must survive the round trip")
	assert.Equal(t, len(decoded.T.FlatCoords()), len(reDecoded.T.FlatCoords()), "point count must survive the round trip")
	for i, coord := range decoded.T.FlatCoords() {
		assert.InDelta(t, coord, reDecoded.T.FlatCoords()[i], coordTolerance)
	}
}

// ============================================================================
// TEST SUITE 1: DECODE / ENCODE ROUND TRIP
// ============================================================================

func TestDecodeGeometry_PolygonRoundTrip(t *testing.T) {
	assertRoundTrip(t, `{"type":"Polygon","coordinates":[[[17.0,-22.5],[17.5,-22.5],[17.5,-22.0],[17.0,-22.0],[17.0,-22.5]]]}`)
}

func TestDecodeGeometry_MultiRingPolygonRoundTrip(t *testing.T) {
	assertRoundTrip(t, `{"type":"Polygon","coordinates":[
		[[0.0,0.0],[10.0,0.0],[10.0,10.0],[0.0,10.0],[0.0,0.0]],
		[[2.0,2.0],[4.0,2.0],[4.0,4.0],[2.0,4.0],[2.0,2.0]]
	]}`)
}

func TestDecodeGeometry_PointRoundTrip(t *testing.T) {
	assertRoundTrip(t, `{"type":"Point","coordinates":[17.083611,-22.559722]}`)
}

func TestDecodeGeometry_MultiPolygonRoundTrip(t *testing.T) {
	assertRoundTrip(t, `{"type":"MultiPolygon","coordinates":[
		[[[0.0,0.0],[1.0,0.0],[1.0,1.0],[0.0,0.0]]],
		[[[5.0,5.0],[6.0,5.0],[6.0,6.0],[5.0,5.0]]]
	]}`)
}

func TestDecodeGeometry_TagsSRID(t *testing.T) {
	g := decodeGeometry(t, `{"type":"Polygon","coordinates":[[[17.0,-22.5],[17.5,-22.5],[17.5,-22.0],[17.0,-22.5]]]}`)
	assert.Equal(t, SRID, g.T.SRID())
}

// ============================================================================
// TEST SUITE 2: VALIDATION
// ============================================================================

func TestDecodeGeometry_RejectsUnknownType(t *testing.T) {
	_, err := DecodeGeometry([]byte(`{"type":"Hexagon","coordinates":[[1.0,2.0]]}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestDecodeGeometry_RejectsGeometryCollection(t *testing.T) {
	_, err := DecodeGeometry([]byte(`{"type":"GeometryCollection","geometries":[]}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestDecodeGeometry_RejectsMissingCoordinates(t *testing.T) {
	_, err := DecodeGeometry([]byte(`{"type":"Polygon"}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestDecodeGeometry_RejectsEmptyCoordinates(t *testing.T) {
	_, err := DecodeGeometry([]byte(`{"type":"Polygon","coordinates":[]}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestDecodeGeometry_RejectsUnclosedRing(t *testing.T) {
	// 4 points but first != last: the codec never auto-closes rings.
	_, err := DecodeGeometry([]byte(`{"type":"Polygon","coordinates":[[[0.0,0.0],[1.0,0.0],[1.0,1.0],[0.0,1.0]]]}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestDecodeGeometry_RejectsShortRing(t *testing.T) {
	_, err := DecodeGeometry([]byte(`{"type":"Polygon","coordinates":[[[0.0,0.0],[1.0,0.0],[0.0,0.0]]]}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestDecodeGeometry_RejectsEmptyObject(t *testing.T) {
	_, err := DecodeGeometry([]byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

// ============================================================================
// TEST SUITE 3: STORAGE ENCODING
// ============================================================================

func TestGeometryValue_EWKTWithSRIDPrefix(t *testing.T) {
	g := decodeGeometry(t, `{"type":"Polygon","coordinates":[[[17.0,-22.5],[17.5,-22.5],[17.5,-22.0],[17.0,-22.5]]]}`)

	value, err := g.Value()
	require.NoError(t, err)

	ewkt, ok := value.(string)
	require.True(t, ok, "Value must produce a string for the geometry column")
	assert.Regexp(t, `^SRID=4326;POLYGON`, ewkt)
}

func TestGeometryScan_EWKB(t *testing.T) {
	polygon := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{17.0, -22.5}, {17.5, -22.5}, {17.5, -22.0}, {17.0, -22.0}, {17.0, -22.5}},
	}).SetSRID(SRID)

	payload, err := ewkb.Marshal(polygon, ewkb.NDR)
	require.NoError(t, err)

	var g Geometry
	require.NoError(t, g.Scan(payload))
	require.NotNil(t, g.T)

	assert.Equal(t, SRID, g.T.SRID())
	assert.Equal(t, polygon.FlatCoords(), g.T.FlatCoords())
}

func TestGeometryScan_PlainWKBGetsTagged(t *testing.T) {
	polygon := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {1, 0}, {1, 1}, {0, 0}},
	})

	payload, err := ewkb.Marshal(polygon, ewkb.NDR)
	require.NoError(t, err)

	var g Geometry
	require.NoError(t, g.Scan(payload))
	assert.Equal(t, SRID, g.T.SRID())
}

func TestGeometryValueScan_Equivalence(t *testing.T) {
	// EWKT out and EWKB in must describe the same shape.
	g := decodeGeometry(t, `{"type":"Polygon","coordinates":[[[17.0,-22.5],[17.5,-22.5],[17.5,-22.0],[17.0,-22.5]]]}`)

	payload, err := ewkb.Marshal(g.T, ewkb.NDR)
	require.NoError(t, err)

	var scanned Geometry
	require.NoError(t, scanned.Scan(payload))

	require.Equal(t, len(g.T.FlatCoords()), len(scanned.T.FlatCoords()))
	for i, coord := range g.T.FlatCoords() {
		assert.InDelta(t, coord, scanned.T.FlatCoords()[i], coordTolerance)
	}
}
