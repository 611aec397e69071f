package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// SRID for WGS 84. Every geometry in the system carries this and nothing else.
const SRID = 4326

// Geometry wraps a go-geom geometry tagged with SRID 4326.
//
// Wire format (JSON) is a GeoJSON geometry object. Storage format is
// PostGIS: EWKT "SRID=4326;<WKT>" on write (via ST_GeomFromEWKT), EWKB on
// read (via ST_AsEWKB). Decoding validates structure and rejects anything
// empty or malformed before it can reach the database.
type Geometry struct {
	T geom.T
}

// rawGeometry mirrors the two keys of a GeoJSON geometry object so absent
// fields can be told apart from invalid ones.
type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// DecodeGeometry parses a GeoJSON geometry object into a validated,
// SRID-tagged Geometry. All failures wrap ErrInvalidGeometry.
func DecodeGeometry(data []byte) (*Geometry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty geometry object", ErrInvalidGeometry)
	}

	var raw rawGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("%w: missing geometry type", ErrInvalidGeometry)
	}
	if raw.Type == "GeometryCollection" {
		return nil, fmt.Errorf("%w: unsupported geometry type %q", ErrInvalidGeometry, raw.Type)
	}
	if len(raw.Coordinates) == 0 || string(raw.Coordinates) == "null" {
		return nil, fmt.Errorf("%w: missing coordinates", ErrInvalidGeometry)
	}

	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	if err := validateGeometry(g); err != nil {
		return nil, err
	}

	g, err := setSRID(g, SRID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	return &Geometry{T: g}, nil
}

// UnmarshalJSON implements the decode direction of the codec.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeGeometry(data)
	if err != nil {
		return err
	}
	g.T = decoded.T
	return nil
}

// MarshalJSON implements the encode direction: same type, same ring/point
// structure and order as the GeoJSON that was decoded. No reprojection.
func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.T == nil {
		return []byte("null"), nil
	}
	return geojson.Marshal(g.T)
}

// Value implements driver.Valuer.
//
// Flow: geom.T -> WKT string -> "SRID=4326;<WKT>" for
// GEOMETRY(Geometry, 4326) columns.
func (g Geometry) Value() (driver.Value, error) {
	if g.T == nil {
		return nil, fmt.Errorf("%w: nil geometry", ErrInvalidGeometry)
	}

	wktString, err := wkt.Marshal(g.T)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to WKT: %w", err)
	}

	return fmt.Sprintf("SRID=%d;%s", SRID, wktString), nil
}

// Scan implements sql.Scanner. Reads EWKB produced by ST_AsEWKB; a plain
// WKB payload without an SRID gets tagged 4326 on the way in.
func (g *Geometry) Scan(value any) error {
	if value == nil {
		g.T = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan Geometry: expected []byte, got %T", value)
	}

	decoded, err := ewkb.Unmarshal(b)
	if err != nil {
		return fmt.Errorf("failed to unmarshal EWKB: %w", err)
	}

	if decoded.SRID() == 0 {
		decoded, err = setSRID(decoded, SRID)
		if err != nil {
			return err
		}
	}

	g.T = decoded
	return nil
}

// validateGeometry enforces the structural rules the GeoJSON codec itself
// does not: no empty coordinate arrays, and polygon rings must be closed
// sequences of at least 4 points. Rings are never auto-closed.
func validateGeometry(g geom.T) error {
	switch t := g.(type) {
	case *geom.Point:
		if len(t.FlatCoords()) == 0 {
			return fmt.Errorf("%w: empty point", ErrInvalidGeometry)
		}
	case *geom.LineString:
		if t.NumCoords() < 2 {
			return fmt.Errorf("%w: line string needs at least 2 points, got %d", ErrInvalidGeometry, t.NumCoords())
		}
	case *geom.Polygon:
		return validatePolygon(t)
	case *geom.MultiPoint:
		if t.NumPoints() == 0 {
			return fmt.Errorf("%w: empty multi point", ErrInvalidGeometry)
		}
	case *geom.MultiLineString:
		if t.NumLineStrings() == 0 {
			return fmt.Errorf("%w: empty multi line string", ErrInvalidGeometry)
		}
		for i := 0; i < t.NumLineStrings(); i++ {
			if t.LineString(i).NumCoords() < 2 {
				return fmt.Errorf("%w: line string %d needs at least 2 points", ErrInvalidGeometry, i)
			}
		}
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return fmt.Errorf("%w: empty multi polygon", ErrInvalidGeometry)
		}
		for i := 0; i < t.NumPolygons(); i++ {
			if err := validatePolygon(t.Polygon(i)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unsupported geometry type %T", ErrInvalidGeometry, g)
	}
	return nil
}

func validatePolygon(p *geom.Polygon) error {
	if p.NumLinearRings() == 0 {
		return fmt.Errorf("%w: polygon has no rings", ErrInvalidGeometry)
	}
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		n := ring.NumCoords()
		if n < 4 {
			return fmt.Errorf("%w: polygon ring %d has %d points, need at least 4", ErrInvalidGeometry, i, n)
		}
		first, last := ring.Coord(0), ring.Coord(n-1)
		if first.X() != last.X() || first.Y() != last.Y() {
			return fmt.Errorf("%w: polygon ring %d is not closed", ErrInvalidGeometry, i)
		}
	}
	return nil
}

func setSRID(g geom.T, srid int) (geom.T, error) {
	switch t := g.(type) {
	case *geom.Point:
		return t.SetSRID(srid), nil
	case *geom.LineString:
		return t.SetSRID(srid), nil
	case *geom.Polygon:
		return t.SetSRID(srid), nil
	case *geom.MultiPoint:
		return t.SetSRID(srid), nil
	case *geom.MultiLineString:
		return t.SetSRID(srid), nil
	case *geom.MultiPolygon:
		return t.SetSRID(srid), nil
	default:
		return nil, fmt.Errorf("cannot set SRID on geometry type %T", g)
	}
}
