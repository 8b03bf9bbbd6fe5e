package geo

import (
	"errors"

	"github.com/OCAP2/warcore/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Grid coordinates map to planar XY with one unit per tile. Elevation is
// carried as Z so exported geometry keeps the height profile of a route.

// ErrEmptyPath is returned when a path has no tiles to export.
var ErrEmptyPath = errors.New("path has no tiles")

// CoordinatePoint converts a grid coordinate to a 2D point.
func CoordinatePoint(c core.Coordinate) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: float64(c.X), Y: float64(c.Y)},
		Type: geom.DimXY,
	})
}

// PathLineString converts a sequence of tiles to a 3D line string.
// A single-tile path yields a degenerate line with both ends at that tile.
func PathLineString(tiles []core.TerrainTile) (geom.LineString, error) {
	if len(tiles) == 0 {
		return geom.LineString{}, ErrEmptyPath
	}
	if len(tiles) == 1 {
		tiles = []core.TerrainTile{tiles[0], tiles[0]}
	}

	flat := make([]float64, 0, len(tiles)*3)
	for _, t := range tiles {
		flat = append(flat, float64(t.Coord.X), float64(t.Coord.Y), float64(t.Elevation))
	}

	seq := geom.NewSequence(flat, geom.DimXYZ)
	return geom.NewLineString(seq), nil
}

// PathWKT renders a path as WKT, e.g. for storing alongside battle logs.
func PathWKT(tiles []core.TerrainTile) (string, error) {
	ls, err := PathLineString(tiles)
	if err != nil {
		return "", err
	}
	return ls.AsText(), nil
}

// PathLength returns the planar length of a path in tiles.
func PathLength(tiles []core.TerrainTile) (float64, error) {
	ls, err := PathLineString(tiles)
	if err != nil {
		return 0, err
	}
	return ls.Length(), nil
}

// Distance returns the Euclidean distance between two grid coordinates.
func Distance(a, b core.Coordinate) float64 {
	d, _ := geom.Distance(CoordinatePoint(a).AsGeometry(), CoordinatePoint(b).AsGeometry())
	return d
}
