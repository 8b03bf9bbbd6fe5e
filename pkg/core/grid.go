// pkg/core/grid.go
package core

import "fmt"

// Coordinate is a cell on the battle grid. The pair is its own identity.
type Coordinate struct {
	X int
	Y int
}

// String renders the coordinate as "(x,y)".
func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Add returns c shifted by (dx, dy).
func (c Coordinate) Add(dx, dy int) Coordinate {
	return Coordinate{X: c.X + dx, Y: c.Y + dy}
}

// Less orders coordinates by X, then Y.
func (c Coordinate) Less(o Coordinate) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	return c.Y < o.Y
}

// TerrainKind is the terrain category of a tile.
type TerrainKind string

const (
	TerrainPlain    TerrainKind = "plain"
	TerrainForest   TerrainKind = "forest"
	TerrainMountain TerrainKind = "mountain"
	TerrainRoad     TerrainKind = "road"
	TerrainWater    TerrainKind = "water"
)

// DefaultMoveCost is the cost of entering a tile with no explicit cost.
const DefaultMoveCost = 1

// TerrainTile is one cell of a terrain snapshot.
// Kinds other than forest and mountain occlude like plain.
type TerrainTile struct {
	Coord     Coordinate
	Kind      TerrainKind
	Passable  bool
	MoveCost  int
	Cover     float64 // carried for the orchestrator, no rule reads it
	Elevation int
}

// NewTile returns a passable plain tile at c with default cost.
func NewTile(c Coordinate) TerrainTile {
	return TerrainTile{
		Coord:    c,
		Kind:     TerrainPlain,
		Passable: true,
		MoveCost: DefaultMoveCost,
	}
}

// BlocksSight reports whether the tile occludes a line passing through it.
func (t TerrainTile) BlocksSight() bool {
	return t.Kind == TerrainForest || t.Kind == TerrainMountain || t.Elevation > 0
}

// Cost returns the cost of entering the tile. Non-positive costs fall back to
// DefaultMoveCost.
func (t TerrainTile) Cost() int {
	if t.MoveCost <= 0 {
		return DefaultMoveCost
	}
	return t.MoveCost
}

// Terrain is a per-battle snapshot keyed by coordinate. It is read-only for
// the duration of any query that receives it.
type Terrain map[Coordinate]TerrainTile

// Put stores tiles keyed by their own coordinate.
func (t Terrain) Put(tiles ...TerrainTile) {
	for _, tile := range tiles {
		t[tile.Coord] = tile
	}
}

// DangerSet marks coordinates the pathfinder must not enter.
type DangerSet map[Coordinate]struct{}

// NewDangerSet builds a DangerSet from the given coordinates.
func NewDangerSet(coords ...Coordinate) DangerSet {
	d := make(DangerSet, len(coords))
	for _, c := range coords {
		d[c] = struct{}{}
	}
	return d
}

// Has reports whether c is dangerous. A nil set has no members.
func (d DangerSet) Has(c Coordinate) bool {
	_, ok := d[c]
	return ok
}
