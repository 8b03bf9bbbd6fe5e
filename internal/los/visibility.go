package los

import (
	"github.com/OCAP2/warcore/pkg/core"
)

// IsClear reports whether nothing on the interior of the line from start to
// end occludes it. The endpoints are never checked and cells missing from
// tiles count as open ground.
func IsClear(start, end core.Coordinate, tiles core.Terrain) bool {
	cells := Trace(start, end)
	if len(cells) <= 2 {
		return true
	}
	for _, c := range cells[1 : len(cells)-1] {
		if tile, ok := tiles[c]; ok && tile.BlocksSight() {
			return false
		}
	}
	return true
}

// InRange reports whether b lies within Euclidean distance r of a, inclusive.
func InRange(a, b core.Coordinate, r int) bool {
	if r < 0 {
		return false
	}
	dx, dy := b.X-a.X, b.Y-a.Y
	return dx*dx+dy*dy <= r*r
}

// VisibleEnemies filters units down to those hostile to observer, within
// maxRange of it and with a clear line from it. The input order is kept.
func VisibleEnemies(observer core.WarUnit, units []core.WarUnit, tiles core.Terrain, maxRange int) []core.WarUnit {
	var visible []core.WarUnit
	for _, u := range units {
		if !observer.HostileTo(u) {
			continue
		}
		if !InRange(observer.Position, u.Position, maxRange) {
			continue
		}
		if !IsClear(observer.Position, u.Position, tiles) {
			continue
		}
		visible = append(visible, u)
	}
	return visible
}
