// Package pathfind plans unit movement across a terrain snapshot with A*.
//
// Movement is restricted to the four cardinal neighbours. A neighbour can be
// entered only when it is present in the snapshot, passable and not in the
// caller's danger set. Entering a tile costs that tile's move cost.
package pathfind

import (
	"container/heap"

	"github.com/OCAP2/warcore/pkg/core"
)

var dirs = [4][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
}

// Path is an ordered start→goal sequence of tiles.
type Path []core.TerrainTile

// Cost returns the summed move cost of every tile entered after the start.
func (p Path) Cost() int {
	total := 0
	for i := 1; i < len(p); i++ {
		total += p[i].Cost()
	}
	return total
}

// Coordinates returns the coordinates of the path's tiles in order.
func (p Path) Coordinates() []core.Coordinate {
	out := make([]core.Coordinate, len(p))
	for i, t := range p {
		out[i] = t.Coord
	}
	return out
}

// Result describes a finished search.
type Result struct {
	Path     Path
	Expanded int // nodes popped and expanded
}

// FindPath returns the cheapest path from start to goal. ok is false when the
// goal cannot be reached, which is an ordinary outcome rather than an error.
func FindPath(start, goal core.Coordinate, tiles core.Terrain, danger core.DangerSet) (Path, bool) {
	res, ok := Search(start, goal, tiles, danger)
	return res.Path, ok
}

// Search is FindPath with search statistics.
//
// The start tile must exist and be passable; it may sit in the danger set,
// since the unit already stands there.
func Search(start, goal core.Coordinate, tiles core.Terrain, danger core.DangerSet) (Result, bool) {
	startTile, ok := tiles[start]
	if !ok || !startTile.Passable {
		return Result{}, false
	}
	if start == goal {
		return Result{Path: Path{startTile}}, true
	}

	var seq uint64
	ol := &openList{}
	heap.Push(ol, &pathNode{coord: start, g: 0, f: manhattan(start, goal), seq: seq})

	best := map[core.Coordinate]int{start: 0}
	cameFrom := make(map[core.Coordinate]core.Coordinate)
	closed := make(map[core.Coordinate]bool)
	expanded := 0

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(*pathNode)
		if cur.coord == goal {
			return Result{Path: rebuild(cameFrom, start, goal, tiles), Expanded: expanded}, true
		}
		if closed[cur.coord] || cur.g > best[cur.coord] {
			continue
		}
		closed[cur.coord] = true
		expanded++

		for _, d := range dirs {
			next := cur.coord.Add(d[0], d[1])
			if closed[next] {
				continue
			}
			tile, ok := tiles[next]
			if !ok || !tile.Passable || danger.Has(next) {
				continue
			}
			g := cur.g + tile.Cost()
			if prev, seen := best[next]; seen && g >= prev {
				continue
			}
			best[next] = g
			cameFrom[next] = cur.coord
			seq++
			heap.Push(ol, &pathNode{coord: next, g: g, f: g + manhattan(next, goal), seq: seq})
		}
	}

	return Result{Expanded: expanded}, false
}

func rebuild(cameFrom map[core.Coordinate]core.Coordinate, start, goal core.Coordinate, tiles core.Terrain) Path {
	var coords []core.Coordinate
	for c := goal; c != start; c = cameFrom[c] {
		coords = append(coords, c)
	}
	coords = append(coords, start)

	path := make(Path, len(coords))
	for i, c := range coords {
		path[len(coords)-1-i] = tiles[c]
	}
	return path
}

func manhattan(a, b core.Coordinate) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
