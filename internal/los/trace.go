// Package los answers line-of-sight questions over a terrain snapshot.
package los

import "github.com/OCAP2/warcore/pkg/core"

// Trace returns the cells a straight line from a to b passes through, both
// endpoints included, in a→b order. Consecutive cells share an edge, so the
// result holds exactly 1+|dx|+|dy| cells.
//
// The line is always rasterized from the lesser endpoint (see
// core.Coordinate.Less) and reversed when needed, so Trace(a, b) and
// Trace(b, a) cover the same cells.
func Trace(a, b core.Coordinate) []core.Coordinate {
	if b.Less(a) {
		cells := bresenham(b, a)
		for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
			cells[i], cells[j] = cells[j], cells[i]
		}
		return cells
	}
	return bresenham(a, b)
}

// bresenham walks the major axis one cell at a time with an integer error
// term (deltas doubled). When the error reaches zero or below the minor axis
// steps first and that cell is emitted on its own, which keeps the walk
// edge-connected. Halfway ties step the minor axis.
func bresenham(a, b core.Coordinate) []core.Coordinate {
	dx, dy := abs(b.X-a.X), abs(b.Y-a.Y)
	sx, sy := sign(b.X-a.X), sign(b.Y-a.Y)

	cells := make([]core.Coordinate, 0, 1+dx+dy)
	x, y := a.X, a.Y

	if dx >= dy {
		err := dx
		for x != b.X {
			cells = append(cells, core.Coordinate{X: x, Y: y})
			err -= 2 * dy
			if err <= 0 {
				y += sy
				err += 2 * dx
				cells = append(cells, core.Coordinate{X: x, Y: y})
			}
			x += sx
		}
	} else {
		err := dy
		for y != b.Y {
			cells = append(cells, core.Coordinate{X: x, Y: y})
			err -= 2 * dx
			if err <= 0 {
				x += sx
				err += 2 * dy
				cells = append(cells, core.Coordinate{X: x, Y: y})
			}
			y += sy
		}
	}

	return append(cells, core.Coordinate{X: x, Y: y})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
