package pathfind

import (
	"testing"

	"github.com/OCAP2/warcore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func c(x, y int) core.Coordinate { return core.Coordinate{X: x, Y: y} }

// openGrid returns passable cost-1 tiles covering [minX,maxX]×[minY,maxY].
func openGrid(minX, minY, maxX, maxY int) core.Terrain {
	terrain := core.Terrain{}
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			terrain.Put(core.NewTile(c(x, y)))
		}
	}
	return terrain
}

func block(terrain core.Terrain, coords ...core.Coordinate) {
	for _, co := range coords {
		tile := terrain[co]
		tile.Passable = false
		terrain[co] = tile
	}
}

func assertConnected(t *testing.T, path Path) {
	t.Helper()
	for i := 1; i < len(path); i++ {
		dx := path[i].Coord.X - path[i-1].Coord.X
		dy := path[i].Coord.Y - path[i-1].Coord.Y
		assert.Equal(t, 1, dx*dx+dy*dy, "non-cardinal step %s -> %s", path[i-1].Coord, path[i].Coord)
	}
}

func TestFindPath_OpenGridIsManhattanOptimal(t *testing.T) {
	terrain := openGrid(-5, -5, 5, 5)

	tests := []struct {
		name        string
		start, goal core.Coordinate
	}{
		{"straight east", c(0, 0), c(4, 0)},
		{"diagonal", c(-3, -2), c(4, 5)},
		{"north west", c(5, -5), c(-5, 5)},
		{"neighbour", c(1, 1), c(1, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := FindPath(tt.start, tt.goal, terrain, nil)
			require.True(t, ok)

			want := manhattan(tt.start, tt.goal) + 1
			assert.Len(t, path, want)
			assert.Equal(t, tt.start, path[0].Coord)
			assert.Equal(t, tt.goal, path[len(path)-1].Coord)
			assert.Equal(t, want-1, path.Cost())
			assertConnected(t, path)
		})
	}
}

func TestFindPath_DetourAroundImpassable(t *testing.T) {
	terrain := openGrid(-1, -1, 4, 1)
	block(terrain, c(1, 0))

	path, ok := FindPath(c(0, 0), c(3, 0), terrain, nil)
	require.True(t, ok)

	coords := path.Coordinates()
	assert.Len(t, path, 6)
	assert.Equal(t, 5, path.Cost())
	assert.NotContains(t, coords, c(1, 0))
	assert.True(t, coords[1] == c(0, 1) || coords[1] == c(0, -1), "detour starts at %s", coords[1])
	assertConnected(t, path)
}

func TestFindPath_Deterministic(t *testing.T) {
	terrain := openGrid(-1, -1, 4, 1)
	block(terrain, c(1, 0))

	first, ok := FindPath(c(0, 0), c(3, 0), terrain, nil)
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		again, ok := FindPath(c(0, 0), c(3, 0), terrain, nil)
		require.True(t, ok)
		assert.Equal(t, first.Coordinates(), again.Coordinates())
	}
}

func TestFindPath_EnclosedGoal(t *testing.T) {
	terrain := openGrid(0, 0, 6, 6)
	block(terrain, c(4, 3), c(2, 3), c(3, 4), c(3, 2))

	path, ok := FindPath(c(0, 0), c(3, 3), terrain, nil)
	assert.False(t, ok)
	assert.Nil(t, path)
}

func TestFindPath_GoalImpassable(t *testing.T) {
	terrain := openGrid(0, 0, 3, 3)
	block(terrain, c(3, 3))

	_, ok := FindPath(c(0, 0), c(3, 3), terrain, nil)
	assert.False(t, ok)
}

func TestFindPath_GoalInDanger(t *testing.T) {
	terrain := openGrid(0, 0, 3, 3)

	_, ok := FindPath(c(0, 0), c(3, 3), terrain, core.NewDangerSet(c(3, 3)))
	assert.False(t, ok)
}

func TestFindPath_GoalMissing(t *testing.T) {
	terrain := openGrid(0, 0, 3, 3)

	_, ok := FindPath(c(0, 0), c(9, 9), terrain, nil)
	assert.False(t, ok)
}

func TestFindPath_DangerActsAsWall(t *testing.T) {
	terrain := openGrid(0, -2, 4, 2)
	danger := core.NewDangerSet(c(2, -1), c(2, 0), c(2, 1))

	path, ok := FindPath(c(0, 0), c(4, 0), terrain, danger)
	require.True(t, ok)

	for _, co := range path.Coordinates() {
		assert.False(t, danger.Has(co), "path crosses danger tile %s", co)
	}
	assert.Len(t, path, 9)
	assertConnected(t, path)
}

func TestFindPath_DangerSealsGoal(t *testing.T) {
	terrain := openGrid(0, 0, 4, 0)

	_, ok := FindPath(c(0, 0), c(4, 0), terrain, core.NewDangerSet(c(2, 0)))
	assert.False(t, ok)
}

func TestFindPath_MissingNeighboursAreNotWalkable(t *testing.T) {
	terrain := core.Terrain{}
	terrain.Put(core.NewTile(c(0, 0)), core.NewTile(c(2, 0)))

	_, ok := FindPath(c(0, 0), c(2, 0), terrain, nil)
	assert.False(t, ok)
}

func TestFindPath_PrefersCheaperTerrain(t *testing.T) {
	terrain := openGrid(0, 0, 2, 1)
	swamp := terrain[c(1, 0)]
	swamp.MoveCost = 10
	terrain[c(1, 0)] = swamp

	path, ok := FindPath(c(0, 0), c(2, 0), terrain, nil)
	require.True(t, ok)

	assert.Equal(t, []core.Coordinate{c(0, 0), c(0, 1), c(1, 1), c(2, 1), c(2, 0)}, path.Coordinates())
	assert.Equal(t, 4, path.Cost())
}

func TestFindPath_CostChargesEnteredTile(t *testing.T) {
	terrain := openGrid(0, 0, 2, 0)
	start := terrain[c(0, 0)]
	start.MoveCost = 50
	terrain[c(0, 0)] = start
	goal := terrain[c(2, 0)]
	goal.MoveCost = 3
	terrain[c(2, 0)] = goal

	path, ok := FindPath(c(0, 0), c(2, 0), terrain, nil)
	require.True(t, ok)
	assert.Equal(t, 4, path.Cost())
}

func TestFindPath_StartEqualsGoal(t *testing.T) {
	terrain := openGrid(0, 0, 1, 1)

	path, ok := FindPath(c(1, 1), c(1, 1), terrain, nil)
	require.True(t, ok)
	assert.Equal(t, Path{terrain[c(1, 1)]}, path)
	assert.Equal(t, 0, path.Cost())
}

func TestFindPath_StartMissingOrImpassable(t *testing.T) {
	terrain := openGrid(0, 0, 2, 2)

	_, ok := FindPath(c(-1, 0), c(2, 2), terrain, nil)
	assert.False(t, ok)

	block(terrain, c(0, 0))
	_, ok = FindPath(c(0, 0), c(0, 0), terrain, nil)
	assert.False(t, ok)
}

func TestFindPath_StartInDangerStillMoves(t *testing.T) {
	terrain := openGrid(0, 0, 2, 0)

	path, ok := FindPath(c(0, 0), c(2, 0), terrain, core.NewDangerSet(c(0, 0)))
	require.True(t, ok)
	assert.Len(t, path, 3)
}

func TestFindPath_ReturnsTileRecords(t *testing.T) {
	terrain := openGrid(0, 0, 2, 0)
	road := terrain[c(1, 0)]
	road.Kind = core.TerrainRoad
	road.Cover = 0.25
	terrain[c(1, 0)] = road

	path, ok := FindPath(c(0, 0), c(2, 0), terrain, nil)
	require.True(t, ok)
	assert.Equal(t, road, path[1])
}

func TestSearch_CountsExpansions(t *testing.T) {
	terrain := openGrid(0, 0, 3, 0)

	res, ok := Search(c(0, 0), c(3, 0), terrain, nil)
	require.True(t, ok)
	assert.Equal(t, 3, res.Expanded)

	res, ok = Search(c(0, 0), c(0, 0), terrain, nil)
	require.True(t, ok)
	assert.Equal(t, 0, res.Expanded)
}
