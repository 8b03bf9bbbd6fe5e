package battle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/OCAP2/warcore/internal/config"
	"github.com/OCAP2/warcore/internal/influx"
	"github.com/OCAP2/warcore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	rows  map[core.MatchupKey]float64
	calls atomic.Int64
	err   error
}

func (s *fakeSource) MatchupMultiplier(_ context.Context, attacker, defender string) (float64, bool, error) {
	s.calls.Add(1)
	if s.err != nil {
		return 0, false, s.err
	}
	v, ok := s.rows[core.MatchupKey{Attacker: attacker, Defender: defender}]
	return v, ok, nil
}

type fakeReporter struct {
	mu    sync.Mutex
	ticks []influx.TickStats
	err   error
}

func (r *fakeReporter) ReportTick(_ context.Context, _ string, stats influx.TickStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, stats)
	return r.err
}

func (r *fakeReporter) Close() error { return nil }

// 6x4 plain field with an impassable mountain at (2,0).
func testTerrain() core.Terrain {
	t := core.Terrain{}
	for x := 0; x < 6; x++ {
		for y := 0; y < 4; y++ {
			t.Put(core.NewTile(core.Coordinate{X: x, Y: y}))
		}
	}
	mountain := core.NewTile(core.Coordinate{X: 2, Y: 0})
	mountain.Kind = core.TerrainMountain
	mountain.Passable = false
	t.Put(mountain)
	return t
}

func testRoster() []core.WarUnit {
	return []core.WarUnit{
		{ID: "a1", Side: "red", UnitType: "archer", Position: core.Coordinate{X: 0, Y: 0}, Range: 5},
		{ID: "b1", Side: "blue", UnitType: "infantry", Position: core.Coordinate{X: 4, Y: 0}, Range: 5},
		{ID: "b2", Side: "blue", UnitType: "cavalry", Position: core.Coordinate{X: 4, Y: 1}, Range: 5},
		{ID: "a2", Side: "red", UnitType: "infantry", Position: core.Coordinate{X: 0, Y: 10}, Range: 1},
	}
}

func testSource() *fakeSource {
	return &fakeSource{rows: map[core.MatchupKey]float64{
		{Attacker: "archer", Defender: "cavalry"}:  0.5,
		{Attacker: "cavalry", Defender: "archer"}:  2.0,
		{Attacker: "archer", Defender: "infantry"}: 1.5,
	}}
}

func newTestSession(t *testing.T, src *fakeSource, rep influx.Reporter) *Session {
	t.Helper()
	s, err := New("b-1", testTerrain(), testRoster(), src, Options{
		Engine:   config.EngineConfig{VisionRange: 8, ScanWorkers: 3},
		Reporter: rep,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ids(units []core.WarUnit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.ID)
	}
	return out
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New("b-1", testTerrain(), nil, nil, Options{})
	require.Error(t, err)
}

func TestSession_Scan(t *testing.T) {
	s := newTestSession(t, testSource(), nil)

	sightings, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, sightings, 4)

	want := map[string][]string{
		"a1": {"b2"}, // b1 is behind the mountain
		"b1": {},
		"b2": {"a1"},
		"a2": {}, // out of vision range
	}
	for i, sg := range sightings {
		assert.Equal(t, testRoster()[i].ID, sg.Observer.ID, "roster order")
		assert.Equal(t, want[sg.Observer.ID], ids(sg.Visible), sg.Observer.ID)
	}
}

func TestSession_ScanZeroWorkers(t *testing.T) {
	s, err := New("b-1", testTerrain(), testRoster(), testSource(), Options{})
	require.NoError(t, err)
	defer s.Close()

	sightings, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, sightings, 4)
}

func TestSession_ScanCanceled(t *testing.T) {
	s := newTestSession(t, testSource(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_Engagements(t *testing.T) {
	src := testSource()
	s := newTestSession(t, src, nil)

	engagements, err := s.Engagements(context.Background())
	require.NoError(t, err)
	require.Len(t, engagements, 2)

	assert.Equal(t, "a1", engagements[0].Attacker.ID)
	assert.Equal(t, "b2", engagements[0].Defender.ID)
	assert.Equal(t, 0.5, engagements[0].Multiplier)

	assert.Equal(t, "b2", engagements[1].Attacker.ID)
	assert.Equal(t, "a1", engagements[1].Defender.ID)
	assert.Equal(t, 2.0, engagements[1].Multiplier)

	// second pass is served from the session cache
	_, err = s.Engagements(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), src.calls.Load())
}

func TestSession_EngagementsRespectRange(t *testing.T) {
	roster := testRoster()
	roster[0].Range = 3 // a1 can no longer reach b2 at distance sqrt(17)

	s, err := New("b-1", testTerrain(), roster, testSource(), Options{Engine: config.EngineConfig{ScanWorkers: 2}})
	require.NoError(t, err)
	defer s.Close()

	engagements, err := s.Engagements(context.Background())
	require.NoError(t, err)
	require.Len(t, engagements, 1)
	assert.Equal(t, "b2", engagements[0].Attacker.ID)
}

func TestSession_EngagementsSourceError(t *testing.T) {
	src := testSource()
	src.err = errors.New("catalogue down")
	s := newTestSession(t, src, nil)

	_, err := s.Engagements(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "catalogue down")

	// failures are not memoized
	src.err = nil
	engagements, err := s.Engagements(context.Background())
	require.NoError(t, err)
	assert.Len(t, engagements, 2)
}

func TestSession_Multiplier(t *testing.T) {
	s := newTestSession(t, testSource(), nil)

	v, err := s.Multiplier(context.Background(), "archer", "infantry")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = s.Multiplier(context.Background(), "knight", "archer")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultMultiplier, v)
}

func TestSession_Plan(t *testing.T) {
	s := newTestSession(t, testSource(), nil)

	path, ok, err := s.Plan(context.Background(), "a1", core.Coordinate{X: 3, Y: 0}, nil)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Len(t, path, 6)
	assert.Equal(t, 5, path.Cost())
	assert.Equal(t, core.Coordinate{X: 0, Y: 0}, path[0].Coord)
	assert.Equal(t, core.Coordinate{X: 3, Y: 0}, path[len(path)-1].Coord)
	assert.NotContains(t, path.Coordinates(), core.Coordinate{X: 2, Y: 0})
}

func TestSession_PlanUnknownUnit(t *testing.T) {
	s := newTestSession(t, testSource(), nil)

	_, _, err := s.Plan(context.Background(), "ghost", core.Coordinate{}, nil)
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestSession_PlanOffMap(t *testing.T) {
	s := newTestSession(t, testSource(), nil)

	// a2 stands outside the terrain snapshot
	path, ok, err := s.Plan(context.Background(), "a2", core.Coordinate{X: 0, Y: 0}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, path)
}

func TestSession_PlanAvoidsDanger(t *testing.T) {
	s := newTestSession(t, testSource(), nil)

	danger := core.NewDangerSet(core.Coordinate{X: 1, Y: 0}, core.Coordinate{X: 0, Y: 1})
	_, ok := s.PlanFrom(context.Background(), core.Coordinate{}, core.Coordinate{X: 5, Y: 3}, danger)
	assert.False(t, ok)
}

func TestSession_SetRoster(t *testing.T) {
	s := newTestSession(t, testSource(), nil)

	moved := testRoster()
	moved[0].Position = core.Coordinate{X: 0, Y: 3}
	s.SetRoster(moved)

	u, ok := s.Unit("a1")
	require.True(t, ok)
	assert.Equal(t, core.Coordinate{X: 0, Y: 3}, u.Position)

	// returned roster is a copy
	r := s.Roster()
	r[0].ID = "changed"
	_, ok = s.Unit("a1")
	assert.True(t, ok)
}

func TestSession_EndTick(t *testing.T) {
	rep := &fakeReporter{}
	s := newTestSession(t, testSource(), rep)
	ctx := context.Background()

	_, err := s.Scan(ctx)
	require.NoError(t, err)
	_, err = s.Engagements(ctx)
	require.NoError(t, err)
	_, _, err = s.Plan(ctx, "a1", core.Coordinate{X: 3, Y: 0}, nil)
	require.NoError(t, err)

	stats, err := s.EndTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Tick)
	assert.Equal(t, 4, stats.Units)
	assert.Equal(t, 2, stats.VisiblePairs)
	assert.Equal(t, 2, stats.Engagements)
	assert.Equal(t, int64(1), stats.PathSearches)
	assert.Positive(t, stats.NodesExpanded)
	assert.Equal(t, int64(2), stats.MatchupLookups)
	assert.Equal(t, int64(0), stats.MatchupHits)

	_, err = s.Engagements(ctx)
	require.NoError(t, err)

	stats, err = s.EndTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Tick)
	assert.Equal(t, 0, stats.VisiblePairs)
	assert.Equal(t, 2, stats.Engagements)
	assert.Equal(t, int64(0), stats.PathSearches)
	assert.Equal(t, int64(0), stats.MatchupLookups)
	assert.Equal(t, int64(2), stats.MatchupHits)

	require.Len(t, rep.ticks, 2)
	assert.Equal(t, stats, rep.ticks[1])
}

func TestSession_ConcurrentEndTickNumbersAreUnique(t *testing.T) {
	s := newTestSession(t, testSource(), nil)

	const ticks = 50
	var wg sync.WaitGroup
	got := make([]int64, ticks)
	for i := 0; i < ticks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats, err := s.EndTick(context.Background())
			assert.NoError(t, err)
			got[i] = stats.Tick
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, ticks)
	for _, tick := range got {
		assert.False(t, seen[tick], "tick %d reported twice", tick)
		seen[tick] = true
	}
	for tick := int64(1); tick <= ticks; tick++ {
		assert.True(t, seen[tick], "tick %d missing", tick)
	}
}

func TestSession_EndTickReportError(t *testing.T) {
	rep := &fakeReporter{err: errors.New("write failed")}
	s := newTestSession(t, testSource(), rep)

	_, err := s.EndTick(context.Background())
	assert.ErrorContains(t, err, "write failed")
}

func TestSession_Close(t *testing.T) {
	s := newTestSession(t, testSource(), nil)
	ctx := context.Background()

	_, err := s.Multiplier(ctx, "archer", "cavalry")
	require.NoError(t, err)
	require.Equal(t, 1, s.matchups.Len())

	require.NoError(t, s.Close())
	assert.Equal(t, 0, s.matchups.Len())
	require.NoError(t, s.Close())

	_, err = s.Scan(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Engagements(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Multiplier(ctx, "archer", "cavalry")
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = s.Plan(ctx, "a1", core.Coordinate{}, nil)
	assert.ErrorIs(t, err, ErrClosed)
}
