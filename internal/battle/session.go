// Package battle ties the geometry engines and the matchup cache to one
// battle: a terrain snapshot, the current roster and a cache whose lifetime
// ends with the battle.
package battle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/warcore/internal/cache"
	"github.com/OCAP2/warcore/internal/config"
	"github.com/OCAP2/warcore/internal/influx"
	"github.com/OCAP2/warcore/internal/los"
	"github.com/OCAP2/warcore/internal/pathfind"
	"github.com/OCAP2/warcore/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownUnit is returned when a unit id is not on the roster.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("battle session closed")
)

// Sighting lists the enemies one observer can see.
type Sighting struct {
	Observer core.WarUnit
	Visible  []core.WarUnit
}

// Engagement is one attacker able to strike a defender, weighted by the
// attacker-vs-defender matchup multiplier.
type Engagement struct {
	Attacker   core.WarUnit
	Defender   core.WarUnit
	Multiplier float64
}

// Options configures a Session.
type Options struct {
	Engine   config.EngineConfig
	Reporter influx.Reporter // nil disables tick reporting
	Logger   *slog.Logger    // nil uses slog.Default()
}

// Session is one running battle. Terrain is fixed for the session; the
// roster may be replaced between ticks with SetRoster. All methods are safe
// for concurrent use.
type Session struct {
	id       string
	terrain  core.Terrain
	engine   config.EngineConfig
	matchups *cache.MatchupCache
	reporter influx.Reporter
	log      *slog.Logger

	mu     sync.RWMutex
	roster []core.WarUnit
	closed bool

	tick cache.SafeCounter

	// per-tick activity, swapped out by EndTick
	visiblePairs  cache.SafeCounter
	engagements   cache.SafeCounter
	pathSearches  cache.SafeCounter
	nodesExpanded cache.SafeCounter

	statsMu   sync.Mutex
	lastStats cache.MatchupStats

	searchCounter   metric.Int64Counter
	expandedCounter metric.Int64Counter
	visibleCounter  metric.Int64Counter
	attrs           metric.MeasurementOption
}

// New opens a session over terrain and roster. Matchup multipliers are read
// from source at most once per pair for the lifetime of the session.
func New(battleID string, terrain core.Terrain, roster []core.WarUnit, source cache.MatchupSource, opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("battle", battleID)

	matchups, err := cache.NewMatchupCache(source, log)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:       battleID,
		terrain:  terrain,
		engine:   opts.Engine,
		matchups: matchups,
		reporter: opts.Reporter,
		log:      log,
		roster:   append([]core.WarUnit(nil), roster...),
		attrs:    metric.WithAttributes(attribute.String("battle", battleID)),
	}

	m := meter()

	s.searchCounter, err = m.Int64Counter(
		"warcore.path.searches",
		metric.WithDescription("Path searches run"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating search counter: %w", err)
	}

	s.expandedCounter, err = m.Int64Counter(
		"warcore.path.expanded",
		metric.WithDescription("Nodes expanded by path searches"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating expanded counter: %w", err)
	}

	s.visibleCounter, err = m.Int64Counter(
		"warcore.scan.visible",
		metric.WithDescription("Observer to enemy sightings found by scans"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating visible counter: %w", err)
	}

	log.Info("battle session opened", "tiles", len(terrain), "units", len(roster))
	return s, nil
}

// ID returns the battle id.
func (s *Session) ID() string { return s.id }

// Terrain returns the session's terrain snapshot. Callers must not modify it.
func (s *Session) Terrain() core.Terrain { return s.terrain }

// Roster returns a copy of the current roster.
func (s *Session) Roster() []core.WarUnit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.WarUnit(nil), s.roster...)
}

// SetRoster replaces the roster, typically with moved units between ticks.
func (s *Session) SetRoster(units []core.WarUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster = append([]core.WarUnit(nil), units...)
}

// Unit looks up a roster unit by id.
func (s *Session) Unit(id string) (core.WarUnit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.roster {
		if u.ID == id {
			return u, true
		}
	}
	return core.WarUnit{}, false
}

func (s *Session) snapshot() ([]core.WarUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.roster, nil
}

func (s *Session) workers() int {
	if s.engine.ScanWorkers < 1 {
		return 1
	}
	return s.engine.ScanWorkers
}

// Scan computes the visible enemies of every roster unit within the engine
// vision range. Observers are evaluated concurrently; the result follows
// roster order.
func (s *Session) Scan(ctx context.Context) ([]Sighting, error) {
	roster, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	out := make([]Sighting, len(roster))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())

	for i, observer := range roster {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = Sighting{
				Observer: observer,
				Visible:  los.VisibleEnemies(observer, roster, s.terrain, s.engine.VisionRange),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pairs int64
	for _, sg := range out {
		pairs += int64(len(sg.Visible))
	}
	s.visiblePairs.Add(pairs)
	s.visibleCounter.Add(ctx, pairs, s.attrs)

	return out, nil
}

// Engagements lists every attacker/defender pair where the defender is a
// visible enemy within the attacker's own engagement range. Pairs are ordered
// by attacker roster position, then defender roster position.
func (s *Session) Engagements(ctx context.Context) ([]Engagement, error) {
	roster, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	perAttacker := make([][]Engagement, len(roster))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())

	for i, attacker := range roster {
		g.Go(func() error {
			for _, defender := range los.VisibleEnemies(attacker, roster, s.terrain, attacker.Range) {
				m, err := s.matchups.Multiplier(gctx, attacker.UnitType, defender.UnitType)
				if err != nil {
					return fmt.Errorf("engagement %s -> %s: %w", attacker.ID, defender.ID, err)
				}
				perAttacker[i] = append(perAttacker[i], Engagement{Attacker: attacker, Defender: defender, Multiplier: m})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Engagement
	for _, e := range perAttacker {
		out = append(out, e...)
	}
	s.engagements.Add(int64(len(out)))
	return out, nil
}

// Multiplier returns the cached matchup multiplier of attacker against defender.
func (s *Session) Multiplier(ctx context.Context, attacker, defender string) (float64, error) {
	if _, err := s.snapshot(); err != nil {
		return 0, err
	}
	return s.matchups.Multiplier(ctx, attacker, defender)
}

// Plan finds a path for the roster unit unitID to goal avoiding danger.
// ok is false when no path exists.
func (s *Session) Plan(ctx context.Context, unitID string, goal core.Coordinate, danger core.DangerSet) (pathfind.Path, bool, error) {
	if _, err := s.snapshot(); err != nil {
		return nil, false, err
	}
	u, found := s.Unit(unitID)
	if !found {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownUnit, unitID)
	}
	path, ok := s.PlanFrom(ctx, u.Position, goal, danger)
	return path, ok, nil
}

// PlanFrom finds a path between two coordinates on the session terrain.
func (s *Session) PlanFrom(ctx context.Context, start, goal core.Coordinate, danger core.DangerSet) (pathfind.Path, bool) {
	res, ok := pathfind.Search(start, goal, s.terrain, danger)

	s.pathSearches.Inc()
	s.nodesExpanded.Add(int64(res.Expanded))
	s.searchCounter.Add(ctx, 1, s.attrs)
	s.expandedCounter.Add(ctx, int64(res.Expanded), s.attrs)

	s.log.DebugContext(ctx, "path search", "start", start, "goal", goal, "found", ok, "expanded", res.Expanded, "cost", res.Path.Cost())
	return res.Path, ok
}

// EndTick closes the current tick, resets the per-tick counters and reports
// the tick's activity.
func (s *Session) EndTick(ctx context.Context) (influx.TickStats, error) {
	tick := s.tick.Inc()

	s.statsMu.Lock()
	cur := s.matchups.Stats()
	prev := s.lastStats
	s.lastStats = cur
	s.statsMu.Unlock()

	stats := influx.TickStats{
		Tick:           tick,
		Units:          len(s.Roster()),
		VisiblePairs:   int(s.visiblePairs.Swap(0)),
		Engagements:    int(s.engagements.Swap(0)),
		PathSearches:   s.pathSearches.Swap(0),
		NodesExpanded:  s.nodesExpanded.Swap(0),
		MatchupLookups: cur.Lookups - prev.Lookups,
		MatchupHits:    cur.Hits - prev.Hits,
		MatchupErrors:  cur.Errors - prev.Errors,
	}

	if s.reporter != nil {
		if err := s.reporter.ReportTick(ctx, s.id, stats); err != nil {
			s.log.ErrorContext(ctx, "tick report failed", "tick", stats.Tick, "error", err)
			return stats, fmt.Errorf("report tick %d: %w", stats.Tick, err)
		}
	}
	return stats, nil
}

// Close ends the session and drops its matchup cache.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	st := s.matchups.Stats()
	s.matchups.Reset()
	s.log.Info("battle session closed", "ticks", s.tick.Value(), "matchupLookups", st.Lookups, "matchupHits", st.Hits)
	return nil
}
