package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/OCAP2/warcore/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidMultiplier is returned when the source yields a non-positive multiplier.
var ErrInvalidMultiplier = errors.New("matchup multiplier must be positive")

// MatchupSource looks up the effectiveness multiplier of attacker against
// defender. found is false when the catalogue has no row for the pair.
type MatchupSource interface {
	MatchupMultiplier(ctx context.Context, attacker, defender string) (multiplier float64, found bool, err error)
}

// Logger interface for pluggable logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MatchupStats is a snapshot of cache activity since creation.
type MatchupStats struct {
	Lookups int64 // calls that reached the source
	Hits    int64 // calls answered from memory
	Errors  int64 // source calls that failed
}

// MatchupCache memoizes attacker/defender multipliers so each pair is read
// from the source once per cache lifetime. Failed lookups are not stored.
//
// Reads share an RWMutex. First fills of one key are collapsed through a
// singleflight group, so concurrent misses issue a single source call.
type MatchupCache struct {
	source MatchupSource
	log    Logger

	mu         sync.RWMutex
	entries    map[core.MatchupKey]float64
	generation uint64

	group singleflight.Group

	lookups SafeCounter
	hits    SafeCounter
	errors  SafeCounter

	lookupCounter metric.Int64Counter
	hitCounter    metric.Int64Counter
	errorCounter  metric.Int64Counter
}

// NewMatchupCache creates an empty cache over source.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewMatchupCache(source MatchupSource, log Logger) (*MatchupCache, error) {
	if source == nil {
		return nil, errors.New("matchup source is required")
	}

	c := &MatchupCache{
		source:  source,
		log:     log,
		entries: make(map[core.MatchupKey]float64),
	}

	m := meter()

	var err error

	c.lookupCounter, err = m.Int64Counter(
		"warcore.matchup.lookups",
		metric.WithDescription("Matchup lookups sent to the catalogue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating lookup counter: %w", err)
	}

	c.hitCounter, err = m.Int64Counter(
		"warcore.matchup.hits",
		metric.WithDescription("Matchup requests served from memory"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating hit counter: %w", err)
	}

	c.errorCounter, err = m.Int64Counter(
		"warcore.matchup.errors",
		metric.WithDescription("Failed catalogue lookups"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error counter: %w", err)
	}

	return c, nil
}

// Multiplier returns the effectiveness multiplier of attacker against
// defender, core.DefaultMultiplier when the catalogue has no row.
func (c *MatchupCache) Multiplier(ctx context.Context, attacker, defender string) (float64, error) {
	key := core.MatchupKey{Attacker: attacker, Defender: defender}

	c.mu.RLock()
	v, ok := c.entries[key]
	gen := c.generation
	c.mu.RUnlock()
	if ok {
		c.hits.Inc()
		c.hitCounter.Add(ctx, 1)
		return v, nil
	}

	// The shared lookup must not inherit one caller's cancellation; each
	// caller stops waiting on its own ctx instead.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(gen, key), func() (any, error) {
		return c.fill(flightCtx, gen, key)
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	}
}

func (c *MatchupCache) fill(ctx context.Context, gen uint64, key core.MatchupKey) (float64, error) {
	// a flight for this key may have finished between the read miss and Do
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Inc()
		c.hitCounter.Add(ctx, 1)
		return v, nil
	}

	attrs := metric.WithAttributes(
		attribute.String("attacker", key.Attacker),
		attribute.String("defender", key.Defender),
	)

	c.lookups.Inc()
	c.lookupCounter.Add(ctx, 1, attrs)

	v, found, err := c.source.MatchupMultiplier(ctx, key.Attacker, key.Defender)
	if err == nil && found && v <= 0 {
		err = fmt.Errorf("%w: %s vs %s = %v", ErrInvalidMultiplier, key.Attacker, key.Defender, v)
	}
	if err != nil {
		c.errors.Inc()
		c.errorCounter.Add(ctx, 1, attrs)
		if c.log != nil {
			c.log.Error("matchup lookup failed", "attacker", key.Attacker, "defender", key.Defender, "error", err)
		}
		return 0, fmt.Errorf("matchup lookup %s vs %s: %w", key.Attacker, key.Defender, err)
	}
	if !found {
		v = core.DefaultMultiplier
	}

	c.mu.Lock()
	// a Reset during the lookup discards the result
	if c.generation == gen {
		c.entries[key] = v
	}
	c.mu.Unlock()

	if c.log != nil {
		c.log.Debug("matchup cached", "attacker", key.Attacker, "defender", key.Defender, "multiplier", v, "found", found)
	}
	return v, nil
}

// Reset drops every memoized entry. Lookups in flight when Reset is called
// still answer their callers but are not stored.
func (c *MatchupCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[core.MatchupKey]float64)
	c.generation++
}

// Len returns the number of memoized pairs.
func (c *MatchupCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *MatchupCache) Stats() MatchupStats {
	return MatchupStats{
		Lookups: c.lookups.Value(),
		Hits:    c.hits.Value(),
		Errors:  c.errors.Value(),
	}
}

func flightKey(gen uint64, key core.MatchupKey) string {
	return strconv.FormatUint(gen, 10) + "\x00" + key.Attacker + "\x00" + key.Defender
}
