// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/OCAP2/warcore/pkg/core"
)

// ErrBattleNotFound is returned when a battle has no terrain snapshot.
var ErrBattleNotFound = errors.New("battle not found")

// Backend is the catalogue the battle core reads from. Implementations must
// be safe for concurrent use.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// MatchupMultiplier satisfies cache.MatchupSource.
	MatchupMultiplier(ctx context.Context, attacker, defender string) (float64, bool, error)

	// Per-battle snapshots
	LoadTerrain(ctx context.Context, battleID string) (core.Terrain, error)
	LoadRoster(ctx context.Context, battleID string) ([]core.WarUnit, error)
}

// Seeder is an optional interface for backends that accept catalogue writes,
// used by administrative reloads and tests.
type Seeder interface {
	SaveMatchups(ctx context.Context, rows ...Matchup) error
	SaveTerrain(ctx context.Context, battleID string, terrain core.Terrain) error
	SaveRoster(ctx context.Context, battleID string, units []core.WarUnit) error

	// SeedBattle writes matchups, terrain and roster atomically.
	SeedBattle(ctx context.Context, battleID string, matchups []Matchup, terrain core.Terrain, units []core.WarUnit) error
}

// Matchup is one catalogue row.
type Matchup struct {
	Attacker   string
	Defender   string
	Multiplier float64
}
