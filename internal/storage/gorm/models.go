package gormstorage

import (
	"time"

	"github.com/OCAP2/warcore/pkg/core"
)

// Models lists every table the catalogue owns, in migration order.
var Models = []any{
	&UnitMatchup{},
	&BattleTile{},
	&BattleUnit{},
}

// UnitMatchup is an effectiveness override for an attacker/defender pair.
type UnitMatchup struct {
	ID                      uint      `gorm:"primarykey"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime"`
	AttackerType            string    `gorm:"size:64;not null;uniqueIndex:idx_matchup_pair"`
	DefenderType            string    `gorm:"size:64;not null;uniqueIndex:idx_matchup_pair"`
	EffectivenessMultiplier float64   `gorm:"not null"`
}

func (UnitMatchup) TableName() string { return "unit_matchups" }

// BattleTile is one tile of a battle's terrain snapshot.
type BattleTile struct {
	ID        uint   `gorm:"primarykey"`
	BattleID  string `gorm:"size:64;not null;uniqueIndex:idx_battle_tile"`
	X         int    `gorm:"not null;uniqueIndex:idx_battle_tile"`
	Y         int    `gorm:"not null;uniqueIndex:idx_battle_tile"`
	Terrain   string `gorm:"size:32;not null"`
	Passable  bool   `gorm:"not null"`
	MoveCost  int    `gorm:"not null"`
	Cover     float64
	Elevation int
}

func (BattleTile) TableName() string { return "battle_tiles" }

// BattleUnit is one roster entry. Seq keeps the orchestrator's ordering.
type BattleUnit struct {
	ID       uint   `gorm:"primarykey"`
	BattleID string `gorm:"size:64;not null;index:idx_battle_roster,priority:1"`
	Seq      int    `gorm:"not null;index:idx_battle_roster,priority:2"`
	UnitID   string `gorm:"size:64;not null"`
	Side     string `gorm:"size:32;not null"`
	UnitType string `gorm:"size:64;not null"`
	X        int
	Y        int
	Range    int
	Facing   int
}

func (BattleUnit) TableName() string { return "battle_units" }

func tileFromCore(battleID string, t core.TerrainTile) BattleTile {
	return BattleTile{
		BattleID:  battleID,
		X:         t.Coord.X,
		Y:         t.Coord.Y,
		Terrain:   string(t.Kind),
		Passable:  t.Passable,
		MoveCost:  t.Cost(),
		Cover:     t.Cover,
		Elevation: t.Elevation,
	}
}

func (t BattleTile) toCore() core.TerrainTile {
	kind := core.TerrainKind(t.Terrain)
	if kind == "" {
		kind = core.TerrainPlain
	}
	return core.TerrainTile{
		Coord:     core.Coordinate{X: t.X, Y: t.Y},
		Kind:      kind,
		Passable:  t.Passable,
		MoveCost:  t.MoveCost,
		Cover:     t.Cover,
		Elevation: t.Elevation,
	}
}

func unitFromCore(battleID string, seq int, u core.WarUnit) BattleUnit {
	return BattleUnit{
		BattleID: battleID,
		Seq:      seq,
		UnitID:   u.ID,
		Side:     string(u.Side),
		UnitType: u.UnitType,
		X:        u.Position.X,
		Y:        u.Position.Y,
		Range:    u.Range,
		Facing:   u.Facing,
	}
}

func (u BattleUnit) toCore() core.WarUnit {
	return core.WarUnit{
		ID:       u.UnitID,
		Side:     core.Side(u.Side),
		UnitType: u.UnitType,
		Position: core.Coordinate{X: u.X, Y: u.Y},
		Range:    u.Range,
		Facing:   u.Facing,
	}
}
