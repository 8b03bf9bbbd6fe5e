// Package gormstorage implements the storage.Backend interface on top of GORM.
// The sqlite and postgres backends embed it and only add connection handling.
package gormstorage

import (
	"context"
	"fmt"
	"sort"

	"github.com/OCAP2/warcore/internal/storage"
	"github.com/OCAP2/warcore/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

// Backend implements storage.Backend and storage.Seeder with GORM.
type Backend struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New creates a GORM backend over an open connection.
func New(db *gorm.DB, log zerolog.Logger) *Backend {
	return &Backend{db: db, log: log}
}

// DB exposes the connection for dialect-specific maintenance.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the catalogue tables.
func (b *Backend) Init() error {
	if b.db == nil {
		return fmt.Errorf("no database connection")
	}
	if err := b.db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.log.Debug().Int("tables", len(Models)).Msg("Catalogue schema ready")
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MatchupMultiplier returns the catalogue multiplier for the ordered pair.
// found is false when no row exists.
func (b *Backend) MatchupMultiplier(ctx context.Context, attacker, defender string) (float64, bool, error) {
	var rows []UnitMatchup
	err := b.db.WithContext(ctx).
		Where("attacker_type = ? AND defender_type = ?", attacker, defender).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return 0, false, fmt.Errorf("query unit_matchups: %w", err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].EffectivenessMultiplier, true, nil
}

// LoadTerrain returns the battle's terrain snapshot, or
// storage.ErrBattleNotFound when it has no tiles.
func (b *Backend) LoadTerrain(ctx context.Context, battleID string) (core.Terrain, error) {
	var rows []BattleTile
	if err := b.db.WithContext(ctx).Where("battle_id = ?", battleID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query battle_tiles: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrBattleNotFound, battleID)
	}

	terrain := make(core.Terrain, len(rows))
	for _, r := range rows {
		terrain.Put(r.toCore())
	}
	b.log.Debug().Str("battle", battleID).Int("tiles", len(terrain)).Msg("Terrain loaded")
	return terrain, nil
}

// LoadRoster returns the battle's units in roster order.
func (b *Backend) LoadRoster(ctx context.Context, battleID string) ([]core.WarUnit, error) {
	var rows []BattleUnit
	err := b.db.WithContext(ctx).
		Where("battle_id = ?", battleID).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query battle_units: %w", err)
	}

	units := make([]core.WarUnit, len(rows))
	for i, r := range rows {
		units[i] = r.toCore()
	}
	return units, nil
}

// SaveMatchups upserts catalogue rows keyed by (attacker, defender).
func (b *Backend) SaveMatchups(ctx context.Context, rows ...storage.Matchup) error {
	return saveMatchups(b.db.WithContext(ctx), rows)
}

// SaveTerrain replaces the battle's terrain snapshot.
func (b *Backend) SaveTerrain(ctx context.Context, battleID string, terrain core.Terrain) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceTerrain(tx, battleID, terrain)
	})
}

// SaveRoster replaces the battle's roster, keeping the given order.
func (b *Backend) SaveRoster(ctx context.Context, battleID string, units []core.WarUnit) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceRoster(tx, battleID, units)
	})
}

// SeedBattle writes matchups, terrain and roster in one transaction, so a
// failure leaves the catalogue as it was.
func (b *Backend) SeedBattle(ctx context.Context, battleID string, matchups []storage.Matchup, terrain core.Terrain, units []core.WarUnit) error {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveMatchups(tx, matchups); err != nil {
			return err
		}
		if err := replaceTerrain(tx, battleID, terrain); err != nil {
			return err
		}
		return replaceRoster(tx, battleID, units)
	})
	if err != nil {
		return fmt.Errorf("seed battle %s: %w", battleID, err)
	}
	b.log.Info().Str("battle", battleID).Int("matchups", len(matchups)).Int("tiles", len(terrain)).Int("units", len(units)).
		Msg("Battle seeded")
	return nil
}

func saveMatchups(tx *gorm.DB, rows []storage.Matchup) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([]UnitMatchup, len(rows))
	for i, r := range rows {
		records[i] = UnitMatchup{
			AttackerType:            r.Attacker,
			DefenderType:            r.Defender,
			EffectivenessMultiplier: r.Multiplier,
		}
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attacker_type"}, {Name: "defender_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"effectiveness_multiplier", "updated_at"}),
	}).CreateInBatches(records, batchSize).Error
	if err != nil {
		return fmt.Errorf("upsert unit_matchups: %w", err)
	}
	return nil
}

func replaceTerrain(tx *gorm.DB, battleID string, terrain core.Terrain) error {
	rows := make([]BattleTile, 0, len(terrain))
	for _, t := range terrain {
		rows = append(rows, tileFromCore(battleID, t))
	}
	// stable insert order keeps dumps diffable
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].X != rows[j].X {
			return rows[i].X < rows[j].X
		}
		return rows[i].Y < rows[j].Y
	})

	if err := tx.Where("battle_id = ?", battleID).Delete(&BattleTile{}).Error; err != nil {
		return fmt.Errorf("clear battle_tiles: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
		return fmt.Errorf("insert battle_tiles: %w", err)
	}
	return nil
}

func replaceRoster(tx *gorm.DB, battleID string, units []core.WarUnit) error {
	rows := make([]BattleUnit, len(units))
	for i, u := range units {
		rows[i] = unitFromCore(battleID, i, u)
	}

	if err := tx.Where("battle_id = ?", battleID).Delete(&BattleUnit{}).Error; err != nil {
		return fmt.Errorf("clear battle_units: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
		return fmt.Errorf("insert battle_units: %w", err)
	}
	return nil
}
