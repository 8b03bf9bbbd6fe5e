package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/OCAP2/warcore/internal/storage"
	"github.com/OCAP2/warcore/pkg/core"
)

// seedFile is the JSON layout accepted by the seed command.
type seedFile struct {
	Matchups []struct {
		Attacker   string  `json:"attacker"`
		Defender   string  `json:"defender"`
		Multiplier float64 `json:"multiplier"`
	} `json:"matchups"`
	Terrain []struct {
		X         int     `json:"x"`
		Y         int     `json:"y"`
		Kind      string  `json:"kind"`
		Passable  *bool   `json:"passable"`
		MoveCost  int     `json:"moveCost"`
		Cover     float64 `json:"cover"`
		Elevation int     `json:"elevation"`
	} `json:"terrain"`
	Units []struct {
		ID       string `json:"id"`
		Side     string `json:"side"`
		UnitType string `json:"unitType"`
		X        int    `json:"x"`
		Y        int    `json:"y"`
		Range    int    `json:"range"`
		Facing   int    `json:"facing"`
	} `json:"units"`
}

func readSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

func (f *seedFile) matchups() []storage.Matchup {
	out := make([]storage.Matchup, 0, len(f.Matchups))
	for _, m := range f.Matchups {
		out = append(out, storage.Matchup{Attacker: m.Attacker, Defender: m.Defender, Multiplier: m.Multiplier})
	}
	return out
}

// terrain converts the tile list; omitted fields keep NewTile defaults.
func (f *seedFile) terrain() core.Terrain {
	t := make(core.Terrain, len(f.Terrain))
	for _, row := range f.Terrain {
		tile := core.NewTile(core.Coordinate{X: row.X, Y: row.Y})
		if row.Kind != "" {
			tile.Kind = core.TerrainKind(row.Kind)
		}
		if row.Passable != nil {
			tile.Passable = *row.Passable
		}
		if row.MoveCost > 0 {
			tile.MoveCost = row.MoveCost
		}
		tile.Cover = row.Cover
		tile.Elevation = row.Elevation
		t.Put(tile)
	}
	return t
}

func (f *seedFile) units() []core.WarUnit {
	out := make([]core.WarUnit, 0, len(f.Units))
	for _, u := range f.Units {
		out = append(out, core.WarUnit{
			ID:       u.ID,
			Side:     core.Side(u.Side),
			UnitType: u.UnitType,
			Position: core.Coordinate{X: u.X, Y: u.Y},
			Range:    u.Range,
			Facing:   u.Facing,
		})
	}
	return out
}

func seedBattle(ctx context.Context, backend storage.Backend, battleID, path string) error {
	seeder, ok := backend.(storage.Seeder)
	if !ok {
		return fmt.Errorf("storage backend does not accept seeding")
	}
	f, err := readSeedFile(path)
	if err != nil {
		return err
	}
	return seeder.SeedBattle(ctx, battleID, f.matchups(), f.terrain(), f.units())
}
