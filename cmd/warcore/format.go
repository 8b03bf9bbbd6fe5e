package main

import (
	"fmt"
	"strings"

	"github.com/OCAP2/warcore/internal/battle"
	"github.com/OCAP2/warcore/internal/geo"
	"github.com/OCAP2/warcore/internal/pathfind"
)

// formatSighting renders one observer and its visible enemies with their
// Euclidean distance in tiles.
func formatSighting(sg battle.Sighting) string {
	seen := make([]string, 0, len(sg.Visible))
	for _, u := range sg.Visible {
		seen = append(seen, fmt.Sprintf("%s @%.1f", u.ID, geo.Distance(sg.Observer.Position, u.Position)))
	}
	return fmt.Sprintf("%s %s sees [%s]", sg.Observer.ID, sg.Observer.Position, strings.Join(seen, ", "))
}

func formatEngagement(e battle.Engagement) string {
	return fmt.Sprintf("%s (%s) -> %s (%s) x%.2f @%.1f",
		e.Attacker.ID, e.Attacker.UnitType, e.Defender.ID, e.Defender.UnitType, e.Multiplier,
		geo.Distance(e.Attacker.Position, e.Defender.Position))
}

func formatPlan(path pathfind.Path) (string, error) {
	wkt, err := geo.PathWKT(path)
	if err != nil {
		return "", err
	}
	length, err := geo.PathLength(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("cost %d, %d tiles, length %.1f\n%s", path.Cost(), len(path), length, wkt), nil
}
