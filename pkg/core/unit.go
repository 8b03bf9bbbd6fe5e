// pkg/core/unit.go
package core

// Side identifies a faction in a battle. Units of differing sides are hostile.
type Side string

// WarUnit is a snapshot of one unit on the battlefield.
// The core never mutates it; movement is returned, not applied.
type WarUnit struct {
	ID       string
	Side     Side
	UnitType string
	Position Coordinate
	Range    int
	Facing   int // degrees, decorative
}

// HostileTo reports whether u and o are on different sides.
func (u WarUnit) HostileTo(o WarUnit) bool {
	return u.Side != o.Side
}

// MatchupKey is the ordered (attacker, defender) unit-type pair.
type MatchupKey struct {
	Attacker string
	Defender string
}

// DefaultMultiplier applies when the catalogue has no row for a pair.
const DefaultMultiplier = 1.0
