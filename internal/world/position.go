package world

import (
	"fmt"
	"math"
)

// Position is a tile coordinate on a map.
type Position struct {
	Map string `json:"map" yaml:"map"`
	X   int    `json:"x" yaml:"x"`
	Y   int    `json:"y" yaml:"y"`
}

// NewPosition returns a pointer to a position, for the optional fields on
// instances.
func NewPosition(mapID string, x, y int) *Position {
	return &Position{Map: mapID, X: x, Y: y}
}

// Distance is the Euclidean distance over x and y. The map id is ignored;
// callers filter by map first.
func (p Position) Distance(other Position) float64 {
	return math.Hypot(float64(p.X-other.X), float64(p.Y-other.Y))
}

// Cell drops the map id.
func (p Position) Cell() Cell {
	return Cell{X: p.X, Y: p.Y}
}

func (p Position) String() string {
	return fmt.Sprintf("%s(%d,%d)", p.Map, p.X, p.Y)
}

// Cell is a map-less grid coordinate.
type Cell struct {
	X int
	Y int
}

// clonePosition copies an optional position.
func clonePosition(p *Position) *Position {
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}
