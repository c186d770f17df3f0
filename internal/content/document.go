// Package content loads regions and shared behavior libraries from YAML
// documents. Every document is checked against an embedded JSON Schema before
// it is decoded.
package content

import (
	"tilesuite/server/internal/behavior"
)

// Document is the top-level authoring format. A document may carry a region,
// a shared library, or both.
type Document struct {
	Region  *RegionDoc  `yaml:"region,omitempty"`
	Library *LibraryDoc `yaml:"library,omitempty"`
}

// RegionDoc describes one region: terrain, local graphs and initial instances.
type RegionDoc struct {
	ID        string        `yaml:"id"`
	Seed      string        `yaml:"seed,omitempty"`
	Layers    int           `yaml:"layers,omitempty"`
	Tiles     []TileFillDoc `yaml:"tiles,omitempty"`
	Graphs    []GraphDoc    `yaml:"graphs,omitempty"`
	Instances []InstanceDoc `yaml:"instances,omitempty"`
}

// LibraryDoc holds graphs shared across regions, per namespace.
type LibraryDoc struct {
	Behavior  []GraphDoc `yaml:"behavior,omitempty"`
	System    []GraphDoc `yaml:"system,omitempty"`
	GameLogic []GraphDoc `yaml:"game_logic,omitempty"`
}

// TileFillDoc paints a rectangle of one tile. Without To it paints one cell.
type TileFillDoc struct {
	Layer int     `yaml:"layer,omitempty"`
	ID    string  `yaml:"id"`
	Usage string  `yaml:"usage"`
	From  [2]int  `yaml:"from"`
	To    *[2]int `yaml:"to,omitempty"`
}

type GraphDoc struct {
	ID          int64           `yaml:"id"`
	Name        string          `yaml:"name,omitempty"`
	Nodes       []NodeDoc       `yaml:"nodes"`
	Connections []ConnectionDoc `yaml:"connections,omitempty"`
}

type NodeDoc struct {
	ID     int64                     `yaml:"id"`
	Name   string                    `yaml:"name,omitempty"`
	Kind   string                    `yaml:"kind"`
	Values map[string]behavior.Value `yaml:"values,omitempty"`
}

type ConnectionDoc struct {
	From     int64  `yaml:"from"`
	Terminal string `yaml:"terminal"`
	To       int64  `yaml:"to"`
}

type PositionDoc struct {
	Map string `yaml:"map,omitempty"`
	X   int    `yaml:"x"`
	Y   int    `yaml:"y"`
}

type InstanceDoc struct {
	Name      string             `yaml:"name"`
	Behavior  int64              `yaml:"behavior,omitempty"`
	State     string             `yaml:"state,omitempty"`
	Position  *PositionDoc       `yaml:"position,omitempty"`
	Variables map[string]float64 `yaml:"variables,omitempty"`
}
