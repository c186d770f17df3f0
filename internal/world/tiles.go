package world

// TileUsage classifies what a tile is used for. Only some usages block
// movement.
type TileUsage uint8

const (
	UsageEnvironment TileUsage = iota
	UsageEnvBlocking
	UsageWater
	UsageCharacter
	UsageUtilityChar
	UsageEffect
	UsageIcon
)

var tileUsageNames = [...]string{"environment", "env_blocking", "water", "character", "utility_char", "effect", "icon"}

func (u TileUsage) String() string {
	if int(u) < len(tileUsageNames) {
		return tileUsageNames[u]
	}
	return "unknown"
}

// ParseTileUsage maps an authoring name to a usage.
func ParseTileUsage(name string) (TileUsage, bool) {
	for i, candidate := range tileUsageNames {
		if candidate == name {
			return TileUsage(i), true
		}
	}
	return 0, false
}

// Blocks reports whether a tile with this usage makes its cell impassable.
func (u TileUsage) Blocks() bool {
	return u == UsageEnvBlocking || u == UsageWater
}

// Tile is a single tile placed on a cell.
type Tile struct {
	ID    string
	Usage TileUsage
}

// TileProvider resolves the tiles stacked on a cell.
type TileProvider interface {
	TilesAt(x, y int) []Tile
}

// TileGrid is a sparse, layered tile map. Each cell holds one tile per layer.
type TileGrid struct {
	layers []map[Cell]Tile
}

// NewTileGrid creates a grid with the given number of layers (minimum one).
func NewTileGrid(layers int) *TileGrid {
	if layers < 1 {
		layers = 1
	}
	g := &TileGrid{layers: make([]map[Cell]Tile, layers)}
	for i := range g.layers {
		g.layers[i] = make(map[Cell]Tile)
	}
	return g
}

// Set places tile on a layer. Out-of-range layers are ignored.
func (g *TileGrid) Set(layer, x, y int, tile Tile) {
	if g == nil || layer < 0 || layer >= len(g.layers) {
		return
	}
	g.layers[layer][Cell{X: x, Y: y}] = tile
}

// Clear removes the tile on a layer.
func (g *TileGrid) Clear(layer, x, y int) {
	if g == nil || layer < 0 || layer >= len(g.layers) {
		return
	}
	delete(g.layers[layer], Cell{X: x, Y: y})
}

// Fill places tile on every cell of the rectangle [x0,x1]x[y0,y1].
func (g *TileGrid) Fill(layer, x0, y0, x1, y1 int, tile Tile) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			g.Set(layer, x, y, tile)
		}
	}
}

// TilesAt implements TileProvider. Tiles are returned bottom layer first.
func (g *TileGrid) TilesAt(x, y int) []Tile {
	if g == nil {
		return nil
	}
	var out []Tile
	key := Cell{X: x, Y: y}
	for _, layer := range g.layers {
		if tile, ok := layer[key]; ok {
			out = append(out, tile)
		}
	}
	return out
}

// Layers reports the layer count.
func (g *TileGrid) Layers() int {
	if g == nil {
		return 0
	}
	return len(g.layers)
}
