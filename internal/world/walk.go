package world

// WalkResult is the outcome of a single WalkTowards step.
type WalkResult uint8

const (
	// WalkNoPath means no route exists or the start or destination is missing.
	WalkNoPath WalkResult = iota
	// WalkMovedCloser means the instance advanced one cell.
	WalkMovedCloser
	// WalkAlreadyAtGoal means the instance is already on the destination.
	WalkAlreadyAtGoal
)

func (r WalkResult) String() string {
	switch r {
	case WalkMovedCloser:
		return "moved_closer"
	case WalkAlreadyAtGoal:
		return "already_at_goal"
	default:
		return "no_path"
	}
}

// walkNeighborOffsets is the BFS expansion order. It doubles as the tie-break
// between equally short paths: east, south, west, north.
var walkNeighborOffsets = [...]Cell{
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
	{X: 0, Y: -1},
}

// Occupied returns the cells on mapID held by live instances other than the
// acting one. When exclude is non-nil an occupant standing exactly on it is
// left out.
func (r *Region) Occupied(acting int, mapID string, exclude *Position) map[Cell]struct{} {
	blocked := make(map[Cell]struct{})
	if r == nil {
		return blocked
	}
	for _, inst := range r.instances {
		if inst.Index == acting || !inst.Live() || inst.Position == nil {
			continue
		}
		pos := *inst.Position
		if pos.Map != mapID {
			continue
		}
		if exclude != nil && pos == *exclude {
			continue
		}
		blocked[pos.Cell()] = struct{}{}
	}
	return blocked
}

// CanGo reports whether a cell is passable terrain not held by an occupant.
// Cells without tiles are outside the map.
func (r *Region) CanGo(x, y int, occupied map[Cell]struct{}) bool {
	tiles := r.Tiles.TilesAt(x, y)
	if len(tiles) == 0 {
		return false
	}
	for _, tile := range tiles {
		if tile.Usage.Blocks() {
			return false
		}
	}
	if _, taken := occupied[Cell{X: x, Y: y}]; taken {
		return false
	}
	return true
}

// WalkTowards advances the acting instance one cell along a shortest
// 4-connected path from p to dp. With excludeDP an occupant standing on dp
// does not block the search, so pursuers can close in on a target.
func (r *Region) WalkTowards(acting int, p, dp *Position, excludeDP bool) WalkResult {
	if r == nil || p == nil || dp == nil {
		return WalkNoPath
	}
	var exclude *Position
	if excludeDP {
		exclude = dp
	}
	occupied := r.Occupied(acting, p.Map, exclude)

	path, ok := r.findPath(p.Cell(), dp.Cell(), occupied)
	if !ok {
		return WalkNoPath
	}
	if len(path) == 1 {
		return WalkAlreadyAtGoal
	}

	inst, ok := r.Instance(acting)
	if !ok {
		return WalkNoPath
	}
	start := *p
	next := Position{Map: p.Map, X: path[1].X, Y: path[1].Y}
	inst.OldPosition = &start
	inst.Position = &next
	return WalkMovedCloser
}

// findPath runs a breadth-first search and returns the cells from start to
// goal inclusive. The start cell itself is not tested for passability.
func (r *Region) findPath(start, goal Cell, occupied map[Cell]struct{}) ([]Cell, bool) {
	parents := map[Cell]Cell{start: start}
	queue := []Cell{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == goal {
			return reconstructCells(parents, start, goal), true
		}
		for _, delta := range walkNeighborOffsets {
			next := Cell{X: current.X + delta.X, Y: current.Y + delta.Y}
			if _, seen := parents[next]; seen {
				continue
			}
			if !r.CanGo(next.X, next.Y, occupied) {
				continue
			}
			parents[next] = current
			queue = append(queue, next)
		}
	}
	return nil, false
}

func reconstructCells(parents map[Cell]Cell, start, goal Cell) []Cell {
	path := []Cell{goal}
	for node := goal; node != start; {
		node = parents[node]
		path = append(path, node)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}
