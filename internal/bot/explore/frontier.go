package explore

import "scrapbot.ai/internal/sim/grid"

type Variant uint8

const (
	// FirstUnknown returns the closest undiscovered cell itself.
	FirstUnknown Variant = iota
	// ReachableEdge returns the closest known cell bordering undiscovered
	// ground that the planner can actually route to.
	ReachableEdge
)

func ParseVariant(s string) (Variant, bool) {
	switch s {
	case "unknown":
		return FirstUnknown, true
	case "reachable":
		return ReachableEdge, true
	}
	return FirstUnknown, false
}

// Frontier is a breadth-first search for the nearest unexplored area.
// Known lava, deep water and walls are blocked, and so is a band of Margin
// cells along the grid edge.
type Frontier struct {
	Margin  int
	Variant Variant
}

// Target is Find with the map centre as fallback.
func (f Frontier) Target(known grid.KnownMap, from grid.Pos, reachable func(grid.Pos) bool) grid.Pos {
	if p, ok := f.Find(known, from, reachable); ok {
		return p
	}
	n := known.Size()
	return grid.Pos{Row: n / 2, Col: n / 2}
}

// Find runs the search from the agent position. reachable is only consulted
// by the ReachableEdge variant.
func (f Frontier) Find(known grid.KnownMap, from grid.Pos, reachable func(grid.Pos) bool) (grid.Pos, bool) {
	n := known.Size()
	if n == 0 || !from.In(n) {
		return grid.Pos{}, false
	}
	if f.Variant == ReachableEdge {
		return f.findEdge(known, from, reachable)
	}

	visited := make([]bool, n*n)
	visited[from.Row*n+from.Col] = true
	queue := []grid.Pos{from}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		if !known.Known(cur) {
			return cur, true
		}
		for _, d := range grid.Directions {
			np := cur.Step(d)
			if !np.In(n) || visited[np.Row*n+np.Col] || f.blocked(known, np) {
				continue
			}
			visited[np.Row*n+np.Col] = true
			queue = append(queue, np)
		}
	}
	return grid.Pos{}, false
}

func (f Frontier) findEdge(known grid.KnownMap, from grid.Pos, reachable func(grid.Pos) bool) (grid.Pos, bool) {
	n := known.Size()
	if reachable == nil {
		reachable = func(grid.Pos) bool { return true }
	}
	candidate := func(p grid.Pos) bool {
		t := known.At(p)
		if t == nil || !t.Walkable() || !bordersUnknown(known, p) {
			return false
		}
		return reachable(p)
	}

	visited := make([]bool, n*n)
	probed := map[grid.Pos]bool{}
	visited[from.Row*n+from.Col] = true
	queue := []grid.Pos{from}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		if cur != from && candidate(cur) {
			return cur, true
		}
		for _, d := range grid.Directions {
			np := cur.Step(d)
			if !np.In(n) || visited[np.Row*n+np.Col] {
				continue
			}
			if f.inMargin(n, np) {
				// The planner misbehaves along the edge; try the mirrored cell instead.
				m := f.mirror(n, np)
				if !probed[m] && !f.inMargin(n, m) {
					probed[m] = true
					if candidate(m) {
						return m, true
					}
				}
				continue
			}
			t := known.At(np)
			if t == nil || !t.Walkable() {
				continue
			}
			visited[np.Row*n+np.Col] = true
			queue = append(queue, np)
		}
	}
	return grid.Pos{}, false
}

func (f Frontier) blocked(known grid.KnownMap, p grid.Pos) bool {
	if f.inMargin(known.Size(), p) {
		return true
	}
	t := known.At(p)
	return t != nil && t.Type.Blocked()
}

func (f Frontier) inMargin(n int, p grid.Pos) bool {
	m := f.Margin
	return p.Row < m || p.Col < m || p.Row >= n-m || p.Col >= n-m
}

// mirror moves each coordinate that falls inside the margin band to the first
// usable line on the opposite side of the grid.
func (f Frontier) mirror(n int, p grid.Pos) grid.Pos {
	out := p
	switch {
	case p.Row < f.Margin:
		out.Row = n - 1 - f.Margin
	case p.Row >= n-f.Margin:
		out.Row = f.Margin
	}
	switch {
	case p.Col < f.Margin:
		out.Col = n - 1 - f.Margin
	case p.Col >= n-f.Margin:
		out.Col = f.Margin
	}
	return out
}

func bordersUnknown(known grid.KnownMap, p grid.Pos) bool {
	for _, d := range grid.Directions {
		np := p.Step(d)
		if np.In(known.Size()) && !known.Known(np) {
			return true
		}
	}
	return false
}
