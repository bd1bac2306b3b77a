package explore

import "scrapbot.ai/internal/sim/grid"

// Quadrants cycles the agent through the four quarters of the grid:
//
//	1 | 2
//	-----
//	4 | 3
//
// Next always returns the centre of the clockwise neighbour of the quadrant
// the agent is standing in.
type Quadrants struct {
	size    int
	visited [4]bool
}

func NewQuadrants(size int) *Quadrants { return &Quadrants{size: size} }

// Of returns the quadrant id (1-4) of p. On odd grids the middle row and
// column belong to the upper/left quadrants.
func (q *Quadrants) Of(p grid.Pos) int {
	half := (q.size + 1) / 2
	top := p.Row < half
	left := p.Col < half
	switch {
	case top && left:
		return 1
	case top && !left:
		return 2
	case !top && !left:
		return 3
	}
	return 4
}

// Center of quadrant id (1-4).
func (q *Quadrants) Center(id int) grid.Pos {
	lo := q.size / 4
	// hi must fall past the midline or small grids never leave quadrant 1.
	hi := min(q.size/2+max(lo, 1), max(q.size-1, 0))
	switch id {
	case 2:
		return grid.Pos{Row: lo, Col: hi}
	case 3:
		return grid.Pos{Row: hi, Col: hi}
	case 4:
		return grid.Pos{Row: hi, Col: lo}
	}
	return grid.Pos{Row: lo, Col: lo}
}

// Next marks the quadrant containing from as visited and returns the centre
// of the next quadrant clockwise.
func (q *Quadrants) Next(from grid.Pos) grid.Pos {
	cur := q.Of(from)
	q.visited[cur-1] = true
	return q.Center(cur%4 + 1)
}

func (q *Quadrants) Visited(id int) bool {
	if id < 1 || id > 4 {
		return false
	}
	return q.visited[id-1]
}

func (q *Quadrants) AllVisited() bool {
	for _, v := range q.visited {
		if !v {
			return false
		}
	}
	return true
}

// VisitedMap is the 1-4 keyed coverage map used in snapshots.
func (q *Quadrants) VisitedMap() map[int]bool {
	return map[int]bool{1: q.visited[0], 2: q.visited[1], 3: q.visited[2], 4: q.visited[3]}
}

func (q *Quadrants) Reset() { q.visited = [4]bool{} }
