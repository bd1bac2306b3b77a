package gridworld

import (
	"errors"
	"fmt"

	"scrapbot.ai/internal/bot/pathing"
	"scrapbot.ai/internal/sim/grid"
)

var ErrNoRoute = errors.New("no route")

// Plan is a breadth-first planner over the robot's known map. Undiscovered
// cells are assumed walkable; known blocked terrain and solid content are
// not. The destination itself may be solid: the route only enters it with
// its approach step. Standing on teleport tiles, every known teleport tile is
// one hop away.
func (w *World) Plan(dest grid.Pos) (pathing.Route, error) {
	if !dest.In(w.size) {
		return nil, fmt.Errorf("plan to %v: %w", dest, ErrOutOfBounds)
	}
	if dest == w.pos {
		return pathing.Route{}, nil
	}

	n := w.size
	idx := func(p grid.Pos) int { return p.Row*n + p.Col }
	prev := make([]int, n*n)
	for i := range prev {
		prev[i] = -1
	}
	via := make(map[int]pathing.Action)
	start := idx(w.pos)
	prev[start] = start

	var teleports []grid.Pos
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if t := w.known[r][c]; t != nil && t.Type == grid.Teleport {
				teleports = append(teleports, grid.Pos{Row: r, Col: c})
			}
		}
	}

	queue := []grid.Pos{w.pos}
	found := false
	for head := 0; head < len(queue) && !found; head++ {
		cur := queue[head]
		visit := func(next grid.Pos, a pathing.Action) {
			if found || !next.In(n) || prev[idx(next)] != -1 {
				return
			}
			if next != dest && !w.passable(next) {
				return
			}
			prev[idx(next)] = idx(cur)
			via[idx(next)] = a
			if next == dest {
				found = true
				return
			}
			queue = append(queue, next)
		}
		for _, d := range grid.Directions {
			visit(cur.Step(d), pathing.Step(d))
		}
		if t := w.known.At(cur); t != nil && t.Type == grid.Teleport {
			for _, tp := range teleports {
				if tp != cur {
					visit(tp, pathing.Action{Kind: pathing.Teleport, To: tp})
				}
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("plan %v -> %v: %w", w.pos, dest, ErrNoRoute)
	}

	var steps []pathing.Action
	for at := idx(dest); at != start; at = prev[at] {
		steps = append(steps, via[at])
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return pathing.NewRoute(steps), nil
}

func (w *World) passable(p grid.Pos) bool {
	t := w.known.At(p)
	return t == nil || t.Walkable()
}
