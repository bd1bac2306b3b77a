package gridworld

import (
	"errors"
	"fmt"

	"scrapbot.ai/internal/sim/grid"
)

var ErrBadScan = errors.New("bad scan diameter")

// Scan reveals the square of side diameter centred on center, clipped to the
// grid, and returns the tiles match accepts in row-major order.
func (w *World) Scan(center grid.Pos, diameter int, match func(grid.Tile) bool) ([]grid.Sighting, error) {
	if w.terminated {
		return nil, ErrTerminated
	}
	if diameter <= 0 || diameter%2 == 0 || diameter > w.size {
		return nil, fmt.Errorf("%w: %d on a %dx%d grid", ErrBadScan, diameter, w.size, w.size)
	}
	if !center.In(w.size) {
		return nil, fmt.Errorf("scan at %v: %w", center, ErrOutOfBounds)
	}
	if err := w.consume(w.costs.Scan); err != nil {
		return nil, err
	}

	half := diameter / 2
	var out []grid.Sighting
	for r := center.Row - half; r <= center.Row+half; r++ {
		for c := center.Col - half; c <= center.Col+half; c++ {
			p := grid.Pos{Row: r, Col: c}
			if !p.In(w.size) {
				continue
			}
			w.discover(p)
			t := w.tiles[r][c]
			if match == nil || match(t) {
				out = append(out, grid.Sighting{Pos: p, Tile: t})
			}
		}
	}
	return out, nil
}
