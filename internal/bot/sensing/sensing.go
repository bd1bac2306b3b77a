package sensing

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"

	"scrapbot.ai/internal/sim/grid"
)

// MinDiameter is the smallest scan the adapter will request.
const MinDiameter = 3

var ErrBadDiameter = errors.New("malformed scan diameter")

// Error is a failed refresh. It is never retried by the adapter.
type Error struct {
	Center   grid.Pos
	Diameter int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sensing at %v diameter %d: %v", e.Center, e.Diameter, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Scanner is the host area scan: every tile matching match inside the square
// of side diameter centred on center.
type Scanner interface {
	Scan(center grid.Pos, diameter int, match func(grid.Tile) bool) ([]grid.Sighting, error)
}

// Locator gives the adapter the agent position and the grid side.
type Locator interface {
	Position() grid.Pos
	Size() int
}

// Adapter keeps the agent's merged knowledge of content positions.
type Adapter struct {
	scanner Scanner
	where   Locator
	log     *log.Logger

	defaultDiameter int
	hint            int
	last            int
	kinds           map[grid.ContentKind]bool
	content         map[grid.Pos]grid.Content
}

// New builds an adapter tracking the given content kinds. defaultDiameter 0
// means a quarter of the grid side.
func New(scanner Scanner, where Locator, defaultDiameter int, logger *log.Logger, kinds ...grid.ContentKind) *Adapter {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	a := &Adapter{
		scanner:         scanner,
		where:           where,
		log:             logger,
		defaultDiameter: defaultDiameter,
		kinds:           map[grid.ContentKind]bool{},
		content:         map[grid.Pos]grid.Content{},
	}
	for _, k := range kinds {
		a.kinds[k] = true
	}
	return a
}

// SetRadiusHint overrides the diameter of the next refresh that does not ask
// for an explicit one.
func (a *Adapter) SetRadiusHint(diameter int) { a.hint = diameter }

// LastDiameter is the effective diameter of the most recent scan request.
func (a *Adapter) LastDiameter() int { return a.last }

// Refresh scans around the current position and merges what it sees. A
// requested diameter of 0 uses the pending hint, then the default.
func (a *Adapter) Refresh(requested int) error {
	pos := a.where.Position()
	size := a.where.Size()
	if requested < 0 {
		return &Error{Center: pos, Diameter: requested, Err: ErrBadDiameter}
	}
	if requested == 0 {
		requested = a.hint
		a.hint = 0
	}
	if requested == 0 {
		requested = a.defaultDiameter
	}
	if requested == 0 {
		requested = size / 4
	}

	d := EffectiveDiameter(requested, pos, size)
	a.last = d
	a.log.Printf("scan at %v: requested=%d effective=%d", pos, requested, d)

	sightings, err := a.scanner.Scan(pos, d, a.match)
	if err != nil {
		return &Error{Center: pos, Diameter: d, Err: err}
	}

	// Forget what used to be inside the scanned square; the scan is the truth now.
	half := d / 2
	for p := range a.content {
		if grid.AbsInt(p.Row-pos.Row) <= half && grid.AbsInt(p.Col-pos.Col) <= half {
			delete(a.content, p)
		}
	}
	for _, s := range sightings {
		if a.kinds[s.Tile.Content.Kind] {
			a.content[s.Pos] = s.Tile.Content
		}
	}
	return nil
}

// Forget drops a single cell, e.g. a pile the agent emptied.
func (a *Adapter) Forget(p grid.Pos) { delete(a.content, p) }

// Discovered lists known cells holding content of kind, in row-major order.
func (a *Adapter) Discovered(kind grid.ContentKind) []grid.Pos {
	var out []grid.Pos
	for p, c := range a.content {
		if c.Kind == kind {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func (a *Adapter) match(t grid.Tile) bool { return a.kinds[t.Content.Kind] }

// EffectiveDiameter caps a requested scan so it does not run past the border:
// min(odd(requested), odd(2*borderDistance)), never below MinDiameter.
func EffectiveDiameter(requested int, pos grid.Pos, size int) int {
	border := roundDownToOdd(2 * grid.BorderDistance(pos, size))
	d := roundDownToOdd(requested)
	if border < d {
		d = border
	}
	return d
}

func roundDownToOdd(v int) int {
	if v%2 == 0 {
		v--
	}
	if v < MinDiameter {
		return MinDiameter
	}
	return v
}
