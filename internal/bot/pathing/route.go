package pathing

import (
	"fmt"

	"scrapbot.ai/internal/sim/grid"
)

type ActionKind uint8

const (
	North ActionKind = iota
	South
	East
	West
	Teleport
)

// Action is one primitive move produced by a planner.
type Action struct {
	Kind ActionKind
	To   grid.Pos // Teleport only
}

func (a Action) String() string {
	switch a.Kind {
	case North:
		return "N"
	case South:
		return "S"
	case East:
		return "E"
	case West:
		return "W"
	case Teleport:
		return fmt.Sprintf("T%v", a.To)
	}
	return "?"
}

// Direction is the facing implied by a cardinal action. Teleports face up.
func (a Action) Direction() grid.Direction {
	switch a.Kind {
	case South:
		return grid.Down
	case East:
		return grid.Right
	case West:
		return grid.Left
	}
	return grid.Up
}

// Step converts a grid direction into the matching cardinal action.
func Step(d grid.Direction) Action {
	switch d {
	case grid.Down:
		return Action{Kind: South}
	case grid.Left:
		return Action{Kind: West}
	case grid.Right:
		return Action{Kind: East}
	}
	return Action{Kind: North}
}

// Route is a planner result. Route[0] is the approach step that would enter
// the destination; Route[1:] walks from the current position to the cell
// next to it. An empty route means the agent already stands on the
// destination.
type Route []Action

// Approach is the direction the destination is entered from.
func (r Route) Approach() grid.Direction {
	if len(r) == 0 {
		return grid.Up
	}
	return r[0].Direction()
}

// Walk is the part of the route the executor actually moves along.
func (r Route) Walk() []Action {
	if len(r) == 0 {
		return nil
	}
	return r[1:]
}

// NewRoute builds a Route from an ordered step list ending on the destination.
func NewRoute(steps []Action) Route {
	if len(steps) == 0 {
		return Route{}
	}
	r := make(Route, 0, len(steps))
	r = append(r, steps[len(steps)-1])
	r = append(r, steps[:len(steps)-1]...)
	return r
}
