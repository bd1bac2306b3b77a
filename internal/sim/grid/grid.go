package grid

import "fmt"

// Pos is a cell on a square grid. Row grows downwards, Col grows rightwards.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }

// Step returns the neighbouring cell in direction d.
func (p Pos) Step(d Direction) Pos {
	switch d {
	case Up:
		return Pos{Row: p.Row - 1, Col: p.Col}
	case Down:
		return Pos{Row: p.Row + 1, Col: p.Col}
	case Left:
		return Pos{Row: p.Row, Col: p.Col - 1}
	case Right:
		return Pos{Row: p.Row, Col: p.Col + 1}
	}
	return p
}

// In reports whether p lies inside a size x size grid.
func (p Pos) In(size int) bool {
	return p.Row >= 0 && p.Col >= 0 && p.Row < size && p.Col < size
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Manhattan is |drow| + |dcol|.
func Manhattan(a, b Pos) int {
	return AbsInt(a.Row-b.Row) + AbsInt(a.Col-b.Col)
}

// BorderDistance is the number of cells between p and the closest edge of a
// size x size grid (0 on the edge itself).
func BorderDistance(p Pos, size int) int {
	d := p.Row
	for _, v := range []int{p.Col, size - 1 - p.Row, size - 1 - p.Col} {
		if v < d {
			d = v
		}
	}
	if d < 0 {
		return 0
	}
	return d
}

type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions is the fixed neighbour order used by every search in the module.
var Directions = [4]Direction{Up, Down, Left, Right}

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Toward returns the direction of the single cardinal step from a to b.
func Toward(a, b Pos) (Direction, bool) {
	switch {
	case b.Row == a.Row-1 && b.Col == a.Col:
		return Up, true
	case b.Row == a.Row+1 && b.Col == a.Col:
		return Down, true
	case b.Row == a.Row && b.Col == a.Col-1:
		return Left, true
	case b.Row == a.Row && b.Col == a.Col+1:
		return Right, true
	}
	return Up, false
}
