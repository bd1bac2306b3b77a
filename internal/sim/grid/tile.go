package grid

import "fmt"

type TileType uint8

const (
	Grass TileType = iota
	Sand
	Street
	Hill
	Mountain
	Snow
	ShallowWater
	DeepWater
	Lava
	Wall
	Teleport
)

var tileTypeNames = [...]string{
	Grass:        "GRASS",
	Sand:         "SAND",
	Street:       "STREET",
	Hill:         "HILL",
	Mountain:     "MOUNTAIN",
	Snow:         "SNOW",
	ShallowWater: "SHALLOW_WATER",
	DeepWater:    "DEEP_WATER",
	Lava:         "LAVA",
	Wall:         "WALL",
	Teleport:     "TELEPORT",
}

func (t TileType) String() string {
	if int(t) < len(tileTypeNames) {
		return tileTypeNames[t]
	}
	return fmt.Sprintf("TileType(%d)", uint8(t))
}

// Blocked reports terrain the agent can never stand on.
func (t TileType) Blocked() bool {
	return t == Lava || t == DeepWater || t == Wall
}

type ContentKind uint8

const (
	None ContentKind = iota
	Garbage
	Bin
	Rock
	Tree
	Coin
)

var contentKindNames = [...]string{
	None:    "NONE",
	Garbage: "GARBAGE",
	Bin:     "BIN",
	Rock:    "ROCK",
	Tree:    "TREE",
	Coin:    "COIN",
}

func (k ContentKind) String() string {
	if int(k) < len(contentKindNames) {
		return contentKindNames[k]
	}
	return fmt.Sprintf("ContentKind(%d)", uint8(k))
}

// ParseContentKind is the inverse of ContentKind.String.
func ParseContentKind(s string) (ContentKind, bool) {
	for i, n := range contentKindNames {
		if n == s {
			return ContentKind(i), true
		}
	}
	return None, false
}

func (k ContentKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ContentKind) UnmarshalText(b []byte) error {
	v, ok := ParseContentKind(string(b))
	if !ok {
		return fmt.Errorf("unknown content kind %q", b)
	}
	*k = v
	return nil
}

// Content is the payload sitting on a tile. Value is the pile size for
// garbage and the amount already stored for bins.
type Content struct {
	Kind  ContentKind `json:"kind"`
	Value int         `json:"value,omitempty"`
}

// Solid reports content that occupies its tile.
func (c Content) Solid() bool {
	return c.Kind == Bin || c.Kind == Rock || c.Kind == Tree
}

type Tile struct {
	Type    TileType `json:"type"`
	Content Content  `json:"content"`
}

func (t Tile) Walkable() bool {
	return !t.Type.Blocked() && !t.Content.Solid()
}

// KnownMap is an agent's partial view of a square grid, indexed [row][col].
// A nil entry is an undiscovered cell.
type KnownMap [][]*Tile

func (m KnownMap) Size() int { return len(m) }

func (m KnownMap) At(p Pos) *Tile {
	if !p.In(len(m)) {
		return nil
	}
	return m[p.Row][p.Col]
}

func (m KnownMap) Known(p Pos) bool { return m.At(p) != nil }

// Unexplored returns the fraction of cells that are still undiscovered.
func (m KnownMap) Unexplored() float64 {
	n := len(m)
	if n == 0 {
		return 1
	}
	unknown := 0
	for _, row := range m {
		for _, t := range row {
			if t == nil {
				unknown++
			}
		}
	}
	return float64(unknown) / float64(n*n)
}

// Sighting is a tile reported by an area scan.
type Sighting struct {
	Pos  Pos  `json:"pos"`
	Tile Tile `json:"tile"`
}
