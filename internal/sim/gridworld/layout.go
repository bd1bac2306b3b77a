package gridworld

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"scrapbot.ai/internal/sim/grid"
)

// Layout is a hand-drawn map file. Each row is one string, one rune per cell:
//
//	.  grass        ,  sand          =  street      ^  hill
//	M  mountain     *  snow          ~  shallow     D  deep water
//	L  lava         #  wall          T  teleport
//	G  garbage (garbage_value)       1-9 garbage pile of that size
//	B  bin          F  full bin      R  rock        Y  tree      C  coin
//	@  robot start (grass)
type Layout struct {
	Name         string   `yaml:"name"`
	MaxEnergy    int      `yaml:"max_energy"`
	Backpack     int      `yaml:"backpack"`
	BinCapacity  int      `yaml:"bin_capacity"`
	GarbageValue int      `yaml:"garbage_value"`
	Costs        Costs    `yaml:"costs"`
	Rows         []string `yaml:"rows"`
}

// Costs is the energy charged per primitive.
type Costs struct {
	Move     int `yaml:"move"`
	Teleport int `yaml:"teleport"`
	Collect  int `yaml:"collect"`
	Deposit  int `yaml:"deposit"`
	Scan     int `yaml:"scan"`
}

func DefaultCosts() Costs {
	return Costs{Move: 1, Teleport: 5, Collect: 2, Deposit: 2, Scan: 1}
}

func LoadLayout(path string) (Layout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}
	l, err := ParseLayout(raw)
	if err != nil {
		return l, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func ParseLayout(raw []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, err
	}
	l.normalize()
	return l, l.validate()
}

func (l *Layout) normalize() {
	if l.MaxEnergy <= 0 {
		l.MaxEnergy = 1000
	}
	if l.Backpack <= 0 {
		l.Backpack = 20
	}
	if l.BinCapacity <= 0 {
		l.BinCapacity = 10
	}
	if l.GarbageValue <= 0 {
		l.GarbageValue = 5
	}
	if l.Costs == (Costs{}) {
		l.Costs = DefaultCosts()
	}
	for i, r := range l.Rows {
		l.Rows[i] = strings.TrimRight(r, " \t\r")
	}
}

func (l Layout) validate() error {
	n := len(l.Rows)
	if n == 0 {
		return fmt.Errorf("layout has no rows")
	}
	starts := 0
	for i, r := range l.Rows {
		if len(r) != n {
			return fmt.Errorf("row %d has %d cells, want %d (maps are square)", i, len(r), n)
		}
		for j, c := range r {
			if _, _, ok := decodeCell(c, l); !ok {
				return fmt.Errorf("row %d col %d: unknown cell %q", i, j, c)
			}
			if c == '@' {
				starts++
			}
		}
	}
	if starts != 1 {
		return fmt.Errorf("layout needs exactly one '@' start, found %d", starts)
	}
	return nil
}

func decodeCell(c rune, l Layout) (grid.Tile, bool, bool) {
	switch c {
	case '.':
		return grid.Tile{Type: grid.Grass}, false, true
	case '@':
		return grid.Tile{Type: grid.Grass}, true, true
	case ',':
		return grid.Tile{Type: grid.Sand}, false, true
	case '=':
		return grid.Tile{Type: grid.Street}, false, true
	case '^':
		return grid.Tile{Type: grid.Hill}, false, true
	case 'M':
		return grid.Tile{Type: grid.Mountain}, false, true
	case '*':
		return grid.Tile{Type: grid.Snow}, false, true
	case '~':
		return grid.Tile{Type: grid.ShallowWater}, false, true
	case 'D':
		return grid.Tile{Type: grid.DeepWater}, false, true
	case 'L':
		return grid.Tile{Type: grid.Lava}, false, true
	case '#':
		return grid.Tile{Type: grid.Wall}, false, true
	case 'T':
		return grid.Tile{Type: grid.Teleport}, false, true
	case 'G':
		return grid.Tile{Type: grid.Grass, Content: grid.Content{Kind: grid.Garbage, Value: l.GarbageValue}}, false, true
	case 'B':
		return grid.Tile{Type: grid.Grass, Content: grid.Content{Kind: grid.Bin}}, false, true
	case 'F':
		return grid.Tile{Type: grid.Grass, Content: grid.Content{Kind: grid.Bin, Value: l.BinCapacity}}, false, true
	case 'R':
		return grid.Tile{Type: grid.Grass, Content: grid.Content{Kind: grid.Rock, Value: 1}}, false, true
	case 'Y':
		return grid.Tile{Type: grid.Grass, Content: grid.Content{Kind: grid.Tree, Value: 1}}, false, true
	case 'C':
		return grid.Tile{Type: grid.Grass, Content: grid.Content{Kind: grid.Coin, Value: 1}}, false, true
	}
	if c >= '1' && c <= '9' {
		return grid.Tile{Type: grid.Grass, Content: grid.Content{Kind: grid.Garbage, Value: int(c - '0')}}, false, true
	}
	return grid.Tile{}, false, false
}
