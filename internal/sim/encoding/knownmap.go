package encoding

import (
	"fmt"
	"strings"

	"scrapbot.ai/internal/sim/grid"
)

// KnownMapEncoding names the cell layout used by EncodeKnownMap: row-major
// cell ids, 0 for undiscovered, else 1 + type*8 + content kind.
const KnownMapEncoding = "RLE_U16_ROWMAJOR"

func cellID(t *grid.Tile) uint16 {
	if t == nil {
		return 0
	}
	return 1 + uint16(t.Type)*8 + uint16(t.Content.Kind&7)
}

func cellTile(id uint16) *grid.Tile {
	if id == 0 {
		return nil
	}
	id--
	return &grid.Tile{Type: grid.TileType(id / 8), Content: grid.Content{Kind: grid.ContentKind(id % 8)}}
}

// EncodeKnownMap packs the discovered terrain and content kinds of m.
// Content values are not kept.
func EncodeKnownMap(m grid.KnownMap) string {
	n := m.Size()
	ids := make([]uint16, 0, n*n)
	for _, row := range m {
		for _, t := range row {
			ids = append(ids, cellID(t))
		}
	}
	return EncodeRLE(ids)
}

func DecodeKnownMap(size int, data string) (grid.KnownMap, error) {
	ids, err := DecodeRLE(data)
	if err != nil {
		return nil, err
	}
	if len(ids) != size*size {
		return nil, fmt.Errorf("known map: %d cells for size %d", len(ids), size)
	}
	m := make(grid.KnownMap, size)
	for r := range m {
		m[r] = make([]*grid.Tile, size)
		for c := range m[r] {
			m[r][c] = cellTile(ids[r*size+c])
		}
	}
	return m, nil
}

var terrainGlyphs = map[grid.TileType]byte{
	grid.Grass:        '.',
	grid.Sand:         ',',
	grid.Street:       '=',
	grid.Hill:         '^',
	grid.Mountain:     'M',
	grid.Snow:         '*',
	grid.ShallowWater: '~',
	grid.DeepWater:    'D',
	grid.Lava:         'L',
	grid.Wall:         '#',
	grid.Teleport:     'T',
}

var contentGlyphs = map[grid.ContentKind]byte{
	grid.Garbage: 'G',
	grid.Bin:     'B',
	grid.Rock:    'R',
	grid.Tree:    'Y',
	grid.Coin:    'C',
}

// Render draws m in the map file alphabet with '@' at robot and ' ' for
// undiscovered cells.
func Render(m grid.KnownMap, robot grid.Pos) []string {
	out := make([]string, len(m))
	for r, row := range m {
		var b strings.Builder
		for c, t := range row {
			switch {
			case robot.Row == r && robot.Col == c:
				b.WriteByte('@')
			case t == nil:
				b.WriteByte(' ')
			default:
				if g, ok := contentGlyphs[t.Content.Kind]; ok {
					b.WriteByte(g)
				} else if g, ok := terrainGlyphs[t.Type]; ok {
					b.WriteByte(g)
				} else {
					b.WriteByte('?')
				}
			}
		}
		out[r] = b.String()
	}
	return out
}
