package encoding

import (
	"testing"

	"scrapbot.ai/internal/sim/grid"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint16, 0, 200)
	in = append(in, 0, 0, 0, 1, 1, 300)
	for i := 0; i < 50; i++ {
		in = append(in, 9)
	}
	in = append(in, 0, 65535, 65535)

	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
	if got := EncodeRLE(nil); got != "" {
		t.Fatalf("empty input encoded to %q", got)
	}
}

func TestRLE_Corrupt(t *testing.T) {
	for _, in := range []string{"not base64!", "gA==" /* lone continuation byte */, "AQ==" /* id without run */} {
		if _, err := DecodeRLE(in); err == nil {
			t.Fatalf("DecodeRLE(%q) should fail", in)
		}
	}
}

func TestKnownMap_RoundTripAndRender(t *testing.T) {
	m := make(grid.KnownMap, 3)
	for r := range m {
		m[r] = make([]*grid.Tile, 3)
	}
	m[0][0] = &grid.Tile{Type: grid.Grass}
	m[0][1] = &grid.Tile{Type: grid.Grass, Content: grid.Content{Kind: grid.Garbage, Value: 4}}
	m[1][1] = &grid.Tile{Type: grid.Wall}
	m[2][2] = &grid.Tile{Type: grid.Teleport}
	m[2][0] = &grid.Tile{Type: grid.Sand, Content: grid.Content{Kind: grid.Bin}}

	enc := EncodeKnownMap(m)
	got, err := DecodeKnownMap(3, enc)
	if err != nil {
		t.Fatalf("DecodeKnownMap: %v", err)
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want, have := m[r][c], got[r][c]
			if (want == nil) != (have == nil) {
				t.Fatalf("(%d,%d) known mismatch", r, c)
			}
			if want != nil && (want.Type != have.Type || want.Content.Kind != have.Content.Kind) {
				t.Fatalf("(%d,%d) got %+v want %+v", r, c, *have, *want)
			}
		}
	}

	rows := Render(got, grid.Pos{Row: 1, Col: 0})
	want := []string{".G ", "@# ", "B T"}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d: got %q want %q", i, rows[i], want[i])
		}
	}

	if _, err := DecodeKnownMap(4, enc); err == nil {
		t.Fatalf("expected a size mismatch error")
	}
}
