package grid

import (
	"encoding/json"
	"testing"
)

func TestManhattan(t *testing.T) {
	cases := []struct {
		a, b Pos
		want int
	}{
		{Pos{0, 0}, Pos{0, 0}, 0},
		{Pos{0, 0}, Pos{3, 4}, 7},
		{Pos{5, 2}, Pos{1, 9}, 11},
	}
	for _, c := range cases {
		if got := Manhattan(c.a, c.b); got != c.want {
			t.Fatalf("Manhattan(%v,%v)=%d want %d", c.a, c.b, got, c.want)
		}
		if got := Manhattan(c.b, c.a); got != c.want {
			t.Fatalf("Manhattan not symmetric for %v,%v", c.a, c.b)
		}
	}
}

func TestBorderDistance(t *testing.T) {
	if got := BorderDistance(Pos{0, 0}, 70); got != 0 {
		t.Fatalf("corner: got %d", got)
	}
	if got := BorderDistance(Pos{10, 30}, 70); got != 10 {
		t.Fatalf("top band: got %d", got)
	}
	if got := BorderDistance(Pos{35, 66}, 70); got != 3 {
		t.Fatalf("right band: got %d", got)
	}
}

func TestStepAndToward(t *testing.T) {
	p := Pos{Row: 4, Col: 4}
	for _, d := range Directions {
		n := p.Step(d)
		got, ok := Toward(p, n)
		if !ok || got != d {
			t.Fatalf("Toward(%v,%v)=%v,%v want %v", p, n, got, ok, d)
		}
	}
	if _, ok := Toward(p, Pos{Row: 6, Col: 4}); ok {
		t.Fatalf("two cells apart must not be a single step")
	}
}

func TestKnownMapUnexplored(t *testing.T) {
	m := KnownMap{
		{&Tile{}, nil},
		{nil, nil},
	}
	if got := m.Unexplored(); got != 0.75 {
		t.Fatalf("Unexplored=%v", got)
	}
	if !m.Known(Pos{0, 0}) || m.Known(Pos{1, 1}) || m.Known(Pos{5, 5}) {
		t.Fatalf("Known mismatch")
	}
}

func TestWalkable(t *testing.T) {
	if (Tile{Type: Lava}).Walkable() {
		t.Fatalf("lava is not walkable")
	}
	if (Tile{Content: Content{Kind: Bin}}).Walkable() {
		t.Fatalf("bins occupy their tile")
	}
	if !(Tile{Content: Content{Kind: Garbage, Value: 3}}).Walkable() {
		t.Fatalf("garbage can be stepped over")
	}
	if k, ok := ParseContentKind("BIN"); !ok || k != Bin {
		t.Fatalf("ParseContentKind(BIN)=%v,%v", k, ok)
	}
}

func TestEventJSON(t *testing.T) {
	p := Pos{Row: 2, Col: 3}
	ev := Event{Kind: EventAddedToBackpack, Pos: &p, Content: &Content{Kind: Garbage}, Quantity: 4}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"kind":"ADDED_TO_BACKPACK","pos":{"row":2,"col":3},"content":{"kind":"GARBAGE"},"quantity":4}`
	if string(b) != want {
		t.Fatalf("got %s\nwant %s", b, want)
	}
	var back Event
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Kind != EventAddedToBackpack || *back.Pos != p || back.Content.Kind != Garbage {
		t.Fatalf("back=%+v", back)
	}
	if err := json.Unmarshal([]byte(`{"kind":"NAP"}`), &back); err == nil {
		t.Fatalf("unknown kind accepted")
	}
}
