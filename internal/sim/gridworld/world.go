package gridworld

import (
	"errors"
	"fmt"
	"io"
	"log"

	"scrapbot.ai/internal/sim/grid"
)

var (
	ErrNotEnoughEnergy = errors.New("not enough energy")
	ErrOutOfBounds     = errors.New("out of bounds")
	ErrBlocked         = errors.New("tile is not walkable")
	ErrNoTeleport      = errors.New("teleport needs a teleport tile at both ends")
	ErrTerminated      = errors.New("world terminated")
)

// World is a fixed map hosting a single robot. It implements every
// collaborator the agent consumes: actor, scanner, planner and known map.
type World struct {
	log *log.Logger

	name        string
	size        int
	tiles       [][]grid.Tile
	known       grid.KnownMap
	costs       Costs
	maxEnergy   int
	binCapacity int

	pos        grid.Pos
	energy     int
	backpack   map[grid.ContentKind]int
	backpackSz int
	score      float64
	terminated bool

	onEvent func(grid.Event)
}

func New(l Layout, logger *log.Logger) (*World, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	l.normalize()
	if err := l.validate(); err != nil {
		return nil, err
	}
	n := len(l.Rows)
	w := &World{
		log:         logger,
		name:        l.Name,
		size:        n,
		tiles:       make([][]grid.Tile, n),
		known:       make(grid.KnownMap, n),
		costs:       l.Costs,
		maxEnergy:   l.MaxEnergy,
		binCapacity: l.BinCapacity,
		energy:      l.MaxEnergy,
		backpack:    map[grid.ContentKind]int{},
		backpackSz:  l.Backpack,
	}
	for r, row := range l.Rows {
		w.tiles[r] = make([]grid.Tile, n)
		w.known[r] = make([]*grid.Tile, n)
		for c, ch := range row {
			t, start, _ := decodeCell(ch, l)
			w.tiles[r][c] = t
			if start {
				w.pos = grid.Pos{Row: r, Col: c}
			}
		}
	}
	w.reveal(w.pos, 1)
	return w, nil
}

// LoadWorld builds a world from a layout file.
func LoadWorld(path string, logger *log.Logger) (*World, error) {
	l, err := LoadLayout(path)
	if err != nil {
		return nil, err
	}
	return New(l, logger)
}

func (w *World) Name() string            { return w.name }
func (w *World) Size() int               { return w.size }
func (w *World) Position() grid.Pos      { return w.pos }
func (w *World) Energy() int             { return w.energy }
func (w *World) Score() float64          { return w.score }
func (w *World) KnownMap() grid.KnownMap { return w.known }

// OnEvent installs the event callback. Events are delivered synchronously.
func (w *World) OnEvent(fn func(grid.Event)) { w.onEvent = fn }

// Start announces the robot to the event callback.
func (w *World) Start() {
	p := w.pos
	w.emit(grid.Event{Kind: grid.EventReady, Pos: &p})
}

// Terminate ends the run; every later action fails.
func (w *World) Terminate() {
	if w.terminated {
		return
	}
	w.terminated = true
	w.log.Printf("terminated at %v energy=%d score=%v", w.pos, w.energy, w.score)
	w.emit(grid.Event{Kind: grid.EventTerminated})
}

// Tile returns the true tile at p, for tests and tooling.
func (w *World) Tile(p grid.Pos) (grid.Tile, bool) {
	if !p.In(w.size) {
		return grid.Tile{}, false
	}
	return w.tiles[p.Row][p.Col], true
}

// Backpack returns how much of kind the robot carries.
func (w *World) Backpack(kind grid.ContentKind) int { return w.backpack[kind] }

// Capacity is the backpack size.
func (w *World) Capacity() int { return w.backpackSz }

// Recharge refills energy.
func (w *World) Recharge() {
	w.energy = w.maxEnergy
	w.emit(grid.Event{Kind: grid.EventEnergyRecharged, Quantity: w.energy})
}

func (w *World) Go(d grid.Direction) error {
	if w.terminated {
		return ErrTerminated
	}
	next := w.pos.Step(d)
	if !next.In(w.size) {
		return fmt.Errorf("go %s from %v: %w", d, w.pos, ErrOutOfBounds)
	}
	w.discover(next)
	if !w.tiles[next.Row][next.Col].Walkable() {
		return fmt.Errorf("go %s from %v: %w", d, w.pos, ErrBlocked)
	}
	if err := w.consume(w.costs.Move); err != nil {
		return err
	}
	w.moveTo(next)
	return nil
}

func (w *World) Teleport(p grid.Pos) error {
	if w.terminated {
		return ErrTerminated
	}
	if !p.In(w.size) {
		return fmt.Errorf("teleport to %v: %w", p, ErrOutOfBounds)
	}
	if w.tiles[w.pos.Row][w.pos.Col].Type != grid.Teleport || w.tiles[p.Row][p.Col].Type != grid.Teleport {
		return fmt.Errorf("teleport %v -> %v: %w", w.pos, p, ErrNoTeleport)
	}
	if err := w.consume(w.costs.Teleport); err != nil {
		return err
	}
	w.moveTo(p)
	return nil
}

// Collect picks up garbage from the neighbouring cell in direction d.
// Anything that is not garbage yields 0 without charging energy.
func (w *World) Collect(d grid.Direction) (int, error) {
	if w.terminated {
		return 0, ErrTerminated
	}
	p := w.pos.Step(d)
	if !p.In(w.size) {
		return 0, fmt.Errorf("collect %s: %w", d, ErrOutOfBounds)
	}
	w.discover(p)
	t := &w.tiles[p.Row][p.Col]
	if t.Content.Kind != grid.Garbage {
		return 0, nil
	}
	free := w.backpackSz - w.carried()
	if free <= 0 {
		return 0, nil
	}
	if err := w.consume(w.costs.Collect); err != nil {
		return 0, err
	}
	n := t.Content.Value
	if n > free {
		n = free
	}
	t.Content.Value -= n
	if t.Content.Value <= 0 {
		t.Content = grid.Content{}
	}
	w.backpack[grid.Garbage] += n
	w.sync(p)
	w.emit(grid.Event{Kind: grid.EventAddedToBackpack, Content: &grid.Content{Kind: grid.Garbage}, Quantity: n})
	w.emitContent(p)
	return n, nil
}

// Deposit drops up to qty of kind into the bin in direction d and returns
// the accepted amount. A full bin or a non-bin accepts 0.
func (w *World) Deposit(kind grid.ContentKind, qty int, d grid.Direction) (int, error) {
	if w.terminated {
		return 0, ErrTerminated
	}
	p := w.pos.Step(d)
	if !p.In(w.size) {
		return 0, fmt.Errorf("deposit %s: %w", d, ErrOutOfBounds)
	}
	w.discover(p)
	t := &w.tiles[p.Row][p.Col]
	if t.Content.Kind != grid.Bin || kind != grid.Garbage {
		return 0, nil
	}
	if held := w.backpack[kind]; qty > held {
		qty = held
	}
	if space := w.binCapacity - t.Content.Value; qty > space {
		qty = space
	}
	if qty <= 0 {
		return 0, nil
	}
	if err := w.consume(w.costs.Deposit); err != nil {
		return 0, err
	}
	t.Content.Value += qty
	w.backpack[kind] -= qty
	w.score += float64(qty)
	w.sync(p)
	w.emit(grid.Event{Kind: grid.EventRemovedFromBackpack, Content: &grid.Content{Kind: kind}, Quantity: qty})
	w.emitContent(p)
	return qty, nil
}

func (w *World) consume(cost int) error {
	if cost <= 0 {
		return nil
	}
	if w.energy < cost {
		return fmt.Errorf("%w: need %d have %d", ErrNotEnoughEnergy, cost, w.energy)
	}
	w.energy -= cost
	w.emit(grid.Event{Kind: grid.EventEnergyConsumed, Quantity: cost})
	return nil
}

func (w *World) moveTo(p grid.Pos) {
	w.pos = p
	w.reveal(p, 1)
	np := p
	w.emit(grid.Event{Kind: grid.EventMoved, Pos: &np})
}

func (w *World) carried() int {
	n := 0
	for _, q := range w.backpack {
		n += q
	}
	return n
}

// reveal adds the square of the given radius around p to the known map.
func (w *World) reveal(p grid.Pos, radius int) {
	for r := p.Row - radius; r <= p.Row+radius; r++ {
		for c := p.Col - radius; c <= p.Col+radius; c++ {
			w.discover(grid.Pos{Row: r, Col: c})
		}
	}
}

func (w *World) discover(p grid.Pos) {
	if !p.In(w.size) {
		return
	}
	t := w.tiles[p.Row][p.Col]
	w.known[p.Row][p.Col] = &t
}

// sync refreshes a known cell after its true content changed.
func (w *World) sync(p grid.Pos) {
	if w.known.Known(p) {
		w.discover(p)
	}
}

func (w *World) emitContent(p grid.Pos) {
	c := w.tiles[p.Row][p.Col].Content
	pp := p
	w.emit(grid.Event{Kind: grid.EventTileContentUpdated, Pos: &pp, Content: &c})
}

func (w *World) emit(ev grid.Event) {
	if w.onEvent != nil {
		w.onEvent(ev)
	}
}
