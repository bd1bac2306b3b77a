package pathing

import (
	"errors"
	"testing"

	"scrapbot.ai/internal/bot/inventory"
	"scrapbot.ai/internal/sim/grid"
)

var errBlocked = errors.New("blocked")

type fakeActor struct {
	pos       grid.Pos
	blocked   map[grid.Pos]bool
	recharges int

	collectQty  int
	collectDir  []grid.Direction
	depositCap  int
	depositDir  []grid.Direction
	depositErr  error
	depositSeen []int
}

func (f *fakeActor) Position() grid.Pos { return f.pos }
func (f *fakeActor) Recharge()          { f.recharges++ }

func (f *fakeActor) Go(d grid.Direction) error {
	n := f.pos.Step(d)
	if f.blocked[n] {
		return errBlocked
	}
	f.pos = n
	return nil
}

func (f *fakeActor) Teleport(p grid.Pos) error {
	f.pos = p
	return nil
}

func (f *fakeActor) Collect(d grid.Direction) (int, error) {
	f.collectDir = append(f.collectDir, d)
	return f.collectQty, nil
}

func (f *fakeActor) Deposit(_ grid.ContentKind, qty int, d grid.Direction) (int, error) {
	f.depositDir = append(f.depositDir, d)
	f.depositSeen = append(f.depositSeen, qty)
	if f.depositErr != nil {
		return 0, f.depositErr
	}
	if qty > f.depositCap {
		return f.depositCap, nil
	}
	return qty, nil
}

type fakePlanner struct {
	routes map[grid.Pos]Route
}

func (p fakePlanner) Plan(dest grid.Pos) (Route, error) {
	r, ok := p.routes[dest]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return r, nil
}

// Route to (0,3) from (0,0): walk E,E then approach E.
func eastRoute() Route {
	return NewRoute([]Action{{Kind: East}, {Kind: East}, {Kind: East}})
}

func TestNewRoute_ApproachFirst(t *testing.T) {
	r := NewRoute([]Action{{Kind: North}, {Kind: East}, {Kind: South}})
	if r[0].Kind != South || r.Approach() != grid.Down {
		t.Fatalf("approach should be the last step: %v", r)
	}
	if w := r.Walk(); len(w) != 2 || w[0].Kind != North || w[1].Kind != East {
		t.Fatalf("walk order mismatch: %v", w)
	}
	if len(NewRoute(nil)) != 0 {
		t.Fatalf("empty steps should give an empty route")
	}
}

func TestExecute_EmptyRouteIsError(t *testing.T) {
	a := &fakeActor{}
	e := New(a, fakePlanner{}, inventory.New(20), 3, nil)
	if _, err := e.Execute(Route{}, EndWalk); !errors.Is(err, ErrCannotWalk) {
		t.Fatalf("expected ErrCannotWalk, got %v", err)
	}
}

func TestExecute_CollectFacesApproach(t *testing.T) {
	a := &fakeActor{collectQty: 4}
	inv := inventory.New(20)
	e := New(a, fakePlanner{}, inv, 3, nil)

	out, err := e.Execute(eastRoute(), EndCollect)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if a.pos != (grid.Pos{Row: 0, Col: 2}) {
		t.Fatalf("should stop next to the target, at %v", a.pos)
	}
	if len(a.collectDir) != 1 || a.collectDir[0] != grid.Right {
		t.Fatalf("collect direction: %v", a.collectDir)
	}
	if out.Kind != Collected || out.Quantity != 4 || inv.QuantityOf(grid.Garbage) != 4 {
		t.Fatalf("outcome=%+v held=%d", out, inv.QuantityOf(grid.Garbage))
	}
	if a.recharges < 2 {
		t.Fatalf("expected recharges before walking and before the terminal step, got %d", a.recharges)
	}
	if e.Pending() != 0 {
		t.Fatalf("pending should be drained, got %d", e.Pending())
	}
}

func TestExecute_CollectReportsTrackedAmount(t *testing.T) {
	a := &fakeActor{collectQty: 9}
	inv := inventory.New(5)
	e := New(a, fakePlanner{}, inv, 3, nil)

	out, err := e.Execute(eastRoute(), EndCollect)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Quantity != 5 || inv.QuantityOf(grid.Garbage) != 5 {
		t.Fatalf("outcome=%+v held=%d", out, inv.QuantityOf(grid.Garbage))
	}
}

func TestExecute_SwallowsSingleFailure(t *testing.T) {
	a := &fakeActor{blocked: map[grid.Pos]bool{{Row: 0, Col: 1}: true}}
	e := New(a, fakePlanner{}, inventory.New(20), 3, nil)
	r := NewRoute([]Action{{Kind: East}, {Kind: South}, {Kind: East}})

	out, err := e.Execute(r, EndWalk)
	if err != nil {
		t.Fatalf("a single failed step must be skipped: %v", err)
	}
	if out.Kind != Walked {
		t.Fatalf("outcome=%+v", out)
	}
	if a.pos != (grid.Pos{Row: 1, Col: 1}) {
		t.Fatalf("walk should skip the blocked step and enter the destination, at %v", a.pos)
	}
}

func TestExecute_StallEscalates(t *testing.T) {
	a := &fakeActor{blocked: map[grid.Pos]bool{{Row: 0, Col: 1}: true}}
	e := New(a, fakePlanner{}, inventory.New(20), 2, nil)
	r := NewRoute([]Action{{Kind: East}, {Kind: East}, {Kind: East}, {Kind: East}})

	_, err := e.Execute(r, EndCollect)
	var ae *ActionError
	if !errors.As(err, &ae) || !errors.Is(err, ErrStalled) {
		t.Fatalf("expected ActionError(ErrStalled), got %v", err)
	}
	if len(a.collectDir) != 0 {
		t.Fatalf("ending action must not run after a stall")
	}
	if e.Pending() != 0 {
		t.Fatalf("pending should be drained after a stall")
	}
}

func TestExecute_NoProgressEscalates(t *testing.T) {
	a := &fakeActor{blocked: map[grid.Pos]bool{{Row: 0, Col: 1}: true}}
	e := New(a, fakePlanner{}, inventory.New(20), 5, nil)
	r := NewRoute([]Action{{Kind: East}, {Kind: East}})
	if _, err := e.Execute(r, EndWalk); !errors.Is(err, ErrStalled) {
		t.Fatalf("expected ErrStalled, got %v", err)
	}
}

func TestExecute_DepositOutcomes(t *testing.T) {
	r := Route{{Kind: North}}

	a := &fakeActor{depositCap: 10}
	inv := inventory.New(20)
	e := New(a, fakePlanner{}, inv, 3, nil)
	out, err := e.Execute(r, EndDeposit)
	if err != nil || out.Kind != NothingToDeposit {
		t.Fatalf("empty backpack: out=%+v err=%v", out, err)
	}
	if len(a.depositSeen) != 0 {
		t.Fatalf("host must not be asked to deposit nothing")
	}

	_ = inv.Add(grid.Garbage, 14)
	out, err = e.Execute(r, EndDeposit)
	if err != nil || out.Kind != Deposited || out.Quantity != 10 {
		t.Fatalf("partial deposit: out=%+v err=%v", out, err)
	}
	if inv.QuantityOf(grid.Garbage) != 4 || a.depositDir[0] != grid.Up {
		t.Fatalf("held=%d dir=%v", inv.QuantityOf(grid.Garbage), a.depositDir)
	}

	a.depositCap = 0
	out, err = e.Execute(r, EndDeposit)
	if err != nil || out.Kind != BinFull {
		t.Fatalf("full bin: out=%+v err=%v", out, err)
	}
	if inv.QuantityOf(grid.Garbage) != 4 {
		t.Fatalf("full bin must not change the inventory")
	}

	a.depositErr = errors.New("no energy")
	_, err = e.Execute(r, EndDeposit)
	var ae *ActionError
	if !errors.As(err, &ae) || ae.Op != "deposit" {
		t.Fatalf("expected deposit ActionError, got %v", err)
	}
}

func TestPlanTo_WrapsPlanError(t *testing.T) {
	dest := grid.Pos{Row: 0, Col: 3}
	e := New(&fakeActor{}, fakePlanner{routes: map[grid.Pos]Route{dest: eastRoute()}}, inventory.New(20), 3, nil)
	if r, err := e.PlanTo(dest); err != nil || len(r) != 3 {
		t.Fatalf("PlanTo: %v %v", r, err)
	}
	_, err := e.PlanTo(grid.Pos{Row: 9, Col: 9})
	var pe *PlanError
	if !errors.As(err, &pe) || pe.Dest != (grid.Pos{Row: 9, Col: 9}) {
		t.Fatalf("expected PlanError, got %v", err)
	}
	if !e.Reachable(dest) || e.Reachable(grid.Pos{Row: 9, Col: 9}) {
		t.Fatalf("Reachable mismatch")
	}
}

func TestExecute_WalkEntersDestination(t *testing.T) {
	a := &fakeActor{}
	e := New(a, fakePlanner{}, inventory.New(20), 3, nil)
	out, err := e.Execute(Route{{Kind: South}}, EndWalk)
	if err != nil || out.Kind != Walked {
		t.Fatalf("out=%+v err=%v", out, err)
	}
	if a.pos != (grid.Pos{Row: 1, Col: 0}) {
		t.Fatalf("single-step walk should move, at %v", a.pos)
	}
}
