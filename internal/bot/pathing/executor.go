package pathing

import (
	"errors"
	"fmt"
	"io"
	"log"

	"scrapbot.ai/internal/bot/inventory"
	"scrapbot.ai/internal/sim/grid"
)

var (
	// ErrCannotWalk is returned for an empty route: the caller asked to walk to
	// where it already stands.
	ErrCannotWalk = errors.New("cannot walk an empty route")
	// ErrStalled is returned when swallowed step failures stop all progress.
	ErrStalled = errors.New("route stalled")
)

// PlanError means the destination is not reachable on the known map.
type PlanError struct {
	Dest grid.Pos
	Err  error
}

func (e *PlanError) Error() string { return fmt.Sprintf("plan to %v: %v", e.Dest, e.Err) }
func (e *PlanError) Unwrap() error { return e.Err }

// ActionError is a host refusal that ends the invocation.
type ActionError struct {
	Op  string
	At  grid.Pos
	Err error
}

func (e *ActionError) Error() string { return fmt.Sprintf("%s at %v: %v", e.Op, e.At, e.Err) }
func (e *ActionError) Unwrap() error { return e.Err }

// Planner computes a route over the agent's known map.
type Planner interface {
	Plan(dest grid.Pos) (Route, error)
}

// Actor is the slice of the host the executor drives.
type Actor interface {
	Position() grid.Pos
	Go(d grid.Direction) error
	Teleport(p grid.Pos) error
	Recharge()
	Collect(d grid.Direction) (int, error)
	Deposit(kind grid.ContentKind, qty int, d grid.Direction) (int, error)
}

// Ending is performed once the walk completes.
type Ending uint8

const (
	EndWalk Ending = iota
	EndCollect
	EndDeposit
)

func (e Ending) String() string {
	switch e {
	case EndCollect:
		return "COLLECT"
	case EndDeposit:
		return "DEPOSIT"
	}
	return "WALK"
}

type OutcomeKind uint8

const (
	Walked OutcomeKind = iota
	Collected
	Deposited
	NothingToDeposit
	BinFull
)

func (k OutcomeKind) String() string {
	switch k {
	case Collected:
		return "COLLECTED"
	case Deposited:
		return "DEPOSITED"
	case NothingToDeposit:
		return "NOTHING_TO_DEPOSIT"
	case BinFull:
		return "BIN_FULL"
	}
	return "WALKED"
}

// Outcome is the tagged result of Execute. Quantity is meaningful for
// Collected (possibly 0) and Deposited (always > 0), and is what the tracker
// recorded.
type Outcome struct {
	Kind     OutcomeKind
	Quantity int
}

type Executor struct {
	actor       Actor
	planner     Planner
	inv         *inventory.Tracker
	log         *log.Logger
	maxFailures int

	pending []Action
}

// New builds an executor. maxFailures bounds consecutive swallowed step
// failures; values < 1 default to 3.
func New(actor Actor, planner Planner, inv *inventory.Tracker, maxFailures int, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if maxFailures < 1 {
		maxFailures = 3
	}
	return &Executor{
		actor:       actor,
		planner:     planner,
		inv:         inv,
		log:         logger,
		maxFailures: maxFailures,
	}
}

// Pending is the number of queued steps; zero between invocations.
func (e *Executor) Pending() int { return len(e.pending) }

func (e *Executor) PlanTo(dest grid.Pos) (Route, error) {
	r, err := e.planner.Plan(dest)
	if err != nil {
		var pe *PlanError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &PlanError{Dest: dest, Err: err}
	}
	return r, nil
}

// Reachable reports whether the planner yields a non-empty route to dest.
func (e *Executor) Reachable(dest grid.Pos) bool {
	r, err := e.planner.Plan(dest)
	return err == nil && len(r) > 0
}

// Execute walks r and then performs end facing the route's approach
// direction. Collect and deposit stop next to the destination; EndWalk steps
// onto it. Individual step failures are logged and skipped.
func (e *Executor) Execute(r Route, end Ending) (Outcome, error) {
	if len(r) == 0 {
		return Outcome{}, ErrCannotWalk
	}
	facing := r.Approach()
	e.pending = append(e.pending[:0], r.Walk()...)
	if end == EndWalk {
		// Plain walks enter the destination.
		e.pending = append(e.pending, r[0])
	}
	steps := len(e.pending)
	defer func() { e.pending = e.pending[:0] }()

	start := e.actor.Position()
	e.actor.Recharge()

	moved := 0
	streak := 0
	for len(e.pending) > 0 {
		a := e.pending[0]
		e.pending = e.pending[1:]
		if len(e.pending) == 0 {
			e.actor.Recharge()
		}
		if err := e.step(a); err != nil {
			streak++
			e.log.Printf("step %v from %v failed (%d in a row): %v", a, e.actor.Position(), streak, err)
			if streak >= e.maxFailures {
				return Outcome{}, &ActionError{Op: "walk", At: e.actor.Position(), Err: ErrStalled}
			}
			continue
		}
		streak = 0
		moved++
	}
	if steps > 0 && moved == 0 && e.actor.Position() == start {
		return Outcome{}, &ActionError{Op: "walk", At: start, Err: ErrStalled}
	}

	switch end {
	case EndCollect:
		e.actor.Recharge()
		n, err := e.actor.Collect(facing)
		if err != nil {
			return Outcome{}, &ActionError{Op: "collect", At: e.actor.Position(), Err: err}
		}
		before := e.inv.QuantityOf(grid.Garbage)
		if err := e.inv.Add(grid.Garbage, n); err != nil {
			e.log.Printf("collect: %v", err)
		}
		return Outcome{Kind: Collected, Quantity: e.inv.QuantityOf(grid.Garbage) - before}, nil

	case EndDeposit:
		held := e.inv.QuantityOf(grid.Garbage)
		if held == 0 {
			return Outcome{Kind: NothingToDeposit}, nil
		}
		e.actor.Recharge()
		n, err := e.actor.Deposit(grid.Garbage, held, facing)
		if err != nil {
			return Outcome{}, &ActionError{Op: "deposit", At: e.actor.Position(), Err: err}
		}
		if n == 0 {
			return Outcome{Kind: BinFull}, nil
		}
		return Outcome{Kind: Deposited, Quantity: e.inv.Remove(grid.Garbage, n)}, nil
	}
	return Outcome{Kind: Walked}, nil
}

func (e *Executor) step(a Action) error {
	if a.Kind == Teleport {
		return e.actor.Teleport(a.To)
	}
	return e.actor.Go(a.Direction())
}
