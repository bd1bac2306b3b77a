package bot

import (
	"fmt"
	"io"
	"log"
	"math/rand"

	"scrapbot.ai/internal/bot/explore"
	"scrapbot.ai/internal/bot/inventory"
	"scrapbot.ai/internal/bot/locations"
	"scrapbot.ai/internal/bot/pathing"
	"scrapbot.ai/internal/bot/sensing"
	"scrapbot.ai/internal/config"
	"scrapbot.ai/internal/sim/encoding"
	"scrapbot.ai/internal/sim/grid"
)

// Host is the simulation the agent lives in. The agent only reads it and
// drives it through the pathing.Actor primitives.
type Host interface {
	pathing.Actor
	Size() int
	Capacity() int
	KnownMap() grid.KnownMap
	Energy() int
	Score() float64
}

// Agent is the task controller. It is not safe for concurrent use: the host
// calls Tick and HandleEvent from a single goroutine.
type Agent struct {
	cfg  config.Config
	host Host
	log  *log.Logger

	inv      *inventory.Tracker
	garbage  *locations.Cache
	bins     *locations.Cache
	sense    *sensing.Adapter
	exec     *pathing.Executor
	quads    *explore.Quadrants
	frontier explore.Frontier
	rng      *rand.Rand

	tick       uint64
	discovered bool
	stopped    bool
	phase      Phase
	result     Result
	target     *grid.Pos
	lastErr    error

	collected int
	deposited int

	events    []grid.Event
	observers []Observer
}

// New wires an agent to its host. scanner and planner are usually the host
// itself. The host's backpack size overrides cfg.Capacity so the tracker and
// the host never disagree on how much fits.
func New(cfg config.Config, host Host, scanner sensing.Scanner, planner pathing.Planner, logger *log.Logger) (*Agent, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cfg.Normalize()
	if hc := host.Capacity(); hc > 0 && hc != cfg.Capacity {
		logger.Printf("capacity %d replaced by host backpack size %d", cfg.Capacity, hc)
		cfg.Capacity = hc
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}
	variant, ok := explore.ParseVariant(cfg.FrontierVariant)
	if !ok {
		return nil, fmt.Errorf("agent config: unknown frontier_variant %q", cfg.FrontierVariant)
	}

	inv := inventory.New(cfg.Capacity)
	return &Agent{
		cfg:      cfg,
		host:     host,
		log:      logger,
		inv:      inv,
		garbage:  locations.New(),
		bins:     locations.New(),
		sense:    sensing.New(scanner, host, cfg.ScanDiameter, component(logger, "sensing"), grid.Garbage, grid.Bin),
		exec:     pathing.New(host, planner, inv, cfg.MaxStepFailures, component(logger, "pathing")),
		quads:    explore.NewQuadrants(host.Size()),
		frontier: explore.Frontier{Margin: cfg.FrontierMargin, Variant: variant},
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func component(parent *log.Logger, name string) *log.Logger {
	return log.New(parent.Writer(), "["+name+"] ", parent.Flags())
}

// Inventory exposes the tracked backpack.
func (a *Agent) Inventory() *inventory.Tracker { return a.inv }

// KnownGarbage is the garbage cache in its current order.
func (a *Agent) KnownGarbage() []grid.Pos { return a.garbage.Candidates() }

// KnownBins is the bin cache in its current order.
func (a *Agent) KnownBins() []grid.Pos { return a.bins.Candidates() }

func (a *Agent) Quadrants() *explore.Quadrants { return a.quads }

func (a *Agent) Stopped() bool { return a.stopped }

// Subscribe registers o to receive a snapshot after every tick.
func (a *Agent) Subscribe(o Observer) {
	if o != nil {
		a.observers = append(a.observers, o)
	}
}

// HandleEvent acknowledges a host event. Only Terminated changes behaviour.
func (a *Agent) HandleEvent(ev grid.Event) {
	if a.cfg.RecentEvents > 0 {
		a.events = append(a.events, ev)
		if over := len(a.events) - a.cfg.RecentEvents; over > 0 {
			a.events = append(a.events[:0], a.events[over:]...)
		}
	}
	if ev.Kind == grid.EventTerminated && !a.stopped {
		a.log.Printf("host terminated the run at tick %d", a.tick)
		a.stopped = true
		a.phase = PhaseStopped
	}
}

// WorkDone reports that the map is mostly explored and nothing is left to
// collect or carry.
func (a *Agent) WorkDone() bool {
	if a.garbage.Len() > 0 || a.inv.Used() > 0 {
		return false
	}
	return a.host.KnownMap().Unexplored() < a.cfg.WorkDoneUnexplored
}

func (a *Agent) shouldStop() bool {
	switch a.cfg.StopPolicy {
	case config.StopAllQuadrants:
		return a.quads.AllVisited()
	case config.StopWorkDone:
		return a.WorkDone()
	}
	return false
}

// Discover runs a wide scan and seeds both location caches.
func (a *Agent) Discover() error {
	a.discovered = true
	if err := a.sense.Refresh(a.host.Size()); err != nil {
		a.log.Printf("discovery: %v", err)
		return err
	}
	a.garbage.Merge(a.sense.Discovered(grid.Garbage))
	a.bins.Merge(a.sense.Discovered(grid.Bin))
	return nil
}

// Tick runs one routine. Errors never escape: they are logged, reported and
// the next tick starts fresh.
func (a *Agent) Tick() TickReport {
	a.tick++
	a.target = nil
	rep := TickReport{Tick: a.tick}

	if !a.stopped && a.shouldStop() {
		a.log.Printf("stop policy %s reached at tick %d", a.cfg.StopPolicy, a.tick)
		a.stopped = true
		a.phase = PhaseStopped
	}
	if a.stopped {
		rep.Stopped = true
		a.lastErr = nil
		a.emit()
		return rep
	}

	if !a.discovered {
		_ = a.Discover()
	}

	err := a.routine(&rep)
	ended := a.phase
	if err == nil && a.cfg.FrontierChance > 0 && a.rng.Float64() < a.cfg.FrontierChance {
		p, ferr := a.Frontier()
		rep.Excursion = &p
		rep.Phases = append(rep.Phases, PhaseFrontier)
		err = ferr
	}
	if err != nil {
		a.log.Printf("tick %d aborted in %s: %v", a.tick, a.phase, err)
	}
	// The excursion is reported separately; Phase stays the routine's.
	a.phase = ended
	rep.Phase = ended
	rep.Result = a.result
	rep.Target = a.target
	rep.Err = err
	a.lastErr = err
	a.emit()
	return rep
}

func (a *Agent) routine(rep *TickReport) error {
	if a.inv.RemainingCapacity() >= a.cfg.CollectThresholdItems() {
		res, err := a.CollectPhase()
		rep.Phases = append(rep.Phases, PhaseCollect)
		if err != nil {
			return err
		}
		switch res {
		case NewResourcesNotFound, NoChanges:
			return a.fallback(rep)
		case FilledBackpack, Success:
		default:
			return nil
		}
	}

	res, err := a.DepositPhase()
	rep.Phases = append(rep.Phases, PhaseDeposit)
	if err != nil {
		return err
	}
	if res == NewResourcesNotFound || res == NoChanges {
		return a.fallback(rep)
	}
	return nil
}

func (a *Agent) fallback(rep *TickReport) error {
	var (
		p   grid.Pos
		err error
	)
	if a.cfg.ExploreMode == config.ExploreFrontier {
		p, err = a.Frontier()
		rep.Phases = append(rep.Phases, PhaseFrontier)
	} else {
		p, err = a.Wander()
		rep.Phases = append(rep.Phases, PhaseWander)
	}
	a.target = &p
	return err
}

func (a *Agent) emit() {
	if len(a.observers) == 0 {
		return
	}
	s := a.Snapshot()
	for _, o := range a.observers {
		o.Observe(s)
	}
}

// Snapshot captures the agent state. Every field is a copy.
func (a *Agent) Snapshot() Snapshot {
	s := Snapshot{
		Tick:         a.tick,
		Pos:          a.host.Position(),
		Energy:       a.host.Energy(),
		Score:        a.host.Score(),
		Capacity:     a.inv.Capacity(),
		Inventory:    a.inv.Contents(),
		Phase:        a.phase.String(),
		Result:       a.result.String(),
		KnownGarbage: a.garbage.Len(),
		KnownBins:    a.bins.Len(),
		Explored:     1 - a.host.KnownMap().Unexplored(),
		Quadrants:    a.quads.VisitedMap(),
		KnownMap:     encoding.EncodeKnownMap(a.host.KnownMap()),
		Collected:    a.collected,
		Deposited:    a.deposited,
		Stopped:      a.stopped,
	}
	if a.target != nil {
		t := *a.target
		s.Target = &t
	}
	if len(a.events) > 0 {
		s.Events = append([]grid.Event(nil), a.events...)
	}
	if a.lastErr != nil {
		s.Error = a.lastErr.Error()
	}
	return s
}
