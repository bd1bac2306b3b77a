package bot

import (
	"errors"

	"scrapbot.ai/internal/bot/locations"
	"scrapbot.ai/internal/bot/pathing"
	"scrapbot.ai/internal/sim/grid"
)

// CollectPhase refreshes garbage knowledge and collects from the known piles
// in distance order until the backpack fills or the candidates run out.
func (a *Agent) CollectPhase() (Result, error) {
	a.phase = PhaseCollect
	a.refresh(a.garbage, grid.Garbage)
	if a.garbage.Len() == 0 {
		return a.finish(NewResourcesNotFound), nil
	}
	a.garbage.SortByDistanceFrom(a.host.Position())

	bad := locations.Set{}
	defer func() { a.garbage.RemoveAll(bad) }()

	total := 0
	for _, target := range a.garbage.Candidates() {
		if a.inv.RemainingCapacity() == 0 {
			return a.finish(FilledBackpack), nil
		}
		out, err := a.goTo(target, pathing.EndCollect)
		if err != nil {
			if isTargetFailure(err) {
				a.log.Printf("collect: skipping %v: %v", target, err)
				bad.Add(target)
				continue
			}
			return a.finish(a.classifyCollect(total)), err
		}
		if out.Quantity == 0 {
			a.log.Printf("collect: nothing left at %v", target)
			bad.Add(target)
			a.sense.Forget(target)
			continue
		}
		total += out.Quantity
		a.collected += out.Quantity
		if !a.stillHolds(target, grid.Garbage) {
			bad.Add(target)
			a.sense.Forget(target)
		}
	}
	return a.finish(a.classifyCollect(total)), nil
}

func (a *Agent) classifyCollect(total int) Result {
	switch {
	case total == 0:
		return NoChanges
	case a.inv.RemainingCapacity() == 0:
		return FilledBackpack
	case a.inv.RemainingCapacity() < a.cfg.GoodEnoughItems():
		return Success
	}
	return PartiallyFilled
}

// DepositPhase empties the backpack into the nearest bin that accepts
// anything. Full bins are skipped for the rest of the call.
func (a *Agent) DepositPhase() (Result, error) {
	a.phase = PhaseDeposit
	if a.inv.QuantityOf(grid.Garbage) == 0 {
		return a.finish(EmptyBackpack), nil
	}
	a.refresh(a.bins, grid.Bin)
	if a.bins.Len() == 0 {
		return a.finish(NewResourcesNotFound), nil
	}
	a.bins.SortByDistanceFrom(a.host.Position())

	bad := locations.Set{}
	defer func() { a.bins.RemoveAll(bad) }()

	for _, target := range a.bins.Candidates() {
		out, err := a.goTo(target, pathing.EndDeposit)
		if err != nil {
			if isTargetFailure(err) {
				a.log.Printf("deposit: skipping %v: %v", target, err)
				bad.Add(target)
				continue
			}
			return a.finish(NoChanges), err
		}
		switch out.Kind {
		case pathing.NothingToDeposit:
			return a.finish(EmptyBackpack), nil
		case pathing.BinFull:
			a.log.Printf("deposit: bin at %v is full", target)
			bad.Add(target)
		case pathing.Deposited:
			a.deposited += out.Quantity
			a.log.Printf("deposit: %d into %v", out.Quantity, target)
			return a.finish(Success), nil
		}
	}
	return a.finish(NoChanges), nil
}

// Wander heads for the centre of the next quadrant clockwise.
func (a *Agent) Wander() (grid.Pos, error) {
	a.phase = PhaseWander
	target := a.quads.Next(a.host.Position())
	if _, err := a.goTo(target, pathing.EndWalk); err != nil {
		return target, err
	}
	if a.cfg.WanderScanDiameter > 0 {
		a.sense.SetRadiusHint(a.cfg.WanderScanDiameter)
	}
	return target, nil
}

// Frontier heads for the closest unexplored area, or the map centre when
// nothing is left to explore.
func (a *Agent) Frontier() (grid.Pos, error) {
	a.phase = PhaseFrontier
	target := a.frontier.Target(a.host.KnownMap(), a.host.Position(), a.exec.Reachable)
	_, err := a.goTo(target, pathing.EndWalk)
	return target, err
}

// goTo plans and walks to target. A plain walk to where the agent already
// stands is an arrival, not an error.
func (a *Agent) goTo(target grid.Pos, end pathing.Ending) (pathing.Outcome, error) {
	if end == pathing.EndWalk && target == a.host.Position() {
		return pathing.Outcome{Kind: pathing.Walked}, nil
	}
	route, err := a.exec.PlanTo(target)
	if err != nil {
		return pathing.Outcome{}, err
	}
	if end == pathing.EndWalk && len(route) == 0 {
		return pathing.Outcome{Kind: pathing.Walked}, nil
	}
	return a.exec.Execute(route, end)
}

// refresh rescans and merges what the adapter knows about kind into c.
// A failed scan keeps the phase going on cached knowledge.
func (a *Agent) refresh(c *locations.Cache, kind grid.ContentKind) {
	if err := a.sense.Refresh(0); err != nil {
		a.log.Printf("%s: %v", a.phase, err)
	}
	if n := c.Merge(a.sense.Discovered(kind)); n > 0 {
		a.log.Printf("%s: %d new %s location(s), %d known", a.phase, n, kind, c.Len())
	}
}

func (a *Agent) stillHolds(p grid.Pos, kind grid.ContentKind) bool {
	t := a.host.KnownMap().At(p)
	return t == nil || t.Content.Kind == kind
}

func (a *Agent) finish(r Result) Result {
	a.result = r
	return r
}

// isTargetFailure reports errors that invalidate one target but not the
// phase: unreachable, already there, or a walk that stalled.
func isTargetFailure(err error) bool {
	var pe *pathing.PlanError
	return errors.As(err, &pe) || errors.Is(err, pathing.ErrCannotWalk) || errors.Is(err, pathing.ErrStalled)
}
