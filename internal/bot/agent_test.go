package bot

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"scrapbot.ai/internal/bot/pathing"
	"scrapbot.ai/internal/config"
	"scrapbot.ai/internal/sim/encoding"
	"scrapbot.ai/internal/sim/grid"
	"scrapbot.ai/internal/sim/gridworld"
)

// drawMap returns an n x n grass layout with the start and the given cells.
func drawMap(n int, start grid.Pos, cells map[grid.Pos]rune) []string {
	rows := make([]string, n)
	for r := 0; r < n; r++ {
		var b strings.Builder
		for c := 0; c < n; c++ {
			p := grid.Pos{Row: r, Col: c}
			switch ch, ok := cells[p]; {
			case p == start:
				b.WriteRune('@')
			case ok:
				b.WriteRune(ch)
			default:
				b.WriteRune('.')
			}
		}
		rows[r] = b.String()
	}
	return rows
}

func newWorld(t *testing.T, rows []string) *gridworld.World {
	t.Helper()
	w, err := gridworld.New(gridworld.Layout{Rows: rows}, nil)
	require.NoError(t, err)
	return w
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.FrontierChance = 0
	cfg.ScanDiameter = 19
	return cfg
}

func newAgent(t *testing.T, cfg config.Config, w *gridworld.World) *Agent {
	t.Helper()
	a, err := New(cfg, w, w, w, nil)
	require.NoError(t, err)
	w.OnEvent(a.HandleEvent)
	return a
}

func TestScenarioA_CollectThenDeposit(t *testing.T) {
	center := grid.Pos{Row: 10, Col: 10}
	w := newWorld(t, drawMap(21, center, map[grid.Pos]rune{
		{Row: 10, Col: 15}: 'G',
		{Row: 10, Col: 2}:  'B',
	}))
	a := newAgent(t, testConfig(), w)

	res, err := a.CollectPhase()
	require.NoError(t, err)
	require.Contains(t, []Result{Success, PartiallyFilled}, res)
	require.Greater(t, a.Inventory().QuantityOf(grid.Garbage), 0)
	require.Equal(t, w.Backpack(grid.Garbage), a.Inventory().QuantityOf(grid.Garbage))
	require.Empty(t, a.KnownGarbage(), "an emptied pile leaves the cache")

	res, err = a.DepositPhase()
	require.NoError(t, err)
	require.Equal(t, Success, res)
	require.Zero(t, a.Inventory().QuantityOf(grid.Garbage))
	require.Equal(t, 5.0, w.Score())

	snap := a.Snapshot()
	require.Equal(t, 5, snap.Collected)
	require.Equal(t, 5, snap.Deposited)
	require.Equal(t, "DEPOSIT", snap.Phase)
	require.Equal(t, "SUCCESS", snap.Result)
}

func TestScenarioB_FallbackPicksDistinctTarget(t *testing.T) {
	start := grid.Pos{Row: 2, Col: 2}
	for _, mode := range []string{config.ExploreQuadrant, config.ExploreFrontier} {
		t.Run(mode, func(t *testing.T) {
			w := newWorld(t, drawMap(16, start, nil))
			cfg := testConfig()
			cfg.ScanDiameter = 0
			cfg.ExploreMode = mode
			a := newAgent(t, cfg, w)

			rep := a.Tick()
			require.NoError(t, rep.Err)
			require.NotNil(t, rep.Target)
			require.NotEqual(t, start, *rep.Target)
			require.Contains(t, rep.Phases, PhaseCollect)
			require.Equal(t, w.Position(), *rep.Target, "walks enter their destination")
			if mode == config.ExploreQuadrant {
				require.Equal(t, PhaseWander, rep.Phase)
				require.Equal(t, grid.Pos{Row: 4, Col: 12}, *rep.Target)
			} else {
				require.Equal(t, PhaseFrontier, rep.Phase)
			}
		})
	}
}

func TestScenarioB_FullBackpackWithoutBins(t *testing.T) {
	start := grid.Pos{Row: 8, Col: 8}
	w := newWorld(t, drawMap(17, start, map[grid.Pos]rune{
		{Row: 8, Col: 9}:  '9',
		{Row: 8, Col: 10}: '9',
		{Row: 8, Col: 11}: '9',
	}))
	a := newAgent(t, testConfig(), w)

	res, err := a.CollectPhase()
	require.NoError(t, err)
	require.Equal(t, FilledBackpack, res)
	require.Zero(t, a.Inventory().RemainingCapacity())

	rep := a.Tick()
	require.NoError(t, rep.Err)
	require.Equal(t, []Phase{PhaseDeposit, PhaseWander}, rep.Phases)
	require.NotNil(t, rep.Target)
	require.NotEqual(t, start, *rep.Target)
}

type countingHost struct {
	*gridworld.World
	deposits map[grid.Pos]int
}

func (h *countingHost) Deposit(kind grid.ContentKind, qty int, d grid.Direction) (int, error) {
	h.deposits[h.Position().Step(d)]++
	return h.World.Deposit(kind, qty, d)
}

func TestScenarioC_FullBinIsBlacklisted(t *testing.T) {
	center := grid.Pos{Row: 10, Col: 10}
	full := grid.Pos{Row: 10, Col: 8}
	good := grid.Pos{Row: 10, Col: 2}
	w := newWorld(t, drawMap(21, center, map[grid.Pos]rune{
		{Row: 10, Col: 12}: 'G',
		full:               'F',
		good:               'B',
	}))
	h := &countingHost{World: w, deposits: map[grid.Pos]int{}}
	a, err := New(testConfig(), h, w, w, nil)
	require.NoError(t, err)

	_, err = a.CollectPhase()
	require.NoError(t, err)

	res, err := a.DepositPhase()
	require.NoError(t, err)
	require.Equal(t, Success, res)
	require.Equal(t, 1, h.deposits[full], "full bin is tried exactly once")
	require.Equal(t, 1, h.deposits[good])
	require.NotContains(t, a.KnownBins(), full)
	require.Contains(t, a.KnownBins(), good)
}

func TestDepositPhase_AllBinsFull(t *testing.T) {
	center := grid.Pos{Row: 10, Col: 10}
	full := grid.Pos{Row: 10, Col: 7}
	w := newWorld(t, drawMap(21, center, map[grid.Pos]rune{
		{Row: 10, Col: 12}: 'G',
		full:               'F',
	}))
	h := &countingHost{World: w, deposits: map[grid.Pos]int{}}
	a, err := New(testConfig(), h, w, w, nil)
	require.NoError(t, err)

	_, err = a.CollectPhase()
	require.NoError(t, err)
	res, err := a.DepositPhase()
	require.NoError(t, err)
	require.Equal(t, NoChanges, res)
	require.Equal(t, 1, h.deposits[full])
	require.Equal(t, 5, a.Inventory().QuantityOf(grid.Garbage))
}

func TestDepositPhase_EmptyBackpack(t *testing.T) {
	w := newWorld(t, drawMap(9, grid.Pos{Row: 4, Col: 4}, map[grid.Pos]rune{{Row: 4, Col: 6}: 'B'}))
	a := newAgent(t, testConfig(), w)
	res, err := a.DepositPhase()
	require.NoError(t, err)
	require.Equal(t, EmptyBackpack, res)
}

func TestCollectPhase_NothingKnown(t *testing.T) {
	w := newWorld(t, drawMap(9, grid.Pos{Row: 4, Col: 4}, nil))
	a := newAgent(t, testConfig(), w)
	res, err := a.CollectPhase()
	require.NoError(t, err)
	require.Equal(t, NewResourcesNotFound, res)
}

type stuckHost struct{ *gridworld.World }

func (stuckHost) Go(grid.Direction) error { return errors.New("wheels stuck") }

func TestCollectPhase_StalledTargetIsBlacklisted(t *testing.T) {
	center := grid.Pos{Row: 10, Col: 10}
	w := newWorld(t, drawMap(21, center, map[grid.Pos]rune{{Row: 10, Col: 15}: 'G'}))
	a, err := New(testConfig(), stuckHost{w}, w, w, nil)
	require.NoError(t, err)

	res, err := a.CollectPhase()
	require.NoError(t, err, "a stalled walk only invalidates the target")
	require.Equal(t, NoChanges, res)
	require.Empty(t, a.KnownGarbage())
	require.Equal(t, center, w.Position())
}

type brokenCollector struct{ *gridworld.World }

func (brokenCollector) Collect(grid.Direction) (int, error) { return 0, errors.New("arm jammed") }

func TestTick_HostErrorAbortsTickOnly(t *testing.T) {
	center := grid.Pos{Row: 10, Col: 10}
	w := newWorld(t, drawMap(21, center, map[grid.Pos]rune{{Row: 10, Col: 12}: 'G'}))
	a, err := New(testConfig(), brokenCollector{w}, w, w, nil)
	require.NoError(t, err)

	rep := a.Tick()
	var ae *pathing.ActionError
	require.ErrorAs(t, rep.Err, &ae)
	require.Equal(t, "collect", ae.Op)
	require.Equal(t, PhaseCollect, rep.Phase)
	require.Contains(t, a.Snapshot().Error, "arm jammed")

	rep = a.Tick()
	require.Equal(t, uint64(2), rep.Tick)
	require.Error(t, rep.Err, "the next tick starts fresh and meets the same fault")
}

func TestTick_StopsAfterAllQuadrants(t *testing.T) {
	w := newWorld(t, drawMap(16, grid.Pos{Row: 2, Col: 2}, nil))
	cfg := testConfig()
	cfg.ScanDiameter = 0
	a := newAgent(t, cfg, w)

	for i := 0; i < 4; i++ {
		rep := a.Tick()
		require.NoError(t, rep.Err, "tick %d", rep.Tick)
		require.False(t, rep.Stopped)
	}
	require.True(t, a.Quadrants().AllVisited())
	rep := a.Tick()
	require.True(t, rep.Stopped)
	require.True(t, a.Stopped())
	require.Equal(t, "STOPPED", a.Snapshot().Phase)
}

func TestTick_NeverPolicyKeepsGoing(t *testing.T) {
	w := newWorld(t, drawMap(16, grid.Pos{Row: 2, Col: 2}, nil))
	cfg := testConfig()
	cfg.ScanDiameter = 0
	cfg.StopPolicy = config.StopNever
	a := newAgent(t, cfg, w)
	for i := 0; i < 6; i++ {
		require.False(t, a.Tick().Stopped)
	}
}

func TestWorkDone(t *testing.T) {
	w := newWorld(t, drawMap(3, grid.Pos{Row: 1, Col: 1}, nil))
	cfg := testConfig()
	cfg.StopPolicy = config.StopWorkDone
	a := newAgent(t, cfg, w)
	require.True(t, a.WorkDone())
	require.True(t, a.Tick().Stopped)

	w = newWorld(t, drawMap(3, grid.Pos{Row: 1, Col: 1}, map[grid.Pos]rune{{Row: 0, Col: 0}: 'G'}))
	a = newAgent(t, cfg, w)
	require.NoError(t, a.Discover())
	require.False(t, a.WorkDone(), "known garbage keeps the agent busy")
}

func TestHandleEvent_TerminatedStops(t *testing.T) {
	w := newWorld(t, drawMap(9, grid.Pos{Row: 4, Col: 4}, nil))
	cfg := testConfig()
	cfg.RecentEvents = 2
	a := newAgent(t, cfg, w)

	w.Start()
	w.Recharge()
	w.Terminate()
	snap := a.Snapshot()
	require.Len(t, snap.Events, 2)
	require.Equal(t, grid.EventTerminated, snap.Events[1].Kind)
	require.True(t, a.Stopped())
	require.True(t, a.Tick().Stopped)
}

func TestSubscribe_SnapshotPerTick(t *testing.T) {
	w := newWorld(t, drawMap(16, grid.Pos{Row: 2, Col: 2}, nil))
	cfg := testConfig()
	cfg.ScanDiameter = 0
	a := newAgent(t, cfg, w)

	var got []Snapshot
	a.Subscribe(ObserverFunc(func(s Snapshot) { got = append(got, s) }))
	a.Tick()
	a.Tick()
	require.Len(t, got, 2)
	require.Equal(t, uint64(1), got[0].Tick)
	require.Equal(t, uint64(2), got[1].Tick)
	require.Equal(t, 20, got[1].Capacity)
	require.Greater(t, got[1].Explored, got[0].Explored)
	require.True(t, got[0].Quadrants[1])

	known, err := encoding.DecodeKnownMap(16, got[1].KnownMap)
	require.NoError(t, err)
	require.True(t, known.Known(got[1].Pos))
	require.InDelta(t, got[1].Explored, 1-known.Unexplored(), 1e-9)
}

func TestTick_FrontierExcursion(t *testing.T) {
	w := newWorld(t, drawMap(16, grid.Pos{Row: 2, Col: 2}, nil))
	cfg := testConfig()
	cfg.ScanDiameter = 0
	cfg.FrontierChance = 1
	a := newAgent(t, cfg, w)

	rep := a.Tick()
	require.NoError(t, rep.Err)
	require.NotNil(t, rep.Excursion)
	require.Equal(t, PhaseFrontier, rep.Phases[len(rep.Phases)-1])
	require.Equal(t, PhaseWander, rep.Phase, "the excursion does not hide where the routine ended")
	require.Equal(t, "WANDER", a.Snapshot().Phase)
}

func TestTick_ExploredMapStandingOnCentre(t *testing.T) {
	centre := grid.Pos{Row: 1, Col: 1}
	w := newWorld(t, drawMap(3, centre, nil))
	require.Zero(t, w.KnownMap().Unexplored())
	cfg := testConfig()
	cfg.ScanDiameter = 3
	cfg.ExploreMode = config.ExploreFrontier
	cfg.StopPolicy = config.StopNever
	a := newAgent(t, cfg, w)

	for i := 0; i < 3; i++ {
		rep := a.Tick()
		require.NoError(t, rep.Err, "tick %d", rep.Tick)
		require.Equal(t, PhaseFrontier, rep.Phase)
		require.NotNil(t, rep.Target)
		require.Equal(t, centre, *rep.Target)
		require.Empty(t, a.Snapshot().Error)
	}
	require.Equal(t, centre, w.Position())
	require.Zero(t, w.KnownMap().Unexplored())
}

func TestNew_HostBackpackSizeWins(t *testing.T) {
	w, err := gridworld.New(gridworld.Layout{Backpack: 5, Rows: drawMap(9, grid.Pos{Row: 4, Col: 4}, map[grid.Pos]rune{
		{Row: 4, Col: 6}: '9',
		{Row: 4, Col: 1}: 'B',
	})}, nil)
	require.NoError(t, err)
	a := newAgent(t, testConfig(), w)
	require.Equal(t, 5, a.Inventory().Capacity())

	res, err := a.CollectPhase()
	require.NoError(t, err)
	require.Equal(t, FilledBackpack, res)
	require.Equal(t, 5, w.Backpack(grid.Garbage))
	require.Equal(t, w.Backpack(grid.Garbage), a.Inventory().QuantityOf(grid.Garbage))
	require.Equal(t, 5, a.Snapshot().Collected)

	_, err = a.DepositPhase()
	require.NoError(t, err)
	require.Equal(t, w.Backpack(grid.Garbage), a.Inventory().QuantityOf(grid.Garbage))
	require.Equal(t, a.Snapshot().Deposited, int(w.Score()))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	w := newWorld(t, drawMap(5, grid.Pos{Row: 2, Col: 2}, nil))
	_, err := New(config.Config{}, w, w, w, nil)
	require.ErrorContains(t, err, "collect_threshold")

	cfg := testConfig()
	cfg.FrontierVariant = "sideways"
	_, err = New(cfg, w, w, w, nil)
	require.ErrorContains(t, err, "frontier_variant")
}
