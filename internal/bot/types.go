package bot

import "scrapbot.ai/internal/sim/grid"

type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseCollect
	PhaseDeposit
	PhaseWander
	PhaseFrontier
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseCollect:
		return "COLLECT"
	case PhaseDeposit:
		return "DEPOSIT"
	case PhaseWander:
		return "WANDER"
	case PhaseFrontier:
		return "FRONTIER"
	case PhaseStopped:
		return "STOPPED"
	}
	return "IDLE"
}

// Result classifies how a collect or deposit phase ended.
type Result uint8

const (
	ResultNone Result = iota
	// Success: a collect left less than the good-enough margin free, or a
	// deposit emptied into one bin.
	Success
	// PartiallyFilled: collected something but still above the margin.
	PartiallyFilled
	// NoChanges: every candidate was tried and nothing moved.
	NoChanges
	// NewResourcesNotFound: no candidate of the wanted kind is known.
	NewResourcesNotFound
	// FilledBackpack: collection stopped because the backpack is full.
	FilledBackpack
	// EmptyBackpack: a deposit phase had nothing to deposit.
	EmptyBackpack
)

func (r Result) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case NoChanges:
		return "NO_CHANGES"
	case NewResourcesNotFound:
		return "NEW_RESOURCES_NOT_FOUND"
	case FilledBackpack:
		return "FILLED_BACKPACK"
	case EmptyBackpack:
		return "EMPTY_BACKPACK"
	}
	return "NONE"
}

// TickReport describes one routine invocation.
type TickReport struct {
	Tick   uint64
	Phases []Phase
	Phase  Phase
	Result Result
	// Target is the wander or frontier destination chosen as fallback.
	Target *grid.Pos
	// Excursion is the destination of the random frontier excursion.
	Excursion *grid.Pos
	Stopped   bool
	Err       error
}

// Snapshot is the observer view of the agent after a tick.
type Snapshot struct {
	Tick         uint64         `json:"tick"`
	Pos          grid.Pos       `json:"pos"`
	Energy       int            `json:"energy"`
	Score        float64        `json:"score"`
	Capacity     int            `json:"capacity"`
	Inventory    map[string]int `json:"inventory"`
	Phase        string         `json:"phase"`
	Result       string         `json:"result"`
	Target       *grid.Pos      `json:"target,omitempty"`
	KnownGarbage int            `json:"known_garbage"`
	KnownBins    int            `json:"known_bins"`
	Explored     float64        `json:"explored"`
	Quadrants    map[int]bool   `json:"quadrants"`
	KnownMap     string         `json:"known_map,omitempty"`
	Events       []grid.Event   `json:"events,omitempty"`
	Collected    int            `json:"collected"`
	Deposited    int            `json:"deposited"`
	Stopped      bool           `json:"stopped,omitempty"`
	Error        string         `json:"error,omitempty"`
}

type Observer interface {
	Observe(Snapshot)
}

type ObserverFunc func(Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }
