package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"scrapbot.ai/internal/bot"
)

// Agent is the part of *bot.Agent the runner drives.
type Agent interface {
	Tick() bot.TickReport
	Subscribe(bot.Observer)
	Stopped() bool
}

type Config struct {
	// Interval between ticks; 0 runs ticks back to back.
	Interval time.Duration
	// MaxTicks ends the run after that many ticks; 0 is unlimited.
	MaxTicks uint64
	// StatusSpec is a cron spec for the periodic status line; empty disables it.
	StatusSpec string
}

// Summary is returned by Run.
type Summary struct {
	Ticks   uint64
	Errors  int
	Stopped bool
	Last    bot.Snapshot
}

// Runner drives an agent tick by tick. The agent is only touched from the Run
// goroutine; status reports read the last published snapshot.
type Runner struct {
	agent Agent
	cfg   Config
	log   *log.Logger

	// OnTick, if set, is called after every tick on the Run goroutine.
	OnTick func(bot.TickReport)

	mu      sync.Mutex
	last    bot.Snapshot
	hasLast bool
	errors  int
	status  []statusSource
}

type statusSource struct {
	name string
	fn   func() string
}

func New(agent Agent, cfg Config, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	r := &Runner{agent: agent, cfg: cfg, log: logger}
	agent.Subscribe(bot.ObserverFunc(r.publish))
	return r
}

// Attach registers observers with the agent.
func (r *Runner) Attach(obs ...bot.Observer) {
	for _, o := range obs {
		r.agent.Subscribe(o)
	}
}

// AddStatus appends a named field to the periodic status line.
func (r *Runner) AddStatus(name string, fn func() string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, statusSource{name: name, fn: fn})
}

func (r *Runner) publish(s bot.Snapshot) {
	r.mu.Lock()
	r.last = s
	r.hasLast = true
	r.mu.Unlock()
}

// Last is the most recent snapshot, safe to call from any goroutine.
func (r *Runner) Last() (bot.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// Status renders one status line.
func (r *Runner) Status() string {
	r.mu.Lock()
	s, ok, errs := r.last, r.hasLast, r.errors
	sources := append([]statusSource(nil), r.status...)
	r.mu.Unlock()

	var b strings.Builder
	if !ok {
		b.WriteString("tick=0 waiting")
	} else {
		carried := 0
		for _, q := range s.Inventory {
			carried += q
		}
		fmt.Fprintf(&b, "tick=%d pos=%v phase=%s result=%s carried=%d/%d score=%v energy=%d explored=%.0f%% garbage=%d bins=%d errors=%d",
			s.Tick, s.Pos, s.Phase, s.Result, carried, s.Capacity, s.Score, s.Energy, s.Explored*100, s.KnownGarbage, s.KnownBins, errs)
	}
	for _, src := range sources {
		fmt.Fprintf(&b, " %s=%s", src.name, src.fn())
	}
	return b.String()
}

// Run ticks until the agent stops, MaxTicks is reached or ctx is done.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var c *rcron.Cron
	if r.cfg.StatusSpec != "" {
		c = rcron.New(rcron.WithSeconds())
		if _, err := c.AddFunc(r.cfg.StatusSpec, func() { r.log.Printf("status %s", r.Status()) }); err != nil {
			return Summary{}, fmt.Errorf("status schedule %q: %w", r.cfg.StatusSpec, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	var tick <-chan time.Time
	if r.cfg.Interval > 0 {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var sum Summary
	for {
		if r.agent.Stopped() {
			sum.Stopped = true
			break
		}
		if r.cfg.MaxTicks > 0 && sum.Ticks >= r.cfg.MaxTicks {
			break
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return r.finish(sum), ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return r.finish(sum), err
		}

		rep := r.agent.Tick()
		sum.Ticks++
		if rep.Err != nil {
			sum.Errors++
			r.mu.Lock()
			r.errors++
			r.mu.Unlock()
		}
		if r.OnTick != nil {
			r.OnTick(rep)
		}
		if rep.Stopped {
			sum.Stopped = true
			break
		}
	}
	r.log.Printf("run finished ticks=%d errors=%d stopped=%v", sum.Ticks, sum.Errors, sum.Stopped)
	return r.finish(sum), nil
}

func (r *Runner) finish(sum Summary) Summary {
	sum.Last, _ = r.Last()
	return sum
}

// IsCancel reports whether err only says the run was interrupted.
func IsCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
