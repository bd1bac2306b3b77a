package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"scrapbot.ai/internal/bot"
	persistlog "scrapbot.ai/internal/persistence/log"
)

var replayRun string

var replayCmd = &cobra.Command{
	Use:   "replay <logs dir>",
	Short: "Summarise snapshot logs per run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		totals, err := replayDir(args[0], replayRun)
		if err != nil {
			return err
		}
		return printTotals(cmd.OutOrStdout(), totals)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayRun, "run", "", "only this run id")
}

type runTotals struct {
	RunID     string
	Ticks     uint64
	LastTick  uint64
	Errors    int
	Collected int
	Deposited int
	Score     float64
	Explored  float64
	Stopped   bool
	Phases    map[string]int
}

// replayDir folds every snapshot log under dir into per-run totals.
func replayDir(dir, runID string) ([]*runTotals, error) {
	files, err := persistlog.ListLogFiles(dir, runID)
	if err != nil {
		return nil, err
	}
	byRun := map[string]*runTotals{}
	for _, f := range files {
		id := runOfLogFile(f)
		t := byRun[id]
		if t == nil {
			t = &runTotals{RunID: id, Phases: map[string]int{}}
			byRun[id] = t
		}
		err := persistlog.ReadSnapshots(f, func(s bot.Snapshot) error {
			t.Ticks++
			t.Phases[s.Phase]++
			if s.Error != "" {
				t.Errors++
			}
			if s.Tick >= t.LastTick {
				t.LastTick = s.Tick
				t.Collected = s.Collected
				t.Deposited = s.Deposited
				t.Score = s.Score
				t.Explored = s.Explored
				t.Stopped = s.Stopped
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", filepath.Base(f), err)
		}
	}

	out := make([]*runTotals, 0, len(byRun))
	for _, t := range byRun {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}

// runOfLogFile strips the "-YYYY-MM-DD-HH.jsonl.zst" rotation suffix.
func runOfLogFile(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".jsonl.zst")
	const hourLayout = "-2006-01-02-15"
	if len(name) > len(hourLayout) {
		return name[:len(name)-len(hourLayout)]
	}
	return name
}

func printTotals(w io.Writer, totals []*runTotals) error {
	if len(totals) == 0 {
		_, err := fmt.Fprintln(w, "no snapshot logs found")
		return err
	}
	for _, t := range totals {
		phases := make([]string, 0, len(t.Phases))
		for ph, n := range t.Phases {
			phases = append(phases, fmt.Sprintf("%s:%d", ph, n))
		}
		sort.Strings(phases)
		_, err := fmt.Fprintf(w, "run=%s ticks=%d last_tick=%d errors=%d collected=%d deposited=%d score=%v explored=%.0f%% stopped=%v phases=%s\n",
			t.RunID, t.Ticks, t.LastTick, t.Errors, t.Collected, t.Deposited, t.Score, t.Explored*100, t.Stopped, strings.Join(phases, ","))
		if err != nil {
			return err
		}
	}
	return nil
}
