package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scrapbot.ai/internal/bot"
	"scrapbot.ai/internal/config"
	"scrapbot.ai/internal/persistence/indexdb"
	persistlog "scrapbot.ai/internal/persistence/log"
	"scrapbot.ai/internal/runner"
	"scrapbot.ai/internal/sim/gridworld"
	"scrapbot.ai/internal/transport/observer"
)

type runOptions struct {
	MapPath    string
	ConfigPath string
	DataDir    string
	RunID      string
	Addr       string
	Interval   time.Duration
	MaxTicks   uint64
	StatusSpec string
	DisableDB  bool
	Recharge   bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent on a map until it stops",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		logger := log.New(cmd.OutOrStdout(), "[scrapbot] ", log.LstdFlags|log.Lmicroseconds)
		sum, err := runWithOptions(ctx, runOpts, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ticks=%d errors=%d stopped=%v collected=%d deposited=%d score=%v explored=%.0f%%\n",
			sum.Ticks, sum.Errors, sum.Stopped, sum.Last.Collected, sum.Last.Deposited, sum.Last.Score, sum.Last.Explored*100)
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.MapPath, "map", "./configs/maps/demo.yaml", "map layout file")
	f.StringVar(&runOpts.ConfigPath, "config", "", "agent config file (default: built-in defaults)")
	f.StringVar(&runOpts.DataDir, "data", "./data", "runtime data directory")
	f.StringVar(&runOpts.RunID, "run", "", "run id (default: run_<unix time>)")
	f.StringVar(&runOpts.Addr, "addr", "127.0.0.1:8081", "observer http listen address (empty to disable)")
	f.DurationVar(&runOpts.Interval, "interval", 100*time.Millisecond, "delay between ticks")
	f.Uint64Var(&runOpts.MaxTicks, "max-ticks", 0, "stop after this many ticks (0: until the stop policy)")
	f.StringVar(&runOpts.StatusSpec, "status", "@every 5s", "cron spec for status lines (empty to disable)")
	f.BoolVar(&runOpts.DisableDB, "disable-db", false, "disable the sqlite run index")
	f.BoolVar(&runOpts.Recharge, "recharge", true, "recharge the robot when it runs out of energy")
}

func runWithOptions(ctx context.Context, opts runOptions, logger *log.Logger) (runner.Summary, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return runner.Summary{}, fmt.Errorf("load config: %w", err)
	}
	w, err := gridworld.LoadWorld(opts.MapPath, component(logger, "world"))
	if err != nil {
		return runner.Summary{}, fmt.Errorf("load map: %w", err)
	}

	runID := strings.TrimSpace(opts.RunID)
	if runID == "" {
		runID = "run_" + strconv.FormatInt(time.Now().Unix(), 10)
	}
	mapName := w.Name()
	if mapName == "" {
		mapName = strings.TrimSuffix(filepath.Base(opts.MapPath), filepath.Ext(opts.MapPath))
	}

	a, err := bot.New(cfg, w, w, w, component(logger, "agent"))
	if err != nil {
		return runner.Summary{}, err
	}
	w.OnEvent(a.HandleEvent)

	r := runner.New(a, runner.Config{
		Interval:   opts.Interval,
		MaxTicks:   opts.MaxTicks,
		StatusSpec: opts.StatusSpec,
	}, component(logger, "runner"))

	snapLog := persistlog.NewSnapshotLogger(filepath.Join(opts.DataDir, "logs"), runID)
	defer func() {
		if err := snapLog.Close(); err != nil {
			logger.Printf("close snapshot log: %v", err)
		}
	}()
	r.Attach(snapLog)

	// Optional: read-model index (does not affect the run).
	var idx *indexdb.SQLiteIndex
	if !opts.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(opts.DataDir, "index", "runs.sqlite"))
		if err != nil {
			return runner.Summary{}, fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		idx.StartRun(indexdb.RunInfo{ID: runID, Map: mapName, Size: w.Size(), Seed: cfg.Seed, Config: cfg})
		r.Attach(idx.Observer(runID))
		r.AddStatus("index_drops", func() string { return strconv.FormatUint(idx.Stats().DropTickTotal, 10) })
	}

	if opts.Addr != "" {
		hub := observer.NewServer(observer.RunInfo{RunID: runID, Map: mapName, Size: w.Size()}, component(logger, "observer"))
		r.Attach(hub)
		r.AddStatus("observers", func() string { return strconv.Itoa(hub.Sessions()) })

		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(200)
			_, _ = rw.Write([]byte("ok"))
		})
		mux.HandleFunc("/v1/observer/ws", hub.WSHandler())
		mux.HandleFunc("/v1/observer/status", hub.StatusHandler())
		srv := &http.Server{Addr: opts.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Printf("observer listening on %s", opts.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("observer http: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	r.OnTick = func(rep bot.TickReport) {
		if opts.Recharge && errors.Is(rep.Err, gridworld.ErrNotEnoughEnergy) {
			logger.Printf("tick %d: out of energy, recharging", rep.Tick)
			w.Recharge()
		}
	}

	logger.Printf("run=%s map=%s size=%d explore=%s stop=%s", runID, mapName, w.Size(), cfg.ExploreMode, cfg.StopPolicy)
	w.Start()
	sum, err := r.Run(ctx)
	if err != nil && !runner.IsCancel(err) {
		return sum, err
	}
	w.Terminate()

	if idx != nil {
		idx.FinishRun(runID, sum.Last)
		syncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := idx.Sync(syncCtx); err != nil {
			logger.Printf("index sync: %v", err)
		}
		cancel()
	}
	if err := snapLog.Err(); err != nil {
		logger.Printf("snapshot log: %v", err)
	}
	return sum, nil
}
