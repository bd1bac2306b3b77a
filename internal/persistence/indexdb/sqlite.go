package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"scrapbot.ai/internal/bot"
)

// SQLiteIndex is a queryable read-model of runs and their snapshots. Writes
// are queued and applied by a single goroutine; when the queue is full they
// are dropped and counted.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropRun   atomic.Uint64
	written   atomic.Uint64
	failTotal atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqRunStart
	reqRunEnd
	reqSync
)

type req struct {
	kind reqKind

	runID string
	snap  bot.Snapshot
	run   RunInfo
	done  chan struct{}
}

// RunInfo describes one agent run.
type RunInfo struct {
	ID        string
	Map       string
	Size      int
	Seed      int64
	Config    any
	StartedAt time.Time
}

// RunSummary is the per-run aggregate kept in the runs table.
type RunSummary struct {
	ID        string
	Map       string
	Size      int
	Seed      int64
	Ticks     uint64
	Collected int
	Deposited int
	Score     float64
	Explored  float64
	Stopped   bool
	StartedAt string
	EndedAt   string
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	Written       uint64
	DropTickTotal uint64
	DropRunTotal  uint64
	FailTotal     uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			map TEXT NOT NULL,
			size INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			config_json TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			ticks INTEGER NOT NULL DEFAULT 0,
			collected INTEGER NOT NULL DEFAULT 0,
			deposited INTEGER NOT NULL DEFAULT 0,
			score REAL NOT NULL DEFAULT 0,
			explored REAL NOT NULL DEFAULT 0,
			stopped INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			row INTEGER NOT NULL,
			col INTEGER NOT NULL,
			energy INTEGER NOT NULL,
			score REAL NOT NULL,
			carried INTEGER NOT NULL,
			phase TEXT NOT NULL,
			result TEXT NOT NULL,
			known_garbage INTEGER NOT NULL,
			known_bins INTEGER NOT NULL,
			explored REAL NOT NULL,
			error TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_phase ON ticks(run_id, phase, tick);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// StartRun registers a run. It is queued like every other write so it is
// applied before the run's first tick.
func (s *SQLiteIndex) StartRun(info RunInfo) {
	if s == nil || s.closed.Load() {
		return
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	select {
	case s.ch <- req{kind: reqRunStart, runID: info.ID, run: info}:
	default:
		s.dropRun.Add(1)
	}
}

// Observer returns a bot.Observer recording every snapshot under runID.
func (s *SQLiteIndex) Observer(runID string) bot.Observer {
	return bot.ObserverFunc(func(snap bot.Snapshot) { s.WriteTick(runID, snap) })
}

func (s *SQLiteIndex) WriteTick(runID string, snap bot.Snapshot) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTick, runID: runID, snap: snap}:
	default:
		// Drop if the indexer falls behind; the JSONL log remains the source of truth.
		s.dropTick.Add(1)
	}
}

// FinishRun stores the final aggregate of a run from its last snapshot.
func (s *SQLiteIndex) FinishRun(runID string, last bot.Snapshot) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqRunEnd, runID: runID, snap: last}:
	default:
		s.dropRun.Add(1)
	}
}

// Sync blocks until every write queued before it has been committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		Written:       s.written.Load(),
		DropTickTotal: s.dropTick.Load(),
		DropRunTotal:  s.dropRun.Load(),
		FailTotal:     s.failTotal.Load(),
	}
}

// Run reads back a run aggregate.
func (s *SQLiteIndex) Run(ctx context.Context, runID string) (RunSummary, error) {
	var (
		r       RunSummary
		stopped int
		ended   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT run_id,map,size,seed,ticks,collected,deposited,score,explored,stopped,started_at,ended_at FROM runs WHERE run_id=?`, runID).
		Scan(&r.ID, &r.Map, &r.Size, &r.Seed, &r.Ticks, &r.Collected, &r.Deposited, &r.Score, &r.Explored, &stopped, &r.StartedAt, &ended)
	if err != nil {
		return r, err
	}
	r.Stopped = stopped != 0
	r.EndedAt = ended.String
	return r, nil
}

// PhaseCounts returns how many ticks of a run ended in each phase.
func (s *SQLiteIndex) PhaseCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT phase, COUNT(*) FROM ticks WHERE run_id=? GROUP BY phase`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			phase string
			n     int
		)
		if err := rows.Scan(&phase, &n); err != nil {
			return nil, err
		}
		out[phase] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,row,col,energy,score,carried,phase,result,known_garbage,known_bins,explored,error,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,map,size,seed,config_json,started_at) VALUES(?,?,?,?,?,?)`)
	finishRun, _ := s.db.Prepare(`UPDATE runs SET ended_at=?,ticks=?,collected=?,deposited=?,score=?,explored=?,stopped=? WHERE run_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertRun, finishRun} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failTotal.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.failTotal.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
		s.written.Add(1)
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRunStart:
			cfg, _ := json.Marshal(r.run.Config)
			exec(insertRun, r.run.ID, r.run.Map, r.run.Size, r.run.Seed, string(cfg), r.run.StartedAt.UTC().Format(time.RFC3339Nano))

		case reqTick:
			sn := r.snap
			raw, _ := json.Marshal(sn)
			carried := 0
			for _, q := range sn.Inventory {
				carried += q
			}
			exec(insertTick,
				r.runID,
				int64(sn.Tick),
				sn.Pos.Row, sn.Pos.Col,
				sn.Energy,
				sn.Score,
				carried,
				sn.Phase,
				sn.Result,
				sn.KnownGarbage,
				sn.KnownBins,
				sn.Explored,
				sn.Error,
				string(raw),
			)

		case reqRunEnd:
			sn := r.snap
			stopped := 0
			if sn.Stopped {
				stopped = 1
			}
			exec(finishRun,
				time.Now().UTC().Format(time.RFC3339Nano),
				int64(sn.Tick),
				sn.Collected,
				sn.Deposited,
				sn.Score,
				sn.Explored,
				stopped,
				r.runID,
			)
			// Run boundaries are worth a commit of their own.
			commit()
			continue
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
