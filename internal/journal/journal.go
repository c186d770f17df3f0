// Package journal persists the ChangedVariable audit log to SQLite. Writes are
// queued to a single writer goroutine so the tick never waits on disk.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/telemetry"
)

const (
	defaultBuffer = 4096

	journalDropMetricKey    = "tilesuite.journal.dropped_batches"
	journalSkippedMetricKey = "tilesuite.journal.skipped_rows"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal: closed")

// Entry is one persisted ChangedVariable record.
type Entry struct {
	Seq    int64  `json:"seq"`
	Tick   uint64 `json:"tick"`
	Region string `json:"region"`
	behavior.ChangedVariable
}

type entryJSON struct {
	Seq      int64           `json:"seq"`
	Tick     uint64          `json:"tick"`
	Region   string          `json:"region"`
	Instance int             `json:"instance"`
	Graph    int64           `json:"graph"`
	Node     int64           `json:"node"`
	Value    behavior.Number `json:"value"`
}

// MarshalJSON flattens the record; it overrides the promoted ChangedVariable
// encoding, which would drop Seq, Tick and Region.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Seq:      e.Seq,
		Tick:     e.Tick,
		Region:   e.Region,
		Instance: e.Instance,
		Graph:    e.Graph,
		Node:     e.Node,
		Value:    behavior.Number(e.Value),
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry{Seq: raw.Seq, Tick: raw.Tick, Region: raw.Region, ChangedVariable: behavior.ChangedVariable{
		Instance: raw.Instance,
		Graph:    raw.Graph,
		Node:     raw.Node,
		Value:    float64(raw.Value),
	}}
	return nil
}

// Options tunes a journal.
type Options struct {
	Buffer  int
	Metrics telemetry.Metrics
	Logger  telemetry.Logger
}

// Journal is a SQLite-backed ChangedVariable log. All methods are safe for
// concurrent use; Record and Flush after Close report the journal as closed.
type Journal struct {
	db      *sql.DB
	metrics telemetry.Metrics
	logger  telemetry.Logger

	// sendMu guards ch: senders hold it shared, Close holds it exclusively
	// while closing the channel.
	sendMu sync.RWMutex
	ch     chan request
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool
}

type request struct {
	tick    uint64
	region  string
	changes []behavior.ChangedVariable
	barrier chan struct{}
}

// Open creates or opens the database at path and starts the writer.
func Open(path string, opts Options) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}

	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	j := &Journal{
		db:      db,
		metrics: metrics,
		logger:  logger,
		ch:      make(chan request, buffer),
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()
	return j, nil
}

func initPragmas(db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS changed_variables (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			region TEXT NOT NULL,
			instance INTEGER NOT NULL,
			graph INTEGER NOT NULL,
			node INTEGER NOT NULL,
			value REAL,
			value_text TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_changed_variables_instance ON changed_variables(region, instance, tick);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record queues the changes of one tick. It never blocks: when the writer
// falls behind the batch is dropped, counted, and false is returned.
func (j *Journal) Record(tick uint64, region string, changes []behavior.ChangedVariable) bool {
	if j == nil || j.closed.Load() || len(changes) == 0 {
		return false
	}
	copied := append([]behavior.ChangedVariable(nil), changes...)
	j.sendMu.RLock()
	defer j.sendMu.RUnlock()
	if j.closed.Load() {
		return false
	}
	select {
	case j.ch <- request{tick: tick, region: region, changes: copied}:
		return true
	default:
		j.metrics.Add(journalDropMetricKey, 1)
		return false
	}
}

// Flush waits until every batch queued before the call has been written.
func (j *Journal) Flush(ctx context.Context) error {
	if j == nil || j.closed.Load() {
		return ErrClosed
	}
	done := make(chan struct{})
	if err := j.send(ctx, request{barrier: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Journal) send(ctx context.Context, r request) error {
	j.sendMu.RLock()
	defer j.sendMu.RUnlock()
	if j.closed.Load() {
		return ErrClosed
	}
	select {
	case j.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq,tick,region,instance,graph,node,value,value_text FROM changed_variables ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			tick int64
			num  sql.NullFloat64
			text sql.NullString
		)
		if err := rows.Scan(&e.Seq, &tick, &e.Region, &e.Instance, &e.Graph, &e.Node, &num, &text); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Tick = uint64(tick)
		e.Value = decodeValue(num, text)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows: %w", err)
	}
	return out, nil
}

// Close drains the queue and closes the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	var err error
	j.once.Do(func() {
		j.sendMu.Lock()
		j.closed.Store(true)
		close(j.ch)
		j.sendMu.Unlock()
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}

func (j *Journal) loop() {
	ctx := context.Background()
	insert, err := j.db.Prepare(`INSERT INTO changed_variables(tick,region,instance,graph,node,value,value_text,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		j.logger.Printf("prepare insert: %v", err)
	}
	defer func() {
		if insert != nil {
			_ = insert.Close()
		}
	}()

	for r := range j.ch {
		if r.barrier != nil {
			close(r.barrier)
			continue
		}
		if insert == nil {
			continue
		}
		written, err := j.write(ctx, insert, r)
		if err != nil {
			j.metrics.Add(journalDropMetricKey, 1)
			j.logger.Printf("write tick %d: %v", r.tick, err)
			continue
		}
		j.metrics.Add(telemetry.MetricJournalRows, uint64(written))
	}
}

// write inserts one tick batch in a transaction. A row the database rejects is
// skipped and counted; it does not cost the rest of the batch.
func (j *Journal) write(ctx context.Context, insert *sql.Stmt, r request) (int, error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	stmt := tx.Stmt(insert)
	written := 0
	for _, c := range r.changes {
		num, text := encodeValue(c.Value)
		if _, err := stmt.ExecContext(ctx, int64(r.tick), r.region, c.Instance, c.Graph, c.Node, num, text, now); err != nil {
			j.metrics.Add(journalSkippedMetricKey, 1)
			j.logger.Printf("skip tick %d instance %d node %d: %v", r.tick, c.Instance, c.Node, err)
			continue
		}
		written++
	}
	return written, tx.Commit()
}

// encodeValue keeps non-finite values out of the REAL column, where SQLite
// would turn NaN into NULL.
func encodeValue(v float64) (any, any) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, strconv.FormatFloat(v, 'g', -1, 64)
	}
	return v, nil
}

func decodeValue(num sql.NullFloat64, text sql.NullString) float64 {
	if num.Valid {
		return num.Float64
	}
	if text.Valid {
		if v, err := strconv.ParseFloat(text.String, 64); err == nil {
			return v
		}
	}
	return math.NaN()
}
