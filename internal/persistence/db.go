package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/engine"
	"github.com/talgya/living-world/internal/events"
)

// ErrNoSnapshot is returned when a world has never been saved.
var ErrNoSnapshot = errors.New("persistence: no snapshot")

// Store is a SQLite archive of world snapshots, dispatched events, and
// metadata.
type Store struct {
	conn   *sqlx.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *slog.Logger
}

// Open opens or creates a store at path. A nil logger means slog.Default().
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		conn.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, err
	}

	s := &Store{conn: conn, enc: enc, dec: dec, logger: logger}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.dec.Close()
	s.enc.Close()
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world TEXT NOT NULL,
		clock INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		label TEXT NOT NULL,
		agents INTEGER NOT NULL,
		places INTEGER NOT NULL,
		saved_at TEXT NOT NULL,
		data BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		world TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		source INTEGER NOT NULL,
		location INTEGER NOT NULL,
		clock INTEGER NOT NULL,
		time_json TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		PRIMARY KEY (world, seq)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_world ON snapshots(world, id);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(world, kind);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// SnapshotInfo describes a stored snapshot without its data.
type SnapshotInfo struct {
	ID      int64  `db:"id" json:"id"`
	World   string `db:"world" json:"world"`
	Clock   uint64 `db:"clock" json:"clock"`
	Steps   uint64 `db:"steps" json:"steps"`
	Label   string `db:"label" json:"label"`
	Agents  int    `db:"agents" json:"agents"`
	Places  int    `db:"places" json:"places"`
	SavedAt string `db:"saved_at" json:"saved_at"`
}

// SaveSnapshot stores the world's current state and returns the row id.
func (s *Store) SaveSnapshot(w *engine.World) (int64, error) {
	data, err := Save(w)
	if err != nil {
		return 0, err
	}
	blob := s.enc.EncodeAll(data, nil)
	res, err := s.conn.Exec(`INSERT INTO snapshots
		(world, clock, steps, label, agents, places, saved_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.Name(), w.Clock().Total, w.Steps(), w.Now().String(),
		w.AgentCount(), w.PlaceCount(), time.Now().UTC().Format(time.RFC3339), blob,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.logger.Info("world state saved", "world", w.Name(), "snapshot", id,
		"size", humanize.Bytes(uint64(len(blob))), "raw", humanize.Bytes(uint64(len(data))))
	return id, nil
}

// Snapshots lists a world's snapshots, newest first.
func (s *Store) Snapshots(world string) ([]SnapshotInfo, error) {
	var out []SnapshotInfo
	err := s.conn.Select(&out, `SELECT id, world, clock, steps, label, agents, places, saved_at
		FROM snapshots WHERE world = ? ORDER BY id DESC`, world)
	return out, err
}

// LoadSnapshot restores the snapshot with the given id.
func (s *Store) LoadSnapshot(id int64, opts engine.Options, factory content.Factory) (*engine.World, error) {
	return s.load(`SELECT data FROM snapshots WHERE id = ?`, id, opts, factory)
}

// LoadLatest restores a world's most recent snapshot.
func (s *Store) LoadLatest(world string, opts engine.Options, factory content.Factory) (*engine.World, error) {
	return s.load(`SELECT data FROM snapshots WHERE world = ? ORDER BY id DESC LIMIT 1`, world, opts, factory)
}

func (s *Store) load(query string, arg any, opts engine.Options, factory content.Factory) (*engine.World, error) {
	var blob []byte
	if err := s.conn.Get(&blob, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	data, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	return Load(data, opts, factory)
}

// PruneSnapshots keeps only a world's newest keep snapshots.
func (s *Store) PruneSnapshots(world string, keep int) (int64, error) {
	res, err := s.conn.Exec(`DELETE FROM snapshots WHERE world = ? AND id NOT IN
		(SELECT id FROM snapshots WHERE world = ? ORDER BY id DESC LIMIT ?)`, world, world, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type eventRow struct {
	Seq      uint64 `db:"seq"`
	Kind     string `db:"kind"`
	Source   uint64 `db:"source"`
	Location uint64 `db:"location"`
	Time     string `db:"time_json"`
	Payload  string `db:"payload_json"`
}

func (r eventRow) event() (events.Event, error) {
	e := events.Event{Seq: r.Seq, Kind: events.Kind(r.Kind), Source: r.Source, Location: r.Location}
	if err := json.Unmarshal([]byte(r.Time), &e.Time); err != nil {
		return e, fmt.Errorf("event %d time: %w", r.Seq, err)
	}
	if err := json.Unmarshal([]byte(r.Payload), &e.Payload); err != nil {
		return e, fmt.Errorf("event %d payload: %w", r.Seq, err)
	}
	return e, nil
}

// SaveEvents appends events to the archive. Events already archived are
// skipped.
func (s *Store) SaveEvents(world string, evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO events
		(world, seq, kind, source, location, clock, time_json, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range evs {
		timeJSON, err := json.Marshal(e.Time)
		if err != nil {
			return fmt.Errorf("event %d time: %w", e.Seq, err)
		}
		payloadJSON, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("event %d payload: %w", e.Seq, err)
		}
		if _, err := stmt.Exec(world, e.Seq, string(e.Kind), e.Source, e.Location,
			e.Time.Total, string(timeJSON), string(payloadJSON)); err != nil {
			return fmt.Errorf("insert event %d: %w", e.Seq, err)
		}
	}
	return tx.Commit()
}

// RecentEvents returns up to limit of a world's newest archived events,
// oldest first. An empty kind matches every kind.
func (s *Store) RecentEvents(world string, kind events.Kind, limit int) ([]events.Event, error) {
	var rows []eventRow
	var err error
	if kind == "" || kind == events.KindAny {
		err = s.conn.Select(&rows, `SELECT seq, kind, source, location, time_json, payload_json
			FROM events WHERE world = ? ORDER BY seq DESC LIMIT ?`, world, limit)
	} else {
		err = s.conn.Select(&rows, `SELECT seq, kind, source, location, time_json, payload_json
			FROM events WHERE world = ? AND kind = ? ORDER BY seq DESC LIMIT ?`, world, string(kind), limit)
	}
	if err != nil {
		return nil, err
	}
	slices.Reverse(rows)
	out := make([]events.Event, 0, len(rows))
	for _, r := range rows {
		e, err := r.event()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// CountEvents returns how many events of a world are archived.
func (s *Store) CountEvents(world string) (int, error) {
	var n int
	err := s.conn.Get(&n, "SELECT COUNT(*) FROM events WHERE world = ?", world)
	return n, err
}

// SaveMeta stores a key-value pair in world metadata.
func (s *Store) SaveMeta(key, value string) error {
	_, err := s.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// Archiver copies every dispatched event of one world into a Store. Events
// are buffered by the bus subscriber and written by Flush, so the step
// itself never waits on the database.
type Archiver struct {
	store *Store
	world string

	mu  sync.Mutex
	buf []events.Event
}

// NewArchiver subscribes to every event kind of w. The returned func
// unsubscribes.
func NewArchiver(s *Store, w *engine.World) (*Archiver, func()) {
	a := &Archiver{store: s, world: w.Name()}
	unsub := w.Subscribe(events.KindAny, func(e events.Event) error {
		a.mu.Lock()
		a.buf = append(a.buf, e)
		a.mu.Unlock()
		return nil
	})
	return a, unsub
}

// Pending returns the number of buffered events.
func (a *Archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

// Flush writes buffered events. On failure the events stay buffered.
func (a *Archiver) Flush() error {
	a.mu.Lock()
	batch := a.buf
	a.buf = nil
	a.mu.Unlock()

	if err := a.store.SaveEvents(a.world, batch); err != nil {
		a.mu.Lock()
		a.buf = append(batch, a.buf...)
		a.mu.Unlock()
		return fmt.Errorf("archive %d events: %w", len(batch), err)
	}
	return nil
}
