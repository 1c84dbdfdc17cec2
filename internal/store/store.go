// Package store records detection results in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"gaze-markers/internal/detector"
	"gaze-markers/internal/marker"
	"gaze-markers/pkg/geometry"

	"github.com/benbjohnson/clock"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUnknownSession is returned for session IDs that were never started.
var ErrUnknownSession = errors.New("unknown session")

// Store is a detection log backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	clock  clock.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the clock used for session start times.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Session is a single tracker run.
type Session struct {
	ID        string
	Source    string
	StartedAt time.Time
}

// MarkerRow is one sighting of a marker.
type MarkerRow struct {
	Frame      int64
	CapturedAt time.Time
	ID         int
	Rotation   marker.Rotation
	Center     geometry.PointInt
	Bounds     geometry.RectInt
}

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{"journal_mode(WAL)", "busy_timeout(5000)", "foreign_keys(1)"}

// Open opens or creates the database at path and applies migrations.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &Store{db: db, logger: zap.NewNop(), clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// migrateUp applies the embedded migrations. The migrate instance is not
// closed because that would close the shared connection.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{logger: s.logger}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct {
	logger *zap.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Sugar().Debugf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// StartSession registers a new run and returns its ID.
func (s *Store) StartSession(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, source, started_at) VALUES (?, ?, ?)`,
		id, source, s.clock.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	s.logger.Debug("session started", zap.String("session", id), zap.String("source", source))
	return id, nil
}

// Session returns the session with the given ID.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	var sess Session
	var started int64
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, source, started_at FROM sessions WHERE session_id = ?`, id).
		Scan(&sess.ID, &sess.Source, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	sess.StartedAt = time.UnixMilli(started).UTC()
	return sess, nil
}

// Sessions lists all sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, source, started_at FROM sessions ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var started int64
		if err := rows.Scan(&sess.ID, &sess.Source, &started); err != nil {
			return nil, err
		}
		sess.StartedAt = time.UnixMilli(started).UTC()
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RecordResult stores a frame and its markers in one transaction. The frame's
// capture time comes from the source; results without one fall back to the
// processing time.
func (s *Store) RecordResult(ctx context.Context, sessionID string, res *detector.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	captured := res.CapturedAt
	if captured.IsZero() {
		captured = res.Timestamp
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO frames (session_id, frame_number, captured_at, marker_count, candidate_count, surface_status, duration_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, res.Frame, captured.UnixMilli(), len(res.Markers), res.Candidates,
		res.Surface.Status.String(), res.Duration.Microseconds())
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", res.Frame, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO markers (session_id, frame_number, marker_id, rotation, center_x, center_y, bbox_x, bbox_y, bbox_w, bbox_h)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare marker insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range res.Markers {
		_, err = stmt.ExecContext(ctx, sessionID, res.Frame, m.ID, int(m.Rotation),
			m.Center.X, m.Center.Y, m.Bounds.X, m.Bounds.Y, m.Bounds.Width, m.Bounds.Height)
		if err != nil {
			return fmt.Errorf("insert marker %d: %w", m.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit frame %d: %w", res.Frame, err)
	}
	return nil
}

// MarkerHistory returns every sighting of a marker in a session, in frame
// order.
func (s *Store) MarkerHistory(ctx context.Context, sessionID string, markerID int) ([]MarkerRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.frame_number, f.captured_at, m.marker_id, m.rotation, m.center_x, m.center_y,
		        m.bbox_x, m.bbox_y, m.bbox_w, m.bbox_h
		 FROM markers m
		 JOIN frames f ON f.session_id = m.session_id AND f.frame_number = m.frame_number
		 WHERE m.session_id = ? AND m.marker_id = ? ORDER BY m.frame_number`,
		sessionID, markerID)
	if err != nil {
		return nil, fmt.Errorf("query marker history: %w", err)
	}
	defer rows.Close()

	var out []MarkerRow
	for rows.Next() {
		var r MarkerRow
		var rot int
		var captured int64
		if err := rows.Scan(&r.Frame, &captured, &r.ID, &rot, &r.Center.X, &r.Center.Y,
			&r.Bounds.X, &r.Bounds.Y, &r.Bounds.Width, &r.Bounds.Height); err != nil {
			return nil, err
		}
		r.Rotation = marker.Rotation(rot)
		r.CapturedAt = time.UnixMilli(captured).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// FrameCount returns the number of frames recorded for a session.
func (s *Store) FrameCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM frames WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}

// MarkerCounts returns how many frames each marker ID was seen in.
func (s *Store) MarkerCounts(ctx context.Context, sessionID string) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT marker_id, COUNT(*) FROM markers WHERE session_id = ? GROUP BY marker_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count markers: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var id, n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
