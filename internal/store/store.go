package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boristopalov/classroom/pkg/history"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id           TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	seed             INTEGER NOT NULL,
	students         INTEGER NOT NULL,
	assignment_every INTEGER NOT NULL,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id      TEXT NOT NULL,
	day         INTEGER NOT NULL,
	n_ungraded  INTEGER NOT NULL,
	n_graded    INTEGER NOT NULL,
	grading_gap REAL,
	avg_reward  REAL,
	payload     TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (run_id, day),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Run describes one persisted experiment run.
type Run struct {
	ID              string
	Name            string
	Seed            uint64
	Students        int
	AssignmentEvery int
	CreatedAt       time.Time
	Days            int
}

// Store persists runs and their daily snapshots in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun registers a run and returns its ID.
func (s *Store) CreateRun(name string, seed uint64, students, assignmentEvery int) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, name, seed, students, assignment_every, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, int64(seed), students, assignmentEvery, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// SaveSnapshot stores one day of a run, replacing an earlier save of the same day.
func (s *Store) SaveSnapshot(runID string, snap history.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshots (run_id, day, n_ungraded, n_graded, grading_gap, avg_reward, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, day) DO UPDATE SET
			n_ungraded = excluded.n_ungraded,
			n_graded = excluded.n_graded,
			grading_gap = excluded.grading_gap,
			avg_reward = excluded.avg_reward,
			payload = excluded.payload,
			created_at = excluded.created_at`,
		runID, snap.Day, snap.NumUngraded, snap.NumGraded, nullable(snap.GradingGap), nullable(snap.AvgStudentReward),
		string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns every snapshot of a run ordered by day.
func (s *Store) ListSnapshots(runID string) ([]history.Snapshot, error) {
	if _, err := s.GetRun(runID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT payload FROM snapshots WHERE run_id = ? ORDER BY day`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []history.Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap history.Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

const runColumns = `r.run_id, r.name, r.seed, r.students, r.assignment_every, r.created_at,
	(SELECT COUNT(*) FROM snapshots s WHERE s.run_id = r.run_id)`

func (s *Store) GetRun(runID string) (Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs r ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run     Run
		seed    int64
		created string
	)
	if err := sc.Scan(&run.ID, &run.Name, &seed, &run.Students, &run.AssignmentEvery, &created, &run.Days); err != nil {
		return Run{}, err
	}
	run.Seed = uint64(seed)
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at: %w", err)
	}
	run.CreatedAt = t
	return run, nil
}

func nullable(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
