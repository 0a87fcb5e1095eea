package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNoRun is returned when a run lookup matches nothing.
var ErrNoRun = errors.New("runstore: no matching run")

// Run kinds.
const (
	KindCompress = "compress"
	KindTrain    = "train"
)

// Store persists compression sweeps and training histories in SQLite.
type Store struct {
	db *sql.DB
}

type Run struct {
	ID        string
	Kind      string
	Note      string
	CreatedAt time.Time
}

type Compression struct {
	RunID  string
	Image  string
	Width  int
	Height int
	K      int
	Ratio  float64
	PSNR   float64
	Energy float64
}

type Epoch struct {
	RunID       string
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run row and returns it.
func (s *Store) CreateRun(kind, note string) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		"INSERT INTO runs (id, kind, note, created_at) VALUES (?, ?, ?, ?)",
		run.ID, run.Kind, run.Note, run.CreatedAt,
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// Runs returns all runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query("SELECT id, kind, note, created_at FROM runs ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Run returns the run with the given id.
func (s *Store) Run(id string) (Run, error) {
	var run Run
	err := s.db.QueryRow(
		"SELECT id, kind, note, created_at FROM runs WHERE id = ?", id,
	).Scan(&run.ID, &run.Kind, &run.Note, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("%w: id=%q", ErrNoRun, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recent run of the given kind.
func (s *Store) LatestRun(kind string) (Run, error) {
	var run Run
	err := s.db.QueryRow(
		"SELECT id, kind, note, created_at FROM runs WHERE kind = ? ORDER BY created_at DESC LIMIT 1",
		kind,
	).Scan(&run.ID, &run.Kind, &run.Note, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("%w: kind=%q", ErrNoRun, kind)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query latest run: %w", err)
	}
	return run, nil
}

// DeleteRun removes a run and, through the foreign keys, everything
// recorded under it.
func (s *Store) DeleteRun(id string) error {
	res, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: id=%q", ErrNoRun, id)
	}
	return nil
}

// AddCompression records one sweep point. A repeated (run, image, k)
// triple violates the unique constraint and returns an error.
func (s *Store) AddCompression(c Compression) error {
	_, err := s.db.Exec(
		"INSERT INTO compressions (run_id, image, width, height, k, ratio, psnr, energy) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		c.RunID, c.Image, c.Width, c.Height, c.K, c.Ratio, c.PSNR, c.Energy,
	)
	if err != nil {
		return fmt.Errorf("failed to add compression: %w", err)
	}
	return nil
}

// Compressions returns all sweep points of a run ordered by image then rank.
func (s *Store) Compressions(runID string) ([]Compression, error) {
	rows, err := s.db.Query(
		"SELECT run_id, image, width, height, k, ratio, psnr, energy FROM compressions WHERE run_id = ? ORDER BY image, k",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query compressions: %w", err)
	}
	defer rows.Close()

	var out []Compression
	for rows.Next() {
		var c Compression
		if err := rows.Scan(&c.RunID, &c.Image, &c.Width, &c.Height, &c.K, &c.Ratio, &c.PSNR, &c.Energy); err != nil {
			return nil, fmt.Errorf("failed to scan compression: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RankForQuality returns, per image of the run, the smallest rank whose
// PSNR reaches minPSNR. Images that never reach it are absent.
func (s *Store) RankForQuality(runID string, minPSNR float64) (map[string]int, error) {
	rows, err := s.db.Query(
		"SELECT image, MIN(k) FROM compressions WHERE run_id = ? AND psnr >= ? GROUP BY image",
		runID, minPSNR,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranks: %w", err)
	}
	defer rows.Close()

	ranks := make(map[string]int)
	for rows.Next() {
		var image string
		var k int
		if err := rows.Scan(&image, &k); err != nil {
			return nil, fmt.Errorf("failed to scan rank: %w", err)
		}
		ranks[image] = k
	}
	return ranks, rows.Err()
}

// AddEpochs records a training history in a single transaction. The
// run_id column is taken from runID, not from the rows.
func (s *Store) AddEpochs(runID string, epochs []Epoch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range epochs {
		_, err := tx.Exec(
			"INSERT INTO epochs (run_id, epoch, loss, accuracy, val_loss, val_accuracy) VALUES (?, ?, ?, ?, ?, ?)",
			runID, e.Epoch, e.Loss, e.Accuracy, e.ValLoss, e.ValAccuracy,
		)
		if err != nil {
			return fmt.Errorf("failed to add epoch %d: %w", e.Epoch, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit epochs: %w", err)
	}
	return nil
}

// Epochs returns the training history of a run in epoch order.
func (s *Store) Epochs(runID string) ([]Epoch, error) {
	rows, err := s.db.Query(
		"SELECT run_id, epoch, loss, accuracy, val_loss, val_accuracy FROM epochs WHERE run_id = ? ORDER BY epoch",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query epochs: %w", err)
	}
	defer rows.Close()

	var out []Epoch
	for rows.Next() {
		var e Epoch
		if err := rows.Scan(&e.RunID, &e.Epoch, &e.Loss, &e.Accuracy, &e.ValLoss, &e.ValAccuracy); err != nil {
			return nil, fmt.Errorf("failed to scan epoch: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.Note, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
