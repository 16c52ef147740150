package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/platetemp/internal/field"
	"github.com/banshee-data/platetemp/internal/plate"
	"github.com/banshee-data/platetemp/internal/timeutil"
)

var (
	// ErrRunNotFound is returned when a run ID is unknown.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunIncomplete is returned by LoadField for runs that did not complete.
	ErrRunIncomplete = errors.New("run not complete")
)

// RunStatus is the lifecycle state of a persisted field sweep.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunComplete  RunStatus = "complete"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run is a persisted field sweep.
type Run struct {
	RunID       string        `json:"run_id"`
	Label       string        `json:"label,omitempty"`
	Status      RunStatus     `json:"status"`
	Domain      plate.Domain  `json:"domain"`
	Options     plate.Options `json:"options"`
	GridStep    float64       `json:"grid_step,omitempty"`
	Cols        int           `json:"cols"`
	Rows        int           `json:"rows"`
	PointCount  int           `json:"point_count"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	ElapsedMS   int64         `json:"elapsed_ms"`
}

// RunStore provides persistence for field sweeps and their points.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore. A nil clock uses the real clock.
func NewRunStore(db *sql.DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db, clock: clock}
}

// InsertRun records a new run in the running state. If RunID is empty, a
// UUID is generated. CreatedAt is set from the store clock.
func (s *RunStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	run.Status = RunRunning
	run.CreatedAt = s.clock.Now().UTC()

	optsJSON, err := json.Marshal(run.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}

	err = retryOnBusy(s.clock, func() error {
		_, err := s.db.Exec(`
			INSERT INTO runs (
				run_id, label, status, width, height,
				temp_bottom, temp_right, temp_left, temp_top,
				options_json, grid_step, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Label, string(run.Status), run.Domain.Width, run.Domain.Height,
			run.Domain.Temperatures[plate.WallBottom], run.Domain.Temperatures[plate.WallRight],
			run.Domain.Temperatures[plate.WallLeft], run.Domain.Temperatures[plate.WallTop],
			string(optsJSON), run.GridStep, run.CreatedAt.UnixNano(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// CompleteRun stores every point of f and marks the run complete, in one
// transaction.
func (s *RunStore) CompleteRun(runID string, f *field.Field) error {
	cols, rows := f.Dims()
	now := s.clock.Now().UTC()

	err := retryOnBusy(s.clock, func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO field_points (run_id, row, col, x, y, temperature, stderr)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for r := range rows {
			for c := range cols {
				var se float64
				if f.StdErrs != nil {
					se = f.StdErrs[r][c]
				}
				if _, err := stmt.Exec(runID, r, c, f.X(c), f.Y(r), f.Z(c, r), se); err != nil {
					return err
				}
			}
		}

		res, err := tx.Exec(`
			UPDATE runs
			SET status = ?, cols = ?, rows = ?, point_count = ?, completed_at = ?, elapsed_ms = ?, error = NULL
			WHERE run_id = ?`,
			string(RunComplete), cols, rows, cols*rows, now.UnixNano(), f.Elapsed.Milliseconds(), runID,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrRunNotFound
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("completing run %s: %w", runID, err)
	}
	return nil
}

// FailRun marks a run failed or cancelled and records the cause.
func (s *RunStore) FailRun(runID string, status RunStatus, cause error) error {
	if status != RunFailed && status != RunCancelled {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	var msg string
	if cause != nil {
		msg = cause.Error()
	}
	now := s.clock.Now().UTC()

	var affected int64
	err := retryOnBusy(s.clock, func() error {
		res, err := s.db.Exec(`
			UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE run_id = ?`,
			string(status), msg, now.UnixNano(), runID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failing run %s: %w", runID, err)
	}
	if affected == 0 {
		return fmt.Errorf("failing run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `
	run_id, label, status, width, height,
	temp_bottom, temp_right, temp_left, temp_top,
	options_json, grid_step, cols, rows, point_count,
	error, created_at, completed_at, elapsed_ms`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc rowScanner) (*Run, error) {
	var (
		run         Run
		status      string
		optsJSON    string
		errText     sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)
	t := &run.Domain.Temperatures
	err := sc.Scan(
		&run.RunID, &run.Label, &status, &run.Domain.Width, &run.Domain.Height,
		&t[plate.WallBottom], &t[plate.WallRight], &t[plate.WallLeft], &t[plate.WallTop],
		&optsJSON, &run.GridStep, &run.Cols, &run.Rows, &run.PointCount,
		&errText, &createdAt, &completedAt, &run.ElapsedMS,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(optsJSON), &run.Options); err != nil {
		return nil, fmt.Errorf("decoding options of run %s: %w", run.RunID, err)
	}
	run.Status = RunStatus(status)
	run.Error = errText.String
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	if completedAt.Valid {
		ts := time.Unix(0, completedAt.Int64).UTC()
		run.CompletedAt = &ts
	}
	return &run, nil
}

// GetRun returns the run with the given ID or ErrRunNotFound.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns all runs.
func (s *RunStore) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its points.
func (s *RunStore) DeleteRun(runID string) error {
	var affected int64
	err := retryOnBusy(s.clock, func() error {
		res, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}
	if affected == 0 {
		return fmt.Errorf("deleting run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// LoadField rebuilds the field of a completed run.
func (s *RunStore) LoadField(runID string) (*field.Field, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run.Status != RunComplete {
		return nil, fmt.Errorf("%w: run %s is %s", ErrRunIncomplete, runID, run.Status)
	}

	g := field.Grid{Xs: make([]float64, run.Cols), Ys: make([]float64, run.Rows)}
	f := field.NewField(run.Domain, g)
	f.Options = run.Options
	f.Elapsed = time.Duration(run.ElapsedMS) * time.Millisecond

	rows, err := s.db.Query(`
		SELECT row, col, x, y, temperature, stderr
		FROM field_points WHERE run_id = ? ORDER BY row, col`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying points of run %s: %w", runID, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			r, c       int
			x, y, v, e float64
		)
		if err := rows.Scan(&r, &c, &x, &y, &v, &e); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}
		if r < 0 || r >= run.Rows || c < 0 || c >= run.Cols {
			return nil, fmt.Errorf("point (%d, %d) outside %dx%d grid of run %s", r, c, run.Cols, run.Rows, runID)
		}
		f.Xs[c], f.Ys[r] = x, y
		f.Values[r][c], f.StdErrs[r][c] = v, e
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n != run.PointCount {
		return nil, fmt.Errorf("run %s has %d stored points, expected %d", runID, n, run.PointCount)
	}
	return f, nil
}
