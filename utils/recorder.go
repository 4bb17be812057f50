package utils

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"
)

//go:embed recorder_schema.sql
var recorderSchema string

// CycleRecord is one control cycle as persisted by CycleRecorder. Unknown
// sensor readings are stored as NULL.
type CycleRecord struct {
	Cycle          uint64
	At             time.Time
	State          string
	Side           string
	Ranges         [5]*float64 // front, front-left, front-right, back-left, back-right
	TrackMM        float64
	WallDistanceMM *float64
	ErrorMM        float64
	Derivative     float64
	TurningAngle   float64
	Ready          bool
}

// RunSummary aggregates the cycles recorded for one run.
type RunSummary struct {
	RunID       string
	Cycles      int
	ReadyCycles int
	ErrorMean   float64
	ErrorStd    float64
	AngleMean   float64
	AngleStd    float64
	StateCounts map[string]int
}

// CycleRecorder stores per-cycle control records in a SQLite database, one
// run id per recorder.
type CycleRecorder struct {
	mu    sync.Mutex
	db    *sql.DB
	runID string
}

// OpenCycleRecorder opens (or creates) the database at path and starts a run.
// Use ":memory:" for a throwaway database.
func OpenCycleRecorder(path string, started time.Time, notes string) (*CycleRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}
	// a second pooled connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(recorderSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create recorder schema: %w", err)
	}

	runID := uuid.NewString()
	if _, err := db.Exec(`INSERT INTO runs (run_id, started_at_ns, notes) VALUES (?, ?, ?)`,
		runID, started.UnixNano(), notes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return &CycleRecorder{db: db, runID: runID}, nil
}

func (r *CycleRecorder) RunID() string { return r.runID }

func (r *CycleRecorder) Record(rec CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	args := []any{r.runID, int64(rec.Cycle), rec.At.UnixNano(), rec.State, rec.Side}
	for _, v := range rec.Ranges {
		args = append(args, nullable(v))
	}
	args = append(args, rec.TrackMM, nullable(rec.WallDistanceMM), rec.ErrorMM, rec.Derivative, rec.TurningAngle, rec.Ready)

	_, err := r.db.Exec(`
		INSERT INTO cycles (
			run_id, cycle, at_ns, state, side,
			front_mm, front_left_mm, front_right_mm, back_left_mm, back_right_mm,
			track_mm, wall_distance_mm, error_mm, derivative, turning_angle, ready
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("insert cycle %d: %w", rec.Cycle, err)
	}
	return nil
}

// Summary computes the run statistics. Error and angle statistics only cover
// cycles where the width estimate was ready.
func (r *CycleRecorder) Summary() (RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum := RunSummary{RunID: r.runID, StateCounts: map[string]int{}}

	rows, err := r.db.Query(`SELECT state, error_mm, turning_angle, ready FROM cycles WHERE run_id = ? ORDER BY cycle`, r.runID)
	if err != nil {
		return sum, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var errs, angles []float64
	for rows.Next() {
		var (
			state        string
			errMM, angle float64
			ready        bool
		)
		if err := rows.Scan(&state, &errMM, &angle, &ready); err != nil {
			return sum, fmt.Errorf("scan cycle: %w", err)
		}
		sum.Cycles++
		sum.StateCounts[state]++
		if ready {
			sum.ReadyCycles++
			errs = append(errs, errMM)
			angles = append(angles, angle)
		}
	}
	if err := rows.Err(); err != nil {
		return sum, fmt.Errorf("iterate cycles: %w", err)
	}

	if len(errs) > 0 {
		sum.ErrorMean, sum.ErrorStd = meanStd(errs)
		sum.AngleMean, sum.AngleStd = meanStd(angles)
	}
	return sum, nil
}

func (r *CycleRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}

// meanStd is stat.MeanStdDev with a zero deviation for single samples, where
// the unbiased estimator is undefined.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
