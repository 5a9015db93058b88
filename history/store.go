// Package history keeps a SQLite record of optimizer runs and of every
// candidate evaluated during successive halving.
package history

import (
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/opgrid/model_selection"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

const ddl = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	estimator    TEXT NOT NULL,
	scoring      TEXT,
	status       TEXT NOT NULL,
	error        TEXT,
	best_params  TEXT,
	best_score   REAL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT
);

CREATE TABLE IF NOT EXISTS candidates (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	iteration       INTEGER NOT NULL,
	resources       INTEGER NOT NULL,
	candidate       INTEGER NOT NULL,
	params          TEXT NOT NULL,
	split_scores    TEXT NOT NULL,
	mean_test_score REAL,
	std_test_score  REAL,
	rank            INTEGER NOT NULL,
	fit_error       TEXT,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS candidates_by_run ON candidates(run_id, iteration);
`

// Status of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one optimizer invocation.
type Run struct {
	ID         string
	Estimator  string
	Scoring    string
	Status     Status
	Error      string
	BestParams map[string]interface{}
	// BestScore is NaN until the run succeeds.
	BestScore  float64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open history db")
	}
	// PRAGMAは接続ごとの設定なので接続を一本に固定する
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pragma")
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pragma fk")
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// StartRun inserts a running run and returns its id.
func (s *Store) StartRun(estimator, scoring string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, estimator, scoring, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, estimator, scoring, string(StatusRunning), now(),
	)
	if err != nil {
		return "", errors.Wrap(err, "insert run")
	}
	return id, nil
}

// FinishRun marks a run succeeded with its winner.
func (s *Store) FinishRun(id string, bestParams map[string]interface{}, bestScore float64) error {
	params, err := json.Marshal(bestParams)
	if err != nil {
		return errors.Wrap(err, "marshal best params")
	}
	return s.finish(id, StatusSucceeded, "", string(params), nullable(bestScore))
}

// FailRun marks a run failed.
func (s *Store) FailRun(id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.finish(id, StatusFailed, msg, nil, nil)
}

func (s *Store) finish(id string, status Status, msg string, params, score interface{}) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = ?, best_params = ?, best_score = ?, finished_at = ?
		 WHERE run_id = ? AND status = ?`,
		string(status), msg, params, score, now(), id, string(StatusRunning),
	)
	if err != nil {
		return errors.Wrapf(err, "update run %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewValueError("history", "no running run with id "+id)
	}
	return nil
}

// nullable stores NaN as NULL.
func nullable(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// encodeScores writes NaN split scores as JSON null.
func encodeScores(scores []float64) (string, error) {
	out := make([]*float64, len(scores))
	for i := range scores {
		if !math.IsNaN(scores[i]) && !math.IsInf(scores[i], 0) {
			out[i] = &scores[i]
		}
	}
	data, err := json.Marshal(out)
	return string(data), err
}

func decodeScores(data string) ([]float64, error) {
	var raw []*float64
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *p
		}
	}
	return out, nil
}

// RecordResults appends the CV results of a run in one transaction.
func (s *Store) RecordResults(runID string, results []model_selection.CVResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO candidates (run_id, iteration, resources, candidate, params, split_scores,
		                         mean_test_score, std_test_score, rank, fit_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for _, r := range results {
		params, err := json.Marshal(r.Params)
		if err != nil {
			return errors.Wrapf(err, "marshal params of candidate %d", r.Candidate)
		}
		scores, err := encodeScores(r.SplitScores)
		if err != nil {
			return errors.Wrap(err, "marshal split scores")
		}
		if _, err := stmt.Exec(runID, r.Iteration, r.Resources, r.Candidate, string(params), scores,
			nullable(r.MeanTestScore), nullable(r.StdTestScore), r.Rank, r.FitError); err != nil {
			return errors.Wrapf(err, "insert candidate %d", r.Candidate)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

const runColumns = `run_id, estimator, scoring, status, error, best_params, best_score, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r                           Run
		scoring, msg, params, ended sql.NullString
		started, status             string
		score                       sql.NullFloat64
	)
	if err := row.Scan(&r.ID, &r.Estimator, &scoring, &status, &msg, &params, &score, &started, &ended); err != nil {
		return Run{}, err
	}
	r.Scoring = scoring.String
	r.Status = Status(status)
	r.Error = msg.String
	r.BestScore = orNaN(score)
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if ended.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, ended.String)
	}
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &r.BestParams); err != nil {
			return Run{}, errors.Wrap(err, "unmarshal best params")
		}
	}
	return r, nil
}

// Run returns one run by id.
func (s *Store) Run(id string) (Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if err != nil {
		return Run{}, errors.Wrapf(err, "get run %s", id)
	}
	return r, nil
}

// Runs lists every run, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY rowid`)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Candidates returns the recorded CV results of a run in evaluation order.
// Numeric hyperparameters come back as float64, as JSON decoding does.
func (s *Store) Candidates(runID string) ([]model_selection.CVResult, error) {
	rows, err := s.db.Query(
		`SELECT iteration, resources, candidate, params, split_scores, mean_test_score, std_test_score, rank, fit_error
		 FROM candidates WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "list candidates")
	}
	defer rows.Close()

	var out []model_selection.CVResult
	for rows.Next() {
		var (
			r              model_selection.CVResult
			params, scores string
			mean, std      sql.NullFloat64
			fitErr         sql.NullString
		)
		if err := rows.Scan(&r.Iteration, &r.Resources, &r.Candidate, &params, &scores, &mean, &std, &r.Rank, &fitErr); err != nil {
			return nil, errors.Wrap(err, "scan candidate")
		}
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return nil, errors.Wrap(err, "unmarshal params")
		}
		if r.SplitScores, err = decodeScores(scores); err != nil {
			return nil, errors.Wrap(err, "unmarshal split scores")
		}
		r.MeanTestScore, r.StdTestScore = orNaN(mean), orNaN(std)
		r.FitError = fitErr.String
		out = append(out, r)
	}
	return out, rows.Err()
}
