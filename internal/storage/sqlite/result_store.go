package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/keizerzilla/latin/internal/recognition"
	"github.com/keizerzilla/latin/internal/timeutil"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("rank run not found")

// Run is one persisted classify invocation.
type Run struct {
	RunID        string `json:"run_id"`
	FeaturesPath string `json:"features_path"`
	CreatedAt    int64  `json:"created_at"` // unix nanoseconds
}

// SummaryRow is the best classifier of one protocol in a run.
type SummaryRow struct {
	Protocol    string  `json:"protocol"`
	Classifier  string  `json:"classifier"`
	RatePercent float64 `json:"rate_percent"`
	TrainRows   int     `json:"train_rows"`
	TestRows    int     `json:"test_rows"`
}

// ClassifierRow is one classifier outcome of one protocol in a run.
type ClassifierRow struct {
	Protocol        string        `json:"protocol"`
	Classifier      string        `json:"classifier"`
	RecognitionRate float64       `json:"recognition_rate"`
	Elapsed         time.Duration `json:"elapsed"`
	Error           string        `json:"error,omitempty"`
}

// ResultStore persists rank runs.
type ResultStore struct {
	db    *DB
	clock timeutil.Clock
}

// NewResultStore returns a store over db stamping runs with clock.
func NewResultStore(db *DB, clock timeutil.Clock) *ResultStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ResultStore{db: db, clock: clock}
}

// SaveRun stores every summary and classifier result of one run in a single
// transaction and returns the generated run id.
func (s *ResultStore) SaveRun(ctx context.Context, featuresPath string, summaries []recognition.Summary) (string, error) {
	runID := uuid.New().String()
	createdAt := s.clock.Now().UnixNano()

	err := retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rank_runs (run_id, features_path, created_at) VALUES (?, ?, ?)`,
			runID, featuresPath, createdAt); err != nil {
			return errors.Wrap(err, "insert run")
		}
		for _, sum := range summaries {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO rank_summaries (run_id, protocol, classifier, rate_percent, train_rows, test_rows)
				VALUES (?, ?, ?, ?, ?, ?)`,
				runID, sum.Protocol, sum.Classifier, sum.RatePercent, sum.TrainRows, sum.TestRows); err != nil {
				return errors.Wrapf(err, "insert summary %s", sum.Protocol)
			}
			for name, res := range sum.Results {
				var msg interface{}
				if res.Err != nil {
					msg = res.Err.Error()
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO classifier_results (run_id, protocol, classifier, recognition_rate, elapsed_ns, error)
					VALUES (?, ?, ?, ?, ?, ?)`,
					runID, sum.Protocol, name, res.RecognitionRate, res.Elapsed.Nanoseconds(), msg); err != nil {
					return errors.Wrapf(err, "insert result %s/%s", sum.Protocol, name)
				}
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// ListRuns returns all runs, newest first.
func (s *ResultStore) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, features_path, created_at FROM rank_runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.FeaturesPath, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run.
func (s *ResultStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, features_path, created_at FROM rank_runs WHERE run_id = ?`, runID).
		Scan(&r.RunID, &r.FeaturesPath, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "%s", runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan run")
	}
	return &r, nil
}

// Summaries returns the per-protocol summaries of a run in protocol order
// of insertion.
func (s *ResultStore) Summaries(ctx context.Context, runID string) ([]SummaryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT protocol, classifier, rate_percent, train_rows, test_rows
		FROM rank_summaries WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query summaries")
	}
	defer rows.Close()

	var out []SummaryRow
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(&r.Protocol, &r.Classifier, &r.RatePercent, &r.TrainRows, &r.TestRows); err != nil {
			return nil, errors.Wrap(err, "scan summary")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClassifierResults returns every classifier outcome of a run ordered by
// protocol then classifier name.
func (s *ResultStore) ClassifierResults(ctx context.Context, runID string) ([]ClassifierRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT protocol, classifier, recognition_rate, elapsed_ns, error
		FROM classifier_results WHERE run_id = ? ORDER BY protocol, classifier`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query classifier results")
	}
	defer rows.Close()

	var out []ClassifierRow
	for rows.Next() {
		var (
			r       ClassifierRow
			elapsed int64
			msg     sql.NullString
		)
		if err := rows.Scan(&r.Protocol, &r.Classifier, &r.RecognitionRate, &elapsed, &msg); err != nil {
			return nil, errors.Wrap(err, "scan classifier result")
		}
		r.Elapsed = time.Duration(elapsed)
		r.Error = msg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its results.
func (s *ResultStore) DeleteRun(ctx context.Context, runID string) error {
	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, table := range []string{"classifier_results", "rank_summaries"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
				return errors.Wrapf(err, "delete %s", table)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM rank_runs WHERE run_id = ?`, runID)
		if err != nil {
			return errors.Wrap(err, "delete run")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		if n == 0 {
			return errors.Wrapf(ErrRunNotFound, "%s", runID)
		}
		return tx.Commit()
	})
}
