package tracking

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/experiment-control/internal/metrics"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	experiment_id    TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	metrics_json     TEXT NOT NULL,
	params_json      TEXT,
	duration_minutes REAL,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS epoch_metrics (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id TEXT NOT NULL,
	iteration     INTEGER NOT NULL,
	train_value   REAL NOT NULL,
	val_value     REAL,
	control_param REAL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (experiment_id) REFERENCES experiments(experiment_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id TEXT,
	level         TEXT NOT NULL,
	should_stop   INTEGER NOT NULL,
	reason        TEXT,
	next_action   TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store persists experiments, per-epoch metrics, and stopping decisions
// in SQLite. The decision engine itself never touches the store: callers
// record outcomes here and feed History() back into the engine.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by inspection tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region record-experiment
// RecordExperiment stores a finished experiment and returns its generated
// ID. The record is written once and never updated.
func (s *Store) RecordExperiment(name string, rec metrics.ExperimentRecord) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}

	var paramsPtr interface{}
	if len(rec.Metadata) > 0 {
		paramsJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return "", fmt.Errorf("marshal params: %w", err)
		}
		paramsPtr = string(paramsJSON)
	}

	var durationPtr interface{}
	if rec.DurationMinutes > 0 {
		durationPtr = rec.DurationMinutes
	}

	_, err = s.db.Exec(
		`INSERT INTO experiments (experiment_id, name, metrics_json, params_json, duration_minutes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, string(metricsJSON), paramsPtr, durationPtr, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert experiment: %w", err)
	}

	return id, nil
}

// #endregion record-experiment

// #region record-epochs
// RecordEpochs stores a run's per-iteration samples under an experiment.
func (s *Store) RecordEpochs(experimentID string, samples []metrics.MetricSample) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, sample := range samples {
		var valPtr, controlPtr interface{}
		if sample.ValValue != nil {
			valPtr = *sample.ValValue
		}
		if sample.ControlParam != nil {
			controlPtr = *sample.ControlParam
		}
		_, err := tx.Exec(
			`INSERT INTO epoch_metrics (experiment_id, iteration, train_value, val_value, control_param, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			experimentID, sample.Iteration, sample.TrainValue, valPtr, controlPtr, now,
		)
		if err != nil {
			return fmt.Errorf("insert epoch %d: %w", sample.Iteration, err)
		}
	}

	return tx.Commit()
}

// #endregion record-epochs

// #region log-decision
// LogDecision appends a stopping decision to the provenance log.
func (s *Store) LogDecision(entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	stop := 0
	if entry.Stop {
		stop = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO decision_log (experiment_id, level, should_stop, reason, next_action, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.ExperimentID),
		entry.Level,
		stop,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.NextAction),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region history
// History returns the stored experiments in insert order, shaped as the
// engine's campaign-history input.
func (s *Store) History() ([]metrics.ExperimentRecord, error) {
	rows, err := s.listRows(0)
	if err != nil {
		return nil, err
	}

	history := make([]metrics.ExperimentRecord, len(rows))
	for i, row := range rows {
		history[i] = metrics.ExperimentRecord{
			Metrics:         row.Metrics,
			DurationMinutes: row.DurationMinutes,
			Metadata:        row.Params,
		}
	}
	return history, nil
}

// ListExperiments returns up to limit stored experiments in insert order
// (all of them when limit is 0).
func (s *Store) ListExperiments(limit int) ([]ExperimentRow, error) {
	return s.listRows(limit)
}

func (s *Store) listRows(limit int) ([]ExperimentRow, error) {
	query := `SELECT experiment_id, name, metrics_json, params_json, duration_minutes, created_at
	          FROM experiments ORDER BY created_at ASC, experiment_id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	var records []ExperimentRow
	for rows.Next() {
		var row ExperimentRow
		var metricsJSON string
		var paramsJSON sql.NullString
		var duration sql.NullFloat64
		var createdStr string

		if err := rows.Scan(&row.ExperimentID, &row.Name, &metricsJSON, &paramsJSON, &duration, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(metricsJSON), &row.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
		if paramsJSON.Valid {
			if err := json.Unmarshal([]byte(paramsJSON.String), &row.Params); err != nil {
				return nil, fmt.Errorf("unmarshal params: %w", err)
			}
		}
		if duration.Valid {
			row.DurationMinutes = duration.Float64
		}
		row.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, row)
	}
	return records, rows.Err()
}

// #endregion history

// #region stats
// Stats aggregates the stored experiments: which metrics were tracked and
// the best value seen for each.
func (s *Store) Stats() (CampaignStats, error) {
	rows, err := s.listRows(0)
	if err != nil {
		return CampaignStats{}, err
	}

	best := make(map[string]float64)
	for _, row := range rows {
		for name, value := range row.Metrics {
			if existing, ok := best[name]; !ok || value > existing {
				best[name] = value
			}
		}
	}

	tracked := make([]string, 0, len(best))
	for name := range best {
		tracked = append(tracked, name)
	}
	sort.Strings(tracked)

	return CampaignStats{
		TotalExperiments: len(rows),
		MetricsTracked:   tracked,
		BestMetrics:      best,
	}, nil
}

// #endregion stats

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
