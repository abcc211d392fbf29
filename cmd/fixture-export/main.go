package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/experiment-control/internal/config"
	"github.com/danielpatrickdp/experiment-control/internal/replay"
	"github.com/danielpatrickdp/experiment-control/internal/tracking"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to control.db")
	last := flag.Int("last", 10, "number of most recent experiments to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	configPath := flag.String("config", "", "path to control.yaml (defaults to discovery)")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/control.db --out path/to/fixture.json [--last N] [--config path]")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := run(*dbPath, *last, *outPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadOrDefault()
}

// #endregion main

// #region extract

func run(dbPath string, last int, outPath string, cfg config.Config) error {
	store, err := tracking.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	rows, err := store.ListExperiments(0)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no experiments found in %s", dbPath)
	}
	if last > 0 && len(rows) > last {
		rows = rows[len(rows)-last:]
	}

	experiments := make([]replay.FixtureExperiment, 0, len(rows))
	expected := make([]replay.FixtureExpectedResult, 0, len(rows))
	for _, row := range rows {
		epochs, err := loadEpochs(store.DB(), row.ExperimentID)
		if err != nil {
			return err
		}

		experiments = append(experiments, replay.FixtureExperiment{
			Name:            row.Name,
			Epochs:          epochs,
			FinalMetrics:    row.Metrics,
			DurationMinutes: row.DurationMinutes,
		})

		action, err := loadExpectedAction(store.DB(), row.ExperimentID)
		if err != nil {
			return err
		}
		if action != "" {
			expected = append(expected, replay.FixtureExpectedResult{
				Name:   row.Name,
				Action: action,
			})
		}
	}

	fixture := replay.Fixture{
		Description:     fmt.Sprintf("campaign export: %d experiments from %s", len(experiments), dbPath),
		Config:          fixtureConfig(cfg),
		Experiments:     experiments,
		ExpectedResults: expected,
	}

	return writeFixture(fixture, outPath)
}

// loadEpochs reads an experiment's recorded metric stream in iteration order.
func loadEpochs(db *sql.DB, experimentID string) ([]replay.FixtureEpoch, error) {
	rows, err := db.Query(
		`SELECT iteration, train_value, val_value, control_param
		 FROM epoch_metrics WHERE experiment_id = ? ORDER BY iteration ASC`,
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query epochs: %w", err)
	}
	defer rows.Close()

	var epochs []replay.FixtureEpoch
	for rows.Next() {
		var ep replay.FixtureEpoch
		var val, control sql.NullFloat64
		if err := rows.Scan(&ep.Iteration, &ep.Train, &val, &control); err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		if val.Valid {
			v := val.Float64
			ep.Val = &v
		}
		if control.Valid {
			c := control.Float64
			ep.ControlParam = &c
		}
		epochs = append(epochs, ep)
	}
	return epochs, rows.Err()
}

// loadExpectedAction derives the recorded action for an experiment: the
// experiment-level decision when it stopped, otherwise the campaign-level
// one. Experiments without logged decisions get no expectation row.
func loadExpectedAction(db *sql.DB, experimentID string) (string, error) {
	var stop int
	var action sql.NullString
	err := db.QueryRow(
		`SELECT should_stop, next_action FROM decision_log
		 WHERE experiment_id = ? AND level = 'experiment'
		 ORDER BY created_at DESC LIMIT 1`,
		experimentID,
	).Scan(&stop, &action)
	if err == nil && stop == 1 && action.Valid {
		return action.String, nil
	}
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("query experiment decision: %w", err)
	}

	err = db.QueryRow(
		`SELECT next_action FROM decision_log
		 WHERE experiment_id = ? AND level = 'campaign'
		 ORDER BY created_at DESC LIMIT 1`,
		experimentID,
	).Scan(&action)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query campaign decision: %w", err)
	}
	if action.Valid {
		return action.String, nil
	}
	return "", nil
}

// #endregion extract

// #region output

func fixtureConfig(cfg config.Config) replay.FixtureConfig {
	fc := replay.FixtureConfig{
		Monitor: replay.FixtureMonitorConfig{
			Patience:             cfg.Monitor.Patience,
			OverfitThreshold:     cfg.Monitor.OverfitThreshold,
			ConvergenceThreshold: cfg.Monitor.ConvergenceThreshold,
			ConvergenceWindow:    cfg.Monitor.ConvergenceWindow,
		},
	}
	fc.Policy.Performance.Enabled = cfg.Stopping.Performance.Enabled
	fc.Policy.Performance.Metric = cfg.Stopping.Performance.Metric
	fc.Policy.Performance.Threshold = cfg.Stopping.Performance.Threshold
	fc.Policy.Improvement.Enabled = cfg.Stopping.Improvement.Enabled
	fc.Policy.Improvement.MinImprovementPercent = cfg.Stopping.Improvement.MinImprovementPercent
	fc.Policy.Improvement.WindowSize = cfg.Stopping.Improvement.WindowSize
	fc.Policy.Convergence.Enabled = cfg.Stopping.Convergence.Enabled
	fc.Policy.Convergence.MaxVariance = cfg.Stopping.Convergence.MaxVariance
	fc.Policy.Convergence.WindowSize = cfg.Stopping.Convergence.WindowSize
	fc.Policy.Resources.Enabled = cfg.Stopping.Resources.Enabled
	fc.Policy.Resources.MaxExperiments = cfg.Stopping.Resources.MaxExperiments
	fc.Policy.Resources.MaxTimeHours = cfg.Stopping.Resources.MaxTimeHours
	return fc
}

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote fixture to %s (%d bytes, %d experiments)\n", outPath, len(data), len(fixture.Experiments))
	return nil
}

// #endregion output
