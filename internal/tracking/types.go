package tracking

import "time"

// #region experiment-row
// ExperimentRow is a stored experiment with its identity and timing.
type ExperimentRow struct {
	ExperimentID    string
	Name            string
	Metrics         map[string]float64
	Params          map[string]any
	DurationMinutes float64
	CreatedAt       time.Time
}

// #endregion experiment-row

// #region decision-entry
// DecisionEntry records one stopping decision for provenance. Level is
// "run", "experiment", or "campaign"; ExperimentID may be empty for
// campaign-level entries.
type DecisionEntry struct {
	ExperimentID string
	Level        string
	Stop         bool
	Reason       string
	NextAction   string
	CreatedAt    time.Time
}

// #endregion decision-entry

// #region campaign-stats
// CampaignStats aggregates the stored experiments for reporting.
type CampaignStats struct {
	TotalExperiments int
	MetricsTracked   []string
	BestMetrics      map[string]float64
}

// #endregion campaign-stats
