package monitor

// #region monitor-config
// MonitorConfig holds thresholds for per-run monitoring decisions.
type MonitorConfig struct {
	Patience             int     `yaml:"patience"`              // epochs without improvement before early stop
	OverfitThreshold     float64 `yaml:"overfitting_threshold"` // max acceptable train-val gap
	ConvergenceThreshold float64 `yaml:"convergence_threshold"` // variance below this means converged
	ConvergenceWindow    int     `yaml:"convergence_window"`    // trailing window size for the variance check
}

// DefaultMonitorConfig returns the standard monitoring thresholds.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Patience:             10,
		OverfitThreshold:     0.1,
		ConvergenceThreshold: 0.001,
		ConvergenceWindow:    10,
	}
}

// #endregion monitor-config

// #region status
// Status is a point-in-time snapshot of every monitor check plus the latest
// raw values. Built for external reporting; taking one has no side effects.
type Status struct {
	TotalEpochs            int
	BestIteration          int
	BestValValue           *float64
	EpochsSinceImprovement int

	Converged        bool
	ConvergedReason  string
	Overfitting      bool
	OverfitReason    string
	HasAnomaly       bool
	AnomalyIssues    []string
	ShouldStop       bool
	StopReason       string

	LatestTrainValue   *float64
	LatestValValue     *float64
	LatestControlParam *float64
}

// #endregion status
