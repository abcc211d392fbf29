package stopping

// #region next-action
// NextAction is the recommendation an orchestrator acts on after a
// stopping decision.
type NextAction string

const (
	ActionContinue          NextAction = "CONTINUE"
	ActionStop              NextAction = "STOP"
	ActionStopCampaign      NextAction = "STOP_CAMPAIGN"
	ActionTryDifferentModel NextAction = "TRY_DIFFERENT_MODEL"
)

// #endregion next-action

// #region decision
// Decision is the output of an experiment- or campaign-level evaluation.
type Decision struct {
	Stop   bool
	Reason string
	Action NextAction
}

// #endregion decision

// #region policy
// PerformancePolicy stops the campaign once the target metric crosses
// its threshold.
type PerformancePolicy struct {
	Enabled   bool    `yaml:"enabled"`
	Metric    string  `yaml:"metric"`
	Threshold float64 `yaml:"threshold"`
}

// ImprovementPolicy stops when every recent step improves less than the
// configured percentage.
type ImprovementPolicy struct {
	Enabled               bool    `yaml:"enabled"`
	MinImprovementPercent float64 `yaml:"min_improvement_percent"`
	WindowSize            int     `yaml:"window_size"`
}

// ConvergencePolicy stops when the recent target-metric variance drops
// below the cap.
type ConvergencePolicy struct {
	Enabled     bool    `yaml:"enabled"`
	MaxVariance float64 `yaml:"max_variance"`
	WindowSize  int     `yaml:"window_size"`
}

// ResourcePolicy bounds the campaign by experiment count and wall clock.
// Limits are checked, not enforced: interrupting a long fit is the
// caller's job.
type ResourcePolicy struct {
	Enabled        bool    `yaml:"enabled"`
	MaxExperiments int     `yaml:"max_experiments"`
	MaxTimeHours   float64 `yaml:"max_time_hours"`
}

// Policy bundles the four independently toggleable stopping blocks.
// Read-only after engine construction.
type Policy struct {
	Performance PerformancePolicy `yaml:"performance"`
	Improvement ImprovementPolicy `yaml:"improvement"`
	Convergence ConvergencePolicy `yaml:"convergence"`
	Resources   ResourcePolicy    `yaml:"resources"`
}

// DefaultPolicy returns the standard campaign policy.
func DefaultPolicy() Policy {
	return Policy{
		Performance: PerformancePolicy{Enabled: true, Metric: "f1_score", Threshold: 0.90},
		Improvement: ImprovementPolicy{Enabled: true, MinImprovementPercent: 1.0, WindowSize: 5},
		Convergence: ConvergencePolicy{Enabled: true, MaxVariance: 0.01, WindowSize: 10},
		Resources:   ResourcePolicy{Enabled: true, MaxExperiments: 50, MaxTimeHours: 24},
	}
}

// #endregion policy
