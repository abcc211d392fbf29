package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/experiment-control/internal/monitor"
	"github.com/danielpatrickdp/experiment-control/internal/stopping"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Experiments     []FixtureExperiment     `json:"experiments"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig mirrors ReplayConfig with JSON tags.
type FixtureConfig struct {
	Monitor FixtureMonitorConfig `json:"monitor"`
	Policy  FixturePolicy        `json:"policy"`
}

// FixtureMonitorConfig mirrors monitor.MonitorConfig with JSON tags.
type FixtureMonitorConfig struct {
	Patience             int     `json:"patience"`
	OverfitThreshold     float64 `json:"overfitting_threshold"`
	ConvergenceThreshold float64 `json:"convergence_threshold"`
	ConvergenceWindow    int     `json:"convergence_window"`
}

// FixturePolicy mirrors stopping.Policy with JSON tags.
type FixturePolicy struct {
	Performance struct {
		Enabled   bool    `json:"enabled"`
		Metric    string  `json:"metric"`
		Threshold float64 `json:"threshold"`
	} `json:"performance"`
	Improvement struct {
		Enabled               bool    `json:"enabled"`
		MinImprovementPercent float64 `json:"min_improvement_percent"`
		WindowSize            int     `json:"window_size"`
	} `json:"improvement"`
	Convergence struct {
		Enabled     bool    `json:"enabled"`
		MaxVariance float64 `json:"max_variance"`
		WindowSize  int     `json:"window_size"`
	} `json:"convergence"`
	Resources struct {
		Enabled        bool    `json:"enabled"`
		MaxExperiments int     `json:"max_experiments"`
		MaxTimeHours   float64 `json:"max_time_hours"`
	} `json:"resources"`
}

// FixtureEpoch mirrors Epoch with JSON tags. val and control_param are
// optional, matching the monitor's contract.
type FixtureEpoch struct {
	Iteration    int      `json:"iteration"`
	Train        float64  `json:"train"`
	Val          *float64 `json:"val,omitempty"`
	ControlParam *float64 `json:"control_param,omitempty"`
}

// FixtureExperiment mirrors Experiment with JSON tags.
type FixtureExperiment struct {
	Name            string             `json:"name"`
	Epochs          []FixtureEpoch     `json:"epochs"`
	FinalMetrics    map[string]float64 `json:"final_metrics"`
	DurationMinutes float64            `json:"duration_minutes,omitempty"`
}

// FixtureExpectedResult captures the expected campaign action after each
// experiment.
type FixtureExpectedResult struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	return ReplayConfig{
		Monitor: monitor.MonitorConfig{
			Patience:             fc.Monitor.Patience,
			OverfitThreshold:     fc.Monitor.OverfitThreshold,
			ConvergenceThreshold: fc.Monitor.ConvergenceThreshold,
			ConvergenceWindow:    fc.Monitor.ConvergenceWindow,
		},
		Policy: stopping.Policy{
			Performance: stopping.PerformancePolicy{
				Enabled:   fc.Policy.Performance.Enabled,
				Metric:    fc.Policy.Performance.Metric,
				Threshold: fc.Policy.Performance.Threshold,
			},
			Improvement: stopping.ImprovementPolicy{
				Enabled:               fc.Policy.Improvement.Enabled,
				MinImprovementPercent: fc.Policy.Improvement.MinImprovementPercent,
				WindowSize:            fc.Policy.Improvement.WindowSize,
			},
			Convergence: stopping.ConvergencePolicy{
				Enabled:     fc.Policy.Convergence.Enabled,
				MaxVariance: fc.Policy.Convergence.MaxVariance,
				WindowSize:  fc.Policy.Convergence.WindowSize,
			},
			Resources: stopping.ResourcePolicy{
				Enabled:        fc.Policy.Resources.Enabled,
				MaxExperiments: fc.Policy.Resources.MaxExperiments,
				MaxTimeHours:   fc.Policy.Resources.MaxTimeHours,
			},
		},
	}
}

// ToExperiment converts a FixtureExperiment to a domain Experiment.
func (fe *FixtureExperiment) ToExperiment() Experiment {
	epochs := make([]Epoch, len(fe.Epochs))
	for i, ep := range fe.Epochs {
		epochs[i] = Epoch{
			Iteration:    ep.Iteration,
			Train:        ep.Train,
			Val:          ep.Val,
			ControlParam: ep.ControlParam,
		}
	}
	return Experiment{
		Name:            fe.Name,
		Epochs:          epochs,
		FinalMetrics:    fe.FinalMetrics,
		DurationMinutes: fe.DurationMinutes,
	}
}

// #endregion fixture-loader
