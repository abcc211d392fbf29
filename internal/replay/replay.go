package replay

import (
	"time"

	"github.com/danielpatrickdp/experiment-control/internal/metrics"
	"github.com/danielpatrickdp/experiment-control/internal/monitor"
	"github.com/danielpatrickdp/experiment-control/internal/stopping"
)

// #region types
// Epoch is one recorded training iteration for replay.
type Epoch struct {
	Iteration    int
	Train        float64
	Val          *float64
	ControlParam *float64
}

// Experiment is one recorded run: its metric stream plus final metrics.
type Experiment struct {
	Name            string
	Epochs          []Epoch
	FinalMetrics    map[string]float64
	DurationMinutes float64
}

// ReplayConfig bundles monitor and policy configuration for a replay run.
type ReplayConfig struct {
	Monitor monitor.MonitorConfig
	Policy  stopping.Policy
}

// DefaultReplayConfig returns the standard configs for both levels.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Monitor: monitor.DefaultMonitorConfig(),
		Policy:  stopping.DefaultPolicy(),
	}
}

// Result captures the outcome of replaying one experiment through all
// three decision levels.
type Result struct {
	Name      string
	EpochsFed int

	// Level 1: did the run stop before exhausting its stream?
	RunStopped bool
	RunReason  string

	// Level 2 and 3 decisions after the run finished.
	ExperimentDecision stopping.Decision
	CampaignDecision   stopping.Decision
}

// Summary aggregates a replay run.
type Summary struct {
	TotalExperiments int
	RunStops         int
	FinalDecision    stopping.Decision
	Report           stopping.Report
}

// #endregion types

// #region replay
// Replay drives recorded experiments through a fresh monitor and a single
// stopping engine: per-epoch run decisions, the per-experiment fast path,
// then the campaign-level check. The campaign ends at the first stop
// decision from level 2 or 3. Operates entirely in-memory.
func Replay(experiments []Experiment, config ReplayConfig) ([]Result, Summary) {
	engine := stopping.NewEngine(config.Policy)
	mon := monitor.NewMonitor(config.Monitor)

	var history []metrics.ExperimentRecord
	results := make([]Result, 0, len(experiments))

	for _, exp := range experiments {
		mon.Reset()
		res := Result{Name: exp.Name}

		// 1. Run level: feed epochs until the monitor calls a stop.
		for _, ep := range exp.Epochs {
			mon.LogEpoch(ep.Iteration, ep.Train, ep.Val, ep.ControlParam)
			res.EpochsFed++
			if stop, reason := engine.ShouldStopRun(mon); stop {
				res.RunStopped = true
				res.RunReason = reason
				break
			}
		}

		// 2. Experiment level: fast-path performance check.
		res.ExperimentDecision = engine.ShouldStopExperiment(exp.FinalMetrics)

		// 3. Campaign level over the accumulated history.
		history = append(history, metrics.ExperimentRecord{
			Metrics:         exp.FinalMetrics,
			DurationMinutes: exp.DurationMinutes,
		})
		res.CampaignDecision = engine.ShouldStopCampaignAt(history, time.Now())

		results = append(results, res)

		if res.ExperimentDecision.Stop || res.CampaignDecision.Stop {
			break
		}
	}

	return results, summarize(results, engine, history)
}

func summarize(results []Result, engine *stopping.Engine, history []metrics.ExperimentRecord) Summary {
	s := Summary{TotalExperiments: len(results)}
	for _, r := range results {
		if r.RunStopped {
			s.RunStops++
		}
	}
	if len(results) > 0 {
		last := results[len(results)-1]
		s.FinalDecision = last.CampaignDecision
		if last.ExperimentDecision.Stop {
			s.FinalDecision = last.ExperimentDecision
		}
	}
	s.Report = engine.GenerateReport(history)
	return s
}

// #endregion replay
