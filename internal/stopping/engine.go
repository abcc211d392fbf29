package stopping

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/experiment-control/internal/metrics"
	"github.com/danielpatrickdp/experiment-control/internal/monitor"
)

// #region engine
// Engine evaluates stopping decisions at three escalating levels: a single
// training run, a finished experiment, and the whole campaign. The campaign
// clock starts at construction; the policy is read-only afterwards.
//
// Campaign history is owned by the caller and passed in per call — the
// engine never stores or mutates it.
type Engine struct {
	policy        Policy
	campaignStart time.Time
}

// NewEngine creates an engine with the given policy and starts the
// campaign clock.
func NewEngine(policy Policy) *Engine {
	return &Engine{
		policy:        policy,
		campaignStart: time.Now(),
	}
}

// CampaignStart returns the timestamp captured at construction.
func (e *Engine) CampaignStart() time.Time {
	return e.campaignStart
}

// targetMetric resolves the metric name used by the metric-dependent
// checks, falling back to f1_score when unconfigured.
func (e *Engine) targetMetric() string {
	if e.policy.Performance.Metric != "" {
		return e.policy.Performance.Metric
	}
	return "f1_score"
}

// #endregion engine

// #region level-1
// ShouldStopRun is the level-1 decision: it delegates directly to the
// run's monitor. No additional logic at this level.
func (e *Engine) ShouldStopRun(m *monitor.Monitor) (bool, string) {
	return m.ShouldStop()
}

// #endregion level-1

// #region level-2
// ShouldStopExperiment is the level-2 decision for a just-finished run.
// It checks only the performance block as a fast path: hitting the target
// short-circuits the campaign before the full level-3 evaluation.
func (e *Engine) ShouldStopExperiment(finalMetrics map[string]float64) Decision {
	perf := e.policy.Performance
	if perf.Enabled {
		if value, ok := finalMetrics[e.targetMetric()]; ok && value >= perf.Threshold {
			return Decision{
				Stop:   true,
				Reason: fmt.Sprintf("performance threshold achieved: %s=%.4f >= %g", e.targetMetric(), value, perf.Threshold),
				Action: ActionStopCampaign,
			}
		}
	}

	return Decision{Stop: false, Reason: "experiment completed successfully", Action: ActionContinue}
}

// #endregion level-2

// #region level-3
// ShouldStopCampaign is the level-3 decision over the full experiment
// history, evaluated against the wall clock.
func (e *Engine) ShouldStopCampaign(history []metrics.ExperimentRecord) Decision {
	return e.ShouldStopCampaignAt(history, time.Now())
}

// ShouldStopCampaignAt evaluates the campaign decision at an explicit
// timestamp. Blocks run in fixed order — performance, improvement,
// convergence, resources — and the first match wins. Swapping the order
// would change which action a caller sees when several conditions hold
// at once, so the order is part of the contract.
func (e *Engine) ShouldStopCampaignAt(history []metrics.ExperimentRecord, now time.Time) Decision {
	if len(history) == 0 {
		return Decision{Stop: false, Reason: "no experiments yet", Action: ActionContinue}
	}

	// 1. Performance: any historical experiment hitting the target stops
	// the campaign, not just the latest one.
	if perf := e.policy.Performance; perf.Enabled {
		for _, exp := range history {
			if value, ok := exp.Metric(e.targetMetric()); ok && value >= perf.Threshold {
				return Decision{
					Stop:   true,
					Reason: fmt.Sprintf("target performance achieved: %s=%.4f >= %g", e.targetMetric(), value, perf.Threshold),
					Action: ActionStop,
				}
			}
		}
	}

	// 2. Improvement rate
	if imp := e.policy.Improvement; imp.Enabled && len(history) >= imp.WindowSize {
		if stop, reason := e.checkImprovementRate(history, imp.MinImprovementPercent, imp.WindowSize); stop {
			return Decision{Stop: true, Reason: reason, Action: ActionTryDifferentModel}
		}
	}

	// 3. Convergence
	if conv := e.policy.Convergence; conv.Enabled && len(history) >= conv.WindowSize {
		if stop, reason := e.checkConvergence(history, conv.MaxVariance, conv.WindowSize); stop {
			return Decision{Stop: true, Reason: reason, Action: ActionStop}
		}
	}

	// 4. Resource limits
	if res := e.policy.Resources; res.Enabled {
		if res.MaxExperiments > 0 && len(history) >= res.MaxExperiments {
			return Decision{
				Stop:   true,
				Reason: fmt.Sprintf("maximum experiments reached: %d >= %d", len(history), res.MaxExperiments),
				Action: ActionStop,
			}
		}
		if res.MaxTimeHours > 0 {
			elapsed := now.Sub(e.campaignStart).Hours()
			if elapsed >= res.MaxTimeHours {
				return Decision{
					Stop:   true,
					Reason: fmt.Sprintf("maximum time exceeded: %.1fh >= %gh", elapsed, res.MaxTimeHours),
					Action: ActionStop,
				}
			}
		}
	}

	return Decision{Stop: false, Reason: "continue experimentation", Action: ActionContinue}
}

// #endregion level-3

// #region improvement-check
// checkImprovementRate looks at the last windowSize experiments and stops
// when every computed step-to-step change falls below the minimum
// percentage. Fewer than 2 valid values means the check is skipped, not
// an error; non-positive denominators are skipped inside PercentChanges.
func (e *Engine) checkImprovementRate(history []metrics.ExperimentRecord, minImprovementPct float64, windowSize int) (bool, string) {
	recent := history[len(history)-windowSize:]
	values := metrics.ExtractMetric(recent, e.targetMetric())

	if len(values) < 2 {
		return false, "not enough data for improvement check"
	}

	changes := metrics.PercentChanges(values)
	if len(changes) == 0 {
		return false, "not enough data for improvement check"
	}

	for _, change := range changes {
		if change >= minImprovementPct {
			return false, "improvement rate acceptable"
		}
	}

	return true, fmt.Sprintf("low improvement rate: all improvements < %g%% in last %d experiments", minImprovementPct, windowSize)
}

// #endregion improvement-check

// #region convergence-check
// checkConvergence computes the population variance of the last windowSize
// target-metric values. Records missing the metric shrink the window; a
// short window short-circuits to "not enough data".
func (e *Engine) checkConvergence(history []metrics.ExperimentRecord, maxVariance float64, windowSize int) (bool, string) {
	recent := history[len(history)-windowSize:]
	values := metrics.ExtractMetric(recent, e.targetMetric())

	if len(values) < windowSize {
		return false, "not enough data for convergence check"
	}

	variance, ok := metrics.PopulationVariance(values)
	if !ok {
		return false, "not enough data for convergence check"
	}

	if variance < maxVariance {
		return true, fmt.Sprintf("performance converged: variance %.6f < %g over %d experiments", variance, maxVariance, windowSize)
	}
	return false, fmt.Sprintf("not converged: variance %.6f >= %g", variance, maxVariance)
}

// #endregion convergence-check

// #region resource-limits
// EvaluateResourceLimits reports every exceeded resource limit rather
// than the first, for diagnostics and reporting.
func (e *Engine) EvaluateResourceLimits(numExperiments int, now time.Time) (bool, []string) {
	var reasons []string
	res := e.policy.Resources

	if res.MaxExperiments > 0 && numExperiments >= res.MaxExperiments {
		reasons = append(reasons, fmt.Sprintf("max experiments: %d >= %d", numExperiments, res.MaxExperiments))
	}
	if res.MaxTimeHours > 0 {
		elapsed := now.Sub(e.campaignStart).Hours()
		if elapsed >= res.MaxTimeHours {
			reasons = append(reasons, fmt.Sprintf("max time: %.1fh >= %gh", elapsed, res.MaxTimeHours))
		}
	}

	return len(reasons) > 0, reasons
}

// #endregion resource-limits

// #region best-experiment
// BestExperiment returns the record with the highest value of metricName
// (the target metric when empty). Records missing the metric are excluded;
// nil means no record carries it.
func (e *Engine) BestExperiment(history []metrics.ExperimentRecord, metricName string) *metrics.ExperimentRecord {
	if metricName == "" {
		metricName = e.targetMetric()
	}

	var best *metrics.ExperimentRecord
	var bestValue float64
	for i := range history {
		value, ok := history[i].Metric(metricName)
		if !ok {
			continue
		}
		if best == nil || value > bestValue {
			best = &history[i]
			bestValue = value
		}
	}
	return best
}

// #endregion best-experiment
