package monitor

import (
	"fmt"
	"math"
	"strings"

	"github.com/danielpatrickdp/experiment-control/internal/metrics"
)

// #region monitor
// Monitor tracks one training run's metric stream and derives four
// independent verdicts: convergence, overfitting, anomalies, and
// patience-based early stop. Checks are read-only queries over the
// accumulated history; only LogEpoch and Reset mutate state.
//
// "Best" always means maximize. Callers tracking a loss-style metric must
// negate it before logging.
type Monitor struct {
	config MonitorConfig

	samples     []metrics.MetricSample
	trainValues []float64
	valValues   []float64

	bestVal          *float64
	bestIteration    int
	sinceImprovement int

	// Trailing val values, capped at ConvergenceWindow, used only for the
	// variance-based convergence check.
	recentVals []float64
}

// NewMonitor creates a monitor with the given configuration.
func NewMonitor(config MonitorConfig) *Monitor {
	return &Monitor{config: config}
}

// #endregion monitor

// #region log-epoch
// LogEpoch appends one iteration's metrics. val and controlParam may be nil.
// Best-value tracking uses a strictly-greater comparison: a tie does not
// reset the patience counter. Iterations are assumed strictly increasing;
// that is a caller contract, not validated here.
func (m *Monitor) LogEpoch(iteration int, train float64, val, controlParam *float64) {
	sample := metrics.MetricSample{
		Iteration:    iteration,
		TrainValue:   train,
		ValValue:     val,
		ControlParam: controlParam,
	}
	m.samples = append(m.samples, sample)
	m.trainValues = append(m.trainValues, train)

	if val != nil {
		v := *val
		m.valValues = append(m.valValues, v)

		m.recentVals = append(m.recentVals, v)
		if len(m.recentVals) > m.config.ConvergenceWindow {
			m.recentVals = m.recentVals[1:]
		}

		if m.bestVal == nil || v > *m.bestVal {
			best := v
			m.bestVal = &best
			m.bestIteration = iteration
			m.sinceImprovement = 0
		} else {
			m.sinceImprovement++
		}
	}
}

// #endregion log-epoch

// #region convergence
// CheckConvergence reports whether the trailing val-value window has settled.
// The window must be full; a shorter history yields a soft "not enough data"
// result regardless of values.
func (m *Monitor) CheckConvergence() (bool, string) {
	if len(m.recentVals) < m.config.ConvergenceWindow {
		return false, "not enough data for convergence check"
	}

	variance, ok := metrics.PopulationVariance(m.recentVals)
	if !ok {
		return false, "not enough data for convergence check"
	}

	if variance < m.config.ConvergenceThreshold {
		return true, fmt.Sprintf("converged: variance %.6f < threshold %g", variance, m.config.ConvergenceThreshold)
	}
	return false, fmt.Sprintf("not converged: variance %.6f >= threshold %g", variance, m.config.ConvergenceThreshold)
}

// #endregion convergence

// #region overfitting
// CheckOverfitting compares the most recent train and val values. The gap
// direction assumes higher-is-better metrics where train exceeds val under
// overfitting; for loss-style metrics the sign inverts and this check would
// misread underfitting, so the caller must match orientation. The boundary
// is exclusive: a gap equal to the threshold is not overfitting.
func (m *Monitor) CheckOverfitting() (bool, string) {
	if len(m.trainValues) == 0 || len(m.valValues) == 0 {
		return false, "not enough data for overfitting check"
	}

	gap := m.trainValues[len(m.trainValues)-1] - m.valValues[len(m.valValues)-1]

	if gap > m.config.OverfitThreshold {
		return true, fmt.Sprintf("overfitting detected: train-val gap %.4f > threshold %g", gap, m.config.OverfitThreshold)
	}
	return false, fmt.Sprintf("no overfitting: train-val gap %.4f <= threshold %g", gap, m.config.OverfitThreshold)
}

// #endregion overfitting

// #region anomalies
// Absolute thresholds for the anomaly scan. The sudden-change cutoff is
// scale-dependent: it fits metrics bounded in [0,1] and will misfire for
// raw loss values. Known limitation, kept deliberately.
const (
	suddenChangeThreshold   = 0.5
	explodingValueThreshold = 1e6
)

// CheckAnomalies scans the latest sample(s) for numeric trouble: NaN or Inf
// values, a single-step val change whose magnitude exceeds the sudden-change
// threshold, and a train value past the exploding cutoff. All co-occurring
// issues are reported. Anomalies are detected and surfaced, never raised:
// the monitor has to stay live to report the value that would otherwise
// crash the loop.
func (m *Monitor) CheckAnomalies() (bool, []string) {
	var issues []string

	if len(m.trainValues) > 0 {
		latest := m.trainValues[len(m.trainValues)-1]
		if math.IsNaN(latest) {
			issues = append(issues, "NaN detected in training metric")
		}
		if math.IsInf(latest, 0) {
			issues = append(issues, "Inf detected in training metric")
		}
	}

	if len(m.valValues) > 0 {
		latest := m.valValues[len(m.valValues)-1]
		if math.IsNaN(latest) {
			issues = append(issues, "NaN detected in validation metric")
		}
		if math.IsInf(latest, 0) {
			issues = append(issues, "Inf detected in validation metric")
		}
	}

	if len(m.valValues) >= 2 {
		change := m.valValues[len(m.valValues)-1] - m.valValues[len(m.valValues)-2]
		if math.Abs(change) > suddenChangeThreshold {
			issues = append(issues, fmt.Sprintf("sudden metric change: %.4f", change))
		}
	}

	if len(m.trainValues) > 0 && math.Abs(m.trainValues[len(m.trainValues)-1]) > explodingValueThreshold {
		issues = append(issues, fmt.Sprintf("exploding training metric: %.2e", m.trainValues[len(m.trainValues)-1]))
	}

	return len(issues) > 0, issues
}

// #endregion anomalies

// #region should-stop
// ShouldStop evaluates the stop conditions in fixed priority order:
// anomalies first (most severe), then convergence, then patience
// exhaustion. The first condition that fires names the reason.
func (m *Monitor) ShouldStop() (bool, string) {
	if hasAnomaly, issues := m.CheckAnomalies(); hasAnomaly {
		return true, fmt.Sprintf("anomalies detected: %s", strings.Join(issues, ", "))
	}

	if converged, reason := m.CheckConvergence(); converged {
		return true, reason
	}

	if m.sinceImprovement >= m.config.Patience {
		return true, fmt.Sprintf("no improvement for %d epochs (early stopping)", m.config.Patience)
	}

	return false, "training should continue"
}

// #endregion should-stop

// #region status
// Status snapshots every check plus the latest raw values.
func (m *Monitor) Status() Status {
	converged, convReason := m.CheckConvergence()
	overfitting, overfitReason := m.CheckOverfitting()
	hasAnomaly, issues := m.CheckAnomalies()
	stop, stopReason := m.ShouldStop()

	s := Status{
		TotalEpochs:            len(m.samples),
		BestIteration:          m.bestIteration,
		EpochsSinceImprovement: m.sinceImprovement,
		Converged:              converged,
		ConvergedReason:        convReason,
		Overfitting:            overfitting,
		OverfitReason:          overfitReason,
		HasAnomaly:             hasAnomaly,
		AnomalyIssues:          issues,
		ShouldStop:             stop,
		StopReason:             stopReason,
	}

	if m.bestVal != nil {
		best := *m.bestVal
		s.BestValValue = &best
	}
	if len(m.trainValues) > 0 {
		latest := m.trainValues[len(m.trainValues)-1]
		s.LatestTrainValue = &latest
	}
	if len(m.valValues) > 0 {
		latest := m.valValues[len(m.valValues)-1]
		s.LatestValValue = &latest
	}
	for i := len(m.samples) - 1; i >= 0; i-- {
		if m.samples[i].ControlParam != nil {
			cp := *m.samples[i].ControlParam
			s.LatestControlParam = &cp
			break
		}
	}

	return s
}

// #endregion status

// #region accessors
// EpochsSinceImprovement returns the current patience counter.
func (m *Monitor) EpochsSinceImprovement() int {
	return m.sinceImprovement
}

// BestValValue returns the best val value seen, or nil if none was logged.
func (m *Monitor) BestValValue() *float64 {
	if m.bestVal == nil {
		return nil
	}
	best := *m.bestVal
	return &best
}

// BestIteration returns the iteration that produced the best val value.
func (m *Monitor) BestIteration() int {
	return m.bestIteration
}

// History returns the logged samples. Callers must not mutate the slice.
func (m *Monitor) History() []metrics.MetricSample {
	return m.samples
}

// #endregion accessors

// #region reset
// Reset clears all history so the monitor can serve a fresh run.
func (m *Monitor) Reset() {
	m.samples = nil
	m.trainValues = nil
	m.valValues = nil
	m.bestVal = nil
	m.bestIteration = 0
	m.sinceImprovement = 0
	m.recentVals = nil
}

// #endregion reset
