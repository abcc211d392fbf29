package monitor

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func fp(v float64) *float64 {
	return &v
}

func testConfig() MonitorConfig {
	return MonitorConfig{
		Patience:             3,
		OverfitThreshold:     0.1,
		ConvergenceThreshold: 0.001,
		ConvergenceWindow:    3,
	}
}

func TestPatienceResetsOnStrictImprovement(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 0.5, fp(0.50), nil)
	if m.EpochsSinceImprovement() != 0 {
		t.Fatalf("expected counter 0 after first val, got %d", m.EpochsSinceImprovement())
	}

	// Tie does not count as improvement
	m.LogEpoch(2, 0.5, fp(0.50), nil)
	if m.EpochsSinceImprovement() != 1 {
		t.Fatalf("expected counter 1 after tie, got %d", m.EpochsSinceImprovement())
	}

	m.LogEpoch(3, 0.5, fp(0.49), nil)
	if m.EpochsSinceImprovement() != 2 {
		t.Fatalf("expected counter 2 after decline, got %d", m.EpochsSinceImprovement())
	}

	m.LogEpoch(4, 0.5, fp(0.60), nil)
	if m.EpochsSinceImprovement() != 0 {
		t.Fatalf("expected counter reset on improvement, got %d", m.EpochsSinceImprovement())
	}
	if m.BestIteration() != 4 {
		t.Fatalf("expected best iteration 4, got %d", m.BestIteration())
	}
	if best := m.BestValValue(); best == nil || *best != 0.60 {
		t.Fatalf("expected best value 0.60, got %v", best)
	}
}

func TestPatienceIgnoresMissingVal(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 0.5, fp(0.50), nil)
	m.LogEpoch(2, 0.6, nil, nil)
	m.LogEpoch(3, 0.7, nil, nil)

	if m.EpochsSinceImprovement() != 0 {
		t.Fatalf("train-only epochs must not touch the counter, got %d", m.EpochsSinceImprovement())
	}
}

func TestPatienceTriggersEarlyStop(t *testing.T) {
	config := testConfig()
	config.Patience = 2
	config.ConvergenceWindow = 10
	m := NewMonitor(config)

	m.LogEpoch(1, 0.5, fp(0.50), nil)
	m.LogEpoch(2, 0.5, fp(0.49), nil)
	m.LogEpoch(3, 0.5, fp(0.48), nil)

	stop, reason := m.ShouldStop()
	if !stop {
		t.Fatal("expected early stop after patience exhausted")
	}
	if reason != "no improvement for 2 epochs (early stopping)" {
		t.Fatalf("unexpected reason: %s", reason)
	}
}

func TestConvergenceRequiresFullWindow(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 0.5, fp(0.80), nil)
	m.LogEpoch(2, 0.5, fp(0.80), nil)

	converged, reason := m.CheckConvergence()
	if converged {
		t.Fatal("window of 2 must not converge with window size 3")
	}
	if reason != "not enough data for convergence check" {
		t.Fatalf("unexpected reason: %s", reason)
	}
}

func TestConvergenceOnIdenticalValues(t *testing.T) {
	m := NewMonitor(testConfig())

	for i := 1; i <= 3; i++ {
		m.LogEpoch(i, 0.5, fp(0.80), nil)
	}

	converged, reason := m.CheckConvergence()
	if !converged {
		t.Fatalf("identical values must converge: %s", reason)
	}
}

func TestNoConvergenceOnHighVariance(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 0.5, fp(0.10), nil)
	m.LogEpoch(2, 0.5, fp(0.50), nil)
	m.LogEpoch(3, 0.5, fp(0.90), nil)

	converged, _ := m.CheckConvergence()
	if converged {
		t.Fatal("high-variance window must not converge")
	}
}

func TestOverfittingBoundaryIsExclusive(t *testing.T) {
	m := NewMonitor(testConfig())

	// gap exactly at the threshold must not trigger
	m.LogEpoch(1, 0.85, fp(0.75), nil)
	overfitting, _ := m.CheckOverfitting()
	if overfitting {
		t.Fatal("gap equal to threshold must not count as overfitting")
	}

	m.LogEpoch(2, 0.95, fp(0.75), nil)
	overfitting, reason := m.CheckOverfitting()
	if !overfitting {
		t.Fatalf("gap above threshold must count as overfitting: %s", reason)
	}
}

func TestOverfittingNeedsBothStreams(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 0.9, nil, nil)
	overfitting, reason := m.CheckOverfitting()
	if overfitting {
		t.Fatal("train-only history cannot be overfitting")
	}
	if reason != "not enough data for overfitting check" {
		t.Fatalf("unexpected reason: %s", reason)
	}
}

func TestAnomalyNaN(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, math.NaN(), fp(0.5), nil)

	hasAnomaly, issues := m.CheckAnomalies()
	if !hasAnomaly {
		t.Fatal("NaN train value must be an anomaly")
	}
	if issues[0] != "NaN detected in training metric" {
		t.Fatalf("unexpected issue: %s", issues[0])
	}
}

func TestAnomalyInfValidation(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 0.5, fp(math.Inf(1)), nil)

	hasAnomaly, issues := m.CheckAnomalies()
	if !hasAnomaly {
		t.Fatal("Inf val value must be an anomaly")
	}
	found := false
	for _, issue := range issues {
		if issue == "Inf detected in validation metric" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Inf validation issue, got %v", issues)
	}
}

func TestSuddenChangeBoundary(t *testing.T) {
	m := NewMonitor(testConfig())

	// 0.25 → 0.75 is exactly 0.5: not a sudden change
	m.LogEpoch(1, 0.5, fp(0.25), nil)
	m.LogEpoch(2, 0.5, fp(0.75), nil)
	if hasAnomaly, issues := m.CheckAnomalies(); hasAnomaly {
		t.Fatalf("change of exactly 0.5 must not trigger: %v", issues)
	}

	// 0.75 → 0.1 is -0.65: sudden change in either direction
	m.LogEpoch(3, 0.5, fp(0.10), nil)
	hasAnomaly, issues := m.CheckAnomalies()
	if !hasAnomaly {
		t.Fatal("change above 0.5 must trigger")
	}
	if !strings.Contains(issues[0], "sudden metric change") {
		t.Fatalf("unexpected issue: %s", issues[0])
	}
}

func TestAnomalyExplodingTrain(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 2e6, nil, nil)

	hasAnomaly, issues := m.CheckAnomalies()
	if !hasAnomaly {
		t.Fatal("train value past 1e6 must be an anomaly")
	}
	if !strings.Contains(issues[0], "exploding training metric") {
		t.Fatalf("unexpected issue: %s", issues[0])
	}
}

func TestShouldStopPrefersAnomalyOverPatience(t *testing.T) {
	config := testConfig()
	config.Patience = 1
	m := NewMonitor(config)

	m.LogEpoch(1, 0.5, fp(0.50), nil)
	m.LogEpoch(2, 0.5, fp(math.NaN()), nil)

	stop, reason := m.ShouldStop()
	if !stop {
		t.Fatal("expected stop")
	}
	if !strings.HasPrefix(reason, "anomalies detected:") {
		t.Fatalf("anomaly must outrank patience, got: %s", reason)
	}
}

func TestShouldStopContinue(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 0.5, fp(0.50), nil)

	stop, reason := m.ShouldStop()
	if stop {
		t.Fatalf("expected continue, got stop: %s", reason)
	}
	if reason != "training should continue" {
		t.Fatalf("unexpected reason: %s", reason)
	}
}

func TestStatusSnapshot(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 0.60, fp(0.55), fp(0.01))
	m.LogEpoch(2, 0.70, fp(0.65), nil)

	s := m.Status()
	if s.TotalEpochs != 2 {
		t.Fatalf("expected 2 epochs, got %d", s.TotalEpochs)
	}
	if s.BestIteration != 2 {
		t.Fatalf("expected best iteration 2, got %d", s.BestIteration)
	}
	if s.BestValValue == nil || *s.BestValValue != 0.65 {
		t.Fatalf("expected best val 0.65, got %v", s.BestValValue)
	}
	if s.LatestTrainValue == nil || *s.LatestTrainValue != 0.70 {
		t.Fatalf("expected latest train 0.70, got %v", s.LatestTrainValue)
	}
	if s.LatestValValue == nil || *s.LatestValValue != 0.65 {
		t.Fatalf("expected latest val 0.65, got %v", s.LatestValValue)
	}
	// Latest control param falls back to the most recent epoch carrying one
	if s.LatestControlParam == nil || *s.LatestControlParam != 0.01 {
		t.Fatalf("expected control param 0.01, got %v", s.LatestControlParam)
	}
	if s.ShouldStop {
		t.Fatalf("expected continue: %s", s.StopReason)
	}
}

func TestResetClearsEverything(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 0.5, fp(0.50), fp(0.01))
	m.LogEpoch(2, 0.5, fp(0.40), nil)
	m.Reset()

	if len(m.History()) != 0 {
		t.Fatalf("expected empty history after reset, got %d samples", len(m.History()))
	}
	if m.BestValValue() != nil {
		t.Fatal("expected nil best value after reset")
	}
	if m.EpochsSinceImprovement() != 0 {
		t.Fatalf("expected counter 0 after reset, got %d", m.EpochsSinceImprovement())
	}

	s := m.Status()
	if s.TotalEpochs != 0 || s.HasAnomaly || s.ShouldStop {
		t.Fatalf("expected fresh status after reset, got %+v", s)
	}
}

func TestResetRoundTrip(t *testing.T) {
	feed := func(m *Monitor) {
		m.LogEpoch(1, 0.50, fp(0.45), fp(0.01))
		m.LogEpoch(2, 0.60, fp(0.55), nil)
		m.LogEpoch(3, 0.65, fp(0.52), nil)
	}

	reused := NewMonitor(testConfig())
	reused.LogEpoch(1, 0.9, fp(0.1), nil)
	reused.LogEpoch(2, 0.8, fp(0.2), nil)
	reused.Reset()
	feed(reused)

	fresh := NewMonitor(testConfig())
	feed(fresh)

	if !reflect.DeepEqual(reused.Status(), fresh.Status()) {
		t.Fatalf("reset monitor diverged from fresh one:\nreused: %+v\nfresh:  %+v", reused.Status(), fresh.Status())
	}
}

func TestRecommendationsOnOverfitting(t *testing.T) {
	m := NewMonitor(testConfig())

	m.LogEpoch(1, 0.95, fp(0.70), nil)

	recs := m.Recommendations()
	if len(recs) == 0 {
		t.Fatal("expected recommendations for an overfitting run")
	}
	found := false
	for _, r := range recs {
		if strings.Contains(r, "regularization") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected regularization advice, got %v", recs)
	}
}

func TestRecommendationsOnStagnation(t *testing.T) {
	config := testConfig()
	config.Patience = 2
	config.ConvergenceWindow = 10
	m := NewMonitor(config)

	m.LogEpoch(1, 0.5, fp(0.50), nil)
	m.LogEpoch(2, 0.5, fp(0.49), nil)
	m.LogEpoch(3, 0.5, fp(0.48), nil)

	recs := m.Recommendations()
	found := false
	for _, r := range recs {
		if strings.Contains(r, "hyperparameters") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected hyperparameter advice after stagnation, got %v", recs)
	}
}
