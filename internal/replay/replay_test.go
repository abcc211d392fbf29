package replay

import (
	"math"
	"strings"
	"testing"
)

func fp(v float64) *float64 {
	return &v
}

func risingEpochs(n int, start, step float64) []Epoch {
	epochs := make([]Epoch, n)
	for i := 0; i < n; i++ {
		v := start + float64(i)*step
		epochs[i] = Epoch{Iteration: i + 1, Train: v + 0.02, Val: fp(v)}
	}
	return epochs
}

func TestReplayStopsOnExperimentPerformance(t *testing.T) {
	experiments := []Experiment{
		{
			Name:         "baseline",
			Epochs:       risingEpochs(3, 0.50, 0.01),
			FinalMetrics: map[string]float64{"f1_score": 0.60},
		},
		{
			Name:         "tuned",
			Epochs:       risingEpochs(3, 0.80, 0.01),
			FinalMetrics: map[string]float64{"f1_score": 0.95},
		},
		{
			Name:         "never-reached",
			Epochs:       risingEpochs(3, 0.50, 0.01),
			FinalMetrics: map[string]float64{"f1_score": 0.55},
		},
	}

	results, summary := Replay(experiments, DefaultReplayConfig())

	if len(results) != 2 {
		t.Fatalf("expected replay to stop after 2 experiments, got %d", len(results))
	}
	last := results[1]
	if !last.ExperimentDecision.Stop {
		t.Fatalf("expected experiment-level stop at 0.95: %s", last.ExperimentDecision.Reason)
	}
	if last.ExperimentDecision.Action != "STOP_CAMPAIGN" {
		t.Fatalf("unexpected action %s", last.ExperimentDecision.Action)
	}
	if summary.TotalExperiments != 2 {
		t.Fatalf("expected 2 experiments in summary, got %d", summary.TotalExperiments)
	}
	if !summary.FinalDecision.Stop {
		t.Fatal("expected final stop decision")
	}
	if summary.Report.Stats.BestValue == nil || *summary.Report.Stats.BestValue != 0.95 {
		t.Fatalf("expected best 0.95, got %v", summary.Report.Stats.BestValue)
	}
}

func TestReplayRunStopsOnAnomaly(t *testing.T) {
	experiments := []Experiment{
		{
			Name: "diverging",
			Epochs: []Epoch{
				{Iteration: 1, Train: 0.50, Val: fp(0.45)},
				{Iteration: 2, Train: math.NaN(), Val: fp(0.46)},
				{Iteration: 3, Train: 0.55, Val: fp(0.47)},
			},
			FinalMetrics: map[string]float64{"f1_score": 0.40},
		},
	}

	results, summary := Replay(experiments, DefaultReplayConfig())

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if !r.RunStopped {
		t.Fatal("expected run-level stop on NaN")
	}
	if r.EpochsFed != 2 {
		t.Fatalf("expected stop after epoch 2, got %d epochs fed", r.EpochsFed)
	}
	if !strings.Contains(r.RunReason, "anomalies detected") {
		t.Fatalf("unexpected run reason: %s", r.RunReason)
	}
	if summary.RunStops != 1 {
		t.Fatalf("expected 1 run stop, got %d", summary.RunStops)
	}
}

func TestReplayContinuesBelowAllThresholds(t *testing.T) {
	config := DefaultReplayConfig()
	config.Policy.Resources.MaxExperiments = 10

	experiments := []Experiment{
		{
			Name:         "first",
			Epochs:       risingEpochs(3, 0.40, 0.05),
			FinalMetrics: map[string]float64{"f1_score": 0.55},
		},
		{
			Name:         "second",
			Epochs:       risingEpochs(3, 0.45, 0.05),
			FinalMetrics: map[string]float64{"f1_score": 0.62},
		},
	}

	results, summary := Replay(experiments, config)

	if len(results) != 2 {
		t.Fatalf("expected both experiments to replay, got %d", len(results))
	}
	if summary.FinalDecision.Stop {
		t.Fatalf("expected campaign to continue: %s", summary.FinalDecision.Reason)
	}
	if summary.FinalDecision.Reason != "continue experimentation" {
		t.Fatalf("unexpected reason: %s", summary.FinalDecision.Reason)
	}
}

func TestReplayMonitorResetBetweenExperiments(t *testing.T) {
	// The first experiment exhausts patience; the second must start fresh
	// and run its full stream.
	config := DefaultReplayConfig()
	config.Monitor.Patience = 2

	flat := make([]Epoch, 4)
	for i := 0; i < 4; i++ {
		flat[i] = Epoch{Iteration: i + 1, Train: 0.50, Val: fp(0.50 - float64(i)*0.01)}
	}

	experiments := []Experiment{
		{Name: "stalls", Epochs: flat, FinalMetrics: map[string]float64{"f1_score": 0.50}},
		{Name: "improves", Epochs: risingEpochs(4, 0.40, 0.05), FinalMetrics: map[string]float64{"f1_score": 0.60}},
	}

	results, _ := Replay(experiments, config)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].RunStopped {
		t.Fatal("expected first run to stop on patience")
	}
	if results[1].RunStopped {
		t.Fatalf("expected second run to complete: %s", results[1].RunReason)
	}
	if results[1].EpochsFed != 4 {
		t.Fatalf("expected all 4 epochs fed, got %d", results[1].EpochsFed)
	}
}

func TestReplayEmptyInput(t *testing.T) {
	results, summary := Replay(nil, DefaultReplayConfig())

	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if summary.TotalExperiments != 0 {
		t.Fatalf("expected 0 experiments, got %d", summary.TotalExperiments)
	}
	if summary.FinalDecision.Stop {
		t.Fatal("expected zero-value final decision")
	}
}
