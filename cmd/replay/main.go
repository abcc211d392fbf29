package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/experiment-control/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	os.Exit(runFixture(*fixturePath))
}

// #endregion main

// #region fixture-mode

func runFixture(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	config := f.Config.ToReplayConfig()
	experiments := make([]replay.Experiment, len(f.Experiments))
	for i := range f.Experiments {
		experiments[i] = f.Experiments[i].ToExperiment()
	}

	results, summary := replay.Replay(experiments, config)

	expected := make(map[string]string, len(f.ExpectedResults))
	for _, e := range f.ExpectedResults {
		expected[e.Name] = e.Action
	}

	code := printComparison(results, expected)

	fmt.Printf("\nFinal: stop=%v action=%s reason=%q\n",
		summary.FinalDecision.Stop, summary.FinalDecision.Action, summary.FinalDecision.Reason)
	if summary.Report.Stats.BestValue != nil {
		fmt.Printf("Best %s: %.4f over %d experiments\n",
			summary.Report.Stats.MetricName, *summary.Report.Stats.BestValue, summary.TotalExperiments)
	}

	return code
}

// #endregion fixture-mode

// #region output

// printComparison outputs an expected/replayed action table and returns
// the exit code (1 when any row diverges).
func printComparison(results []replay.Result, expected map[string]string) int {
	fmt.Printf("%-16s| %-20s| %-20s| %s\n", "Experiment", "Expected", "Replayed", "Match")
	fmt.Printf("%-16s+%-21s+%-21s+%s\n",
		"----------------", "---------------------", "---------------------", "------")

	matches := 0
	compared := 0
	for _, r := range results {
		got := string(r.CampaignDecision.Action)
		if r.ExperimentDecision.Stop {
			got = string(r.ExperimentDecision.Action)
		}

		exp, ok := expected[r.Name]
		if !ok {
			fmt.Printf("%-16s| %-20s| %-20s| %s\n", r.Name, "—", got, "SKIP")
			continue
		}

		compared++
		match := "DIFF"
		if exp == got {
			match = "OK"
			matches++
		}
		fmt.Printf("%-16s| %-20s| %-20s| %s\n", r.Name, exp, got, match)
	}

	diverge := compared - matches
	fmt.Printf("\nSummary: %d compared, %d match, %d diverge\n", compared, matches, diverge)

	if diverge > 0 {
		return 1
	}
	return 0
}

// #endregion output
