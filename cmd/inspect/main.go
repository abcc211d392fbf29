package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/experiment-control/internal/config"
	"github.com/danielpatrickdp/experiment-control/internal/stopping"
	"github.com/danielpatrickdp/experiment-control/internal/tracking"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to control.db")
	last := flag.Int("last", 20, "show N most recent experiments")
	configPath := flag.String("config", "", "path to control.yaml (defaults to discovery)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/control.db [--last N] [--config path] [--json]")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	store, err := tracking.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(store, cfg, *last, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadOrDefault()
}

// #endregion main

// #region inspect

type inspectOutput struct {
	Experiments []experimentRow        `json:"experiments"`
	Stats       tracking.CampaignStats `json:"stats"`
	Verdict     verdictOutput          `json:"verdict"`
}

type experimentRow struct {
	ID        string   `json:"experiment_id"`
	Name      string   `json:"name"`
	Target    *float64 `json:"target_metric,omitempty"`
	Duration  float64  `json:"duration_minutes,omitempty"`
	CreatedAt string   `json:"created_at"`
}

type verdictOutput struct {
	Stop       bool     `json:"should_stop"`
	Reason     string   `json:"reason"`
	NextAction string   `json:"next_action"`
	MetricName string   `json:"metric_name"`
	BestValue  *float64 `json:"best_value,omitempty"`
	MeanValue  *float64 `json:"mean_value,omitempty"`
	StdValue   *float64 `json:"std_value,omitempty"`
}

func run(store *tracking.Store, cfg config.Config, last int, jsonOut bool) error {
	rows, err := store.ListExperiments(last)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no experiments found")
		return nil
	}

	history, err := store.History()
	if err != nil {
		return err
	}
	stats, err := store.Stats()
	if err != nil {
		return err
	}

	// A fresh engine means the elapsed-time limit never fires here; the
	// campaign clock belongs to the process that ran the campaign.
	engine := stopping.NewEngine(cfg.Stopping)
	report := engine.GenerateReport(history)

	metricName := cfg.Stopping.Performance.Metric
	out := inspectOutput{Stats: stats}
	for _, r := range rows {
		row := experimentRow{
			ID:        r.ExperimentID,
			Name:      r.Name,
			Duration:  r.DurationMinutes,
			CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if v, ok := r.Metrics[metricName]; ok {
			row.Target = &v
		}
		out.Experiments = append(out.Experiments, row)
	}
	out.Verdict = verdictOutput{
		Stop:       report.Decision.Stop,
		Reason:     report.Decision.Reason,
		NextAction: string(report.Decision.Action),
		MetricName: report.Stats.MetricName,
		BestValue:  report.Stats.BestValue,
		MeanValue:  report.Stats.MeanValue,
		StdValue:   report.Stats.StdValue,
	}

	if jsonOut {
		return printJSON(out)
	}
	return printTable(out, metricName)
}

// #endregion inspect

// #region output

func printTable(out inspectOutput, metricName string) error {
	fmt.Printf("%-10s  %-20s  %10s  %8s  %s\n", "ID", "Name", metricName, "Minutes", "Time")
	fmt.Printf("%-10s+-%-20s+-%10s+-%8s+-%s\n",
		"----------", "--------------------", "----------", "--------", "--------------------")

	for _, r := range out.Experiments {
		target := "—"
		if r.Target != nil {
			target = fmt.Sprintf("%.4f", *r.Target)
		}
		fmt.Printf("%-10s  %-20s  %10s  %8.1f  %s\n",
			shortID(r.ID), r.Name, target, r.Duration, r.CreatedAt)
	}

	fmt.Printf("\nCampaign: %d experiments, metrics tracked: %v\n",
		out.Stats.TotalExperiments, out.Stats.MetricsTracked)

	v := out.Verdict
	fmt.Printf("\nVerdict: stop=%v action=%s\n  %s\n", v.Stop, v.NextAction, v.Reason)
	if v.BestValue != nil {
		fmt.Printf("  best %s: %.4f", v.MetricName, *v.BestValue)
		if v.MeanValue != nil && v.StdValue != nil {
			fmt.Printf(" (mean %.4f, std %.4f)", *v.MeanValue, *v.StdValue)
		}
		fmt.Println()
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
