package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/danielpatrickdp/experiment-control/internal/config"
	"github.com/danielpatrickdp/experiment-control/internal/metrics"
	"github.com/danielpatrickdp/experiment-control/internal/monitor"
	"github.com/danielpatrickdp/experiment-control/internal/replay"
	"github.com/danielpatrickdp/experiment-control/internal/stopping"
	"github.com/danielpatrickdp/experiment-control/internal/tracking"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to campaign fixture JSON")
	dbPath := flag.String("db", "control.db", "path to tracking database")
	configPath := flag.String("config", "", "path to control.yaml (defaults to discovery)")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: campaign --fixture path/to/campaign.json [--db control.db] [--config path]")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := runCampaign(*fixturePath, *dbPath, cfg); err != nil {
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

// #region campaign-loop

// runCampaign drives the fixture's experiments through the three decision
// levels, persisting experiments, epoch streams, and every stopping
// decision to the tracking store.
func runCampaign(fixturePath, dbPath string, cfg config.Config) error {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		return err
	}

	store, err := tracking.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := stopping.NewEngine(cfg.Stopping)
	mon := monitor.NewMonitor(cfg.Monitor)

	log.Printf("[CAMPAIGN] %s: %d experiments queued (db=%s)", cfg.Project.Name, len(f.Experiments), dbPath)

	var history []metrics.ExperimentRecord
	for _, fe := range f.Experiments {
		exp := fe.ToExperiment()
		mon.Reset()

		for _, ep := range exp.Epochs {
			mon.LogEpoch(ep.Iteration, ep.Train, ep.Val, ep.ControlParam)
			if stop, reason := engine.ShouldStopRun(mon); stop {
				log.Printf("[CAMPAIGN] %s: run stopped at epoch %d: %s", exp.Name, ep.Iteration, reason)
				break
			}
		}

		id, err := store.RecordExperiment(exp.Name, metrics.ExperimentRecord{
			Metrics:         exp.FinalMetrics,
			DurationMinutes: exp.DurationMinutes,
		})
		if err != nil {
			return err
		}
		if err := store.RecordEpochs(id, mon.History()); err != nil {
			return err
		}

		stopRun, runReason := engine.ShouldStopRun(mon)
		logDecision(store, id, "run", stopRun, runReason, "")

		expDecision := engine.ShouldStopExperiment(exp.FinalMetrics)
		logDecision(store, id, "experiment", expDecision.Stop, expDecision.Reason, string(expDecision.Action))

		history = append(history, metrics.ExperimentRecord{
			Metrics:         exp.FinalMetrics,
			DurationMinutes: exp.DurationMinutes,
		})
		campDecision := engine.ShouldStopCampaignAt(history, time.Now())
		logDecision(store, id, "campaign", campDecision.Stop, campDecision.Reason, string(campDecision.Action))

		log.Printf("[CAMPAIGN] %s: experiment=%s campaign=%s", exp.Name, expDecision.Action, campDecision.Action)

		if expDecision.Stop || campDecision.Stop {
			break
		}
	}

	printReport(engine.GenerateReport(history))
	return nil
}

func logDecision(store *tracking.Store, experimentID, level string, stop bool, reason, action string) {
	err := store.LogDecision(tracking.DecisionEntry{
		ExperimentID: experimentID,
		Level:        level,
		Stop:         stop,
		Reason:       reason,
		NextAction:   action,
	})
	if err != nil {
		log.Printf("[CAMPAIGN] failed to log %s decision: %v", level, err)
	}
}

// #endregion campaign-loop

// #region report

func printReport(report stopping.Report) {
	fmt.Printf("\nCampaign report\n")
	fmt.Printf("  experiments: %d\n", report.TotalExperiments)
	fmt.Printf("  elapsed:     %.2fh\n", report.ElapsedHours)
	fmt.Printf("  decision:    stop=%v action=%s\n", report.Decision.Stop, report.Decision.Action)
	fmt.Printf("  reason:      %s\n", report.Decision.Reason)

	stats := report.Stats
	if stats.BestValue != nil {
		fmt.Printf("  best %s: %.4f", stats.MetricName, *stats.BestValue)
		if stats.MeanValue != nil && stats.StdValue != nil {
			fmt.Printf(" (mean %.4f, std %.4f)", *stats.MeanValue, *stats.StdValue)
		}
		fmt.Println()
	}
	if stats.ImprovementFromFirst != nil {
		fmt.Printf("  improvement first→last: %+.4f\n", *stats.ImprovementFromFirst)
	}
}

// #endregion report
