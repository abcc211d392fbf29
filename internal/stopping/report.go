package stopping

import (
	"time"

	"github.com/danielpatrickdp/experiment-control/internal/metrics"
)

// #region report-types
// ReportStats aggregates the target metric across the campaign. Pointer
// fields are nil when no qualifying record exists (or, for the
// improvement delta, when fewer than two do).
type ReportStats struct {
	MetricName           string
	BestValue            *float64
	MeanValue            *float64
	StdValue             *float64
	ImprovementFromFirst *float64
}

// Report combines the campaign-level verdict with the best experiment and
// summary statistics. Intended for dashboards and tracking metadata; the
// engine does not persist it.
type Report struct {
	Decision         Decision
	TotalExperiments int
	ElapsedHours     float64
	BestExperiment   *metrics.ExperimentRecord
	Stats            ReportStats
}

// #endregion report-types

// #region generate-report
// GenerateReport evaluates the campaign decision and aggregates statistics
// over the history at the current wall clock.
func (e *Engine) GenerateReport(history []metrics.ExperimentRecord) Report {
	return e.GenerateReportAt(history, time.Now())
}

// GenerateReportAt builds the report against an explicit timestamp.
func (e *Engine) GenerateReportAt(history []metrics.ExperimentRecord, now time.Time) Report {
	decision := e.ShouldStopCampaignAt(history, now)
	values := metrics.ExtractMetric(history, e.targetMetric())

	stats := ReportStats{MetricName: e.targetMetric()}
	if len(values) > 0 {
		best := values[0]
		for _, v := range values[1:] {
			if v > best {
				best = v
			}
		}
		stats.BestValue = &best

		if mean, ok := metrics.Mean(values); ok {
			stats.MeanValue = &mean
		}
		if std, ok := metrics.StdDev(values); ok {
			stats.StdValue = &std
		}
	}
	if len(values) >= 2 {
		improvement := values[len(values)-1] - values[0]
		stats.ImprovementFromFirst = &improvement
	}

	return Report{
		Decision:         decision,
		TotalExperiments: len(history),
		ElapsedHours:     now.Sub(e.campaignStart).Hours(),
		BestExperiment:   e.BestExperiment(history, ""),
		Stats:            stats,
	}
}

// #endregion generate-report
