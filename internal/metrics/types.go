package metrics

// #region metric-sample
// MetricSample is one observation from a training iteration. ValValue and
// ControlParam are optional; nil means the caller did not supply them.
// Samples are immutable once logged.
type MetricSample struct {
	Iteration    int
	TrainValue   float64
	ValValue     *float64
	ControlParam *float64
}

// #endregion metric-sample

// #region experiment-record
// ExperimentRecord is the outcome of one finished run: final metric values
// keyed by name, plus optional timing and free-form metadata.
type ExperimentRecord struct {
	Metrics         map[string]float64
	DurationMinutes float64
	Metadata        map[string]any
}

// Metric looks up a named metric. The second return reports presence;
// records missing a metric are skipped, never treated as zero.
func (r ExperimentRecord) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	return v, ok
}

// #endregion experiment-record

// #region extract
// ExtractMetric collects the named metric from history in order, skipping
// records that do not contain it.
func ExtractMetric(history []ExperimentRecord, name string) []float64 {
	values := make([]float64, 0, len(history))
	for _, rec := range history {
		if v, ok := rec.Metric(name); ok {
			values = append(values, v)
		}
	}
	return values
}

// #endregion extract
