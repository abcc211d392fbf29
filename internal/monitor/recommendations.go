package monitor

import "strings"

// #region recommendations
// Recommendations derives advisory strings from the current checks. Purely
// informational; the stop decision never depends on these.
func (m *Monitor) Recommendations() []string {
	var recs []string

	if overfitting, _ := m.CheckOverfitting(); overfitting {
		recs = append(recs,
			"apply regularization (L1/L2, dropout)",
			"reduce model complexity",
			"increase training data or use data augmentation",
		)
	}

	if converged, _ := m.CheckConvergence(); converged {
		recs = append(recs, "training has converged - consider stopping")
	}

	if m.sinceImprovement > m.config.Patience/2 {
		recs = append(recs,
			"consider adjusting the control parameter",
			"try different hyperparameters",
		)
	}

	if hasAnomaly, issues := m.CheckAnomalies(); hasAnomaly {
		joined := strings.Join(issues, " ")
		if strings.Contains(joined, "NaN") {
			recs = append(recs,
				"reduce the control parameter to prevent NaN",
				"check for invalid input data",
			)
		}
		if strings.Contains(joined, "exploding") {
			recs = append(recs,
				"apply gradient clipping",
				"significantly reduce the control parameter",
			)
		}
	}

	return recs
}

// #endregion recommendations
