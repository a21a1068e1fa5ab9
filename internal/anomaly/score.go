package anomaly

// Score folds an anomaly list into a bounded risk score. Pure function:
// min(100, sum of severity points), no weighting by pattern, no decay.
// Auditors must be able to recompute any score by hand from the list.
func Score(anomalies []Anomaly) float64 {
	if len(anomalies) == 0 {
		return 0
	}
	var total float64
	for _, a := range anomalies {
		total += a.Severity.Points()
	}
	if total > 100 {
		return 100
	}
	return total
}
