package alerts

import "github.com/CrewBill/CrewBill/app/models"

// Severity classifies the aggregated open unbilled amount. It is recomputed
// on every read and never stored, so it cannot go stale.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"

	// CriticalUnbilledThresholdCents is the aggregate open amount ($500) at
	// which the classification flips to critical.
	CriticalUnbilledThresholdCents int64 = 50000
)

// Classify maps a total open unbilled amount to a severity.
func Classify(totalOpenCents int64) Severity {
	if totalOpenCents >= CriticalUnbilledThresholdCents {
		return SeverityCritical
	}
	return SeverityWarning
}

// TotalOpenCents sums the amounts of open alerts.
func TotalOpenCents(alerts []models.Alert) int64 {
	var total int64
	for _, a := range alerts {
		if a.Status == models.AlertStatusOpen {
			total += a.AmountCents
		}
	}
	return total
}
