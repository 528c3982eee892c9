package lifetrack

type HealthStatus string

const (
	HealthStatusUp   HealthStatus = "up"
	HealthStatusDown HealthStatus = "down"
)

type HealthReport struct {
	Class   string       `json:"class" yaml:"class"`
	Status  HealthStatus `json:"status" yaml:"status"`
	Active  uint64       `json:"active" yaml:"active"`
	Orphans []uint64     `json:"orphans,omitempty" yaml:"orphans,omitempty"`
}

// Health reports, per class, whether any record is orphaned. It never retires
// anything regardless of the orphan policy.
func (r *Registry) Health() []HealthReport {
	ledgers := r.snapshotLedgers()
	reports := make([]HealthReport, 0, len(ledgers))

	for _, l := range ledgers {
		report := HealthReport{
			Class:   l.Class(),
			Status:  HealthStatusUp,
			Active:  l.Stats().ActiveInstances,
			Orphans: l.Orphans(),
		}
		if len(report.Orphans) > 0 {
			report.Status = HealthStatusDown
		}
		reports = append(reports, report)
	}

	return reports
}

func (r *Registry) Healthy() bool {
	for _, report := range r.Health() {
		if report.Status == HealthStatusDown {
			return false
		}
	}
	return true
}
