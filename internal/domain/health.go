package domain

// HealthStatus is the outcome of one doctor check.
type HealthStatus string

const (
	HealthOK    HealthStatus = "ok"
	HealthWarn  HealthStatus = "warn"
	HealthError HealthStatus = "error"
)

// HealthCheck is a single diagnostic result.
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Details string       `json:"details"`
}

// HealthReport lists checks in the order they ran.
type HealthReport struct {
	Checks []HealthCheck `json:"checks"`
}

// Failed returns the checks with status error.
func (r HealthReport) Failed() []HealthCheck {
	var failed []HealthCheck
	for _, c := range r.Checks {
		if c.Status == HealthError {
			failed = append(failed, c)
		}
	}
	return failed
}
