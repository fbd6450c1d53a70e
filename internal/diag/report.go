package diag

import "time"

// Level classifies a check outcome
type Level string

const (
	Pass Level = "pass"
	Warn Level = "warn"
	Fail Level = "fail"
)

// Check is a single named diagnostic with remediation guidance
type Check struct {
	Name   string `json:"name"`
	Level  Level  `json:"level"`
	Detail string `json:"detail"`
	Remedy string `json:"remedy,omitempty"`
}

// Report is the aggregate diagnostic result. Healthy means no check
// failed; warnings do not affect health.
type Report struct {
	Healthy   bool      `json:"healthy"`
	Checks    []Check   `json:"checks"`
	Timestamp time.Time `json:"timestamp"`
}

// compile assembles a report from executed checks
func compile(checks []Check) *Report {
	healthy := true
	for _, check := range checks {
		if check.Level == Fail {
			healthy = false
			break
		}
	}
	return &Report{
		Healthy:   healthy,
		Checks:    checks,
		Timestamp: time.Now(),
	}
}
