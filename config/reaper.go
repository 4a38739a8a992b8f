package config

import "time"

const (
	// DefaultJobReaperInterval is the reaper tick interval when JOB_REAPER_INTERVAL is unset.
	DefaultJobReaperInterval = 5 * time.Minute
	// minJobReaperInterval keeps the reaper from scanning the job table continuously.
	minJobReaperInterval = time.Minute
	// minJobMaxAge is the smallest non-zero retention accepted for either reaper step.
	minJobMaxAge = time.Minute
)

// JobReaperConfig contains job retention settings.
type JobReaperConfig struct {
	// Enabled turns the background reaper on or off.
	Enabled bool `env:"JOB_REAPER_ENABLED" envDefault:"true"`

	// Interval is the reaper tick interval.
	Interval time.Duration `env:"JOB_REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge cancels jobs that stayed pending longer than this. Zero disables the step.
	PendingMaxAge time.Duration `env:"JOB_REAPER_PENDING_MAX_AGE" envDefault:"0"`

	// TerminalMaxAge deletes success, failed and cancelled jobs whose last update is older
	// than this. Zero disables the step.
	TerminalMaxAge time.Duration `env:"JOB_REAPER_TERMINAL_MAX_AGE" envDefault:"168h"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *JobReaperConfig) Sanitize() {
	if r.Interval <= 0 {
		r.Interval = DefaultJobReaperInterval
	}
	if r.Interval < minJobReaperInterval {
		r.Interval = minJobReaperInterval
	}
	r.PendingMaxAge = clampMaxAge(r.PendingMaxAge)
	r.TerminalMaxAge = clampMaxAge(r.TerminalMaxAge)
}

// Active reports whether the reaper is enabled and has at least one step to run.
func (r *JobReaperConfig) Active() bool {
	return r.Enabled && (r.PendingMaxAge > 0 || r.TerminalMaxAge > 0)
}

func clampMaxAge(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return 0
	case d < minJobMaxAge:
		return minJobMaxAge
	default:
		return d
	}
}
