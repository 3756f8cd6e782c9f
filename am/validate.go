package am

import "github.com/teranos/dirjobs/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Pulse.Workers < 0 {
		return errors.Newf("pulse.workers must be >= 0, got %d", c.Pulse.Workers)
	}
	if c.Pulse.PollIntervalMS < 0 {
		return errors.Newf("pulse.poll_interval_ms must be >= 0, got %d", c.Pulse.PollIntervalMS)
	}
	if c.Pulse.AdmissionsPerSecond < 0 {
		return errors.Newf("pulse.admissions_per_second must be >= 0, got %f", c.Pulse.AdmissionsPerSecond)
	}
	if c.Pulse.AdmissionsPerSecond > 0 && c.Pulse.AdmissionBurst < 1 {
		err := errors.Newf("pulse.admission_burst must be >= 1 when throttling, got %d", c.Pulse.AdmissionBurst)
		return errors.WithHint(err, "omit pulse.admission_burst to use the default of 1")
	}
	if c.Pulse.StopTimeoutSeconds < 0 {
		return errors.Newf("pulse.stop_timeout_seconds must be >= 0, got %d", c.Pulse.StopTimeoutSeconds)
	}
	return nil
}
