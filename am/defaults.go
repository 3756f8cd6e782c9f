package am

import (
	"os"

	"github.com/spf13/viper"
)

// DefaultDirPermissions is used for ~/.dirjobs
const DefaultDirPermissions os.FileMode = 0o755

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "dirjobs.db")

	v.SetDefault("pulse.workers", 4)
	v.SetDefault("pulse.poll_interval_ms", 250)
	v.SetDefault("pulse.admissions_per_second", 0.0) // unlimited
	v.SetDefault("pulse.admission_burst", 1)
	v.SetDefault("pulse.strict_invariants", false)
	v.SetDefault("pulse.history_enabled", true)
	v.SetDefault("pulse.stop_timeout_seconds", 30)

	v.SetDefault("log.json", false)
}
