package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/dirjobs/errors"
)

var (
	globalConfig *Config
	globalViper  *viper.Viper
	globalMu     sync.Mutex
)

// Load reads the configuration from system, user, and project files plus
// DIRJOBS_* environment variables. The result is cached until Reset.
func Load() (*Config, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	v := newViper()
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	globalViper = v
	return globalConfig, nil
}

// GetViper returns the viper instance behind Load, for key lookups
func GetViper() *viper.Viper {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalViper == nil {
		globalViper = newViper()
	}
	return globalViper
}

// LoadWithViper unmarshals and validates configuration from v
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific TOML file on top of defaults
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return LoadWithViper(v)
}

// Reset clears the cached configuration (useful for testing and reloads)
func Reset() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = nil
	globalViper = nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("DIRJOBS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	mergeConfigFiles(v, ConfigPaths())
	return v
}

// ConfigPaths returns the config files consulted by Load, lowest precedence first.
// Only existing files are returned.
func ConfigPaths() []string {
	candidates := []string{"/etc/dirjobs/config.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".dirjobs", "am.toml"))
	}
	if project := findProjectConfig(); project != "" {
		candidates = append(candidates, project)
	}

	var paths []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

// findProjectConfig walks up from the working directory looking for am.toml
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, "am.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges each readable file into v in order
func mergeConfigFiles(v *viper.Viper, paths []string) {
	for _, path := range paths {
		file := viper.New()
		file.SetConfigFile(path)
		file.SetConfigType("toml")
		if err := file.ReadInConfig(); err != nil {
			continue
		}
		if err := v.MergeConfigMap(file.AllSettings()); err != nil {
			continue
		}
	}
}
