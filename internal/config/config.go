// Package config loads the gateway's operator-facing settings: the
// sensor-to-room map path, the store DSN, and the per-wait watchdog
// timeout. spec.md treats these as compile-time constants injected at
// supervisor construction; here they are a small YAML file so an operator
// can change them without a rebuild.
package config

import (
	"os"
	"time"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v3"
)

// EnvVar is the environment variable naming the config file path.
const EnvVar = "SENSORGATE_CONFIG"

// DefaultPath is the config file path used when EnvVar is unset.
const DefaultPath = "./sensorgate.yaml"

// Config holds everything spec.md §6 "Environment / config" names.
type Config struct {
	// MapPath is the filesystem path to the sensor_id -> room_id table.
	MapPath string `yaml:"map_path"`
	// DBURI is the DSN for the store; for the bundled SQLite driver this
	// is a filesystem path, or ":memory:" for an ephemeral store.
	DBURI string `yaml:"db_uri"`
	// CVTimeoutMS is the per-wait watchdog timeout, in milliseconds.
	CVTimeoutMS int `yaml:"cv_timeout_ms"`
	// DrainPollInterval controls how often the supervisor polls
	// IsEmpty during the drain phase (spec.md §4.7 step 3). Not part of
	// spec.md's named config keys; a sane default is always available.
	DrainPollInterval time.Duration `yaml:"drain_poll_interval"`
}

// Defaults returns the built-in configuration used when no file is present.
func Defaults() Config {
	return Config{
		MapPath:           "./sensor_rooms.csv",
		DBURI:             "./sensorgate.db",
		CVTimeoutMS:       10000,
		DrainPollInterval: 200 * time.Millisecond,
	}
}

// WaitTimeout converts CVTimeoutMS to a time.Duration for pipebuf.Option.
func (c Config) WaitTimeout() time.Duration {
	return time.Duration(c.CVTimeoutMS) * time.Millisecond
}

// Load reads the config file named by EnvVar, or DefaultPath when EnvVar is
// unset, and returns Defaults() if that one file does not exist (a missing
// EnvVar file does not fall back to DefaultPath). A file that exists but
// fails to parse is a FatalSetupError (trace-wrapped, returned to the
// caller rather than read ad hoc at each call site).
func Load() (Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Config{}, trace.Wrap(err, "reading config file %q", path)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, trace.Wrap(err, "parsing config file %q", path)
	}
	if cfg.CVTimeoutMS <= 0 {
		return Config{}, trace.BadParameter("cv_timeout_ms must be positive, got %d", cfg.CVTimeoutMS)
	}
	return cfg, nil
}
