package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	Log             LogConfig         `yaml:"log"`
	Database        DatabaseConfig    `yaml:"database"`
	Executor        ExecutorConfig    `yaml:"executor"`
	Transport       TransportConfig   `yaml:"transport"`
	Devices         []DeviceConfig    `yaml:"devices"`
	Discovery       DiscoveryConfig   `yaml:"discovery"`
	API             APIConfig         `yaml:"api"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// DatabaseConfig selects where virtual state and the ledger live. With
// Persist off virtual state is kept in memory only.
type DatabaseConfig struct {
	Path    string `yaml:"path"`
	Persist bool   `yaml:"persist"`
}

// ExecutorConfig bounds command retries.
type ExecutorConfig struct {
	Attempts int      `yaml:"attempts"`
	Timeout  Duration `yaml:"timeout"`
}

// TransportConfig tunes the LAN transport.
type TransportConfig struct {
	ReadTimeout  Duration `yaml:"read_timeout"`   // per state query
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // per device
	RateBurst    int      `yaml:"rate_burst"`
}

// DeviceConfig is one statically configured fixture.
type DeviceConfig struct {
	Serial    string `yaml:"serial"`
	Addr      string `yaml:"addr"`
	ProductID uint32 `yaml:"product_id"`
	Label     string `yaml:"label"`
}

// DiscoveryConfig controls how often configured devices are offered to the
// coordinator again. Devices that failed to answer are retried then.
type DiscoveryConfig struct {
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
}

// APIConfig controls the HTTP control API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type EventBusConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// LedgerConfig controls command history retention.
type LedgerConfig struct {
	Enabled         bool     `yaml:"enabled"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// Retention returns the retention period.
func (c LedgerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Duration is a time.Duration that unmarshals from strings like "15s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads the configuration file, expands environment variables and
// applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes configuration from YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./ceilingd.sqlite"
	}

	// Executor defaults match executor.DefaultAttempts/DefaultTimeout.
	if cfg.Executor.Attempts <= 0 {
		cfg.Executor.Attempts = 5
	}
	if cfg.Executor.Timeout == 0 {
		cfg.Executor.Timeout = Duration(15 * time.Second)
	}

	if cfg.Transport.ReadTimeout == 0 {
		cfg.Transport.ReadTimeout = Duration(5 * time.Second)
	}
	if cfg.Transport.RateLimitRPS == 0 {
		cfg.Transport.RateLimitRPS = 20
	}
	if cfg.Transport.RateBurst <= 0 {
		cfg.Transport.RateBurst = 5
	}

	if cfg.Discovery.Interval == 0 {
		cfg.Discovery.Interval = Duration(5 * time.Minute)
	}
	if cfg.Discovery.Timeout == 0 {
		cfg.Discovery.Timeout = Duration(10 * time.Second)
	}

	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}

	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}

	if cfg.EventBus.Workers <= 0 {
		cfg.EventBus.Workers = 2
	}
	if cfg.EventBus.QueueSize <= 0 {
		cfg.EventBus.QueueSize = 100
	}

	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

func (cfg *Config) validate() error {
	seen := make(map[string]bool, len(cfg.Devices))
	for i, d := range cfg.Devices {
		if d.Serial == "" {
			return fmt.Errorf("devices[%d]: serial is required", i)
		}
		if d.Addr == "" {
			return fmt.Errorf("devices[%d] (%s): addr is required", i, d.Serial)
		}
		if seen[d.Serial] {
			return fmt.Errorf("devices[%d]: duplicate serial %s", i, d.Serial)
		}
		seen[d.Serial] = true
	}
	return nil
}

var envVar = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands ${VAR} and ${VAR:default}.
func expandEnvVars(input string) string {
	return envVar.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVar.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
}
