package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backend kinds.
const (
	StoreBackendMemory  = "memory"
	StoreBackendFile    = "file"
	StoreBackendMounted = "mounted"
	StoreBackendSQLite  = "sqlite"
)

// Config is the root configuration structure for the Gray Logic component runtime.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Bindings  BindingsConfig  `yaml:"bindings"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// InstanceConfig identifies this runtime instance on the bus.
type InstanceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// StoreConfig selects and configures the persistent store backend.
type StoreConfig struct {
	// Backend is one of "memory", "file", "mounted" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the JSON store file for the file and mounted backends.
	Path string `yaml:"path"`

	// DebounceMS is the quiet period before dirty state is written back.
	DebounceMS int `yaml:"debounce_ms"`

	// Mount configures the remount commands of the mounted backend.
	Mount MountConfig `yaml:"mount"`
}

// MountConfig holds the commands that flip a filesystem between
// read-only and read-write around a store write.
type MountConfig struct {
	// ReadWrite is the command (argv) that remounts the filesystem read-write.
	// Default: ["mount", "-o", "remount,rw", "/"]
	ReadWrite []string `yaml:"read_write"`

	// ReadOnly is the command (argv) that remounts the filesystem read-only.
	// Default: ["mount", "-o", "remount,ro", "/"]
	ReadOnly []string `yaml:"read_only"`

	// TimeoutSeconds bounds each remount command. Default: 10
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DatabaseConfig contains SQLite database settings for the sqlite store backend.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// BindingsConfig controls binding support.
type BindingsConfig struct {
	// Enabled turns binding support on. When false, a store that still
	// holds bindings fails initialisation.
	Enabled bool `yaml:"enabled"`

	// RequirePresence disables bindings unless the bus offers presence
	// tracking (MQTT enabled and connected).
	RequirePresence bool `yaml:"require_presence"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for state history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT bearer token settings for the HTTP API.
// An empty secret disables authentication.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern GRAYLOGIC_SECTION_KEY, for
// example GRAYLOGIC_STORE_PATH or GRAYLOGIC_MQTT_ENABLED.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Instance: InstanceConfig{
			ID:   "runtime-01",
			Name: "Gray Logic Runtime",
		},
		Store: StoreConfig{
			Backend:    StoreBackendFile,
			Path:       "./data/store.json",
			DebounceMS: 2000,
			Mount: MountConfig{
				ReadWrite:      []string{"mount", "-o", "remount,rw", "/"},
				ReadOnly:       []string{"mount", "-o", "remount,ro", "/"},
				TimeoutSeconds: 10,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/runtime.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-runtime",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Bindings: BindingsConfig{
			Enabled: true,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// stringOverrides maps environment variables onto string settings.
var stringOverrides = []struct {
	env   string
	field func(*Config) *string
}{
	{"GRAYLOGIC_INSTANCE_ID", func(c *Config) *string { return &c.Instance.ID }},
	{"GRAYLOGIC_STORE_BACKEND", func(c *Config) *string { return &c.Store.Backend }},
	{"GRAYLOGIC_STORE_PATH", func(c *Config) *string { return &c.Store.Path }},
	{"GRAYLOGIC_DATABASE_PATH", func(c *Config) *string { return &c.Database.Path }},
	{"GRAYLOGIC_MQTT_HOST", func(c *Config) *string { return &c.MQTT.Broker.Host }},
	{"GRAYLOGIC_MQTT_USERNAME", func(c *Config) *string { return &c.MQTT.Auth.Username }},
	{"GRAYLOGIC_MQTT_PASSWORD", func(c *Config) *string { return &c.MQTT.Auth.Password }},
	{"GRAYLOGIC_INFLUXDB_URL", func(c *Config) *string { return &c.InfluxDB.URL }},
	{"GRAYLOGIC_INFLUXDB_TOKEN", func(c *Config) *string { return &c.InfluxDB.Token }},
	{"GRAYLOGIC_JWT_SECRET", func(c *Config) *string { return &c.Security.JWT.Secret }},
}

// boolOverrides maps environment variables onto section switches. Values
// are parsed with strconv.ParseBool; anything unparsable is ignored.
var boolOverrides = []struct {
	env   string
	field func(*Config) *bool
}{
	{"GRAYLOGIC_MQTT_ENABLED", func(c *Config) *bool { return &c.MQTT.Enabled }},
	{"GRAYLOGIC_API_ENABLED", func(c *Config) *bool { return &c.API.Enabled }},
	{"GRAYLOGIC_INFLUXDB_ENABLED", func(c *Config) *bool { return &c.InfluxDB.Enabled }},
	{"GRAYLOGIC_BINDINGS_ENABLED", func(c *Config) *bool { return &c.Bindings.Enabled }},
}

// applyEnvOverrides applies the GRAYLOGIC_* environment variables that are
// set and non-empty.
func applyEnvOverrides(cfg *Config) {
	for _, o := range stringOverrides {
		if v := os.Getenv(o.env); v != "" {
			*o.field(cfg) = v
		}
	}
	for _, o := range boolOverrides {
		if v, err := strconv.ParseBool(os.Getenv(o.env)); err == nil {
			*o.field(cfg) = v
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Instance.ID == "" {
		errs = append(errs, "instance.id is required")
	}
	if strings.ContainsAny(c.Instance.ID, "/+#") {
		errs = append(errs, "instance.id must not contain MQTT topic characters (/ + #)")
	}

	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendFile:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the file backend")
		}
	case StoreBackendMounted:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the mounted backend")
		}
		if len(c.Store.Mount.ReadWrite) == 0 || len(c.Store.Mount.ReadOnly) == 0 {
			errs = append(errs, "store.mount.read_write and store.mount.read_only are required for the mounted backend")
		}
	case StoreBackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not one of memory, file, mounted, sqlite", c.Store.Backend))
	}
	if c.Store.DebounceMS < 0 {
		errs = append(errs, "store.debounce_ms must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Bindings.RequirePresence && !c.MQTT.Enabled {
		errs = append(errs, "bindings.require_presence needs mqtt.enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DebounceDelay returns the store debounce window as a Duration.
func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.Store.DebounceMS) * time.Millisecond
}

// MountTimeout returns the per-command remount timeout as a Duration.
func (c *Config) MountTimeout() time.Duration {
	return time.Duration(c.Store.Mount.TimeoutSeconds) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
