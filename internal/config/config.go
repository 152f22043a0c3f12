package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Hub             HubConfig       `yaml:"hub"`
	Device          DeviceConfig    `yaml:"device"`
	Lights          StringList      `yaml:"lights"`
	Throttle        *Duration       `yaml:"throttle"` // Minimum time between dispatched colors, 0 disables
	HTTP            HTTPConfig      `yaml:"http"`
	Realtime        RealtimeConfig  `yaml:"realtime"`
	Discovery       DiscoveryConfig `yaml:"discovery"`
	EventBus        EventBusConfig  `yaml:"eventbus"`
	Database        DatabaseConfig  `yaml:"database"`
	Ledger          LedgerConfig    `yaml:"ledger"`
	Log             LogConfig       `yaml:"log"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// HubConfig contains Home Assistant connection settings
type HubConfig struct {
	Address string   `yaml:"address"` // host, host:port or URL
	Token   string   `yaml:"token"`   // long-lived access token
	Secure  bool     `yaml:"secure"`  // use wss when address has no scheme
	Timeout Duration `yaml:"timeout"` // bound for one dispatch round trip
}

// DeviceConfig describes the emulated controller
type DeviceConfig struct {
	Name        string   `yaml:"name"`
	IP          string   `yaml:"ip"` // empty = autodetect
	MAC         string   `yaml:"mac"`
	LEDCount    int      `yaml:"led_count"`
	LiveTimeout Duration `yaml:"live_timeout"`
}

// HTTPConfig contains control-plane API settings
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RealtimeConfig contains UDP realtime listener settings
type RealtimeConfig struct {
	Port int `yaml:"port"`
}

// DiscoveryConfig toggles the discovery responders
type DiscoveryConfig struct {
	MDNS *bool `yaml:"mdns"`
	SSDP *bool `yaml:"ssdp"`
}

// MDNSEnabled returns whether the mDNS announcement is enabled (default: true)
func (c *DiscoveryConfig) MDNSEnabled() bool {
	return c.MDNS == nil || *c.MDNS
}

// SSDPEnabled returns whether the SSDP responder is enabled (default: true)
func (c *DiscoveryConfig) SSDPEnabled() bool {
	return c.SSDP == nil || *c.SSDP
}

// EventBusConfig contains settings of the decoder to dispatcher queue
type EventBusConfig struct {
	QueueSize int `yaml:"queue_size"` // Pending frames before new ones are dropped (default: 16)
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 16
	}
	return c.QueueSize
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"` // empty disables the dispatch ledger
}

// LedgerConfig contains dispatch ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling.
// Accepts Go duration strings ("100ms") or plain seconds ("0.1").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ParseDuration parses a Go duration or a number of seconds
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// StringList accepts a YAML sequence or a comma-separated scalar
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	var raw []string
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		raw = strings.Split(s, ",")
	} else if err := value.Decode(&raw); err != nil {
		return err
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*l = out
	return nil
}

// DefaultTemplate is used when no config file exists.
// It is driven entirely by environment variables.
const DefaultTemplate = `
hub:
  address: "${HA_IP}"
  token: "${HA_TOKEN}"
device:
  name: "${WLED_NAME:HomeAssistantBridge}"
  led_count: ${ENTITY_COUNT:1}
lights: "${ENTITY_NAMES:wled}"
throttle: "${THROTTLE:0.1}"
database:
  path: "${DB_PATH:./wledbridge.sqlite}"
log:
  level: "${LOG_LEVEL:info}"
  colors: true
`

// Load reads and parses the configuration file.
// A .env file in the working directory is loaded first if present.
// If path does not exist, DefaultTemplate is used.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		data = []byte(DefaultTemplate)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults.
// It does not validate; call Validate before use.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Hub defaults
	if cfg.Hub.Timeout == 0 {
		cfg.Hub.Timeout = Duration(10 * time.Second)
	}

	// Device defaults
	if cfg.Device.MAC == "" {
		cfg.Device.MAC = "44:1d:64:f4:00:00"
	}
	if cfg.Device.LEDCount == 0 {
		cfg.Device.LEDCount = 1
	}
	if cfg.Device.LiveTimeout == 0 {
		cfg.Device.LiveTimeout = Duration(2500 * time.Millisecond)
	}

	// Listener defaults
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 80
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.Realtime.Port == 0 {
		cfg.Realtime.Port = 21324
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 7
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate reports every missing or invalid mandatory setting at once.
func (cfg *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(cfg.Hub.Address) == "" {
		errs = append(errs, errors.New("hub.address is required (HA_IP)"))
	}
	if strings.TrimSpace(cfg.Hub.Token) == "" {
		errs = append(errs, errors.New("hub.token is required (HA_TOKEN)"))
	}
	if strings.TrimSpace(cfg.Device.Name) == "" {
		errs = append(errs, errors.New("device.name is required (WLED_NAME)"))
	}
	if len(cfg.Lights) == 0 {
		errs = append(errs, errors.New("lights must name at least one light (ENTITY_NAMES)"))
	}
	if cfg.Device.LEDCount < 0 {
		errs = append(errs, fmt.Errorf("device.led_count must be positive, got %d", cfg.Device.LEDCount))
	}
	if cfg.Throttle != nil && *cfg.Throttle < 0 {
		errs = append(errs, fmt.Errorf("throttle must not be negative, got %s", cfg.Throttle.Duration()))
	}
	if cfg.Device.IP != "" && parseIPv4(cfg.Device.IP) == nil {
		errs = append(errs, fmt.Errorf("device.ip %q is not an IPv4 address", cfg.Device.IP))
	}

	return errors.Join(errs...)
}

// DefaultThrottle applies when throttle is not configured
const DefaultThrottle = 100 * time.Millisecond

// GetThrottle returns the throttle interval. An explicit zero disables rate limiting.
func (cfg *Config) GetThrottle() time.Duration {
	if cfg.Throttle == nil {
		return DefaultThrottle
	}
	return cfg.Throttle.Duration()
}

// GetShutdownTimeout returns the shutdown timeout as time.Duration
func (cfg *Config) GetShutdownTimeout() time.Duration {
	return cfg.ShutdownTimeout.Duration()
}

// GetLedgerRetention returns the ledger retention as time.Duration
func (cfg *Config) GetLedgerRetention() time.Duration {
	return time.Duration(cfg.Ledger.RetentionDays) * 24 * time.Hour
}

// DeviceIP returns the configured device address, nil if autodetection is wanted
func (cfg *Config) DeviceIP() net.IP {
	return parseIPv4(cfg.Device.IP)
}

func parseIPv4(s string) net.IP {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return nil
	}
	return ip.To4()
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
