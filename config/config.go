//file: config/config.go

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	Network  NetworkConfig  `mapstructure:"network"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LogConfig      `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// InputConfig describes the RELP input: the set of listener endpoints plus
// module-wide receive behavior.
type InputConfig struct {
	// Name is the input identity tag stamped on every produced message.
	Name string `mapstructure:"name"`

	// Listeners is the structured per-listener form.
	Listeners []ListenerConfig `mapstructure:"listeners"`

	// Ports is the legacy shorthand: each entry creates a listener on that
	// port with every other option at its default.
	Ports []string `mapstructure:"ports"`

	// OnError selects the receive-callback failure policy: "continue" keeps
	// the delivering session alive, "terminate" closes it.
	OnError string `mapstructure:"onError"`

	// MaxFrameSize bounds the payload size of a single RELP frame in bytes.
	MaxFrameSize int `mapstructure:"maxFrameSize"`
}

// ListenerConfig describes one listener endpoint. Immutable once the
// listener has been registered with the engine.
type ListenerConfig struct {
	Port string            `mapstructure:"port"`
	TLS  ListenerTLSConfig `mapstructure:"tls"`
}

type ListenerTLSConfig struct {
	Enable      bool `mapstructure:"enable"`
	Compression bool `mapstructure:"compression"`

	// DHBits selects the key-exchange strength; 0 means engine default.
	DHBits int `mapstructure:"dhBits"`

	// PriorityString names a cipher/priority profile. nil means "not
	// provided" and is passed through as such; it is never coerced to "".
	PriorityString *string `mapstructure:"priorityString"`

	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
}

// RoutingConfig names the routing target shared by every listener of the
// input. Per-listener targets are not supported: the engine is shared, so
// all listeners bind to one ruleset.
type RoutingConfig struct {
	// Target is the ruleset name resolved at config-check time. Empty means
	// the default ruleset.
	Target string `mapstructure:"target"`

	// Rulesets declares the known ruleset names resolution runs against.
	Rulesets []string `mapstructure:"rulesets"`

	// Default names the fallback ruleset used when Target does not resolve.
	Default string `mapstructure:"default"`
}

// NetworkConfig is the process-wide network policy, read once at first
// engine construction.
type NetworkConfig struct {
	Family     string `mapstructure:"family"` // any, ipv4, ipv6
	DisableDNS bool   `mapstructure:"disableDns"`
}

type PipelineConfig struct {
	// Mode selects the downstream submitter: "nats" or "channel".
	Mode string `mapstructure:"mode"`

	// BufferSize is the channel submitter's queue depth.
	BufferSize int `mapstructure:"bufferSize"`

	// Overflow selects the backpressure policy when the queue is full:
	// "drop" (best effort, counted) or "block" (submit blocks the receive
	// loop).
	Overflow string `mapstructure:"overflow"`

	NATS NATSConfig `mapstructure:"nats"`
}

type NATSConfig struct {
	URLs     []string `mapstructure:"urls"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	Token    string   `mapstructure:"token"`

	// NKeySeedFile points to an nkey seed file for NKey authentication.
	NKeySeedFile string `mapstructure:"nkeySeedFile"`
	// CredsFile points to a .creds file for JWT authentication.
	CredsFile string `mapstructure:"credsFile"`

	SubjectPrefix string        `mapstructure:"subjectPrefix"`
	MaxReconnects int           `mapstructure:"maxReconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnectWait"`

	TLS struct {
		Enable   bool   `mapstructure:"enable"`
		CertFile string `mapstructure:"certFile"`
		KeyFile  string `mapstructure:"keyFile"`
		CAFile   string `mapstructure:"caFile"`
		Insecure bool   `mapstructure:"insecure"`
	} `mapstructure:"tls"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`      // debug, info, warn, error
	OutputPath string `mapstructure:"outputPath"` // file path or "stdout"
	Encoding   string `mapstructure:"encoding"`   // json or console
}

type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Address        string `mapstructure:"address"`
	Path           string `mapstructure:"path"`
	UpdateInterval string `mapstructure:"updateInterval"` // duration string
}

// Load reads configuration from file using Viper. Environment variables
// with the RELP_ prefix override file values (e.g. RELP_LOGGING_LEVEL).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	v.SetEnvPrefix("RELP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// SetDefaults applies default values to every unset field.
func SetDefaults(cfg *Config) {
	// Input defaults
	if cfg.Input.Name == "" {
		cfg.Input.Name = "relp"
	}
	if cfg.Input.OnError == "" {
		cfg.Input.OnError = "continue"
	}
	if cfg.Input.MaxFrameSize <= 0 {
		cfg.Input.MaxFrameSize = 128 * 1024
	}

	// Routing defaults
	if cfg.Routing.Default == "" {
		cfg.Routing.Default = "default"
	}

	// Network defaults
	if cfg.Network.Family == "" {
		cfg.Network.Family = "any"
	}

	// Pipeline defaults
	if cfg.Pipeline.Mode == "" {
		cfg.Pipeline.Mode = "nats"
	}
	if cfg.Pipeline.BufferSize <= 0 {
		cfg.Pipeline.BufferSize = 1000
	}
	if cfg.Pipeline.Overflow == "" {
		cfg.Pipeline.Overflow = "drop"
	}
	if len(cfg.Pipeline.NATS.URLs) == 0 {
		cfg.Pipeline.NATS.URLs = []string{"nats://localhost:4222"}
	}
	if cfg.Pipeline.NATS.SubjectPrefix == "" {
		cfg.Pipeline.NATS.SubjectPrefix = "relp.events"
	}
	if cfg.Pipeline.NATS.MaxReconnects == 0 {
		cfg.Pipeline.NATS.MaxReconnects = -1 // unlimited
	}
	if cfg.Pipeline.NATS.ReconnectWait == 0 {
		cfg.Pipeline.NATS.ReconnectWait = 50 * time.Millisecond
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.OutputPath == "" {
		cfg.Logging.OutputPath = "stdout"
	}
	if cfg.Logging.Encoding == "" {
		cfg.Logging.Encoding = "json"
	}

	// Metrics defaults
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":2112"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.UpdateInterval == "" {
		cfg.Metrics.UpdateInterval = "15s"
	}
}

// Validate performs validation of module-wide configuration values.
// Per-listener problems (a missing port, for example) are deliberately not
// fatal here: they abort only the offending listener during registration.
func Validate(cfg *Config) error {
	// Input validation
	switch cfg.Input.OnError {
	case "continue", "terminate":
	default:
		return fmt.Errorf("invalid input.onError %q (continue or terminate)", cfg.Input.OnError)
	}

	for i, lst := range cfg.Input.Listeners {
		if err := validateListenerTLS(&lst.TLS); err != nil {
			return fmt.Errorf("listener %d (port %q): %w", i, lst.Port, err)
		}
	}

	// Network validation
	switch cfg.Network.Family {
	case "any", "ipv4", "ipv6":
	default:
		return fmt.Errorf("invalid network.family %q (any, ipv4 or ipv6)", cfg.Network.Family)
	}

	// Pipeline validation
	switch cfg.Pipeline.Mode {
	case "nats", "channel":
	default:
		return fmt.Errorf("invalid pipeline.mode %q (nats or channel)", cfg.Pipeline.Mode)
	}
	switch cfg.Pipeline.Overflow {
	case "drop", "block":
	default:
		return fmt.Errorf("invalid pipeline.overflow %q (drop or block)", cfg.Pipeline.Overflow)
	}

	if cfg.Pipeline.Mode == "nats" {
		if len(cfg.Pipeline.NATS.URLs) == 0 {
			return fmt.Errorf("at least one NATS server URL is required")
		}
		authCount := 0
		if cfg.Pipeline.NATS.Username != "" {
			authCount++
		}
		if cfg.Pipeline.NATS.Token != "" {
			authCount++
		}
		if cfg.Pipeline.NATS.NKeySeedFile != "" {
			authCount++
		}
		if cfg.Pipeline.NATS.CredsFile != "" {
			authCount++
		}
		if authCount > 1 {
			return fmt.Errorf("only one NATS authentication method should be specified")
		}
		if cfg.Pipeline.NATS.CredsFile != "" {
			if _, err := os.Stat(cfg.Pipeline.NATS.CredsFile); os.IsNotExist(err) {
				return fmt.Errorf("NATS creds file does not exist: %s", cfg.Pipeline.NATS.CredsFile)
			}
		}
	}

	// Logging validation
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}
	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	// Metrics validation
	if cfg.Metrics.Enabled {
		if _, err := time.ParseDuration(cfg.Metrics.UpdateInterval); err != nil {
			return fmt.Errorf("invalid metrics update interval: %w", err)
		}
	}

	return nil
}

// validateListenerTLS checks a listener's TLS block for problems that make
// the listener unusable regardless of runtime state.
func validateListenerTLS(tls *ListenerTLSConfig) error {
	if !tls.Enable {
		// Options under a disabled TLS block are ignored, never rejected.
		return nil
	}
	if tls.DHBits < 0 {
		return fmt.Errorf("tls.dhBits must not be negative")
	}
	if (tls.CertFile == "") != (tls.KeyFile == "") {
		return fmt.Errorf("tls requires certFile and keyFile to be specified together")
	}
	if tls.CertFile == "" {
		return fmt.Errorf("tls requires certFile and keyFile")
	}
	return nil
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(metricsAddr, metricsPath string, metricsInterval time.Duration) {
	if metricsAddr != "" {
		c.Metrics.Address = metricsAddr
	}
	if metricsPath != "" {
		c.Metrics.Path = metricsPath
	}
	if metricsInterval > 0 {
		c.Metrics.UpdateInterval = metricsInterval.String()
	}
}
