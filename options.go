package softphone

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/softphone/signaling"
)

// DefaultServerPort is used when the configured server URL names no port.
const DefaultServerPort = "12345"

// Options contains configuration options for creating a Client.
type Options struct {
	// ServerURL is the signaling server endpoint. SignIn replaces its host
	// with the server address given at sign-in.
	ServerURL string
	// DataDir holds the per-peer conversation files.
	DataDir string
	// ReconnectDelay is the fixed wait before redialing after a drop.
	ReconnectDelay time.Duration
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
	// HistoryPassphrase enables at-rest encryption of conversation files
	// when non-empty.
	HistoryPassphrase string
	// LogLevel is a logrus level name. Empty leaves the logger unchanged.
	LogLevel string
	// LogFormat is "text" or "json". Empty leaves the logger unchanged.
	LogFormat string
	// IterationInterval is the recommended pause between Iterate calls.
	IterationInterval time.Duration

	// Dialer opens server connections. Nil uses a WebSocket dialer.
	Dialer signaling.Dialer
	// Clock drives the reconnect timer. Nil uses the system clock.
	Clock signaling.Clock
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	return &Options{
		ServerURL:         "ws://localhost:" + DefaultServerPort,
		DataDir:           defaultDataDir(),
		ReconnectDelay:    signaling.DefaultReconnectDelay,
		DialTimeout:       signaling.DefaultDialTimeout,
		IterationInterval: 50 * time.Millisecond,
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "softphone")
	}
	return "softphone"
}

// Validate checks that all required fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (o *Options) Validate() error {
	if o.ServerURL == "" {
		return fmt.Errorf("%w: server_url is required", ErrInvalidOptions)
	}
	if o.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalidOptions)
	}
	if o.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: reconnect_delay must be positive, got %v", ErrInvalidOptions, o.ReconnectDelay)
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("%w: dial_timeout must be positive, got %v", ErrInvalidOptions, o.DialTimeout)
	}
	if o.IterationInterval <= 0 {
		return fmt.Errorf("%w: iteration_interval must be positive, got %v", ErrInvalidOptions, o.IterationInterval)
	}
	switch o.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidOptions, o.LogFormat)
	}
	if o.LogLevel != "" {
		if _, err := logrus.ParseLevel(o.LogLevel); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}
	return nil
}

// fileOptions is the on-disk shape of Options. Durations are strings such
// as "5s" and unset fields keep their defaults.
type fileOptions struct {
	ServerURL         string `yaml:"server_url" toml:"server_url"`
	DataDir           string `yaml:"data_dir" toml:"data_dir"`
	ReconnectDelay    string `yaml:"reconnect_delay" toml:"reconnect_delay"`
	DialTimeout       string `yaml:"dial_timeout" toml:"dial_timeout"`
	HistoryPassphrase string `yaml:"history_passphrase" toml:"history_passphrase"`
	LogLevel          string `yaml:"log_level" toml:"log_level"`
	LogFormat         string `yaml:"log_format" toml:"log_format"`
	IterationInterval string `yaml:"iteration_interval" toml:"iteration_interval"`
}

// LoadOptions reads options from a YAML (.yaml, .yml) or TOML (.toml)
// file, expanding ${VAR} environment references first. Fields missing from
// the file keep their NewOptions defaults.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var raw fileOptions
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(expanded, &raw); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, path)
	}

	opts := NewOptions()
	if err := raw.apply(opts); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "LoadOptions",
		"path":       path,
		"server_url": opts.ServerURL,
		"data_dir":   opts.DataDir,
	}).Debug("Loaded options")
	return opts, nil
}

func (f *fileOptions) apply(o *Options) error {
	if f.ServerURL != "" {
		o.ServerURL = f.ServerURL
	}
	if f.DataDir != "" {
		o.DataDir = f.DataDir
	}
	if f.HistoryPassphrase != "" {
		o.HistoryPassphrase = f.HistoryPassphrase
	}
	if f.LogLevel != "" {
		o.LogLevel = f.LogLevel
	}
	if f.LogFormat != "" {
		o.LogFormat = f.LogFormat
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"reconnect_delay", f.ReconnectDelay, &o.ReconnectDelay},
		{"dial_timeout", f.DialTimeout, &o.DialTimeout},
		{"iteration_interval", f.IterationInterval, &o.IterationInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// ConfigureLogging applies LogLevel and LogFormat to the standard logrus
// logger.
func ConfigureLogging(o *Options) error {
	if o.LogLevel != "" {
		level, err := logrus.ParseLevel(o.LogLevel)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		logrus.SetLevel(level)
	}
	switch o.LogFormat {
	case "":
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidOptions, o.LogFormat)
	}
	return nil
}
