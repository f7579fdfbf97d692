package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

// Config holds configuration for all three processes. Each process reads
// the sections it needs.
type Config struct {
	Segment     SegmentConfig     `yaml:"segment"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Predictor   PredictorConfig   `yaml:"predictor"`
	Controller  ControllerConfig  `yaml:"controller"`
	Logging     LogConfig         `yaml:"logging"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// SegmentConfig names the shared memory object.
type SegmentConfig struct {
	Name string `envconfig:"SHM_NAME" default:"/rtdcs_shared_state" yaml:"name"`
}

// MonitorConfig holds thermal monitor settings.
type MonitorConfig struct {
	Period    time.Duration `envconfig:"MONITOR_PERIOD" default:"100ms" yaml:"period"`
	Samples   int           `envconfig:"MONITOR_SAMPLES" default:"0" yaml:"samples"`
	Pattern   string        `envconfig:"MONITOR_PATTERN" default:"sine" yaml:"pattern"`
	BaseTemp  float64       `envconfig:"MONITOR_BASE_TEMP" default:"25" yaml:"base_temp"`
	Amplitude float64       `envconfig:"MONITOR_AMPLITUDE" default:"5" yaml:"amplitude"`
	Frequency float64       `envconfig:"MONITOR_FREQUENCY" default:"0.1" yaml:"frequency"`
	StepDelta float64       `envconfig:"MONITOR_STEP_DELTA" default:"5" yaml:"step_delta"`
	Interval  float64       `envconfig:"MONITOR_INTERVAL" default:"3" yaml:"interval"`
}

// PredictorConfig holds distortion predictor and relay client settings.
type PredictorConfig struct {
	Host           string        `envconfig:"RPC_HOST" default:"localhost" yaml:"host"`
	Port           int           `envconfig:"RPC_PORT" default:"9090" yaml:"port"`
	Period         time.Duration `envconfig:"PREDICTOR_PERIOD" default:"200ms" yaml:"period"`
	Samples        int           `envconfig:"PREDICTOR_SAMPLES" default:"0" yaml:"samples"`
	ConnectTimeout time.Duration `envconfig:"RPC_CONNECT_TIMEOUT" default:"5s" yaml:"connect_timeout"`
	CallTimeout    time.Duration `envconfig:"RPC_CALL_TIMEOUT" default:"10s" yaml:"call_timeout"`
	MaxFailures    int           `envconfig:"PREDICTOR_MAX_FAILURES" default:"1" yaml:"max_failures"`
	BreakerTimeout time.Duration `envconfig:"PREDICTOR_BREAKER_TIMEOUT" default:"2s" yaml:"breaker_timeout"`
}

// ControllerConfig holds compensation controller and relay server settings.
type ControllerConfig struct {
	Host                 string  `envconfig:"CONTROLLER_HOST" default:"" yaml:"host"`
	Port                 int     `envconfig:"RPC_PORT" default:"9090" yaml:"port"`
	Bound                float64 `envconfig:"CONTROLLER_BOUND" default:"1000" yaml:"bound"`
	RateLimit            float64 `envconfig:"CONTROLLER_RATE_LIMIT" default:"0" yaml:"rate_limit"`
	RateBurst            int     `envconfig:"CONTROLLER_RATE_BURST" default:"10" yaml:"rate_burst"`
	MaxConcurrentStreams uint32  `envconfig:"CONTROLLER_MAX_STREAMS" default:"16" yaml:"max_concurrent_streams"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// DiagnosticsConfig holds the optional HTTP diagnostics endpoint. An empty
// address disables it.
type DiagnosticsConfig struct {
	Addr string `envconfig:"DIAG_ADDR" default:"" yaml:"addr"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads the environment and then overlays the YAML file at path.
// Keys present in the file win over environment values; an empty path
// behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Segment: SegmentConfig{
			Name: "/rtdcs_shared_state",
		},
		Monitor: MonitorConfig{
			Period:    100 * time.Millisecond,
			Pattern:   "sine",
			BaseTemp:  25,
			Amplitude: 5,
			Frequency: 0.1,
			StepDelta: 5,
			Interval:  3,
		},
		Predictor: PredictorConfig{
			Host:           "localhost",
			Port:           9090,
			Period:         200 * time.Millisecond,
			ConnectTimeout: 5 * time.Second,
			CallTimeout:    10 * time.Second,
			MaxFailures:    1,
			BreakerTimeout: 2 * time.Second,
		},
		Controller: ControllerConfig{
			Port:                 9090,
			Bound:                1000,
			RateBurst:            10,
			MaxConcurrentStreams: 16,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.HasPrefix(c.Segment.Name, "/") && len(c.Segment.Name) > 1 && !strings.Contains(c.Segment.Name[1:], "/"),
		"segment name %q must be a single component with a leading slash", c.Segment.Name)

	check(c.Monitor.Period > 0, "monitor period must be positive")
	check(c.Monitor.Samples >= 0, "monitor samples must not be negative")
	check(c.Monitor.Pattern == "sine" || c.Monitor.Pattern == "step", "monitor pattern %q must be sine or step", c.Monitor.Pattern)

	check(c.Predictor.Port > 0 && c.Predictor.Port <= 65535, "predictor port %d out of range", c.Predictor.Port)
	check(c.Predictor.Period > 0, "predictor period must be positive")
	check(c.Predictor.Samples >= 0, "predictor samples must not be negative")
	check(c.Predictor.ConnectTimeout > 0, "connect timeout must be positive")
	check(c.Predictor.CallTimeout > 0, "call timeout must be positive")
	check(c.Predictor.MaxFailures >= 1, "max failures must be at least 1")

	check(c.Controller.Port >= 0 && c.Controller.Port <= 65535, "controller port %d out of range", c.Controller.Port)
	check(c.Controller.Bound > 0, "sanity bound must be positive")
	check(c.Controller.RateLimit >= 0, "rate limit must not be negative")

	var level zapcore.Level
	check(level.UnmarshalText([]byte(c.Logging.Level)) == nil, "unknown log level %q", c.Logging.Level)

	return errors.Join(errs...)
}
