package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	MinQuietInterval = 500 * time.Millisecond
	MaxQuietInterval = 1000 * time.Millisecond
)

type Config struct {
	Relay    RelayConfig    `yaml:"relay"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Capture  CaptureConfig  `yaml:"capture"`
	Speech   SpeechConfig   `yaml:"speech"`
	Control  ControlConfig  `yaml:"control"`
	Log      LogConfig      `yaml:"log"`
}

type RelayConfig struct {
	Addr      string        `yaml:"addr"`
	Backend   string        `yaml:"backend"`
	RateLimit int           `yaml:"rate_limit"`
	Embedded  bool          `yaml:"embedded"`
	Retry     RetryConfig   `yaml:"retry"`
	Google    BackendConfig `yaml:"google"`
	Gemini    BackendConfig `yaml:"gemini"`
	Anthropic BackendConfig `yaml:"anthropic"`
	OpenAI    BackendConfig `yaml:"openai"`
}

type BackendConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type PipelineConfig struct {
	RelayURL         string        `yaml:"relay_url"`
	QuietInterval    time.Duration `yaml:"quiet_interval"`
	Direction        string        `yaml:"direction"`
	DropStaleResults *bool         `yaml:"drop_stale_results"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

type CaptureConfig struct {
	Source         string        `yaml:"source"`
	Path           string        `yaml:"path"`
	AckTimeout     time.Duration `yaml:"ack_timeout"`
	ScriptPath     string        `yaml:"script_path"`
	ScriptInterval time.Duration `yaml:"script_interval"`
	AutoStart      bool          `yaml:"auto_start"`
}

type SpeechConfig struct {
	Engine string            `yaml:"engine"`
	Binary string            `yaml:"binary"`
	Player string            `yaml:"player"`
	Voices map[string]string `yaml:"voices"`
}

type ControlConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Relay.Addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			c.Relay.Addr = ":" + port
		} else {
			c.Relay.Addr = ":5000"
		}
	}
	if c.Relay.Backend == "" {
		c.Relay.Backend = "google"
	}
	if c.Relay.RateLimit == 0 {
		c.Relay.RateLimit = 60
	}
	if c.Relay.Retry.MaxAttempts == 0 {
		c.Relay.Retry.MaxAttempts = 3
	}
	if c.Relay.Retry.InitialDelay == 0 {
		c.Relay.Retry.InitialDelay = 200 * time.Millisecond
	}
	if c.Relay.Retry.MaxDelay == 0 {
		c.Relay.Retry.MaxDelay = 2 * time.Second
	}
	if c.Relay.Google.APIKey == "" {
		c.Relay.Google.APIKey = os.Getenv("GOOGLE_API_KEY")
	}

	if c.Pipeline.RelayURL == "" {
		c.Pipeline.RelayURL = "http://localhost:5000"
	}
	if c.Pipeline.QuietInterval == 0 {
		c.Pipeline.QuietInterval = 700 * time.Millisecond
	}
	c.Pipeline.QuietInterval = min(max(c.Pipeline.QuietInterval, MinQuietInterval), MaxQuietInterval)
	if c.Pipeline.Direction == "" {
		c.Pipeline.Direction = "zh-en"
	}
	if c.Pipeline.DropStaleResults == nil {
		drop := true
		c.Pipeline.DropStaleResults = &drop
	}
	if c.Pipeline.RequestTimeout == 0 {
		c.Pipeline.RequestTimeout = 10 * time.Second
	}

	if c.Capture.Source == "" {
		c.Capture.Source = "websocket"
	}
	if c.Capture.Path == "" {
		c.Capture.Path = "/ws"
	}
	if c.Capture.AckTimeout == 0 {
		c.Capture.AckTimeout = 5 * time.Second
	}
	if c.Capture.ScriptInterval == 0 {
		c.Capture.ScriptInterval = 1500 * time.Millisecond
	}

	if c.Speech.Engine == "" {
		c.Speech.Engine = "espeak"
	}
	if c.Speech.Player == "" {
		c.Speech.Player = "command"
	}

	if c.Control.Addr == "" {
		c.Control.Addr = ":8080"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Relay.Backend {
	case "google", "gemini", "anthropic", "openai":
	default:
		return fmt.Errorf("unknown relay backend %q", c.Relay.Backend)
	}
	switch c.Pipeline.Direction {
	case "zh-en", "en-zh":
	default:
		return fmt.Errorf("unknown direction %q (want zh-en or en-zh)", c.Pipeline.Direction)
	}
	switch c.Capture.Source {
	case "websocket":
	case "script":
		if c.Capture.ScriptPath == "" {
			return fmt.Errorf("capture source script requires script_path")
		}
	default:
		return fmt.Errorf("unknown capture source %q", c.Capture.Source)
	}
	switch c.Speech.Engine {
	case "espeak", "say", "none":
	default:
		return fmt.Errorf("unknown speech engine %q", c.Speech.Engine)
	}
	switch c.Speech.Player {
	case "command":
	case "portaudio":
		if c.Speech.Engine != "espeak" {
			return fmt.Errorf("portaudio player requires the espeak engine")
		}
	default:
		return fmt.Errorf("unknown speech player %q", c.Speech.Player)
	}
	return nil
}

// BackendSettings returns the settings of the selected relay backend.
func (r RelayConfig) BackendSettings() BackendConfig {
	switch r.Backend {
	case "gemini":
		return r.Gemini
	case "anthropic":
		return r.Anthropic
	case "openai":
		return r.OpenAI
	default:
		return r.Google
	}
}
