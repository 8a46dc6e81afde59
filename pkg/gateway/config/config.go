// Package config assembles gateway settings from defaults, an optional
// YAML file, and VOXGATE_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/goccy/go-yaml"
)

type Config struct {
	Addr string `yaml:"addr" default:":8080"`

	// Kokoro-compatible TTS engine.
	TTSBaseURL string `yaml:"tts_base_url" default:"http://127.0.0.1:8880"`

	// Applied when a start frame omits voice or speed.
	DefaultVoice string  `yaml:"default_voice" default:"af_heart"`
	DefaultSpeed float64 `yaml:"default_speed" default:"1.0"`

	OutboundQueueSize   int   `yaml:"outbound_queue_size" default:"128"`
	MaxJSONMessageBytes int64 `yaml:"max_json_message_bytes" default:"65536"`

	WSPingInterval time.Duration `yaml:"-" default:"20s"`
	WSWriteTimeout time.Duration `yaml:"-" default:"5s"`
	WSReadTimeout  time.Duration `yaml:"-" default:"0s"`

	ReadHeaderTimeout   time.Duration `yaml:"-" default:"10s"`
	ShutdownGracePeriod time.Duration `yaml:"-" default:"30s"`

	Upstream UpstreamConfig `yaml:"upstream"`
}

// UpstreamConfig selects the language model used by the chat command.
type UpstreamConfig struct {
	Provider string `yaml:"provider" default:"openai"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// Load builds the config. A missing path skips the file layer; env
// overrides always apply last.
func Load(path string) (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		if err := applyFileDurations(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromEnv builds the config without a file, honoring
// VOXGATE_CONFIG_FILE when set.
func LoadFromEnv() (Config, error) {
	return Load(strings.TrimSpace(os.Getenv("VOXGATE_CONFIG_FILE")))
}

// applyFileDurations parses duration fields from their YAML string
// form ("20s", "1m30s").
func applyFileDurations(data []byte, cfg *Config) error {
	var raw struct {
		WSPingInterval      *string `yaml:"ws_ping_interval"`
		WSWriteTimeout      *string `yaml:"ws_write_timeout"`
		WSReadTimeout       *string `yaml:"ws_read_timeout"`
		ReadHeaderTimeout   *string `yaml:"read_header_timeout"`
		ShutdownGracePeriod *string `yaml:"shutdown_grace_period"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	set := func(dst *time.Duration, key string, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(*src))
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = d
		return nil
	}
	if err := set(&cfg.WSPingInterval, "ws_ping_interval", raw.WSPingInterval); err != nil {
		return err
	}
	if err := set(&cfg.WSWriteTimeout, "ws_write_timeout", raw.WSWriteTimeout); err != nil {
		return err
	}
	if err := set(&cfg.WSReadTimeout, "ws_read_timeout", raw.WSReadTimeout); err != nil {
		return err
	}
	if err := set(&cfg.ReadHeaderTimeout, "read_header_timeout", raw.ReadHeaderTimeout); err != nil {
		return err
	}
	return set(&cfg.ShutdownGracePeriod, "shutdown_grace_period", raw.ShutdownGracePeriod)
}

func applyEnv(cfg *Config) {
	cfg.Addr = envOr("VOXGATE_ADDR", cfg.Addr)
	cfg.TTSBaseURL = envOr("VOXGATE_TTS_BASE_URL", cfg.TTSBaseURL)
	cfg.DefaultVoice = envOr("VOXGATE_DEFAULT_VOICE", cfg.DefaultVoice)
	cfg.DefaultSpeed = envFloat64Or("VOXGATE_DEFAULT_SPEED", cfg.DefaultSpeed)
	cfg.OutboundQueueSize = envIntOr("VOXGATE_OUTBOUND_QUEUE_SIZE", cfg.OutboundQueueSize)
	cfg.MaxJSONMessageBytes = envInt64Or("VOXGATE_MAX_JSON_MESSAGE_BYTES", cfg.MaxJSONMessageBytes)
	cfg.WSPingInterval = envDurationOr("VOXGATE_WS_PING_INTERVAL", cfg.WSPingInterval)
	cfg.WSWriteTimeout = envDurationOr("VOXGATE_WS_WRITE_TIMEOUT", cfg.WSWriteTimeout)
	cfg.WSReadTimeout = envDurationOr("VOXGATE_WS_READ_TIMEOUT", cfg.WSReadTimeout)
	cfg.ReadHeaderTimeout = envDurationOr("VOXGATE_READ_HEADER_TIMEOUT", cfg.ReadHeaderTimeout)
	cfg.ShutdownGracePeriod = envDurationOr("VOXGATE_SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.Upstream.Provider = envOr("VOXGATE_UPSTREAM_PROVIDER", cfg.Upstream.Provider)
	cfg.Upstream.Model = envOr("VOXGATE_UPSTREAM_MODEL", cfg.Upstream.Model)
	cfg.Upstream.APIKey = envOr("VOXGATE_UPSTREAM_API_KEY", cfg.Upstream.APIKey)
}

func (cfg Config) validate() error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("VOXGATE_ADDR must not be empty")
	}
	if strings.TrimSpace(cfg.TTSBaseURL) == "" {
		return fmt.Errorf("VOXGATE_TTS_BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.DefaultVoice) == "" {
		return fmt.Errorf("VOXGATE_DEFAULT_VOICE must not be empty")
	}
	if cfg.DefaultSpeed <= 0 {
		return fmt.Errorf("VOXGATE_DEFAULT_SPEED must be > 0")
	}
	if cfg.OutboundQueueSize <= 0 {
		return fmt.Errorf("VOXGATE_OUTBOUND_QUEUE_SIZE must be > 0")
	}
	if cfg.MaxJSONMessageBytes <= 0 {
		return fmt.Errorf("VOXGATE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return fmt.Errorf("VOXGATE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return fmt.Errorf("VOXGATE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return fmt.Errorf("VOXGATE_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("VOXGATE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("VOXGATE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Upstream.Provider)) {
	case "openai", "gemini":
	default:
		return fmt.Errorf("VOXGATE_UPSTREAM_PROVIDER must be one of openai|gemini")
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
