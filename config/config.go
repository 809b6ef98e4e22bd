package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type BackendConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type UploadConfig struct {
	MaxBytes           int64  `toml:"max_bytes"`
	MaxImageWidth      uint   `toml:"max_image_width"`
	AcceptedExtensions string `toml:"accepted_extensions"`
}

type DraftConfig struct {
	Path string `toml:"path"` // bbolt database file
}

type RecipientConfig struct {
	MinTermLength    int `toml:"min_term_length"`
	BlurCloseDelayMS int `toml:"blur_close_delay_ms"`
}

type ComposeConfig struct {
	DefaultSenderAddress string `toml:"default_sender_address"`
	SessionTTLMinutes    int    `toml:"session_ttl_minutes"`
}

type JWTConfig struct {
	Secret string `toml:"secret"` // For JWT signing
}

type RateLimitConfig struct {
	Requests               int `toml:"requests"`
	WindowSeconds          int `toml:"window_seconds"`
	CleanupIntervalMinutes int `toml:"cleanup_interval_minutes"`
	IdleEvictionMinutes    int `toml:"idle_eviction_minutes"`
}

type Config struct {
	Server     ServerConfig    `toml:"server"`
	Backend    BackendConfig   `toml:"backend"`
	Uploads    UploadConfig    `toml:"uploads"`
	Drafts     DraftConfig     `toml:"drafts"`
	Recipients RecipientConfig `toml:"recipients"`
	Compose    ComposeConfig   `toml:"compose"`
	JWT        JWTConfig       `toml:"jwt"`
	RateLimit  RateLimitConfig `toml:"rate_limit"`
}

// Defaults returns a config populated with working defaults; LoadConfig
// overlays the TOML file on top of them.
func Defaults() *Config {
	var config Config
	config.Server.Port = 3000
	config.Server.LogLevel = "INFO"
	config.Backend.TimeoutSeconds = 15
	config.Uploads.MaxBytes = 25 << 20 // 25 MB
	config.Uploads.MaxImageWidth = 1600
	config.Uploads.AcceptedExtensions = ".pdf,.png,.jpg,.jpeg,.gif,.doc,.docx,.xls,.xlsx,.ppt,.pptx,.txt,.csv"
	config.Drafts.Path = "./data/drafts.db"
	config.Recipients.MinTermLength = 1
	config.Recipients.BlurCloseDelayMS = 200
	config.Compose.SessionTTLMinutes = 120
	config.RateLimit.Requests = 100
	config.RateLimit.WindowSeconds = 60
	config.RateLimit.CleanupIntervalMinutes = 5
	config.RateLimit.IdleEvictionMinutes = 10
	return &config
}

func LoadConfig(filepath string) (*Config, error) {
	config := Defaults()

	_, err := toml.DecodeFile(filepath, config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Recipients.BlurCloseDelayMS < 0 {
		return fmt.Errorf("blur_close_delay_ms must not be negative")
	}
	if c.RateLimit.Requests < 1 || c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("rate_limit requests and window_seconds must be positive")
	}
	return nil
}
