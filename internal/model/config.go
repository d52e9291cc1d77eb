package model

import "time"

// Config is the complete flagspan configuration.
// Tags serve both the YAML config file and viper unmarshalling.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// LoggingConfig controls structured log output
type LoggingConfig struct {
	Level       string   `yaml:"level" mapstructure:"level"`               // debug, info, warn, error
	Development bool     `yaml:"development" mapstructure:"development"`   // Console encoder instead of JSON
	OutputPaths []string `yaml:"output_paths" mapstructure:"output_paths"` // Defaults to stderr
}

// HTTPConfig applies to fetching URL sources
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls caching of model detection responses
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	Workers          int `yaml:"workers" mapstructure:"workers"`                     // Documents analysed in parallel by batch
	ReconcileWorkers int `yaml:"reconcile_workers" mapstructure:"reconcile_workers"` // Flags reconciled in parallel per document (1 = sequential)
}

// RateLimitingConfig limits calls to the model provider
type RateLimitingConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size" mapstructure:"burst_size"`
	Cooldown          time.Duration `yaml:"cooldown" mapstructure:"cooldown"` // Pause after a 429
}

// LLMConfig configures the upstream detection model
type LLMConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	Color         bool `yaml:"color" mapstructure:"color"`
	ExcerptRadius int  `yaml:"excerpt_radius" mapstructure:"excerpt_radius"` // Characters of context around spans in Markdown
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:       "warn",
			OutputPaths: []string{"stderr"},
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "flagspan/0.1 (+https://github.com/ppiankov/flagspan)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".flagspan-cache",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:          4,
			ReconcileWorkers: 1,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
			Cooldown:          30 * time.Second,
		},
		LLM: LLMConfig{
			Timeout:    60,
			MaxTokens:  2000,
			MaxRetries: 3,
		},
		Output: OutputConfig{
			Color:         true,
			ExcerptRadius: 40,
		},
	}
}
