package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production" - controls test URL validation
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Fetcher     FetcherConfig   `toml:"fetcher"`
	Render      RenderConfig    `toml:"render"`
	Resolver    ResolverConfig  `toml:"resolver"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Engine      EngineConfig    `toml:"engine"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	API         APIConfig       `toml:"api"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// FetcherConfig contains HTTP page fetch configuration
type FetcherConfig struct {
	UserAgent      string        `toml:"user_agent"`      // User agent sent on page fetches (crawler-style by default)
	RequestTimeout time.Duration `toml:"request_timeout"` // HTTP request timeout
	MaxBodySize    int           `toml:"max_body_size"`   // Maximum response body size in bytes
	MaxRedirects   int           `toml:"max_redirects"`   // Maximum redirects to follow per fetch
}

// RenderConfig contains headless Chrome rendering configuration
type RenderConfig struct {
	Enabled    bool          `toml:"enabled"`     // Enable JavaScript rendering with chromedp
	PoolSize   int           `toml:"pool_size"`   // Number of pooled browser tabs
	WaitTime   time.Duration `toml:"wait_time"`   // Time to wait for JavaScript to render
	NavTimeout time.Duration `toml:"nav_timeout"` // Per-page navigation timeout
}

// ResolverConfig contains Wikidata entity resolution configuration
type ResolverConfig struct {
	Endpoint       string        `toml:"endpoint"`        // Wikidata API endpoint
	UserAgent      string        `toml:"user_agent"`      // User agent for Wikidata requests (API etiquette requires contact info)
	RequestTimeout time.Duration `toml:"request_timeout"` // HTTP request timeout
	RateLimit      time.Duration `toml:"rate_limit"`      // Minimum time between Wikidata requests
	MaxRetries     int           `toml:"max_retries"`     // Retry attempts per search before giving up
	DefaultLimit   int           `toml:"default_limit"`   // Candidates returned per concept
}

// GeminiConfig contains Google Gemini API configuration for inference
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for inference (default: "gemini-3-flash-preview")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// ClaudeConfig contains Anthropic Claude API configuration for inference
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for inference (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // Default provider: "gemini" or "claude" (default: "gemini")
}

// EngineConfig contains audit job engine configuration
type EngineConfig struct {
	Concurrency      int           `toml:"concurrency"`       // Concurrent page pipelines per job
	MaxURLs          int           `toml:"max_urls"`          // Maximum URLs accepted per audit request
	MaxSeedURLs      int           `toml:"max_seed_urls"`     // Maximum candidate URLs returned by seed discovery
	DraftTTL         time.Duration `toml:"draft_ttl"`         // How long draft schema survives for regeneration
	EvictionSchedule string        `toml:"eviction_schedule"` // Cron schedule for expired draft sweeps
}

// WebSocketConfig contains configuration for WebSocket progress streaming
type WebSocketConfig struct {
	MinLevel          string            `toml:"min_level"`          // Minimum log level to broadcast ("debug", "info", "warn", "error")
	ThrottleIntervals map[string]string `toml:"throttle_intervals"` // Throttle intervals for high-frequency events, e.g. {"audit_progress": "1s"}
}

// APIConfig contains HTTP API behavior configuration
type APIConfig struct {
	RateLimitPerMinute int `toml:"rate_limit_per_minute"` // Per-client audit submissions per minute (0 = unlimited)
	RateLimitBurst     int `toml:"rate_limit_burst"`      // Burst allowance for the per-client limiter
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in geoscope.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development", // Default to development mode - allows test URLs
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",                     // Info level for production (debug|info|warn|error)
			Format:     "text",                     // Human-readable text format (text|json)
			Output:     []string{"stdout", "file"}, // Log to both console and file
			TimeFormat: "15:04:05.000",
		},
		Fetcher: FetcherConfig{
			UserAgent:      "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			RequestTimeout: 30 * time.Second,
			MaxBodySize:    10 * 1024 * 1024, // 10MB
			MaxRedirects:   5,
		},
		Render: RenderConfig{
			Enabled:    true,
			PoolSize:   3,
			WaitTime:   3 * time.Second, // Wait for JavaScript to settle before snapshotting
			NavTimeout: 30 * time.Second,
		},
		Resolver: ResolverConfig{
			Endpoint:       "https://www.wikidata.org/w/api.php",
			UserAgent:      "geoscope/1.0 (https://github.com/ternarybob/geoscope)",
			RequestTimeout: 15 * time.Second,
			RateLimit:      200 * time.Millisecond, // Wikidata etiquette: stay well under 50 req/s
			MaxRetries:     3,
			DefaultLimit:   5,
		},
		Gemini: GeminiConfig{
			APIKey:      "",                       // User must provide API key (no fallback)
			Model:       "gemini-3-flash-preview", // Model for inference
			Timeout:     "5m",                     // 5 minutes for operations
			RateLimit:   "4s",                     // Default to 4s (15 RPM) for free tier
			Temperature: 0.2,                      // Low temperature for deterministic audits
		},
		Claude: ClaudeConfig{
			APIKey:      "",                          // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022", // Model for inference
			MaxTokens:   8192,                        // Default max tokens
			Timeout:     "5m",                        // 5 minutes for operations
			Temperature: 0.2,                         // Low temperature for deterministic audits
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Engine: EngineConfig{
			Concurrency:      1,                // Concurrent page pipelines per job (sequential by default)
			MaxURLs:          10,               // Cap per audit request
			MaxSeedURLs:      30,               // Cap for seed discovery
			DraftTTL:         24 * time.Hour,   // Drafts survive a day for regeneration
			EvictionSchedule: "0 0 * * * *",    // Hourly expired draft sweep (cron with seconds)
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ThrottleIntervals: map[string]string{
				"audit_progress": "1s", // Max 1 progress update per second per job
			},
		},
		API: APIConfig{
			RateLimitPerMinute: 5,
			RateLimitBurst:     5,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// Priority system: CLI flags > Environment variables > Config file > Defaults
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: GEOSCOPE_ENV, fallback: GO_ENV)
	if env := os.Getenv("GEOSCOPE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("GEOSCOPE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("GEOSCOPE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("GEOSCOPE_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("GEOSCOPE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("GEOSCOPE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("GEOSCOPE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Fetcher configuration
	if userAgent := os.Getenv("GEOSCOPE_FETCHER_USER_AGENT"); userAgent != "" {
		config.Fetcher.UserAgent = userAgent
	}
	if requestTimeout := os.Getenv("GEOSCOPE_FETCHER_REQUEST_TIMEOUT"); requestTimeout != "" {
		if rt, err := time.ParseDuration(requestTimeout); err == nil {
			config.Fetcher.RequestTimeout = rt
		}
	}
	if maxBodySize := os.Getenv("GEOSCOPE_FETCHER_MAX_BODY_SIZE"); maxBodySize != "" {
		if mbs, err := strconv.Atoi(maxBodySize); err == nil {
			config.Fetcher.MaxBodySize = mbs
		}
	}

	// Render configuration
	if enabled := os.Getenv("GEOSCOPE_RENDER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Render.Enabled = e
		}
	}
	if poolSize := os.Getenv("GEOSCOPE_RENDER_POOL_SIZE"); poolSize != "" {
		if ps, err := strconv.Atoi(poolSize); err == nil && ps > 0 {
			config.Render.PoolSize = ps
		}
	}
	if waitTime := os.Getenv("GEOSCOPE_RENDER_WAIT_TIME"); waitTime != "" {
		if wt, err := time.ParseDuration(waitTime); err == nil {
			config.Render.WaitTime = wt
		}
	}

	// Resolver configuration
	if endpoint := os.Getenv("GEOSCOPE_RESOLVER_ENDPOINT"); endpoint != "" {
		config.Resolver.Endpoint = endpoint
	}
	if rateLimit := os.Getenv("GEOSCOPE_RESOLVER_RATE_LIMIT"); rateLimit != "" {
		if rl, err := time.ParseDuration(rateLimit); err == nil {
			config.Resolver.RateLimit = rl
		}
	}
	if maxRetries := os.Getenv("GEOSCOPE_RESOLVER_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Resolver.MaxRetries = mr
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("GEOSCOPE_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("GEOSCOPE_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("GEOSCOPE_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("GEOSCOPE_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("GEOSCOPE_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEOSCOPE_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // GEOSCOPE_ prefix takes priority
	}
	if model := os.Getenv("GEOSCOPE_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("GEOSCOPE_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("GEOSCOPE_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}

	// LLM provider configuration
	if provider := os.Getenv("GEOSCOPE_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Engine configuration
	if concurrency := os.Getenv("GEOSCOPE_ENGINE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil && c > 0 {
			config.Engine.Concurrency = c
		}
	}
	if maxURLs := os.Getenv("GEOSCOPE_ENGINE_MAX_URLS"); maxURLs != "" {
		if m, err := strconv.Atoi(maxURLs); err == nil && m > 0 {
			config.Engine.MaxURLs = m
		}
	}
	if draftTTL := os.Getenv("GEOSCOPE_ENGINE_DRAFT_TTL"); draftTTL != "" {
		if ttl, err := time.ParseDuration(draftTTL); err == nil {
			config.Engine.DraftTTL = ttl
		}
	}
	if schedule := os.Getenv("GEOSCOPE_ENGINE_EVICTION_SCHEDULE"); schedule != "" {
		config.Engine.EvictionSchedule = schedule
	}

	// WebSocket configuration
	if minLevel := os.Getenv("GEOSCOPE_WEBSOCKET_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.MinLevel = minLevel
	}
	if progressThrottle := os.Getenv("GEOSCOPE_WEBSOCKET_THROTTLE_AUDIT_PROGRESS"); progressThrottle != "" {
		if _, err := time.ParseDuration(progressThrottle); err == nil {
			if config.WebSocket.ThrottleIntervals == nil {
				config.WebSocket.ThrottleIntervals = make(map[string]string)
			}
			config.WebSocket.ThrottleIntervals["audit_progress"] = progressThrottle
		}
	}

	// API configuration
	if rpm := os.Getenv("GEOSCOPE_API_RATE_LIMIT_PER_MINUTE"); rpm != "" {
		if r, err := strconv.Atoi(rpm); err == nil && r >= 0 {
			config.API.RateLimitPerMinute = r
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ValidateEvictionSchedule validates a cron schedule expression for the draft sweep.
// Uses the same 6-field parser (with seconds) the scheduler runs with, so a schedule
// that passes here is guaranteed to be accepted at startup.
func ValidateEvictionSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("eviction schedule cannot be empty")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	return nil
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// AllowTestURLs returns true when test/localhost URLs should be accepted in audit requests
func (c *Config) AllowTestURLs() bool {
	return !c.IsProduction()
}
